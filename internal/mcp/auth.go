package mcp

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// Authenticator checks an already-extracted credential against the
// configured shared secret. The comparison is exact and case-sensitive;
// an empty credential is always denied.
type Authenticator struct {
	Secret string
}

// Allow reports whether the credential matches the secret.
func (a *Authenticator) Allow(credential string) bool {
	return credential != "" && credential == a.Secret
}

// ExtractCredential pulls the client credential out of request headers.
// The first non-empty of x-api-key, x-api-token, authorization wins; a
// "Bearer " prefix on the authorization value is stripped.
func ExtractCredential(h http.Header) string {
	for _, name := range []string{"x-api-key", "x-api-token", "authorization"} {
		v := h.Get(name)
		if v == "" {
			continue
		}
		return strings.TrimPrefix(v, "Bearer ")
	}
	return ""
}

// GenerateSecret returns a fresh random secret (32 bytes, hex encoded).
// Used at startup when no secret is configured, so authentication is never
// silently disabled.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
