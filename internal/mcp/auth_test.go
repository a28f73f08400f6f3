package mcp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticatorAllow(t *testing.T) {
	a := &Authenticator{Secret: "supersecret"}

	tests := []struct {
		name       string
		credential string
		want       bool
	}{
		{"exact match", "supersecret", true},
		{"empty credential", "", false},
		{"wrong credential", "nope", false},
		{"case sensitive", "SuperSecret", false},
		{"prefix only", "supersecre", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Allow(tt.credential))
		})
	}
}

func TestAuthenticatorEmptySecretDeniesAll(t *testing.T) {
	a := &Authenticator{Secret: ""}
	assert.False(t, a.Allow(""), "empty credential never matches, even an empty secret")
	assert.False(t, a.Allow("anything"))
}

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"x-api-key", map[string]string{"x-api-key": "k1"}, "k1"},
		{"x-api-token", map[string]string{"x-api-token": "k2"}, "k2"},
		{"authorization plain", map[string]string{"authorization": "k3"}, "k3"},
		{"authorization bearer", map[string]string{"authorization": "Bearer k4"}, "k4"},
		{"x-api-key wins over authorization", map[string]string{"x-api-key": "k1", "authorization": "Bearer k4"}, "k1"},
		{"x-api-token wins over authorization", map[string]string{"x-api-token": "k2", "authorization": "k3"}, "k2"},
		{"no headers", map[string]string{}, ""},
		{"lowercase bearer not stripped", map[string]string{"authorization": "bearer k5"}, "bearer k5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractCredential(h))
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	s1 := GenerateSecret()
	s2 := GenerateSecret()
	assert.Len(t, s1, 64, "32 random bytes, hex encoded")
	assert.NotEqual(t, s1, s2)
}
