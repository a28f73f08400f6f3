package importdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/inventa-dev/inventa/internal/store"
)

const maxFileLen = 1 << 20 // 1 MiB

// emailRegex is intentionally loose: one @ with something on both sides.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// File is the accepted seed-file shape: a JSON document with a users list,
// a products list, or both.
type File struct {
	Users    []store.NewUser    `json:"users"`
	Products []store.NewProduct `json:"products"`
}

// Parse parses and validates seed-file content. Unknown keys and invalid
// rows are rejected up front so a bad file never half-imports.
func Parse(content []byte) (*File, error) {
	if len(content) > maxFileLen {
		return nil, fmt.Errorf("invalid format: file exceeds %d bytes", maxFileLen)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid format: %v", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid format: trailing data after document")
	}
	if len(f.Users) == 0 && len(f.Products) == 0 {
		return nil, fmt.Errorf("invalid format: file must contain users or products")
	}

	seenEmails := map[string]bool{}
	for i, u := range f.Users {
		if strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("invalid format: users[%d]: name is required", i)
		}
		if strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("invalid format: users[%d]: email is required", i)
		}
		if !emailRegex.MatchString(u.Email) {
			return nil, fmt.Errorf("invalid format: users[%d]: email %q is not valid", i, u.Email)
		}
		if seenEmails[u.Email] {
			return nil, fmt.Errorf("invalid format: users[%d]: duplicate email %q", i, u.Email)
		}
		seenEmails[u.Email] = true
		if u.Age != nil && *u.Age < 0 {
			return nil, fmt.Errorf("invalid format: users[%d]: age must not be negative", i)
		}
	}

	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("invalid format: products[%d]: name is required", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("invalid format: products[%d]: price must not be negative", i)
		}
		if p.StockQuantity < 0 {
			return nil, fmt.Errorf("invalid format: products[%d]: stock_quantity must not be negative", i)
		}
	}

	return &f, nil
}
