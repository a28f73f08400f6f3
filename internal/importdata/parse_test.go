package importdata

import (
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	content := []byte(`{
		"users": [
			{"name": "John Doe", "email": "john@example.com", "age": 30},
			{"name": "Jane Smith", "email": "jane@example.com"}
		],
		"products": [
			{"name": "Laptop", "description": "High-performance laptop", "price": 1200.00, "stock_quantity": 10},
			{"name": "Mouse", "price": 25.50}
		]
	}`)

	f, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Users) != 2 {
		t.Errorf("users = %d, want 2", len(f.Users))
	}
	if len(f.Products) != 2 {
		t.Errorf("products = %d, want 2", len(f.Products))
	}
	if f.Users[0].Age == nil || *f.Users[0].Age != 30 {
		t.Errorf("users[0].age = %v, want 30", f.Users[0].Age)
	}
	if f.Users[1].Age != nil {
		t.Errorf("users[1].age = %v, want nil", f.Users[1].Age)
	}
	if f.Products[1].StockQuantity != 0 {
		t.Errorf("products[1].stock_quantity = %d, want 0", f.Products[1].StockQuantity)
	}
}

func TestParseUsersOnly(t *testing.T) {
	f, err := Parse([]byte(`{"users": [{"name": "A", "email": "a@example.com"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Users) != 1 || len(f.Products) != 0 {
		t.Errorf("got %d users, %d products", len(f.Users), len(f.Products))
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"not json", `{{{`, "invalid format"},
		{"empty document", `{}`, "must contain users or products"},
		{"unknown key", `{"customers": []}`, "invalid format"},
		{"trailing data", `{"users": [{"name": "A", "email": "a@b.c"}]} garbage`, "trailing data"},
		{"user missing name", `{"users": [{"email": "a@b.c"}]}`, "users[0]: name is required"},
		{"user missing email", `{"users": [{"name": "A"}]}`, "users[0]: email is required"},
		{"bad email", `{"users": [{"name": "A", "email": "not-an-email"}]}`, "is not valid"},
		{"duplicate email", `{"users": [{"name": "A", "email": "a@b.c"}, {"name": "B", "email": "a@b.c"}]}`, "duplicate email"},
		{"negative age", `{"users": [{"name": "A", "email": "a@b.c", "age": -1}]}`, "age must not be negative"},
		{"product missing name", `{"products": [{"price": 1}]}`, "products[0]: name is required"},
		{"negative price", `{"products": [{"name": "X", "price": -1}]}`, "price must not be negative"},
		{"negative stock", `{"products": [{"name": "X", "price": 1, "stock_quantity": -2}]}`, "stock_quantity must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
