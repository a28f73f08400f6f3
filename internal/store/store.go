package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inventa-dev/inventa/internal/metrics"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for known failure conditions. Use errors.Is(err, store.ErrNotFound) to check.
var (
	ErrNotFound   = errors.New("record not found")
	ErrConstraint = errors.New("constraint violation")
	ErrValidation = errors.New("validation failed")
	ErrNoFields   = errors.New("no fields to update")
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is used for created_at/updated_at. Millisecond precision so
// updated_at observably advances on consecutive mutations.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Store wraps the SQLite connection and provides all data operations.
type Store struct {
	db *sql.DB
}

// User represents a row in the users table.
type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Age       *int64  `json:"age"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// Product represents a row in the products table.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int64   `json:"stock_quantity"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// NewUser holds the fields accepted when creating a user.
type NewUser struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Age     *int64  `json:"age"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// NewProduct holds the fields accepted when creating a product.
type NewProduct struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int64   `json:"stock_quantity"`
}

// UserPatch is a partial update. All fields are pointers so callers set only
// what changes; the Store applies exactly the present entries.
type UserPatch struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Age     *int64  `json:"age"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// IsZero reports whether the patch carries no fields.
func (p UserPatch) IsZero() bool {
	return p.Name == nil && p.Email == nil && p.Age == nil && p.Phone == nil && p.Address == nil
}

// ProductPatch is a partial update for a product.
type ProductPatch struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	StockQuantity *int64   `json:"stock_quantity"`
}

// IsZero reports whether the patch carries no fields.
func (p ProductPatch) IsZero() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.StockQuantity == nil
}

// Stats holds the aggregate counters served by the read-only stats surface.
type Stats struct {
	TotalUsers          int64   `json:"total_users"`
	TotalProducts       int64   `json:"total_products"`
	TotalInventoryValue float64 `json:"total_inventory_value"`
}

// Open opens (or creates) a SQLite database at path, runs PRAGMAs and schema.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	// Connection pool limits (database/sql best practices)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return &Store{db: sqlDB}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// nowAfter returns the current timestamp, clamped to strictly after prev.
// Two mutations inside the same millisecond would otherwise produce equal
// updated_at values.
func nowAfter(prev string) string {
	ts := time.Now().UTC()
	if p, err := time.Parse(timeLayout, prev); err == nil && !ts.After(p) {
		ts = p.Add(time.Millisecond)
	}
	return ts.Format(timeLayout)
}

// wrapSQLErr translates driver-level constraint failures into sentinel errors.
func wrapSQLErr(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %s: %w", op, se.Error(), ErrConstraint)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%s: %s: %w", op, se.Error(), ErrValidation)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// --- users ---

const userCols = "id, name, email, age, phone, address, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.Phone, &u.Address, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users ordered by id ascending.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	done := metrics.TimeOp("list_users")
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			done(false)
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	done(rows.Err() == nil)
	return users, rows.Err()
}

// CreateUser inserts a new user and returns the stored row. Name and email
// are required; a duplicate email fails with ErrConstraint.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	done := metrics.TimeOp("create_user")
	if strings.TrimSpace(nu.Name) == "" {
		done(false)
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if strings.TrimSpace(nu.Email) == "" {
		done(false)
		return nil, fmt.Errorf("email is required: %w", ErrValidation)
	}
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, age, phone, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nu.Name, nu.Email, nu.Age, nu.Phone, nu.Address, ts, ts,
	)
	if err != nil {
		done(false)
		return nil, wrapSQLErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		done(false)
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	done(true)
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateUser applies the present patch fields to the user identified by id
// and returns the updated row. updated_at is always refreshed; an empty
// patch fails with ErrNoFields before touching the row.
func (s *Store) UpdateUser(ctx context.Context, id int64, patch UserPatch) (*User, error) {
	done := metrics.TimeOp("update_user")
	if patch.IsZero() {
		done(false)
		return nil, fmt.Errorf("update user %d: %w", id, ErrNoFields)
	}
	prev, err := s.GetUser(ctx, id)
	if err != nil {
		done(false)
		return nil, err
	}

	setClauses := []string{}
	args := []any{}
	if patch.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Email != nil {
		setClauses = append(setClauses, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.Age != nil {
		setClauses = append(setClauses, "age = ?")
		args = append(args, *patch.Age)
	}
	if patch.Phone != nil {
		setClauses = append(setClauses, "phone = ?")
		args = append(args, *patch.Phone)
	}
	if patch.Address != nil {
		setClauses = append(setClauses, "address = ?")
		args = append(args, *patch.Address)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, nowAfter(prev.UpdatedAt), id)

	query := "UPDATE users SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		done(false)
		return nil, wrapSQLErr("update user", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		done(false)
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		done(false)
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	done(true)
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user by id and returns the row as it existed
// immediately before removal.
func (s *Store) DeleteUser(ctx context.Context, id int64) (*User, error) {
	done := metrics.TimeOp("delete_user")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err != nil {
		done(false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		done(false)
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		done(false)
		return nil, fmt.Errorf("commit: %w", err)
	}
	done(true)
	return u, nil
}

// --- products ---

const productCols = "id, name, description, price, stock_quantity, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	p := &Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns all products ordered by id ascending.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	done := metrics.TimeOp("list_products")
	rows, err := s.db.QueryContext(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			done(false)
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	done(rows.Err() == nil)
	return products, rows.Err()
}

// CreateProduct inserts a new product and returns the stored row. Name is
// required and price must be non-negative.
func (s *Store) CreateProduct(ctx context.Context, np NewProduct) (*Product, error) {
	done := metrics.TimeOp("create_product")
	if strings.TrimSpace(np.Name) == "" {
		done(false)
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if np.Price < 0 {
		done(false)
		return nil, fmt.Errorf("price must not be negative: %w", ErrValidation)
	}
	if np.StockQuantity < 0 {
		done(false)
		return nil, fmt.Errorf("stock_quantity must not be negative: %w", ErrValidation)
	}
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price, stock_quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		np.Name, np.Description, np.Price, np.StockQuantity, ts, ts,
	)
	if err != nil {
		done(false)
		return nil, wrapSQLErr("insert product", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		done(false)
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	done(true)
	return s.GetProduct(ctx, id)
}

// GetProduct retrieves a product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpdateProduct applies the present patch fields to the product identified
// by id and returns the updated row.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	done := metrics.TimeOp("update_product")
	if patch.IsZero() {
		done(false)
		return nil, fmt.Errorf("update product %d: %w", id, ErrNoFields)
	}
	if patch.Price != nil && *patch.Price < 0 {
		done(false)
		return nil, fmt.Errorf("price must not be negative: %w", ErrValidation)
	}
	if patch.StockQuantity != nil && *patch.StockQuantity < 0 {
		done(false)
		return nil, fmt.Errorf("stock_quantity must not be negative: %w", ErrValidation)
	}
	prev, err := s.GetProduct(ctx, id)
	if err != nil {
		done(false)
		return nil, err
	}

	setClauses := []string{}
	args := []any{}
	if patch.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Price != nil {
		setClauses = append(setClauses, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.StockQuantity != nil {
		setClauses = append(setClauses, "stock_quantity = ?")
		args = append(args, *patch.StockQuantity)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, nowAfter(prev.UpdatedAt), id)

	query := "UPDATE products SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		done(false)
		return nil, wrapSQLErr("update product", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		done(false)
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		done(false)
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	done(true)
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product by id and returns the prior row.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (*Product, error) {
	done := metrics.TimeOp("delete_product")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	p, err := scanProduct(tx.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id))
	if err != nil {
		done(false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("lookup product: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		done(false)
		return nil, fmt.Errorf("delete product: %w", err)
	}
	if err := tx.Commit(); err != nil {
		done(false)
		return nil, fmt.Errorf("commit: %w", err)
	}
	done(true)
	return p, nil
}

// --- aggregates & seeding ---

// Stats returns the aggregate counters for the read-only stats surface.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&st.TotalUsers); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&st.TotalProducts); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	var total sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(price * stock_quantity) FROM products`).Scan(&total); err != nil {
		return nil, fmt.Errorf("inventory value: %w", err)
	}
	st.TotalInventoryValue = total.Float64
	return st, nil
}

// Seed inserts sample rows into each table that is empty. Tables that
// already hold data are left untouched.
func (s *Store) Seed(ctx context.Context) error {
	var userCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if userCount == 0 {
		for _, nu := range sampleUsers() {
			if _, err := s.CreateUser(ctx, nu); err != nil {
				return fmt.Errorf("seed users: %w", err)
			}
		}
		slog.Info("seeded users", "count", len(sampleUsers()))
	}

	var productCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&productCount); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if productCount == 0 {
		for _, np := range sampleProducts() {
			if _, err := s.CreateProduct(ctx, np); err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
		slog.Info("seeded products", "count", len(sampleProducts()))
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func sampleUsers() []NewUser {
	return []NewUser{
		{Name: "John Doe", Email: "john@example.com", Age: ptr[int64](30), Phone: ptr("123-456-7890"), Address: ptr("123 Main St")},
		{Name: "Jane Smith", Email: "jane@example.com", Age: ptr[int64](25), Phone: ptr("098-765-4321"), Address: ptr("456 Oak Ave")},
		{Name: "Bob Johnson", Email: "bob@example.com", Age: ptr[int64](35), Phone: ptr("111-222-3333"), Address: ptr("789 Pine Ln")},
		{Name: "Alice Brown", Email: "alice@example.com", Age: ptr[int64](28), Phone: ptr("444-555-6666"), Address: ptr("101 Elm Rd")},
	}
}

func sampleProducts() []NewProduct {
	return []NewProduct{
		{Name: "Laptop", Description: ptr("High-performance laptop"), Price: 1200.00, StockQuantity: 10},
		{Name: "Mouse", Description: ptr("Wireless mouse"), Price: 25.50, StockQuantity: 50},
		{Name: "Keyboard", Description: ptr("Mechanical keyboard"), Price: 75.00, StockQuantity: 25},
		{Name: "Monitor", Description: ptr("4K UHD Monitor"), Price: 350.00, StockQuantity: 15},
	}
}
