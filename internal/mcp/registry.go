package mcp

// ToolDescriptor describes one entry in the tool catalog. Required lists
// the argument names the dispatcher checks before invoking the handler;
// InputSchema is the JSON-Schema-shaped description served by tools/list.
type ToolDescriptor struct {
	Name        string
	Description string
	Required    []string
	InputSchema map[string]any
}

// Registry is the static tool catalog. The catalog never changes after
// construction, so List returns the same definitions in the same order on
// every call.
type Registry struct {
	tools []ToolDescriptor
	index map[string]*ToolDescriptor
}

// NewRegistry builds the catalog of the 8 dataset tools.
func NewRegistry() *Registry {
	r := &Registry{tools: toolCatalog()}
	r.index = make(map[string]*ToolDescriptor, len(r.tools))
	for i := range r.tools {
		r.index[r.tools[i].Name] = &r.tools[i]
	}
	return r
}

// List returns the catalog as tools/list wire objects, in insertion order.
func (r *Registry) List() []map[string]any {
	out := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return out
}

// Describe looks up a tool by name.
func (r *Registry) Describe(name string) (*ToolDescriptor, bool) {
	t, ok := r.index[name]
	return t, ok
}

func toolCatalog() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "list_users",
			Description: "Get all users from the database",
			Required:    []string{},
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
		{
			Name:        "list_products",
			Description: "Get all products from the database",
			Required:    []string{},
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
		{
			Name:        "add_user",
			Description: "Add a new user to the database",
			Required:    []string{"name", "email"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":    map[string]any{"type": "string", "description": "User's name"},
					"email":   map[string]any{"type": "string", "description": "User's email"},
					"age":     map[string]any{"type": "integer", "description": "User's age"},
					"phone":   map[string]any{"type": "string", "description": "User's phone number"},
					"address": map[string]any{"type": "string", "description": "User's address"},
				},
				"required": []string{"name", "email"},
			},
		},
		{
			Name:        "add_product",
			Description: "Add a new product to the database",
			Required:    []string{"name", "price"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":           map[string]any{"type": "string", "description": "Product name"},
					"description":    map[string]any{"type": "string", "description": "Product description"},
					"price":          map[string]any{"type": "number", "description": "Product price"},
					"stock_quantity": map[string]any{"type": "integer", "description": "Stock quantity"},
				},
				"required": []string{"name", "price"},
			},
		},
		{
			Name:        "update_user",
			Description: "Update an existing user",
			Required:    []string{"id"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":      map[string]any{"type": "integer", "description": "User ID"},
					"name":    map[string]any{"type": "string", "description": "User's name"},
					"email":   map[string]any{"type": "string", "description": "User's email"},
					"age":     map[string]any{"type": "integer", "description": "New age for the user"},
					"phone":   map[string]any{"type": "string", "description": "User's phone number"},
					"address": map[string]any{"type": "string", "description": "User's address"},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "update_product",
			Description: "Update an existing product",
			Required:    []string{"id"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":             map[string]any{"type": "integer", "description": "Product ID"},
					"name":           map[string]any{"type": "string", "description": "Product name"},
					"description":    map[string]any{"type": "string", "description": "Product description"},
					"price":          map[string]any{"type": "number", "description": "Product price"},
					"stock_quantity": map[string]any{"type": "integer", "description": "Stock quantity"},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "delete_user",
			Description: "Delete a user from the database",
			Required:    []string{"id"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "integer", "description": "User ID to delete"},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "delete_product",
			Description: "Delete a product from the database",
			Required:    []string{"id"},
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "integer", "description": "Product ID to delete"},
				},
				"required": []string{"id"},
			},
		},
	}
}
