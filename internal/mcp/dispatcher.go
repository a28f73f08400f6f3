package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/inventa-dev/inventa/internal/metrics"
	"github.com/inventa-dev/inventa/internal/store"
)

// Store is the persistence surface the dispatcher drives. *store.Store
// satisfies it; tests may substitute their own.
type Store interface {
	ListUsers(ctx context.Context) ([]store.User, error)
	CreateUser(ctx context.Context, nu store.NewUser) (*store.User, error)
	UpdateUser(ctx context.Context, id int64, patch store.UserPatch) (*store.User, error)
	DeleteUser(ctx context.Context, id int64) (*store.User, error)
	ListProducts(ctx context.Context) ([]store.Product, error)
	CreateProduct(ctx context.Context, np store.NewProduct) (*store.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch store.ProductPatch) (*store.Product, error)
	DeleteProduct(ctx context.Context, id int64) (*store.Product, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Dispatcher resolves raw JSON-RPC frames against the Store. It holds no
// mutable state and is safe for concurrent use; transport adapters differ
// only in framing and credential extraction.
type Dispatcher struct {
	Store    Store
	Auth     *Authenticator
	Registry *Registry
}

func NewDispatcher(st Store, auth *Authenticator) *Dispatcher {
	return &Dispatcher{Store: st, Auth: auth, Registry: NewRegistry()}
}

// HandleRaw decodes one frame and returns the response envelope, or nil for
// notifications (requests without an id), which produce no response body.
func (d *Dispatcher) HandleRaw(ctx context.Context, body []byte, credential string) *jsonrpcResponse {
	// An empty frame is a liveness probe, not an error.
	if len(bytes.TrimSpace(body)) == 0 {
		return rpcResult(nil, map[string]any{
			"status":    "ready",
			"server":    serverName,
			"version":   serverVersion,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}

	var req jsonrpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return rpcErr(nil, codeParseError, "Parse error")
	}

	// A bare object without method or version is a connection probe.
	if req.Method == "" && req.JSONRPC == "" {
		return rpcResult(req.ID, map[string]any{
			"status":          "connected",
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			"serverInfo": map[string]any{"name": serverName, "version": serverVersion},
		})
	}

	if req.JSONRPC != "2.0" {
		return rpcErr(req.ID, codeInvalidRequest, "Invalid request: jsonrpc must be 2.0")
	}

	if req.ID == nil {
		// Notification. Nothing to send back; the transport acknowledges.
		slog.Debug("notification", "method", req.Method)
		return nil
	}

	return d.dispatch(ctx, req, credential)
}

func (d *Dispatcher) dispatch(ctx context.Context, req jsonrpcRequest, credential string) *jsonrpcResponse {
	// Lifecycle methods are exempt from auth so clients can handshake
	// before presenting a credential.
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "notifications/initialized", "ping":
		return rpcResult(req.ID, map[string]any{})
	}

	if !d.Auth.Allow(credential) {
		return rpcErr(req.ID, codeUnauthorized, "Unauthorized: invalid or missing API key")
	}

	switch req.Method {
	case "tools/list":
		tools := d.Registry.List()
		slog.Info("tool call", "tool", "list", "items", len(tools))
		return rpcResult(req.ID, map[string]any{"tools": tools})
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return rpcErr(req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (d *Dispatcher) handleInitialize(req jsonrpcRequest) *jsonrpcResponse {
	return rpcResult(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req jsonrpcRequest) *jsonrpcResponse {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcErr(req.ID, codeValidation, "Invalid params: "+err.Error())
	}
	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	desc, ok := d.Registry.Describe(params.Name)
	if !ok {
		return rpcErr(req.ID, codeMethodNotFound, "Unknown tool: "+params.Name)
	}
	for _, field := range desc.Required {
		if v, present := args[field]; !present || v == nil {
			return rpcErr(req.ID, codeValidation, field+" is required")
		}
	}

	done := metrics.TimeTool(params.Name)
	resp := d.callTool(ctx, req.ID, params.Name, args)
	done(resp.Error == nil)
	return resp
}

func (d *Dispatcher) callTool(ctx context.Context, id any, name string, args map[string]any) *jsonrpcResponse {
	switch name {
	case "list_users":
		return d.toolListUsers(ctx, id)
	case "list_products":
		return d.toolListProducts(ctx, id)
	case "add_user":
		return d.toolAddUser(ctx, id, args)
	case "add_product":
		return d.toolAddProduct(ctx, id, args)
	case "update_user":
		return d.toolUpdateUser(ctx, id, args)
	case "update_product":
		return d.toolUpdateProduct(ctx, id, args)
	case "delete_user":
		return d.toolDeleteUser(ctx, id, args)
	case "delete_product":
		return d.toolDeleteProduct(ctx, id, args)
	default:
		// Registry and this switch are maintained together; reaching here
		// means they diverged.
		return rpcErr(id, codeInternal, "tool not wired: "+name)
	}
}

func (d *Dispatcher) toolListUsers(ctx context.Context, id any) *jsonrpcResponse {
	users, err := d.Store.ListUsers(ctx)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "list_users", "items", len(users))
	return toolResult(id, map[string]any{"users": users})
}

func (d *Dispatcher) toolListProducts(ctx context.Context, id any) *jsonrpcResponse {
	products, err := d.Store.ListProducts(ctx)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "list_products", "items", len(products))
	return toolResult(id, map[string]any{"products": products})
}

func (d *Dispatcher) toolAddUser(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	nu := store.NewUser{
		Name:    str(args, "name"),
		Email:   str(args, "email"),
		Age:     optInt64(args, "age"),
		Phone:   optStr(args, "phone"),
		Address: optStr(args, "address"),
	}
	user, err := d.Store.CreateUser(ctx, nu)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "add_user", "id", user.ID)
	return toolResult(id, map[string]any{"user": user})
}

func (d *Dispatcher) toolAddProduct(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	price, ok := float64Arg(args, "price")
	if !ok {
		return rpcErr(id, codeValidation, "price must be a number")
	}
	np := store.NewProduct{
		Name:        str(args, "name"),
		Description: optStr(args, "description"),
		Price:       price,
	}
	if qty := optInt64(args, "stock_quantity"); qty != nil {
		np.StockQuantity = *qty
	}
	product, err := d.Store.CreateProduct(ctx, np)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "add_product", "id", product.ID)
	return toolResult(id, map[string]any{"product": product})
}

func (d *Dispatcher) toolUpdateUser(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	userID, ok := int64Arg(args, "id")
	if !ok {
		return rpcErr(id, codeValidation, "id must be an integer")
	}
	patch := store.UserPatch{
		Name:    optStr(args, "name"),
		Email:   optStr(args, "email"),
		Age:     optInt64(args, "age"),
		Phone:   optStr(args, "phone"),
		Address: optStr(args, "address"),
	}
	if patch.IsZero() {
		return rpcErr(id, codeValidation, "no fields to update")
	}
	user, err := d.Store.UpdateUser(ctx, userID, patch)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "update_user", "id", user.ID)
	return toolResult(id, map[string]any{"user": user})
}

func (d *Dispatcher) toolUpdateProduct(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	productID, ok := int64Arg(args, "id")
	if !ok {
		return rpcErr(id, codeValidation, "id must be an integer")
	}
	patch := store.ProductPatch{
		Name:          optStr(args, "name"),
		Description:   optStr(args, "description"),
		Price:         optFloat64(args, "price"),
		StockQuantity: optInt64(args, "stock_quantity"),
	}
	if patch.IsZero() {
		return rpcErr(id, codeValidation, "no fields to update")
	}
	product, err := d.Store.UpdateProduct(ctx, productID, patch)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "update_product", "id", product.ID)
	return toolResult(id, map[string]any{"product": product})
}

func (d *Dispatcher) toolDeleteUser(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	userID, ok := int64Arg(args, "id")
	if !ok {
		return rpcErr(id, codeValidation, "id must be an integer")
	}
	user, err := d.Store.DeleteUser(ctx, userID)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "delete_user", "id", userID)
	return toolResult(id, map[string]any{"user": user, "deleted": true})
}

func (d *Dispatcher) toolDeleteProduct(ctx context.Context, id any, args map[string]any) *jsonrpcResponse {
	productID, ok := int64Arg(args, "id")
	if !ok {
		return rpcErr(id, codeValidation, "id must be an integer")
	}
	product, err := d.Store.DeleteProduct(ctx, productID)
	if err != nil {
		return storeErr(id, err)
	}
	slog.Info("tool call", "tool", "delete_product", "id", productID)
	return toolResult(id, map[string]any{"product": product, "deleted": true})
}

// storeErr maps a Store failure onto the protocol error code table.
func storeErr(id any, err error) *jsonrpcResponse {
	switch {
	case errors.Is(err, store.ErrNoFields), errors.Is(err, store.ErrValidation):
		return rpcErr(id, codeValidation, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return rpcErr(id, codeNotFound, err.Error())
	case errors.Is(err, store.ErrConstraint):
		return rpcErr(id, codeConstraint, err.Error())
	default:
		return rpcErr(id, codeInternal, err.Error())
	}
}

// toolResult wraps an entity-keyed payload in the tools/call content envelope.
func toolResult(id any, data any) *jsonrpcResponse {
	j, _ := json.Marshal(data)
	return rpcResult(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(j)},
		},
		"isError": false,
	})
}

func optStr(m map[string]any, key string) *string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

func optInt64(m map[string]any, key string) *int64 {
	if n, ok := int64Arg(m, key); ok {
		return &n
	}
	return nil
}

func optFloat64(m map[string]any, key string) *float64 {
	if f, ok := float64Arg(m, key); ok {
		return &f
	}
	return nil
}
