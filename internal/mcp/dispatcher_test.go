package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventa-dev/inventa/internal/store"
)

const testKey = "testkey"

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewDispatcher(st, &Authenticator{Secret: testKey})
}

func rpc(t *testing.T, d *Dispatcher, cred string, id any, method string, params any) *jsonrpcResponse {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != nil {
		req["id"] = id
	}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return d.HandleRaw(context.Background(), body, cred)
}

func callTool(t *testing.T, d *Dispatcher, name string, args map[string]any) *jsonrpcResponse {
	t.Helper()
	return rpc(t, d, testKey, 1, "tools/call", map[string]any{"name": name, "arguments": args})
}

// toolPayload unwraps the content envelope of a successful tools/call.
func toolPayload(t *testing.T, resp *jsonrpcResponse) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "expected success, got error")
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	content, ok := result["content"].([]map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, content)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), &payload))
	return payload
}

func TestEmptyBodyIsReadyProbe(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte("  \n"), "")
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, "ready", result["status"])
}

func TestBareObjectIsConnectionProbe(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte("{}"), "")
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, "connected", result["status"])
	assert.Contains(t, result, "capabilities")
}

func TestParseError(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte("{not json"), "")
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
	assert.Nil(t, resp.ID)
}

func TestInvalidVersion(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"1.0","id":7,"method":"ping"}`), "")
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestNotificationProducesNoResponse(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), "")
	assert.Nil(t, resp)
}

func TestLifecycleWithoutCredential(t *testing.T) {
	d := newTestDispatcher(t)

	resp := rpc(t, d, "", 1, "initialize", nil)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, serverName, info["name"])

	resp = rpc(t, d, "", 2, "ping", nil)
	require.Nil(t, resp.Error)

	resp = rpc(t, d, "", 3, "notifications/initialized", nil)
	require.Nil(t, resp.Error)
}

func TestUnauthorized(t *testing.T) {
	d := newTestDispatcher(t)

	for _, cred := range []string{"", "wrongkey"} {
		resp := rpc(t, d, cred, 1, "tools/list", nil)
		require.NotNil(t, resp.Error, "credential %q", cred)
		assert.Equal(t, codeUnauthorized, resp.Error.Code)
	}
}

func TestToolsList(t *testing.T) {
	d := newTestDispatcher(t)

	resp := rpc(t, d, testKey, 1, "tools/list", nil)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]map[string]any)
	assert.Len(t, tools, 8)
}

func TestMethodNotFound(t *testing.T) {
	d := newTestDispatcher(t)

	resp := rpc(t, d, testKey, 42, "bogus/method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bogus/method")
	assert.Equal(t, float64(42), resp.ID.(float64))
}

func TestUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)

	resp := rpc(t, d, testKey, 43, "tools/call", map[string]any{"name": "drop_tables", "arguments": map[string]any{}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "drop_tables")
	assert.Equal(t, float64(43), resp.ID.(float64))
}

func TestAddUserMissingRequired(t *testing.T) {
	d := newTestDispatcher(t)

	resp := callTool(t, d, "add_user", map[string]any{"name": "No Email"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "email")

	payload := toolPayload(t, callTool(t, d, "list_users", nil))
	assert.Empty(t, payload["users"], "rejected add must not create a row")
}

func TestAddUserRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)

	payload := toolPayload(t, callTool(t, d, "add_user", map[string]any{
		"name":  "John Doe",
		"email": "john@example.com",
		"age":   30,
	}))
	user := payload["user"].(map[string]any)
	assert.Equal(t, "John Doe", user["name"])
	assert.Equal(t, user["created_at"], user["updated_at"])

	payload = toolPayload(t, callTool(t, d, "list_users", nil))
	users := payload["users"].([]any)
	require.Len(t, users, 1)
}

func TestAddUserDuplicateEmail(t *testing.T) {
	d := newTestDispatcher(t)

	toolPayload(t, callTool(t, d, "add_user", map[string]any{"name": "A", "email": "dup@example.com"}))
	resp := callTool(t, d, "add_user", map[string]any{"name": "B", "email": "dup@example.com"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeConstraint, resp.Error.Code)
}

func TestUpdateUserNoFields(t *testing.T) {
	d := newTestDispatcher(t)

	payload := toolPayload(t, callTool(t, d, "add_user", map[string]any{"name": "Jane", "email": "jane@example.com"}))
	user := payload["user"].(map[string]any)
	id := user["id"].(float64)

	resp := callTool(t, d, "update_user", map[string]any{"id": id})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no fields to update")

	payload = toolPayload(t, callTool(t, d, "list_users", nil))
	got := payload["users"].([]any)[0].(map[string]any)
	assert.Equal(t, user["updated_at"], got["updated_at"], "rejected update must not touch the row")
}

func TestUpdateUserNotFound(t *testing.T) {
	d := newTestDispatcher(t)

	resp := callTool(t, d, "update_user", map[string]any{"id": 9999, "name": "Ghost"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestDeleteUserReturnsPriorRow(t *testing.T) {
	d := newTestDispatcher(t)

	payload := toolPayload(t, callTool(t, d, "add_user", map[string]any{"name": "Bob", "email": "bob@example.com"}))
	id := payload["user"].(map[string]any)["id"].(float64)

	payload = toolPayload(t, callTool(t, d, "delete_user", map[string]any{"id": id}))
	assert.Equal(t, "Bob", payload["user"].(map[string]any)["name"])
	assert.Equal(t, true, payload["deleted"])

	resp := callTool(t, d, "delete_user", map[string]any{"id": id})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestAddProductTypeChecks(t *testing.T) {
	d := newTestDispatcher(t)

	resp := callTool(t, d, "add_product", map[string]any{"name": "Widget", "price": "cheap"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)

	resp = callTool(t, d, "add_product", map[string]any{"name": "Widget", "price": -5})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)

	payload := toolPayload(t, callTool(t, d, "add_product", map[string]any{
		"name":           "Widget",
		"price":          9.99,
		"stock_quantity": 5,
	}))
	product := payload["product"].(map[string]any)
	assert.Equal(t, 9.99, product["price"])
	assert.Equal(t, float64(5), product["stock_quantity"])
}

func TestUpdateProductPartial(t *testing.T) {
	d := newTestDispatcher(t)

	payload := toolPayload(t, callTool(t, d, "add_product", map[string]any{
		"name": "Laptop", "price": 1200.0, "stock_quantity": 10,
	}))
	id := payload["product"].(map[string]any)["id"].(float64)

	payload = toolPayload(t, callTool(t, d, "update_product", map[string]any{"id": id, "price": 999.0}))
	product := payload["product"].(map[string]any)
	assert.Equal(t, 999.0, product["price"])
	assert.Equal(t, float64(10), product["stock_quantity"], "untouched fields keep their values")
}
