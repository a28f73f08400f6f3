package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()

	wantOrder := []string{
		"list_users", "list_products",
		"add_user", "add_product",
		"update_user", "update_product",
		"delete_user", "delete_product",
	}

	tools := r.List()
	require.Len(t, tools, len(wantOrder))
	for i, name := range wantOrder {
		assert.Equal(t, name, tools[i]["name"])
	}
}

func TestRegistryListIdempotent(t *testing.T) {
	r := NewRegistry()

	first, err := json.Marshal(r.List())
	require.NoError(t, err)
	second, err := json.Marshal(r.List())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()

	desc, ok := r.Describe("add_user")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "email"}, desc.Required)

	desc, ok = r.Describe("add_product")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "price"}, desc.Required)

	for _, name := range []string{"update_user", "update_product", "delete_user", "delete_product"} {
		desc, ok = r.Describe(name)
		require.True(t, ok, name)
		assert.Equal(t, []string{"id"}, desc.Required, name)
	}

	_, ok = r.Describe("drop_tables")
	assert.False(t, ok)
}
