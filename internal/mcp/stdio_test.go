package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioTransportRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		``,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add_user","arguments":{"name":"John","email":"john@example.com"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	tr := &StdioTransport{Dispatcher: d, In: strings.NewReader(in), Out: &out}
	require.NoError(t, tr.Run(context.Background()))

	// Responses may arrive in any order; index them by id.
	responses := map[float64]jsonrpcResponse{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp jsonrpcResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		id, ok := resp.ID.(float64)
		require.True(t, ok, "every frame on stdout must carry an id")
		responses[id] = resp
	}
	require.NoError(t, scanner.Err())
	require.Len(t, responses, 3, "notification and blank line produce no frames")

	init := responses[1]
	require.Nil(t, init.Error)
	result := init.Result.(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])

	list := responses[2]
	require.Nil(t, list.Error)
	tools := list.Result.(map[string]any)["tools"].([]any)
	assert.Len(t, tools, 8)

	call := responses[3]
	require.Nil(t, call.Error, "local transport is trusted; no extra credential needed")
}
