// File: mcp/dispatch_test.go
// Author: momentics <momentics@gmail.com>

package mcp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/jsonval"
)

func handle(t *testing.T, d *Dispatcher, payload string) string {
	t.Helper()
	resp, keepOpen, err := d.HandleMessage([]byte(payload))
	require.NoError(t, err)
	require.True(t, keepOpen)
	return string(resp)
}

func TestDispatch_PingRoundTrip(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d, `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`)
	require.Equal(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, resp)
}

func TestDispatch_ParseError(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d, `{"jsonrpc":"2.0","id":2,"method":`)
	require.Contains(t, resp, `"code":-32700`)

	// The connection stays usable: a subsequent valid request works.
	resp = handle(t, d, `{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	require.Equal(t, `{"jsonrpc":"2.0","id":3,"result":"pong"}`, resp)
}

func TestDispatch_MethodNotFound(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d, `{"jsonrpc":"2.0","id":4,"method":"nope"}`)
	require.Contains(t, resp, `"code":-32601`)
	require.Contains(t, resp, `"id":4`)
}

func TestDispatch_InvalidRequest(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d, `{"id":9}`)
	require.Contains(t, resp, `"code":-32600`)
}

func TestDispatch_NotificationProducesNoResponse(t *testing.T) {
	called := false
	d := NewDispatcher()
	d.Register("note", func(*jsonval.Node, *arena.Arena) ([]byte, error) {
		called = true
		return []byte(`null`), nil
	})
	resp, keepOpen, err := d.HandleMessage([]byte(`{"jsonrpc":"2.0","method":"note"}`))
	require.NoError(t, err)
	require.True(t, keepOpen)
	require.Nil(t, resp)
	require.True(t, called)
}

func TestDispatch_Batch(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d,
		`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"ping"},{"nope":1}]`)
	require.Equal(t,
		`[{"jsonrpc":"2.0","id":1,"result":"pong"},`+
			`{"jsonrpc":"2.0","id":0,"error":{"code":-32600,"message":"invalid request"}}]`,
		resp)
}

func TestDispatch_EmptyBatch(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d, `[]`)
	require.Contains(t, resp, `"code":-32600`)
	require.Contains(t, resp, "empty batch")
}

func TestDispatch_CustomHandlerError(t *testing.T) {
	d := NewDispatcher()
	d.Register("fail", func(*jsonval.Node, *arena.Arena) ([]byte, error) {
		return nil, fmt.Errorf("kaput")
	})
	resp := handle(t, d, `{"jsonrpc":"2.0","id":5,"method":"fail"}`)
	require.Contains(t, resp, `"code":-32603`)
	require.Contains(t, resp, "kaput")
}

func TestDispatch_HandlerUsesParams(t *testing.T) {
	d := NewDispatcher()
	d.Register("sum", func(params *jsonval.Node, a *arena.Arena) ([]byte, error) {
		total := 0.0
		for i := 0; i < params.Len(); i++ {
			total += params.Index(i).Float()
		}
		return []byte(fmt.Sprintf("%g", total)), nil
	})
	resp := handle(t, d, `{"jsonrpc":"2.0","id":6,"method":"sum","params":[1,2,3]}`)
	require.Equal(t, `{"jsonrpc":"2.0","id":6,"result":6}`, resp)
}

func TestTools_ListAndCall(t *testing.T) {
	d := NewDispatcher()
	d.Tools().Register(Tool{
		Name:        "echo",
		Description: "echoes its arguments",
		Fn: func(args *jsonval.Node, a *arena.Arena) ([]byte, error) {
			return jsonval.Stringify(args), nil
		},
	})

	resp := handle(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Contains(t, resp, `"name":"echo"`)
	require.Contains(t, resp, `"description":"echoes its arguments"`)

	resp = handle(t, d,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`)
	require.Equal(t, `{"jsonrpc":"2.0","id":2,"result":{"x":1}}`, resp)
}

func TestTools_CallUnknown(t *testing.T) {
	d := NewDispatcher()
	resp := handle(t, d,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ghost"}}`)
	require.Contains(t, resp, `"code":-32601`)
}

func TestTools_AccessDenied(t *testing.T) {
	acl := NewAccessList(true)
	acl.Deny("secret")

	d := NewDispatcher(WithAccessList(acl))
	d.Tools().Register(Tool{Name: "secret", Fn: func(*jsonval.Node, *arena.Arena) ([]byte, error) {
		return []byte(`null`), nil
	}})

	resp := handle(t, d,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"secret"}}`)
	require.Contains(t, resp, `"code":-32001`)
}

func TestAccessList_Defaults(t *testing.T) {
	allow := NewAccessList(true)
	require.True(t, allow.Allowed("anything"))
	allow.Deny("x")
	require.False(t, allow.Allowed("x"))

	deny := NewAccessList(false)
	require.False(t, deny.Allowed("anything"))
	deny.Allow("y")
	require.True(t, deny.Allowed("y"))
}
