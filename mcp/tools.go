// File: mcp/tools.go
// Package mcp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Tool registry and the tools/list, tools/call built-ins.

package mcp

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/jsonrpc"
	"github.com/momentics/hioload-mcp/jsonval"
)

// ToolFunc executes one tool call. args is the "arguments" object of the
// request (nil when absent); the returned bytes are the raw JSON result.
type ToolFunc func(args *jsonval.Node, a *arena.Arena) ([]byte, error)

// Tool is one registered tool.
type Tool struct {
	Name        string
	Description string
	Fn          ToolFunc
}

// ToolRegistry holds tools in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	r.mu.Unlock()
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List snapshots the registered tools in registration order.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (d *Dispatcher) handleToolsList(_ *jsonval.Node, _ *arena.Arena) ([]byte, error) {
	out := []byte(`{"tools":[`)
	for i, t := range d.tools.List() {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, `{"name":`...)
		out = jsonrpc.AppendString(out, t.Name)
		out = append(out, `,"description":`...)
		out = jsonrpc.AppendString(out, t.Description)
		out = append(out, '}')
	}
	return append(out, `]}`...), nil
}

func (d *Dispatcher) handleToolsCall(params *jsonval.Node, a *arena.Arena) ([]byte, error) {
	if params == nil {
		return nil, &rpcError{jsonrpc.CodeInvalidParams, "missing params"}
	}
	nameNode, ok := params.Member("name")
	if !ok || nameNode.Kind() != jsonval.String {
		return nil, &rpcError{jsonrpc.CodeInvalidParams, "missing tool name"}
	}
	name := nameNode.Str()

	if d.acl != nil && !d.acl.Allowed(name) {
		return nil, &rpcError{CodeAccessDenied,
			fmt.Sprintf("access denied: %s", name)}
	}
	tool, ok := d.tools.Get(name)
	if !ok {
		return nil, &rpcError{jsonrpc.CodeMethodNotFound,
			fmt.Sprintf("unknown tool: %s", name)}
	}

	var args *jsonval.Node
	if argsNode, ok := params.Member("arguments"); ok {
		args = argsNode
	}
	return tool.Fn(args, a)
}
