// File: mcp/dispatch.go
// Package mcp implements the JSON-RPC method dispatcher for the MCP
// server runtime: method registry, tool table, access control, and the
// transport message callback.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mcp

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/jsonrpc"
	"github.com/momentics/hioload-mcp/jsonval"
)

// CodeAccessDenied is the implementation-defined error for ACL rejections.
const CodeAccessDenied = -32001

// Handler processes a request's params and returns the raw JSON result.
// Scratch memory comes from a, which is valid for this message only.
type Handler func(params *jsonval.Node, a *arena.Arena) ([]byte, error)

// Dispatcher routes classified messages to registered handlers.
type Dispatcher struct {
	mu      sync.RWMutex
	methods map[string]Handler
	tools   *ToolRegistry
	acl     *AccessList
	log     *logrus.Entry
}

// DispatcherOption customizes construction.
type DispatcherOption func(*Dispatcher)

// WithAccessList gates tools/call through acl.
func WithAccessList(acl *AccessList) DispatcherOption {
	return func(d *Dispatcher) { d.acl = acl }
}

// WithDispatchLogger scopes dispatcher logging.
func WithDispatchLogger(log *logrus.Entry) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher creates a dispatcher with the built-in methods (ping,
// tools/list, tools/call) registered.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		methods: make(map[string]Handler),
		tools:   NewToolRegistry(),
		log:     logrus.NewEntry(logrus.StandardLogger()).WithField("component", "dispatch"),
	}
	for _, o := range opts {
		o(d)
	}
	d.methods["ping"] = d.handlePing
	d.methods["tools/list"] = d.handleToolsList
	d.methods["tools/call"] = d.handleToolsCall
	return d
}

// Register binds method to handler, replacing any previous binding.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	d.methods[method] = h
	d.mu.Unlock()
}

// Tools exposes the tool registry for registration.
func (d *Dispatcher) Tools() *ToolRegistry { return d.tools }

// HandleMessage is the transport message callback. The payload holds one
// framed JSON-RPC message or batch; the returned bytes (nil when every
// message was a notification) are the framed response. The connection
// always stays open: protocol-level failures answer with error responses.
func (d *Dispatcher) HandleMessage(payload []byte) ([]byte, bool, error) {
	a, scratch := d.messageArena()
	if scratch != nil {
		defer scratch.Destroy()
	}

	msgs, batch, err := jsonrpc.Decode(payload, a)
	if err != nil {
		return jsonrpc.EncodeError(0, jsonrpc.CodeParseError, err.Error()), true, nil
	}
	if batch && len(msgs) == 0 {
		// Empty batch is a single invalid-request for the whole batch.
		return jsonrpc.EncodeError(0, jsonrpc.CodeInvalidRequest, "empty batch"), true, nil
	}

	if !batch {
		return d.dispatchOne(msgs[0], a), true, nil
	}

	out := []byte{'['}
	count := 0
	for _, m := range msgs {
		resp := d.dispatchOne(m, a)
		if resp == nil {
			continue
		}
		if count > 0 {
			out = append(out, ',')
		}
		out = append(out, resp...)
		count++
	}
	if count == 0 {
		return nil, true, nil
	}
	return append(out, ']'), true, nil
}

// messageArena prefers the worker's bound arena (already reset by the
// transport); off-worker callers get a throwaway one.
func (d *Dispatcher) messageArena() (*arena.Arena, *arena.Arena) {
	if arena.ExistsOnCurrentThread() {
		return arena.Current(), nil
	}
	a := arena.New(0)
	return a, a
}

func (d *Dispatcher) dispatchOne(m jsonrpc.Message, a *arena.Arena) []byte {
	switch m.Type {
	case jsonrpc.MsgNotification:
		d.invoke(m, a)
		return nil
	case jsonrpc.MsgRequest:
		result, rpcErr := d.invoke(m, a)
		if rpcErr != nil {
			return jsonrpc.EncodeError(m.ID, rpcErr.code, rpcErr.message)
		}
		return jsonrpc.EncodeResultRaw(m.ID, result)
	case jsonrpc.MsgResponse:
		// A server has no outstanding calls; stray responses are dropped.
		d.log.WithField("id", m.ID).Debug("dropping unsolicited response")
		return nil
	default:
		id := uint64(0)
		if m.HasID {
			id = m.ID
		}
		return jsonrpc.EncodeError(id, jsonrpc.CodeInvalidRequest, "invalid request")
	}
}

type rpcError struct {
	code    int
	message string
}

func (d *Dispatcher) invoke(m jsonrpc.Message, a *arena.Arena) ([]byte, *rpcError) {
	d.mu.RLock()
	h, ok := d.methods[m.Method]
	d.mu.RUnlock()
	if !ok {
		return nil, &rpcError{jsonrpc.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", m.Method)}
	}
	result, err := h(m.Params, a)
	if err != nil {
		if re, ok := err.(*rpcError); ok {
			return nil, re
		}
		return nil, &rpcError{jsonrpc.CodeInternalError, err.Error()}
	}
	return result, nil
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.code, e.message)
}

func (d *Dispatcher) handlePing(_ *jsonval.Node, _ *arena.Arena) ([]byte, error) {
	return []byte(`"pong"`), nil
}
