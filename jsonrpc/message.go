// File: jsonrpc/message.go
// Package jsonrpc implements JSON-RPC 2.0 message classification over the
// arena document model.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package jsonrpc

import (
	"math"

	"github.com/momentics/hioload-mcp/arena"
	"github.com/momentics/hioload-mcp/jsonval"
)

// Version is the protocol version string carried by every message.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MessageType classifies a single decoded message.
type MessageType int

const (
	MsgInvalid MessageType = iota
	MsgRequest
	MsgNotification
	MsgResponse
)

func (t MessageType) String() string {
	switch t {
	case MsgRequest:
		return "request"
	case MsgNotification:
		return "notification"
	case MsgResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Message is one classified JSON-RPC message. Node fields point into the
// parse arena and die with it.
type Message struct {
	Type       MessageType
	Method     string
	ID         uint64
	HasID      bool
	Params     *jsonval.Node // object or array, nil when absent
	Result     *jsonval.Node
	ErrCode    int
	ErrMessage string
}

// Classify maps a decoded JSON value to a message. Anything that is not a
// well-formed request, notification or response is Invalid.
func Classify(n *jsonval.Node) Message {
	if n == nil || n.Kind() != jsonval.Object {
		return Message{Type: MsgInvalid}
	}

	var msg Message
	if idNode, ok := n.Member("id"); ok {
		id, ok := numberToID(idNode)
		if !ok {
			return Message{Type: MsgInvalid}
		}
		msg.ID = id
		msg.HasID = true
	}

	if methodNode, ok := n.Member("method"); ok {
		if methodNode.Kind() != jsonval.String || methodNode.Str() == "" {
			return Message{Type: MsgInvalid}
		}
		msg.Method = methodNode.Str()
		if params, ok := n.Member("params"); ok {
			if k := params.Kind(); k != jsonval.Object && k != jsonval.Array {
				return Message{Type: MsgInvalid}
			}
			msg.Params = params
		}
		if msg.HasID {
			msg.Type = MsgRequest
		} else {
			msg.Type = MsgNotification
		}
		return msg
	}

	// No method: must be a response with exactly one of result/error.
	if !msg.HasID {
		return Message{Type: MsgInvalid}
	}
	result, hasResult := n.Member("result")
	errObj, hasError := n.Member("error")
	if hasResult == hasError {
		return Message{Type: MsgInvalid}
	}
	if hasResult {
		msg.Type = MsgResponse
		msg.Result = result
		return msg
	}
	if errObj.Kind() != jsonval.Object {
		return Message{Type: MsgInvalid}
	}
	codeNode, okCode := errObj.Member("code")
	msgNode, okMsg := errObj.Member("message")
	if !okCode || !okMsg || codeNode.Kind() != jsonval.Number ||
		msgNode.Kind() != jsonval.String {
		return Message{Type: MsgInvalid}
	}
	code := codeNode.Float()
	if code != math.Trunc(code) {
		return Message{Type: MsgInvalid}
	}
	msg.Type = MsgResponse
	msg.ErrCode = int(code)
	msg.ErrMessage = msgNode.Str()
	return msg
}

// numberToID converts a JSON number node to a uint64 id.
func numberToID(n *jsonval.Node) (uint64, bool) {
	if n.Kind() != jsonval.Number {
		return 0, false
	}
	f := n.Float()
	if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(f), true
}

// Decode parses payload in a and classifies it. A top-level array is a
// batch: each element classifies independently, so one bad element marks
// only itself invalid. An empty batch returns no messages with batch=true
// and a nil error; the caller answers it with one invalid-request error
// for the whole batch.
func Decode(payload []byte, a *arena.Arena) (msgs []Message, batch bool, err error) {
	root, err := jsonval.Parse(payload, a)
	if err != nil {
		return nil, false, err
	}
	if root.Kind() == jsonval.Array {
		if root.Len() == 0 {
			return nil, true, nil
		}
		msgs = make([]Message, root.Len())
		for i := range msgs {
			msgs[i] = Classify(root.Index(i))
		}
		return msgs, true, nil
	}
	return []Message{Classify(root)}, false, nil
}
