// File: jsonrpc/encode.go
// Package jsonrpc
// Author: momentics <momentics@gmail.com>
//
// Response encoders. Field order is fixed (jsonrpc, id, then result or
// error) and the id is rendered as the integer representation of a uint64.

package jsonrpc

import (
	"strconv"

	"github.com/momentics/hioload-mcp/jsonval"
)

func appendPrefix(dst []byte, id uint64) []byte {
	dst = append(dst, `{"jsonrpc":"2.0","id":`...)
	return strconv.AppendUint(dst, id, 10)
}

// EncodeResultRaw builds a success response embedding result verbatim;
// result must already be valid JSON.
func EncodeResultRaw(id uint64, result []byte) []byte {
	dst := appendPrefix(make([]byte, 0, 32+len(result)), id)
	dst = append(dst, `,"result":`...)
	dst = append(dst, result...)
	return append(dst, '}')
}

// EncodeResultNode builds a success response from a document node.
func EncodeResultNode(id uint64, result *jsonval.Node) []byte {
	return EncodeResultRaw(id, jsonval.Stringify(result))
}

// EncodeError builds an error response.
func EncodeError(id uint64, code int, message string) []byte {
	dst := appendPrefix(make([]byte, 0, 48+len(message)), id)
	dst = append(dst, `,"error":{"code":`...)
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, `,"message":`...)
	dst = AppendString(dst, message)
	return append(dst, `}}`...)
}

// AppendString appends s as a quoted, escaped JSON string.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c < 0x20:
			const hexDigits = "0123456789abcdef"
			dst = append(dst, '\\', 'u', '0', '0',
				hexDigits[c>>4], hexDigits[c&0xF])
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}
