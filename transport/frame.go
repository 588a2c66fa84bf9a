// File: transport/frame.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire framing: a 4-byte big-endian length prefix followed by that many
// bytes of UTF-8 JSON. No trailer, no checksum, no keep-alive frame.

package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/internal/sock"
)

// FrameHeaderSize is the length-prefix size in bytes.
const FrameHeaderSize = 4

// readFrameHeader reads the 4-byte prefix and validates the length
// against the configured bound.
func readFrameHeader(s sock.Socket, maxSize int) (int, error) {
	var hdr [FrameHeaderSize]byte
	if err := sock.RecvExact(s, hdr[:]); err != nil {
		return 0, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if int64(length) > int64(maxSize) {
		return 0, fmt.Errorf("%w: %d bytes (limit %d)", api.ErrFrameTooLarge, length, maxSize)
	}
	return int(length), nil
}

// writeFrame sends the prefix and payload. The per-connection handler is
// the only writer on its socket, so the two sends never interleave with
// another response.
func writeFrame(s sock.Socket, payload []byte) error {
	var hdr [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if err := sock.SendExact(s, hdr[:]); err != nil {
		return err
	}
	return sock.SendExact(s, payload)
}
