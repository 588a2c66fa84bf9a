// File: internal/sock/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package sock provides the raw socket primitives under the TCP transport:
// listener creation, interruptible accept, exact-length read/write, and
// cross-goroutine shutdown. The transport needs the file descriptor (a
// blocked recv is interrupted by shutting the socket down from another
// goroutine, and accept is interrupted through a self-pipe), which is why
// this sits on x/sys rather than net.Conn.
package sock
