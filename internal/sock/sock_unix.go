// File: internal/sock/sock_unix.go
// Package sock
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux || darwin

package sock

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Socket is a connected or listening TCP socket handle.
type Socket int

// Invalid is the zero-value sentinel for Socket fields.
const Invalid Socket = -1

// CreateListener binds host:port with SO_REUSEADDR and starts listening.
func CreateListener(host string, port, backlog int) (Socket, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return Invalid, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return Invalid, fmt.Errorf("%w: socket: %v", ErrSocket, err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return Invalid, fmt.Errorf("%w: setsockopt: %v", ErrSocket, err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EADDRINUSE) {
			return Invalid, fmt.Errorf("%w: %s:%d", ErrAddressInUse, host, port)
		}
		return Invalid, fmt.Errorf("%w: bind: %v", ErrSocket, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return Invalid, fmt.Errorf("%w: listen: %v", ErrSocket, err)
	}
	return Socket(fd), nil
}

// resolveIPv4 maps a host string to 4 address bytes. Empty and "0.0.0.0"
// mean any-address.
func resolveIPv4(host string) ([]byte, error) {
	if host == "" || host == "0.0.0.0" {
		return []byte{0, 0, 0, 0}, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%w: %s is not IPv4", ErrResolveFailed, host)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolveFailed, host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w: no IPv4 address for %s", ErrResolveFailed, host)
}

// StopPipe interrupts a blocking Accept from another goroutine.
type StopPipe struct {
	r, w int
}

// NewStopPipe creates the self-pipe pair.
func NewStopPipe() (*StopPipe, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("%w: pipe: %v", ErrSocket, err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		unix.SetNonblock(fd, true)
	}
	return &StopPipe{r: fds[0], w: fds[1]}, nil
}

// Interrupt unblocks the accept poll. Safe to call more than once.
func (sp *StopPipe) Interrupt() {
	var one = [1]byte{1}
	unix.Write(sp.w, one[:])
}

// Close releases both pipe ends.
func (sp *StopPipe) Close() {
	unix.Close(sp.r)
	unix.Close(sp.w)
}

// Accept waits for a connection on ln, returning the connected socket and
// the peer address. A write to the stop pipe aborts the wait with
// ErrInterrupted.
func Accept(ln Socket, sp *StopPipe) (Socket, string, error) {
	for {
		fds := []unix.PollFd{
			{Fd: int32(ln), Events: unix.POLLIN},
			{Fd: int32(sp.r), Events: unix.POLLIN},
		}
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return Invalid, "", fmt.Errorf("%w: poll: %v", ErrSocket, err)
		}
		if fds[1].Revents&unix.POLLIN != 0 {
			var drain [8]byte
			unix.Read(sp.r, drain[:])
			return Invalid, "", ErrInterrupted
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		fd, sa, err := unix.Accept(int(ln))
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return Invalid, "", fmt.Errorf("%w: accept: %v", ErrSocket, err)
		}
		unix.CloseOnExec(fd)
		return Socket(fd), peerString(sa), nil
	}
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String() + ":" + strconv.Itoa(a.Port)
	case *unix.SockaddrInet6:
		return "[" + net.IP(a.Addr[:]).String() + "]:" + strconv.Itoa(a.Port)
	default:
		return "unknown"
	}
}

// ListenerPort reports the port a listener is bound to; useful when the
// caller asked for port 0.
func ListenerPort(s Socket) (int, error) {
	sa, err := unix.Getsockname(int(s))
	if err != nil {
		return 0, fmt.Errorf("%w: getsockname: %v", ErrSocket, err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	default:
		return 0, ErrSocket
	}
}

// SetNoDelay disables Nagle batching on a connected socket.
func SetNoDelay(s Socket) error {
	return unix.SetsockoptInt(int(s), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// RecvExact reads exactly len(buf) bytes. A closure before the full length
// arrives is ErrConnectionClosed, including the partial-read case.
func RecvExact(s Socket, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := unix.Read(int(s), buf[read:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("%w: recv: %v", ErrSocket, err)
		}
		if n == 0 {
			return ErrConnectionClosed
		}
		read += n
	}
	return nil
}

// SendExact writes all of buf.
func SendExact(s Socket, buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, err := unix.Write(int(s), buf[sent:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("%w: send: %v", ErrSocket, err)
		}
		sent += n
	}
	return nil
}

// Shutdown half-closes both directions, unblocking any recv in progress
// on another goroutine.
func Shutdown(s Socket) {
	unix.Shutdown(int(s), unix.SHUT_RDWR)
}

// Close releases the descriptor.
func Close(s Socket) {
	if s != Invalid {
		unix.Close(int(s))
	}
}
