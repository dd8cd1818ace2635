// Package netio provides the raw, non-blocking socket plumbing the event
// loop polls directly: address resolution plus bind/connect/accept helpers
// that hand back bare file descriptors (not net.Conn) so internal/ioengine
// can register them with epoll/kqueue itself, the way the original's
// socket layer hands descriptors to its own poll loop instead of going
// through a blocking stdlib net.Conn.
package netio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ResolveTCP resolves a "host:port" address to a unix.Sockaddr usable with
// Bind/Connect, and reports whether it resolved to an IPv6 address.
func ResolveTCP(address string) (sa unix.Sockaddr, isV6 bool, err error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, false, fmt.Errorf("netio: resolve %q: %w", address, err)
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa4 unix.SockaddrInet4
		copy(sa4.Addr[:], ip4)
		sa4.Port = addr.Port
		return &sa4, false, nil
	}
	var sa6 unix.SockaddrInet6
	copy(sa6.Addr[:], addr.IP.To16())
	sa6.Port = addr.Port
	return &sa6, true, nil
}

// ListenStream creates a non-blocking TCP listening socket bound to
// address, with SO_REUSEADDR set so a restarted server can rebind
// immediately.
func ListenStream(address string) (fd int, err error) {
	sa, isV6, err := ResolveTCP(address)
	if err != nil {
		return -1, err
	}
	domain := unix.AF_INET
	if isV6 {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: bind %q: %w", address, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: listen: %w", err)
	}
	return fd, nil
}

// Accept accepts a connection on listenFd, returning a non-blocking client
// fd. Callers should treat EAGAIN (via errors.Is(err, unix.EAGAIN)) as
// "no pending connection", not a failure.
func Accept(listenFd int) (fd int, addr unix.Sockaddr, err error) {
	fd, addr, err = unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, nil, err
	}
	return fd, addr, nil
}

// DialStream starts a non-blocking connect to address. A nil error paired
// with an immediately-usable fd means the connect completed synchronously
// (common for loopback); errors.Is(err, unix.EINPROGRESS) means the caller
// must wait for the fd to become writable before using it.
func DialStream(address string) (fd int, err error) {
	sa, isV6, err := ResolveTCP(address)
	if err != nil {
		return -1, err
	}
	domain := unix.AF_INET
	if isV6 {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: connect %q: %w", address, err)
	} else if err == unix.EINPROGRESS {
		return fd, unix.EINPROGRESS
	}
	return fd, nil
}

// ListenDatagram creates a non-blocking bound UDP socket.
func ListenDatagram(address string) (fd int, err error) {
	sa, isV6, err := ResolveTCP(address)
	if err != nil {
		return -1, err
	}
	domain := unix.AF_INET
	if isV6 {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: bind %q: %w", address, err)
	}
	return fd, nil
}

// ListenUnix creates a non-blocking unix-domain stream listener at path,
// removing any stale socket file left behind by a previous instance before
// binding (mirroring the "unlink-then-bind" convention the original's unix
// listener follows, since AF_UNIX has no SO_REUSEADDR equivalent).
func ListenUnix(path string) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	_ = unix.Unlink(path)
	sa := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: bind %q: %w", path, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netio: listen: %w", err)
	}
	return fd, nil
}

// SetNonblocking ensures fd is in non-blocking mode; used for fds obtained
// from a source (e.g. inherited listeners) that doesn't already guarantee
// it the way SOCK_NONBLOCK at creation does.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// Close closes fd, ignoring EBADF/EINTR races during shutdown.
func Close(fd int) error {
	err := unix.Close(fd)
	if err == unix.EBADF || err == unix.EINTR {
		return nil
	}
	return err
}
