//go:build linux
// +build linux

// File: reactor/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP socket primitives used by the reactor.

package reactor

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// socket is a non-blocking TCP descriptor with cached addresses.
type socket struct {
	fd     int
	local  net.Addr
	remote net.Addr
}

func resolveTCP(address string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}
	return addr, nil
}

func toSockaddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To4())
		return sa, unix.AF_INET, nil
	}
	ip16 := addr.IP.To16()
	if ip16 == nil {
		return nil, 0, fmt.Errorf("unsupported address %v", addr)
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip16)
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return sa, unix.AF_INET6, nil
}

func fromSockaddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3]), Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		addr := &net.TCPAddr{IP: ip, Port: a.Port}
		if a.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				addr.Zone = ifi.Name
			}
		}
		return addr
	}
	return nil
}

func newStreamSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	return fd, nil
}

// listenTCP binds and listens on addr.
func listenTCP(addr *net.TCPAddr, backlog int) (*socket, error) {
	sa, family, err := toSockaddr(addr)
	if err != nil {
		return nil, err
	}
	fd, err := newStreamSocket(family)
	if err != nil {
		return nil, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %v: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen %v: %w", addr, err)
	}
	s := &socket{fd: fd}
	if lsa, err := unix.Getsockname(fd); err == nil {
		s.local = fromSockaddr(lsa)
	}
	return s, nil
}

// dialTCP starts a non-blocking connect. connected is false while the
// handshake is still in progress.
func dialTCP(addr *net.TCPAddr) (s *socket, connected bool, err error) {
	sa, family, err := toSockaddr(addr)
	if err != nil {
		return nil, false, err
	}
	fd, err := newStreamSocket(family)
	if err != nil {
		return nil, false, err
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	s = &socket{fd: fd, remote: addr}
	for {
		err = unix.Connect(fd, sa)
		if err != unix.EINTR {
			break
		}
	}
	switch err {
	case nil:
		s.refreshAddrs()
		return s, true, nil
	case unix.EINPROGRESS, unix.EALREADY:
		return s, false, nil
	default:
		_ = unix.Close(fd)
		return nil, false, fmt.Errorf("connect %v: %w", addr, err)
	}
}

// finishConnect reports the outcome of a pending connect.
func (s *socket) finishConnect() (bool, error) {
	soerr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	switch unix.Errno(soerr) {
	case 0:
		s.refreshAddrs()
		return true, nil
	case unix.EINPROGRESS, unix.EALREADY:
		return false, nil
	default:
		return false, fmt.Errorf("connect %v: %w", s.remote, unix.Errno(soerr))
	}
}

func (s *socket) refreshAddrs() {
	if sa, err := unix.Getsockname(s.fd); err == nil {
		s.local = fromSockaddr(sa)
	}
	if sa, err := unix.Getpeername(s.fd); err == nil {
		s.remote = fromSockaddr(sa)
	}
}

// accept returns nil when no connection is pending.
func (s *socket) accept() (*socket, error) {
	for {
		nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			child := &socket{fd: nfd, remote: fromSockaddr(sa)}
			if lsa, err := unix.Getsockname(nfd); err == nil {
				child.local = fromSockaddr(lsa)
			}
			return child, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return nil, nil
		default:
			return nil, fmt.Errorf("accept: %w", err)
		}
	}
}

func (s *socket) Fd() int              { return s.fd }
func (s *socket) LocalAddr() net.Addr  { return s.local }
func (s *socket) RemoteAddr() net.Addr { return s.remote }

// Read performs one non-blocking read.
func (s *socket) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("read: %w", err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write performs one non-blocking write.
func (s *socket) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("write: %w", err)
		}
		return n, nil
	}
}

func (s *socket) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
