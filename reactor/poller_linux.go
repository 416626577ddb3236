//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) readiness poller with an eventfd wakeup handle.

package reactor

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-rpc/api"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// poller wraps one epoll instance. Level-triggered, so a listener that
// leaves data unread is polled again on the next iteration.
type poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	ready  []unix.EpollEvent
}

func newPoller(maxEvents int) (*poller, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]unix.EpollEvent, 0, maxEvents),
	}, nil
}

// epollEvents translates interest ops into epoll flags.
func epollEvents(ops api.Op) uint32 {
	var ev uint32
	if ops&(api.OpRead|api.OpAccept) != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if ops&(api.OpWrite|api.OpConnect) != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// readyOps intersects the reported events with the key's interest, the way
// a selector computes ready operations. Errors and hang-ups make every
// interested operation ready so the listener observes the failure.
func readyOps(events uint32, interest api.Op) api.Op {
	var ready api.Op
	failed := events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
	if failed || events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		ready |= interest & (api.OpRead | api.OpAccept)
	}
	if failed || events&unix.EPOLLOUT != 0 {
		ready |= interest & (api.OpWrite | api.OpConnect)
	}
	return ready
}

func (p *poller) add(fd int, ops api.Op) error {
	ev := unix.EpollEvent{Events: epollEvents(ops), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *poller) modify(fd int, ops api.Op) error {
	ev := unix.EpollEvent{Events: epollEvents(ops), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (p *poller) remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// wait blocks up to timeoutMs and returns the ready events, excluding the
// wakeup handle. The returned slice is reused by the next call.
func (p *poller) wait(timeoutMs int) ([]unix.EpollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		if int(p.events[i].Fd) == p.wakefd {
			p.drainWakeup()
			continue
		}
		p.ready = append(p.ready, p.events[i])
	}
	return p.ready, nil
}

// wakeup interrupts a blocked wait.
func (p *poller) wakeup() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if err == unix.EAGAIN {
		// counter saturated; a wakeup is already pending
		return nil
	}
	if err != nil {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (p *poller) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != unix.EINTR {
			return
		}
	}
}

// close releases the epoll instance and the wakeup handle.
func (p *poller) close() error {
	return multierr.Combine(unix.Close(p.wakefd), unix.Close(p.epfd))
}
