//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package ioengine

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// syntheticIDBase separates kqueue idents that don't back a real fd (timers,
// user events) from real socket fds, which on every supported BSD/Darwin are
// bounded well below this by RLIMIT_NOFILE. Collisions are not otherwise
// possible to rule out from userspace without a dup'd placeholder fd per
// timer, which kqueue's EVFILT_TIMER/EVFILT_USER make unnecessary.
const syntheticIDBase = 1 << 28

// kqueuePoller is the BSD/Darwin poller backend. Timers and user events ride
// EVFILT_TIMER/EVFILT_USER directly by ident, with no backing fd at all,
// unlike the Linux backend's timerfd/eventfd approach.
type kqueuePoller struct {
	kq int

	mu     sync.Mutex
	nextID int
	evbuf  []unix.Kevent_t
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &kqueuePoller{kq: kq, nextID: syntheticIDBase, evbuf: make([]unix.Kevent_t, 256)}, nil
}

func (p *kqueuePoller) changes(changes []unix.Kevent_t) error {
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) addFd(fd int, readable, writable bool) error {
	var evs []unix.Kevent_t
	if readable {
		evs = append(evs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR})
	}
	if writable {
		evs = append(evs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR})
	} else {
		evs = append(evs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	for _, ev := range evs {
		p.changes([]unix.Kevent_t{ev})
	}
	return nil
}

func (p *kqueuePoller) modifyFd(fd int, readable, writable bool) error {
	return p.addFd(fd, readable, writable)
}

func (p *kqueuePoller) removeFd(fd int) error {
	evs := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	p.changes(evs)
	return nil
}

func (p *kqueuePoller) allocID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	return id
}

func (p *kqueuePoller) addTimer(period time.Duration) (int, error) {
	id := p.allocID()
	ev := unix.Kevent_t{
		Ident:  uint64(id),
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
		Fflags: unix.NOTE_NSECONDS,
		Data:   period.Nanoseconds(),
	}
	if err := p.changes([]unix.Kevent_t{ev}); err != nil {
		return -1, fmt.Errorf("kevent add timer: %w", err)
	}
	return id, nil
}

func (p *kqueuePoller) rearmTimer(id int, period time.Duration) error {
	ev := unix.Kevent_t{
		Ident:  uint64(id),
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
		Fflags: unix.NOTE_NSECONDS,
		Data:   period.Nanoseconds(),
	}
	return p.changes([]unix.Kevent_t{ev})
}

func (p *kqueuePoller) removeTimer(id int) error {
	ev := unix.Kevent_t{Ident: uint64(id), Filter: unix.EVFILT_TIMER, Flags: unix.EV_DELETE}
	return p.changes([]unix.Kevent_t{ev})
}

func (p *kqueuePoller) addUserEvent() (int, error) {
	id := p.allocID()
	ev := unix.Kevent_t{Ident: uint64(id), Filter: unix.EVFILT_USER, Flags: unix.EV_ADD | unix.EV_CLEAR}
	if err := p.changes([]unix.Kevent_t{ev}); err != nil {
		return -1, fmt.Errorf("kevent add user event: %w", err)
	}
	return id, nil
}

func (p *kqueuePoller) triggerUserEvent(id int) error {
	ev := unix.Kevent_t{Ident: uint64(id), Filter: unix.EVFILT_USER, Fflags: unix.NOTE_TRIGGER}
	return p.changes([]unix.Kevent_t{ev})
}

func (p *kqueuePoller) removeUserEvent(id int) error {
	ev := unix.Kevent_t{Ident: uint64(id), Filter: unix.EVFILT_USER, Flags: unix.EV_DELETE}
	return p.changes([]unix.Kevent_t{ev})
}

func (p *kqueuePoller) wait(timeoutMs int) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(time.Millisecond))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.evbuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("kevent wait: %w", err)
	}
	out := make([]pollEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := p.evbuf[i]
		pe := pollEvent{fd: int(ev.Ident)}
		switch ev.Filter {
		case unix.EVFILT_READ:
			pe.readable = true
		case unix.EVFILT_WRITE:
			pe.writable = true
		case unix.EVFILT_TIMER:
			pe.readable = true
		case unix.EVFILT_USER:
			pe.readable = true
		}
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			pe.hangup = true
		}
		out = append(out, pe)
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
