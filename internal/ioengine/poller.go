package ioengine

import "time"

// pollEvent is one readiness notification returned by poller.wait. fd is
// the same identifier addFd/addTimer/addUserEvent handed back, regardless
// of whether it backs a real socket, a timerfd, an eventfd, or (on the
// kqueue backend) a synthetic ident with no real fd at all.
type pollEvent struct {
	fd       int
	readable bool
	writable bool
	hangup   bool
}

// poller is the OS-specific readiness backend an Engine drives. Exactly one
// implementation is compiled in per platform (poller_linux.go's epoll,
// poller_bsd.go's kqueue).
type poller interface {
	addFd(fd int, readable, writable bool) error
	modifyFd(fd int, readable, writable bool) error
	removeFd(fd int) error

	// addTimer registers a new timer firing every period and returns its id.
	addTimer(period time.Duration) (id int, err error)
	rearmTimer(id int, period time.Duration) error
	removeTimer(id int) error

	// addUserEvent registers a new user-triggerable entity and returns its id.
	addUserEvent() (id int, err error)
	triggerUserEvent(id int) error
	removeUserEvent(id int) error

	wait(timeoutMs int) ([]pollEvent, error)
	close() error
}
