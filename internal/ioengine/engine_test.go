package ioengine

import (
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/raleighsl/raleighsl/internal/netio"
)

func TestEngineDispatchesAcceptedConnection(t *testing.T) {
	lfd, err := netio.ListenStream("127.0.0.1:0")
	if err != nil {
		t.Skipf("listen unavailable in this sandbox: %v", err)
	}
	defer netio.Close(lfd)

	sa, err := unix.Getsockname(lfd)
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	port := sa.(*unix.SockaddrInet4).Port

	en, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer en.Close()

	accepted := make(chan int, 1)
	if _, err := en.Register(lfd, Vtable{
		Read: func(e *Engine, ent *Entity) error {
			fd, _, err := netio.Accept(ent.Fd())
			if err != nil {
				return nil
			}
			accepted <- fd
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfd, err := netio.DialStream("127.0.0.1:" + strconv.Itoa(port))
	if err != nil && err != unix.EINPROGRESS {
		t.Fatalf("dial: %v", err)
	}
	defer netio.Close(cfd)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		en.Poll(50)
		select {
		case fd := <-accepted:
			netio.Close(fd)
			if en.Histogram("ioread").Count() == 0 {
				t.Fatalf("expected ioread histogram to have observed the accept dispatch")
			}
			return
		default:
		}
	}
	t.Fatalf("did not observe accepted connection within deadline")
}

func TestEngineTimerFiresAndRearms(t *testing.T) {
	en, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer en.Close()

	var fires int64
	_, err = en.RegisterTimer(5*time.Millisecond, Vtable{
		Timeout: func(e *Engine, ent *Entity) int64 {
			atomic.AddInt64(&fires, 1)
			return 0
		},
	})
	if err != nil {
		t.Fatalf("RegisterTimer: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt64(&fires) < 3 {
		en.Poll(50)
	}
	if atomic.LoadInt64(&fires) < 3 {
		t.Fatalf("expected at least 3 timer fires, got %d", fires)
	}
	if en.Histogram("timeout").Count() == 0 {
		t.Fatalf("expected timeout histogram to have observations")
	}
}

func TestEngineTimerClosesOnNegativeReturn(t *testing.T) {
	en, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer en.Close()

	var fires int64
	ent, err := en.RegisterTimer(5*time.Millisecond, Vtable{
		Timeout: func(e *Engine, ent *Entity) int64 {
			atomic.AddInt64(&fires, 1)
			return -1
		},
	})
	if err != nil {
		t.Fatalf("RegisterTimer: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		en.Poll(20)
	}
	if atomic.LoadInt64(&fires) != 1 {
		t.Fatalf("expected exactly one fire before close, got %d", fires)
	}
	en.mu.Lock()
	_, stillRegistered := en.entities[ent.id]
	en.mu.Unlock()
	if stillRegistered {
		t.Fatalf("expected timer entity to be deregistered after closing")
	}
}

func TestEngineUserEventNotify(t *testing.T) {
	en, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer en.Close()

	var notified int64
	ent, err := en.RegisterUserEvent(Vtable{
		UEvent: func(e *Engine, ent *Entity) error {
			atomic.AddInt64(&notified, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterUserEvent: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		en.Notify(ent)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt64(&notified) == 0 {
		en.Poll(50)
	}
	if atomic.LoadInt64(&notified) == 0 {
		t.Fatalf("expected user event to be delivered")
	}
	if en.Histogram("event").Count() == 0 {
		t.Fatalf("expected event histogram to have observations")
	}
}
