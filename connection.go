package raleighsl

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/raleighsl/raleighsl/internal/dbuf"
	"github.com/raleighsl/raleighsl/internal/ioengine"
	"github.com/raleighsl/raleighsl/internal/wire"
)

// conn is one accepted client connection: a raw fd driven by the ioengine,
// a wire.Reader parsing inbound frames, and a wire.Writer accumulating
// outbound ones. It implements wire.Protocol directly, dispatching each
// fully-parsed request to the server and queuing the response.
type conn struct {
	srv *Server
	fd  int

	rd *wire.Reader
	mu sync.Mutex
	wr *wire.Writer

	readBuf [64 * 1024]byte
}

func newConn(srv *Server, fd int) *conn {
	c := &conn{srv: srv, fd: fd, wr: wire.NewWriter()}
	c.rd = wire.NewReader(c)
	return c
}

// Alloc is called once a request's header has parsed; there is nothing to
// pre-size here since dispatch works directly off the fwd/body/data slices
// handed to Publish.
func (c *conn) Alloc(h wire.Header) {}

// Publish runs once an inbound frame is fully buffered: it dispatches the
// request to the server and queues the encoded response, all while still on
// the poll goroutine that owns this connection's fd (mirroring the
// single-threaded-per-connection processing the poll engine's one-entity-
// one-dispatch model implies).
func (c *conn) Publish(h wire.Header, fwd, body, data []byte) error {
	respBody, respData := c.srv.dispatch(MsgType(h.MsgType), fwd, body, data)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wr.WriteFrame(wire.Response, h.MsgType, h.MsgID, nil, respBody, respData)
}

// vtable returns the ioengine.Vtable driving this connection's fd: Read
// pumps socket bytes into the wire reader (dispatch happens synchronously
// inside Feed->Publish), Write drains the pending wire writer via a
// vectored write, and HasData reports whether output remains queued.
func (c *conn) vtable() ioengine.Vtable {
	return ioengine.Vtable{
		Read: func(en *ioengine.Engine, ent *ioengine.Entity) error {
			return c.onRead()
		},
		Write: func(en *ioengine.Engine, ent *ioengine.Entity) error {
			return c.onWrite(ent)
		},
		HasData: func(ent *ioengine.Entity) bool {
			return c.hasData()
		},
	}
}

// onRead reads from the fd and feeds the bytes to the wire reader until the
// read returns EAGAIN or fills less than the whole read buffer.
func (c *conn) onRead() error {
	for {
		n, err := unix.Read(c.fd, c.readBuf[:])
		if n > 0 {
			if ferr := c.rd.Feed(c.readBuf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return errConnClosed
		}
		if n < len(c.readBuf) {
			return nil
		}
	}
}

// onWrite writes as much of the pending response output as the socket will
// currently accept, marking the entity write-pending if any remains so the
// >1s stale-write rule in ioengine can eventually force a retry.
func (c *conn) onWrite(ent *ioengine.Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rd := c.wr.Reader()
	for {
		iovs := rd.IOVecs(dbuf.NIOVS)
		if len(iovs) == 0 {
			ent.ClearWritePending()
			return nil
		}
		n, err := unix.Writev(c.fd, iovs)
		if n > 0 {
			rd.Remove(n)
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			ent.MarkWritePending()
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			ent.MarkWritePending()
			return nil
		}
	}
}

func (c *conn) hasData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wr.Len() > 0
}

// errConnClosed signals a clean peer-initiated close (read returned 0); the
// ioengine treats a non-nil Read error as "close this entity".
var errConnClosed = &Error{Op: "conn.read", Code: ErrCodeNoMemory, Msg: "connection closed by peer"}
