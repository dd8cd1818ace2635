package raleighsl

import (
	"golang.org/x/sys/unix"

	"github.com/raleighsl/raleighsl/internal/wire"
)

// dgramResponder implements wire.Protocol for exactly one UDP packet: since
// spec.md §6's datagram transport is one-packet-one-frame (no reassembly),
// Feed-ing a whole packet to a fresh wire.Reader parses and publishes
// synchronously within this call.
type dgramResponder struct {
	srv  *Server
	fd   int
	addr unix.Sockaddr
}

func (d *dgramResponder) Alloc(h wire.Header) {}

func (d *dgramResponder) Publish(h wire.Header, fwd, body, data []byte) error {
	respBody, respData := d.srv.dispatch(MsgType(h.MsgType), fwd, body, data)
	wr := wire.NewWriter()
	if err := wr.WriteFrame(wire.Response, h.MsgType, h.MsgID, nil, respBody, respData); err != nil {
		return err
	}
	rd := wr.Reader()
	out := make([]byte, 0, rd.Remaining())
	for _, iov := range rd.IOVecs(1 << 20) {
		out = append(out, iov...)
	}
	return unix.Sendto(d.fd, out, 0, d.addr)
}

// dispatchDatagram parses pkt as one complete frame and sends the response
// back to addr.
func (s *Server) dispatchDatagram(fd int, addr unix.Sockaddr, pkt []byte) error {
	r := wire.NewReader(&dgramResponder{srv: s, fd: fd, addr: addr})
	return r.Feed(pkt)
}
