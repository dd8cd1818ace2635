package wire

import "github.com/raleighsl/raleighsl/internal/dbuf"

// Writer accumulates one or more outgoing frames over a dbuf.Writer. Each
// frame's header is encoded from the fwd/body/data lengths up front and
// written into a Mark reservation ahead of the payload sections.
type Writer struct {
	w *dbuf.Writer
}

// NewWriter returns a Writer backed by a 256-byte-node dbuf.Writer, sized
// for the common case of a small header plus a handful of coalesced
// payload fragments.
func NewWriter() *Writer {
	return &Writer{w: dbuf.NewWriter(dbuf.NodeSize256)}
}

// WriteFrame appends one complete frame (header + fwd + body + data) to the
// writer's pending output. fwd, body, and data are copied into the dbuf's
// pooled nodes; use WriteFrameRef to append a zero-copy data section
// instead.
func (wr *Writer) WriteFrame(pkgType PackageType, msgType uint32, msgID uint64, fwd, body, data []byte) error {
	h := Header{
		PkgType:    pkgType,
		MsgType:    msgType,
		MsgID:      msgID,
		FwdLength:  uint32(len(fwd)),
		BodyLength: uint32(len(body)),
		DataLength: uint32(len(data)),
	}
	headLen, err := HeadLen(h)
	if err != nil {
		return err
	}
	head := make([]byte, headLen)
	if err := EncodeHeader(head, h); err != nil {
		return err
	}
	mark := wr.w.Mark(headLen)
	mark.Write(head)
	if len(fwd) > 0 {
		wr.w.Add(fwd)
	}
	if len(body) > 0 {
		wr.w.Add(body)
	}
	if len(data) > 0 {
		wr.w.Add(data)
	}
	return nil
}

// WriteFrameRef is WriteFrame with data appended as a zero-copy reference
// (ref.IncRef/DecRef bracket its lifetime) rather than copied, for large
// payloads such as a flow read's byte range.
func (wr *Writer) WriteFrameRef(pkgType PackageType, msgType uint32, msgID uint64, fwd, body, data []byte, ref dbuf.RefCounted) error {
	h := Header{
		PkgType:    pkgType,
		MsgType:    msgType,
		MsgID:      msgID,
		FwdLength:  uint32(len(fwd)),
		BodyLength: uint32(len(body)),
		DataLength: uint32(len(data)),
	}
	headLen, err := HeadLen(h)
	if err != nil {
		return err
	}
	head := make([]byte, headLen)
	if err := EncodeHeader(head, h); err != nil {
		return err
	}
	mark := wr.w.Mark(headLen)
	mark.Write(head)
	if len(fwd) > 0 {
		wr.w.Add(fwd)
	}
	if len(body) > 0 {
		wr.w.Add(body)
	}
	if len(data) > 0 {
		wr.w.AddRef(data, ref)
	}
	return nil
}

// Len returns the number of bytes currently pending to be written out.
func (wr *Writer) Len() int { return wr.w.Len() }

// Reader returns a dbuf.Reader draining the writer's accumulated output,
// suitable for feeding a vectored write (e.g. via the poll engine's write
// callback).
func (wr *Writer) Reader() *dbuf.Reader { return dbuf.NewReader(wr.w) }
