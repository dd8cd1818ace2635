package wire

import (
	"bytes"
	"errors"
	"testing"
)

// recordingProtocol captures every Alloc/Publish call a Reader makes, so
// tests can assert exactly how many frames were delivered and with what
// payloads.
type recordingProtocol struct {
	allocs    []Header
	published []publishedFrame
	failOn    int // if > 0, the failOn'th Publish call returns errPublish
}

type publishedFrame struct {
	header          Header
	fwd, body, data []byte
}

var errPublish = errors.New("wire: test publish failure")

func (p *recordingProtocol) Alloc(h Header) {
	p.allocs = append(p.allocs, h)
}

func (p *recordingProtocol) Publish(h Header, fwd, body, data []byte) error {
	p.published = append(p.published, publishedFrame{
		header: h,
		fwd:    append([]byte(nil), fwd...),
		body:   append([]byte(nil), body...),
		data:   append([]byte(nil), data...),
	})
	if p.failOn > 0 && len(p.published) == p.failOn {
		return errPublish
	}
	return nil
}

// encodeFrame builds the raw wire bytes for one frame: head bytes, the
// variable-width length fields, then fwd/body/data in order, per spec.md §6.
func encodeFrame(t *testing.T, pkgType PackageType, msgType uint32, msgID uint64, fwd, body, data []byte) []byte {
	t.Helper()
	h := Header{
		PkgType:    pkgType,
		MsgType:    msgType,
		MsgID:      msgID,
		FwdLength:  uint32(len(fwd)),
		BodyLength: uint32(len(body)),
		DataLength: uint32(len(data)),
	}
	n, err := HeadLen(h)
	if err != nil {
		t.Fatalf("HeadLen: %v", err)
	}
	buf := make([]byte, n)
	if err := EncodeHeader(buf, h); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	buf = append(buf, fwd...)
	buf = append(buf, body...)
	buf = append(buf, data...)
	return buf
}

// TestReaderScenario6 is spec.md §8 scenario 6: a request with an empty fwd,
// a 3-byte body, and an empty data section, fed to the reader one byte at a
// time. The trailing empty data section must not defer Publish to the next
// Feed call — exactly one Publish must fire as soon as the last body byte
// (the frame's last actual byte) is consumed.
func TestReaderScenario6(t *testing.T) {
	frame := encodeFrame(t, Request, 0x2A, 0x1234, nil, []byte{1, 2, 3}, nil)

	proto := &recordingProtocol{}
	r := NewReader(proto)
	for i, b := range frame {
		if err := r.Feed([]byte{b}); err != nil {
			t.Fatalf("Feed(byte %d): %v", i, err)
		}
	}

	if len(proto.published) != 1 {
		t.Fatalf("got %d Publish calls, want exactly 1", len(proto.published))
	}
	got := proto.published[0]
	if got.header.PkgType != Request || got.header.MsgType != 0x2A || got.header.MsgID != 0x1234 {
		t.Fatalf("published header = %+v, want pkg=request msg_type=0x2A msg_id=0x1234", got.header)
	}
	if len(got.fwd) != 0 {
		t.Fatalf("published fwd = %v, want empty", got.fwd)
	}
	if !bytes.Equal(got.body, []byte{1, 2, 3}) {
		t.Fatalf("published body = %v, want [1 2 3]", got.body)
	}
	if len(got.data) != 0 {
		t.Fatalf("published data = %v, want empty", got.data)
	}
	if len(proto.allocs) != 1 {
		t.Fatalf("got %d Alloc calls, want exactly 1", len(proto.allocs))
	}
}

// TestReaderAllSectionsEmpty covers a frame with no payload at all: Publish
// must fire the instant the header's fields finish decoding, without
// requiring any further bytes.
func TestReaderAllSectionsEmpty(t *testing.T) {
	frame := encodeFrame(t, Request, 1, 1, nil, nil, nil)

	proto := &recordingProtocol{}
	r := NewReader(proto)
	if err := r.Feed(frame); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(proto.published) != 1 {
		t.Fatalf("got %d Publish calls, want exactly 1", len(proto.published))
	}
	if len(proto.published[0].fwd) != 0 || len(proto.published[0].body) != 0 || len(proto.published[0].data) != 0 {
		t.Fatalf("published payload = %+v, want all empty", proto.published[0])
	}
}

// TestReaderEmptyFwdAndBody covers a frame whose fwd and body are both
// empty but whose data is not, fed one byte at a time, to make sure the
// skip-forward through multiple consecutive empty sections lands on the
// right state.
func TestReaderEmptyFwdAndBody(t *testing.T) {
	frame := encodeFrame(t, Push, 7, 99, nil, nil, []byte("payload"))

	proto := &recordingProtocol{}
	r := NewReader(proto)
	for i, b := range frame {
		if err := r.Feed([]byte{b}); err != nil {
			t.Fatalf("Feed(byte %d): %v", i, err)
		}
	}
	if len(proto.published) != 1 {
		t.Fatalf("got %d Publish calls, want exactly 1", len(proto.published))
	}
	got := proto.published[0]
	if len(got.fwd) != 0 || len(got.body) != 0 {
		t.Fatalf("published fwd/body = %q/%q, want both empty", got.fwd, got.body)
	}
	if string(got.data) != "payload" {
		t.Fatalf("published data = %q, want %q", got.data, "payload")
	}
}

// TestReaderEmptyTrailingSectionWholeChunk is the whole-chunk analogue of
// TestReaderScenario6: the same frame delivered in one Feed call rather than
// byte-at-a-time, confirming the fix doesn't depend on the byte-at-a-time
// framing of the bug report.
func TestReaderEmptyTrailingSectionWholeChunk(t *testing.T) {
	frame := encodeFrame(t, Response, 3, 4, []byte("fwd"), []byte("body"), nil)

	proto := &recordingProtocol{}
	r := NewReader(proto)
	if err := r.Feed(frame); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(proto.published) != 1 {
		t.Fatalf("got %d Publish calls, want exactly 1", len(proto.published))
	}
}

// TestReaderMultiFrameStream feeds several frames back to back in a single
// Feed call, including ones with empty trailing sections, and asserts each
// publishes exactly once in order.
func TestReaderMultiFrameStream(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeFrame(t, Request, 1, 1, nil, []byte("a"), nil)...)
	stream = append(stream, encodeFrame(t, Request, 2, 2, nil, nil, nil)...)
	stream = append(stream, encodeFrame(t, Request, 3, 3, []byte("f"), []byte("b"), []byte("d"))...)

	proto := &recordingProtocol{}
	r := NewReader(proto)
	if err := r.Feed(stream); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(proto.published) != 3 {
		t.Fatalf("got %d Publish calls, want exactly 3", len(proto.published))
	}
	wantMsgIDs := []uint64{1, 2, 3}
	for i, f := range proto.published {
		if f.header.MsgID != wantMsgIDs[i] {
			t.Fatalf("frame %d: msg_id = %d, want %d", i, f.header.MsgID, wantMsgIDs[i])
		}
	}
	if string(proto.published[2].fwd) != "f" || string(proto.published[2].body) != "b" || string(proto.published[2].data) != "d" {
		t.Fatalf("frame 2 payload = %+v, want fwd=f body=b data=d", proto.published[2])
	}
}

// TestReaderMultiFrameStreamByteAtATime drives the same multi-frame stream
// one byte at a time, the hardest case for the empty-trailing-section fix:
// a zero-length data section ending frame 2 must publish and cleanly reset
// the reader before frame 3's head bytes start arriving.
func TestReaderMultiFrameStreamByteAtATime(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeFrame(t, Request, 1, 1, nil, []byte("a"), nil)...)
	stream = append(stream, encodeFrame(t, Request, 2, 2, nil, nil, nil)...)
	stream = append(stream, encodeFrame(t, Request, 3, 3, []byte("f"), []byte("b"), []byte("d"))...)

	proto := &recordingProtocol{}
	r := NewReader(proto)
	for i, b := range stream {
		if err := r.Feed([]byte{b}); err != nil {
			t.Fatalf("Feed(byte %d): %v", i, err)
		}
	}
	if len(proto.published) != 3 {
		t.Fatalf("got %d Publish calls, want exactly 3", len(proto.published))
	}
}

// TestReaderPublishFailureEntersFailureState exercises the Protocol.Publish
// error path: a non-nil Publish error must move the reader to its failure
// state, and every subsequent Feed call must return ErrReaderFailed.
func TestReaderPublishFailureEntersFailureState(t *testing.T) {
	frame := encodeFrame(t, Request, 1, 1, nil, nil, nil)

	proto := &recordingProtocol{failOn: 1}
	r := NewReader(proto)
	if err := r.Feed(frame); !errors.Is(err, errPublish) {
		t.Fatalf("Feed: got %v, want errPublish", err)
	}
	if !r.Failed() {
		t.Fatalf("reader should be in failure state after a Publish error")
	}
	if err := r.Feed([]byte{0x00}); !errors.Is(err, ErrReaderFailed) {
		t.Fatalf("Feed after failure: got %v, want ErrReaderFailed", err)
	}
}
