package wire

import "errors"

// ErrReaderFailed is returned by Feed once the reader has entered its
// failure state; the connection should be closed and a fresh Reader used if
// the session is restarted.
var ErrReaderFailed = errors.New("wire: reader in failure state")

// Protocol receives a Reader's parsed frames. Alloc fires once the header
// has fully parsed, before the payload sections are read, mirroring
// ipc-msg's alloc-on-head-parsed hook so the consumer can size/reserve
// buffers ahead of the copy; Publish fires once fwd/body/data are fully
// buffered. A non-nil Publish error moves the Reader to its failure state.
type Protocol interface {
	Alloc(h Header)
	Publish(h Header, fwd, body, data []byte) error
}

type readState int

const (
	stateHead readState = iota
	stateFields
	stateFwd
	stateBody
	stateData
	stateFailure
)

// Reader incrementally parses frames out of a byte stream fed via Feed,
// one state at a time: READ_HEAD -> READ_FIELDS -> READ_FWD -> READ_BODY ->
// READ_DATA -> publish -> READ_HEAD, or READ_FAILURE on a malformed header
// (a reserved package type) or a Publish error.
// Unlike a single blocking read, Feed accepts whatever chunk the caller has
// on hand (e.g. straight off a non-blocking socket read) and buffers partial
// state across calls.
type Reader struct {
	proto Protocol
	state readState

	headBuf [2]byte
	headLen int

	pkgType PackageType
	w       widths

	fieldBuf []byte
	fieldLen int

	header Header
	fwd    []byte
	body   []byte
	data   []byte
	got    int // bytes filled into the section currently being read
}

// NewReader returns a Reader that delivers parsed frames to proto.
func NewReader(proto Protocol) *Reader {
	return &Reader{proto: proto}
}

// Feed hands the reader the next chunk of bytes read off the wire. It may
// complete zero, one, or many frames depending on how much data is
// supplied, calling proto.Alloc/proto.Publish synchronously for each.
func (r *Reader) Feed(data []byte) error {
	for len(data) > 0 {
		switch r.state {
		case stateHead:
			n := copy(r.headBuf[r.headLen:], data)
			r.headLen += n
			data = data[n:]
			if r.headLen == 2 {
				r.pkgType, r.w = decodeHeadBytes(r.headBuf[0], r.headBuf[1])
				if r.pkgType < Request || r.pkgType > Push {
					r.state = stateFailure
					return ErrReaderFailed
				}
				r.fieldBuf = make([]byte, r.w.fieldsLen())
				r.fieldLen = 0
				r.state = stateFields
			}

		case stateFields:
			n := copy(r.fieldBuf[r.fieldLen:], data)
			r.fieldLen += n
			data = data[n:]
			if r.fieldLen == len(r.fieldBuf) {
				if err := r.finishFields(); err != nil {
					return err
				}
			}

		case stateFwd:
			n := copy(r.fwd[r.got:], data)
			r.got += n
			data = data[n:]
			if r.got == len(r.fwd) {
				if err := r.completeSection(); err != nil {
					return err
				}
			}

		case stateBody:
			n := copy(r.body[r.got:], data)
			r.got += n
			data = data[n:]
			if r.got == len(r.body) {
				if err := r.completeSection(); err != nil {
					return err
				}
			}

		case stateData:
			n := copy(r.data[r.got:], data)
			r.got += n
			data = data[n:]
			if r.got == len(r.data) {
				if err := r.completeSection(); err != nil {
					return err
				}
			}

		case stateFailure:
			return ErrReaderFailed
		}
	}
	return nil
}

// finishFields decodes the buffered field bytes into a Header, allocates the
// payload sections, and advances to the first non-empty one — via
// completeSection, so a frame whose fwd section (and possibly body and data
// too) is zero-length publishes immediately instead of waiting on a section
// that will never receive any bytes.
func (r *Reader) finishFields() error {
	r.header = decodeFields(r.pkgType, r.w, r.fieldBuf)
	r.proto.Alloc(r.header)
	r.fwd = make([]byte, r.header.FwdLength)
	r.body = make([]byte, r.header.BodyLength)
	r.data = make([]byte, r.header.DataLength)
	r.got = 0
	r.state = stateFwd
	if len(r.fwd) == 0 {
		return r.completeSection()
	}
	return nil
}

// completeSection is called once the section named by r.state has been
// filled to its declared length (including the trivial zero-length case,
// where it is called before any byte of that section was ever copied). It
// steps forward through any run of immediately-following zero-length
// sections and publishes as soon as it reaches a fully-filled data section,
// so the last non-empty section of a frame completing — even with no
// further bytes available in the current Feed call — still yields exactly
// one Publish rather than stalling until the next byte arrives.
func (r *Reader) completeSection() error {
	for {
		switch r.state {
		case stateFwd:
			r.got = 0
			r.state = stateBody
			if len(r.body) != 0 {
				return nil
			}
		case stateBody:
			r.got = 0
			r.state = stateData
			if len(r.data) != 0 {
				return nil
			}
		case stateData:
			if err := r.publish(); err != nil {
				r.state = stateFailure
				return err
			}
			r.reset()
			return nil
		default:
			return nil
		}
	}
}

func (r *Reader) publish() error {
	return r.proto.Publish(r.header, r.fwd, r.body, r.data)
}

// reset prepares the reader for the next frame's head bytes.
func (r *Reader) reset() {
	r.headLen = 0
	r.fieldBuf = nil
	r.fieldLen = 0
	r.fwd, r.body, r.data = nil, nil, nil
	r.got = 0
	r.state = stateHead
}

// Failed reports whether the reader has entered its failure state.
func (r *Reader) Failed() bool { return r.state == stateFailure }
