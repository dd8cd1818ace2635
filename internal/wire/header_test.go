package wire

import (
	"math/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{PkgType: Request, MsgType: 0, MsgID: 0, FwdLength: 0, BodyLength: 0, DataLength: 0},
		{PkgType: Request, MsgType: 0x2A, MsgID: 0x1234, FwdLength: 0, BodyLength: 3, DataLength: 0},
		{PkgType: Response, MsgType: 1, MsgID: 1, FwdLength: 1 << 20, BodyLength: 255, DataLength: 70000},
		{PkgType: Push, MsgType: 0xFFFFFFFF, MsgID: 0xFFFFFFFFFFFFFFFF, FwdLength: 0x7FFFFF, BodyLength: 0x7FFFFF, DataLength: 0x7FFFFF},
	}
	for _, h := range cases {
		n, err := HeadLen(h)
		if err != nil {
			t.Fatalf("HeadLen(%+v): %v", h, err)
		}
		buf := make([]byte, n)
		if err := EncodeHeader(buf, h); err != nil {
			t.Fatalf("EncodeHeader(%+v): %v", h, err)
		}
		pkgType, w := decodeHeadBytes(buf[0], buf[1])
		got := decodeFields(pkgType, w, buf[2:])
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestHeaderRandomizedRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		h := Header{
			PkgType:    PackageType(1 + r.Intn(3)),
			MsgType:    r.Uint32(),
			MsgID:      r.Uint64(),
			FwdLength:  uint32(r.Intn(1 << 23)),
			BodyLength: uint32(r.Intn(1 << 23)),
			DataLength: uint32(r.Intn(1 << 26)),
		}
		n, err := HeadLen(h)
		if err != nil {
			t.Fatalf("HeadLen(%+v): %v", h, err)
		}
		buf := make([]byte, n)
		if err := EncodeHeader(buf, h); err != nil {
			t.Fatalf("EncodeHeader(%+v): %v", h, err)
		}
		pkgType, w := decodeHeadBytes(buf[0], buf[1])
		got := decodeFields(pkgType, w, buf[2:])
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestEncodeHeaderRejectsOversizeLength(t *testing.T) {
	h := Header{PkgType: Request, MsgType: 1, MsgID: 1, FwdLength: 1 << 24}
	if _, err := HeadLen(h); err == nil {
		t.Fatalf("expected ErrFieldTooWide for a 16MiB fwd length")
	}
}

func TestZeroLengthFieldsEncodeToZeroWidth(t *testing.T) {
	h := Header{PkgType: Request, MsgType: 5, MsgID: 9}
	n, err := HeadLen(h)
	if err != nil {
		t.Fatalf("HeadLen: %v", err)
	}
	// 2 head bytes + 1 (msg_type) + 1 (msg_id); fwd/body/data all absent.
	if n != 4 {
		t.Fatalf("HeadLen = %d, want 4", n)
	}
}
