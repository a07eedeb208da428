package rpcwire

import (
	"bytes"
	"testing"
)

func TestXID(t *testing.T) {
	call := []byte{0x01, 0x02, 0x03, 0x04, 0xaa, 0xbb}
	xid := XID(call)
	if !bytes.Equal(xid[:], []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("got %x", xid)
	}
}

func TestUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 395183, 0xffffffff} {
		if got := Uint32(PutUint32(v)); got != v {
			t.Errorf("PutUint32/Uint32(%d) = %d", v, got)
		}
	}
}

func TestReplyHeaderEchoesXID(t *testing.T) {
	xid := [4]byte{0xde, 0xad, 0xbe, 0xef}
	hdr := ReplyHeader(xid)
	if len(hdr) != 24 {
		t.Fatalf("header length = %d, want 24", len(hdr))
	}
	if !bytes.Equal(hdr[0:4], xid[:]) {
		t.Fatalf("header does not echo xid: %x", hdr[0:4])
	}
	// Message type REPLY(1), reply state MSG_ACCEPTED(0), AUTH_NULL
	// verifier (flavor 0, length 0), accept state SUCCESS(0).
	want := []byte{
		0, 0, 0, 1,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	if !bytes.Equal(hdr[4:], want) {
		t.Fatalf("header body = %x, want %x", hdr[4:], want)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for size := 0; size <= 8192; size += 511 {
		payload := bytes.Repeat([]byte{0x42}, size)
		framed := Frame(payload)
		if len(framed) != size+4 {
			t.Fatalf("size %d: framed length = %d", size, len(framed))
		}
		v := Uint32(framed[0:4])
		if v&0x80000000 == 0 {
			t.Fatalf("size %d: last-fragment bit not set", size)
		}
		if v&0x7fffffff != uint32(size) {
			t.Fatalf("size %d: length field = %d", size, v&0x7fffffff)
		}
		if !bytes.Equal(framed[4:], payload) {
			t.Fatalf("size %d: payload mismatch", size)
		}
	}
}

func TestStripFrame(t *testing.T) {
	payload := []byte("hello")
	framed := Frame(payload)
	length, last, rest := StripFrame(framed)
	if length != uint32(len(payload)) {
		t.Errorf("length = %d, want %d", length, len(payload))
	}
	if !last {
		t.Errorf("last fragment flag not set")
	}
	if !bytes.Equal(rest, payload) {
		t.Errorf("rest = %q, want %q", rest, payload)
	}
}
