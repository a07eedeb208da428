// Package rpcwire implements the small slice of ONC-RPC (RFC 1057) wire
// format shared by the portmapper and VXI-11 Core services: XID handling,
// the fixed AUTH_NULL reply header, and TCP record marking. Neither service
// needs a general RPC codec, so this is deliberately not one.
package rpcwire

import "encoding/binary"

// XIDLen is the length in bytes of an RPC transaction ID.
const XIDLen = 4

// lastFragment marks the high bit of a TCP record-marking length header.
const lastFragment = 0x80000000

// XID extracts the 4-byte transaction ID from the front of an RPC call.
// The caller is responsible for having stripped any TCP record-marking
// header first.
func XID(call []byte) [XIDLen]byte {
	var xid [XIDLen]byte
	copy(xid[:], call[0:XIDLen])
	return xid
}

// Uint32 decodes a big-endian 32-bit integer.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// PutUint32 encodes v as a big-endian 32-bit integer.
func PutUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// ReplyHeader builds the fixed RPC reply header that precedes every
// procedure-specific response body: the caller's XID echoed back,
// message type REPLY, reply state MSG_ACCEPTED, an AUTH_NULL verifier,
// and accept state SUCCESS.
func ReplyHeader(xid [XIDLen]byte) []byte {
	hdr := make([]byte, 0, 24)
	hdr = append(hdr, xid[:]...)
	hdr = append(hdr, 0x00, 0x00, 0x00, 0x01) // Message Type: REPLY
	hdr = append(hdr, 0x00, 0x00, 0x00, 0x00) // Reply State: MSG_ACCEPTED
	hdr = append(hdr, 0x00, 0x00, 0x00, 0x00) // Verifier flavor: AUTH_NULL
	hdr = append(hdr, 0x00, 0x00, 0x00, 0x00) // Verifier length: 0
	hdr = append(hdr, 0x00, 0x00, 0x00, 0x00) // Accept State: SUCCESS
	return hdr
}

// Reply assembles a full RPC reply (header + body), optionally wrapped in a
// TCP record-marking header. UDP replies carry no record-marking prefix.
func Reply(xid [XIDLen]byte, body []byte, framed bool) []byte {
	msg := append(ReplyHeader(xid), body...)
	if !framed {
		return msg
	}
	return Frame(msg)
}

// Frame prepends the 4-byte big-endian record-marking header used on TCP.
// This implementation always emits a single last-fragment record, per the
// scope's expectations.
func Frame(payload []byte) []byte {
	hdr := PutUint32(lastFragment | uint32(len(payload)))
	out := make([]byte, 0, len(hdr)+len(payload))
	out = append(out, hdr...)
	out = append(out, payload...)
	return out
}

// StripFrame removes a TCP record-marking header from buf and reports the
// fragment length it announced, along with whether it was the last
// fragment in the record. buf must be at least 4 bytes long.
func StripFrame(buf []byte) (length uint32, last bool, rest []byte) {
	v := Uint32(buf[0:4])
	return v &^ lastFragment, v&lastFragment != 0, buf[4:]
}
