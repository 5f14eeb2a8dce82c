package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

const (
	// RequestHeaderSize: client id(16) · version(1) · code(2) · payload length(4).
	RequestHeaderSize = identity.Size + 1 + 2 + 4
	// ResponseHeaderSize: version(1) · code(2) · payload length(4) · reserved(2).
	ResponseHeaderSize = 1 + 2 + 4 + 2

	// MaxPayload bounds the declared payload length of a single frame.
	MaxPayload = 1 << 20
)

// Header is the fixed part of a frame. ClientID is only carried by requests.
type Header struct {
	Request    bool
	ClientID   identity.ID
	Version    byte
	Code       Code
	PayloadLen uint32
}

// Size is the encoded size for the header's direction.
func (h Header) Size() int {
	if h.Request {
		return RequestHeaderSize
	}
	return ResponseHeaderSize
}

// Encode writes the header in wire order.
func (h Header) Encode() []byte {
	buf := make([]byte, h.Size())
	b := buf
	if h.Request {
		copy(b, h.ClientID[:])
		b = b[identity.Size:]
	}
	b[0] = h.Version
	binary.LittleEndian.PutUint16(b[1:3], uint16(h.Code))
	binary.LittleEndian.PutUint32(b[3:7], h.PayloadLen)
	return buf
}

// DecodeHeader parses a request or response header. The slice must be
// exactly the header size.
//
// On ErrUnknownCode the returned header is still filled in so the caller can
// skip the payload and keep the stream aligned.
func DecodeHeader(b []byte, request bool) (Header, error) {
	h := Header{Request: request}
	if len(b) != h.Size() {
		return Header{}, fmt.Errorf("%w: header is %d bytes, expected %d", ErrMalformedFrame, len(b), h.Size())
	}
	if request {
		copy(h.ClientID[:], b[:identity.Size])
		b = b[identity.Size:]
	}
	h.Version = b[0]
	h.Code = Code(binary.LittleEndian.Uint16(b[1:3]))
	h.PayloadLen = binary.LittleEndian.Uint32(b[3:7])

	if _, err := Lookup(h.Code); err != nil {
		return h, err
	}
	if h.PayloadLen > MaxPayload {
		return h, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformedFrame, h.PayloadLen, MaxPayload)
	}
	return h, nil
}
