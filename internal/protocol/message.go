package protocol

import (
	"fmt"

	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

// Message is a header plus its decoded body. Raw keeps the payload when a
// bodiless code arrives with bytes attached.
type Message struct {
	Header Header
	Body   Body
	Raw    []byte
}

// NewRequest builds a client request for code.
func NewRequest(client identity.ID, code Code, body Body) *Message {
	return &Message{
		Header: Header{Request: true, ClientID: client, Version: Version, Code: code},
		Body:   body,
	}
}

// NewResponse builds a server reply for code.
func NewResponse(code Code, body Body) *Message {
	return &Message{
		Header: Header{Version: Version, Code: code},
		Body:   body,
	}
}

// Failure is the generic failure reply.
func Failure() *Message {
	return NewResponse(UnknownFailure, nil)
}

// Unexpected reports a bodiless code that arrived with a payload.
func (m *Message) Unexpected() bool {
	return m.Body == nil && len(m.Raw) > 0
}

// Encode marshals the body, fixes up the payload length and returns the
// whole frame.
func (m *Message) Encode() ([]byte, error) {
	payload := m.Raw
	if m.Body != nil {
		var err error
		if payload, err = m.Body.Marshal(); err != nil {
			return nil, fmt.Errorf("encode %s: %w", m.Header.Code, err)
		}
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformedFrame, len(payload), MaxPayload)
	}

	m.Header.PayloadLen = uint32(len(payload))
	hdr := m.Header.Encode()
	frame := make([]byte, 0, len(hdr)+len(payload))
	frame = append(frame, hdr...)
	return append(frame, payload...), nil
}

// Decode pairs a decoded header with its payload.
func Decode(h Header, payload []byte) (*Message, error) {
	if uint32(len(payload)) != h.PayloadLen {
		return nil, fmt.Errorf("%w: declared %d payload bytes, got %d", ErrMalformedFrame, h.PayloadLen, len(payload))
	}
	e, err := Lookup(h.Code)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: h}
	if e.Body == BodyNone {
		if len(payload) > 0 {
			m.Raw = append([]byte(nil), payload...)
		}
		return m, nil
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingBody, h.Code)
	}

	if m.Body, err = DecodeBody(h.Code, payload); err != nil {
		return nil, err
	}
	return m, nil
}
