package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"golang.org/x/crypto/cryptobyte"
)

const (
	// MaxFieldSize bounds each NUL-terminated registration field, terminator included.
	MaxFieldSize = 255
	// MaxRegisterSize bounds the whole registration body.
	MaxRegisterSize = 2 * MaxFieldSize

	KeyRequestSize    = identity.Size + envelope.NonceSize
	KeyResponseSize   = identity.Size + envelope.SessionKeySize + envelope.TicketSize
	SubmitTicketSize  = envelope.AuthenticatorSize + envelope.TicketSize
	sendMessagePrefix = 4 + envelope.IVSize
)

// Body is the closed set of message bodies. Each code maps to exactly one
// implementation through DecodeBody.
type Body interface {
	Kind() BodyKind
	Marshal() ([]byte, error)
	isBody()
}

// RegisterBody asks the authentication server to create a client.
type RegisterBody struct {
	Name     string
	Password *secret.Bytes
}

// IdentityBody answers a successful registration.
type IdentityBody struct {
	ID identity.ID
}

// KeyRequestBody asks for a session key and ticket for ServerID.
type KeyRequestBody struct {
	ServerID identity.ID
	Nonce    envelope.Nonce
}

// KeyResponseBody carries the encrypted session key and the opaque ticket.
type KeyResponseBody struct {
	ClientID   identity.ID
	SessionKey *envelope.SessionKey
	Ticket     *envelope.Ticket
}

// SubmitTicketBody presents a ticket to the message server.
type SubmitTicketBody struct {
	Authenticator *envelope.Authenticator
	Ticket        *envelope.Ticket
}

// SendMessageBody is a text message sealed under the session key.
type SendMessageBody struct {
	IV         envelope.IV
	Ciphertext []byte
}

func (*RegisterBody) Kind() BodyKind     { return BodyRegister }
func (*IdentityBody) Kind() BodyKind     { return BodyIdentity }
func (*KeyRequestBody) Kind() BodyKind   { return BodyKeyRequest }
func (*KeyResponseBody) Kind() BodyKind  { return BodyKeyResponse }
func (*SubmitTicketBody) Kind() BodyKind { return BodySubmitTicket }
func (*SendMessageBody) Kind() BodyKind  { return BodySendMessage }

func (*RegisterBody) isBody()     {}
func (*IdentityBody) isBody()     {}
func (*KeyRequestBody) isBody()   {}
func (*KeyResponseBody) isBody()  {}
func (*SubmitTicketBody) isBody() {}
func (*SendMessageBody) isBody()  {}

func (b *RegisterBody) validate() error {
	name, pw := []byte(b.Name), b.Password.Bytes()
	switch {
	case len(name) == 0 || len(pw) == 0:
		return fmt.Errorf("%w: name and password are required", ErrMalformedFrame)
	case len(name)+1 > MaxFieldSize || len(pw)+1 > MaxFieldSize:
		return fmt.Errorf("%w: name and password are limited to %d bytes each", ErrMalformedFrame, MaxFieldSize-1)
	case bytes.IndexByte(name, 0) >= 0 || bytes.IndexByte(pw, 0) >= 0:
		return fmt.Errorf("%w: embedded NUL", ErrMalformedFrame)
	}
	return nil
}

// Marshal writes name NUL password NUL. The returned slice holds the
// password and should be wiped by the caller once sent.
func (b *RegisterBody) Marshal() ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b.Name)+b.Password.Len()+2)
	out = append(out, b.Name...)
	out = append(out, 0)
	out = append(out, b.Password.Bytes()...)
	out = append(out, 0)
	return out, nil
}

func (b *IdentityBody) Marshal() ([]byte, error) {
	return bytes.Clone(b.ID[:]), nil
}

func (b *KeyRequestBody) Marshal() ([]byte, error) {
	bb := cryptobyte.NewFixedBuilder(make([]byte, 0, KeyRequestSize))
	bb.AddBytes(b.ServerID[:])
	bb.AddBytes(b.Nonce[:])
	return bb.Bytes()
}

func (b *KeyResponseBody) Marshal() ([]byte, error) {
	if b.SessionKey == nil || b.Ticket == nil {
		return nil, ErrMissingBody
	}
	sk, err := b.SessionKey.Marshal()
	if err != nil {
		return nil, err
	}
	tk, err := b.Ticket.Marshal()
	if err != nil {
		return nil, err
	}
	bb := cryptobyte.NewFixedBuilder(make([]byte, 0, KeyResponseSize))
	bb.AddBytes(b.ClientID[:])
	bb.AddBytes(sk)
	bb.AddBytes(tk)
	return bb.Bytes()
}

func (b *SubmitTicketBody) Marshal() ([]byte, error) {
	if b.Authenticator == nil || b.Ticket == nil {
		return nil, ErrMissingBody
	}
	a, err := b.Authenticator.Marshal()
	if err != nil {
		return nil, err
	}
	tk, err := b.Ticket.Marshal()
	if err != nil {
		return nil, err
	}
	bb := cryptobyte.NewFixedBuilder(make([]byte, 0, SubmitTicketSize))
	bb.AddBytes(a)
	bb.AddBytes(tk)
	return bb.Bytes()
}

func (b *SendMessageBody) Marshal() ([]byte, error) {
	if len(b.Ciphertext) == 0 || len(b.Ciphertext)%envelope.IVSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrMalformedFrame, len(b.Ciphertext))
	}
	out := make([]byte, 0, sendMessagePrefix+len(b.Ciphertext))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.Ciphertext)))
	out = append(out, b.IV[:]...)
	return append(out, b.Ciphertext...), nil
}

// DecodeBody builds the body registered for code from raw payload bytes.
// Codes without a body return (nil, nil).
func DecodeBody(code Code, raw []byte) (Body, error) {
	e, err := Lookup(code)
	if err != nil {
		return nil, err
	}

	switch e.Body {
	case BodyNone:
		return nil, nil
	case BodyRegister:
		return decodeRegister(raw)
	case BodyIdentity:
		id, err := identity.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return &IdentityBody{ID: id}, nil
	case BodyKeyRequest:
		return decodeKeyRequest(raw)
	case BodyKeyResponse:
		return decodeKeyResponse(raw)
	case BodySubmitTicket:
		return decodeSubmitTicket(raw)
	case BodySendMessage:
		return decodeSendMessage(raw)
	}
	return nil, fmt.Errorf("%w: no decoder for %s", ErrUnknownCode, code)
}

func readCString(in *cryptobyte.String, out *[]byte) bool {
	i := bytes.IndexByte(*in, 0)
	if i < 0 {
		return false
	}
	return in.ReadBytes(out, i) && in.Skip(1)
}

func decodeRegister(raw []byte) (Body, error) {
	if len(raw) > MaxRegisterSize {
		return nil, fmt.Errorf("%w: register body is %d bytes", ErrMalformedFrame, len(raw))
	}
	in := cryptobyte.String(raw)
	var name, pw []byte
	if !readCString(&in, &name) || !readCString(&in, &pw) || !in.Empty() {
		return nil, fmt.Errorf("%w: register body must be two NUL-terminated fields", ErrMalformedFrame)
	}
	b := &RegisterBody{Name: string(name), Password: secret.From(pw)}
	if err := b.validate(); err != nil {
		b.Password.Wipe()
		return nil, err
	}
	return b, nil
}

func decodeKeyRequest(raw []byte) (Body, error) {
	b := &KeyRequestBody{}
	in := cryptobyte.String(raw)
	if !in.CopyBytes(b.ServerID[:]) || !in.CopyBytes(b.Nonce[:]) || !in.Empty() {
		return nil, fmt.Errorf("%w: key request is %d bytes, expected %d", ErrMalformedFrame, len(raw), KeyRequestSize)
	}
	return b, nil
}

func decodeKeyResponse(raw []byte) (Body, error) {
	b := &KeyResponseBody{}
	in := cryptobyte.String(raw)
	var sk, tk []byte
	if !in.CopyBytes(b.ClientID[:]) ||
		!in.ReadBytes(&sk, envelope.SessionKeySize) ||
		!in.ReadBytes(&tk, envelope.TicketSize) ||
		!in.Empty() {
		return nil, fmt.Errorf("%w: key response is %d bytes, expected %d", ErrMalformedFrame, len(raw), KeyResponseSize)
	}
	var err error
	if b.SessionKey, err = envelope.ParseSessionKey(sk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if b.Ticket, err = envelope.ParseTicket(tk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return b, nil
}

func decodeSubmitTicket(raw []byte) (Body, error) {
	in := cryptobyte.String(raw)
	var a, tk []byte
	if !in.ReadBytes(&a, envelope.AuthenticatorSize) || !in.ReadBytes(&tk, envelope.TicketSize) || !in.Empty() {
		return nil, fmt.Errorf("%w: submit ticket is %d bytes, expected %d", ErrMalformedFrame, len(raw), SubmitTicketSize)
	}
	b := &SubmitTicketBody{}
	var err error
	if b.Authenticator, err = envelope.ParseAuthenticator(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if b.Ticket, err = envelope.ParseTicket(tk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return b, nil
}

func decodeSendMessage(raw []byte) (Body, error) {
	in := cryptobyte.String(raw)
	var lenBytes, ct []byte
	b := &SendMessageBody{}
	if !in.ReadBytes(&lenBytes, 4) || !in.CopyBytes(b.IV[:]) {
		return nil, fmt.Errorf("%w: send message body is %d bytes", ErrMalformedFrame, len(raw))
	}
	n := binary.LittleEndian.Uint32(lenBytes)
	if n == 0 || n%envelope.IVSize != 0 || int64(n) != int64(len(in)) {
		return nil, fmt.Errorf("%w: declared ciphertext length %d, have %d", ErrMalformedFrame, n, len(in))
	}
	if !in.ReadBytes(&ct, int(n)) {
		return nil, ErrMalformedFrame
	}
	b.Ciphertext = bytes.Clone(ct)
	return b, nil
}
