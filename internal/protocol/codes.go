// Package protocol is the wire layer shared by the authentication server,
// the message server and the client: fixed little-endian headers, the closed
// registry of message codes and the body types selected by each code.
package protocol

import (
	"fmt"
	"strconv"
)

// Version is the protocol version written into every header and ticket.
const Version byte = 24

// Code identifies a message kind on the wire.
type Code uint16

const (
	RegisterClient             Code = 1024
	RequestSymmetricKey        Code = 1027
	SubmitTicket               Code = 1028
	SendMessage                Code = 1029
	RegisterClientSuccess      Code = 1600
	RegisterClientFailed       Code = 1601
	RequestSymmetricKeySuccess Code = 1603
	SubmitTicketSuccess        Code = 1604
	SendMessageSuccess         Code = 1605
	UnknownFailure             Code = 1609
)

// BodyKind selects the body decoder for a code.
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyRegister
	BodyIdentity
	BodyKeyRequest
	BodyKeyResponse
	BodySubmitTicket
	BodySendMessage
)

// Entry describes one registered code.
type Entry struct {
	Code    Code
	Name    string
	Body    BodyKind
	Request bool
}

var registry = map[Code]Entry{
	RegisterClient:             {RegisterClient, "REGISTER_CLIENT", BodyRegister, true},
	RegisterClientSuccess:      {RegisterClientSuccess, "REGISTER_CLIENT_SUCCESS", BodyIdentity, false},
	RegisterClientFailed:       {RegisterClientFailed, "REGISTER_CLIENT_FAILED", BodyNone, false},
	RequestSymmetricKey:        {RequestSymmetricKey, "REQUEST_SYMMETRIC_KEY", BodyKeyRequest, true},
	RequestSymmetricKeySuccess: {RequestSymmetricKeySuccess, "REQUEST_SYMMETRIC_KEY_SUCCESS", BodyKeyResponse, false},
	SubmitTicket:               {SubmitTicket, "SUBMIT_TICKET", BodySubmitTicket, true},
	SubmitTicketSuccess:        {SubmitTicketSuccess, "SUBMIT_TICKET_SUCCESS", BodyNone, false},
	SendMessage:                {SendMessage, "SEND_MESSAGE", BodySendMessage, true},
	SendMessageSuccess:         {SendMessageSuccess, "SEND_MESSAGE_SUCCESS", BodyNone, false},
	UnknownFailure:             {UnknownFailure, "UNKNOWN_FAILURE", BodyNone, false},
}

// Lookup returns the registry entry for c or ErrUnknownCode.
func Lookup(c Code) (Entry, error) {
	e, ok := registry[c]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownCode, c)
	}
	return e, nil
}

func (c Code) String() string {
	if e, ok := registry[c]; ok {
		return e.Name
	}
	return "CODE_" + strconv.Itoa(int(c))
}

// IsFailure reports whether c is one of the failure replies.
func (c Code) IsFailure() bool {
	return c == UnknownFailure || c == RegisterClientFailed
}
