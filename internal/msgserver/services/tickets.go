// Package services contains the message server's request handlers: ticket
// redemption and delivery of encrypted text messages.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
)

var (
	ErrBadTicket     = errors.New("ticket missing or not encrypted")
	ErrWrongServer   = errors.New("ticket issued for another server")
	ErrExpired       = errors.New("ticket expired")
	ErrIdentity      = errors.New("authenticator does not match ticket")
	ErrSessionExists = errors.New("session already open")
)

// Sessions is the part of sessions.Table the service needs.
type Sessions interface {
	Add(id identity.ID, ticket *envelope.Ticket) bool
	Get(id identity.ID) (*envelope.Ticket, bool)
}

// Output receives every message a client manages to send.
type Output interface {
	Deliver(ctx context.Context, from identity.ID, text string) error
}

// PrintOutput writes each message as one line to W.
type PrintOutput struct {
	mu sync.Mutex
	W  io.Writer
}

func (p *PrintOutput) Deliver(_ context.Context, from identity.ID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.W, "Message from user (%s): %s\n", from, text)
	return err
}

// TicketService redeems tickets and decrypts messages for one message
// server identity.
type TicketService struct {
	self     serverinfo.Record
	sessions Sessions
	out      Output
	logger   logging.Logger

	now func() time.Time
}

func NewTicketService(self serverinfo.Record, sessions Sessions, out Output, logger logging.Logger) *TicketService {
	return &TicketService{
		self:     self,
		sessions: sessions,
		out:      out,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle dispatches on the request code.
func (s *TicketService) Handle(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	switch req.Header.Code {
	case protocol.SubmitTicket:
		return s.SubmitTicket(ctx, req)
	case protocol.SendMessage:
		return s.SendMessage(ctx, req)
	default:
		return protocol.Failure(), nil
	}
}

// SubmitTicket opens a session from a ticket and its authenticator.
func (s *TicketService) SubmitTicket(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	body, ok := req.Body.(*protocol.SubmitTicketBody)
	if !ok {
		return protocol.Failure(), nil
	}
	client := req.Header.ClientID

	if err := s.redeem(client, body.Ticket, body.Authenticator); err != nil {
		if errors.Is(err, envelope.ErrCipherUnavailable) {
			s.logger.Error(ctx, "cipher backend unavailable", "error", err)
			return nil, err
		}
		s.logger.Warn(ctx, "ticket rejected", "client", client.String(), "error", err)
		return protocol.Failure(), nil
	}

	s.logger.Info(ctx, "session opened", "client", client.String())
	return protocol.NewResponse(protocol.SubmitTicketSuccess, nil), nil
}

func (s *TicketService) redeem(client identity.ID, ticket *envelope.Ticket, auth *envelope.Authenticator) error {
	if ticket == nil || auth == nil || !ticket.IsEncrypted() {
		return ErrBadTicket
	}
	if ticket.ServerID != s.self.ID {
		return ErrWrongServer
	}
	if err := ticket.Decrypt(s.self.Key); err != nil {
		return fmt.Errorf("ticket: %w", err)
	}
	if ticket.Expired(s.now()) {
		return ErrExpired
	}
	if err := auth.Decrypt(ticket.Key.Bytes()); err != nil {
		return fmt.Errorf("authenticator: %w", err)
	}
	if auth.ClientID != ticket.ClientID || auth.ServerID != ticket.ServerID || ticket.ClientID != client {
		return ErrIdentity
	}
	if !s.sessions.Add(client, ticket) {
		ticket.Key.Wipe()
		return ErrSessionExists
	}
	return nil
}

// SendMessage decrypts a message under the sender's session key and hands
// the text to the output.
func (s *TicketService) SendMessage(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	client := req.Header.ClientID
	ticket, ok := s.sessions.Get(client)
	if !ok {
		s.logger.Warn(ctx, "message without session", "client", client.String())
		return protocol.Failure(), nil
	}
	body, ok := req.Body.(*protocol.SendMessageBody)
	if !ok {
		return protocol.Failure(), nil
	}

	plain, err := cryptox.DecryptCBC(ticket.Key.Bytes(), body.IV[:], body.Ciphertext)
	if err != nil {
		if errors.Is(err, cryptox.ErrCipherUnavailable) {
			s.logger.Error(ctx, "cipher backend unavailable", "error", err)
			return nil, err
		}
		s.logger.Warn(ctx, "message decrypt failed", "client", client.String(), "error", err)
		return protocol.Failure(), nil
	}

	if err := s.out.Deliver(ctx, client, string(plain)); err != nil {
		s.logger.Error(ctx, "message delivery failed", "client", client.String(), "error", err)
		return protocol.Failure(), nil
	}
	return protocol.NewResponse(protocol.SendMessageSuccess, nil), nil
}
