// Package services contains the authentication server's request handlers.
// This file implements AuthService, which registers clients and issues
// session keys together with tickets for the message server.
package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"github.com/dmitrijs2005/gophkerb/internal/server/peers"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
)

// Directory is the part of peers.Directory the service needs.
type Directory interface {
	Register(ctx context.Context, name string, passwordHash [sha256.Size]byte) (identity.ID, error)
	LookupClient(id identity.ID) (peers.ClientRecord, bool)
	LookupServer(id identity.ID) (serverinfo.Record, bool)
	Touch(id identity.ID)
}

// AuthService answers RegisterClient and RequestSymmetricKey.
//
// Handlers never return an error for a bad request; they answer with a
// failure code instead. A non-nil error means the cipher backend is gone and
// the server must stop.
type AuthService struct {
	dir      Directory
	logger   logging.Logger
	lifetime time.Duration

	now    func() time.Time
	newKey func() (*secret.Bytes, error)
	newIV  func() (envelope.IV, error)
}

// NewAuthService builds the service. A zero lifetime means
// envelope.TicketLifetime.
func NewAuthService(dir Directory, lifetime time.Duration, logger logging.Logger) *AuthService {
	if lifetime <= 0 {
		lifetime = envelope.TicketLifetime
	}
	return &AuthService{
		dir:      dir,
		logger:   logger,
		lifetime: lifetime,
		now:      time.Now,
		newKey:   newSessionKey,
		newIV:    envelope.NewIV,
	}
}

func newSessionKey() (*secret.Bytes, error) {
	b, err := cryptox.RandomBytes(envelope.KeySize)
	if err != nil {
		return nil, err
	}
	return secret.Take(b), nil
}

// Handle dispatches on the request code.
func (s *AuthService) Handle(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	switch req.Header.Code {
	case protocol.RegisterClient:
		return s.RegisterClient(ctx, req)
	case protocol.RequestSymmetricKey:
		return s.RequestSymmetricKey(ctx, req)
	default:
		return protocol.Failure(), nil
	}
}

// RegisterClient creates a client and answers with its fresh identity.
func (s *AuthService) RegisterClient(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	failed := protocol.NewResponse(protocol.RegisterClientFailed, nil)

	body, ok := req.Body.(*protocol.RegisterBody)
	if !ok || body.Password.Len() == 0 {
		return failed, nil
	}
	hash := cryptox.HashPassword(body.Password.Bytes())
	body.Password.Wipe()

	id, err := s.dir.Register(ctx, body.Name, hash)
	if err != nil {
		s.logger.Warn(ctx, "registration rejected", "name", body.Name, "error", err)
		return failed, nil
	}

	s.logger.Info(ctx, "client registered", "name", body.Name, "client", id.String())
	return protocol.NewResponse(protocol.RegisterClientSuccess, &protocol.IdentityBody{ID: id}), nil
}

// RequestSymmetricKey mints a session key for a known client and message
// server. The key goes back twice: under the client's password hash and,
// inside the ticket, under the server's key.
func (s *AuthService) RequestSymmetricKey(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	body, ok := req.Body.(*protocol.KeyRequestBody)
	if !ok {
		return protocol.Failure(), nil
	}

	clientID := req.Header.ClientID
	client, ok := s.dir.LookupClient(clientID)
	if !ok {
		s.logger.Warn(ctx, "key request from unknown client", "client", clientID.String())
		return protocol.Failure(), nil
	}
	server, ok := s.dir.LookupServer(body.ServerID)
	if !ok {
		s.logger.Warn(ctx, "key request for unknown server", "client", clientID.String(), "server", body.ServerID.String())
		return protocol.Failure(), nil
	}
	s.dir.Touch(clientID)

	resp, err := s.issue(client, server, body.Nonce)
	if err != nil {
		if errors.Is(err, envelope.ErrCipherUnavailable) {
			s.logger.Error(ctx, "cipher backend unavailable", "error", err)
			return nil, err
		}
		s.logger.Warn(ctx, "key issue failed", "client", clientID.String(), "error", err)
		return protocol.Failure(), nil
	}

	s.logger.Info(ctx, "ticket issued", "client", clientID.String(), "server", server.Name)
	return resp, nil
}

func (s *AuthService) issue(client peers.ClientRecord, server serverinfo.Record, nonce envelope.Nonce) (*protocol.Message, error) {
	key, err := s.newKey()
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	skIV, err := s.newIV()
	if err != nil {
		return nil, err
	}
	tIV, err := s.newIV()
	if err != nil {
		return nil, err
	}

	sk := &envelope.SessionKey{IV: skIV, Nonce: nonce, Key: key.Clone()}
	if err := sk.Encrypt(client.PasswordHash[:]); err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &envelope.Ticket{
		Version:   protocol.Version,
		ClientID:  client.ID,
		ServerID:  server.ID,
		CreatedAt: now,
		IV:        tIV,
		Key:       key.Clone(),
		ExpiresAt: now.Add(s.lifetime),
	}
	if err := ticket.Encrypt(server.Key); err != nil {
		return nil, err
	}

	return protocol.NewResponse(protocol.RequestSymmetricKeySuccess, &protocol.KeyResponseBody{
		ClientID:   client.ID,
		SessionKey: sk,
		Ticket:     ticket,
	}), nil
}
