// Package session drives the client side of the protocol: registration with
// the authentication server, ticket retrieval and message delivery to the
// message server.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/client/connections"
	"github.com/dmitrijs2005/gophkerb/internal/client/meinfo"
	"github.com/dmitrijs2005/gophkerb/internal/common"
	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
)

const DefaultIOTimeout = 30 * time.Second

var (
	ErrRejected        = errors.New("request rejected by server")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrNonceMismatch   = errors.New("session key nonce does not match request")
	ErrWrongState      = errors.New("operation not allowed in current state")
)

type State int

const (
	BeforeRegister State = iota
	AfterRegister
	AfterTicket
)

func (s State) String() string {
	switch s {
	case BeforeRegister:
		return "not registered"
	case AfterRegister:
		return "registered"
	case AfterTicket:
		return "ticket held"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conns is the part of connections.Cache the driver needs.
type Conns interface {
	Get(ctx context.Context, role connections.Role, addr string) (net.Conn, error)
	Release(role connections.Role, conn net.Conn)
	Evict(role connections.Role)
}

type Options struct {
	AuthAddr    string
	MessageAddr string
	InfoPath    string
	IOTimeout   time.Duration
}

// Driver holds one client's progress through the protocol. Methods are safe
// for concurrent use but run one at a time.
type Driver struct {
	mu     sync.Mutex
	opts   Options
	conns  Conns
	logger logging.Logger

	state    State
	name     string
	id       identity.ID
	password *secret.Bytes
	hash     *secret.Bytes

	serverID   identity.ID
	ticket     *envelope.Ticket
	sessionKey *secret.Bytes
	submitted  bool

	now      func() time.Time
	newNonce func() (envelope.Nonce, error)
	newIV    func() (envelope.IV, error)
}

// New takes ownership of password. When opts.InfoPath names an existing
// me.info the driver resumes as registered.
func New(password *secret.Bytes, conns Conns, opts Options, logger logging.Logger) (*Driver, error) {
	if password.Len() == 0 {
		return nil, fmt.Errorf("password: %w", common.ErrorInvalidInput)
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = DefaultIOTimeout
	}
	hash := cryptox.HashPassword(password.Bytes())
	d := &Driver{
		opts:     opts,
		conns:    conns,
		logger:   logger,
		password: password,
		hash:     secret.From(hash[:]),
		now:      time.Now,
		newNonce: envelope.NewNonce,
		newIV:    envelope.NewIV,
	}
	clear(hash[:])

	if opts.InfoPath == "" {
		return d, nil
	}
	info, err := meinfo.Load(opts.InfoPath)
	switch {
	case err == nil:
		d.name, d.id, d.state = info.Name, info.ID, AfterRegister
		d.password.Wipe()
		logger.Info(context.Background(), "resumed registration", "name", info.Name, "client", info.ID.String())
	case errors.Is(err, common.ErrorNotFound):
	default:
		logger.Warn(context.Background(), "ignoring unreadable me.info", "path", opts.InfoPath, "error", err)
	}
	return d, nil
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *Driver) ID() identity.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// ServerID is the message server the current ticket was issued for.
func (d *Driver) ServerID() identity.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serverID
}

// Register creates the client on the authentication server and persists
// the assigned identity.
func (d *Driver) Register(ctx context.Context, name string) (identity.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != BeforeRegister {
		return identity.ID{}, fmt.Errorf("register: %w (%s)", ErrWrongState, d.state)
	}

	req := protocol.NewRequest(identity.ID{}, protocol.RegisterClient,
		&protocol.RegisterBody{Name: name, Password: d.password})
	resp, err := d.exchange(ctx, connections.RoleAuth, d.opts.AuthAddr, req)
	if err != nil {
		return identity.ID{}, fmt.Errorf("register: %w", err)
	}
	if err := expect(resp, protocol.RegisterClientSuccess); err != nil {
		return identity.ID{}, fmt.Errorf("register: %w", err)
	}
	body, ok := resp.Body.(*protocol.IdentityBody)
	if !ok || body.ID.IsZero() {
		return identity.ID{}, fmt.Errorf("register: %w: no identity", ErrUnexpectedReply)
	}

	d.name, d.id, d.state = name, body.ID, AfterRegister
	d.password.Wipe()

	if d.opts.InfoPath != "" {
		if err := meinfo.Save(d.opts.InfoPath, meinfo.Info{Name: name, ID: body.ID}); err != nil {
			d.logger.Warn(ctx, "cannot save me.info", "path", d.opts.InfoPath, "error", err)
		}
	}
	d.logger.Info(ctx, "registered", "name", name, "client", body.ID.String())
	return body.ID, nil
}

// RequestTicket obtains a session key and ticket for the message server
// serverID.
func (d *Driver) RequestTicket(ctx context.Context, serverID identity.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != AfterRegister {
		return fmt.Errorf("request ticket: %w (%s)", ErrWrongState, d.state)
	}

	nonce, err := d.newNonce()
	if err != nil {
		return err
	}
	req := protocol.NewRequest(d.id, protocol.RequestSymmetricKey,
		&protocol.KeyRequestBody{ServerID: serverID, Nonce: nonce})
	resp, err := d.exchange(ctx, connections.RoleAuth, d.opts.AuthAddr, req)
	if err != nil {
		return fmt.Errorf("request ticket: %w", err)
	}
	if err := expect(resp, protocol.RequestSymmetricKeySuccess); err != nil {
		return fmt.Errorf("request ticket: %w", err)
	}

	body, ok := resp.Body.(*protocol.KeyResponseBody)
	switch {
	case !ok:
		return fmt.Errorf("request ticket: %w: no key body", ErrUnexpectedReply)
	case body.ClientID != d.id:
		return fmt.Errorf("request ticket: %w: reply for client %s", ErrUnexpectedReply, body.ClientID)
	case body.Ticket.ClientID != d.id || body.Ticket.ServerID != serverID:
		return fmt.Errorf("request ticket: %w: ticket for %s at %s", ErrUnexpectedReply, body.Ticket.ClientID, body.Ticket.ServerID)
	}

	sk := body.SessionKey
	if err := sk.Decrypt(d.hash.Bytes()); err != nil {
		return fmt.Errorf("request ticket: session key: %w", err)
	}
	if sk.Nonce != nonce {
		sk.Key.Wipe()
		return fmt.Errorf("request ticket: %w", ErrNonceMismatch)
	}

	d.serverID = serverID
	d.ticket = body.Ticket
	d.sessionKey = sk.Key
	d.submitted = false
	d.state = AfterTicket
	d.logger.Info(ctx, "ticket received", "server", serverID.String())
	return nil
}

// SendMessage delivers text to the message server. The ticket is presented
// before the first message only.
func (d *Driver) SendMessage(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != AfterTicket {
		return fmt.Errorf("send message: %w (%s)", ErrWrongState, d.state)
	}

	if !d.submitted {
		if err := d.submitTicket(ctx); err != nil {
			return fmt.Errorf("submit ticket: %w", err)
		}
		d.submitted = true
	}

	iv, err := d.newIV()
	if err != nil {
		return err
	}
	ct, err := cryptox.EncryptCBC(d.sessionKey.Bytes(), iv[:], []byte(text))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	req := protocol.NewRequest(d.id, protocol.SendMessage, &protocol.SendMessageBody{IV: iv, Ciphertext: ct})
	resp, err := d.exchange(ctx, connections.RoleMessage, d.opts.MessageAddr, req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if err := expect(resp, protocol.SendMessageSuccess); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (d *Driver) submitTicket(ctx context.Context) error {
	iv, err := d.newIV()
	if err != nil {
		return err
	}
	auth := &envelope.Authenticator{
		IV:        iv,
		Version:   protocol.Version,
		ClientID:  d.id,
		ServerID:  d.serverID,
		CreatedAt: d.now(),
	}
	if err := auth.Encrypt(d.sessionKey.Bytes()); err != nil {
		return err
	}

	req := protocol.NewRequest(d.id, protocol.SubmitTicket,
		&protocol.SubmitTicketBody{Authenticator: auth, Ticket: d.ticket})
	resp, err := d.exchange(ctx, connections.RoleMessage, d.opts.MessageAddr, req)
	if err != nil {
		return err
	}
	return expect(resp, protocol.SubmitTicketSuccess)
}

// Close wipes the key material held by the driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.password.Wipe()
	d.hash.Wipe()
	d.sessionKey.Wipe()
}

// exchange writes req and reads one reply on the connection for role. Any
// I/O or framing error evicts the connection; otherwise it goes back to the
// cache as idle.
func (d *Driver) exchange(ctx context.Context, role connections.Role, addr string, req *protocol.Message) (*protocol.Message, error) {
	frame, err := req.Encode()
	if err != nil {
		return nil, err
	}
	defer secret.Wipe(frame)

	conn, err := d.conns.Get(ctx, role, addr)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.opts.IOTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		d.conns.Evict(role)
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	resp, err := roundTrip(conn, frame)
	if err != nil {
		d.conns.Evict(role)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, protocol.ErrUnknownCode) || errors.Is(err, protocol.ErrMalformedFrame) ||
			errors.Is(err, protocol.ErrMissingBody) {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
		}
		return nil, fmt.Errorf("%s server: %w", role, err)
	}
	d.conns.Release(role, conn)
	d.logger.Debug(ctx, "reply", "server", role.String(), "code", resp.Header.Code.String())
	return resp, nil
}

func roundTrip(conn net.Conn, frame []byte) (*protocol.Message, error) {
	if _, err := conn.Write(frame); err != nil {
		return nil, err
	}
	return protocol.ReadMessage(conn, false)
}

func expect(resp *protocol.Message, want protocol.Code) error {
	switch {
	case resp.Header.Code == want:
		return nil
	case resp.Header.Code.IsFailure():
		return fmt.Errorf("%w: %s", ErrRejected, resp.Header.Code)
	default:
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedReply, resp.Header.Code, want)
	}
}
