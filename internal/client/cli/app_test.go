package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophkerb/internal/client/session"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	state    session.State
	name     string
	id       identity.ID
	serverID identity.ID
	err      error

	lastName   string
	lastServer identity.ID
	lastText   string
	closed     bool
}

func (f *fakeDriver) State() session.State  { return f.state }
func (f *fakeDriver) Name() string          { return f.name }
func (f *fakeDriver) ID() identity.ID       { return f.id }
func (f *fakeDriver) ServerID() identity.ID { return f.serverID }
func (f *fakeDriver) Close()                { f.closed = true }
func (f *fakeDriver) SendMessage(_ context.Context, text string) error {
	f.lastText = text
	return f.err
}

func (f *fakeDriver) Register(_ context.Context, name string) (identity.ID, error) {
	f.lastName = name
	if f.err != nil {
		return identity.ID{}, f.err
	}
	f.name, f.state = name, session.AfterRegister
	return f.id, nil
}

func (f *fakeDriver) RequestTicket(_ context.Context, serverID identity.ID) error {
	f.lastServer = serverID
	if f.err != nil {
		return f.err
	}
	f.serverID, f.state = serverID, session.AfterTicket
	return nil
}

func newTestApp(d *fakeDriver, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{driver: d, reader: bufio.NewReader(strings.NewReader(input)), out: &out}, &out
}

func TestApp_Register(t *testing.T) {
	d := &fakeDriver{id: identity.ID{0xab}}
	a, out := newTestApp(d, "Ron Person\n")

	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "Ron Person", d.lastName)
	assert.Contains(t, out.String(), "Registered as Ron Person (ab000000000000000000000000000000)")
}

func TestApp_RegisterError(t *testing.T) {
	d := &fakeDriver{err: session.ErrRejected}
	a, _ := newTestApp(d, "alice\n")

	require.ErrorIs(t, a.Register(context.Background()), session.ErrRejected)
}

func TestApp_Ticket(t *testing.T) {
	d := &fakeDriver{state: session.AfterRegister}
	a, out := newTestApp(d, "")

	require.NoError(t, a.Ticket(context.Background(), "0102030405060708090a0b0c0d0e0f10"))
	assert.Equal(t, identity.ID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, d.lastServer)
	assert.Contains(t, out.String(), "Ticket received")

	require.Error(t, a.Ticket(context.Background(), "not-hex"))
}

func TestApp_Send(t *testing.T) {
	d := &fakeDriver{state: session.AfterTicket}
	a, out := newTestApp(d, "")

	require.NoError(t, a.Send(context.Background(), "hello"))
	assert.Equal(t, "hello", d.lastText)
	assert.Contains(t, out.String(), "Message sent")

	d.err = errors.New("boom")
	require.Error(t, a.Send(context.Background(), "again"))
}

func TestApp_Status(t *testing.T) {
	d := &fakeDriver{name: "alice", id: identity.ID{1}, serverID: identity.ID{2}}
	a, _ := newTestApp(d, "")

	assert.Equal(t, "not registered", a.Status())
	d.state = session.AfterRegister
	assert.Equal(t, "alice (01000000000000000000000000000000), no ticket", a.Status())
	d.state = session.AfterTicket
	assert.Equal(t, "alice (01000000000000000000000000000000), ticket for 02000000000000000000000000000000", a.Status())
}

func TestApp_RunSharesReaderWithPrompts(t *testing.T) {
	capturePrint(t)
	d := &fakeDriver{id: identity.ID{7}}
	a, _ := newTestApp(d, "register\nalice\nexit\n")

	a.Run(context.Background())

	assert.Equal(t, "alice", d.lastName)
	assert.True(t, d.closed)
}
