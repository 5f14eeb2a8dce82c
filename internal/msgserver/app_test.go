package msgserver

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/client/connections"
	"github.com/dmitrijs2005/gophkerb/internal/client/session"
	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/msgserver/config"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"github.com/dmitrijs2005/gophkerb/internal/server/peers"
	authservices "github.com/dmitrijs2005/gophkerb/internal/server/services"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
	"github.com/dmitrijs2005/gophkerb/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInfo(t *testing.T, dir string) serverinfo.Record {
	t.Helper()
	key, err := cryptox.RandomBytes(envelope.KeySize)
	require.NoError(t, err)
	id, err := identity.New()
	require.NoError(t, err)
	rec := serverinfo.Record{Addr: "127.0.0.1:1235", Name: "Printer 20", ID: id, Key: key}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "msg.info"), []byte(serverinfo.Format(rec)), 0o600))
	return rec
}

// startAuth serves a minimal authentication endpoint that knows rec.
func startAuth(t *testing.T, ctx context.Context, dir string, rec serverinfo.Record) string {
	t.Helper()
	directory, err := peers.Open(ctx, peers.NewFileStore(filepath.Join(dir, "clients")), rec, logging.Discard())
	require.NoError(t, err)
	auth := authservices.NewAuthService(directory, 0, logging.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &transport.Server{Handler: &transport.Handler{
		Accepted: []protocol.Code{protocol.RegisterClient, protocol.RequestSymmetricKey},
		Dispatch: map[protocol.Code]transport.HandlerFunc{
			protocol.RegisterClient:      auth.Handle,
			protocol.RequestSymmetricKey: auth.Handle,
		},
	}}
	go func() { _ = s.Serve(ctx, ln) }()
	return ln.Addr().String()
}

func TestApp_DeliversMessages(t *testing.T) {
	dir := t.TempDir()
	rec := writeInfo(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	app, err := newApp(&config.Config{MsgInfoPath: filepath.Join(dir, "msg.info"), CapturePath: filepath.Join(dir, "m.json")}, logging.Discard(), &out)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, app.self.ID)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	cache := connections.New(time.Minute, time.Second)
	d, err := session.New(secret.From([]byte("hunter2")), cache, session.Options{
		AuthAddr:    startAuth(t, ctx, dir, rec),
		MessageAddr: ln.Addr().String(),
	}, logging.Discard())
	require.NoError(t, err)

	id, err := d.Register(ctx, "Ron Person")
	require.NoError(t, err)
	require.NoError(t, d.RequestTicket(ctx, rec.ID))
	require.NoError(t, d.SendMessage(ctx, "hello"))

	d.Close()
	require.NoError(t, cache.Close())
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.Equal(t, "Message from user ("+id.String()+"): hello\n", out.String())
	assert.Equal(t, 1, app.sessions.Len())
}

func TestNewApp_AddressOverride(t *testing.T) {
	dir := t.TempDir()
	writeInfo(t, dir)

	app, err := newApp(&config.Config{MsgInfoPath: filepath.Join(dir, "msg.info"), EndpointAddr: "127.0.0.1:4000"}, logging.Discard(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", app.self.Addr)
	assert.Nil(t, app.handler().Recorder)
}

func TestNewApp_BadInfo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "msg.info"), []byte("only one line\n"), 0o600))

	_, err := NewApp(&config.Config{MsgInfoPath: filepath.Join(dir, "msg.info")})
	require.ErrorIs(t, err, serverinfo.ErrInvalid)
}
