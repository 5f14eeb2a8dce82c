// Package server wires the authentication server: the client directory and
// its store, the authentication service and the TCP transport.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophkerb/internal/capture"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/server/config"
	"github.com/dmitrijs2005/gophkerb/internal/server/peers"
	"github.com/dmitrijs2005/gophkerb/internal/server/services"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
	"github.com/dmitrijs2005/gophkerb/internal/transport"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     peers.Store
	directory *peers.Directory
	auth      *services.AuthService
	recorder  *capture.Recorder
}

// NewApp loads msg.info, opens the client store selected by the DSN and
// builds the service.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	server, err := serverinfo.Load(c.MsgInfoPath)
	if err != nil {
		return nil, fmt.Errorf("message server info: %w", err)
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("client store: %w", err)
	}

	dir, err := peers.Open(ctx, store, server, logger.With("module", "peers"))
	if err != nil {
		closeStore(store)
		return nil, err
	}

	app := &App{
		config:    c,
		logger:    logger,
		store:     store,
		directory: dir,
		auth:      services.NewAuthService(dir, c.TicketLifetime, logger.With("module", "auth")),
	}
	if c.CapturePath != "" {
		app.recorder = capture.Open(c.CapturePath, logger.With("module", "capture"))
	}
	return app, nil
}

func openStore(ctx context.Context, c *config.Config) (peers.Store, error) {
	if c.DatabaseDSN == "" {
		return peers.NewFileStore(c.ClientsPath), nil
	}
	return peers.OpenSQLStore(ctx, c.DatabaseDSN)
}

func closeStore(s peers.Store) {
	if cl, ok := s.(io.Closer); ok {
		_ = cl.Close()
	}
}

func (app *App) handler() *transport.Handler {
	h := &transport.Handler{
		Accepted: []protocol.Code{protocol.RegisterClient, protocol.RequestSymmetricKey},
		Dispatch: map[protocol.Code]transport.HandlerFunc{
			protocol.RegisterClient:      app.auth.Handle,
			protocol.RequestSymmetricKey: app.auth.Handle,
		},
		Interceptors: []transport.Interceptor{transport.RequireClient(protocol.RegisterClient)},
		Logger:       app.logger.With("module", "transport"),
	}
	if app.recorder != nil {
		h.Recorder = app.recorder
	}
	return h
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) error {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	select {
	case s := <-sigs:
		app.logger.Info(ctx, "signal received", "signal", s.String())
		cancelFunc()
	case <-ctx.Done():
	}
	return nil
}

// Run listens on the configured address and serves until a signal arrives
// or a handler fails fatally.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.EndpointAddr)
	if err != nil {
		closeStore(app.store)
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	defer closeStore(app.store)

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting authentication server...", "clients", app.directory.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.initSignalHandler(ctx, cancelFunc) })
	g.Go(func() error {
		defer cancelFunc()
		srv := &transport.Server{Handler: app.handler(), Logger: app.logger.With("module", "transport")}
		return srv.Serve(ctx, ln)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}
	return err
}
