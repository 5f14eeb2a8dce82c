// Package msgserver wires the message server: its identity from msg.info,
// the session table, the ticket service and the TCP transport.
package msgserver

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
	"github.com/dmitrijs2005/gophkerb/internal/msgserver/config"
	"github.com/dmitrijs2005/gophkerb/internal/msgserver/services"
	"github.com/dmitrijs2005/gophkerb/internal/msgserver/sessions"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
	"github.com/dmitrijs2005/gophkerb/internal/transport"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	self     serverinfo.Record
	sessions *sessions.Table
	tickets  *services.TicketService
	recorder *capture.Recorder
}

// NewApp loads msg.info and prints delivered messages to stdout.
func NewApp(c *config.Config) (*App, error) {
	return newApp(c, logging.NewJSON(os.Stderr, c.LogLevel), os.Stdout)
}

func newApp(c *config.Config, logger logging.Logger, out io.Writer) (*App, error) {
	self, err := serverinfo.Load(c.MsgInfoPath)
	if err != nil {
		return nil, fmt.Errorf("server info: %w", err)
	}
	if c.EndpointAddr != "" {
		self.Addr = c.EndpointAddr
	}

	table := sessions.NewTable()
	app := &App{
		config:   c,
		logger:   logger,
		self:     self,
		sessions: table,
		tickets:  services.NewTicketService(self, table, &services.PrintOutput{W: out}, logger.With("module", "tickets")),
	}
	if c.CapturePath != "" {
		app.recorder = capture.Open(c.CapturePath, logger.With("module", "capture"))
	}
	return app, nil
}

func (app *App) handler() *transport.Handler {
	h := &transport.Handler{
		Accepted: []protocol.Code{protocol.SubmitTicket, protocol.SendMessage},
		Dispatch: map[protocol.Code]transport.HandlerFunc{
			protocol.SubmitTicket: app.tickets.Handle,
			protocol.SendMessage:  app.tickets.Handle,
		},
		Interceptors: []transport.Interceptor{transport.RequireClient()},
		Logger:       app.logger.With("module", "transport"),
	}
	if app.recorder != nil {
		h.Recorder = app.recorder
	}
	return h
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) error {
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

// Run listens on the msg.info address and serves until a signal arrives or
// a handler fails fatally.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.self.Addr)
	if err != nil {
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting message server...", "name", app.self.Name, "server", app.self.ID.String())

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
	app.logger.Info(ctx, "sessions at shutdown", "sessions", app.sessions.Len())
	return err
}
