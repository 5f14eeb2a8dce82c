package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophkerb/internal/client/config"
	"github.com/dmitrijs2005/gophkerb/internal/client/connections"
	"github.com/dmitrijs2005/gophkerb/internal/client/session"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
)

// driver is the part of session.Driver the console uses.
type driver interface {
	State() session.State
	Name() string
	ID() identity.ID
	ServerID() identity.ID
	Register(ctx context.Context, name string) (identity.ID, error)
	RequestTicket(ctx context.Context, serverID identity.ID) error
	SendMessage(ctx context.Context, text string) error
	Close()
}

type App struct {
	config *config.Config
	driver driver
	conns  *connections.Cache
	reader *bufio.Reader
	out    io.Writer
}

// NewApp prompts for the password and prepares the session driver.
func NewApp(c *config.Config) (*App, error) {
	pw, err := PromptPassword(os.Stdout)
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSON(os.Stderr, c.LogLevel)
	conns := connections.New(c.IdleTimeout, 0)
	d, err := session.New(pw, conns, session.Options{
		AuthAddr:    c.AuthAddr,
		MessageAddr: c.MessageAddr,
		InfoPath:    c.InfoPath,
	}, logger)
	if err != nil {
		_ = conns.Close()
		return nil, err
	}

	return &App{config: c, driver: d, conns: conns, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.close()
	fmt.Fprintln(a.out, "Kerberos client (type 'help' for commands)")
	runREPL(ctx, a, a.reader)
}

func (a *App) close() {
	a.driver.Close()
	if a.conns != nil {
		_ = a.conns.Close()
	}
}

func (a *App) State() session.State {
	return a.driver.State()
}

func (a *App) Register(ctx context.Context) error {
	name, err := PromptLine(a.reader, a.out, "User name")
	if err != nil {
		return err
	}
	id, err := a.driver.Register(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered as %s (%s)\n", name, id)
	return nil
}

func (a *App) Ticket(ctx context.Context, serverID string) error {
	id, err := identity.Parse(serverID)
	if err != nil {
		return err
	}
	if err := a.driver.RequestTicket(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Ticket received for server %s\n", id)
	return nil
}

func (a *App) Send(ctx context.Context, text string) error {
	if err := a.driver.SendMessage(ctx, text); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Message sent")
	return nil
}

func (a *App) Status() string {
	switch a.driver.State() {
	case session.BeforeRegister:
		return "not registered"
	case session.AfterRegister:
		return fmt.Sprintf("%s (%s), no ticket", a.driver.Name(), a.driver.ID())
	default:
		return fmt.Sprintf("%s (%s), ticket for %s", a.driver.Name(), a.driver.ID(), a.driver.ServerID())
	}
}
