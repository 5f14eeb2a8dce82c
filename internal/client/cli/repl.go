package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophkerb/internal/client/session"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	State() session.State
	Register(ctx context.Context) error
	Ticket(ctx context.Context, serverID string) error
	Send(ctx context.Context, text string) error
	Status() string
}

// runREPL reads one command per line and dispatches it to a until the input
// ends or the user types "exit" or "quit". The help text follows the
// session state:
//
//	Not registered:  register, status, exit
//	Registered:      ticket <server-id>, status, exit
//	Ticket held:     send <text>, status, exit
//
// Errors from handlers are printed and the loop continues.
//
// The reader is shared with prompts issued by handlers, so lines are read
// one at a time without buffering ahead.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("kerb (%s) > ", a.State()))
		line, readErr := reader.ReadString('\n')
		if readErr != nil && line == "" {
			return
		}
		line = strings.TrimSpace(line)
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if cmd == "" {
			continue
		}

		var err error
		switch cmd {
		case "help":
			printlnFn(help(a.State()))

		case "register":
			err = a.Register(ctx)

		case "ticket":
			if rest == "" {
				printlnFn("Usage: ticket <server-id>")
				continue
			}
			err = a.Ticket(ctx, rest)

		case "send":
			if rest == "" {
				printlnFn("Usage: send <text>")
				continue
			}
			err = a.Send(ctx, rest)

		case "status":
			printlnFn(a.Status())

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func help(s session.State) string {
	switch s {
	case session.BeforeRegister:
		return "Available commands: register, status, exit"
	case session.AfterRegister:
		return "Available commands: ticket <server-id>, status, exit"
	default:
		return "Available commands: send <text>, status, exit"
	}
}
