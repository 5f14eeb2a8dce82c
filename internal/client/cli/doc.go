// Package cli provides the interactive client console.
//
// The password is read once at start without echo. The REPL then offers
// the commands the current session state allows: register, ticket
// <server-id>, send <text>, status, help and exit.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
