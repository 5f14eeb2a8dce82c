package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/logging"
)

const (
	DefaultAcceptTimeout = time.Second
	DefaultSweepInterval = 30 * time.Second
)

// Server accepts TCP connections and runs Handler on each in its own
// goroutine.
type Server struct {
	Addr          string
	Handler       *Handler
	Logger        logging.Logger
	AcceptTimeout time.Duration
	SweepInterval time.Duration

	mu     sync.Mutex
	conns  map[uint64]chan struct{}
	nextID uint64
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Run listens on Addr and serves until ctx is done or a handler fails
// fatally. The fatal error is returned; a plain shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener, which it closes on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.logger().With("module", "transport", "address", ln.Addr().String())
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	defer ln.Close()

	s.mu.Lock()
	s.conns = make(map[uint64]chan struct{})
	s.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweep(ctx)
	}()

	log.Info(ctx, "listening")

	timeout := s.AcceptTimeout
	if timeout <= 0 {
		timeout = DefaultAcceptTimeout
	}

	for {
		if ctx.Err() != nil {
			break
		}
		if d, ok := ln.(deadliner); ok {
			_ = d.SetDeadline(time.Now().Add(timeout))
		}
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			cancel(err)
			break
		}

		done := s.track()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done)
			if err := s.Handler.Serve(ctx, nc); errors.Is(err, ErrFatal) {
				cancel(err)
			}
		}()
	}

	log.Info(ctx, "stopping", "open_connections", s.Open())
	cause := context.Cause(ctx)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return nil
	}
	return cause
}

func (s *Server) track() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	done := make(chan struct{})
	s.conns[s.nextID] = done
	return done
}

func (s *Server) sweep(ctx context.Context) {
	interval := s.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.prune()
		}
	}
}

func (s *Server) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, done := range s.conns {
		select {
		case <-done:
			delete(s.conns, id)
		default:
		}
	}
}

// Open counts connections whose handler is still running.
func (s *Server) Open() int {
	s.prune()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) logger() logging.Logger {
	if s.Logger == nil {
		return logging.Discard()
	}
	return s.Logger
}
