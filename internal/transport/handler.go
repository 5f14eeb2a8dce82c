// Package transport serves the framed request/response protocol over TCP.
// Handler runs the read-dispatch-reply loop for one connection; Server owns
// the listener and one goroutine per accepted connection.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

// ErrFatal marks a handler error that must stop the whole server.
var ErrFatal = errors.New("fatal handler error")

// HandlerFunc answers one decoded request. A non-nil error is fatal for the
// server; ordinary rejections are failure replies.
type HandlerFunc func(ctx context.Context, req *protocol.Message) (*protocol.Message, error)

// Recorder receives every frame read, and every reply just before it is
// written, header included.
type Recorder interface {
	Record(src, dst string, frame []byte, code protocol.Code)
}

// Handler serves one connection at a time; it is safe to share between
// connections once configured.
type Handler struct {
	// Accepted lists the request codes this endpoint answers. Other known
	// codes are drained and ignored.
	Accepted []protocol.Code
	Dispatch map[protocol.Code]HandlerFunc

	// Interceptors wrap every dispatch, outermost first.
	Interceptors []Interceptor

	Logger       logging.Logger
	Recorder     Recorder
	PollInterval time.Duration
	WriteTimeout time.Duration
}

type conn struct {
	h      *Handler
	nc     net.Conn
	r      *bufio.Reader
	log    logging.Logger
	local  string
	remote string
}

// Serve runs until the peer hangs up, the stream breaks, ctx is cancelled
// or a handler reports a fatal error. The connection is closed on return.
// A clean hang-up returns nil.
func (h *Handler) Serve(ctx context.Context, nc net.Conn) error {
	defer nc.Close()
	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	c := &conn{
		h:      h,
		nc:     nc,
		r:      bufio.NewReader(nc),
		local:  addrString(nc.LocalAddr()),
		remote: addrString(nc.RemoteAddr()),
	}
	c.log = h.logger().With("remote", c.remote)
	c.log.Debug(ctx, "connection opened")

	for {
		if err := c.wait(ctx); err != nil {
			return c.finish(ctx, err)
		}
		if err := c.serveOne(ctx); err != nil {
			return c.finish(ctx, err)
		}
	}
}

func (c *conn) finish(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		c.log.Debug(ctx, "connection closed by peer")
		return nil
	case ctx.Err() != nil && !errors.Is(err, ErrFatal):
		c.log.Debug(ctx, "connection closed on shutdown")
		return nil
	case errors.Is(err, ErrFatal):
		c.log.Error(ctx, "handler failed fatally", "error", err)
	default:
		c.log.Warn(ctx, "connection dropped", "error", err)
	}
	return err
}

// wait blocks until at least one byte is buffered, polling so that ctx is
// observed between reads. Once the peer is gone the deadline can no longer
// be set; buffered bytes are still served and the stream then ends in EOF.
func (c *conn) wait(ctx context.Context) error {
	poll := c.h.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.nc.SetReadDeadline(time.Now().Add(poll)); err != nil {
			_, err := c.r.Peek(1)
			return err
		}
		_, err := c.r.Peek(1)
		if err == nil {
			_ = c.nc.SetReadDeadline(time.Time{})
			return nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		return err
	}
}

func (c *conn) serveOne(ctx context.Context) error {
	hdr, raw, err := protocol.ReadHeader(c.r, true)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrUnknownCode):
		c.record(c.remote, c.local, raw, hdr.Code)
		c.log.Warn(ctx, "unknown message code", "code", uint16(hdr.Code), "len", hdr.PayloadLen)
		if hdr.PayloadLen > protocol.MaxPayload {
			_ = c.reply(ctx, protocol.Failure())
			return err
		}
		if err := protocol.Drain(c.r, hdr.PayloadLen); err != nil {
			_ = c.reply(ctx, protocol.Failure())
			return err
		}
		return c.reply(ctx, protocol.Failure())
	case errors.Is(err, protocol.ErrShortFrame), errors.Is(err, protocol.ErrMalformedFrame):
		c.log.Warn(ctx, "bad frame header", "error", err)
		_ = c.reply(ctx, protocol.Failure())
		return err
	default:
		return err
	}

	if !slices.Contains(c.h.Accepted, hdr.Code) {
		c.log.Debug(ctx, "ignoring code not served here", "code", hdr.Code.String(), "len", hdr.PayloadLen)
		return protocol.Drain(c.r, hdr.PayloadLen)
	}

	payload, err := protocol.ReadPayload(c.r, hdr.PayloadLen)
	if err != nil {
		if errors.Is(err, protocol.ErrShortFrame) {
			_ = c.reply(ctx, protocol.Failure())
		}
		return err
	}
	c.record(c.remote, c.local, append(raw, payload...), hdr.Code)

	req, err := protocol.Decode(hdr, payload)
	if err != nil {
		c.log.Warn(ctx, "undecodable request", "code", hdr.Code.String(), "error", err)
		return c.reply(ctx, protocol.Failure())
	}
	if req.Unexpected() {
		c.log.Warn(ctx, "payload on bodiless request ignored", "code", hdr.Code.String(), "len", len(req.Raw))
	}

	c.log.Debug(ctx, "request", "code", hdr.Code.String(), "client", hdr.ClientID.String())
	resp, err := c.h.dispatch(ctx, req)
	if err != nil {
		_ = c.reply(ctx, protocol.Failure())
		return fmt.Errorf("%w: %s: %w", ErrFatal, hdr.Code, err)
	}
	return c.reply(ctx, resp)
}

func (h *Handler) dispatch(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	fn, ok := h.Dispatch[req.Header.Code]
	if !ok {
		return protocol.Failure(), nil
	}
	fn = chain(fn, append([]Interceptor{recoverInterceptor(h.logger())}, h.Interceptors...))
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return protocol.Failure(), nil
	}
	return resp, nil
}

func (c *conn) reply(ctx context.Context, m *protocol.Message) error {
	frame, err := m.Encode()
	if err != nil {
		c.log.Error(ctx, "cannot encode reply", "code", m.Header.Code.String(), "error", err)
		if frame, err = protocol.Failure().Encode(); err != nil {
			return err
		}
		m = protocol.Failure()
	}

	wt := c.h.WriteTimeout
	if wt <= 0 {
		wt = DefaultWriteTimeout
	}
	c.record(c.local, c.remote, frame, m.Header.Code)
	if err := c.nc.SetWriteDeadline(time.Now().Add(wt)); err != nil {
		return err
	}
	if _, err := c.nc.Write(frame); err != nil {
		return err
	}
	c.log.Debug(ctx, "reply", "code", m.Header.Code.String(), "len", len(frame))
	return nil
}

func (c *conn) record(src, dst string, frame []byte, code protocol.Code) {
	if c.h.Recorder == nil || len(frame) == 0 {
		return
	}
	c.h.Recorder.Record(src, dst, frame, code)
}

func (h *Handler) logger() logging.Logger {
	if h.Logger == nil {
		return logging.Discard()
	}
	return h.Logger
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
