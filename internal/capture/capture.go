// Package capture records the frames a server reads and writes into a JSON
// array file of {src, dst, hex, code} objects. The file is rewritten after
// every frame so it can be inspected while the server runs.
package capture

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophkerb/internal/filex"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
)

// Entry is one captured frame, header included.
type Entry struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Hex  string `json:"hex"`
	Code uint16 `json:"code"`
}

// Frame decodes the hex field.
func (e Entry) Frame() ([]byte, error) {
	b, err := hex.DecodeString(e.Hex)
	if err != nil {
		return nil, fmt.Errorf("capture entry %s -> %s: %w", e.Src, e.Dst, err)
	}
	return b, nil
}

// Recorder appends entries to a capture file.
type Recorder struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	logger  logging.Logger
}

// Open continues an existing capture at path, or starts an empty one when
// the file is missing or unreadable.
func Open(path string, logger logging.Logger) *Recorder {
	r := &Recorder{path: path, logger: logger}
	entries, err := Load(path)
	switch {
	case err == nil:
		r.entries = entries
	case errors.Is(err, fs.ErrNotExist):
	default:
		logger.Warn(context.Background(), "capture file unreadable, starting over", "path", path, "error", err)
	}
	return r
}

// Record implements transport.Recorder. Write failures are logged, not
// returned, so capture never breaks a connection.
func (r *Recorder) Record(src, dst string, frame []byte, code protocol.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Src: src, Dst: dst, Hex: hex.EncodeToString(frame), Code: uint16(code)})
	if err := r.flush(); err != nil {
		r.logger.Warn(context.Background(), "capture write failed", "path", r.path, "error", err)
	}
}

func (r *Recorder) flush() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteAtomic(r.path, data, 0o600)
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Load reads a capture file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}
