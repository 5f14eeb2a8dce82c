// Package serverinfo reads the small line-oriented files that describe the
// deployment: msg.info for the message server and port.info for the
// authentication server.
package serverinfo

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

const (
	DefaultAuthPort       = 1256
	DefaultMessageAddress = "127.0.0.1:1235"
)

var ErrInvalid = errors.New("invalid server info")

// Record describes the single message server known to the deployment.
type Record struct {
	Addr string
	Name string
	ID   identity.ID
	Key  []byte
}

// Parse reads the four msg.info lines: host:port, name, hex id, base64 key.
// An empty address line falls back to DefaultMessageAddress.
func Parse(r io.Reader) (Record, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(lines) < 4 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Record{}, err
	}
	if len(lines) < 4 {
		return Record{}, fmt.Errorf("%w: expected 4 lines, got %d", ErrInvalid, len(lines))
	}

	rec := Record{Addr: lines[0], Name: lines[1]}
	if rec.Addr == "" {
		rec.Addr = DefaultMessageAddress
	}
	if _, _, err := net.SplitHostPort(rec.Addr); err != nil {
		return Record{}, fmt.Errorf("%w: address %q: %v", ErrInvalid, rec.Addr, err)
	}
	if rec.Name == "" {
		return Record{}, fmt.Errorf("%w: empty server name", ErrInvalid)
	}

	id, err := identity.Parse(lines[2])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if id.IsZero() {
		return Record{}, fmt.Errorf("%w: zero server id", ErrInvalid)
	}
	rec.ID = id

	key, err := base64.StdEncoding.DecodeString(lines[3])
	if err != nil {
		return Record{}, fmt.Errorf("%w: key: %v", ErrInvalid, err)
	}
	if len(key) != cryptox.KeySize || cryptox.IsZero(key) {
		return Record{}, fmt.Errorf("%w: key must be %d non-zero bytes", ErrInvalid, cryptox.KeySize)
	}
	rec.Key = key
	return rec, nil
}

// Load reads msg.info from path.
func Load(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rec, err := Parse(f)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Format renders a record in msg.info layout.
func Format(rec Record) string {
	return strings.Join([]string{
		rec.Addr,
		rec.Name,
		rec.ID.String(),
		base64.StdEncoding.EncodeToString(rec.Key),
	}, "\n") + "\n"
}

// ReadPort returns the port stored in a port.info file, or fallback when
// the file is missing or does not hold a valid port.
func ReadPort(path string, fallback int) int {
	b, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	line, _, _ := strings.Cut(string(b), "\n")
	port, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || port < 1 || port > 65535 {
		return fallback
	}
	return port
}
