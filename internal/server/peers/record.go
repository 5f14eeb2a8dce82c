// Package peers is the authentication server's directory of known clients
// and of the message server it issues tickets for.
package peers

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

// LastSeenLayout renders hh.mm.ss dd/MM/yyyy on a 12-hour clock.
const LastSeenLayout = "03.04.05 02/01/2006"

// MaxNameSize is the longest accepted client name in bytes.
const MaxNameSize = 254

var (
	// ErrCorruptStore means the durable store does not match the record schema.
	ErrCorruptStore = errors.New("corrupt client store")
	// ErrInvariant signals state that must never happen, such as two records
	// with one identity.
	ErrInvariant = errors.New("directory invariant violated")
)

// ClientRecord is one registered client.
type ClientRecord struct {
	ID           identity.ID
	Name         string
	PasswordHash [sha256.Size]byte
	LastSeen     time.Time
}

// FormatLine renders the record as id:name:base64(hash):last-seen.
func (r ClientRecord) FormatLine() string {
	f := r.fields()
	return strings.Join(f[:], ":")
}

func (r ClientRecord) fields() [4]string {
	return [4]string{
		r.ID.String(),
		r.Name,
		base64.StdEncoding.EncodeToString(r.PasswordHash[:]),
		r.LastSeen.Format(LastSeenLayout),
	}
}

// ParseLine is the inverse of FormatLine. Any mismatch is ErrCorruptStore.
func ParseLine(line string) (ClientRecord, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 4 {
		return ClientRecord{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrCorruptStore, len(parts))
	}
	return parseFields(parts[0], parts[1], parts[2], parts[3])
}

func parseFields(id, name, hash, lastSeen string) (ClientRecord, error) {
	var rec ClientRecord

	parsed, err := identity.Parse(id)
	if err != nil || parsed.IsZero() {
		return rec, fmt.Errorf("%w: bad identity %q", ErrCorruptStore, id)
	}
	rec.ID = parsed

	if err := ValidateName(name); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	rec.Name = name

	raw, err := base64.StdEncoding.DecodeString(hash)
	if err != nil || len(raw) != sha256.Size {
		return rec, fmt.Errorf("%w: bad password hash for %s", ErrCorruptStore, id)
	}
	copy(rec.PasswordHash[:], raw)

	ts, err := time.ParseInLocation(LastSeenLayout, lastSeen, time.Local)
	if err != nil {
		return rec, fmt.Errorf("%w: bad last-seen %q", ErrCorruptStore, lastSeen)
	}
	rec.LastSeen = ts
	return rec, nil
}

// ValidateName rejects names the line format cannot hold.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case len(name) > MaxNameSize:
		return fmt.Errorf("name longer than %d bytes", MaxNameSize)
	case strings.ContainsAny(name, ":\r\n\x00"):
		return errors.New("name contains a reserved character")
	}
	return nil
}
