package envelope

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"golang.org/x/crypto/cryptobyte"
)

// TicketSize is the wire size:
// version(1) ∥ client(16) ∥ server(16) ∥ created(8) ∥ IV(16) ∥ ciphertext(48).
const TicketSize = 1 + identity.Size*2 + 8 + IVSize + sealedSize

// Ticket is issued by the authentication server and can only be opened by
// the message server it names. The header fields travel in clear, the
// session key and expiry are sealed under the message server's key.
type Ticket struct {
	Version   byte
	ClientID  identity.ID
	ServerID  identity.ID
	CreatedAt time.Time
	IV        IV

	Key       *secret.Bytes
	ExpiresAt time.Time

	ciphertext []byte
}

func (t *Ticket) IsEncrypted() bool {
	return t.ciphertext != nil
}

// Expired reports whether now is at or past the expiry.
func (t *Ticket) Expired(now time.Time) bool {
	return now.UnixMilli() >= t.ExpiresAt.UnixMilli()
}

func (t *Ticket) checkHeader() error {
	switch {
	case t.Version == 0:
		return missing("version")
	case t.ClientID.IsZero():
		return missing("client id")
	case t.ServerID.IsZero():
		return missing("server id")
	case t.CreatedAt.UnixMilli() == 0:
		return missing("creation time")
	case cryptox.IsZero(t.IV[:]):
		return missing("iv")
	}
	return nil
}

// Encrypt seals key ∥ expiry under the server key. The plaintext key is wiped.
func (t *Ticket) Encrypt(serverKey []byte) error {
	if err := checkKey(serverKey); err != nil {
		return err
	}
	if err := t.checkHeader(); err != nil {
		return err
	}
	if t.Key.Len() != KeySize {
		return fmt.Errorf("%w: session key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if cryptox.IsZero(t.Key.Bytes()) {
		return missing("session key")
	}
	if t.ExpiresAt.UnixMilli() == 0 {
		return missing("expiry")
	}

	plain := make([]byte, KeySize+8)
	copy(plain, t.Key.Bytes())
	putMillis(plain[KeySize:], t.ExpiresAt)
	defer secret.Wipe(plain)

	ct, err := seal(serverKey, t.IV, plain)
	if err != nil {
		return err
	}

	t.ciphertext = ct
	t.Key.Wipe()
	t.Key = nil
	t.ExpiresAt = time.Time{}
	return nil
}

// Decrypt opens the sealed part with the server key.
func (t *Ticket) Decrypt(serverKey []byte) error {
	if !t.IsEncrypted() {
		return ErrNotEncrypted
	}
	if err := checkKey(serverKey); err != nil {
		return err
	}
	if err := t.checkHeader(); err != nil {
		return err
	}

	plain, err := open(serverKey, t.IV, t.ciphertext, KeySize+8)
	if err != nil {
		return err
	}
	defer secret.Wipe(plain)

	if cryptox.IsZero(plain[:KeySize]) {
		return missing("session key")
	}
	if cryptox.IsZero(plain[KeySize:]) {
		return missing("expiry")
	}

	t.Key = secret.From(plain[:KeySize])
	t.ExpiresAt = millis(plain[KeySize:])
	t.ciphertext = nil
	return nil
}

// Marshal returns the wire form of an encrypted ticket.
func (t *Ticket) Marshal() ([]byte, error) {
	if !t.IsEncrypted() {
		return nil, ErrNotEncrypted
	}
	var created [8]byte
	putMillis(created[:], t.CreatedAt)

	b := cryptobyte.NewFixedBuilder(make([]byte, 0, TicketSize))
	b.AddUint8(t.Version)
	b.AddBytes(t.ClientID[:])
	b.AddBytes(t.ServerID[:])
	b.AddBytes(created[:])
	b.AddBytes(t.IV[:])
	b.AddBytes(t.ciphertext)
	return b.Bytes()
}

// ParseTicket reads exactly TicketSize bytes.
func ParseTicket(raw []byte) (*Ticket, error) {
	if len(raw) != TicketSize {
		return nil, fmt.Errorf("%w: ticket is %d bytes, expected %d", ErrMalformed, len(raw), TicketSize)
	}
	t := &Ticket{}
	in := cryptobyte.String(raw)
	var created, ct []byte
	if !in.ReadUint8(&t.Version) ||
		!in.CopyBytes(t.ClientID[:]) ||
		!in.CopyBytes(t.ServerID[:]) ||
		!in.ReadBytes(&created, 8) ||
		!in.CopyBytes(t.IV[:]) ||
		!in.ReadBytes(&ct, sealedSize) ||
		!in.Empty() {
		return nil, ErrMalformed
	}
	t.CreatedAt = millis(created)
	t.ciphertext = append([]byte(nil), ct...)
	return t, nil
}
