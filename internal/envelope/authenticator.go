package envelope

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"golang.org/x/crypto/cryptobyte"
)

// AuthenticatorSize is the wire size: IV(16) ∥ ciphertext(48).
const AuthenticatorSize = IVSize + sealedSize

const authenticatorPlainSize = 1 + identity.Size*2 + 8

// Authenticator is built by the client for each ticket submission and
// sealed under the session key taken from the ticket.
//
// It carries no freshness window: a captured authenticator and ticket pair
// stays usable until the ticket expires.
type Authenticator struct {
	IV IV

	Version   byte
	ClientID  identity.ID
	ServerID  identity.ID
	CreatedAt time.Time

	ciphertext []byte
}

func (a *Authenticator) IsEncrypted() bool {
	return a.ciphertext != nil
}

func (a *Authenticator) checkFields() error {
	switch {
	case a.Version == 0:
		return missing("version")
	case a.ClientID.IsZero():
		return missing("client id")
	case a.ServerID.IsZero():
		return missing("server id")
	case a.CreatedAt.UnixMilli() == 0:
		return missing("creation time")
	}
	return nil
}

// Encrypt seals the plaintext fields under the session key.
func (a *Authenticator) Encrypt(sessionKey []byte) error {
	if err := checkKey(sessionKey); err != nil {
		return err
	}
	if cryptox.IsZero(a.IV[:]) {
		return missing("iv")
	}
	if err := a.checkFields(); err != nil {
		return err
	}

	plain := make([]byte, 0, authenticatorPlainSize)
	plain = append(plain, a.Version)
	plain = append(plain, a.ClientID[:]...)
	plain = append(plain, a.ServerID[:]...)
	plain = plain[:authenticatorPlainSize]
	putMillis(plain[1+identity.Size*2:], a.CreatedAt)
	defer secret.Wipe(plain)

	ct, err := seal(sessionKey, a.IV, plain)
	if err != nil {
		return err
	}

	a.ciphertext = ct
	a.Version = 0
	a.ClientID = identity.ID{}
	a.ServerID = identity.ID{}
	a.CreatedAt = time.Time{}
	return nil
}

// Decrypt opens the authenticator with the session key.
func (a *Authenticator) Decrypt(sessionKey []byte) error {
	if !a.IsEncrypted() {
		return ErrNotEncrypted
	}
	if err := checkKey(sessionKey); err != nil {
		return err
	}
	if cryptox.IsZero(a.IV[:]) {
		return missing("iv")
	}

	plain, err := open(sessionKey, a.IV, a.ciphertext, authenticatorPlainSize)
	if err != nil {
		return err
	}
	defer secret.Wipe(plain)

	in := cryptobyte.String(plain)
	var (
		version        uint8
		client, server identity.ID
		created        []byte
	)
	if !in.ReadUint8(&version) || !in.CopyBytes(client[:]) || !in.CopyBytes(server[:]) || !in.ReadBytes(&created, 8) {
		return fmt.Errorf("%w: short authenticator", ErrDecrypt)
	}

	dec := Authenticator{IV: a.IV, Version: version, ClientID: client, ServerID: server, CreatedAt: millis(created)}
	if err := dec.checkFields(); err != nil {
		return err
	}
	*a = dec
	return nil
}

// Marshal returns the wire form of an encrypted authenticator.
func (a *Authenticator) Marshal() ([]byte, error) {
	if !a.IsEncrypted() {
		return nil, ErrNotEncrypted
	}
	b := cryptobyte.NewFixedBuilder(make([]byte, 0, AuthenticatorSize))
	b.AddBytes(a.IV[:])
	b.AddBytes(a.ciphertext)
	return b.Bytes()
}

// ParseAuthenticator reads exactly AuthenticatorSize bytes.
func ParseAuthenticator(raw []byte) (*Authenticator, error) {
	if len(raw) != AuthenticatorSize {
		return nil, fmt.Errorf("%w: authenticator is %d bytes, expected %d", ErrMalformed, len(raw), AuthenticatorSize)
	}
	a := &Authenticator{}
	in := cryptobyte.String(raw)
	var ct []byte
	if !in.CopyBytes(a.IV[:]) || !in.ReadBytes(&ct, sealedSize) || !in.Empty() {
		return nil, ErrMalformed
	}
	a.ciphertext = append([]byte(nil), ct...)
	return a, nil
}
