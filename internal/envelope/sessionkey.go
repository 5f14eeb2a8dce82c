package envelope

import (
	"fmt"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"golang.org/x/crypto/cryptobyte"
)

// SessionKeySize is the wire size: IV(16) ∥ ciphertext(48).
const SessionKeySize = IVSize + sealedSize

// SessionKey carries the nonce and the fresh session key to the client,
// encrypted under the client's password hash.
type SessionKey struct {
	IV    IV
	Nonce Nonce
	Key   *secret.Bytes

	ciphertext []byte
}

func (s *SessionKey) IsEncrypted() bool {
	return s.ciphertext != nil
}

// Encrypt seals nonce ∥ key under passwordHash. The plaintext key is wiped.
func (s *SessionKey) Encrypt(passwordHash []byte) error {
	if err := checkKey(passwordHash); err != nil {
		return err
	}
	if cryptox.IsZero(s.IV[:]) {
		return missing("iv")
	}
	if cryptox.IsZero(s.Nonce[:]) {
		return missing("nonce")
	}
	if s.Key.Len() != KeySize {
		return fmt.Errorf("%w: session key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if cryptox.IsZero(s.Key.Bytes()) {
		return missing("session key")
	}

	plain := make([]byte, 0, NonceSize+KeySize)
	plain = append(plain, s.Nonce[:]...)
	plain = append(plain, s.Key.Bytes()...)
	defer secret.Wipe(plain)

	ct, err := seal(passwordHash, s.IV, plain)
	if err != nil {
		return err
	}

	s.ciphertext = ct
	s.Nonce = Nonce{}
	s.Key.Wipe()
	s.Key = nil
	return nil
}

// Decrypt recovers nonce and key with the password hash.
func (s *SessionKey) Decrypt(passwordHash []byte) error {
	if !s.IsEncrypted() {
		return ErrNotEncrypted
	}
	if err := checkKey(passwordHash); err != nil {
		return err
	}
	if cryptox.IsZero(s.IV[:]) {
		return missing("iv")
	}

	plain, err := open(passwordHash, s.IV, s.ciphertext, NonceSize+KeySize)
	if err != nil {
		return err
	}
	defer secret.Wipe(plain)

	var nonce Nonce
	copy(nonce[:], plain[:NonceSize])
	if cryptox.IsZero(nonce[:]) {
		return missing("nonce")
	}
	if cryptox.IsZero(plain[NonceSize:]) {
		return missing("session key")
	}

	s.Nonce = nonce
	s.Key = secret.From(plain[NonceSize:])
	s.ciphertext = nil
	return nil
}

// Marshal returns the wire form. Only encrypted envelopes can be sent.
func (s *SessionKey) Marshal() ([]byte, error) {
	if !s.IsEncrypted() {
		return nil, ErrNotEncrypted
	}
	b := cryptobyte.NewFixedBuilder(make([]byte, 0, SessionKeySize))
	b.AddBytes(s.IV[:])
	b.AddBytes(s.ciphertext)
	return b.Bytes()
}

// ParseSessionKey reads exactly SessionKeySize bytes.
func ParseSessionKey(raw []byte) (*SessionKey, error) {
	if len(raw) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key is %d bytes, expected %d", ErrMalformed, len(raw), SessionKeySize)
	}
	s := &SessionKey{}
	in := cryptobyte.String(raw)
	var ct []byte
	if !in.CopyBytes(s.IV[:]) || !in.ReadBytes(&ct, sealedSize) || !in.Empty() {
		return nil, ErrMalformed
	}
	s.ciphertext = append([]byte(nil), ct...)
	return s, nil
}
