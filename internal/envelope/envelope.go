// Package envelope implements the three encrypted structures exchanged by the
// protocol: the encrypted session key handed to the client, the ticket that
// the client relays to the message server, and the authenticator that binds
// a ticket to the party presenting it.
//
// Every envelope owns one IV and one ciphertext blob next to its plaintext
// fields. After Encrypt the secret fields are gone and only the ciphertext
// is set; after Decrypt the reverse holds. Parse* constructors return
// envelopes in the encrypted state.
//
// All fixed-size fields treat an all-zero value as missing.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
)

const (
	NonceSize = 8
	IVSize    = cryptox.IVSize
	KeySize   = cryptox.KeySize

	// sealedSize is the ciphertext length of every envelope: 40 or 41
	// plaintext bytes pad to three AES blocks.
	sealedSize = 48

	// TicketLifetime is added to the ticket creation time to get its expiry.
	TicketLifetime = 10 * time.Minute
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidKey   = errors.New("invalid key")
	ErrDecrypt      = errors.New("decryption failed")
	ErrNotEncrypted = errors.New("envelope is not encrypted")
	ErrMalformed    = errors.New("malformed envelope")

	// ErrCipherUnavailable is fatal for the process, unlike ErrDecrypt.
	ErrCipherUnavailable = cryptox.ErrCipherUnavailable
)

// Nonce is the client-chosen value echoed back inside the session key.
type Nonce [NonceSize]byte

// IV is a CBC initialisation vector.
type IV [IVSize]byte

// NewIV returns a random IV.
func NewIV() (IV, error) {
	var iv IV
	b, err := cryptox.RandomBytes(IVSize)
	if err != nil {
		return iv, err
	}
	copy(iv[:], b)
	return iv, nil
}

// NewNonce returns a random nonce.
func NewNonce() (Nonce, error) {
	var n Nonce
	b, err := cryptox.RandomBytes(NonceSize)
	if err != nil {
		return n, err
	}
	copy(n[:], b)
	return n, nil
}

func checkKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	if cryptox.IsZero(key) {
		return fmt.Errorf("%w: key", ErrMissingField)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// seal encrypts plaintext and checks the fixed ciphertext length.
func seal(key []byte, iv IV, plaintext []byte) ([]byte, error) {
	ct, err := cryptox.EncryptCBC(key, iv[:], plaintext)
	if err != nil {
		if errors.Is(err, cryptox.ErrCipherUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return ct, nil
}

// open decrypts and requires exactly want plaintext bytes. Everything except
// a missing cipher backend is reported as ErrDecrypt.
func open(key []byte, iv IV, ciphertext []byte, want int) ([]byte, error) {
	pt, err := cryptox.DecryptCBC(key, iv[:], ciphertext)
	if err != nil {
		if errors.Is(err, cryptox.ErrCipherUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(pt) != want {
		clear(pt)
		return nil, fmt.Errorf("%w: plaintext is %d bytes, expected %d", ErrDecrypt, len(pt), want)
	}
	return pt, nil
}

func putMillis(b []byte, t time.Time) {
	binary.LittleEndian.PutUint64(b, uint64(t.UnixMilli()))
}

func millis(b []byte) time.Time {
	return time.UnixMilli(int64(binary.LittleEndian.Uint64(b)))
}
