// Package identity defines the 16-byte identifier shared by clients and
// servers. On the wire it travels as raw bytes, in files and logs it is
// written as 32 lowercase hex characters.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Size is the length of an identity in bytes.
const Size = 16

// HexSize is the length of the textual form.
const HexSize = Size * 2

var ErrInvalid = errors.New("invalid identity")

// ID identifies a client or a server. The all-zero value means "missing".
type ID [Size]byte

// New draws a fresh random identity.
func New() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ID{}, fmt.Errorf("generate identity: %w", err)
	}
	return ID(u), nil
}

// Parse decodes the 32-character hex form.
func Parse(s string) (ID, error) {
	if len(s) != HexSize {
		return ID{}, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalid, HexSize, len(s))
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return id, nil
}

// FromBytes copies exactly Size bytes into an ID.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return ID{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalid, Size, len(b))
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
