// Package cryptox wraps the primitives the protocol is built on: AES-256 in
// CBC mode with PKCS#7 padding, SHA-256 password hashing and random bytes.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// IVSize equals the AES block size.
	IVSize = aes.BlockSize
)

var (
	// ErrCipherUnavailable means the host cannot construct the cipher at all.
	// It is not caused by input data and callers treat it as fatal.
	ErrCipherUnavailable = errors.New("cipher backend unavailable")

	ErrInvalidKey        = errors.New("invalid key length")
	ErrInvalidIV         = errors.New("invalid iv length")
	ErrInvalidCiphertext = errors.New("ciphertext is not a positive multiple of the block size")
	ErrBadPadding        = errors.New("bad padding")
)

// newBlock is swapped in tests to simulate a missing cipher backend.
var newBlock = aes.NewCipher

func block(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	b, err := newBlock(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipherUnavailable, err)
	}
	return b, nil
}

// EncryptCBC pads plaintext and encrypts it under key with the given IV.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIV, len(iv))
	}
	b, err := block(key)
	if err != nil {
		return nil, err
	}

	padded := Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(b, iv).CryptBlocks(out, padded)
	clear(padded)
	return out, nil
}

// DecryptCBC decrypts and strips the padding. A wrong key almost always
// surfaces as ErrBadPadding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIV, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	b, err := block(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(b, iv).CryptBlocks(out, ciphertext)

	plain, err := Unpad(out, aes.BlockSize)
	if err != nil {
		clear(out)
		return nil, err
	}
	return plain, nil
}

// Pad applies PKCS#7 padding. A full block is added when the input is
// already aligned.
func Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad removes PKCS#7 padding, checking every pad byte.
func Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

// HashPassword returns SHA-256 over the password with every UTF-16 code
// unit narrowed to its low byte, so a character outside the BMP contributes
// two bytes from its surrogate pair. Non-ASCII input therefore hashes the
// same as some other ASCII-range input; peers depend on this exact
// derivation.
func HashPassword(password []byte) [sha256.Size]byte {
	narrowed := make([]byte, 0, len(password))
	for len(password) > 0 {
		r, n := utf8.DecodeRune(password)
		if hi, lo := utf16.EncodeRune(r); hi != utf8.RuneError {
			narrowed = append(narrowed, byte(hi), byte(lo))
		} else {
			narrowed = append(narrowed, byte(r))
		}
		password = password[n:]
	}
	sum := sha256.Sum256(narrowed)
	clear(narrowed)
	return sum
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// IsZero reports whether every byte of b is zero. Empty input counts as zero.
func IsZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
