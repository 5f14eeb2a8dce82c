// Package secret holds key material and passwords in buffers that are
// zeroed once the owner is done with them.
//
// Callers should defer Wipe. A runtime cleanup wipes the buffer as well when
// the holder becomes unreachable, so a forgotten Wipe does not leave the
// bytes around until the memory is reused.
package secret

import (
	"bytes"
	"runtime"
)

// Bytes is an owned secret buffer.
type Bytes struct {
	b []byte
}

// New allocates a zeroed secret of n bytes.
func New(n int) *Bytes {
	return track(make([]byte, n))
}

// From copies b into a new secret. The caller keeps ownership of b and is
// free to wipe it.
func From(b []byte) *Bytes {
	return track(bytes.Clone(b))
}

// Take adopts b without copying. b must not be used by the caller afterwards.
func Take(b []byte) *Bytes {
	return track(b)
}

func track(b []byte) *Bytes {
	s := &Bytes{b: b}
	runtime.AddCleanup(s, Wipe, b)
	return s
}

// Bytes exposes the underlying buffer. It is nil after Wipe.
func (s *Bytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

func (s *Bytes) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Clone returns an independent copy.
func (s *Bytes) Clone() *Bytes {
	return From(s.Bytes())
}

// Equal compares contents.
func (s *Bytes) Equal(o *Bytes) bool {
	return bytes.Equal(s.Bytes(), o.Bytes())
}

// Wipe zeroes the buffer and drops it. Safe on nil and repeated calls.
func (s *Bytes) Wipe() {
	if s == nil {
		return
	}
	Wipe(s.b)
	s.b = nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	clear(b)
}
