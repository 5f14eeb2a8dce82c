// Package sessions holds the message server's open sessions: one decrypted
// ticket per client identity, kept for the life of the process.
package sessions

import (
	"sync"

	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

// Table maps client identities to the ticket that opened their session.
type Table struct {
	mu      sync.Mutex
	entries map[identity.ID]*envelope.Ticket
}

func NewTable() *Table {
	return &Table{entries: make(map[identity.ID]*envelope.Ticket)}
}

// Add stores the ticket for id. It returns false and keeps the existing
// entry when id already has a session.
func (t *Table) Add(id identity.ID, ticket *envelope.Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return false
	}
	t.entries[id] = ticket
	return true
}

func (t *Table) Get(id identity.ID) (*envelope.Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.entries[id]
	return tk, ok
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
