package peers

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/common"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
)

// Directory is the in-memory view of all clients plus the one message
// server. Every exported method is a single critical section.
type Directory struct {
	mu      sync.Mutex
	store   Store
	logger  logging.Logger
	clients map[identity.ID]ClientRecord
	server  serverinfo.Record

	now   func() time.Time
	newID func() (identity.ID, error)
}

// Open loads the store into memory. A store whose contents are corrupt is
// reset to empty and the event is logged. Any other load error, such as an
// unreachable database, aborts startup and leaves the store untouched, as
// do a failing reset and duplicate identities.
func Open(ctx context.Context, store Store, server serverinfo.Record, logger logging.Logger) (*Directory, error) {
	d := &Directory{
		store:   store,
		logger:  logger,
		clients: make(map[identity.ID]ClientRecord),
		server:  server,
		now:     time.Now,
		newID:   identity.New,
	}

	records, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptStore) {
			return nil, fmt.Errorf("load client store: %w", err)
		}
		logger.Warn(ctx, "client store unreadable, starting with an empty directory", "error", err)
		if err := store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset client store: %w", err)
		}
		records = nil
	}

	names := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := d.clients[rec.ID]; dup {
			return nil, fmt.Errorf("%w: identity %s stored twice", ErrInvariant, rec.ID)
		}
		if _, dup := names[rec.Name]; dup {
			return nil, fmt.Errorf("%w: name %q stored twice", ErrInvariant, rec.Name)
		}
		d.clients[rec.ID] = rec
		names[rec.Name] = struct{}{}
	}

	logger.Info(ctx, "client directory loaded", "clients", len(d.clients), "server", server.Name)
	return d, nil
}

// Register creates a client with a fresh identity. The record is written to
// the store before it becomes visible in memory.
func (d *Directory) Register(ctx context.Context, name string, passwordHash [sha256.Size]byte) (identity.ID, error) {
	if err := ValidateName(name); err != nil {
		return identity.ID{}, fmt.Errorf("%w: %v", common.ErrorInvalidInput, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, rec := range d.clients {
		if rec.Name == name {
			return identity.ID{}, fmt.Errorf("name %q: %w", name, common.ErrorAlreadyExists)
		}
	}

	id, err := d.newID()
	if err != nil {
		return identity.ID{}, err
	}
	if _, taken := d.clients[id]; taken || id == d.server.ID {
		return identity.ID{}, fmt.Errorf("%w: generated identity %s already in use", ErrInvariant, id)
	}

	rec := ClientRecord{ID: id, Name: name, PasswordHash: passwordHash, LastSeen: d.now()}
	if err := d.store.Append(ctx, rec); err != nil {
		return identity.ID{}, fmt.Errorf("persist client: %w", err)
	}
	d.clients[id] = rec
	return id, nil
}

// LookupClient returns the record for id.
func (d *Directory) LookupClient(id identity.ID) (ClientRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.clients[id]
	return rec, ok
}

// LookupServer returns the message server when id matches it.
func (d *Directory) LookupServer(id identity.ID) (serverinfo.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id.IsZero() || id != d.server.ID {
		return serverinfo.Record{}, false
	}
	return d.server, true
}

// Touch refreshes the in-memory last-seen time of a client.
func (d *Directory) Touch(id identity.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rec, ok := d.clients[id]; ok {
		rec.LastSeen = d.now()
		d.clients[id] = rec
	}
}

// Len returns the number of clients.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}
