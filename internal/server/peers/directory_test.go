package peers

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/common"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	records   []ClientRecord
	loadErr   error
	appendErr error
	resetErr  error
	resets    int
}

func (f *fakeStore) Load(context.Context) ([]ClientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]ClientRecord(nil), f.records...), nil
}

func (f *fakeStore) Append(_ context.Context, rec ClientRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.records = nil
	f.loadErr = nil
	return nil
}

func testServer(t *testing.T) serverinfo.Record {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	return serverinfo.Record{Addr: "127.0.0.1:1235", Name: "Printer", ID: id, Key: make([]byte, 32)}
}

func openDir(t *testing.T, st Store) *Directory {
	t.Helper()
	d, err := Open(context.Background(), st, testServer(t), logging.Discard())
	require.NoError(t, err)
	return d
}

func TestOpen_LoadsRecords(t *testing.T) {
	a, b := sampleRecord(t, "alice"), sampleRecord(t, "bob")
	d := openDir(t, &fakeStore{records: []ClientRecord{a, b}})

	assert.Equal(t, 2, d.Len())
	got, ok := d.LookupClient(b.ID)
	require.True(t, ok)
	assert.Equal(t, "bob", got.Name)
}

func TestOpen_CorruptStoreResets(t *testing.T) {
	st := &fakeStore{loadErr: ErrCorruptStore}
	d := openDir(t, st)

	assert.Equal(t, 0, d.Len())
	assert.Equal(t, 1, st.resets)
}

func TestOpen_LoadFailureLeavesStoreAlone(t *testing.T) {
	down := errors.New("db error: connection refused")
	st := &fakeStore{loadErr: down}
	_, err := Open(context.Background(), st, testServer(t), logging.Discard())
	require.ErrorIs(t, err, down)
	assert.Zero(t, st.resets)
}

func TestOpen_ResetFailureIsFatal(t *testing.T) {
	st := &fakeStore{loadErr: ErrCorruptStore, resetErr: errors.New("read-only")}
	_, err := Open(context.Background(), st, testServer(t), logging.Discard())
	require.Error(t, err)
}

func TestOpen_DuplicateIdentity(t *testing.T) {
	a := sampleRecord(t, "alice")
	b := a
	b.Name = "bob"

	_, err := Open(context.Background(), &fakeStore{records: []ClientRecord{a, b}}, testServer(t), logging.Discard())
	require.ErrorIs(t, err, ErrInvariant)
}

func TestRegister(t *testing.T) {
	st := &fakeStore{}
	d := openDir(t, st)
	hash := sha256.Sum256([]byte("pw"))

	id, err := d.Register(context.Background(), "alice", hash)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	rec, ok := d.LookupClient(id)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, hash, rec.PasswordHash)

	require.Len(t, st.records, 1)
	assert.Equal(t, id, st.records[0].ID)
}

func TestRegister_DuplicateName(t *testing.T) {
	st := &fakeStore{}
	d := openDir(t, st)

	_, err := d.Register(context.Background(), "alice", [32]byte{1})
	require.NoError(t, err)
	_, err = d.Register(context.Background(), "alice", [32]byte{2})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Equal(t, 1, d.Len())
	assert.Len(t, st.records, 1)
}

func TestRegister_InvalidName(t *testing.T) {
	d := openDir(t, &fakeStore{})
	_, err := d.Register(context.Background(), "al:ice", [32]byte{})
	require.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestRegister_IdentityCollision(t *testing.T) {
	a := sampleRecord(t, "alice")
	d := openDir(t, &fakeStore{records: []ClientRecord{a}})
	d.newID = func() (identity.ID, error) { return a.ID, nil }

	_, err := d.Register(context.Background(), "bob", [32]byte{})
	require.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, 1, d.Len())
}

func TestRegister_StoreFailureLeavesDirectoryUnchanged(t *testing.T) {
	st := &fakeStore{appendErr: errors.New("disk full")}
	d := openDir(t, st)

	_, err := d.Register(context.Background(), "alice", [32]byte{})
	require.Error(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestRegister_Concurrent(t *testing.T) {
	d := openDir(t, &fakeStore{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Register(context.Background(), "same", [32]byte{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, d.Len())
}

func TestLookupServer(t *testing.T) {
	srv := testServer(t)
	d, err := Open(context.Background(), &fakeStore{}, srv, logging.Discard())
	require.NoError(t, err)

	got, ok := d.LookupServer(srv.ID)
	require.True(t, ok)
	assert.Equal(t, "Printer", got.Name)

	_, ok = d.LookupServer(identity.ID{})
	assert.False(t, ok)

	other, err := identity.New()
	require.NoError(t, err)
	_, ok = d.LookupServer(other)
	assert.False(t, ok)
}

func TestTouch(t *testing.T) {
	a := sampleRecord(t, "alice")
	d := openDir(t, &fakeStore{records: []ClientRecord{a}})
	later := a.LastSeen.Add(42e9)
	d.now = func() time.Time { return later }

	d.Touch(a.ID)
	got, _ := d.LookupClient(a.ID)
	assert.True(t, got.LastSeen.Equal(later))
}
