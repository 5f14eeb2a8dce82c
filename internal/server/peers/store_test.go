package peers

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T, name string) ClientRecord {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	return ClientRecord{
		ID:           id,
		Name:         name,
		PasswordHash: sha256.Sum256([]byte(name)),
		LastSeen:     time.Date(2024, 3, 5, 9, 4, 5, 0, time.Local),
	}
}

func TestFormatParseLine(t *testing.T) {
	rec := sampleRecord(t, "alice")

	line := rec.FormatLine()
	parts := strings.Split(line, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, rec.ID.String(), parts[0])
	assert.Equal(t, "alice", parts[1])
	assert.Equal(t, "09.04.05 05/03/2024", parts[3])

	got, err := ParseLine(line)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLine_Corrupt(t *testing.T) {
	good := sampleRecord(t, "bob").FormatLine()
	f := strings.Split(good, ":")

	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "a:b:c"},
		{"too many fields", good + ":extra"},
		{"bad id", strings.Join([]string{"zz", f[1], f[2], f[3]}, ":")},
		{"zero id", strings.Join([]string{strings.Repeat("0", 32), f[1], f[2], f[3]}, ":")},
		{"empty name", strings.Join([]string{f[0], "", f[2], f[3]}, ":")},
		{"bad base64", strings.Join([]string{f[0], f[1], "!!!", f[3]}, ":")},
		{"short hash", strings.Join([]string{f[0], f[1], "AAAA", f[3]}, ":")},
		{"bad time", strings.Join([]string{f[0], f[1], f[2], "yesterday"}, ":")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.ErrorIs(t, err, ErrCorruptStore)
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"alice", false},
		{strings.Repeat("a", MaxNameSize), false},
		{"", true},
		{strings.Repeat("a", MaxNameSize+1), true},
		{"a:b", true},
		{"a\nb", true},
		{"a\rb", true},
		{"a\x00b", true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		assert.Equal(t, tt.wantErr, err != nil, "%q", tt.name)
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "clients"))
	recs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clients")
	s := NewFileStore(path)

	a, b := sampleRecord(t, "alice"), sampleRecord(t, "bob")
	require.NoError(t, s.Append(ctx, a))
	require.NoError(t, s.Append(ctx, b))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, a.FormatLine()+"\n"+b.FormatLine()+"\n", string(raw))

	got, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]ClientRecord{a, b}, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_SkipsBlankLinesAndCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients")
	a := sampleRecord(t, "alice")
	require.NoError(t, os.WriteFile(path, []byte("\n"+a.FormatLine()+"\r\n\n"), 0o600))

	got, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestFileStore_CorruptAndReset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clients")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o600))
	s := NewFileStore(path)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptStore)

	require.NoError(t, s.Reset(ctx))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	recs, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
