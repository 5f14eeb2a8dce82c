package meinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophkerb/internal/common"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "me.info")
	id, err := identity.New()
	require.NoError(t, err)
	want := Info{Name: "Ron Person", ID: id}

	require.NoError(t, Save(path, want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Ron Person\n"+id.String()+"\n", string(raw))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "me.info"))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"name only", "alice\n"},
		{"bad hex", "alice\nxyz\n"},
		{"zero id", "alice\n00000000000000000000000000000000\n"},
		{"blank name", "\n0102030405060708090a0b0c0d0e0f10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "me.info")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestSave_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "me.info")
	assert.ErrorIs(t, Save(path, Info{Name: "alice"}), ErrInvalid)
	assert.ErrorIs(t, Save(path, Info{Name: "a\nb", ID: identity.ID{1}}), ErrInvalid)
	assert.ErrorIs(t, Save(path, Info{ID: identity.ID{1}}), ErrInvalid)
}
