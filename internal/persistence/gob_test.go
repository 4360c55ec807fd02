package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string
	Items []string
}

func TestSaveAndLoadGob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.gob")

	in := snapshot{Name: "run", Items: []string{"a", "b"}}
	require.NoError(t, SaveGob(path, in))

	var out snapshot
	require.NoError(t, LoadGob(path, &out))
	assert.Equal(t, in, out)

	// Overwrite leaves no temp files behind
	require.NoError(t, SaveGob(path, snapshot{Name: "second"}))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadGob_Missing(t *testing.T) {
	var out snapshot
	err := LoadGob(filepath.Join(t.TempDir(), "absent.gob"), &out)
	assert.Equal(t, os.ErrNotExist, err)
}
