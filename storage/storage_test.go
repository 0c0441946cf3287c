package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()

	jsonStore, err := Open("json", t.TempDir())
	require.NoError(t, err)
	boltStore, err := Open("bolt", t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		jsonStore.Close()
		boltStore.Close()
	})
	return map[string]Store{"json": jsonStore, "bolt": boltStore}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			var out map[string]int
			err := s.Load("counts", &out)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save("counts", map[string]int{"a": 1}))
			require.NoError(t, s.Save("other", "x"))
			require.NoError(t, s.Load("counts", &out))
			assert.Equal(t, map[string]int{"a": 1}, out)

			require.NoError(t, s.Save("counts", map[string]int{"b": 2}))
			out = nil
			require.NoError(t, s.Load("counts", &out))
			assert.Equal(t, map[string]int{"b": 2}, out)

			require.NoError(t, s.Delete("counts"))
			require.NoError(t, s.Delete("counts"))
			assert.ErrorIs(t, s.Load("counts", &out), ErrNotFound)

			var other string
			require.NoError(t, s.Load("other", &other))
			assert.Equal(t, "x", other)
		})
	}
}

func TestProgramConfig(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadProgramConfig(s)
			require.NoError(t, err)
			assert.Nil(t, cfg)

			want := &ProgramConfig{
				ProgramID:     "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
				Name:          "vault",
				RPCURL:        "https://api.devnet.solana.com",
				Cluster:       "devnet",
				Commitment:    "confirmed",
				InitializedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
				SerializedIDL: `{"instructions":[]}`,
			}
			require.NoError(t, SaveProgramConfig(s, want))

			got, err := LoadProgramConfig(s)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, ClearProgramConfig(s))
			got, err = LoadProgramConfig(s)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestJSONDB_Persists(t *testing.T) {
	dir := t.TempDir()

	db, err := Connect(dir)
	require.NoError(t, err)
	require.NoError(t, db.Save("k", 42))
	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Save("k", 1), ErrClosed)

	data, err := os.ReadFile(filepath.Join(dir, jsonFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"k": 42`)

	reopened, err := Connect(dir)
	require.NoError(t, err)
	var v int
	require.NoError(t, reopened.Load("k", &v))
	assert.Equal(t, 42, v)
}

func TestBoltStore_Closed(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "nested", boltFileName))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var v int
	assert.ErrorIs(t, s.Load("k", &v), ErrClosed)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}
