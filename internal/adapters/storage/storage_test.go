package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behavior every backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is not found", func(t *testing.T) {
		_, err := b.Load(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		require.NoError(t, b.Save(ctx, "teams", []byte(`[{"name":"Red"}]`)))
		got, err := b.Load(ctx, "teams")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"name":"Red"}]`, string(got))
	})

	t.Run("overwrite replaces the whole document", func(t *testing.T) {
		require.NoError(t, b.Save(ctx, "cosplay", []byte(`[1,2,3,4]`)))
		require.NoError(t, b.Save(ctx, "cosplay", []byte(`[]`)))
		got, err := b.Load(ctx, "cosplay")
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, b.Save(ctx, "a", []byte(`1`)))
		require.NoError(t, b.Save(ctx, "b", []byte(`2`)))
		got, err := b.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, `1`, string(got))
	})
}

func TestMemory(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	exerciseBackend(t, b)

	t.Run("returned bytes are copies", func(t *testing.T) {
		ctx := context.Background()
		data := []byte(`"x"`)
		require.NoError(t, b.Save(ctx, "k", data))
		data[1] = 'y'
		got, err := b.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `"x"`, string(got))
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.Save(ctx, "k", []byte(`1`)), context.Canceled)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = b.Save(context.Background(), "hot", []byte(`{}`))
				_, _ = b.Load(context.Background(), "hot")
			}()
		}
		wg.Wait()
	})
}

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewFile(dir)
	require.NoError(t, err)
	exerciseBackend(t, b)

	t.Run("document lives at key.json with no temp files left", func(t *testing.T) {
		require.NoError(t, b.Save(context.Background(), "eventscores", []byte(`[]`)))
		_, err := os.Stat(filepath.Join(dir, "eventscores.json"))
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("empty dir is rejected", func(t *testing.T) {
		_, err := NewFile(" ")
		assert.Error(t, err)
	})
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taikai.db")
	b, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)

	t.Run("data survives reopen", func(t *testing.T) {
		require.NoError(t, b.Save(context.Background(), "musclemax", []byte(`{"grip":60}`)))
		require.NoError(t, b.Close())

		again, err := OpenSQLite(context.Background(), path)
		require.NoError(t, err)
		defer again.Close()

		got, err := again.Load(context.Background(), "musclemax")
		require.NoError(t, err)
		assert.JSONEq(t, `{"grip":60}`, string(got))
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := OpenSQLite(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("default is memory", func(t *testing.T) {
		b, err := Open(ctx, Config{})
		require.NoError(t, err)
		defer b.Close()
		exerciseBackend(t, b)
	})

	t.Run("file backend", func(t *testing.T) {
		b, err := Open(ctx, Config{Backend: "FILE", DataDir: t.TempDir()})
		require.NoError(t, err)
		defer b.Close()
		exerciseBackend(t, b)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Config{Backend: "etcd"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("misconfigured backends fail fast", func(t *testing.T) {
		for _, cfg := range []Config{
			{Backend: BackendPostgres},
			{Backend: BackendRedis},
			{Backend: BackendMongo},
			{Backend: BackendS3},
			{Backend: BackendSQLite},
		} {
			_, err := Open(ctx, cfg)
			assert.Error(t, err, cfg.Backend)
		}
	})
}

func TestIsS3NotFound(t *testing.T) {
	assert.False(t, isS3NotFound(assert.AnError))
}
