package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clai/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_UpsertOnWrite(t *testing.T) {
	eng := newFakeEngine()
	idx, err := New(eng, config.IndexConfig{MaxTracked: 10, SkipBinary: true})
	require.NoError(t, err)
	defer idx.Close()

	root := t.TempDir()
	w, err := NewWatcher(idx, root, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return idx.Tracked(path)
	}), "watcher should index newly written file")
}

func TestWatcher_RemoveOnDelete(t *testing.T) {
	eng := newFakeEngine()
	idx, err := New(eng, config.IndexConfig{MaxTracked: 10})
	require.NoError(t, err)
	defer idx.Close()

	root := t.TempDir()
	path := writeFile(t, root, "doomed.txt", "bye")
	require.NoError(t, idx.Upsert(context.Background(), path))

	w, err := NewWatcher(idx, root, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return !idx.Tracked(path)
	}), "watcher should evict deleted file")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	eng := newFakeEngine()
	idx := newTestIndex(t, eng)

	w, err := NewWatcher(idx, t.TempDir(), 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
