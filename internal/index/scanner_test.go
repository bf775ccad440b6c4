package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clai/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_ExclusionPolicy(t *testing.T) {
	eng := newFakeEngine()
	idx, err := New(eng, config.IndexConfig{
		MaxFileBytes: 100,
		SkipBinary:   true,
		SkipDirs:     []string{"node_modules"},
		ScanWorkers:  2,
	})
	require.NoError(t, err)
	defer idx.Close()

	root := t.TempDir()
	keep := writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".hidden", "secret")

	// Over the size ceiling.
	big := make([]byte, 200)
	for i := range big {
		big[i] = 'x'
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), big, 0o644))

	// Binary content.
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0x7f, 0x00, 0x01}, 0o644))

	// Excluded directory.
	sub := filepath.Join(root, "node_modules")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "dep.js", "module.exports = 1")

	// Nested directory that should be scanned.
	nested := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(nested, 0o755))
	kept2 := writeFile(t, nested, "util.go", "package pkg")

	stats, err := idx.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Indexed)
	assert.True(t, idx.Tracked(keep))
	assert.True(t, idx.Tracked(kept2))
	assert.Equal(t, 2, idx.Len())
}

func TestScan_EmbedFailuresDoNotAbort(t *testing.T) {
	eng := newFakeEngine()
	eng.vectors["bad"] = nil

	idx := newTestIndex(t, eng)
	root := t.TempDir()
	writeFile(t, root, "bad.txt", "bad")
	good := writeFile(t, root, "good.txt", "good")

	stats, err := idx.Scan(context.Background(), root)
	require.NoError(t, err)

	// Both files are tracked; the failed one simply has no embedding yet.
	assert.Equal(t, 2, stats.Indexed)
	assert.True(t, idx.Tracked(good))
	assert.Equal(t, 2, idx.Len())
}

func TestScan_MissingRoot(t *testing.T) {
	eng := newFakeEngine()
	idx := newTestIndex(t, eng)

	_, err := idx.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
