package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingBlob_RoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	assert.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))
}

func TestEmbeddingBlob_CorruptDegradesToNil(t *testing.T) {
	assert.Nil(t, decodeEmbedding(nil))
	assert.Nil(t, decodeEmbedding([]byte{1, 2, 3}), "truncated blob")
}

func TestStore_CorruptEmbeddingRowLoads(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(&TrackedFile{
		Path:        "/tmp/a.txt",
		ModTime:     time.Now(),
		ContentHash: "h",
		Embedding:   []float32{1, 0},
	}))
	_, err = store.db.Exec("UPDATE tracked_files SET embedding = ?", []byte{9, 9, 9})
	require.NoError(t, err)

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Nil(t, loaded[0].Embedding, "corrupt blob loads as an unembedded file")
}
