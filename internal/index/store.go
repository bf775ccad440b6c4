package index

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists tracked files in SQLite so embeddings survive restarts.
// Embeddings are stored as little-endian float32 blobs, the layout sqlite-vec
// expects. Builds tagged sqlite_vec rank similarity inside SQLite; the
// portable build ranks with cosine similarity in Go.
type Store struct {
	db *sql.DB
}

// vecHit is one row from a vector search, keyed back into the in-memory map.
type vecHit struct {
	Path       string
	Similarity float64
}

// OpenStore opens (and migrates) the SQLite index database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tracked_files (
		path         TEXT PRIMARY KEY,
		mtime        INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		embedding    BLOB,
		sticky       INTEGER NOT NULL DEFAULT 0,
		last_queried INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a tracked file row.
func (s *Store) Save(tf *TrackedFile) error {
	var emb any
	if tf.Embedding != nil {
		emb = encodeEmbedding(tf.Embedding)
	}

	sticky := 0
	if tf.Sticky {
		sticky = 1
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO tracked_files
		 (path, mtime, content_hash, embedding, sticky, last_queried)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tf.Path, tf.ModTime.UnixNano(), tf.ContentHash, emb, sticky, tf.LastQueried.UnixNano(),
	)
	return err
}

// Delete removes a tracked file row.
func (s *Store) Delete(path string) error {
	_, err := s.db.Exec("DELETE FROM tracked_files WHERE path = ?", path)
	return err
}

// LoadAll returns every persisted tracked file. Rows with corrupt embedding
// blobs are returned without embeddings rather than failing the load.
func (s *Store) LoadAll() ([]*TrackedFile, error) {
	rows, err := s.db.Query(
		"SELECT path, mtime, content_hash, embedding, sticky, last_queried FROM tracked_files",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TrackedFile
	for rows.Next() {
		var (
			tf     TrackedFile
			mtime  int64
			emb    []byte
			sticky int
			lastQ  int64
		)
		if err := rows.Scan(&tf.Path, &mtime, &tf.ContentHash, &emb, &sticky, &lastQ); err != nil {
			return nil, err
		}
		tf.ModTime = time.Unix(0, mtime)
		tf.Sticky = sticky != 0
		if lastQ > 0 {
			tf.LastQueried = time.Unix(0, lastQ)
		}
		tf.Embedding = decodeEmbedding(emb)
		out = append(out, &tf)
	}
	return out, rows.Err()
}

// encodeEmbedding packs a vector as a little-endian float32 blob, the layout
// sqlite-vec expects.
func encodeEmbedding(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeEmbedding is the inverse of encodeEmbedding. Returns nil for empty
// or truncated blobs so a corrupt row degrades to an unembedded file.
func decodeEmbedding(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
