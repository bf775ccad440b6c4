//go:build sqlite_vec && cgo

package index

import (
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec with the mattn/go-sqlite3 driver. vec.Auto()
	// registers it as an auto-loadable extension, so vec_distance_cosine is
	// available on every connection this package opens.
	vec.Auto()
}

const vecSearchEnabled = true

// searchNearest ranks non-sticky rows by cosine distance inside SQLite.
// Ties break toward the most recently modified file, matching the in-Go
// ranking path.
func (s *Store) searchNearest(query []float32, k int) ([]vecHit, error) {
	rows, err := s.db.Query(
		`SELECT path, 1.0 - vec_distance_cosine(embedding, ?) AS similarity
		 FROM tracked_files
		 WHERE sticky = 0 AND embedding IS NOT NULL
		 ORDER BY similarity DESC, mtime DESC
		 LIMIT ?`,
		encodeEmbedding(query), k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []vecHit
	for rows.Next() {
		var h vecHit
		if err := rows.Scan(&h.Path, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
