//go:build !(sqlite_vec && cgo)

package index

import "errors"

const vecSearchEnabled = false

var errVecUnavailable = errors.New("sqlite-vec extension not compiled in")

// searchNearest requires a build tagged sqlite_vec with cgo. Query falls back
// to the in-Go cosine scan when it is unavailable.
func (s *Store) searchNearest([]float32, int) ([]vecHit, error) {
	return nil, errVecUnavailable
}
