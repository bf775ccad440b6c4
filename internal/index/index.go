// Package index maintains the file index: content hashes and embeddings for
// tracked files, sticky pins, change detection, and similarity queries.
//
// The index is safe for concurrent use. A scan running concurrently with a
// query may yield a transiently stale result set, never a partial record.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"clai/internal/config"
	"clai/internal/embedding"
	"clai/internal/logging"
)

// TrackedFile is a single indexed file.
type TrackedFile struct {
	Path        string    // absolute path, unique key
	ModTime     time.Time // last observed modification time
	ContentHash string    // sha256 of content at last upsert
	Embedding   []float32 // nil if the last embed attempt failed
	Sticky      bool
	LastQueried time.Time // last Query hit; seeded at first upsert for eviction ordering
}

// Match is a Query result.
type Match struct {
	File       TrackedFile
	Similarity float64
}

// Index tracks files and answers similarity queries.
type Index struct {
	mu     sync.RWMutex
	files  map[string]*TrackedFile
	sticky *StickySet
	engine embedding.Engine
	store  *Store // nil when persistence is disabled
	cfg    config.IndexConfig
}

// New creates an Index. engine may not be nil. If cfg.DatabasePath is set,
// previously persisted entries are loaded.
func New(engine embedding.Engine, cfg config.IndexConfig) (*Index, error) {
	idx := &Index{
		files:  make(map[string]*TrackedFile),
		sticky: NewStickySet(cfg.StickyPath),
		engine: engine,
		cfg:    cfg,
	}

	if cfg.DatabasePath != "" {
		store, err := OpenStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		idx.store = store

		loaded, err := store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		for _, tf := range loaded {
			idx.files[tf.Path] = tf
			if tf.Sticky {
				idx.sticky.add(tf.Path)
			}
		}
		logging.Get(logging.CategoryIndex).Debugw("index loaded", "files", len(loaded))
	}

	// Pins persisted outside the database (JSON sticky file).
	for _, p := range idx.sticky.Paths() {
		if tf, ok := idx.files[p]; ok {
			tf.Sticky = true
		}
	}

	return idx, nil
}

// Close releases the backing store, if any.
func (ix *Index) Close() error {
	if ix.store != nil {
		return ix.store.Close()
	}
	return nil
}

// Upsert rehashes path and recomputes its embedding only when the content
// hash changed. Embed failures are logged and leave the file excluded from
// query results until a successful retry; they are never fatal.
func (ix *Index) Upsert(ctx context.Context, path string) error {
	log := logging.Get(logging.CategoryIndex)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", abs)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", abs, err)
	}
	hash := hashContent(content)

	ix.mu.Lock()
	existing, ok := ix.files[abs]
	if ok && existing.ContentHash == hash && existing.Embedding != nil {
		// Content unchanged, embedding still valid.
		existing.ModTime = info.ModTime()
		ix.mu.Unlock()
		return nil
	}
	ix.mu.Unlock()

	// Embed outside the lock: queries keep working against the old record.
	var vec []float32
	vec, embedErr := ix.engine.Embed(ctx, string(content))
	if embedErr != nil {
		log.Warnw("embedding failed, file excluded from results until retry",
			"path", abs, "error", embedErr)
		vec = nil
	}

	ix.mu.Lock()
	tf, ok := ix.files[abs]
	if !ok {
		// Seed LastQueried so a fresh entry is never the least-recently-used
		// eviction victim on the upsert that inserts it.
		tf = &TrackedFile{Path: abs, LastQueried: time.Now()}
		ix.files[abs] = tf
	}
	tf.ModTime = info.ModTime()
	tf.ContentHash = hash
	tf.Embedding = vec
	tf.Sticky = ix.sticky.Contains(abs)
	ix.evictLocked()
	_, kept := ix.files[abs]
	snapshot := *tf
	ix.mu.Unlock()

	if kept {
		ix.persist(&snapshot)
	}
	log.Debugw("upserted", "path", abs, "embedded", vec != nil)
	return nil
}

// Remove evicts path from the index.
func (ix *Index) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	ix.mu.Lock()
	_, ok := ix.files[abs]
	delete(ix.files, abs)
	ix.mu.Unlock()

	if ok && ix.store != nil {
		if err := ix.store.Delete(abs); err != nil {
			logging.Get(logging.CategoryIndex).Warnw("failed to delete from store",
				"path", abs, "error", err)
		}
	}
}

// Query returns the k tracked files most similar to text, excluding sticky
// members. Ties break toward the most recently modified file. Files whose
// last embed attempt failed are skipped.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := ix.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Vec-enabled builds rank inside SQLite; any failure there falls back to
	// the in-Go scan rather than failing the query.
	var matches []Match
	ranked := false
	if vecSearchEnabled && ix.store != nil {
		matches, err = ix.queryVec(queryVec, k)
		if err == nil {
			ranked = true
		} else {
			logging.Get(logging.CategoryIndex).Warnw("vector search failed, scanning in memory",
				"error", err)
		}
	}
	if !ranked {
		matches = ix.queryScan(queryVec, k)
	}

	now := time.Now()
	ix.mu.Lock()
	for _, m := range matches {
		if tf, ok := ix.files[m.File.Path]; ok {
			tf.LastQueried = now
		}
	}
	ix.mu.Unlock()

	return matches, nil
}

// queryVec pushes ranking into SQLite and maps the hits back onto the
// in-memory records, which stay authoritative for sticky state and evictions.
func (ix *Index) queryVec(queryVec []float32, k int) ([]Match, error) {
	hits, err := ix.store.searchNearest(queryVec, k)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		tf, ok := ix.files[h.Path]
		if !ok || tf.Sticky || tf.Embedding == nil {
			continue // store row lagging behind memory
		}
		matches = append(matches, Match{File: *tf, Similarity: h.Similarity})
	}
	return matches, nil
}

// queryScan ranks every tracked file by cosine similarity in Go.
func (ix *Index) queryScan(queryVec []float32, k int) []Match {
	ix.mu.RLock()
	candidates := make([]Match, 0, len(ix.files))
	for _, tf := range ix.files {
		if tf.Sticky || tf.Embedding == nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, tf.Embedding)
		if err != nil {
			continue // dimension mismatch from a backend change; skip
		}
		candidates = append(candidates, Match{File: *tf, Similarity: sim})
	}
	ix.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].File.ModTime.After(candidates[j].File.ModTime)
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Pin marks path sticky. The file is tracked on the spot if it was not.
func (ix *Index) Pin(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot pin %s: %w", abs, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot pin a directory: %s", abs)
	}

	ix.mu.RLock()
	_, tracked := ix.files[abs]
	ix.mu.RUnlock()
	if !tracked {
		if err := ix.Upsert(ctx, abs); err != nil {
			return err
		}
	}

	ix.sticky.Pin(abs)

	ix.mu.Lock()
	var snapshot TrackedFile
	if tf, ok := ix.files[abs]; ok {
		tf.Sticky = true
		snapshot = *tf
	}
	ix.mu.Unlock()

	ix.persist(&snapshot)
	return nil
}

// Unpin clears the sticky flag. Returns false if path was not pinned.
func (ix *Index) Unpin(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if !ix.sticky.Unpin(abs) {
		return false
	}

	ix.mu.Lock()
	var snapshot *TrackedFile
	if tf, ok := ix.files[abs]; ok {
		tf.Sticky = false
		s := *tf
		snapshot = &s
	}
	ix.mu.Unlock()

	if snapshot != nil {
		ix.persist(snapshot)
	}
	return true
}

// Stickies returns pinned paths in pin order.
func (ix *Index) Stickies() []string {
	return ix.sticky.Paths()
}

// Len returns the number of tracked files.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}

// Tracked reports whether path is in the index.
func (ix *Index) Tracked(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.files[abs]
	return ok
}

// evictLocked drops least-recently-queried non-sticky entries beyond
// MaxTracked. Caller holds the write lock.
func (ix *Index) evictLocked() {
	if ix.cfg.MaxTracked <= 0 || len(ix.files) <= ix.cfg.MaxTracked {
		return
	}

	type cand struct {
		path string
		at   time.Time
	}
	var cands []cand
	for p, tf := range ix.files {
		if tf.Sticky {
			continue
		}
		cands = append(cands, cand{p, tf.LastQueried})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].at.Before(cands[j].at) })

	excess := len(ix.files) - ix.cfg.MaxTracked
	for i := 0; i < excess && i < len(cands); i++ {
		delete(ix.files, cands[i].path)
		if ix.store != nil {
			_ = ix.store.Delete(cands[i].path)
		}
	}
	if excess > 0 {
		logging.Get(logging.CategoryIndex).Debugw("evicted tracked files",
			"count", excess, "cap", ix.cfg.MaxTracked)
	}
}

func (ix *Index) persist(tf *TrackedFile) {
	if ix.store == nil || tf.Path == "" {
		return
	}
	if err := ix.store.Save(tf); err != nil {
		logging.Get(logging.CategoryIndex).Warnw("failed to persist index entry",
			"path", tf.Path, "error", err)
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
