package index

import (
	"encoding/json"
	"os"
	"sync"

	"clai/internal/logging"
)

// StickySet tracks files pinned into every composed context. Pin order is
// preserved because sticky blocks are emitted in insertion order. When a
// persistence path is configured, pins survive restarts; otherwise the set
// lives for the process lifetime only.
type StickySet struct {
	mu    sync.RWMutex
	order []string
	set   map[string]struct{}
	path  string // JSON persistence path, empty disables persistence
}

type stickyFileFormat struct {
	StickyFiles []string `json:"sticky_files"`
}

// NewStickySet creates a StickySet, loading persisted pins if path is set.
func NewStickySet(path string) *StickySet {
	s := &StickySet{
		set:  make(map[string]struct{}),
		path: path,
	}
	if path != "" {
		s.load()
	}
	return s
}

// Pin adds a path. Re-pinning keeps the original position.
func (s *StickySet) Pin(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[path]; ok {
		return
	}
	s.set[path] = struct{}{}
	s.order = append(s.order, path)
	s.saveLocked()
}

// add inserts without persisting; used when hydrating from the index store.
func (s *StickySet) add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[path]; ok {
		return
	}
	s.set[path] = struct{}{}
	s.order = append(s.order, path)
}

// Unpin removes a path. Returns false if it was not pinned.
func (s *StickySet) Unpin(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[path]; !ok {
		return false
	}
	delete(s.set, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.saveLocked()
	return true
}

// Contains reports whether path is pinned.
func (s *StickySet) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[path]
	return ok
}

// Paths returns pinned paths in pin order.
func (s *StickySet) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of pinned paths.
func (s *StickySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *StickySet) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategoryIndex).Warnw("failed to load sticky set",
				"path", s.path, "error", err)
		}
		return
	}

	var ff stickyFileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logging.Get(logging.CategoryIndex).Warnw("corrupt sticky file, starting empty",
			"path", s.path, "error", err)
		return
	}

	for _, p := range ff.StickyFiles {
		if _, err := os.Stat(p); err != nil {
			continue // dropped files are silently unpinned
		}
		s.set[p] = struct{}{}
		s.order = append(s.order, p)
	}
}

// saveLocked persists the set if a path is configured. Caller holds the lock.
func (s *StickySet) saveLocked() {
	if s.path == "" {
		return
	}
	data, err := json.Marshal(stickyFileFormat{StickyFiles: s.order})
	if err != nil {
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		logging.Get(logging.CategoryIndex).Warnw("failed to save sticky set",
			"path", s.path, "error", err)
	}
}
