package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clai/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps the index in sync with filesystem changes under a root.
// Events are debounced so editors that write in bursts trigger one upsert.
type Watcher struct {
	mu      sync.Mutex
	index   *Index
	watcher *fsnotify.Watcher
	root    string

	debounce    time.Duration
	pending     map[string]time.Time
	pendingGone map[string]struct{}

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a Watcher for root backed by idx.
func NewWatcher(idx *Index, root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		index:       idx,
		watcher:     fsw,
		root:        absRoot,
		debounce:    debounce,
		pending:     make(map[string]time.Time),
		pendingGone: make(map[string]struct{}),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start registers watches for every non-excluded directory under root and
// begins processing events. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	log := logging.Get(logging.CategoryIndex)

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.index.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Debugw("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debugw("watcher started", "root", w.root)
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	log := logging.Get(logging.CategoryIndex)

	flush := time.NewTicker(w.debounce / 2)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("watcher error", "error", err)

		case <-flush.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)
		w.pendingGone[ev.Name] = struct{}{}

	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		// New subdirectories need their own watch.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.index.skipDir(filepath.Base(ev.Name)) {
				_ = w.watcher.Add(ev.Name)
			}
			return
		}
		delete(w.pendingGone, ev.Name)
		w.pending[ev.Name] = time.Now()
	}
}

// flushPending applies debounced events whose quiet period elapsed.
func (w *Watcher) flushPending(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var upserts []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			upserts = append(upserts, path)
			delete(w.pending, path)
		}
	}
	var removals []string
	for path := range w.pendingGone {
		removals = append(removals, path)
		delete(w.pendingGone, path)
	}
	w.mu.Unlock()

	log := logging.Get(logging.CategoryIndex)
	for _, path := range removals {
		w.index.Remove(path)
		log.Debugw("watcher removed", "path", path)
	}
	for _, path := range upserts {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if w.index.skipFile(path, fs.FileInfoToDirEntry(info)) {
			continue
		}
		if err := w.index.Upsert(ctx, path); err != nil {
			log.Debugw("watcher upsert failed", "path", path, "error", err)
		}
	}
}
