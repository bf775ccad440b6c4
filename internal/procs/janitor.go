package procs

import (
	"time"

	"clai/internal/logging"
)

// janitor garbage-collects terminal handles whose retention window elapsed.
// Running handles are never collected.
func (r *Registry) janitor() {
	defer close(r.janitorDone)

	interval := r.cfg.Retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.janitorStop:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *Registry) collect() {
	now := time.Now()

	r.mu.Lock()
	var gone []string
	for cid, h := range r.handles {
		h.mu.Lock()
		terminal := h.state != StateRunning
		finished := h.finished
		h.mu.Unlock()

		if terminal && !finished.IsZero() && now.Sub(finished) > r.cfg.Retention {
			delete(r.handles, cid)
			gone = append(gone, cid)
		}
	}
	r.mu.Unlock()

	if len(gone) > 0 {
		logging.Get(logging.CategoryProcs).Debugw("collected terminal handles", "cids", gone)
	}
}
