package index

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"clai/internal/logging"

	"golang.org/x/sync/errgroup"
)

// ScanStats summarizes a Scan pass.
type ScanStats struct {
	Indexed int
	Skipped int
	Failed  int
}

// Scan walks root and upserts every file passing the exclusion policy.
// Embedding runs in parallel, bounded by ScanWorkers. Per-file failures are
// logged and counted, never fatal to the scan.
func (ix *Index) Scan(ctx context.Context, root string) (ScanStats, error) {
	log := logging.Get(logging.CategoryIndex)
	var stats ScanStats

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return stats, err
	}

	var paths []string
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			log.Debugw("walk error, skipping", "path", path, "error", err)
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			if path != absRoot && ix.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if ix.skipFile(path, d) {
			stats.Skipped++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return stats, walkErr
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := ix.cfg.ScanWorkers
	if workers <= 0 {
		workers = 4
	}
	g.SetLimit(workers)

	results := make(chan error, len(paths))
	for _, p := range paths {
		p := p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results <- ix.Upsert(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	close(results)

	for err := range results {
		if err != nil {
			stats.Failed++
			log.Warnw("scan upsert failed", "error", err)
		} else {
			stats.Indexed++
		}
	}

	log.Infow("scan complete", "root", absRoot,
		"indexed", stats.Indexed, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (ix *Index) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, skip := range ix.cfg.SkipDirs {
		if name == skip {
			return true
		}
	}
	return false
}

// skipFile applies the exclusion policy: hidden files, the size ceiling, and
// an optional binary sniff on the first KiB.
func (ix *Index) skipFile(path string, d fs.DirEntry) bool {
	if strings.HasPrefix(d.Name(), ".") {
		return true
	}

	info, err := d.Info()
	if err != nil {
		return true
	}
	if ix.cfg.MaxFileBytes > 0 && info.Size() > ix.cfg.MaxFileBytes {
		return true
	}

	if ix.cfg.SkipBinary && looksBinary(path) {
		return true
	}
	return false
}

func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) != -1
}
