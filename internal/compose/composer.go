// Package compose assembles the per-turn model context: sticky files, top-k
// retrieved files, and recent conversation turns, under a hard byte budget.
package compose

import (
	"context"
	"fmt"
	"os"

	"clai/internal/config"
	"clai/internal/index"
	"clai/internal/logging"
)

// BlockKind classifies a context block.
type BlockKind string

const (
	BlockSticky    BlockKind = "sticky"
	BlockRetrieved BlockKind = "retrieved"
	BlockHistory   BlockKind = "history"
)

// Block is one unit of composed context.
type Block struct {
	Kind       BlockKind
	Label      string // file path or turn role
	Content    string
	Similarity float64 // retrieved blocks only
}

func (b Block) size() int {
	return len(b.Content) + len(b.Label)
}

// StickyBudgetError reports that pinned content alone exceeds the budget.
// Silently truncating pinned files would lose data the user explicitly asked
// to keep in context, so this is a configuration error instead.
type StickyBudgetError struct {
	StickyBytes int
	Budget      int
}

func (e *StickyBudgetError) Error() string {
	return fmt.Sprintf("sticky files need %d bytes but the context budget is %d; unpin files or raise context.total_budget_bytes",
		e.StickyBytes, e.Budget)
}

// Composer builds the per-turn context payload.
type Composer struct {
	index   *index.Index
	cfg     config.ContextConfig
	counter *TokenCounter
}

// New creates a Composer over idx.
func New(idx *index.Index, cfg config.ContextConfig) *Composer {
	return &Composer{
		index:   idx,
		cfg:     cfg,
		counter: NewTokenCounter(),
	}
}

// Build assembles context blocks for a query: sticky files in pin order with
// full content, then retrieved files (truncated per file), then the last N
// turns. When the total exceeds the budget, retrieved blocks are dropped
// lowest-similarity-first, then history oldest-first. Sticky blocks are never
// dropped; if they alone exceed the budget Build fails with
// *StickyBudgetError.
func (c *Composer) Build(ctx context.Context, queryText string, history *History) ([]Block, error) {
	log := logging.Get(logging.CategoryCompose)

	sticky, stickyBytes, err := c.stickyBlocks()
	if err != nil {
		return nil, err
	}
	if c.cfg.TotalBudgetBytes > 0 && stickyBytes > c.cfg.TotalBudgetBytes {
		return nil, &StickyBudgetError{StickyBytes: stickyBytes, Budget: c.cfg.TotalBudgetBytes}
	}

	retrieved := c.retrievedBlocks(ctx, queryText)
	turns := c.historyBlocks(history)

	total := stickyBytes
	for _, b := range retrieved {
		total += b.size()
	}
	for _, b := range turns {
		total += b.size()
	}

	// Retrieved blocks arrive sorted best-first, so trimming from the tail
	// drops the lowest similarity first.
	for total > c.budget() && len(retrieved) > 0 {
		last := retrieved[len(retrieved)-1]
		retrieved = retrieved[:len(retrieved)-1]
		total -= last.size()
	}

	// History blocks are oldest-first; trim from the front.
	for total > c.budget() && len(turns) > 0 {
		total -= turns[0].size()
		turns = turns[1:]
	}

	blocks := make([]Block, 0, len(sticky)+len(retrieved)+len(turns))
	blocks = append(blocks, sticky...)
	blocks = append(blocks, retrieved...)
	blocks = append(blocks, turns...)

	log.Debugw("context built",
		"sticky", len(sticky), "retrieved", len(retrieved), "turns", len(turns),
		"bytes", total, "tokens_est", c.counter.CountBlocks(blocks))
	return blocks, nil
}

func (c *Composer) budget() int {
	if c.cfg.TotalBudgetBytes <= 0 {
		return int(^uint(0) >> 1)
	}
	return c.cfg.TotalBudgetBytes
}

// stickyBlocks reads every pinned file in full, in pin order. A pinned file
// that cannot be read is skipped with a warning; it may have been deleted
// since it was pinned.
func (c *Composer) stickyBlocks() ([]Block, int, error) {
	var blocks []Block
	total := 0
	for _, path := range c.index.Stickies() {
		content, err := os.ReadFile(path)
		if err != nil {
			logging.Get(logging.CategoryCompose).Warnw("sticky file unreadable, skipping",
				"path", path, "error", err)
			continue
		}
		b := Block{Kind: BlockSticky, Label: path, Content: string(content)}
		blocks = append(blocks, b)
		total += b.size()
	}
	return blocks, total, nil
}

// retrievedBlocks queries the index and truncates each result to the
// per-file byte budget. Retrieval failures degrade to an empty set; the turn
// still proceeds with sticky files and history.
func (c *Composer) retrievedBlocks(ctx context.Context, queryText string) []Block {
	log := logging.Get(logging.CategoryCompose)

	k := c.cfg.TopK
	if k <= 0 {
		return nil
	}
	matches, err := c.index.Query(ctx, queryText, k)
	if err != nil {
		log.Warnw("retrieval failed, composing without file context", "error", err)
		return nil
	}

	var blocks []Block
	for _, m := range matches {
		content, err := os.ReadFile(m.File.Path)
		if err != nil {
			log.Debugw("retrieved file unreadable, skipping", "path", m.File.Path, "error", err)
			continue
		}
		text := string(content)
		if c.cfg.PerFileBytes > 0 && len(text) > c.cfg.PerFileBytes {
			text = text[:c.cfg.PerFileBytes] + "\n... (truncated)"
		}
		blocks = append(blocks, Block{
			Kind:       BlockRetrieved,
			Label:      m.File.Path,
			Content:    text,
			Similarity: m.Similarity,
		})
	}
	return blocks
}

func (c *Composer) historyBlocks(history *History) []Block {
	if history == nil {
		return nil
	}
	turns := history.Last(c.cfg.HistoryTurns)
	blocks := make([]Block, 0, len(turns))
	for _, t := range turns {
		blocks = append(blocks, Block{
			Kind:    BlockHistory,
			Label:   string(t.Role),
			Content: t.Content,
		})
	}
	return blocks
}
