package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clai/internal/config"
	"clai/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine maps exact text to a fixed vector; unknown text gets a default.
type stubEngine struct {
	vectors map[string][]float32
}

func (s *stubEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := s.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 2 }
func (s *stubEngine) Name() string    { return "stub" }

func setupIndex(t *testing.T, eng *stubEngine) (*index.Index, string) {
	t.Helper()
	idx, err := index.New(eng, config.IndexConfig{MaxTracked: 100})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx, t.TempDir()
}

func mustWrite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func totalBytes(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		n += len(b.Content) + len(b.Label)
	}
	return n
}

func TestBuild_OrderingAndStickyFirst(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{
		"relevant": {1, 0},
		"query":    {1, 0},
	}}
	idx, dir := setupIndex(t, eng)
	ctx := context.Background()

	pinned := mustWrite(t, dir, "pinned.txt", "pinned contents")
	retrieved := mustWrite(t, dir, "hit.txt", "relevant")
	require.NoError(t, idx.Pin(ctx, pinned))
	require.NoError(t, idx.Upsert(ctx, retrieved))

	hist := NewHistory()
	hist.Append(RoleUser, "earlier question")
	hist.Append(RoleAssistant, "earlier answer")

	c := New(idx, config.ContextConfig{
		TotalBudgetBytes: 8192,
		PerFileBytes:     4096,
		TopK:             3,
		HistoryTurns:     10,
	})

	blocks, err := c.Build(ctx, "query", hist)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, BlockSticky, blocks[0].Kind)
	assert.Equal(t, pinned, blocks[0].Label)
	assert.Equal(t, "pinned contents", blocks[0].Content)

	assert.Equal(t, BlockRetrieved, blocks[1].Kind)
	assert.Equal(t, retrieved, blocks[1].Label)

	assert.Equal(t, BlockHistory, blocks[2].Kind)
	assert.Equal(t, "user", blocks[2].Label)
	assert.Equal(t, BlockHistory, blocks[3].Kind)
	assert.Equal(t, "assistant", blocks[3].Label)
}

func TestBuild_PerFileTruncation(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{}}
	idx, dir := setupIndex(t, eng)
	ctx := context.Background()

	big := mustWrite(t, dir, "big.txt", strings.Repeat("x", 500))
	require.NoError(t, idx.Upsert(ctx, big))

	c := New(idx, config.ContextConfig{
		TotalBudgetBytes: 8192,
		PerFileBytes:     100,
		TopK:             1,
	})

	blocks, err := c.Build(ctx, "query", nil)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, strings.HasSuffix(blocks[0].Content, "... (truncated)"))
	assert.LessOrEqual(t, len(blocks[0].Content), 100+len("\n... (truncated)"))
}

func TestBuild_DropsRetrievedBeforeHistory(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{
		"best":  {1, 0},
		"worst": {0.5, 0.5},
		"query": {1, 0},
	}}
	idx, dir := setupIndex(t, eng)
	ctx := context.Background()

	best := mustWrite(t, dir, "best.txt", "best")
	worst := mustWrite(t, dir, "worst.txt", "worst")
	require.NoError(t, idx.Upsert(ctx, best))
	require.NoError(t, idx.Upsert(ctx, worst))

	hist := NewHistory()
	hist.Append(RoleUser, "keep me")

	// Budget fits sticky(none) + one retrieved + history, not both retrieved.
	budget := len(best) + len("best") + len("user") + len("keep me") + 4
	c := New(idx, config.ContextConfig{
		TotalBudgetBytes: budget,
		TopK:             2,
		HistoryTurns:     5,
	})

	blocks, err := c.Build(ctx, "query", hist)
	require.NoError(t, err)

	var kinds []BlockKind
	var labels []string
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
		labels = append(labels, b.Label)
	}
	// The lowest-similarity retrieval goes first; history survives.
	assert.NotContains(t, labels, worst)
	assert.Contains(t, labels, best)
	assert.Contains(t, kinds, BlockHistory)
	assert.LessOrEqual(t, totalBytes(blocks), budget)
}

func TestBuild_DropsOldestHistoryLast(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{}}
	idx, err := index.New(eng, config.IndexConfig{})
	require.NoError(t, err)
	defer idx.Close()

	hist := NewHistory()
	hist.Append(RoleUser, "oldest oldest oldest")
	hist.Append(RoleAssistant, "middle middle")
	hist.Append(RoleUser, "newest")

	budget := len("assistant") + len("middle middle") + len("user") + len("newest")
	c := New(idx, config.ContextConfig{
		TotalBudgetBytes: budget,
		TopK:             0,
		HistoryTurns:     10,
	})

	blocks, err := c.Build(context.Background(), "q", hist)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "middle middle", blocks[0].Content)
	assert.Equal(t, "newest", blocks[1].Content)
	assert.LessOrEqual(t, totalBytes(blocks), budget)
}

func TestBuild_StickyOverBudgetIsConfigurationError(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{}}
	idx, dir := setupIndex(t, eng)
	ctx := context.Background()

	pinned := mustWrite(t, dir, "huge.txt", strings.Repeat("z", 1000))
	require.NoError(t, idx.Pin(ctx, pinned))

	c := New(idx, config.ContextConfig{TotalBudgetBytes: 100, TopK: 2})

	_, err := c.Build(ctx, "q", nil)
	var sbe *StickyBudgetError
	require.True(t, errors.As(err, &sbe), "expected StickyBudgetError, got %v", err)
	assert.Equal(t, 100, sbe.Budget)
	assert.Greater(t, sbe.StickyBytes, 1000)
}

func TestBuild_NeverExceedsBudget(t *testing.T) {
	eng := &stubEngine{vectors: map[string][]float32{}}
	idx, dir := setupIndex(t, eng)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p := mustWrite(t, dir, filepath.Base(dir)+string(rune('a'+i))+".txt", strings.Repeat("y", 300))
		require.NoError(t, idx.Upsert(ctx, p))
	}
	hist := NewHistory()
	for i := 0; i < 10; i++ {
		hist.Append(RoleUser, strings.Repeat("m", 50))
	}

	c := New(idx, config.ContextConfig{
		TotalBudgetBytes: 700,
		PerFileBytes:     400,
		TopK:             5,
		HistoryTurns:     10,
	})

	blocks, err := c.Build(ctx, "q", hist)
	require.NoError(t, err)
	assert.LessOrEqual(t, totalBytes(blocks), 700)
}

func TestHistory_LastWindow(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.Append(RoleUser, strings.Repeat("x", i+1))
	}

	last2 := h.Last(2)
	require.Len(t, last2, 2)
	assert.Equal(t, "xxxx", last2[0].Content)
	assert.Equal(t, "xxxxx", last2[1].Content)

	assert.Len(t, h.Last(100), 5)
	assert.Nil(t, h.Last(0))
	assert.Equal(t, 5, h.Len())
}
