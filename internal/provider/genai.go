package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"clai/internal/compose"
	"clai/internal/config"
	"clai/internal/logging"
)

// GenAIClient talks to Google's Gemini chat models.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIClient creates a client from the model configuration.
func NewGenAIClient(cfg config.ModelConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model API key is required (set GEMINI_API_KEY or model.api_key)")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	c := &GenAIClient{client: client, model: model, timeout: 2 * time.Minute}
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		c.timeout = d
	}
	return c, nil
}

// Generate sends the composed prompt and returns the raw model text.
func (c *GenAIClient) Generate(ctx context.Context, systemPrompt string, blocks []compose.Block, turns []compose.ConversationTurn, userText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var contents []*genai.Content

	// Context blocks travel as one user-role preamble ahead of the turns.
	if preamble := renderBlocks(blocks); preamble != "" {
		contents = append(contents, genai.NewContentFromText(preamble, genai.RoleUser))
	}
	for _, turn := range turns {
		contents = append(contents, genai.NewContentFromText(turn.Content, turnRole(turn.Role)))
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	text := resp.Text()
	logging.Get(logging.CategoryProvider).Debugw("model response",
		"model", c.model, "elapsed", time.Since(start), "bytes", len(text))
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

// turnRole maps a conversation role onto the SDK's typed role. The SDK role
// constants are untyped strings, so the return type must be explicit.
func turnRole(r compose.Role) genai.Role {
	if r == compose.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// renderBlocks flattens composed context into a single prompt section. Sticky
// and retrieved file blocks are fenced with their paths; history blocks ride
// in the turn list instead, so they are skipped here.
func renderBlocks(blocks []compose.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Kind {
		case compose.BlockSticky:
			fmt.Fprintf(&sb, "=== pinned file: %s ===\n%s\n", b.Label, b.Content)
		case compose.BlockRetrieved:
			fmt.Fprintf(&sb, "=== related file: %s (similarity %.2f) ===\n%s\n", b.Label, b.Similarity, b.Content)
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return "Workspace context:\n\n" + sb.String()
}
