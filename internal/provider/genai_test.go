package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"clai/internal/compose"
)

func TestRenderBlocks(t *testing.T) {
	blocks := []compose.Block{
		{Kind: compose.BlockSticky, Label: "main.go", Content: "package main\n"},
		{Kind: compose.BlockRetrieved, Label: "util.go", Content: "package util\n", Similarity: 0.91},
		{Kind: compose.BlockHistory, Label: "user", Content: "hello"},
	}

	out := renderBlocks(blocks)
	assert.Contains(t, out, "pinned file: main.go")
	assert.Contains(t, out, "related file: util.go (similarity 0.91)")
	// History rides in the turn list, not the context preamble.
	assert.NotContains(t, out, "hello")
}

func TestRenderBlocksEmpty(t *testing.T) {
	assert.Empty(t, renderBlocks(nil))
	assert.Empty(t, renderBlocks([]compose.Block{{Kind: compose.BlockHistory, Content: "x"}}))
}

func TestTurnRole(t *testing.T) {
	assert.Equal(t, genai.Role(genai.RoleUser), turnRole(compose.RoleUser))
	assert.Equal(t, genai.Role(genai.RoleModel), turnRole(compose.RoleAssistant))

	// The mapping must produce the SDK's typed role, not a bare string.
	var typed genai.Role = turnRole(compose.RoleAssistant)
	assert.Equal(t, genai.Role(genai.RoleModel), typed)
}
