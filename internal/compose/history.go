package compose

import (
	"sync"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is a single entry in the conversation log.
type ConversationTurn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// History is the append-only conversation log.
type History struct {
	mu    sync.RWMutex
	turns []ConversationTurn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records a turn with the current timestamp.
func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Last returns the most recent n turns, oldest first.
func (h *History) Last(n int) []ConversationTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	start := len(h.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]ConversationTurn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Len returns the total number of recorded turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
