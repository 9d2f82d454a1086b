package domain

import (
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message exchanged within a session. Immutable once appended.
type Turn struct {
	// Role is user or assistant.
	Role Role

	// Content is the message text.
	Content string

	// Timestamp is when the turn was produced.
	Timestamp time.Time
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now()}
}

// RenderLimit bounds how much history is rendered into a prompt.
// A zero field means that bound is not applied.
type RenderLimit struct {
	// MaxTurns is the maximum number of turns returned.
	MaxTurns int

	// MaxTokens is the maximum total token count of the returned turns.
	MaxTokens int
}

// HistoryLog is an ordered, append-only sequence of turns.
// It is safe for concurrent use.
type HistoryLog struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistoryLog creates a history log seeded with turns, in order.
func NewHistoryLog(turns ...Turn) *HistoryLog {
	h := &HistoryLog{}
	if len(turns) > 0 {
		h.turns = append(make([]Turn, 0, len(turns)), turns...)
	}
	return h
}

// Append adds a turn at the end of the log.
func (h *HistoryLog) Append(turn Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, turn)
	h.mu.Unlock()
}

// AppendPair adds a user turn and its reply under one lock hold,
// so readers observe either both turns or neither.
func (h *HistoryLog) AppendPair(user, assistant Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, user, assistant)
	h.mu.Unlock()
}

// Len returns the number of turns.
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// AsSequence returns a snapshot of all turns in insertion order.
func (h *HistoryLog) AsSequence() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// RenderForPrompt returns the most recent turns that fit the limit, oldest first.
// Turns are dropped whole from the oldest end; a turn is never cut.
// count measures a turn's tokens; nil falls back to a whitespace word count.
func (h *HistoryLog) RenderForPrompt(limit RenderLimit, count func(string) int) []Turn {
	if count == nil {
		count = WordCount
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	kept, tokens := 0, 0
	for i := len(h.turns) - 1; i >= 0; i-- {
		if limit.MaxTurns > 0 && kept >= limit.MaxTurns {
			break
		}
		if limit.MaxTokens > 0 {
			n := count(h.turns[i].Content)
			if tokens+n > limit.MaxTokens {
				break
			}
			tokens += n
		}
		kept++
	}

	out := make([]Turn, kept)
	copy(out, h.turns[len(h.turns)-kept:])
	return out
}

// WordCount approximates a token count by counting whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
