package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// AnswerService answers questions within a session.
type AnswerService interface {
	// Ask runs the answer pipeline for one question.
	// On failure the session history is left unchanged.
	Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error)
}
