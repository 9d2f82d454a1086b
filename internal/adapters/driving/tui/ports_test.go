package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/services"
)

// MockAnswerService implements driving.AnswerService for testing.
type MockAnswerService struct {
	AskFunc func(ctx context.Context, sessionID, question string) (*domain.Answer, error)
}

func (m *MockAnswerService) Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	if m.AskFunc != nil {
		return m.AskFunc(ctx, sessionID, question)
	}
	return &domain.Answer{Question: question, Text: "ok"}, nil
}

func newTestPorts() *Ports {
	return NewPorts(&MockAnswerService{}, services.NewSessionStore())
}

func TestNewPorts(t *testing.T) {
	answer := &MockAnswerService{}
	sessions := services.NewSessionStore()

	ports := NewPorts(answer, sessions)

	assert.Equal(t, answer, ports.Answer)
	assert.Equal(t, sessions, ports.Sessions)
	assert.Nil(t, ports.Index)
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   *Ports
		wantErr error
	}{
		{"all set", newTestPorts(), nil},
		{"missing answer", &Ports{Sessions: services.NewSessionStore()}, ErrMissingAnswerService},
		{"missing sessions", &Ports{Answer: &MockAnswerService{}}, ErrMissingSessionService},
		{"empty", &Ports{}, ErrMissingAnswerService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
