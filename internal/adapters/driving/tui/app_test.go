package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDimensions(80, 24)
	return app
}

// drain runs cmd and feeds its message back into the app, one level deep.
func drain(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c == nil {
					continue
				}
				if m := c(); m != nil {
					app.Update(m)
				}
			}
			return
		}
		app.Update(msg)
	}
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{Answer: &MockAnswerService{}})

	assert.ErrorIs(t, err, ErrMissingSessionService)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	assert.Equal(t, app, app.WithContext(ctx))
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.NotNil(t, app.Init())
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_InitWithSession(t *testing.T) {
	ports := newTestPorts()
	app, _ := NewApp(ports)
	app.WithSession("work")

	app.Init()

	assert.Equal(t, messages.ViewChat, app.CurrentView())
	assert.Equal(t, "work", app.ChatSessionID())
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts())
	assert.False(t, app.Ready())

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
}

func TestApp_View_NotReady(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_MenuRendersByDefault(t *testing.T) {
	app := newTestApp(t)

	out := app.View()

	assert.Contains(t, out, "Chat")
	assert.Contains(t, out, "Sessions")
}

func TestApp_ChatCreatesSession(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewChat})
	drain(app, cmd)

	assert.Equal(t, messages.ViewChat, app.CurrentView())
	id := app.ChatSessionID()
	require.NotEmpty(t, id)

	_, err := app.ports.Sessions.Get(context.Background(), id)
	assert.NoError(t, err)
	assert.Contains(t, app.View(), "You")
}

func TestApp_ChatKeepsOpenSession(t *testing.T) {
	app := newTestApp(t)
	app.Update(messages.SessionSelected{ID: "kept"})

	app.Update(messages.ViewChanged{View: messages.ViewMenu})
	app.Update(messages.ViewChanged{View: messages.ViewChat})

	assert.Equal(t, "kept", app.ChatSessionID())
}

func TestApp_AskRoundTrip(t *testing.T) {
	ports := NewPorts(&MockAnswerService{
		AskFunc: func(_ context.Context, _, question string) (*domain.Answer, error) {
			return &domain.Answer{Question: question, Text: "Alice is Bob's sister."}, nil
		},
	}, newTestPorts().Sessions)
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	_, cmd := app.Update(messages.SessionSelected{ID: "s1"})
	drain(app, cmd)

	for _, r := range "who is Alice?" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	drain(app, cmd)

	assert.Contains(t, app.View(), "Alice is Bob's sister.")
}

func TestApp_SessionsViewRoundTrip(t *testing.T) {
	app := newTestApp(t)
	_, err := app.ports.Sessions.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewSessions})
	drain(app, cmd)

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
	assert.Contains(t, app.View(), "Chat-1")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.Equal(t, messages.ViewChat, app.CurrentView())
	assert.Equal(t, "a", app.ChatSessionID())
}

func TestApp_HelpView(t *testing.T) {
	app := newTestApp(t)

	app.Update(messages.ViewChanged{View: messages.ViewHelp})
	assert.Contains(t, app.View(), "Help")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	boom := errors.New("boom")

	app.Update(messages.ErrorOccurred{Err: boom})

	assert.Equal(t, boom, app.Err())
}
