// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// chromeHeight is the number of rows taken by the header, input and status bar.
const chromeHeight = 8

// View is the conversation view: transcript, question input, retrieved sources and status bar.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.ChatInput
	transcript viewport.Model
	sources    *list.SourceList
	statusbar  *status.Bar

	answerService  driving.AnswerService
	sessionService driving.SessionService
	ctx            context.Context
	cancel         context.CancelFunc

	sessionID   string
	sessionName string
	turns       []domain.Turn
	pending     string

	width       int
	height      int
	ready       bool
	busy        bool
	showSources bool
	err         error
}

// NewView creates a new chat view.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	answerService driving.AnswerService,
	sessionService driving.SessionService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:         s,
		keymap:         km,
		input:          input.NewChatInput(s),
		transcript:     viewport.New(80, 24-chromeHeight),
		sources:        list.NewSourceList(s),
		statusbar:      status.NewBar(s, km),
		answerService:  answerService,
		sessionService: sessionService,
		ctx:            context.Background(),
		width:          80,
		height:         24,
	}
}

// WithContext sets the parent context for requests issued by the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Open switches the view to a session and loads its history.
// The session is created on first reference.
func (v *View) Open(sessionID string) tea.Cmd {
	v.cancelPending()
	v.sessionID = sessionID
	v.sessionName = ""
	v.turns = nil
	v.pending = ""
	v.err = nil
	v.showSources = false
	v.sources.SetChunks(nil)
	v.input.Reset()
	v.input.Focus()
	v.statusbar.Clear()
	v.refresh()

	sessions := v.sessionService
	ctx := v.ctx
	return func() tea.Msg {
		if sessions == nil {
			return messages.HistoryLoaded{SessionID: sessionID}
		}
		sess, err := sessions.GetOrCreate(ctx, sessionID)
		if err != nil {
			return messages.HistoryLoaded{SessionID: sessionID, Err: err}
		}
		return messages.HistoryLoaded{
			SessionID: sessionID,
			Name:      sess.Name(),
			Turns:     sess.History.AsSequence(),
		}
	}
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.HistoryLoaded:
		v.handleHistoryLoaded(msg)
		return v, nil

	case messages.AnswerCompleted:
		v.handleAnswerCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case keymap.Matches(msg.String(), v.keymap.Back):
		if v.showSources {
			v.toggleSources()
			return v, nil
		}
		if v.busy {
			v.cancelPending()
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}

	case keymap.Matches(msg.String(), v.keymap.Sources):
		v.toggleSources()
		return v, nil

	case keymap.Matches(msg.String(), v.keymap.Up), keymap.Matches(msg.String(), v.keymap.Down):
		if v.showSources {
			v.sources, _ = v.sources.Update(msg)
			return v, nil
		}
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case keymap.Matches(msg.String(), v.keymap.Send):
		return v, v.send()
	}

	if v.showSources {
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send submits the typed question unless a request is already in flight.
func (v *View) send() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.busy {
		return nil
	}
	if v.sessionID == "" {
		v.setError(ErrNoSession)
		return nil
	}
	if v.answerService == nil {
		v.setError(ErrNoAnswerService)
		return nil
	}

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	v.busy = true
	v.pending = question
	v.err = nil
	v.input.Reset()
	v.statusbar.SetState(status.StateThinking)
	v.statusbar.SetMessage("")
	v.refresh()

	answers := v.answerService
	sessionID := v.sessionID
	return func() tea.Msg {
		defer cancel()
		answer, err := answers.Ask(ctx, sessionID, question)
		return messages.AnswerCompleted{
			SessionID: sessionID,
			Question:  question,
			Answer:    answer,
			Err:       err,
		}
	}
}

// cancelPending aborts the in-flight request, if any.
func (v *View) cancelPending() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *View) handleHistoryLoaded(msg messages.HistoryLoaded) {
	if msg.SessionID != v.sessionID {
		return
	}
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	v.sessionName = msg.Name
	v.turns = msg.Turns
	v.refresh()
}

func (v *View) handleAnswerCompleted(msg messages.AnswerCompleted) {
	// Replies for a session that is no longer open are dropped.
	if msg.SessionID != v.sessionID {
		return
	}
	v.busy = false
	v.pending = ""
	v.cancel = nil

	if msg.Err != nil {
		v.setError(msg.Err)
		v.refresh()
		return
	}

	v.err = nil
	v.turns = append(v.turns,
		domain.NewTurn(domain.RoleUser, msg.Question),
		domain.NewTurn(domain.RoleAssistant, msg.Answer.Text),
	)
	v.sources.SetChunks(msg.Answer.Chunks)
	v.statusbar.SetState(status.StateReady)
	if msg.Answer.RewrittenQuestion != "" && msg.Answer.RewrittenQuestion != msg.Question {
		v.statusbar.SetMessage("Searched for: " + msg.Answer.RewrittenQuestion)
	} else {
		v.statusbar.SetMessage("")
	}
	v.refresh()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

func (v *View) toggleSources() {
	if !v.showSources && v.sources.Count() == 0 {
		return
	}
	v.showSources = !v.showSources
	if v.showSources {
		v.input.Blur()
		v.statusbar.SetState(status.StateSources)
	} else {
		v.input.Focus()
		v.statusbar.SetState(status.StateReady)
	}
}

// refresh re-renders the transcript and scrolls to the latest turn.
func (v *View) refresh() {
	name := v.sessionName
	if name == "" {
		name = v.sessionID
	}
	v.statusbar.SetSession(name, len(v.turns))
	v.transcript.SetContent(v.renderTranscript())
	v.transcript.GotoBottom()
}

func (v *View) renderTranscript() string {
	if len(v.turns) == 0 && v.pending == "" {
		return v.styles.Muted.Render("No messages yet. Ask a question to start.")
	}

	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	blocks := make([]string, 0, len(v.turns)+2)
	for _, t := range v.turns {
		blocks = append(blocks, wrap.Render(v.label(t.Role)+t.Content))
	}
	if v.pending != "" {
		blocks = append(blocks,
			wrap.Render(v.label(domain.RoleUser)+v.pending),
			v.label(domain.RoleAssistant)+v.styles.Muted.Render("..."),
		)
	}
	return strings.Join(blocks, "\n\n")
}

func (v *View) label(role domain.Role) string {
	if role == domain.RoleUser {
		return v.styles.UserLabel.Render("You: ")
	}
	return v.styles.AssistantLabel.Render("Assistant: ")
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	title := "ragchat"
	if v.sessionName != "" {
		title += " / " + v.sessionName
	}
	sections := []string{v.styles.Title.Render(title), ""}

	if v.showSources {
		sections = append(sections, v.sources.View())
	} else {
		sections = append(sections, v.transcript.View())
	}

	sections = append(sections, "", v.input.View(), v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	body := max(height-chromeHeight, 3)
	v.transcript.Width = width
	v.transcript.Height = body
	v.sources.SetDimensions(width, body)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// SessionID returns the open session.
func (v *View) SessionID() string {
	return v.sessionID
}

// Turns returns the turns shown in the transcript.
func (v *View) Turns() []domain.Turn {
	return v.turns
}

// Sources returns the chunks retrieved for the latest answer.
func (v *View) Sources() []domain.ScoredChunk {
	return v.sources.Chunks()
}

// Busy reports whether a question is awaiting its answer.
func (v *View) Busy() bool {
	return v.busy
}

// ShowingSources reports whether the sources panel replaces the transcript.
func (v *View) ShowingSources() bool {
	return v.showSources
}

// Input returns the current input text.
func (v *View) Input() string {
	return v.input.Value()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}
