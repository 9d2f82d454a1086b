// Package sessions provides the session management view for the TUI.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// errNoSessionService is reported when the view was built without a session service.
var errNoSessionService = errors.New("session service not available")

// View lists sessions and lets the user open, create, rename and delete them.
type View struct {
	styles         *styles.Styles
	sessionService driving.SessionService
	ctx            context.Context

	sessions []domain.SessionSummary
	selected int
	renaming *input.ChatInput
	width    int
	height   int
	ready    bool
	err      error
	loading  bool
}

// NewView creates a new sessions view.
func NewView(s *styles.Styles, sessionService driving.SessionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:         s,
		sessionService: sessionService,
		ctx:            context.Background(),
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view and loads sessions.
func (v *View) Init() tea.Cmd {
	v.loading = true
	v.renaming = nil
	return v.loadSessions()
}

// loadSessions returns a command that lists sessions.
func (v *View) loadSessions() tea.Cmd {
	sessions := v.sessionService
	ctx := v.ctx
	return func() tea.Msg {
		if sessions == nil {
			return messages.SessionsLoaded{Err: errNoSessionService}
		}
		return messages.SessionsLoaded{Sessions: sessions.List(ctx)}
	}
}

// Update handles messages for the sessions view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.renaming != nil {
			return v.handleRenameKey(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.SessionsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.sessions = msg.Sessions
		v.err = nil
		if v.selected >= len(v.sessions) {
			v.selected = max(len(v.sessions)-1, 0)
		}
		return v, nil

	case messages.SessionRemoved:
		return v, v.afterChange(msg.Err)

	case messages.SessionRenamed:
		return v, v.afterChange(msg.Err)

	case messages.SessionCreated:
		return v, v.afterChange(msg.Err)
	}

	return v, nil
}

// afterChange records a failed mutation or reloads the listing.
func (v *View) afterChange(err error) tea.Cmd {
	if err != nil {
		v.err = err
		return nil
	}
	return v.loadSessions()
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.sessions)-1 {
			v.selected++
		}
	case "enter":
		if sel := v.Selected(); sel != nil {
			id := sel.ID
			return v, func() tea.Msg {
				return messages.SessionSelected{ID: id}
			}
		}
	case "n":
		return v, v.createSession()
	case "r":
		if sel := v.Selected(); sel != nil {
			v.renaming = input.NewInput(v.styles, "Name", sel.DisplayName)
			v.renaming.SetWidth(v.width)
			return v, v.renaming.Init()
		}
	case "d", "delete":
		if sel := v.Selected(); sel != nil {
			return v, v.deleteSession(sel.ID)
		}
	case "g":
		v.loading = true
		return v, v.loadSessions()
	}

	return v, nil
}

// handleRenameKey handles key presses while the rename input is open.
func (v *View) handleRenameKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		v.renaming = nil
		return v, nil
	case tea.KeyEnter:
		name := strings.TrimSpace(v.renaming.Value())
		v.renaming = nil
		sel := v.Selected()
		if name == "" || sel == nil {
			return v, nil
		}
		return v, v.renameSession(sel.ID, name)
	}

	var cmd tea.Cmd
	v.renaming, cmd = v.renaming.Update(msg)
	return v, cmd
}

// createSession returns a command that creates a session and opens it.
func (v *View) createSession() tea.Cmd {
	sessions := v.sessionService
	ctx := v.ctx
	return func() tea.Msg {
		if sessions == nil {
			return messages.ErrorOccurred{Err: errNoSessionService}
		}
		id := uuid.NewString()
		if _, err := sessions.GetOrCreate(ctx, id); err != nil {
			return messages.SessionCreated{ID: id, Err: err}
		}
		return messages.SessionSelected{ID: id}
	}
}

// renameSession returns a command that renames a session.
func (v *View) renameSession(id, name string) tea.Cmd {
	sessions := v.sessionService
	ctx := v.ctx
	return func() tea.Msg {
		if sessions == nil {
			return messages.SessionRenamed{ID: id, Err: errNoSessionService}
		}
		return messages.SessionRenamed{ID: id, Name: name, Err: sessions.Rename(ctx, id, name)}
	}
}

// deleteSession returns a command that deletes a session.
func (v *View) deleteSession(id string) tea.Cmd {
	sessions := v.sessionService
	ctx := v.ctx
	return func() tea.Msg {
		if sessions == nil {
			return messages.SessionRemoved{ID: id, Err: errNoSessionService}
		}
		return messages.SessionRemoved{ID: id, Err: sessions.Delete(ctx, id)}
	}
}

// View renders the sessions view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Sessions"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading sessions..."))
		b.WriteString("\n\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	case len(v.sessions) == 0:
		b.WriteString(v.styles.Muted.Render("No sessions yet. Press n to start one."))
		b.WriteString("\n\n")
	default:
		for i := range v.sessions {
			b.WriteString(v.renderSession(i, &v.sessions[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if v.renaming != nil {
		b.WriteString(v.renaming.View())
		b.WriteString("\n\n")
		b.WriteString(v.styles.Help.Render("[enter] save  [esc] cancel"))
		return b.String()
	}

	b.WriteString(v.renderHelp())
	return b.String()
}

// renderSession renders a single session line.
func (v *View) renderSession(index int, s *domain.SessionSummary) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	turns := fmt.Sprintf("%3d turns", s.Turns)
	name := s.DisplayName
	if s.IndexDir != "" {
		name += "  [" + s.IndexDir + "]"
	}

	maxNameLen := max(v.width-len(turns)-8, 10)
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen-3]) + "..."
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxNameLen, name, turns))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxNameLen, name)) +
		v.styles.Muted.Render(turns)
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render("[enter] open  [n] new  [r] rename  [d] delete  [g] reload  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Sessions returns the listed sessions.
func (v *View) Sessions() []domain.SessionSummary {
	return v.sessions
}

// SelectedIndex returns the currently selected session index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// Selected returns the selected session, or nil when the list is empty.
func (v *View) Selected() *domain.SessionSummary {
	if v.selected < 0 || v.selected >= len(v.sessions) {
		return nil
	}
	return &v.sessions[v.selected]
}

// Renaming reports whether the rename input is open.
func (v *View) Renaming() bool {
	return v.renaming != nil
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
