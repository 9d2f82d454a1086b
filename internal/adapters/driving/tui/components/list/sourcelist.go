// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// SourceList displays the chunks retrieved for an answer in a navigable list.
type SourceList struct {
	chunks   []domain.ScoredChunk
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the source list.
func (l *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the source list.
func (l *SourceList) View() string {
	if len(l.chunks) == 0 {
		return l.styles.Muted.Render("No sources retrieved")
	}

	lines := make([]string, 0, len(l.chunks)+2)

	header := l.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(l.chunks)))
	lines = append(lines, header, "")

	// Each chunk takes two lines.
	visibleCount := (l.height - 2) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := min(start+visibleCount, len(l.chunks))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderChunk(i, &l.chunks[i]))
	}

	return strings.Join(lines, "\n")
}

// renderChunk formats one chunk as a source line and a preview line.
func (l *SourceList) renderChunk(index int, sc *domain.ScoredChunk) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	source := fmt.Sprintf("%s #%d", sc.Chunk.SourceID, sc.Chunk.Index)
	maxSourceLen := max(l.width-20, 10)
	source = truncate(source, maxSourceLen)
	score := fmt.Sprintf("%.3f", sc.Score)

	var sourceLine string
	if index == l.selected {
		sourceLine = l.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxSourceLen, source, score))
	} else {
		sourceLine = l.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxSourceLen, source)) +
			l.styles.Muted.Render(score)
	}

	preview := strings.Join(strings.Fields(sc.Chunk.Text), " ")
	preview = truncate(preview, max(l.width-6, 20))

	return sourceLine + "\n" + l.styles.Muted.Render("    "+preview)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// SetChunks replaces the listed chunks and resets the selection.
func (l *SourceList) SetChunks(chunks []domain.ScoredChunk) {
	l.chunks = chunks
	l.selected = 0
}

// Chunks returns the listed chunks.
func (l *SourceList) Chunks() []domain.ScoredChunk {
	return l.chunks
}

// Selected returns the index of the selected chunk.
func (l *SourceList) Selected() int {
	return l.selected
}

// SelectedChunk returns the currently selected chunk, or nil if none.
func (l *SourceList) SelectedChunk() *domain.ScoredChunk {
	if len(l.chunks) == 0 || l.selected < 0 || l.selected >= len(l.chunks) {
		return nil
	}
	return &l.chunks[l.selected]
}

// MoveUp moves selection up.
func (l *SourceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SourceList) MoveDown() {
	if l.selected < len(l.chunks)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SourceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of chunks.
func (l *SourceList) Count() int {
	return len(l.chunks)
}
