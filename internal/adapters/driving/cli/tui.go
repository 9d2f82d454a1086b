package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui"
)

var chatSession string

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive chat UI",
	Long: `Launch the interactive terminal chat interface.

The chat UI keeps a scrolling transcript of the session, shows the sources
retrieved for the last answer and lets you switch between sessions.

Use --corpus, --github or --index to bind an index to the session first.

Controls:
  Enter    - Ask
  Tab      - Show or hide sources
  ↑/↓      - Scroll
  Esc      - Cancel / Back
  ctrl+c   - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session to open (default: start at the menu)")
	chatCmd.Flags().String("index", "", "Index directory (default: retrieval.index_dir or .ragchat-index)")
	addCorpusFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	answers, err := requireAnswerService()
	if err != nil {
		return err
	}
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	if hasCorpus(cmd) || cmd.Flags().Changed("index") {
		if chatSession == "" {
			chatSession = defaultSessionID
		}
		if _, err := sessions.GetOrCreate(cmd.Context(), chatSession); err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		if err := bindIndex(cmd, chatSession, false); err != nil {
			return err
		}
	}

	ports := tui.NewPorts(answers, sessions)
	ports.Index = indexService

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())
	if chatSession != "" {
		app.WithSession(chatSession)
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
