package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	sessionNewName string
	sessionJSON    bool
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage conversation sessions",
	Long: `Create, list, rename and delete conversation sessions, and show their history.

Sessions are created on first reference by ask and chat; session new creates one
ahead of time with a generated id.`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create a session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename [id] [name]",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionRename,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHistory,
}

func init() {
	sessionNewCmd.Flags().StringVar(&sessionNewName, "name", "", "Display name for the session")
	sessionListCmd.Flags().BoolVar(&sessionJSON, "json", false, "Output as JSON")
	sessionHistoryCmd.Flags().BoolVar(&sessionJSON, "json", false, "Output as JSON")

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionRenameCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	id := uuid.NewString()
	if len(args) == 1 {
		id = args[0]
	}

	sess, err := sessions.GetOrCreate(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if sessionNewName != "" {
		if err := sessions.Rename(cmd.Context(), id, sessionNewName); err != nil {
			return fmt.Errorf("failed to name session: %w", err)
		}
	}

	cmd.Printf("Created session %s (%s)\n", sess.ID, sess.Name())
	return nil
}

// sessionOutput is the JSON shape of a session listing entry.
type sessionOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Turns    int    `json:"turns"`
	IndexDir string `json:"index_dir,omitempty"`
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	summaries := sessions.List(cmd.Context())

	if sessionJSON {
		out := make([]sessionOutput, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, sessionOutput{ID: s.ID, Name: s.DisplayName, Turns: s.Turns, IndexDir: s.IndexDir})
		}
		return printJSON(cmd, out)
	}

	if len(summaries) == 0 {
		cmd.Println("No sessions.")
		return nil
	}

	for _, s := range summaries {
		cmd.Printf("%s  %-20s %3d turns", s.ID, s.DisplayName, s.Turns)
		if s.IndexDir != "" {
			cmd.Printf("  [%s]", s.IndexDir)
		}
		cmd.Println()
	}
	return nil
}

func runSessionRename(cmd *cobra.Command, args []string) error {
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	if err := sessions.Rename(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	cmd.Printf("Renamed session %s to %s\n", args[0], args[1])
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	if err := sessions.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	cmd.Printf("Deleted session %s\n", args[0])
	return nil
}

// turnOutput is the JSON shape of a history turn.
type turnOutput struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	sess, err := sessions.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	turns := sess.History.AsSequence()

	if sessionJSON {
		out := make([]turnOutput, 0, len(turns))
		for _, t := range turns {
			out = append(out, turnOutput{
				Role:      string(t.Role),
				Content:   t.Content,
				Timestamp: t.Timestamp.Format(time.RFC3339),
			})
		}
		return printJSON(cmd, out)
	}

	if len(turns) == 0 {
		cmd.Printf("Session %s has no history.\n", sess.Name())
		return nil
	}
	for _, t := range turns {
		cmd.Printf("%s: %s\n\n", t.Role, t.Content)
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
