package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// defaultSessionID is used by ask when --session is not given.
const defaultSessionID = "default"

var (
	askSession string
	askRebuild bool
	askJSON    bool
	askSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question within a session",
	Long: `Ask a question within a conversation session.

Follow-up questions are rewritten into standalone questions using the
session history before retrieval. The question and answer are appended to
the session history on success.

When --corpus or --github is given, the index is built (or reused when the
persisted index matches the corpus) and bound to the session first. With
--index alone, the persisted index is opened and bound. Otherwise the index
already bound to the session is used, if any.

Examples:
  ragchat ask --corpus ./docs "Who maintains the parser?"
  ragchat ask "And when did they start?"
  ragchat ask --session work --index ./idx --sources "What changed in v2?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", defaultSessionID, "Session id")
	askCmd.Flags().String("index", "", "Index directory (default: retrieval.index_dir or .ragchat-index)")
	askCmd.Flags().BoolVar(&askRebuild, "rebuild", false, "Rebuild the index even when it is up to date")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Output the answer as JSON")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "Print the retrieved source chunks")
	addCorpusFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	answers, err := requireAnswerService()
	if err != nil {
		return err
	}
	sessions, err := requireSessionService()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := sessions.GetOrCreate(ctx, askSession); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	if err := bindIndex(cmd, askSession, askRebuild); err != nil {
		return err
	}

	question := strings.Join(args, " ")
	answer, err := answers.Ask(ctx, askSession, question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, askSession, answer)
	}
	outputAnswerText(cmd, answer, askSources)
	return nil
}

// bindIndex binds the index named by the corpus and index flags to a session.
// It does nothing when neither is set.
func bindIndex(cmd *cobra.Command, sessionID string, rebuild bool) error {
	if !hasCorpus(cmd) && !cmd.Flags().Changed("index") {
		return nil
	}

	indexes, err := requireIndexService()
	if err != nil {
		return err
	}
	dir, err := indexDirFlag(cmd)
	if err != nil {
		return err
	}

	var index domain.Retriever
	if hasCorpus(cmd) {
		index, err = buildIndex(cmd, dir, rebuild)
	} else {
		index, err = indexes.Open(cmd.Context(), dir)
	}
	if err != nil {
		return err
	}

	if err := sessionService.Bind(cmd.Context(), sessionID, index, dir); err != nil {
		return fmt.Errorf("failed to bind index: %w", err)
	}
	return nil
}

// buildIndex loads the corpus and ensures (or rebuilds) the index at dir.
func buildIndex(cmd *cobra.Command, dir string, rebuild bool) (domain.Retriever, error) {
	indexes, err := requireIndexService()
	if err != nil {
		return nil, err
	}
	docs, err := loadCorpus(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := buildOptions()
	if err != nil {
		return nil, err
	}

	if rebuild {
		return indexes.Rebuild(cmd.Context(), dir, docs, opts)
	}
	return indexes.EnsureIndex(cmd.Context(), dir, docs, opts)
}

// answerOutput is the JSON shape of an answer.
type answerOutput struct {
	SessionID         string         `json:"session_id"`
	Question          string         `json:"question"`
	RewrittenQuestion string         `json:"rewritten_question"`
	Answer            string         `json:"answer"`
	Sources           []sourceOutput `json:"sources"`
	Trace             []string       `json:"trace"`
}

// sourceOutput is the JSON shape of a retrieved chunk.
type sourceOutput struct {
	SourceID string  `json:"source_id"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

func toSourceOutputs(chunks []domain.ScoredChunk) []sourceOutput {
	out := make([]sourceOutput, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, sourceOutput{
			SourceID: c.Chunk.SourceID,
			Index:    c.Chunk.Index,
			Score:    c.Score,
			Text:     c.Chunk.Text,
		})
	}
	return out
}

func outputAnswerJSON(cmd *cobra.Command, sessionID string, answer *domain.Answer) error {
	trace := make([]string, 0, len(answer.Trace))
	for _, s := range answer.Trace {
		trace = append(trace, string(s))
	}

	data, err := json.MarshalIndent(answerOutput{
		SessionID:         sessionID,
		Question:          answer.Question,
		RewrittenQuestion: answer.RewrittenQuestion,
		Answer:            answer.Text,
		Sources:           toSourceOutputs(answer.Chunks),
		Trace:             trace,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.Answer, withSources bool) {
	cmd.Println(answer.Text)

	if !withSources {
		return
	}
	if answer.RewrittenQuestion != "" && answer.RewrittenQuestion != answer.Question {
		cmd.Printf("\nSearched for: %s\n", answer.RewrittenQuestion)
	}
	if len(answer.Chunks) == 0 {
		cmd.Println("\nNo sources retrieved.")
		return
	}
	cmd.Println("\nSources:")
	printChunks(cmd, answer.Chunks)
}

// printChunks prints scored chunks with a one-line preview.
func printChunks(cmd *cobra.Command, chunks []domain.ScoredChunk) {
	for i, c := range chunks {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, c.Chunk.SourceID, c.Chunk.Index, c.Score)
		cmd.Printf("      %s\n", preview(c.Chunk.Text, 100))
	}
}

// preview flattens text to a single line of at most n runes.
func preview(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if r := []rune(flat); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return flat
}
