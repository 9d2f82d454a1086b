// Package cli provides the ragchat command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// SourceOpener resolves corpus locations to document sources.
type SourceOpener interface {
	// Filesystem returns a source over a directory or single file.
	Filesystem(root string) driven.DocumentSource

	// GitHub returns a source over an owner/repo[@ref] specification,
	// limited to the comma-separated glob patterns when set.
	GitHub(ctx context.Context, spec, patterns string) (driven.DocumentSource, error)
}

// Services holds the core services the commands drive.
type Services struct {
	Settings driving.SettingsService
	Sessions driving.SessionService
	Answer   driving.AnswerService
	Index    driving.IndexService
	Sources  SourceOpener

	// AnswerErr explains why Answer is nil, e.g. an unconfigured LLM.
	AnswerErr error
}

var (
	version = "dev"
	verbose bool

	settingsService driving.SettingsService
	sessionService  driving.SessionService
	answerService   driving.AnswerService
	indexService    driving.IndexService
	sourceOpener    SourceOpener
	answerErr       error
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Conversational question answering over your documents",
	Long: `ragchat answers questions about a corpus of documents in multi-turn
conversations. Follow-up questions are rewritten into standalone questions,
relevant passages are retrieved from a persisted embedding index and the
configured LLM answers from them.

Get started:
  ragchat settings llm
  ragchat settings embedding
  ragchat ask --corpus ./docs "What is this project about?"
  ragchat chat`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices injects the core services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	sessionService = s.Sessions
	answerService = s.Answer
	indexService = s.Index
	sourceOpener = s.Sources
	answerErr = s.AnswerErr
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to every command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// requireAnswerService returns the answer service or the reason it is missing.
func requireAnswerService() (driving.AnswerService, error) {
	if answerService != nil {
		return answerService, nil
	}
	if answerErr != nil {
		return nil, answerErr
	}
	return nil, errors.New("answer service not configured")
}

// requireSessionService returns the session service or an error.
func requireSessionService() (driving.SessionService, error) {
	if sessionService == nil {
		return nil, errors.New("session service not configured")
	}
	return sessionService, nil
}

// requireIndexService returns the index service or an error.
func requireIndexService() (driving.IndexService, error) {
	if indexService == nil {
		return nil, errors.New("index service not configured")
	}
	return indexService, nil
}

// defaultIndexDir is used when neither --index nor retrieval.index_dir is set.
const defaultIndexDir = ".ragchat-index"

// indexDirFlag returns the --index flag value, falling back to the configured
// index directory and then to defaultIndexDir.
func indexDirFlag(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("index")
	if err != nil {
		return "", fmt.Errorf("getting index flag: %w", err)
	}
	if dir != "" {
		return dir, nil
	}
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return "", fmt.Errorf("failed to get settings: %w", err)
		}
		if settings.Retrieval.IndexDir != "" {
			return settings.Retrieval.IndexDir, nil
		}
	}
	return defaultIndexDir, nil
}

// buildOptions returns the chunking parameters from settings.
func buildOptions() (domain.BuildOptions, error) {
	if settingsService == nil {
		return domain.DefaultBuildOptions(), nil
	}
	settings, err := settingsService.Get()
	if err != nil {
		return domain.BuildOptions{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings.Retrieval.BuildOptions(), nil
}
