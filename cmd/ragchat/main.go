// Command ragchat answers questions about a document corpus in multi-turn sessions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/indexdir"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/tokens"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragchat/internal/connectors"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/services"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Environment variables read before the config is loaded.
const (
	envHome      = "RAGCHAT_HOME"      // overrides ~/.ragchat
	envEphemeral = "RAGCHAT_EPHEMERAL" // keeps sessions in memory only
	envGitHub    = "GITHUB_TOKEN"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	home, err := homeDir()
	if err != nil {
		return err
	}

	if err := file.LoadEnv(home); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator(), os.LookupEnv)
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	repo, closeRepo, err := sessionRepository(home)
	if err != nil {
		return err
	}
	defer closeRepo()

	sessionStore := services.NewSessionStore(services.WithRepository(repo))
	if err := sessionStore.Restore(ctx); err != nil {
		return fmt.Errorf("restoring sessions: %w", err)
	}

	// Provider failures only disable the commands that need them.
	aiServices, aiErr := ai.Init(settings)
	var embedder driven.EmbeddingService
	if aiErr == nil {
		defer aiServices.Close()
		embedder = aiServices.EmbeddingService
		for _, w := range aiServices.Warnings {
			logger.Warn("%s", w)
		}
	}

	indexService := services.NewIndexService(embedder, indexdir.New(), flat.Factory)

	deps := cli.Services{
		Settings:  settingsService,
		Sessions:  sessionStore,
		Index:     indexService,
		Sources:   connectors.NewFactory(nil, connectors.WithGitHubToken(os.Getenv(envGitHub))),
		AnswerErr: aiErr,
	}

	if aiErr == nil {
		prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
		if err != nil {
			return fmt.Errorf("opening prompts: %w", err)
		}
		counter, err := tokens.NewCounter(tokens.DefaultEncoding)
		if err != nil {
			logger.Debug("token encoding unavailable, counting words: %v", err)
		}
		deps.Answer = services.NewAnswerPipeline(
			sessionStore,
			aiServices.LLMService,
			services.AnswerConfigFromSettings(settings),
			services.WithPromptStore(prompts),
			services.WithTokenCounter(counter),
			services.WithIndexLoader(indexService.Open),
		)
	}

	cli.SetVersion(version)
	cli.SetServices(deps)
	return cli.ExecuteContext(ctx)
}

// homeDir returns the ragchat state directory.
func homeDir() (string, error) {
	if dir := os.Getenv(envHome); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(userHome, ".ragchat"), nil
}

// sessionRepository opens the SQLite session store, or an in-memory one when
// RAGCHAT_EPHEMERAL is set.
func sessionRepository(home string) (driven.SessionRepository, func(), error) {
	if os.Getenv(envEphemeral) != "" {
		return memory.NewSessionRepository(), func() {}, nil
	}

	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	return store.SessionRepository(), func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing session store: %v", err)
		}
	}, nil
}
