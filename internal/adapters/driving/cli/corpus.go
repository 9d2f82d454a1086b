package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// errNoCorpus is returned when a command needs documents but none were named.
var errNoCorpus = errors.New("no corpus given: use --corpus <path> or --github <owner/repo>")

// addCorpusFlags registers the flags that name a corpus.
func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().String("corpus", "", "Directory or file to index")
	cmd.Flags().String("github", "", "GitHub repository to index (owner/repo[@ref])")
	cmd.Flags().String("patterns", "", "Comma-separated glob patterns limiting GitHub files")
}

// hasCorpus reports whether any corpus flag is set.
func hasCorpus(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("corpus") || cmd.Flags().Changed("github")
}

// openCorpus resolves the corpus flags to a document source.
func openCorpus(cmd *cobra.Command) (driven.DocumentSource, error) {
	corpus, _ := cmd.Flags().GetString("corpus") //nolint:errcheck // flag registered by addCorpusFlags
	repo, _ := cmd.Flags().GetString("github")   //nolint:errcheck // flag registered by addCorpusFlags
	patterns, _ := cmd.Flags().GetString("patterns")

	switch {
	case corpus != "" && repo != "":
		return nil, errors.New("--corpus and --github are mutually exclusive")
	case corpus == "" && repo == "":
		return nil, errNoCorpus
	case sourceOpener == nil:
		return nil, errors.New("document sources not configured")
	case repo != "":
		return sourceOpener.GitHub(cmd.Context(), repo, patterns)
	default:
		return sourceOpener.Filesystem(corpus), nil
	}
}

// loadCorpus reads every document of the corpus named by the flags.
func loadCorpus(cmd *cobra.Command) ([]domain.Document, error) {
	source, err := openCorpus(cmd)
	if err != nil {
		return nil, err
	}

	logger.Info("loading documents from %s", source.Name())
	docs, err := source.Documents(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", source.Name(), err)
	}
	logger.Info("loaded %d documents", len(docs))
	return docs, nil
}
