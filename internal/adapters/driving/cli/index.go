package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/connectors/filesystem"
	"github.com/custodia-labs/ragchat/internal/logger"
)

var (
	indexRebuild  bool
	indexK        int
	indexJSON     bool
	indexDebounce time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect retrieval indexes",
	Long: `Build, inspect and query persisted retrieval indexes.

An index directory holds a manifest.toml describing the embedding provider,
model, dimension and chunking parameters, the chunk vectors and a SQLite chunk
table. An index is only reused when its manifest matches the current embedder.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or refresh an index from a corpus",
	Long: `Build the index for a corpus. A persisted index built from the same
documents with a compatible embedder is reused unless --rebuild is given.

Examples:
  ragchat index build --corpus ./docs
  ragchat index build --github owner/repo@main --patterns "*.md,docs/**" --index ./repo-idx`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the manifest of a persisted index",
	Args:  cobra.NoArgs,
	RunE:  runIndexInfo,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve the chunks most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexQuery,
}

var indexWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep an index up to date while a corpus directory changes",
	Long: `Build the index for a corpus directory, then watch the directory and
refresh the index whenever files are created, changed or removed. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runIndexWatch,
}

func init() {
	for _, c := range []*cobra.Command{indexBuildCmd, indexInfoCmd, indexQueryCmd, indexWatchCmd} {
		c.Flags().String("index", "", "Index directory (default: retrieval.index_dir or .ragchat-index)")
	}
	addCorpusFlags(indexBuildCmd)
	indexBuildCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "Rebuild even when the index is up to date")

	indexQueryCmd.Flags().IntVarP(&indexK, "k", "k", 4, "Number of chunks to return")
	indexQueryCmd.Flags().BoolVar(&indexJSON, "json", false, "Output as JSON")

	indexWatchCmd.Flags().String("corpus", "", "Directory or file to watch and index")
	indexWatchCmd.Flags().DurationVar(&indexDebounce, "debounce", filesystem.DefaultDebounce,
		"Quiet period before a batch of changes triggers a refresh")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInfoCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexWatchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	dir, err := indexDirFlag(cmd)
	if err != nil {
		return err
	}

	start := time.Now()
	if _, err := buildIndex(cmd, dir, indexRebuild); err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	return printIndexSummary(cmd, dir, time.Since(start))
}

func printIndexSummary(cmd *cobra.Command, dir string, took time.Duration) error {
	manifest, err := indexService.Info(dir)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	cmd.Printf("Index ready at %s: %d chunks (%s/%s, dim %d) in %s\n",
		dir, manifest.Chunks, manifest.Provider, manifest.Model, manifest.Dimension,
		took.Round(time.Millisecond))
	return nil
}

func runIndexInfo(cmd *cobra.Command, _ []string) error {
	indexes, err := requireIndexService()
	if err != nil {
		return err
	}
	dir, err := indexDirFlag(cmd)
	if err != nil {
		return err
	}

	manifest, err := indexes.Info(dir)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	cmd.Printf("Index: %s\n", dir)
	cmd.Printf("  Version: %d\n", manifest.Version)
	cmd.Printf("  Provider: %s\n", manifest.Provider)
	cmd.Printf("  Model: %s\n", manifest.Model)
	cmd.Printf("  Dimension: %d\n", manifest.Dimension)
	cmd.Printf("  Chunk size: %d (overlap %d)\n", manifest.ChunkSize, manifest.ChunkOverlap)
	cmd.Printf("  Chunks: %d\n", manifest.Chunks)
	cmd.Printf("  Fingerprint: %s\n", manifest.Fingerprint)
	cmd.Printf("  Created: %s\n", manifest.CreatedAt.Format(time.RFC3339))
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	indexes, err := requireIndexService()
	if err != nil {
		return err
	}
	dir, err := indexDirFlag(cmd)
	if err != nil {
		return err
	}
	if indexK < 1 {
		return errors.New("k must be at least 1")
	}

	index, err := indexes.Open(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	results, err := index.Query(cmd.Context(), args[0], indexK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, toSourceOutputs(results))
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	printChunks(cmd, results)
	return nil
}

func runIndexWatch(cmd *cobra.Command, _ []string) error {
	corpus, _ := cmd.Flags().GetString("corpus") //nolint:errcheck // flag registered in init
	if corpus == "" {
		return errors.New("--corpus is required")
	}
	if sourceOpener == nil {
		return errors.New("document sources not configured")
	}
	indexes, err := requireIndexService()
	if err != nil {
		return err
	}
	dir, err := indexDirFlag(cmd)
	if err != nil {
		return err
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	source := sourceOpener.Filesystem(corpus)
	refresh := func(ctx context.Context) error {
		start := time.Now()
		docs, err := source.Documents(ctx)
		if err != nil {
			return fmt.Errorf("loading %s: %w", source.Name(), err)
		}
		if _, err := indexes.EnsureIndex(ctx, dir, docs, opts); err != nil {
			return err
		}
		return printIndexSummary(cmd, dir, time.Since(start))
	}

	if err := refresh(cmd.Context()); err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	watcher := filesystem.NewWatcher(corpus, indexDebounce, func(ctx context.Context, changes []filesystem.Change) {
		logger.Info("%d changes under %s", len(changes), corpus)
		for _, c := range changes {
			logger.Debug("  %s %s", c.Type, c.Path)
		}
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			cmd.PrintErrf("refresh failed: %v\n", err)
		}
	})

	cmd.Printf("Watching %s (ctrl+c to stop)\n", corpus)
	if err := watcher.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
