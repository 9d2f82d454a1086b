package indexdir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// File names inside an index directory.
const (
	ManifestFile = "manifest.toml"
	VectorsFile  = "vectors.bin"
	ChunksFile   = "chunks.db"
)

// Ensure Store implements the interface.
var _ driven.IndexStore = (*Store)(nil)

// Store reads and writes index directories on the local filesystem.
type Store struct{}

// New creates an index directory store.
func New() *Store {
	return &Store{}
}

// Save writes the manifest, vectors and chunk table to dir, replacing any
// index already there.
func (s *Store) Save(ctx context.Context, dir string, manifest domain.IndexManifest, chunks []domain.DocumentChunk) error {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return fmt.Errorf("creating index parent: %w", err)
	}

	tmp := filepath.Join(parent, "."+filepath.Base(dir)+".tmp-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0700); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	manifest.Chunks = len(chunks)
	if err := writeFiles(ctx, tmp, manifest, chunks); err != nil {
		return err
	}

	return swapDir(tmp, dir)
}

func writeFiles(ctx context.Context, dir string, manifest domain.IndexManifest, chunks []domain.DocumentChunk) error {
	rows := make([][]float32, len(chunks))
	for i, c := range chunks {
		rows[i] = c.Embedding
	}
	if err := writeVectors(filepath.Join(dir, VectorsFile), manifest.Dimension, rows); err != nil {
		return err
	}

	if err := writeChunks(ctx, filepath.Join(dir, ChunksFile), chunks); err != nil {
		return err
	}

	// The manifest goes last: a directory with a manifest is complete.
	data, err := toml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// swapDir moves tmp to dir, keeping the previous dir until the move succeeds.
func swapDir(tmp, dir string) error {
	backup := ""
	if _, err := os.Stat(dir); err == nil {
		backup = tmp + ".old"
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("moving previous index aside: %w", err)
		}
	}

	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("installing index: %w", err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("removing previous index: %w", err)
		}
	}
	return nil
}

// ReadManifest reads only the manifest. Returns domain.ErrNotFound when dir
// holds no index.
func (s *Store) ReadManifest(dir string) (domain.IndexManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.IndexManifest{}, fmt.Errorf("index %s: %w", dir, domain.ErrNotFound)
	}
	if err != nil {
		return domain.IndexManifest{}, fmt.Errorf("reading manifest: %w", err)
	}

	var m domain.IndexManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return domain.IndexManifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// Load reads the manifest, vectors and chunk table and checks they agree.
func (s *Store) Load(ctx context.Context, dir string) (domain.IndexManifest, []domain.DocumentChunk, error) {
	m, err := s.ReadManifest(dir)
	if err != nil {
		return domain.IndexManifest{}, nil, err
	}

	dimension, rows, err := readVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return domain.IndexManifest{}, nil, err
	}
	if dimension != m.Dimension {
		return domain.IndexManifest{}, nil, &domain.IncompatibleIndexError{
			Field:     "vectors dimension",
			Persisted: strconv.Itoa(dimension),
			Current:   strconv.Itoa(m.Dimension),
		}
	}

	chunks, err := readChunks(ctx, filepath.Join(dir, ChunksFile))
	if err != nil {
		return domain.IndexManifest{}, nil, err
	}
	if len(chunks) != len(rows) || len(chunks) != m.Chunks {
		return domain.IndexManifest{}, nil, &domain.IncompatibleIndexError{
			Field:     "chunk count",
			Persisted: fmt.Sprintf("%d vectors, %d chunks", len(rows), len(chunks)),
			Current:   strconv.Itoa(m.Chunks),
		}
	}

	for i := range chunks {
		chunks[i].Embedding = rows[i]
	}
	return m, chunks, nil
}

// ==================== Chunk Table ====================

const chunkSchema = `
	CREATE TABLE chunks (
		position     INTEGER PRIMARY KEY,
		source_id    TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		text         TEXT NOT NULL
	)
`

// openChunks opens chunks.db without WAL so the directory stays self-contained.
func openChunks(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening chunk table: %w", err)
	}
	return db, nil
}

func writeChunks(ctx context.Context, path string, chunks []domain.DocumentChunk) error {
	db, err := openChunks(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, chunkSchema); err != nil {
		return fmt.Errorf("creating chunk table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (position, source_id, start_offset, end_offset, text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.SourceID, c.Offsets.Start, c.Offsets.End, c.Text); err != nil {
			return fmt.Errorf("saving chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func readChunks(ctx context.Context, path string) ([]domain.DocumentChunk, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("chunk table: %w", err)
	}

	db, err := openChunks(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT position, source_id, start_offset, end_offset, text
		FROM chunks ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.Index, &c.SourceID, &c.Offsets.Start, &c.Offsets.End, &c.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if c.Index != len(chunks) {
			return nil, fmt.Errorf("chunk table has a gap at position %d", len(chunks))
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}
