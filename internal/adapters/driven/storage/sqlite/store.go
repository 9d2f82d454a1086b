package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// dbFileName is the database file inside the data directory.
const dbFileName = "sessions.db"

// Store is a SQLite-based storage that provides access to
// the session repository through a wrapper type.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragchat/data/sessions.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragchat", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Open opens a SQLite database with WAL mode, a busy timeout and foreign keys
// enabled on every pooled connection.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SessionRepository returns a SessionRepository interface backed by this store.
func (s *Store) SessionRepository() driven.SessionRepository {
	return &sessionRepository{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_sessions.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records its version atomically.
func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return v, nil
}

// ==================== Session Repository ====================

// sessionRepository implements driven.SessionRepository.
type sessionRepository struct {
	store *Store
}

var _ driven.SessionRepository = (*sessionRepository)(nil)

// SaveSession inserts a session or updates its name and index directory.
// Position and creation time are fixed by the first save.
func (r *sessionRepository) SaveSession(ctx context.Context, rec domain.SessionRecord) error {
	now := time.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, index_dir, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			index_dir = excluded.index_dir,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.IndexDir, rec.Position, created.UTC(), now)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession retrieves a session record by ID.
func (r *sessionRepository) GetSession(ctx context.Context, id string) (domain.SessionRecord, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT s.id, s.name, s.index_dir, s.position, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s WHERE s.id = ?
	`, id)

	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	return rec, err
}

// DeleteSession removes a session and, through the foreign key, its turns.
func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSessions returns all session records ordered by position.
func (r *sessionRepository) ListSessions(ctx context.Context) ([]domain.SessionRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.index_dir, s.position, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var records []domain.SessionRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return records, nil
}

// AppendTurns appends turns after the session's last turn in one transaction.
func (r *sessionRepository) AppendTurns(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	var last int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = ?", sessionID).Scan(&last); err != nil {
		return fmt.Errorf("reading last turn: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, turn := range turns {
		if !turn.Role.IsValid() {
			return domain.InvalidArgument("invalid turn role %q", turn.Role)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, last+int64(i)+1,
			string(turn.Role), turn.Content, turn.Timestamp.UTC()); err != nil {
			return fmt.Errorf("saving turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadTurns returns a session's turns in append order.
func (r *sessionRepository) LoadTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM turns WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn //nolint:prealloc // size unknown from query
	for rows.Next() {
		var t domain.Turn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = domain.Role(role)
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans a single session row.
func scanSession(row rowScanner) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.IndexDir, &rec.Position,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.Turns); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning session: %w", err)
	}
	return rec, nil
}
