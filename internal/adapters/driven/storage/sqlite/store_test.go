package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func record(id string, pos int64) domain.SessionRecord {
	return domain.SessionRecord{
		ID:        id,
		Name:      fmt.Sprintf("Chat-%d", pos+1),
		Position:  pos,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "sessions.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewStore_ReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SessionRepository().SaveSession(ctx, record("s1", 0)))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	rec, err := second.SessionRepository().GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Chat-1", rec.Name)

	version, err := second.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

// ==================== Session Repository Tests ====================

func TestSessionRepository_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()

	rec := record("s1", 0)
	rec.IndexDir = "/idx"
	require.NoError(t, repo.SaveSession(ctx, rec))

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "Chat-1", got.Name)
	assert.Equal(t, "/idx", got.IndexDir)
	assert.Equal(t, int64(0), got.Position)
	assert.Equal(t, 0, got.Turns)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
}

func TestSessionRepository_SaveUpdatesNameKeepsPosition(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveSession(ctx, record("s1", 3)))

	rec := record("s1", 99)
	rec.Name = "Renamed"
	require.NoError(t, repo.SaveSession(ctx, rec))

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, int64(3), got.Position)
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.SessionRepository().GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepository_ListOrderedByPosition(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveSession(ctx, record("c", 2)))
	require.NoError(t, repo.SaveSession(ctx, record("a", 0)))
	require.NoError(t, repo.SaveSession(ctx, record("b", 1)))
	require.NoError(t, repo.AppendTurns(ctx, "b", domain.NewTurn(domain.RoleUser, "hi")))

	list, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
	assert.Equal(t, 1, list[1].Turns)
}

func TestSessionRepository_ListEmpty(t *testing.T) {
	store := setupTestStore(t)

	list, err := store.SessionRepository().ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionRepository_AppendAndLoadTurns(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, record("s1", 0)))

	require.NoError(t, repo.AppendTurns(ctx, "s1",
		domain.NewTurn(domain.RoleUser, "What is Go?"),
		domain.NewTurn(domain.RoleAssistant, "A programming language.")))
	require.NoError(t, repo.AppendTurns(ctx, "s1",
		domain.NewTurn(domain.RoleUser, "Who made it?"),
		domain.NewTurn(domain.RoleAssistant, "Google.")))

	turns, err := repo.LoadTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "What is Go?", turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Who made it?", turns[2].Content)
	assert.Equal(t, "Google.", turns[3].Content)
	assert.WithinDuration(t, time.Now(), turns[3].Timestamp, time.Minute)
}

func TestSessionRepository_AppendTurns_UnknownSession(t *testing.T) {
	store := setupTestStore(t)

	err := store.SessionRepository().AppendTurns(context.Background(), "ghost",
		domain.NewTurn(domain.RoleUser, "hello"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepository_AppendTurns_InvalidRoleRollsBack(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, record("s1", 0)))

	err := repo.AppendTurns(ctx, "s1",
		domain.NewTurn(domain.RoleUser, "valid"),
		domain.Turn{Role: "system", Content: "invalid"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	turns, err := repo.LoadTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSessionRepository_DeleteCascadesTurns(t *testing.T) {
	store := setupTestStore(t)
	repo := store.SessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, record("s1", 0)))
	require.NoError(t, repo.AppendTurns(ctx, "s1", domain.NewTurn(domain.RoleUser, "bye")))

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	assert.ErrorIs(t, repo.DeleteSession(ctx, "s1"), domain.ErrNotFound)

	// a reused id starts with an empty history
	require.NoError(t, repo.SaveSession(ctx, record("s1", 1)))
	turns, err := repo.LoadTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
