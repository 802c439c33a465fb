package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groomkit/groom/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket := models.Ticket{
		ID:      "10001",
		Key:     "GRM-1",
		Summary: "Add login page",
		Created: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Updated: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		Creator: "alice",
	}
	require.NoError(t, s.Put(ctx, NSTickets, ticket.Key, ticket))

	var got models.Ticket
	require.NoError(t, s.Get(ctx, NSTickets, "GRM-1", &got))
	assert.Equal(t, ticket, got)
}

func TestPut_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NSReviews, "GRM-1", map[string]string{"v": "old"}))
	require.NoError(t, s.Put(ctx, NSReviews, "GRM-1", map[string]string{"v": "new"}))

	var got map[string]string
	require.NoError(t, s.Get(ctx, NSReviews, "GRM-1", &got))
	assert.Equal(t, "new", got["v"])

	keys, err := s.List(ctx, NSReviews)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	var out models.Review
	err := s.Get(context.Background(), NSReviews, "GRM-404", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_SortedAndNamespaced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NSTickets, "GRM-2", "b"))
	require.NoError(t, s.Put(ctx, NSTickets, "GRM-1", "a"))
	require.NoError(t, s.Put(ctx, NSReviews, "GRM-9", "x"))

	keys, err := s.List(ctx, NSTickets)
	require.NoError(t, err)
	assert.Equal(t, []string{"GRM-1", "GRM-2"}, keys)

	keys, err = s.List(ctx, NSReviews)
	require.NoError(t, err)
	assert.Equal(t, []string{"GRM-9"}, keys)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NSComments, "GRM-1", "c"))
	require.NoError(t, s.Remove(ctx, NSComments, "GRM-1"))

	var out string
	assert.ErrorIs(t, s.Get(ctx, NSComments, "GRM-1", &out), ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, NSComments, "GRM-1"), ErrNotFound)
}
