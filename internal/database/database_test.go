package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "rinton.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// exerciseStore runs the channel contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	first, err := s.Send(ctx, "db", "todo 1 first")
	require.NoError(t, err)
	_, err = s.Send(ctx, "db", "todo 2 second")
	require.NoError(t, err)
	_, err = s.Send(ctx, "elsewhere", "noise")
	require.NoError(t, err)

	msgs, err := s.ListRecent(ctx, "db", 100)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "todo 2 second", msgs[0].Text)
	assert.Equal(t, first, msgs[1].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())

	require.NoError(t, s.Edit(ctx, "db", first, "todo 1 edited"))
	assert.Error(t, s.Edit(ctx, "db", "999999", "x"))

	require.NoError(t, s.Delete(ctx, "db", first))
	require.NoError(t, s.Delete(ctx, "db", first))
	msgs, err = s.ListRecent(ctx, "db", 100)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	limited, err := s.ListRecent(ctx, "elsewhere", 0)
	require.NoError(t, err)
	assert.Empty(t, limited)
}

func TestSQLite_ChannelContract(t *testing.T) {
	db := openSQLite(t)
	assert.Equal(t, "SQLite", db.DatabaseType())
	exerciseStore(t, db)
}

func TestSQLite_BacksRecordStore(t *testing.T) {
	db := openSQLite(t)
	store := recordstore.New(db, "db")
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := store.Append(ctx, model.TagTodo, fmt.Sprint(i+1), "item")
		require.NoError(t, err)
	}
	records, err := store.Records(ctx, model.TagTodo)
	require.NoError(t, err)
	assert.Len(t, records, recordstore.DefaultWindow)
	assert.Equal(t, "120", records[0].Field(0))
}

func TestOpen(t *testing.T) {
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open("oracle", "")
	assert.Error(t, err)

	_, err = Open("sqlite", "/nonexistent/dir/x.db")
	assert.Error(t, err)
}

func TestPostgres_ChannelContract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	db, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.conn.Exec("DELETE FROM messages WHERE channel_id IN ('db', 'elsewhere')")
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL", db.DatabaseType())
	exerciseStore(t, db)
}
