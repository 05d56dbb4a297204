package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
	_ "modernc.org/sqlite"
)

// DB is the SQLite message log.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	conn.SetMaxOpenConns(1)
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// ListRecent returns the newest messages of a channel first.
func (db *DB) ListRecent(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, content, created_at FROM messages WHERE channel_id = ? ORDER BY id DESC LIMIT ?",
		channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Send appends a message.
func (db *DB) Send(ctx context.Context, channelID, text string) (string, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages (channel_id, content, created_at) VALUES (?, ?, ?)",
		channelID, text, time.Now().UTC())
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Edit rewrites a message.
func (db *DB) Edit(ctx context.Context, channelID, messageID string, text string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET content = ? WHERE channel_id = ? AND id = ?",
		text, channelID, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("edit %s/%s: message not found", channelID, messageID)
	}
	return nil
}

// Delete removes a message; a missing message is not an error.
func (db *DB) Delete(ctx context.Context, channelID, messageID string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM messages WHERE channel_id = ? AND id = ?", channelID, messageID)
	return err
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var msgs []model.Message
	for rows.Next() {
		var (
			id        int64
			m         model.Message
			createdAt sql.NullTime
		)
		if err := rows.Scan(&id, &m.Text, &createdAt); err != nil {
			return nil, err
		}
		m.ID = strconv.FormatInt(id, 10)
		if createdAt.Valid {
			m.Timestamp = createdAt.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
