// Package database provides durable message logs that stand in for a chat
// channel when the bot runs without a chat platform.
package database

import (
	"fmt"
	"strings"

	"github.com/bryan-buckman/rinton/internal/channel"
)

// Store is a channel backend backed by a SQL database.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	channel.Channel

	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string
}

// Open connects to the backend named by kind ("sqlite" or "postgres").
func Open(kind, dsn string) (Store, error) {
	switch strings.ToLower(kind) {
	case "sqlite":
		db, err := New(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres", "postgresql":
		db, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", kind)
	}
}
