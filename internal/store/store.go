// SPDX-License-Identifier: MIT

// Package store provides the persistent memory bridge for reflectd.
// It abstracts the underlying database (SQLite, PostgreSQL, MySQL) behind
// a consistent interface so the rest of the service never touches SQL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/daverunner/reflectd/internal/continuity"
)

// ErrNotFound is returned when a requested reflection does not exist.
var ErrNotFound = errors.New("store: reflection not found")

// Store defines the database operations of the memory bridge.
type Store interface {
	// SaveReflection persists a sealed reflection and returns its ID.
	SaveReflection(ctx context.Context, r *continuity.Reflection) (int64, error)

	// GetReflection loads a single reflection by ID.
	GetReflection(ctx context.Context, id int64) (*continuity.Reflection, error)

	// RecallWindow returns the most recent reflections for a user, newest
	// first, optionally narrowed to a thread and session.
	RecallWindow(ctx context.Context, userID, threadID, sessionID string, limit int) ([]continuity.Reflection, error)

	// ListByUser returns every reflection of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]continuity.Reflection, error)

	// MarkVerified stamps verified_at on the given reflections.
	MarkVerified(ctx context.Context, ids []int64, at time.Time) error

	// CountReflections returns the total number of stored reflections.
	CountReflections(ctx context.Context) (int64, error)

	// Ping reports database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
