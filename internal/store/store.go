// Package store provides durable storage for user status rows and chat
// transcripts.
package store

import (
	"context"

	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

// Queries is the set of storage operations. It is served either by the
// connection pool or by the transaction carried in the context.
type Queries interface {
	// GetStatus returns the status row for userID, or nil when none exists.
	GetStatus(ctx context.Context, userID string) (*status.UserStatus, error)

	// InsertStatus inserts st unless a row for st.UserID already exists.
	// It reports whether a row was inserted.
	InsertStatus(ctx context.Context, st status.UserStatus) (bool, error)

	// SaveStatus overwrites the attribute values and baselines of an existing row.
	SaveStatus(ctx context.Context, st status.UserStatus) error

	// DeleteStatus removes the status row for userID.
	DeleteStatus(ctx context.Context, userID string) error

	// ListStatuses returns every status row ordered by user ID.
	ListStatuses(ctx context.Context) ([]status.UserStatus, error)

	// AppendEntry inserts a transcript row and returns its ID.
	AppendEntry(ctx context.Context, entry chat.Entry) (int64, error)

	// RecentEntries returns up to limit entries for userID, newest first.
	RecentEntries(ctx context.Context, userID string, limit int) ([]chat.Entry, error)

	// ListEntries returns every entry for userID, newest first.
	ListEntries(ctx context.Context, userID string) ([]chat.Entry, error)

	// CountEntries returns the number of entries stored for userID.
	CountEntries(ctx context.Context, userID string) (int, error)

	// DeleteEntries removes the entries with the given IDs.
	DeleteEntries(ctx context.Context, ids []int64) (int64, error)

	// DeleteUserEntries removes every entry for userID.
	DeleteUserEntries(ctx context.Context, userID string) (int64, error)
}

// Repository owns the database handle.
type Repository interface {
	// Conn returns the queries bound to the transaction in ctx, if any,
	// otherwise to the connection pool.
	Conn(ctx context.Context) Queries

	// InTx runs fn inside a transaction. The transaction is committed when fn
	// returns nil and rolled back otherwise. Nested calls join the outer
	// transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
