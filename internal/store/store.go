// Package store provides the data access layer. All queries run through
// *pgxpool.Pool directly: the worker claim path needs pgx-native
// FOR UPDATE SKIP LOCKED semantics, and every terminal job write is a
// conditional UPDATE whose WHERE clause re-asserts the expected prior
// status. Dynamic list queries are built with squirrel.
package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql builds queries with Postgres-style $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the central data access object. Callers should use the domain
// methods (jobs, startups, timeline) rather than the pool directly.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgxpool for callers that need raw access
// (health checks, test fixtures).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
