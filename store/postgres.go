//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of DimETL.
//
// DimETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DimETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with DimETL. If not, see https://www.gnu.org/licenses/.

// Package store persists registry checkpoints.
//
// Only a registry's input mappings (its Snapshot) are stored; lookup indexes
// are rebuilt by Setup after a checkpoint is loaded.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/registry"
)

// ErrNotFound is returned by Load when no checkpoint exists for a key.
var ErrNotFound = errors.New("registry checkpoint not found")

// StoreError provides structured error information for store operations.
type StoreError struct {
	Op  string // Operation that failed (e.g., "connect", "schema", "save", "load")
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("postgres store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// PostgresStoreOptions configures the store.
type PostgresStoreOptions struct {
	DSN             string        // Database connection string
	Table           string        // Checkpoint table name
	QueryTimeout    time.Duration // Per-statement timeout
	MaxOpenConns    int           // Maximum open connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
}

// PostgresStoreOption represents a configuration function for PostgresStoreOptions.
type PostgresStoreOption func(*PostgresStoreOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresTable sets the checkpoint table name.
func WithPostgresTable(table string) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.Table = table
	}
}

// WithPostgresQueryTimeout sets the per-statement timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen int, lifetime time.Duration) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.MaxOpenConns = maxOpen
		opts.ConnMaxLifetime = lifetime
	}
}

func (opts *PostgresStoreOptions) withDefaults() *PostgresStoreOptions {
	opts.Table = "aggregator_registry"
	opts.QueryTimeout = 10 * time.Second
	opts.MaxOpenConns = 4
	opts.ConnMaxLifetime = 5 * time.Minute
	return opts
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (opts *PostgresStoreOptions) validate() error {
	if !tableName.MatchString(opts.Table) {
		return fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	return nil
}

// PostgresStore saves and loads registry checkpoints in PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	opts  *PostgresStoreOptions
	table string
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, options ...PostgresStoreOption) (*PostgresStore, error) {
	opts := (&PostgresStoreOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if opts.DSN == "" {
		return nil, &StoreError{Op: "connect", Err: errors.New("dsn is required")}
	}
	if err := opts.validate(); err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &StoreError{Op: "connect", Err: err}
	}
	return newStore(db, opts), nil
}

// NewPostgresStoreFromDB wraps an existing pool. The caller keeps ownership of
// pool settings; Close still closes db.
func NewPostgresStoreFromDB(db *sql.DB, options ...PostgresStoreOption) (*PostgresStore, error) {
	opts := (&PostgresStoreOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if err := opts.validate(); err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}
	return newStore(db, opts), nil
}

func newStore(db *sql.DB, opts *PostgresStoreOptions) *PostgresStore {
	return &PostgresStore{db: db, opts: opts, table: pq.QuoteIdentifier(opts.Table)}
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	snapshot JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &StoreError{Op: "schema", Err: err}
	}
	return nil
}

// Save stores the snapshot of reg under key, replacing any previous checkpoint.
func (s *PostgresStore) Save(ctx context.Context, key string, reg *registry.Registry) error {
	data, err := json.Marshal(reg.Snapshot())
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (key, snapshot, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, data); err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}

// Load restores the registry checkpointed under key. The returned registry has
// not been set up.
func (s *PostgresStore) Load(ctx context.Context, key string, catalog *aggregate.Catalog, opts ...registry.Option) (*registry.Registry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	var data []byte
	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE key = $1`, s.table)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StoreError{Op: "load", Err: fmt.Errorf("%w: %s", ErrNotFound, key)}
	}
	if err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}

	var snap registry.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &StoreError{Op: "load", Err: fmt.Errorf("decode snapshot %s: %w", key, err)}
	}
	reg, err := registry.FromSnapshot(snap, catalog, opts...)
	if err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}
	return reg, nil
}

// Delete removes the checkpoint stored under key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
