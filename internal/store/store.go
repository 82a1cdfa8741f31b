// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store keeps serialized trigger trees in SQLite, grouped by profile.
package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one saved trigger tree.
type Snapshot struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
	Roots     int       `json:"roots"`
	Size      int       `json:"size"`
	Data      []byte    `json:"-"`
}

// Reader returns the serialized tree.
func (s Snapshot) Reader() io.Reader {
	return bytes.NewReader(s.Data)
}

// Store is a snapshot database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema. Use
// ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Save stores data as the newest snapshot of profile. roots is the number
// of serialized root triggers, kept for listings.
func (s *Store) Save(ctx context.Context, profile string, data []byte, roots int) (Snapshot, error) {
	if profile == "" {
		return Snapshot{}, errors.New("profile is required")
	}

	snap := Snapshot{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: time.Now().UTC(),
		Roots:     roots,
		Size:      len(data),
		Data:      data,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, profile, created_at, roots, size, data) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Profile, snap.CreatedAt.UnixNano(), snap.Roots, snap.Size, snap.Data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the newest snapshot of profile, with its data.
func (s *Store) Latest(ctx context.Context, profile string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, created_at, roots, size, data FROM snapshots
		 WHERE profile = ? ORDER BY seq DESC LIMIT 1`, profile)
	return scanSnapshot(row)
}

// Get returns the snapshot with the given id, with its data.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, created_at, roots, size, data FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (Snapshot, error) {
	var (
		snap    Snapshot
		created int64
	)
	err := row.Scan(&snap.ID, &snap.Profile, &created, &snap.Roots, &snap.Size, &snap.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created).UTC()
	return snap, nil
}

// List returns the snapshots of profile, newest first, without data.
func (s *Store) List(ctx context.Context, profile string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile, created_at, roots, size FROM snapshots
		 WHERE profile = ? ORDER BY seq DESC`, profile)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			created int64
		)
		if err := rows.Scan(&snap.ID, &snap.Profile, &created, &snap.Roots, &snap.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Profiles returns every profile with at least one snapshot.
func (s *Store) Profiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT profile FROM snapshots ORDER BY profile`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots of profile and returns
// how many were removed. keep <= 0 keeps everything.
func (s *Store) Prune(ctx context.Context, profile string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE profile = ? AND seq NOT IN (
			SELECT seq FROM snapshots WHERE profile = ? ORDER BY seq DESC LIMIT ?
		)`, profile, profile, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
