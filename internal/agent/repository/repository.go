// Copyright (c) 2025-2026 the dbagent authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package repository implements the agent's catalog database: a private
// sqlite file that records connection profiles and monitoring check
// history.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// Driver is the database/sql driver name the catalog uses.
const Driver = "sqlite"

// Catalog is a handle to the catalog database.
type Catalog struct {
	db *sqlx.DB
}

// Open opens (creating if needed) and migrates the catalog database at
// path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sqlx.Open(Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if err := Migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// New wraps an existing, already migrated database connection.
func New(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Profile is a saved connection profile.
type Profile struct {
	ID        string    `json:"connection_id"`
	Engine    string    `json:"engine"`
	DSN       string    `json:"dsn"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// profileRow is the database representation of Profile; timestamps are
// stored as RFC3339 strings.
type profileRow struct {
	ID        string `db:"id"`
	Engine    string `db:"engine"`
	DSN       string `db:"dsn"`
	CreatedAt string `db:"created_at"`
	LastUsed  string `db:"last_used"`
}

func (r profileRow) profile() (Profile, error) {
	created, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %q: created_at: %w", r.ID, err)
	}
	used, err := time.Parse(time.RFC3339, r.LastUsed)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %q: last_used: %w", r.ID, err)
	}
	return Profile{ID: r.ID, Engine: r.Engine, DSN: r.DSN, CreatedAt: created, LastUsed: used}, nil
}

// UpsertProfile inserts the profile or, when the ID exists, refreshes its
// engine, DSN and last-used timestamp while keeping the original creation
// time.
func (c *Catalog) UpsertProfile(ctx context.Context, p Profile) error {
	const stmt = `
	INSERT INTO conn_profile (id, engine, dsn, created_at, last_used)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		engine = excluded.engine,
		dsn = excluded.dsn,
		last_used = excluded.last_used`
	now := p.LastUsed
	if now.IsZero() {
		now = time.Now().UTC()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := c.db.ExecContext(ctx, stmt,
		p.ID, p.Engine, p.DSN,
		created.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert profile %q: %w", p.ID, err)
	}
	return nil
}

// Profiles returns all saved profiles, most recently used first.
func (c *Catalog) Profiles(ctx context.Context) ([]Profile, error) {
	var rows []profileRow
	const q = `SELECT id, engine, dsn, created_at, last_used FROM conn_profile ORDER BY last_used DESC, id`
	if err := c.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, r := range rows {
		p, err := r.profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Check is one recorded monitoring check result.
type Check struct {
	ID     int64     `json:"id"`
	Name   string    `json:"check"`
	Query  string    `json:"query"`
	Status string    `json:"status"`
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

type checkRow struct {
	ID     int64   `db:"id"`
	Name   string  `db:"name"`
	Query  string  `db:"query"`
	Status string  `db:"status"`
	Value  float64 `db:"value"`
	At     string  `db:"at"`
}

func (r checkRow) check() (Check, error) {
	at, err := time.Parse(time.RFC3339, r.At)
	if err != nil {
		return Check{}, fmt.Errorf("check %d: at: %w", r.ID, err)
	}
	return Check{ID: r.ID, Name: r.Name, Query: r.Query, Status: r.Status, Value: r.Value, At: at}, nil
}

// RecordCheck appends a check result to the history.
func (c *Catalog) RecordCheck(ctx context.Context, chk Check) error {
	const stmt = `INSERT INTO check_result (name, query, status, value, at) VALUES (?, ?, ?, ?, ?)`
	at := chk.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := c.db.ExecContext(ctx, stmt, chk.Name, chk.Query, chk.Status, chk.Value, at.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record check %q: %w", chk.Name, err)
	}
	return nil
}

// History returns up to limit most recent check results, newest first,
// optionally filtered by check name.  Non-positive limit defaults to 50.
func (c *Catalog) History(ctx context.Context, name string, limit int) ([]Check, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows []checkRow
		err  error
	)
	if name != "" {
		const q = `SELECT id, name, query, status, value, at FROM check_result WHERE name = ? ORDER BY id DESC LIMIT ?`
		err = c.db.SelectContext(ctx, &rows, q, name, limit)
	} else {
		const q = `SELECT id, name, query, status, value, at FROM check_result ORDER BY id DESC LIMIT ?`
		err = c.db.SelectContext(ctx, &rows, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	out := make([]Check, 0, len(rows))
	for _, r := range rows {
		chk, err := r.check()
		if err != nil {
			return nil, err
		}
		out = append(out, chk)
	}
	return out, nil
}
