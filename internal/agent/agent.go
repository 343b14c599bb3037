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

// Package agent implements the database operations agent: a registry of live
// database connections with query execution, data insertion, schema
// inspection and health/monitoring checks on top of them.
//
// Engines are addressed by name (sqlite, postgres, mysql); an engine is
// usable only when its database/sql driver is linked into the binary.  Only
// the pure-Go sqlite driver ships by default.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/dbwatch/dbagent/internal/agent/repository"
)

// Sentinel errors returned by agent operations.
var (
	ErrNotConnected      = errors.New("no such connection")
	ErrDuplicateID       = errors.New("connection id already in use")
	ErrUnknownEngine     = errors.New("unknown database engine")
	ErrEngineUnavailable = errors.New("engine driver is not linked into this build")
	ErrNotSupported      = errors.New("operation is not supported for this engine")
	ErrNoCatalog         = errors.New("no catalog database is configured")
	ErrNoSuchTable       = errors.New("no such table")
)

// Engine is a database engine name.
type Engine string

// Recognised engines.
const (
	Sqlite   Engine = "sqlite"
	Postgres Engine = "postgres"
	MySQL    Engine = "mysql"
)

// engineDrivers maps an engine to the database/sql driver name it needs.
var engineDrivers = map[Engine]string{
	Sqlite:   "sqlite",
	Postgres: "pgx",
	MySQL:    "mysql",
}

// Available reports whether the engine's driver is registered.  Linking an
// additional driver (blank import) enables the matching engine without any
// other change.
func (e Engine) Available() bool {
	name, ok := engineDrivers[e]
	return ok && slices.Contains(sql.Drivers(), name)
}

// SupportedEngines returns the recognised engine names mapped to their
// availability in this build.
func SupportedEngines() map[string]bool {
	m := make(map[string]bool, len(engineDrivers))
	for e := range engineDrivers {
		m[string(e)] = e.Available()
	}
	return m
}

var (
	validate = validator.New()
	errTrans ut.Translator
)

func init() {
	english := en.New()
	errTrans, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, errTrans); err != nil {
		panic(err)
	}
}

// translateErr renders validator errors in English; other errors pass
// through unchanged.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var vErr validator.ValidationErrors
	if errors.As(err, &vErr) {
		return fmt.Errorf("validation: %s", vErr.Translate(errTrans))
	}
	return err
}

// ConnectParams are the parameters for Connect.
type ConnectParams struct {
	// ID is the caller-chosen connection identifier.  When empty, a UUID is
	// generated.
	ID string `validate:"omitempty,max=64"`
	// Engine is the database engine name.
	Engine Engine `validate:"required,oneof=sqlite postgres mysql"`
	// DSN is the engine-specific connection string (for sqlite, a file path
	// or ":memory:").
	DSN string `validate:"required"`
}

// ConnInfo describes an open connection.
type ConnInfo struct {
	ID        string    `json:"connection_id"`
	Engine    Engine    `json:"engine"`
	DSN       string    `json:"dsn"`
	CreatedAt time.Time `json:"created_at"`
}

type conn struct {
	info ConnInfo
	db   *sqlx.DB
}

// Agent is the database operations agent.  All methods are safe for
// concurrent use.
type Agent struct {
	mu    sync.RWMutex
	conns map[string]*conn

	catalog    *repository.Catalog
	limiter    *rate.Limiter
	thresholds Thresholds
	lg         *slog.Logger

	// randomness hooks for the synthesised monitoring fallback.
	randf func() float64
	randn func(n int) int
}

// Option is the signature of an Agent option.
type Option func(*Agent)

// WithLogger sets the logger.  A nil logger falls back to slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(a *Agent) {
		if lg != nil {
			a.lg = lg
		}
	}
}

// WithCatalog attaches a catalog database that records connection profiles
// and monitoring check history.
func WithCatalog(cat *repository.Catalog) Option {
	return func(a *Agent) { a.catalog = cat }
}

// WithQPS rate-limits query execution to n queries per second.  Zero or
// negative n means unlimited.
func WithQPS(n float64) Option {
	return func(a *Agent) {
		if n > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// WithThresholds overrides the monitoring thresholds.
func WithThresholds(t Thresholds) Option {
	return func(a *Agent) { a.thresholds = t }
}

// New creates a new Agent.
func New(opt ...Option) *Agent {
	a := &Agent{
		conns:      make(map[string]*conn),
		thresholds: DefThresholds,
		lg:         slog.Default(),
		randf:      rand.Float64,
		randn:      rand.IntN,
	}
	for _, o := range opt {
		o(a)
	}
	return a
}

// Connect opens a database connection and registers it under the given (or
// generated) ID.  The connection is pinged before it is registered, so a
// successful return means the database is reachable.
func (a *Agent) Connect(ctx context.Context, p ConnectParams) (ConnInfo, error) {
	if err := validate.Struct(p); err != nil {
		return ConnInfo{}, translateErr(err)
	}
	if !p.Engine.Available() {
		return ConnInfo{}, fmt.Errorf("%w: %s", ErrEngineUnavailable, p.Engine)
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.conns[id]; exists {
		return ConnInfo{}, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	db, err := sqlx.Open(engineDrivers[p.Engine], p.DSN)
	if err != nil {
		return ConnInfo{}, fmt.Errorf("open %s database: %w", p.Engine, err)
	}
	if isMemoryDSN(p.Engine, p.DSN) {
		// each driver connection to a private in-memory database gets its
		// own empty copy, so the pool must stay at a single connection or
		// the data silently vanishes on pool churn
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return ConnInfo{}, fmt.Errorf("ping %s database: %w", p.Engine, err)
	}

	info := ConnInfo{ID: id, Engine: p.Engine, DSN: p.DSN, CreatedAt: time.Now().UTC()}
	a.conns[id] = &conn{info: info, db: db}

	if a.catalog != nil {
		prof := repository.Profile{ID: id, Engine: string(p.Engine), DSN: p.DSN, CreatedAt: info.CreatedAt, LastUsed: info.CreatedAt}
		if err := a.catalog.UpsertProfile(ctx, prof); err != nil {
			a.lg.WarnContext(ctx, "catalog: saving connection profile failed", "connection_id", id, "error", err)
		}
	}
	a.lg.InfoContext(ctx, "database connected", "connection_id", id, "engine", p.Engine)
	return info, nil
}

// isMemoryDSN reports whether the DSN names a private in-memory sqlite
// database.  Shared-cache DSNs ("cache=shared") are excluded: those share
// one database across connections.
func isMemoryDSN(e Engine, dsn string) bool {
	if e != Sqlite {
		return false
	}
	if strings.Contains(dsn, "cache=shared") {
		return false
	}
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Disconnect closes and removes the connection with the given ID.
func (a *Agent) Disconnect(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotConnected, id)
	}
	delete(a.conns, id)
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close %q: %w", id, err)
	}
	return nil
}

// List returns the open connections sorted by ID.
func (a *Agent) List() []ConnInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ConnInfo, 0, len(a.conns))
	for _, c := range a.conns {
		out = append(out, c.info)
	}
	slices.SortFunc(out, func(x, y ConnInfo) int {
		return strings.Compare(x.ID, y.ID)
	})
	return out
}

// SavedConnections returns the connection profiles recorded in the catalog.
func (a *Agent) SavedConnections(ctx context.Context) ([]repository.Profile, error) {
	if a.catalog == nil {
		return nil, ErrNoCatalog
	}
	return a.catalog.Profiles(ctx)
}

// Close closes all open connections.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var g errgroup.Group
	for _, c := range a.conns {
		g.Go(c.db.Close)
	}
	clear(a.conns)
	return g.Wait()
}

// get returns the connection with the given ID.
func (a *Agent) get(id string) (*conn, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConnected, id)
	}
	return c, nil
}

// wait blocks until the rate limiter admits another query.
func (a *Agent) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}
