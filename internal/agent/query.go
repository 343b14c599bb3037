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

package agent

// In this file: query execution.

import (
	"context"
	"fmt"
	"time"
)

// FetchMode selects how query results are returned.
type FetchMode string

const (
	// FetchAll returns all result rows, capped at MaxRows.
	FetchAll FetchMode = "all"
	// FetchOne returns only the first result row.
	FetchOne FetchMode = "one"
	// FetchNone discards the result set and reports rows affected; use for
	// DDL and data manipulation statements.
	FetchNone FetchMode = "none"
)

// MaxRows caps the number of rows FetchAll returns.
const MaxRows = 1000

// ParseFetchMode converts a string to a FetchMode.  The empty string
// defaults to FetchAll.
func ParseFetchMode(s string) (FetchMode, error) {
	switch FetchMode(s) {
	case FetchAll, FetchOne, FetchNone:
		return FetchMode(s), nil
	case "":
		return FetchAll, nil
	}
	return "", fmt.Errorf("unknown fetch mode %q (want all, one or none)", s)
}

// QueryParams are the parameters for Query.
type QueryParams struct {
	ConnectionID string `validate:"required"`
	Query        string `validate:"required"`
	// Params are positional bind parameters for "?" placeholders; they are
	// rebound to the engine's placeholder style automatically.
	Params    []any
	FetchMode FetchMode
}

// QueryResult is the outcome of a query execution.
type QueryResult struct {
	Rows         []map[string]any `json:"results,omitempty"`
	Row          map[string]any   `json:"result,omitempty"`
	RowsAffected int64            `json:"rows_affected"`
	Truncated    bool             `json:"truncated,omitempty"`
	ElapsedMS    float64          `json:"elapsed_ms"`
}

// Query executes an SQL statement on the given connection.  Bind parameters
// use "?" placeholders regardless of the engine.
func (a *Agent) Query(ctx context.Context, p QueryParams) (*QueryResult, error) {
	if err := validate.Struct(p); err != nil {
		return nil, translateErr(err)
	}
	mode, err := ParseFetchMode(string(p.FetchMode))
	if err != nil {
		return nil, err
	}
	c, err := a.get(p.ConnectionID)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	var (
		res   QueryResult
		start = time.Now()
	)
	switch mode {
	case FetchNone:
		r, err := c.db.ExecContext(ctx, c.db.Rebind(p.Query), p.Params...)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
	default:
		rows, err := c.db.QueryxContext(ctx, c.db.Rebind(p.Query), p.Params...)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			m := make(map[string]any)
			if err := rows.MapScan(m); err != nil {
				return nil, fmt.Errorf("scan: %w", err)
			}
			normalizeRow(m)
			if mode == FetchOne {
				res.Row = m
				break
			}
			res.Rows = append(res.Rows, m)
			if len(res.Rows) >= MaxRows {
				res.Truncated = true
				break
			}
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate: %w", err)
		}
		if mode == FetchAll && res.Rows == nil {
			res.Rows = []map[string]any{}
		}
	}
	res.ElapsedMS = roundMS(time.Since(start))

	a.lg.DebugContext(ctx, "query executed", "connection_id", p.ConnectionID, "fetch", mode, "elapsed_ms", res.ElapsedMS)
	return &res, nil
}

// normalizeRow converts driver-specific column values into JSON-friendly
// types, notably []byte into string.
func normalizeRow(m map[string]any) {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
}

// roundMS converts a duration to milliseconds with two decimal places.
func roundMS(d time.Duration) float64 {
	return float64(d.Microseconds()/10) / 100
}
