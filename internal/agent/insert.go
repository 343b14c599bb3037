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

// In this file: data insertion.

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// InsertParams are the parameters for Insert.
type InsertParams struct {
	ConnectionID string `validate:"required"`
	Table        string `validate:"required"`
	// Rows maps column names to values.  All rows must use the same column
	// set.
	Rows []map[string]any `validate:"required,min=1"`
	// ReturnIDs requests the auto-generated row IDs of the inserted rows.
	ReturnIDs bool
}

// InsertResult is the outcome of an Insert.
type InsertResult struct {
	RowsInserted int64   `json:"rows_inserted"`
	InsertedIDs  []int64 `json:"inserted_ids,omitempty"`
}

// Insert adds one or more rows to a table in a single transaction.  The
// table name is checked against the schema; column names are
// identifier-quoted.
func (a *Agent) Insert(ctx context.Context, p InsertParams) (*InsertResult, error) {
	if err := validate.Struct(p); err != nil {
		return nil, translateErr(err)
	}
	tables, err := a.Tables(ctx, p.ConnectionID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, p.Table) {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchTable, p.Table)
	}
	c, err := a.get(p.ConnectionID)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	cols := slices.Sorted(maps.Keys(p.Rows[0]))
	if len(cols) == 0 {
		return nil, fmt.Errorf("insert into %q: row has no columns", p.Table)
	}
	for i, row := range p.Rows {
		if !slices.Equal(slices.Sorted(maps.Keys(row)), cols) {
			return nil, fmt.Errorf("insert into %q: row %d has a different column set", p.Table, i)
		}
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(p.Table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt = c.db.Rebind(stmt)

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var out InsertResult
	for i, row := range p.Rows {
		args := make([]any, len(cols))
		for j, col := range cols {
			args[j] = row[col]
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("insert into %q, row %d: %w", p.Table, i, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			out.RowsInserted += n
		}
		if p.ReturnIDs {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("insert into %q, row %d: last insert id: %w", p.Table, i, err)
			}
			out.InsertedIDs = append(out.InsertedIDs, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	a.lg.DebugContext(ctx, "rows inserted", "connection_id", p.ConnectionID, "table", p.Table, "rows", out.RowsInserted)
	return &out, nil
}
