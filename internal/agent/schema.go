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

// In this file: schema inspection.

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Column describes a table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Default    any    `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// Tables lists the user tables of the given connection, sorted by name.
func (a *Agent) Tables(ctx context.Context, id string) ([]string, error) {
	c, err := a.get(id)
	if err != nil {
		return nil, err
	}
	switch c.info.Engine {
	case Sqlite:
		var names []string
		const q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
		if err := c.db.SelectContext(ctx, &names, q); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, c.info.Engine)
	}
}

// DescribeTable returns column metadata for the named table.  The table name
// is checked against the table listing, which also keeps arbitrary SQL out
// of the PRAGMA statement.
func (a *Agent) DescribeTable(ctx context.Context, id, table string) ([]Column, error) {
	tables, err := a.Tables(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, table) {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchTable, table)
	}
	c, err := a.get(id)
	if err != nil {
		return nil, err
	}

	type tableInfo struct {
		CID          int     `db:"cid"`
		Name         string  `db:"name"`
		Type         string  `db:"type"`
		NotNull      int     `db:"notnull"`
		DefaultValue *string `db:"dflt_value"`
		PK           int     `db:"pk"`
	}
	var infos []tableInfo
	if err := c.db.SelectContext(ctx, &infos, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))); err != nil {
		return nil, fmt.Errorf("describe %q: %w", table, err)
	}

	cols := make([]Column, 0, len(infos))
	for _, ti := range infos {
		col := Column{
			Name:       ti.Name,
			Type:       ti.Type,
			Nullable:   ti.NotNull == 0,
			PrimaryKey: ti.PK > 0,
		}
		if ti.DefaultValue != nil {
			col.Default = *ti.DefaultValue
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// quoteIdent quotes an SQL identifier with double quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
