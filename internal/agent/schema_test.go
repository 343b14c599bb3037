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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTables(t *testing.T) {
	a, id := testAgent(t)
	ctx := t.Context()

	got, err := a.Tables(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)

	mustExec(t, a, id, "CREATE TABLE orders (id INTEGER PRIMARY KEY)")
	mustExec(t, a, id, "CREATE TABLE customers (id INTEGER PRIMARY KEY)")

	got, err = a.Tables(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, got)
}

func TestTables_unknownConnection(t *testing.T) {
	a := New()
	defer a.Close()
	_, err := a.Tables(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDescribeTable(t *testing.T) {
	a, id := testAgent(t)
	mustExec(t, a, id, `CREATE TABLE items (
		id    INTEGER PRIMARY KEY,
		name  TEXT NOT NULL,
		price REAL DEFAULT 0.0,
		note  TEXT
	)`)

	cols, err := a.DescribeTable(t.Context(), id, "items")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, Column{Name: "id", Type: "INTEGER", Nullable: true, PrimaryKey: true}, cols[0])
	assert.Equal(t, Column{Name: "name", Type: "TEXT", Nullable: false}, cols[1])
	assert.Equal(t, "price", cols[2].Name)
	assert.Equal(t, "0.0", cols[2].Default)
	assert.True(t, cols[3].Nullable)
	assert.Nil(t, cols[3].Default)
}

func TestDescribeTable_errors(t *testing.T) {
	a, id := testAgent(t)
	mustExec(t, a, id, "CREATE TABLE items (id INTEGER PRIMARY KEY)")
	ctx := t.Context()

	t.Run("no such table", func(t *testing.T) {
		_, err := a.DescribeTable(ctx, id, "widgets")
		assert.ErrorIs(t, err, ErrNoSuchTable)
	})
	t.Run("hostile table name", func(t *testing.T) {
		_, err := a.DescribeTable(ctx, id, `items"); DROP TABLE items; --`)
		assert.ErrorIs(t, err, ErrNoSuchTable)

		// and nothing was dropped
		tables, err := a.Tables(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"items"}, tables)
	})
	t.Run("unknown connection", func(t *testing.T) {
		_, err := a.DescribeTable(ctx, "nope", "items")
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"users", `"users"`},
		{`od"d`, `"od""d"`},
		{"", `""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteIdent(tt.input))
	}
}
