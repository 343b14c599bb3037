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

func TestParseFetchMode(t *testing.T) {
	tests := []struct {
		input   string
		want    FetchMode
		wantErr bool
	}{
		{"all", FetchAll, false},
		{"one", FetchOne, false},
		{"none", FetchNone, false},
		{"", FetchAll, false},
		{"many", "", true},
		{"ALL", "", true},
	}
	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParseFetchMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// seedUsers creates a three-row users table on the given connection.
func seedUsers(t *testing.T, a *Agent, id string) {
	t.Helper()
	mustExec(t, a, id, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)")
	mustExec(t, a, id, "INSERT INTO users (name, age) VALUES (?, ?), (?, ?), (?, ?)",
		"alice", 30, "bob", 25, "carol", nil)
}

func TestQuery_fetchAll(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)

	res, err := a.Query(t.Context(), QueryParams{ConnectionID: id, Query: "SELECT name FROM users ORDER BY id"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "alice", res.Rows[0]["name"])
	assert.Equal(t, "carol", res.Rows[2]["name"])
	assert.Nil(t, res.Row)
	assert.False(t, res.Truncated)
	assert.GreaterOrEqual(t, res.ElapsedMS, 0.0)
}

func TestQuery_fetchOne(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)

	res, err := a.Query(t.Context(), QueryParams{
		ConnectionID: id,
		Query:        "SELECT name FROM users ORDER BY id",
		FetchMode:    FetchOne,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Rows)
	require.NotNil(t, res.Row)
	assert.Equal(t, "alice", res.Row["name"])
}

func TestQuery_fetchNone(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)

	res, err := a.Query(t.Context(), QueryParams{
		ConnectionID: id,
		Query:        "UPDATE users SET age = age + 1 WHERE age IS NOT NULL",
		FetchMode:    FetchNone,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Nil(t, res.Rows)
}

func TestQuery_params(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)

	res, err := a.Query(t.Context(), QueryParams{
		ConnectionID: id,
		Query:        "SELECT name FROM users WHERE age > ? ORDER BY id",
		Params:       []any{26},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0]["name"])
}

func TestQuery_emptyResult(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)

	res, err := a.Query(t.Context(), QueryParams{ConnectionID: id, Query: "SELECT * FROM users WHERE id = -1"})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows, "an empty result set must serialise as [], not null")
	assert.Empty(t, res.Rows)
}

func TestQuery_truncation(t *testing.T) {
	a, id := testAgent(t)

	const q = `WITH RECURSIVE cnt(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM cnt WHERE x < 1500)
		SELECT x FROM cnt`
	res, err := a.Query(t.Context(), QueryParams{ConnectionID: id, Query: q})
	require.NoError(t, err)
	assert.Len(t, res.Rows, MaxRows)
	assert.True(t, res.Truncated)
}

func TestQuery_errors(t *testing.T) {
	a, id := testAgent(t)
	seedUsers(t, a, id)
	ctx := t.Context()

	t.Run("no connection id", func(t *testing.T) {
		_, err := a.Query(ctx, QueryParams{Query: "SELECT 1"})
		assert.Error(t, err)
	})
	t.Run("no query", func(t *testing.T) {
		_, err := a.Query(ctx, QueryParams{ConnectionID: id})
		assert.Error(t, err)
	})
	t.Run("unknown connection", func(t *testing.T) {
		_, err := a.Query(ctx, QueryParams{ConnectionID: "nope", Query: "SELECT 1"})
		assert.ErrorIs(t, err, ErrNotConnected)
	})
	t.Run("bad fetch mode", func(t *testing.T) {
		_, err := a.Query(ctx, QueryParams{ConnectionID: id, Query: "SELECT 1", FetchMode: "many"})
		assert.Error(t, err)
	})
	t.Run("bad sql", func(t *testing.T) {
		_, err := a.Query(ctx, QueryParams{ConnectionID: id, Query: "SELECT FROM"})
		assert.Error(t, err)
	})
}

func TestQuery_rateLimited(t *testing.T) {
	a := New(WithQPS(1000))
	defer a.Close()
	info, err := a.Connect(t.Context(), ConnectParams{Engine: Sqlite, DSN: ":memory:"})
	require.NoError(t, err)

	// the limiter must admit sequential queries without error
	for i := 0; i < 3; i++ {
		_, err := a.Query(t.Context(), QueryParams{ConnectionID: info.ID, Query: "SELECT 1"})
		require.NoError(t, err)
	}
}

func TestNormalizeRow(t *testing.T) {
	m := map[string]any{"a": []byte("hello"), "b": int64(1), "c": nil}
	normalizeRow(m)
	assert.Equal(t, "hello", m["a"])
	assert.Equal(t, int64(1), m["b"])
	assert.Nil(t, m["c"])
}
