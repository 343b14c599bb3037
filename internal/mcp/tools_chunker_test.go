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

package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbwatch/dbagent/internal/chunker"
)

func newChunkerServer(t *testing.T, def chunker.Defaults) *Server {
	t.Helper()
	srv := NewChunker(def)
	require.NotNil(t, srv)
	return srv
}

// ─── handleChunkText ──────────────────────────────────────────────────────────

func TestHandleChunkText(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{})
	ctx := t.Context()

	t.Run("splits text", func(t *testing.T) {
		text := strings.Repeat("All work and no play makes Jack a dull boy. ", 40)
		res, err := srv.handleChunkText(ctx, toolReq(map[string]any{
			"text": text, "chunk_size": 200.0, "overlap": 20.0,
		}))
		require.NoError(t, err)
		require.False(t, isErrorResult(res), firstText(t, res))
		var out struct {
			ChunkCount int             `json:"chunk_count"`
			Chunks     []chunker.Chunk `json:"chunks"`
		}
		decodeText(t, res, &out)
		assert.Greater(t, out.ChunkCount, 1)
		require.Len(t, out.Chunks, out.ChunkCount)
		assert.Equal(t, 0, out.Chunks[0].Start)
		assert.NotEmpty(t, out.Chunks[0].Text)
	})
	t.Run("explicit strategy", func(t *testing.T) {
		res, err := srv.handleChunkText(ctx, toolReq(map[string]any{
			"text": "First paragraph.\n\nSecond paragraph.", "strategy": "paragraph", "chunk_size": 20.0,
		}))
		require.NoError(t, err)
		require.False(t, isErrorResult(res))
		var out struct {
			ChunkCount int `json:"chunk_count"`
		}
		decodeText(t, res, &out)
		assert.Equal(t, 2, out.ChunkCount)
	})
	t.Run("missing text", func(t *testing.T) {
		res, err := srv.handleChunkText(ctx, toolReq(nil))
		require.NoError(t, err)
		assert.True(t, isErrorResult(res))
		assert.Contains(t, firstText(t, res), "text is required")
	})
	t.Run("empty text yields no chunks", func(t *testing.T) {
		res, err := srv.handleChunkText(ctx, toolReq(map[string]any{"text": ""}))
		require.NoError(t, err)
		require.False(t, isErrorResult(res))
		var out struct {
			ChunkCount int             `json:"chunk_count"`
			Chunks     []chunker.Chunk `json:"chunks"`
		}
		decodeText(t, res, &out)
		assert.Equal(t, 0, out.ChunkCount)
		assert.NotNil(t, out.Chunks, "chunks serialises as an empty array, not null")
		assert.Empty(t, out.Chunks)
	})
	t.Run("bad strategy", func(t *testing.T) {
		res, err := srv.handleChunkText(ctx, toolReq(map[string]any{"text": "x", "strategy": "zigzag"}))
		require.NoError(t, err)
		assert.True(t, isErrorResult(res))
		assert.Contains(t, firstText(t, res), "unknown chunking strategy")
	})
	t.Run("overlap not below chunk size", func(t *testing.T) {
		res, err := srv.handleChunkText(ctx, toolReq(map[string]any{
			"text": "x", "chunk_size": 10.0, "overlap": 10.0,
		}))
		require.NoError(t, err)
		assert.True(t, isErrorResult(res))
	})
}

func TestHandleChunkText_usesConfiguredDefaults(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{ChunkSize: 10, Overlap: 2, Strategy: "fixed"})

	res, err := srv.handleChunkText(t.Context(), toolReq(map[string]any{
		"text": strings.Repeat("a", 25),
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))
	var out struct {
		Chunks []chunker.Chunk `json:"chunks"`
	}
	decodeText(t, res, &out)
	require.NotEmpty(t, out.Chunks)
	assert.Len(t, out.Chunks[0].Text, 10, "file default chunk size applies")
}

// ─── handleChunkStats ─────────────────────────────────────────────────────────

func TestHandleChunkStats(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{})

	text := strings.Repeat("Sphinx of black quartz, judge my vow. ", 30)
	res, err := srv.handleChunkStats(t.Context(), toolReq(map[string]any{
		"text": text, "chunk_size": 100.0, "overlap": 0.0,
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))

	var stats chunkStats
	decodeText(t, res, &stats)
	assert.Greater(t, stats.ChunkCount, 1)
	assert.Greater(t, stats.TotalChars, 0)
	assert.Greater(t, stats.TotalTokens, 0)
	assert.LessOrEqual(t, stats.MinChunkSize, stats.MaxChunkSize)
	assert.LessOrEqual(t, stats.MaxChunkSize, 100)
	assert.InDelta(t, float64(stats.TotalChars)/float64(stats.ChunkCount), stats.AvgChunkSize, 0.001)
}

func TestHandleChunkStats_emptyText(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{})

	res, err := srv.handleChunkStats(t.Context(), toolReq(map[string]any{"text": ""}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))

	var stats chunkStats
	decodeText(t, res, &stats)
	assert.Zero(t, stats.ChunkCount)
	assert.Zero(t, stats.TotalChars)
	assert.Zero(t, stats.AvgChunkSize)
}

// ─── handleCountTokens ────────────────────────────────────────────────────────

func TestHandleCountTokens(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{})
	ctx := t.Context()

	t.Run("counts", func(t *testing.T) {
		res, err := srv.handleCountTokens(ctx, toolReq(map[string]any{"text": "hello world!"}))
		require.NoError(t, err)
		require.False(t, isErrorResult(res))
		var out struct {
			Chars  int `json:"chars"`
			Tokens int `json:"tokens"`
		}
		decodeText(t, res, &out)
		assert.Equal(t, 12, out.Chars)
		assert.Equal(t, 3, out.Tokens)
	})
	t.Run("missing text", func(t *testing.T) {
		res, err := srv.handleCountTokens(ctx, toolReq(nil))
		require.NoError(t, err)
		assert.True(t, isErrorResult(res))
	})
}

// ─── handleListStrategies ─────────────────────────────────────────────────────

func TestHandleListStrategies(t *testing.T) {
	srv := newChunkerServer(t, chunker.Defaults{})

	res, err := srv.handleListStrategies(t.Context(), toolReq(nil))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))

	var strategies []chunker.StrategyInfo
	decodeText(t, res, &strategies)
	require.Len(t, strategies, 4)
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	assert.ElementsMatch(t, []string{"fixed", "sentence", "paragraph", "recursive"}, names)
}
