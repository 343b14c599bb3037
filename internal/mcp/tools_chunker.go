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

// In this file: text chunking tool definitions and handler implementations.

import (
	"context"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/dbwatch/dbagent/internal/chunker"
)

// chunkerTools returns all tools the text chunking server exposes.
func (s *Server) chunkerTools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		s.toolChunkText(),
		s.toolChunkStats(),
		s.toolCountTokens(),
		s.toolListStrategies(),
	}
}

// newChunker builds a chunker from the tool call arguments, falling back to
// the server's configured defaults for anything the call leaves out.
func (s *Server) newChunker(req mcplib.CallToolRequest) (*chunker.Chunker, error) {
	opts := s.chunk.Options()
	if n := intArg(req, "chunk_size", 0); n != 0 {
		opts = append(opts, chunker.WithChunkSize(n))
	}
	if n := intArg(req, "overlap", -1); n >= 0 {
		opts = append(opts, chunker.WithOverlap(n))
	}
	if strat, _ := stringArg(req, "strategy"); strat != "" {
		parsed, err := chunker.ParseStrategy(strat)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chunker.WithStrategy(parsed))
	}
	return chunker.New(opts...)
}

// chunkingArgs appends the shared chunking parameters to a tool definition.
func chunkingArgs() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithString("text",
			mcplib.Description("The text to split."),
			mcplib.Required(),
		),
		mcplib.WithString("strategy",
			mcplib.Description(`Chunking strategy: "fixed", "sentence", "paragraph" or "recursive" (default).`),
		),
		mcplib.WithNumber("chunk_size",
			mcplib.Description("Maximum chunk size in characters (default 512)."),
		),
		mcplib.WithNumber("overlap",
			mcplib.Description("Characters of context carried over between adjacent chunks (default 64).  Applies to the fixed and recursive strategies."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	}
}

// ─── chunk_text ───────────────────────────────────────────────────────────────

func (s *Server) toolChunkText() mcpsrv.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription(`Split text into chunks for retrieval-augmented generation.

Returns the chunks with their rune offsets into the original text and an
estimated token count per chunk.`),
	}, chunkingArgs()...)
	tool := mcplib.NewTool("chunk_text", opts...)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleChunkText}
}

func (s *Server) handleChunkText(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text, ok := stringArg(req, "text")
	if !ok {
		return resultErr(errors.New("chunk_text: text is required")), nil
	}
	c, err := s.newChunker(req)
	if err != nil {
		return resultErr(fmt.Errorf("chunk_text: %w", err)), nil
	}
	chunks, err := c.Split(text)
	if err != nil {
		return resultErr(fmt.Errorf("chunk_text: %w", err)), nil
	}
	if chunks == nil {
		chunks = []chunker.Chunk{}
	}

	result, err := resultJSON(struct {
		ChunkCount int             `json:"chunk_count"`
		Chunks     []chunker.Chunk `json:"chunks"`
	}{len(chunks), chunks})
	if err != nil {
		return resultErr(fmt.Errorf("chunk_text: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── chunk_stats ──────────────────────────────────────────────────────────────

func (s *Server) toolChunkStats() mcpsrv.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Split text and report aggregate chunk statistics without returning the chunk bodies.  Useful for tuning chunk size and strategy on large documents."),
	}, chunkingArgs()...)
	tool := mcplib.NewTool("chunk_stats", opts...)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleChunkStats}
}

// chunkStats is the JSON payload of the chunk_stats tool.
type chunkStats struct {
	ChunkCount   int     `json:"chunk_count"`
	TotalChars   int     `json:"total_chars"`
	MinChunkSize int     `json:"min_chunk_size"`
	MaxChunkSize int     `json:"max_chunk_size"`
	AvgChunkSize float64 `json:"avg_chunk_size"`
	TotalTokens  int     `json:"total_tokens"`
}

func (s *Server) handleChunkStats(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text, ok := stringArg(req, "text")
	if !ok {
		return resultErr(errors.New("chunk_stats: text is required")), nil
	}
	c, err := s.newChunker(req)
	if err != nil {
		return resultErr(fmt.Errorf("chunk_stats: %w", err)), nil
	}
	chunks, err := c.Split(text)
	if err != nil {
		return resultErr(fmt.Errorf("chunk_stats: %w", err)), nil
	}

	var stats chunkStats
	stats.ChunkCount = len(chunks)
	for _, chunk := range chunks {
		n := len([]rune(chunk.Text))
		stats.TotalChars += n
		stats.TotalTokens += chunk.Tokens
		if stats.MinChunkSize == 0 || n < stats.MinChunkSize {
			stats.MinChunkSize = n
		}
		if n > stats.MaxChunkSize {
			stats.MaxChunkSize = n
		}
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkSize = float64(stats.TotalChars) / float64(stats.ChunkCount)
	}

	result, err := resultJSON(stats)
	if err != nil {
		return resultErr(fmt.Errorf("chunk_stats: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── count_tokens ─────────────────────────────────────────────────────────────

func (s *Server) toolCountTokens() mcpsrv.ServerTool {
	tool := mcplib.NewTool("count_tokens",
		mcplib.WithDescription("Estimate the token count of a text.  The estimate assumes roughly four characters per token."),
		mcplib.WithString("text",
			mcplib.Description("The text to estimate."),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCountTokens}
}

func (s *Server) handleCountTokens(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text, ok := stringArg(req, "text")
	if !ok {
		return resultErr(errors.New("count_tokens: text is required")), nil
	}

	result, err := resultJSON(struct {
		Chars  int `json:"chars"`
		Tokens int `json:"tokens"`
	}{len([]rune(text)), chunker.EstimateTokens(text)})
	if err != nil {
		return resultErr(fmt.Errorf("count_tokens: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── list_strategies ──────────────────────────────────────────────────────────

func (s *Server) toolListStrategies() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_strategies",
		mcplib.WithDescription("List the available chunking strategies with their descriptions."),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListStrategies}
}

func (s *Server) handleListStrategies(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	result, err := resultJSON(chunker.Strategies())
	if err != nil {
		return resultErr(fmt.Errorf("list_strategies: serialise: %w", err)), nil
	}
	return result, nil
}
