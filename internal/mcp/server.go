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

// In this file: MCP server construction and transport management.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/dbwatch/dbagent/internal/agent"
	"github.com/dbwatch/dbagent/internal/chunker"
)

const serverVersion = "1.0.0"

// Transport selects how the MCP server communicates with its client.
type Transport string

const (
	// TransportStdio uses stdin/stdout for communication (default, suitable
	// for local agent integrations such as Claude Desktop).
	TransportStdio Transport = "stdio"
	// TransportHTTP uses Streamable HTTP transport (suitable for remote
	// agents or when multiple concurrent clients are needed).
	TransportHTTP Transport = "http"
	// TransportSSE uses the legacy HTTP+SSE transport.
	TransportSSE Transport = "sse"
)

// ParseTransport converts a string to a Transport.  The empty string
// defaults to stdio.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportStdio, TransportHTTP, TransportSSE:
		return Transport(s), nil
	case "":
		return TransportStdio, nil
	}
	return "", fmt.Errorf("unknown transport %q (want stdio, http or sse)", s)
}

// Server wraps an MCP server together with the backend it exposes.
type Server struct {
	mcp    *mcpsrv.MCPServer
	name   string
	ag     *agent.Agent
	chunk  chunker.Defaults
	tools  []mcpsrv.ServerTool
	logger *slog.Logger
}

// Option is the signature of a Server option.
type Option func(*Server)

// WithLogger sets the logger.  A nil logger falls back to slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(s *Server) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// NewDBAgent creates the database operations MCP server backed by the given
// agent.  The server is populated with all database tools but does not start
// listening until one of the Serve* methods is called.
func NewDBAgent(ag *agent.Agent, opt ...Option) *Server {
	s := &Server{
		name:   "dbagent-mcp",
		ag:     ag,
		logger: slog.Default(),
	}
	for _, o := range opt {
		o(s)
	}
	s.init(dbInstructions(), s.dbTools())
	return s
}

// NewChunker creates the text chunking MCP server.  def supplies the default
// chunk size, overlap and strategy applied when a tool call leaves them out.
func NewChunker(def chunker.Defaults, opt ...Option) *Server {
	s := &Server{
		name:   "chunker-mcp",
		chunk:  def,
		logger: slog.Default(),
	}
	for _, o := range opt {
		o(s)
	}
	s.init(chunkerInstructions(), s.chunkerTools())
	return s
}

func (s *Server) init(instructions string, tools []mcpsrv.ServerTool) {
	m := mcpsrv.NewMCPServer(
		s.name,
		serverVersion,
		mcpsrv.WithInstructions(instructions),
	)
	for _, t := range tools {
		m.AddTool(t.Tool, t.Handler)
	}
	s.mcp = m
	s.tools = tools
}

func dbInstructions() string {
	return `You are connected to a database operations MCP server.

Available tools let you:
- Connect to and disconnect from databases (sqlite by default; other
  engines when their drivers are built in)
- Execute SQL queries with bind parameters and fetch modes (all/one/none)
- Insert rows transactionally
- Inspect schemas (list tables, describe columns)
- Run health checks: query response time, deadlock, database file size,
  abnormal data, batch data quality, and browse the check history

Monitoring checks run against a live connection when connection_id is given
and return synthesised sample values otherwise.
`
}

func chunkerInstructions() string {
	return `You are connected to a text chunking MCP server.

Available tools let you split text into chunks for retrieval-augmented
generation pipelines, estimate token counts, and inspect chunk statistics.

Strategies: fixed (sliding window), sentence, paragraph, recursive
(separator hierarchy, the default).  Chunk sizes and overlap are measured
in characters; token estimates assume roughly four characters per token.
`
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
// This is the standard transport used by local agent integrations.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	s.logger.InfoContext(ctx, "mcp server listening on stdio", "server", s.name)
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// ServeHTTP runs the MCP server as a Streamable HTTP server on addr until
// ctx is cancelled.  addr should be a host:port string such as
// "127.0.0.1:9002".  The MCP endpoint is "/mcp"; "/" and "/docs" serve the
// service description.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	stream := mcpsrv.NewStreamableHTTPServer(s.mcp)

	r := s.router(TransportHTTP)
	r.Mount("/mcp", stream)

	return s.serve(ctx, addr, r, "http")
}

// ServeSSE runs the MCP server over the legacy HTTP+SSE transport on addr
// until ctx is cancelled.  The SSE stream is on "/sse" and client messages
// are posted to "/message".
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := mcpsrv.NewSSEServer(s.mcp,
		mcpsrv.WithSSEEndpoint("/sse"),
		mcpsrv.WithMessageEndpoint("/message"),
	)

	r := s.router(TransportSSE)
	r.Handle("/sse", sse)
	r.Handle("/message", sse)

	return s.serve(ctx, addr, r, "sse")
}

// router builds the common HTTP router with the service description
// endpoints.
func (s *Server) router(transport Transport) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleInfo(transport))
	r.Get("/docs", s.handleDocs)
	return r
}

// serve runs the HTTP server until ctx is cancelled or the listener fails.
func (s *Server) serve(ctx context.Context, addr string, h http.Handler, transport string) error {
	srv := &http.Server{Addr: addr, Handler: h}

	s.logger.InfoContext(ctx, "mcp server listening", "server", s.name, "transport", transport, "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("mcp %s server error: %w", transport, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "mcp server shutting down", "server", s.name)
		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("mcp %s server shutdown error: %w", transport, err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// handleInfo serves the service description on "/".
func (s *Server) handleInfo(transport Transport) http.HandlerFunc {
	endpoints := map[string]string{"docs": "/docs"}
	switch transport {
	case TransportHTTP:
		endpoints["mcp"] = "/mcp"
	case TransportSSE:
		endpoints["sse"] = "/sse"
		endpoints["message"] = "/message"
	}
	info := struct {
		Name      string            `json:"name"`
		Version   string            `json:"version"`
		Transport Transport         `json:"transport"`
		Endpoints map[string]string `json:"endpoints"`
		ToolCount int               `json:"tool_count"`
	}{
		Name:      s.name,
		Version:   serverVersion,
		Transport: transport,
		Endpoints: endpoints,
		ToolCount: len(s.tools),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(info); err != nil {
			s.logger.Error("writing service description", "error", err)
		}
	}
}

// handleDocs serves a human-readable tool reference on "/docs".
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\nTools:\n\n", s.name, serverVersion)
	for _, t := range s.tools {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", t.Tool.Name, strings.TrimSpace(t.Tool.Description))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, sb.String())
}

// Name returns the MCP server name.
func (s *Server) Name() string {
	return s.name
}

// ToolNames returns the names of the registered tools, in registration
// order.
func (s *Server) ToolNames() []string {
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Tool.Name
	}
	return names
}

// resultText is a helper that wraps text in a successful CallToolResult.
func resultText(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}

// resultErr is a helper that wraps an error in a CallToolResult with IsError=true.
func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(err.Error())},
		IsError: true,
	}
}

// resultJSON is a helper that serialises v to JSON and returns a CallToolResult.
func resultJSON(v any) (*mcplib.CallToolResult, error) {
	return mcplib.NewToolResultJSON(v)
}

// stringArg extracts a named string argument from a tool call request.
// Returns ("", false) if the argument is absent or not a string.
func stringArg(req mcplib.CallToolRequest, name string) (string, bool) {
	args := req.GetArguments()
	if args == nil {
		return "", false
	}
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// intArg extracts a named int argument from a tool call request.  The MCP
// protocol serialises numbers as float64, so we convert accordingly.
func intArg(req mcplib.CallToolRequest, name string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	v, ok := args[name]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return defaultVal
}

// boolArg extracts a named bool argument from a tool call request.
func boolArg(req mcplib.CallToolRequest, name string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	v, ok := args[name]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// sliceArg extracts a named array argument from a tool call request.
// Returns (nil, false) if the argument is absent or not an array.
func sliceArg(req mcplib.CallToolRequest, name string) ([]any, bool) {
	args := req.GetArguments()
	if args == nil {
		return nil, false
	}
	v, ok := args[name]
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}
