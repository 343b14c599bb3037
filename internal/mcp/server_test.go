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
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbwatch/dbagent/internal/agent"
	"github.com/dbwatch/dbagent/internal/chunker"
)

// newTestServer creates a database operations server backed by a real agent
// with one open sqlite connection.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ag := agent.New()
	t.Cleanup(func() { ag.Close() })
	srv := NewDBAgent(ag)
	require.NotNil(t, srv)
	info, err := ag.Connect(t.Context(), agent.ConnectParams{
		Engine: agent.Sqlite,
		DSN:    filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)
	return srv, info.ID
}

// toolReq builds a CallToolRequest with the given argument map.
func toolReq(args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// isErrorResult returns true when the result carries IsError=true.
func isErrorResult(r *mcplib.CallToolResult) bool {
	return r != nil && r.IsError
}

// firstText returns the text of the first TextContent in the result.
func firstText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content, "result has no content")
	txt, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "first content item is not TextContent")
	return txt.Text
}

// ─── construction ─────────────────────────────────────────────────────────────

func TestNewDBAgent(t *testing.T) {
	srv := NewDBAgent(agent.New())
	require.NotNil(t, srv)
	assert.NotNil(t, srv.mcp)
	assert.NotNil(t, srv.logger)
	assert.Equal(t, "dbagent-mcp", srv.name)
	assert.Len(t, srv.ToolNames(), 14)
	assert.Contains(t, srv.ToolNames(), "connect_database")
	assert.Contains(t, srv.ToolNames(), "check_history")
}

func TestNewChunker(t *testing.T) {
	srv := NewChunker(chunker.Defaults{})
	require.NotNil(t, srv)
	assert.Equal(t, "chunker-mcp", srv.name)
	assert.Equal(t, []string{"chunk_text", "chunk_stats", "count_tokens", "list_strategies"}, srv.ToolNames())
}

func TestWithLogger_nil(t *testing.T) {
	// a nil logger must not panic and must fall back to slog.Default()
	assert.NotPanics(t, func() {
		srv := NewChunker(chunker.Defaults{}, WithLogger(nil))
		assert.NotNil(t, srv.logger)
	})
}

// ─── ParseTransport ───────────────────────────────────────────────────────────

func TestParseTransport(t *testing.T) {
	tests := []struct {
		input   string
		want    Transport
		wantErr bool
	}{
		{"stdio", TransportStdio, false},
		{"http", TransportHTTP, false},
		{"sse", TransportSSE, false},
		{"", TransportStdio, false},
		{"websocket", "", true},
	}
	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParseTransport(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ─── MCP transports ───────────────────────────────────────────────────────────

// TestStreamableHTTP_toolsList drives the streamable HTTP endpoint end to
// end: initialize, then tools/list, the same sequence the deployment smoke
// check sends.
func TestStreamableHTTP_toolsList(t *testing.T) {
	srv, _ := newTestServer(t)

	r := srv.router(TransportHTTP)
	r.Mount("/mcp", mcpsrv.NewStreamableHTTPServer(srv.mcp))
	ts := httptest.NewServer(r)
	defer ts.Close()

	post := func(session, body string) *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.URL+"/mcp", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		if session != "" {
			req.Header.Set("Mcp-Session-Id", session)
		}
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		return resp
	}

	initResp := post("", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"smoke","version":"1.0.0"}}}`)
	defer initResp.Body.Close()
	require.Equal(t, http.StatusOK, initResp.StatusCode)
	session := initResp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, session, "initialize must issue a session")

	listResp := post(session, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var rpc struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&rpc))
	names := make([]string, len(rpc.Result.Tools))
	for i, tool := range rpc.Result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, srv.ToolNames(), names)
}

// TestSSE_endpointEvent checks that the SSE stream opens and announces the
// message endpoint, wired the way ServeSSE wires it.
func TestSSE_endpointEvent(t *testing.T) {
	srv := NewChunker(chunker.Defaults{})

	sse := mcpsrv.NewSSEServer(srv.mcp,
		mcpsrv.WithSSEEndpoint("/sse"),
		mcpsrv.WithMessageEndpoint("/message"),
	)
	r := srv.router(TransportSSE)
	r.Handle("/sse", sse)
	r.Handle("/message", sse)
	ts := httptest.NewServer(r)
	defer ts.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan(), "no event received")
	assert.Equal(t, "event: endpoint", sc.Text())
	require.True(t, sc.Scan(), "no event data received")
	assert.True(t, strings.HasPrefix(sc.Text(), "data: /message?sessionId="), sc.Text())
}

// ─── service description endpoints ────────────────────────────────────────────

func TestHandleInfo(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.router(TransportHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		Name      string            `json:"name"`
		Transport string            `json:"transport"`
		Endpoints map[string]string `json:"endpoints"`
		ToolCount int               `json:"tool_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "dbagent-mcp", info.Name)
	assert.Equal(t, "http", info.Transport)
	assert.Equal(t, "/mcp", info.Endpoints["mcp"])
	assert.Equal(t, 14, info.ToolCount)
}

func TestHandleInfo_sseEndpoints(t *testing.T) {
	srv := NewChunker(chunker.Defaults{})
	r := srv.router(TransportSSE)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		Endpoints map[string]string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "/sse", info.Endpoints["sse"])
	assert.Equal(t, "/message", info.Endpoints["message"])
}

func TestHandleDocs(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.router(TransportHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "## execute_query")
	assert.Contains(t, body, "## check_deadlock")
}

// ─── argument helpers ─────────────────────────────────────────────────────────

func TestStringArg(t *testing.T) {
	req := toolReq(map[string]any{"a": "hello", "n": 42.0})

	got, ok := stringArg(req, "a")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = stringArg(req, "missing")
	assert.False(t, ok)

	_, ok = stringArg(req, "n")
	assert.False(t, ok, "number is not a string")

	_, ok = stringArg(mcplib.CallToolRequest{}, "a")
	assert.False(t, ok, "nil arguments")
}

func TestIntArg(t *testing.T) {
	req := toolReq(map[string]any{"f": 42.0, "i": 7, "s": "x"})
	assert.Equal(t, 42, intArg(req, "f", 0))
	assert.Equal(t, 7, intArg(req, "i", 0))
	assert.Equal(t, 9, intArg(req, "s", 9), "non-number falls back to default")
	assert.Equal(t, 9, intArg(req, "missing", 9))
}

func TestBoolArg(t *testing.T) {
	req := toolReq(map[string]any{"b": true, "s": "x"})
	assert.True(t, boolArg(req, "b", false))
	assert.False(t, boolArg(req, "s", false))
	assert.True(t, boolArg(req, "missing", true))
}

func TestSliceArg(t *testing.T) {
	req := toolReq(map[string]any{"a": []any{1.0, "x"}, "s": "x"})

	got, ok := sliceArg(req, "a")
	assert.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = sliceArg(req, "s")
	assert.False(t, ok)

	_, ok = sliceArg(req, "missing")
	assert.False(t, ok)
}
