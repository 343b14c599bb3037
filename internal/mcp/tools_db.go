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

// In this file: database tool definitions and handler implementations.

import (
	"context"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/dbwatch/dbagent/internal/agent"
)

// dbTools returns all tools the database operations server exposes.
func (s *Server) dbTools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		s.toolConnectDatabase(),
		s.toolDisconnectDatabase(),
		s.toolListConnections(),
		s.toolListSavedConnections(),
		s.toolExecuteQuery(),
		s.toolInsertData(),
		s.toolListTables(),
		s.toolDescribeTable(),
		s.toolCheckQueryResponseTime(),
		s.toolCheckDeadlock(),
		s.toolCheckFileSize(),
		s.toolCheckAbnormalData(),
		s.toolCheckBatchData(),
		s.toolCheckHistory(),
	}
}

// checkFailure renders a failed monitoring check in the result format the
// check tools use: a JSON object with success=false and the error message.
func checkFailure(err error) *mcplib.CallToolResult {
	res, jerr := resultJSON(map[string]any{"success": false, "error": err.Error()})
	if jerr != nil {
		return resultErr(err)
	}
	res.IsError = true
	return res
}

// ─── connect_database ─────────────────────────────────────────────────────────

func (s *Server) toolConnectDatabase() mcpsrv.ServerTool {
	tool := mcplib.NewTool("connect_database",
		mcplib.WithDescription(`Open a database connection and register it under an ID.

The connection is pinged before it is registered, so a successful call means
the database is reachable.  The returned connection_id is used by all other
database tools.  Engines other than sqlite are available only when their
drivers are built into the server binary.`),
		mcplib.WithString("engine",
			mcplib.Description("Database engine: sqlite, postgres or mysql."),
			mcplib.Required(),
		),
		mcplib.WithString("dsn",
			mcplib.Description(`Engine-specific connection string.  For sqlite, a file path or ":memory:".`),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Identifier to register the connection under.  Generated when omitted."),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleConnectDatabase}
}

func (s *Server) handleConnectDatabase(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	engine, ok := stringArg(req, "engine")
	if !ok || engine == "" {
		return resultErr(errors.New("connect_database: engine is required")), nil
	}
	dsn, ok := stringArg(req, "dsn")
	if !ok || dsn == "" {
		return resultErr(errors.New("connect_database: dsn is required")), nil
	}
	id, _ := stringArg(req, "connection_id")

	info, err := s.ag.Connect(ctx, agent.ConnectParams{ID: id, Engine: agent.Engine(engine), DSN: dsn})
	if err != nil {
		return resultErr(fmt.Errorf("connect_database: %w", err)), nil
	}

	result, err := resultJSON(info)
	if err != nil {
		return resultErr(fmt.Errorf("connect_database: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── disconnect_database ──────────────────────────────────────────────────────

func (s *Server) toolDisconnectDatabase() mcpsrv.ServerTool {
	tool := mcplib.NewTool("disconnect_database",
		mcplib.WithDescription("Close a database connection and remove it from the registry."),
		mcplib.WithString("connection_id",
			mcplib.Description("The connection to close."),
			mcplib.Required(),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleDisconnectDatabase}
}

func (s *Server) handleDisconnectDatabase(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, ok := stringArg(req, "connection_id")
	if !ok || id == "" {
		return resultErr(errors.New("disconnect_database: connection_id is required")), nil
	}
	if err := s.ag.Disconnect(id); err != nil {
		return resultErr(fmt.Errorf("disconnect_database: %w", err)), nil
	}
	return resultText(fmt.Sprintf("Connection %q closed.", id)), nil
}

// ─── list_connections ─────────────────────────────────────────────────────────

func (s *Server) toolListConnections() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_connections",
		mcplib.WithDescription("List the currently open database connections with their engines and DSNs."),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListConnections}
}

func (s *Server) handleListConnections(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	result, err := resultJSON(s.ag.List())
	if err != nil {
		return resultErr(fmt.Errorf("list_connections: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── list_saved_connections ───────────────────────────────────────────────────

func (s *Server) toolListSavedConnections() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_saved_connections",
		mcplib.WithDescription("List the connection profiles saved in the catalog, most recently used first.  Profiles are recorded automatically on every successful connect."),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListSavedConnections}
}

func (s *Server) handleListSavedConnections(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	profiles, err := s.ag.SavedConnections(ctx)
	if err != nil {
		if errors.Is(err, agent.ErrNoCatalog) {
			return resultText("No catalog database is configured; saved connections are unavailable."), nil
		}
		return resultErr(fmt.Errorf("list_saved_connections: %w", err)), nil
	}
	result, err := resultJSON(profiles)
	if err != nil {
		return resultErr(fmt.Errorf("list_saved_connections: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── execute_query ────────────────────────────────────────────────────────────

func (s *Server) toolExecuteQuery() mcpsrv.ServerTool {
	tool := mcplib.NewTool("execute_query",
		mcplib.WithDescription(`Execute an SQL statement on an open connection.

Bind parameters use "?" placeholders regardless of the engine.  fetch_mode
selects the result shape: "all" (default) returns every row capped at 1000,
"one" returns the first row only, "none" discards the result set and
reports rows affected (use for DDL and INSERT/UPDATE/DELETE).`),
		mcplib.WithString("connection_id",
			mcplib.Description("The connection to run the statement on."),
			mcplib.Required(),
		),
		mcplib.WithString("query",
			mcplib.Description("The SQL statement, with \"?\" bind placeholders."),
			mcplib.Required(),
		),
		mcplib.WithArray("params",
			mcplib.Description("Positional bind parameter values for the \"?\" placeholders."),
		),
		mcplib.WithString("fetch_mode",
			mcplib.Description(`Result fetch mode: "all", "one" or "none" (default "all").`),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleExecuteQuery}
}

func (s *Server) handleExecuteQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, ok := stringArg(req, "connection_id")
	if !ok || id == "" {
		return resultErr(errors.New("execute_query: connection_id is required")), nil
	}
	query, ok := stringArg(req, "query")
	if !ok || query == "" {
		return resultErr(errors.New("execute_query: query is required")), nil
	}
	params, _ := sliceArg(req, "params")
	mode, _ := stringArg(req, "fetch_mode")

	res, err := s.ag.Query(ctx, agent.QueryParams{
		ConnectionID: id,
		Query:        query,
		Params:       params,
		FetchMode:    agent.FetchMode(mode),
	})
	if err != nil {
		return resultErr(fmt.Errorf("execute_query: %w", err)), nil
	}

	result, err := resultJSON(res)
	if err != nil {
		return resultErr(fmt.Errorf("execute_query: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── insert_data ──────────────────────────────────────────────────────────────

func (s *Server) toolInsertData() mcpsrv.ServerTool {
	tool := mcplib.NewTool("insert_data",
		mcplib.WithDescription(`Insert one or more rows into a table in a single transaction.

Each row is an object mapping column names to values; all rows must use the
same column set.  The whole batch is rolled back if any row fails.`),
		mcplib.WithString("connection_id",
			mcplib.Description("The connection to insert on."),
			mcplib.Required(),
		),
		mcplib.WithString("table",
			mcplib.Description("The target table name."),
			mcplib.Required(),
		),
		mcplib.WithArray("rows",
			mcplib.Description("Rows to insert: an array of column-to-value objects."),
			mcplib.Required(),
		),
		mcplib.WithBoolean("return_ids",
			mcplib.Description("Return the auto-generated row IDs of the inserted rows."),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleInsertData}
}

func (s *Server) handleInsertData(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, ok := stringArg(req, "connection_id")
	if !ok || id == "" {
		return resultErr(errors.New("insert_data: connection_id is required")), nil
	}
	table, ok := stringArg(req, "table")
	if !ok || table == "" {
		return resultErr(errors.New("insert_data: table is required")), nil
	}
	raw, ok := sliceArg(req, "rows")
	if !ok || len(raw) == 0 {
		return resultErr(errors.New("insert_data: rows is required and must not be empty")), nil
	}
	rows := make([]map[string]any, 0, len(raw))
	for i, v := range raw {
		row, ok := v.(map[string]any)
		if !ok {
			return resultErr(fmt.Errorf("insert_data: row %d is not an object", i)), nil
		}
		rows = append(rows, row)
	}

	res, err := s.ag.Insert(ctx, agent.InsertParams{
		ConnectionID: id,
		Table:        table,
		Rows:         rows,
		ReturnIDs:    boolArg(req, "return_ids", false),
	})
	if err != nil {
		return resultErr(fmt.Errorf("insert_data: %w", err)), nil
	}

	result, err := resultJSON(res)
	if err != nil {
		return resultErr(fmt.Errorf("insert_data: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── list_tables ──────────────────────────────────────────────────────────────

func (s *Server) toolListTables() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_tables",
		mcplib.WithDescription("List the user tables of an open connection, sorted by name."),
		mcplib.WithString("connection_id",
			mcplib.Description("The connection to inspect."),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListTables}
}

func (s *Server) handleListTables(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, ok := stringArg(req, "connection_id")
	if !ok || id == "" {
		return resultErr(errors.New("list_tables: connection_id is required")), nil
	}
	tables, err := s.ag.Tables(ctx, id)
	if err != nil {
		if errors.Is(err, agent.ErrNotSupported) {
			return resultText("Listing tables is not supported for this engine."), nil
		}
		return resultErr(fmt.Errorf("list_tables: %w", err)), nil
	}
	result, err := resultJSON(tables)
	if err != nil {
		return resultErr(fmt.Errorf("list_tables: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── describe_table ───────────────────────────────────────────────────────────

func (s *Server) toolDescribeTable() mcpsrv.ServerTool {
	tool := mcplib.NewTool("describe_table",
		mcplib.WithDescription("Describe the columns of a table: name, type, nullability, default value and primary key membership."),
		mcplib.WithString("connection_id",
			mcplib.Description("The connection to inspect."),
			mcplib.Required(),
		),
		mcplib.WithString("table",
			mcplib.Description("The table to describe."),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleDescribeTable}
}

func (s *Server) handleDescribeTable(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, ok := stringArg(req, "connection_id")
	if !ok || id == "" {
		return resultErr(errors.New("describe_table: connection_id is required")), nil
	}
	table, ok := stringArg(req, "table")
	if !ok || table == "" {
		return resultErr(errors.New("describe_table: table is required")), nil
	}
	cols, err := s.ag.DescribeTable(ctx, id, table)
	if err != nil {
		if errors.Is(err, agent.ErrNoSuchTable) {
			return resultText(fmt.Sprintf("Table %q does not exist.", table)), nil
		}
		return resultErr(fmt.Errorf("describe_table: %w", err)), nil
	}
	result, err := resultJSON(cols)
	if err != nil {
		return resultErr(fmt.Errorf("describe_table: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── check_query_response_time ────────────────────────────────────────────────

func (s *Server) toolCheckQueryResponseTime() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_query_response_time",
		mcplib.WithDescription(`Measure the response time of a query and flag it as slow when it meets the slow-query threshold.

With connection_id the query is actually executed; without it a sample
value is synthesised.  The result is recorded in the check history.`),
		mcplib.WithString("query",
			mcplib.Description("The SQL query to measure."),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Optional connection to run the query on."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckQueryResponseTime}
}

func (s *Server) handleCheckQueryResponseTime(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, res := s.checkParams(req, "check_query_response_time")
	if res != nil {
		return res, nil
	}
	r, err := s.ag.CheckResponseTime(ctx, p)
	if err != nil {
		return checkFailure(err), nil
	}
	return s.checkResult("check_query_response_time", r)
}

// ─── check_deadlock ───────────────────────────────────────────────────────────

func (s *Server) toolCheckDeadlock() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_deadlock",
		mcplib.WithDescription(`Probe for lock contention.

With connection_id the query is executed and busy/locked errors count as
contention; without it the result is synthesised.  The result is recorded
in the check history.`),
		mcplib.WithString("query",
			mcplib.Description("The SQL query to probe with."),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Optional connection to probe."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckDeadlock}
}

func (s *Server) handleCheckDeadlock(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, res := s.checkParams(req, "check_deadlock")
	if res != nil {
		return res, nil
	}
	r, err := s.ag.CheckDeadlock(ctx, p)
	if err != nil {
		return checkFailure(err), nil
	}
	return s.checkResult("check_deadlock", r)
}

// ─── check_file_size ──────────────────────────────────────────────────────────

func (s *Server) toolCheckFileSize() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_file_size",
		mcplib.WithDescription(`Report the database size and its usage against the configured size budget.

Reports CRITICAL when usage reaches the critical-usage threshold.  With
connection_id the actual database size is measured; without it a sample
value is synthesised.  The result is recorded in the check history.`),
		mcplib.WithString("query",
			mcplib.Description("The query or label to record the check under."),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Optional connection to measure."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckFileSize}
}

func (s *Server) handleCheckFileSize(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, res := s.checkParams(req, "check_file_size")
	if res != nil {
		return res, nil
	}
	r, err := s.ag.CheckFileSize(ctx, p)
	if err != nil {
		return checkFailure(err), nil
	}
	return s.checkResult("check_file_size", r)
}

// ─── check_abnormal_data ──────────────────────────────────────────────────────

func (s *Server) toolCheckAbnormalData() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_abnormal_data",
		mcplib.WithDescription(`Scan query results for abnormal rows.

With connection_id the query is executed and rows containing NULL values
count as abnormal; without it row and abnormal counts are synthesised.  The
result is recorded in the check history.`),
		mcplib.WithString("query",
			mcplib.Description("The SQL query whose results to scan."),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Optional connection to run the query on."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckAbnormalData}
}

func (s *Server) handleCheckAbnormalData(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, res := s.checkParams(req, "check_abnormal_data")
	if res != nil {
		return res, nil
	}
	r, err := s.ag.CheckAbnormalData(ctx, p)
	if err != nil {
		return checkFailure(err), nil
	}
	return s.checkResult("check_abnormal_data", r)
}

// ─── check_batch_data ─────────────────────────────────────────────────────────

func (s *Server) toolCheckBatchData() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_batch_data",
		mcplib.WithDescription("Scan a batch query's results for abnormal rows.  Same as check_abnormal_data but with batch-sized synthesised ranges when no connection is given."),
		mcplib.WithString("query",
			mcplib.Description("The batch SQL query whose results to scan."),
			mcplib.Required(),
		),
		mcplib.WithString("connection_id",
			mcplib.Description("Optional connection to run the query on."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckBatchData}
}

func (s *Server) handleCheckBatchData(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, res := s.checkParams(req, "check_batch_data")
	if res != nil {
		return res, nil
	}
	r, err := s.ag.CheckBatchData(ctx, p)
	if err != nil {
		return checkFailure(err), nil
	}
	return s.checkResult("check_batch_data", r)
}

// checkParams extracts the parameters common to all monitoring checks.  On
// bad input it returns a non-nil result describing the problem.
func (s *Server) checkParams(req mcplib.CallToolRequest, name string) (agent.CheckParams, *mcplib.CallToolResult) {
	query, ok := stringArg(req, "query")
	if !ok || query == "" {
		return agent.CheckParams{}, checkFailure(fmt.Errorf("%s: query is required", name))
	}
	id, _ := stringArg(req, "connection_id")
	return agent.CheckParams{Query: query, ConnectionID: id}, nil
}

// checkResult serialises a successful check result.
func (s *Server) checkResult(name string, v any) (*mcplib.CallToolResult, error) {
	result, err := resultJSON(v)
	if err != nil {
		return resultErr(fmt.Errorf("%s: serialise: %w", name, err)), nil
	}
	return result, nil
}

// ─── check_history ────────────────────────────────────────────────────────────

func (s *Server) toolCheckHistory() mcpsrv.ServerTool {
	tool := mcplib.NewTool("check_history",
		mcplib.WithDescription("Browse the recorded monitoring check history, newest first, optionally filtered by check name."),
		mcplib.WithString("check",
			mcplib.Description("Filter by check name (e.g. check_deadlock).  All checks when omitted."),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of results to return (default 50)."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCheckHistory}
}

func (s *Server) handleCheckHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name, _ := stringArg(req, "check")
	limit := intArg(req, "limit", 0)

	history, err := s.ag.CheckHistory(ctx, name, limit)
	if err != nil {
		if errors.Is(err, agent.ErrNoCatalog) {
			return resultText("No catalog database is configured; check history is unavailable."), nil
		}
		return resultErr(fmt.Errorf("check_history: %w", err)), nil
	}
	result, err := resultJSON(history)
	if err != nil {
		return resultErr(fmt.Errorf("check_history: serialise: %w", err)), nil
	}
	return result, nil
}
