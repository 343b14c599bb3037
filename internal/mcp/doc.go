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

// Package mcp implements the Model Context Protocol (MCP) servers of
// dbagent.  Two servers are provided: the database operations server, which
// exposes connection management, query execution, data insertion, schema
// inspection and health monitoring tools backed by an agent.Agent; and the
// text chunking server, which exposes text splitting tools for
// retrieval-augmented generation pipelines.
//
// Transport: each server supports three transports selectable at runtime:
//   - stdio – standard MCP stdio transport (default); suitable for local
//     agent integration (e.g. Claude Desktop, VS Code Copilot).
//   - http  – Streamable HTTP transport; suitable for remote agents or when
//     multiple concurrent clients are needed.
//   - sse   – legacy HTTP+SSE transport for clients that have not migrated
//     to Streamable HTTP yet.
//
// The HTTP transports additionally serve a service description on "/" and a
// human-readable tool reference on "/docs".
package mcp
