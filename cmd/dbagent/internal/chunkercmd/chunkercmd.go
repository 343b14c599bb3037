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

// Package chunkercmd contains the CLI command for starting the text
// chunking MCP server.
package chunkercmd

import (
	"context"
	"fmt"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
	"github.com/dbwatch/dbagent/internal/mcp"
)

// CmdChunker is the "dbagent chunker" command.
var CmdChunker = &base.Command{
	UsageLine: "dbagent chunker [flags]",
	Short:     "start the text chunking MCP server",
	Long: `
Chunker starts the text chunking MCP server.

The server exposes text splitting tools for retrieval-augmented generation
pipelines: chunk_text, chunk_stats, count_tokens and list_strategies.
Default chunk size, overlap and strategy can be set in the configuration
file (see the -config flag) and overridden per tool call.
`,
	FlagMask:   cfg.DefaultFlags,
	PrintFlags: true,
	Run:        runChunker,
}

var flags struct {
	transport string
	listen    string
}

func init() {
	CmdChunker.Flag.StringVar(&flags.transport, "transport", "stdio", "MCP transport: \"stdio\", \"http\" or \"sse\"")
	CmdChunker.Flag.StringVar(&flags.listen, "listen", "127.0.0.1:9003", "address to listen on when -transport is http or sse")
}

func runChunker(ctx context.Context, cmd *base.Command, args []string) error {
	lg := cfg.Log

	transport, err := mcp.ParseTransport(flags.transport)
	if err != nil {
		base.SetExitStatus(base.SInvalidParameters)
		return fmt.Errorf("chunker: %w", err)
	}

	file, err := cfg.Load()
	if err != nil {
		base.SetExitStatus(base.SInvalidParameters)
		return err
	}

	srv := mcp.NewChunker(file.Chunker, mcp.WithLogger(lg))

	switch transport {
	case mcp.TransportStdio:
		return srv.ServeStdio(ctx)
	case mcp.TransportHTTP:
		return srv.ServeHTTP(ctx, flags.listen)
	case mcp.TransportSSE:
		return srv.ServeSSE(ctx, flags.listen)
	}
	panic("unhandled transport: " + string(transport))
}
