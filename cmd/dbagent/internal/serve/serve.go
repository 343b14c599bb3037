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

// Package serve contains the CLI command for starting the database
// operations MCP server.
package serve

import (
	"context"
	"fmt"

	"github.com/rusq/osenv/v2"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
	"github.com/dbwatch/dbagent/internal/agent"
	"github.com/dbwatch/dbagent/internal/agent/repository"
	"github.com/dbwatch/dbagent/internal/mcp"
)

// CmdServe is the "dbagent serve" command.
var CmdServe = &base.Command{
	UsageLine: "dbagent serve [flags]",
	Short:     "start the database operations MCP server",
	Long: `
Serve starts the database operations MCP server.

The server exposes connection management, query execution, data insertion,
schema inspection and health monitoring tools over the selected MCP
transport.  Connection profiles and monitoring check history are recorded in
the catalog database unless -catalog is set to an empty string.

Monitoring thresholds can be overridden with a configuration file (see the
-config flag).
`,
	FlagMask:   cfg.DefaultFlags,
	PrintFlags: true,
	Run:        runServe,
}

var flags struct {
	transport string
	listen    string
	catalog   string
	qps       float64
}

func init() {
	CmdServe.Flag.StringVar(&flags.transport, "transport", "stdio", "MCP transport: \"stdio\", \"http\" or \"sse\"")
	CmdServe.Flag.StringVar(&flags.listen, "listen", "127.0.0.1:9002", "address to listen on when -transport is http or sse")
	CmdServe.Flag.StringVar(&flags.catalog, "catalog", osenv.Value("DBAGENT_CATALOG", "dbagent.sqlite"), "catalog `database` for connection profiles and check history,\nset to \"\" to disable (environment: DBAGENT_CATALOG)")
	CmdServe.Flag.Float64Var(&flags.qps, "qps", 0, "limit query execution to `n` queries per second (0 means no limit)")
}

func runServe(ctx context.Context, cmd *base.Command, args []string) error {
	lg := cfg.Log

	transport, err := mcp.ParseTransport(flags.transport)
	if err != nil {
		base.SetExitStatus(base.SInvalidParameters)
		return fmt.Errorf("serve: %w", err)
	}

	file, err := cfg.Load()
	if err != nil {
		base.SetExitStatus(base.SInvalidParameters)
		return err
	}

	opts := []agent.Option{
		agent.WithLogger(lg),
		agent.WithThresholds(file.Monitor),
		agent.WithQPS(flags.qps),
	}
	if flags.catalog != "" {
		cat, err := repository.Open(ctx, flags.catalog)
		if err != nil {
			base.SetExitStatus(base.SInitializationError)
			return fmt.Errorf("serve: %w", err)
		}
		defer cat.Close()
		lg.InfoContext(ctx, "catalog database open", "path", flags.catalog)
		opts = append(opts, agent.WithCatalog(cat))
	}

	ag := agent.New(opts...)
	defer ag.Close()

	srv := mcp.NewDBAgent(ag, mcp.WithLogger(lg))

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
