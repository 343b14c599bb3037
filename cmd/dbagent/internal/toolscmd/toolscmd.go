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

// Package toolscmd contains the CLI command that lists the MCP tools.
package toolscmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
	"github.com/dbwatch/dbagent/internal/agent"
	"github.com/dbwatch/dbagent/internal/chunker"
	"github.com/dbwatch/dbagent/internal/mcp"
)

// CmdTools is the "dbagent tools" command.
var CmdTools = &base.Command{
	UsageLine: "dbagent tools",
	Short:     "list the MCP tools of both servers",
	Long: `
Tools lists the MCP tools exposed by the database operations server and the
text chunking server, one per line, prefixed with the server name.
`,
	FlagMask: cfg.OmitAll,
	Run:      runTools,
}

func runTools(ctx context.Context, cmd *base.Command, args []string) error {
	ag := agent.New()
	defer ag.Close()

	servers := []*mcp.Server{
		mcp.NewDBAgent(ag),
		mcp.NewChunker(chunker.Defaults{}),
	}
	for _, srv := range servers {
		for _, name := range srv.ToolNames() {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", srv.Name(), name)
		}
	}
	return nil
}
