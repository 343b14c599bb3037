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

// Package clientcfg contains the CLI command that emits MCP client
// configuration snippets.
package clientcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
	"github.com/dbwatch/dbagent/internal/mcp"
)

// CmdConfig is the "dbagent config" command.
var CmdConfig = &base.Command{
	UsageLine: "dbagent config [flags]",
	Short:     "print an MCP client configuration snippet",
	Long: `
Config prints a ready-to-paste MCP client configuration ("mcpServers"
object) for both dbagent servers.

For the stdio transport the snippet references this executable; for http
and sse it references the endpoint URLs on the given listen addresses.
`,
	FlagMask:   cfg.OmitAll,
	PrintFlags: true,
	Run:        runConfig,
}

var flags struct {
	transport string
	listen    string
	chunker   string
}

func init() {
	CmdConfig.Flag.StringVar(&flags.transport, "transport", "stdio", "MCP transport the snippet is for: \"stdio\", \"http\" or \"sse\"")
	CmdConfig.Flag.StringVar(&flags.listen, "listen", "127.0.0.1:9002", "database server listen address used in http and sse snippets")
	CmdConfig.Flag.StringVar(&flags.chunker, "chunker-listen", "127.0.0.1:9003", "chunker server listen address used in http and sse snippets")
}

// serverEntry is one "mcpServers" entry.
type serverEntry struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	URL     string   `json:"url,omitempty"`
}

func runConfig(ctx context.Context, cmd *base.Command, args []string) error {
	transport, err := mcp.ParseTransport(flags.transport)
	if err != nil {
		base.SetExitStatus(base.SInvalidParameters)
		return fmt.Errorf("config: %w", err)
	}

	servers, err := clientConfig(transport)
	if err != nil {
		base.SetExitStatus(base.SApplicationError)
		return fmt.Errorf("config: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"mcpServers": servers})
}

func clientConfig(transport mcp.Transport) (map[string]serverEntry, error) {
	switch transport {
	case mcp.TransportStdio:
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		return map[string]serverEntry{
			"dbagent":         {Command: exe, Args: []string{"serve"}},
			"dbagent-chunker": {Command: exe, Args: []string{"chunker"}},
		}, nil
	case mcp.TransportHTTP:
		return map[string]serverEntry{
			"dbagent":         {URL: fmt.Sprintf("http://%s/mcp", flags.listen)},
			"dbagent-chunker": {URL: fmt.Sprintf("http://%s/mcp", flags.chunker)},
		}, nil
	case mcp.TransportSSE:
		return map[string]serverEntry{
			"dbagent":         {URL: fmt.Sprintf("http://%s/sse", flags.listen)},
			"dbagent-chunker": {URL: fmt.Sprintf("http://%s/sse", flags.chunker)},
		}, nil
	}
	return nil, fmt.Errorf("unhandled transport %q", transport)
}
