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

// Command dbagent is a set of MCP servers for database operations,
// monitoring and text chunking.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/chunkercmd"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/clientcfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/help"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/serve"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/toolscmd"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/ver"
)

func init() {
	base.DBAgent.Commands = []*base.Command{
		serve.CmdServe,
		chunkercmd.CmdChunker,
		clientcfg.CmdConfig,
		toolscmd.CmdTools,
		ver.CmdVersion,
	}
}

// secrets defines the names of the supported secret files that we load our
// environment variables from.  Inexperienced windows users might have bad
// experience trying to create .env file with the notepad as it will battle
// for having the "txt" extension.  Let it have it.
var secrets = []string{".env", ".env.txt", "secrets.txt"}

func main() {
	loadSecrets(secrets)

	flag.Usage = mainUsage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		mainUsage()
		base.SetExitStatus(base.SInvalidParameters)
		base.Exit()
	}

	base.CmdName = args[0]
	if base.CmdName == "help" {
		help.Help(os.Stdout, args[1:])
		base.Exit()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, cmd := range base.DBAgent.Commands {
		if cmd.Name() != base.CmdName || !cmd.Runnable() {
			continue
		}
		if err := invoke(ctx, cmd, args); err != nil {
			if base.ExitStatus() == base.SNoError {
				base.SetExitStatus(base.SApplicationError)
			}
			slog.Error("command failed", "command", base.CmdName, "error", err)
		}
		base.Exit()
	}

	fmt.Fprintf(os.Stderr, "dbagent %s: unknown command\nRun 'dbagent help' for usage.\n", base.CmdName)
	base.SetExitStatus(base.SInvalidParameters)
	base.Exit()
}

func mainUsage() {
	help.PrintUsage(os.Stderr, base.DBAgent)
}

// invoke parses the command flags, initialises logging and tracing, and
// runs the command.
func invoke(ctx context.Context, cmd *base.Command, args []string) error {
	if cmd.CustomFlags {
		args = args[1:]
	} else {
		cfg.SetBaseFlags(&cmd.Flag, cmd.FlagMask)
		cmd.Flag.Usage = cmd.Usage
		if err := cmd.Flag.Parse(args[1:]); err != nil {
			return err
		}
		args = cmd.Flag.Args()
	}

	lg, err := initLog(cfg.LogFile, cfg.JSONLog, cfg.Verbose)
	if err != nil {
		base.SetExitStatus(base.SInitializationError)
		return err
	}
	cfg.Log = lg
	stop := initTrace(cfg.TraceFile)
	defer stop()

	return cmd.Run(ctx, cmd, args)
}

// loadSecrets loads environment variables from the files in the secrets
// slice.
func loadSecrets(files []string) {
	for _, f := range files {
		godotenv.Load(f)
	}
}
