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

// Package cfg contains common configuration variables.
package cfg

import (
	"flag"
	"log/slog"
	"os"

	"github.com/rusq/osenv/v2"
)

var (
	TraceFile string
	LogFile   string
	JSONLog   bool
	Verbose   bool

	ConfigFile string

	// Log is the main logger, replaced by main during initialisation.
	Log = slog.Default()
)

// Level is the log level shared by all handlers that main installs.
var Level = new(slog.LevelVar)

// SetDebugLevel switches the shared log level to debug.
func SetDebugLevel() {
	Level.Set(slog.LevelDebug)
}

// FlagMask selects the base flags that a command does not use.
type FlagMask int

const (
	DefaultFlags   FlagMask = 0
	OmitConfigFlag FlagMask = 1 << iota

	OmitAll = OmitConfigFlag
)

// SetBaseFlags sets the base flags on the flagset.
func SetBaseFlags(fs *flag.FlagSet, mask FlagMask) {
	fs.StringVar(&TraceFile, "trace", os.Getenv("TRACE_FILE"), "trace `filename`")
	fs.StringVar(&LogFile, "log", os.Getenv("LOG_FILE"), "log `file`, if not specified, messages are printed to STDERR")
	fs.BoolVar(&JSONLog, "log-json", osenv.Value("JSON_LOG", false), "log in JSON format")
	fs.BoolVar(&Verbose, "v", osenv.Value("DEBUG", false), "verbose messages")

	if mask&OmitConfigFlag == 0 {
		fs.StringVar(&ConfigFile, "config", osenv.Value("DBAGENT_CONFIG", ""), "configuration `file` with monitoring thresholds and chunker defaults\n(environment: DBAGENT_CONFIG)")
	}
}
