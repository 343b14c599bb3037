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

// Package ver contains the version command.
package ver

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dbwatch/dbagent/cmd/dbagent/internal/cfg"
	"github.com/dbwatch/dbagent/cmd/dbagent/internal/golang/base"
)

// CmdVersion is the "dbagent version" command.
var CmdVersion = &base.Command{
	UsageLine: "dbagent version",
	Short:     "print the version",
	Long:      `Version prints the dbagent version.`,
	FlagMask:  cfg.OmitAll,
	Run:       runVersion,
}

func runVersion(ctx context.Context, cmd *base.Command, args []string) error {
	fmt.Println("dbagent", Version())
	return nil
}

// Version returns the module version baked into the binary, or "(devel)"
// for source builds.
func Version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(unknown)"
	}
	return bi.Main.Version
}
