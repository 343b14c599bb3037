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

package cfg

// In this file: the TOML configuration file.

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/dbwatch/dbagent/internal/agent"
	"github.com/dbwatch/dbagent/internal/chunker"
)

// File is the dbagent configuration file.
//
// Example:
//
//	[monitor]
//	slow_query_ms = 200.0
//	max_size_mb = 500.0
//	usage_critical_pct = 90.0
//
//	[chunker]
//	chunk_size = 512
//	overlap = 64
//	strategy = "recursive"
type File struct {
	Monitor agent.Thresholds `toml:"monitor"`
	Chunker chunker.Defaults `toml:"chunker"`
}

// DefFile returns the configuration defaults.
func DefFile() File {
	return File{
		Monitor: agent.DefThresholds,
		Chunker: chunker.Defaults{
			ChunkSize: chunker.DefChunkSize,
			Overlap:   chunker.DefOverlap,
			Strategy:  string(chunker.Recursive),
		},
	}
}

// LoadFile reads the configuration from path on top of the defaults.  An
// empty path returns the defaults.
func LoadFile(path string) (File, error) {
	f := DefFile()
	if path == "" {
		return f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := f.Monitor.Validate(); err != nil {
		return File{}, fmt.Errorf("config %q: monitor: %w", path, err)
	}
	if _, err := chunker.New(f.Chunker.Options()...); err != nil {
		return File{}, fmt.Errorf("config %q: chunker: %w", path, err)
	}
	return f, nil
}

// Load reads the configuration from the file given with the -config flag,
// or the defaults when the flag is unset.
func Load() (File, error) {
	return LoadFile(ConfigFile)
}
