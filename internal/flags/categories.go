// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package flags

import "github.com/urfave/cli/v2"

// 标志按类别分组显示在帮助信息中。
const (
	// CliqueCategory 是与 Clique 共识引擎相关的标志的类别。
	CliqueCategory = "CLIQUE CONSENSUS"
	// GenesisCategory 是与创世区块相关的标志的类别。
	GenesisCategory = "GENESIS"
	// DatabaseCategory 是与链数据库相关的标志的类别。
	DatabaseCategory = "DATABASE"
	// APICategory 是与 RPC API 相关的标志的类别。
	APICategory = "API"
	// LoggingCategory 是与日志相关的标志的类别。
	LoggingCategory = "LOGGING"
	// ProfilingCategory 是与 pprof 和执行跟踪相关的标志的类别。
	ProfilingCategory = "PROFILING"
	// MetricsCategory 是与 Metrics and Stats 相关的标志的类别。
	MetricsCategory = "METRICS AND STATS"
	// MiscCategory 是与 Miscellaneous 相关的标志的类别。
	MiscCategory = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
