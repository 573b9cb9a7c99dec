// Copyright 2014 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for the clique commands.
package utils

import (
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sunyihoo/poa/internal/flags"
	"github.com/sunyihoo/poa/params"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	DataDirFlag = &flags.DirectoryFlag{
		Name:     "datadir",
		Usage:    "Data directory for the header chain and the snapshot store",
		Value:    flags.DirectoryString(DefaultDataDir()),
		Category: flags.DatabaseCategory,
	}
	DBEngineFlag = &cli.StringFlag{
		Name:     "db.engine",
		Usage:    "Backing database implementation to use ('pebble', 'leveldb' or 'memory')",
		Value:    "", // pebble for fresh directories, whatever exists otherwise
		Category: flags.DatabaseCategory,
	}
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to the database cache",
		Value:    128,
		Category: flags.DatabaseCategory,
	}
	HandlesFlag = &cli.IntFlag{
		Name:     "db.handles",
		Usage:    "Number of open file handles the database may use",
		Value:    256,
		Category: flags.DatabaseCategory,
	}

	// Consensus settings
	// 共识相关设置
	PeriodFlag = &cli.Uint64Flag{
		Name:     "clique.period",
		Usage:    "Minimum number of seconds between two blocks",
		Value:    params.DefaultCliqueConfig.Period,
		Category: flags.CliqueCategory,
	}
	EpochFlag = &cli.Uint64Flag{
		Name:     "clique.epoch",
		Usage:    "Number of blocks after which votes are reset and a checkpoint is written",
		Value:    params.DefaultCliqueConfig.Epoch,
		Category: flags.CliqueCategory,
	}
	SignerKeyFlag = &cli.StringFlag{
		Name:     "signer.key",
		Usage:    "File holding the hex encoded private key used to seal headers",
		Category: flags.CliqueCategory,
	}
	ProposeFlag = &cli.StringSliceFlag{
		Name:     "propose",
		Usage:    "Votes to cast while sealing, as <address>=<true|false> (true adds, false removes)",
		Category: flags.CliqueCategory,
	}

	// Genesis settings
	GenesisSignersFlag = &cli.StringSliceFlag{
		Name:     "genesis.signers",
		Usage:    "Comma separated list of the initial signer addresses",
		Category: flags.GenesisCategory,
	}
	GenesisTimeFlag = &cli.Uint64Flag{
		Name:     "genesis.timestamp",
		Usage:    "Timestamp of the genesis header (defaults to the current time)",
		Category: flags.GenesisCategory,
	}
	GenesisGasLimitFlag = &cli.Uint64Flag{
		Name:     "genesis.gaslimit",
		Usage:    "Gas limit of the genesis header",
		Value:    params.GenesisGasLimit,
		Category: flags.GenesisCategory,
	}
	GenesisBaseFeeFlag = &flags.BigFlag{
		Name:     "genesis.basefee",
		Usage:    "Base fee of the genesis header",
		Value:    big.NewInt(params.InitialBaseFee),
		Category: flags.GenesisCategory,
	}

	// RPC settings
	HTTPListenAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "HTTP-RPC server listening interface",
		Value:    "localhost",
		Category: flags.APICategory,
	}
	HTTPPortFlag = &cli.IntFlag{
		Name:     "http.port",
		Usage:    "HTTP-RPC server listening port",
		Value:    8545,
		Category: flags.APICategory,
	}
	HTTPDebugFlag = &cli.BoolFlag{
		Name:     "http.debug",
		Usage:    "Expose the runtime debugging API under the 'debug' namespace",
		Category: flags.APICategory,
	}
	HTTPCORSDomainFlag = &cli.StringFlag{
		Name:     "http.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Category: flags.APICategory,
	}
	WSEnabledFlag = &cli.BoolFlag{
		Name:     "ws",
		Usage:    "Accept WebSocket-RPC connections on the HTTP-RPC endpoint",
		Category: flags.APICategory,
	}
	WSAllowedOriginsFlag = &cli.StringFlag{
		Name:     "ws.origins",
		Usage:    "Origins from which to accept WebSocket requests",
		Category: flags.APICategory,
	}

	// Metrics flags
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	// MetricsHTTPFlag defines the endpoint for a stand-alone metrics HTTP endpoint.
	// Since the pprof service enables sensitive/vulnerable behavior, this allows a user
	// to enable a public-OK metrics endpoint without having to worry about ALSO exposing
	// other profiling behavior or information.
	MetricsHTTPFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening interface",
		Category: flags.MetricsCategory,
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:     "metrics.port",
		Usage:    "Metrics HTTP server listening port",
		Value:    6061,
		Category: flags.MetricsCategory,
	}
)

var (
	// DatabaseFlags is the flag group of all database flags.
	DatabaseFlags = []cli.Flag{
		DataDirFlag,
		DBEngineFlag,
		CacheFlag,
		HandlesFlag,
	}
	// CliqueFlags configure the consensus engine.
	CliqueFlags = []cli.Flag{
		PeriodFlag,
		EpochFlag,
	}
	// MetricsFlags is the flag group of all metrics flags.
	MetricsFlags = []cli.Flag{
		MetricsEnabledFlag,
		MetricsHTTPFlag,
		MetricsPortFlag,
	}
)

// DefaultDataDir is the default data directory to use for the databases and other
// persistence requirements.
// DefaultDataDir 是数据库和其他持久化数据的默认目录。
func DefaultDataDir() string {
	home := flags.HomeDir()
	if home == "" {
		// As we cannot guess a stable location, return empty and handle later
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Clique")
	case "windows":
		if appdata := os.Getenv("LOCALAPPDATA"); appdata != "" {
			return filepath.Join(appdata, "Clique")
		}
		return filepath.Join(home, "AppData", "Roaming", "Clique")
	default:
		return filepath.Join(home, ".clique")
	}
}

// SplitAndTrim splits input separated by a comma
// and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}
