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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/naoina/toml"
	"github.com/sunyihoo/poa/cmd/utils"
	"github.com/sunyihoo/poa/consensus/clique"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/sunyihoo/poa/params"
	"github.com/urfave/cli/v2"
)

var (
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Flags:       flags.Merge(rpcFlags, utils.MetricsFlags),
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}

	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type rpcConfig struct {
	HTTPHost  string
	HTTPPort  int
	HTTPCors  []string `toml:",omitempty"`
	Debug     bool     `toml:",omitempty"`
	WS        bool     `toml:",omitempty"`
	WSOrigins []string `toml:",omitempty"`
}

type metricsConfig struct {
	Enabled bool
	HTTP    string `toml:",omitempty"`
	Port    int
}

type cliqueConfig struct {
	Clique   params.CliqueConfig
	Database utils.DatabaseConfig
	RPC      rpcConfig
	Metrics  metricsConfig
}

func loadConfig(file string, cfg *cliqueConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultConfig() cliqueConfig {
	return cliqueConfig{
		Clique: *params.DefaultCliqueConfig,
		Database: utils.DatabaseConfig{
			Directory: utils.DefaultDataDir(),
			Cache:     utils.CacheFlag.Value,
			Handles:   utils.HandlesFlag.Value,
		},
		RPC: rpcConfig{
			HTTPHost: utils.HTTPListenAddrFlag.Value,
			HTTPPort: utils.HTTPPortFlag.Value,
		},
		Metrics: metricsConfig{
			Port: utils.MetricsPortFlag.Value,
		},
	}
}

// loadBaseConfig loads the cliqueConfig based on the given command line
// parameters and config file. Flags take precedence over the file.
// loadBaseConfig 根据命令行参数和配置文件加载配置，命令行标志优先于配置文件。
func loadBaseConfig(ctx *cli.Context) cliqueConfig {
	cfg := defaultConfig()

	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	utils.SetDatabaseConfig(ctx, &cfg.Database)
	if ctx.IsSet(utils.PeriodFlag.Name) {
		cfg.Clique.Period = ctx.Uint64(utils.PeriodFlag.Name)
	}
	if ctx.IsSet(utils.EpochFlag.Name) {
		cfg.Clique.Epoch = ctx.Uint64(utils.EpochFlag.Name)
	}
	if ctx.IsSet(utils.HTTPListenAddrFlag.Name) {
		cfg.RPC.HTTPHost = ctx.String(utils.HTTPListenAddrFlag.Name)
	}
	if ctx.IsSet(utils.HTTPPortFlag.Name) {
		cfg.RPC.HTTPPort = ctx.Int(utils.HTTPPortFlag.Name)
	}
	if ctx.IsSet(utils.HTTPDebugFlag.Name) {
		cfg.RPC.Debug = ctx.Bool(utils.HTTPDebugFlag.Name)
	}
	if ctx.IsSet(utils.HTTPCORSDomainFlag.Name) {
		cfg.RPC.HTTPCors = utils.SplitAndTrim(ctx.String(utils.HTTPCORSDomainFlag.Name))
	}
	if ctx.IsSet(utils.WSEnabledFlag.Name) {
		cfg.RPC.WS = ctx.Bool(utils.WSEnabledFlag.Name)
	}
	if ctx.IsSet(utils.WSAllowedOriginsFlag.Name) {
		cfg.RPC.WSOrigins = utils.SplitAndTrim(ctx.String(utils.WSAllowedOriginsFlag.Name))
	}
	if ctx.IsSet(utils.MetricsEnabledFlag.Name) {
		cfg.Metrics.Enabled = ctx.Bool(utils.MetricsEnabledFlag.Name)
	}
	if ctx.IsSet(utils.MetricsHTTPFlag.Name) {
		cfg.Metrics.HTTP = ctx.String(utils.MetricsHTTPFlag.Name)
	}
	if ctx.IsSet(utils.MetricsPortFlag.Name) {
		cfg.Metrics.Port = ctx.Int(utils.MetricsPortFlag.Name)
	}
	if err := cfg.Clique.Validate(); err != nil {
		utils.Fatalf("Invalid clique configuration: %v", err)
	}
	return cfg
}

// makeChain opens the database and assembles the engine and the header chain
// on top of it. The engine configuration stored at init time wins over the
// local one, since the existing checkpoints depend on it.
// makeChain 打开数据库并在其上组装共识引擎和区块头链。初始化时存储的引擎配置优先。
func makeChain(ctx *cli.Context, cfg cliqueConfig) (ethdb.Database, *clique.Clique, *core.HeaderChain) {
	db := utils.MakeDatabase(ctx, cfg.Database, false)

	engineConfig := cfg.Clique
	switch stored, err := core.ReadCliqueConfig(db); {
	case err == nil:
		if stored.Epoch != engineConfig.Epoch && ctx.IsSet(utils.EpochFlag.Name) {
			log.Warn("Ignoring epoch override, using the stored one", "stored", stored.Epoch, "flag", engineConfig.Epoch)
		}
		engineConfig = *stored
	case errors.Is(err, core.ErrNoCliqueConfig):
		log.Warn("No stored clique config, using the local one", "config", engineConfig)
	default:
		db.Close()
		utils.Fatalf("Failed to read clique config: %v", err)
	}
	engine := clique.New(&engineConfig, db)
	chain, err := core.NewHeaderChain(db, engine)
	if err != nil {
		db.Close()
		utils.Fatalf("Failed to open header chain: %v", err)
	}
	log.Info("Opened header chain", "engine", engineConfig, "head", chain.CurrentHeader().Number)
	return db, engine, chain
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	dump.Write(out)
	return nil
}
