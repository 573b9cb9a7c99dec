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

package utils

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// dbMemory selects a throwaway in-memory store, mostly useful for dry runs of
// an import.
const dbMemory = "memory"

// DatabaseConfig selects and sizes the key-value store holding the header
// chain and the checkpoint snapshots.
// DatabaseConfig 选择并配置保存区块头链和检查点快照的键值存储。
type DatabaseConfig struct {
	Engine    string `toml:",omitempty"` // empty picks up the existing database, pebble otherwise
	Directory string
	Cache     int
	Handles   int
	Namespace string `toml:"-"`
	ReadOnly  bool   `toml:"-"`
}

// SetDatabaseConfig applies the database related command line flags to cfg.
func SetDatabaseConfig(ctx *cli.Context, cfg *DatabaseConfig) {
	if ctx.IsSet(DataDirFlag.Name) || cfg.Directory == "" {
		cfg.Directory = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(DBEngineFlag.Name) {
		cfg.Engine = ctx.String(DBEngineFlag.Name)
	}
	if ctx.IsSet(CacheFlag.Name) || cfg.Cache == 0 {
		cfg.Cache = ctx.Int(CacheFlag.Name)
	}
	if ctx.IsSet(HandlesFlag.Name) || cfg.Handles == 0 {
		cfg.Handles = ctx.Int(HandlesFlag.Name)
	}
}

// OpenDatabase opens the configured store. Unless memory was requested, the
// engine of an existing database in the directory takes precedence and a
// conflicting explicit choice is an error. Fresh directories default to pebble.
// OpenDatabase 打开配置的数据库。目录中已存在的数据库类型优先，显式指定冲突时报错，
// 新目录默认使用 pebble。
func OpenDatabase(cfg DatabaseConfig) (ethdb.Database, error) {
	if cfg.Engine == dbMemory {
		log.Info("Using an in-memory database, nothing will be persisted")
		return rawdb.NewMemoryDatabase(), nil
	}
	if len(cfg.Engine) != 0 && cfg.Engine != rawdb.DBLeveldb && cfg.Engine != rawdb.DBPebble {
		return nil, fmt.Errorf("unknown db.engine %v", cfg.Engine)
	}
	if cfg.Directory == "" {
		return nil, fmt.Errorf("no data directory configured for the %q database", cfg.Engine)
	}
	existing := rawdb.PreexistingDatabase(cfg.Directory)
	if len(existing) != 0 && len(cfg.Engine) != 0 && cfg.Engine != existing {
		return nil, fmt.Errorf("db.engine choice was %v but found pre-existing %v database in specified data directory", cfg.Engine, existing)
	}
	if cfg.Engine == rawdb.DBLeveldb || existing == rawdb.DBLeveldb {
		log.Info("Using leveldb as the backing database", "dir", cfg.Directory)
		db, err := leveldb.New(cfg.Directory, cfg.Cache, cfg.Handles, cfg.Namespace, cfg.ReadOnly)
		if err != nil {
			return nil, err
		}
		return rawdb.NewDatabase(db), nil
	}
	log.Info("Using pebble as the backing database", "dir", cfg.Directory)
	db, err := pebble.New(cfg.Directory, cfg.Cache, cfg.Handles, cfg.Namespace, cfg.ReadOnly)
	if err != nil {
		return nil, err
	}
	return rawdb.NewDatabase(db), nil
}

// MakeDatabase is OpenDatabase for command actions: it reads the flags into
// cfg and aborts the process on failure.
func MakeDatabase(ctx *cli.Context, cfg DatabaseConfig, readonly bool) ethdb.Database {
	SetDatabaseConfig(ctx, &cfg)
	cfg.ReadOnly = readonly
	db, err := OpenDatabase(cfg)
	if err != nil {
		Fatalf("Could not open database: %v", err)
	}
	return db
}
