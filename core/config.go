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

package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/sunyihoo/poa/params"
)

// cliqueConfigPrefix + genesis hash -> JSON encoded engine configuration
var cliqueConfigPrefix = []byte("clique-config-")

// ErrNoCliqueConfig is returned by ReadCliqueConfig for databases initialized
// without an engine configuration.
var ErrNoCliqueConfig = errors.New("no clique config stored")

func cliqueConfigKey(hash common.Hash) []byte {
	return append(append([]byte{}, cliqueConfigPrefix...), hash.Bytes()...)
}

func writeCliqueConfig(db ethdb.KeyValueWriter, hash common.Hash, cfg *params.CliqueConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return db.Put(cliqueConfigKey(hash), data)
}

// ReadCliqueConfig retrieves the engine configuration stored along the
// genesis of the database.
// ReadCliqueConfig 读取与创世区块一同存储的共识引擎配置。
func ReadCliqueConfig(db ethdb.Reader) (*params.CliqueConfig, error) {
	hash := rawdb.ReadCanonicalHash(db, 0)
	if hash == (common.Hash{}) {
		return nil, ErrNoGenesis
	}
	data, _ := db.Get(cliqueConfigKey(hash))
	if len(data) == 0 {
		return nil, ErrNoCliqueConfig
	}
	cfg := new(params.CliqueConfig)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid clique config: %w", err)
	}
	return cfg, nil
}
