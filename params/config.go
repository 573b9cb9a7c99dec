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

// Package params holds the consensus configuration and protocol constants of
// a clique network.
package params

import (
	"errors"
	"fmt"
)

// DefaultCliqueConfig is the engine configuration used when nothing else is
// configured: 15 second blocks and a checkpoint every 30000 blocks.
// DefaultCliqueConfig 是默认的共识配置：15 秒出块，每 30000 个区块一个检查点。
var DefaultCliqueConfig = &CliqueConfig{Period: 15, Epoch: 30000}

// CliqueConfig is the consensus engine configs for proof-of-authority based sealing.
// CliqueConfig 是基于权威证明的密封的共识引擎配置。
type CliqueConfig struct {
	Period uint64 `json:"period"` // Number of seconds between blocks to enforce 区块之间的最小秒数
	Epoch  uint64 `json:"epoch"`  // Epoch length to reset votes and checkpoint 重置投票和检查点的纪元长度
}

// String implements the stringer interface, returning the consensus engine details.
func (c CliqueConfig) String() string {
	return fmt.Sprintf("clique(period: %d, epoch: %d)", c.Period, c.Epoch)
}

var errZeroEpoch = errors.New("clique epoch must be positive")

// Validate checks that a configuration loaded from the outside is usable. A
// zero epoch is only meaningful for the engine constructor, which replaces it
// with the default, so configuration files must spell it out.
func (c *CliqueConfig) Validate() error {
	if c.Epoch == 0 {
		return errZeroEpoch
	}
	return nil
}
