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

import "errors"

var (
	// ErrNoGenesis is returned when there is no Genesis Block.
	ErrNoGenesis = errors.New("genesis not found in chain")

	// ErrGenesisExists is returned when a genesis commit targets a database that
	// already holds a different genesis header.
	ErrGenesisExists = errors.New("database already contains an incompatible genesis")

	// errInsertionInterrupted is returned when header import is aborted by Stop.
	errInsertionInterrupted = errors.New("insertion is interrupted")

	// errChainStopped is returned for imports into a stopped chain.
	errChainStopped = errors.New("header chain is stopped")
)
