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

package clique

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
)

// snapshotPrefix + hash.Hex() -> RLP encoded checkpoint snapshot
const snapshotPrefix = "block-hash-to-snapshot:"

// errSnapshotNotFound is returned by the snapshot lookups when neither memory,
// disk nor a checkpoint header can provide the requested snapshot. It never
// escapes the ancestor walk.
var errSnapshotNotFound = errors.New("snapshot not found")

// Database is the durable key-value store checkpoint snapshots are persisted to.
// Any ethdb key-value store satisfies it.
// Database 是持久化检查点快照的键值存储，任何 ethdb 键值存储都满足该接口。
type Database interface {
	ethdb.KeyValueReader
	ethdb.Batcher
}

// snapshotKey = snapshotPrefix + hash.Hex()
func snapshotKey(hash common.Hash) []byte {
	return []byte(snapshotPrefix + hash.Hex())
}

// loadSnapshot loads an existing snapshot from the database.
// loadSnapshot 从数据库中加载现有的快照。
func loadSnapshot(db Database, hash common.Hash) (*Snapshot, error) {
	key := snapshotKey(hash)
	if has, err := db.Has(key); err != nil {
		return nil, err
	} else if !has {
		return nil, errSnapshotNotFound
	}
	blob, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	snap, err := DecodeSnapshot(blob)
	if err != nil {
		return nil, err
	}
	if snap.hash != hash {
		return nil, errInvalidSnapshotList
	}
	return snap, nil
}

// store inserts the snapshot into the database in a single atomic batch.
// store 以单个原子批次将快照存储到数据库中。
func (s *Snapshot) store(db Database) error {
	blob, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	batch := db.NewBatch()
	if err := batch.Put(snapshotKey(s.hash), blob); err != nil {
		return err
	}
	return batch.Write()
}

// ReadSnapshot retrieves the checkpoint snapshot persisted for hash, without
// consulting any cache or replaying headers.
func ReadSnapshot(db Database, hash common.Hash) (*Snapshot, error) {
	return loadSnapshot(db, hash)
}
