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
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/poa/consensus/clique"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/params"
)

// newSealedChain creates a single signer chain of n headers on top of a fresh
// genesis in an in-memory database.
func newSealedChain(t *testing.T, key *ecdsa.PrivateKey, n int) *core.HeaderChain {
	t.Helper()

	db := rawdb.NewMemoryDatabase()
	_, err := core.DefaultGenesis([]common.Address{crypto.PubkeyToAddress(key.PublicKey)}).Commit(db)
	require.NoError(t, err)

	engine := newEngine(db)
	engine.Authorize(key)
	hc, err := core.NewHeaderChain(db, engine)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		parent := hc.CurrentHeader()
		header := &types.Header{
			ParentHash: parent.Hash(),
			Number:     new(big.Int).Add(parent.Number, common.Big1),
			GasLimit:   parent.GasLimit,
		}
		require.NoError(t, engine.Prepare(hc, header))
		sealed, err := engine.Seal(hc, header)
		require.NoError(t, err)
		_, err = hc.InsertHeaderChain([]*types.Header{sealed})
		require.NoError(t, err)
	}
	return hc
}

func newEngine(db clique.Database) *clique.Clique {
	return clique.New(&params.CliqueConfig{Period: 0, Epoch: 4}, db)
}

func TestImportExportHeaders(t *testing.T) {
	for _, name := range []string{"headers.rlp", "headers.rlp.gz"} {
		t.Run(name, func(t *testing.T) {
			key, _ := crypto.GenerateKey()
			src := newSealedChain(t, key, 10)
			fn := filepath.Join(t.TempDir(), name)
			require.NoError(t, ExportHeaders(src, fn, 0, 10))

			// Import into a chain sharing only the genesis
			db := rawdb.NewMemoryDatabase()
			_, err := core.DefaultGenesis([]common.Address{crypto.PubkeyToAddress(key.PublicKey)}).Commit(db)
			require.NoError(t, err)
			dst, err := core.NewHeaderChain(db, newEngine(db))
			require.NoError(t, err)

			require.NoError(t, ImportHeaders(dst, fn))
			require.Equal(t, src.CurrentHeader().Hash(), dst.CurrentHeader().Hash())

			// Checkpoints crossed by the import are persisted
			_, err = clique.ReadSnapshot(db, dst.GetCanonicalHash(8))
			require.NoError(t, err)
		})
	}
}

func TestImportRejectsForeignHeaders(t *testing.T) {
	key, _ := crypto.GenerateKey()
	src := newSealedChain(t, key, 3)
	fn := filepath.Join(t.TempDir(), "headers.rlp")
	require.NoError(t, ExportHeaders(src, fn, 1, 3))

	// A chain with another genesis knows none of the parents
	other, _ := crypto.GenerateKey()
	dst := newSealedChain(t, other, 0)
	require.ErrorContains(t, ImportHeaders(dst, fn), "unknown ancestor")
}

func TestOpenDatabase(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenDatabase(DatabaseConfig{Engine: "leveldb", Directory: dir, Cache: 16, Handles: 16})
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("key"), []byte("value")))
	require.NoError(t, db.Close())

	// The existing engine is picked up, a conflicting choice is refused
	db, err = OpenDatabase(DatabaseConfig{Directory: dir, Cache: 16, Handles: 16})
	require.NoError(t, err)
	value, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)
	require.NoError(t, db.Close())

	_, err = OpenDatabase(DatabaseConfig{Engine: "pebble", Directory: dir, Cache: 16, Handles: 16})
	require.Error(t, err)
	_, err = OpenDatabase(DatabaseConfig{Engine: "bolt", Directory: dir})
	require.Error(t, err)

	db, err = OpenDatabase(DatabaseConfig{Engine: "pebble", Directory: t.TempDir(), Cache: 16, Handles: 16})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDatabase(DatabaseConfig{Engine: dbMemory})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{" , ,", nil},
		{"http://a.example", []string{"http://a.example"}},
		{" http://a.example ,http://b.example,, ", []string{"http://a.example", "http://b.example"}},
		{"*", []string{"*"}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SplitAndTrim(tt.input), "input %q", tt.input)
	}
}
