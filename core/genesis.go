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
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/sunyihoo/poa/params"
)

const genesisVanity = 32

// Genesis specifies the header fields of a proof-of-authority genesis block.
// The initial signers are embedded into the extra-data the way every later
// checkpoint carries them.
type Genesis struct {
	Config    *params.CliqueConfig `json:"config,omitempty"`
	Timestamp uint64               `json:"timestamp"`
	GasLimit  uint64               `json:"gasLimit"`
	Vanity    hexutil.Bytes        `json:"vanity,omitempty"`
	Signers   []common.Address     `json:"signers"`
	BaseFee   *big.Int             `json:"baseFeePerGas,omitempty"`
}

// DefaultGenesis returns a genesis with the given initial signers.
func DefaultGenesis(signers []common.Address) *Genesis {
	return &Genesis{
		GasLimit: params.GenesisGasLimit,
		Signers:  signers,
		BaseFee:  big.NewInt(params.InitialBaseFee),
	}
}

// ToHeader assembles the genesis header. Signers are sorted in ascending order
// and the trailing seal is left zeroed.
func (g *Genesis) ToHeader() *types.Header {
	signers := slices.Clone(g.Signers)
	slices.SortFunc(signers, common.Address.Cmp)

	extra := make([]byte, genesisVanity, genesisVanity+len(signers)*common.AddressLength+crypto.SignatureLength)
	copy(extra, g.Vanity)
	for _, signer := range signers {
		extra = append(extra, signer[:]...)
	}
	extra = append(extra, make([]byte, crypto.SignatureLength)...)

	head := &types.Header{
		Number:      new(big.Int),
		Time:        g.Timestamp,
		GasLimit:    g.GasLimit,
		Extra:       extra,
		Difficulty:  big.NewInt(1),
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Root:        types.EmptyRootHash,
	}
	if head.GasLimit == 0 {
		head.GasLimit = params.GenesisGasLimit
	}
	if g.BaseFee != nil {
		head.BaseFee = new(big.Int).Set(g.BaseFee)
	}
	return head
}

// Commit writes the genesis header as the canonical head of an empty database,
// together with the engine configuration if one is set. Committing the same
// genesis twice is a no-op.
func (g *Genesis) Commit(db ethdb.Database) (*types.Header, error) {
	if len(g.Signers) == 0 {
		return nil, fmt.Errorf("genesis requires at least one signer")
	}
	head := g.ToHeader()
	hash := head.Hash()

	if stored := rawdb.ReadCanonicalHash(db, 0); stored != (common.Hash{}) {
		if stored != hash {
			return nil, fmt.Errorf("%w: have %x, new %x", ErrGenesisExists, stored, hash)
		}
		return head, nil
	}
	batch := db.NewBatch()
	WriteTd(batch, hash, 0, head.Difficulty)
	rawdb.WriteHeader(batch, head)
	rawdb.WriteCanonicalHash(batch, hash, 0)
	rawdb.WriteHeadHeaderHash(batch, hash)
	if g.Config != nil {
		if err := writeCliqueConfig(batch, hash, g.Config); err != nil {
			return nil, err
		}
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	return head, nil
}
