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
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/poa/consensus"
)

// statusWindow is the number of recent blocks Status reports on.
const statusWindow = uint64(64)

// API is a user facing RPC API to allow controlling the signer and voting
// mechanisms of the proof-of-authority scheme.
// API 是一个面向用户的 RPC API，用于控制权威证明机制中的签名者和投票机制。
type API struct {
	chain  consensus.ChainHeaderReader
	clique *Clique
}

// headerByNumber resolves the requested block number, defaulting to the head.
func (api *API) headerByNumber(number *rpc.BlockNumber) (*types.Header, error) {
	var header *types.Header
	if number == nil || *number == rpc.LatestBlockNumber {
		header = api.chain.CurrentHeader()
	} else if *number >= 0 {
		header = api.chain.GetHeaderByNumber(uint64(number.Int64()))
	}
	if header == nil {
		return nil, errUnknownBlock
	}
	return header, nil
}

// GetSnapshot retrieves the state snapshot at a given block.
// GetSnapshot 检索指定区块的状态快照。
func (api *API) GetSnapshot(number *rpc.BlockNumber) (*Snapshot, error) {
	header, err := api.headerByNumber(number)
	if err != nil {
		return nil, err
	}
	return api.clique.SnapshotFor(api.chain, header.Hash(), nil)
}

// GetSnapshotAtHash retrieves the state snapshot at a given block.
func (api *API) GetSnapshotAtHash(hash common.Hash) (*Snapshot, error) {
	header := api.chain.GetHeaderByHash(hash)
	if header == nil {
		return nil, errUnknownBlock
	}
	return api.clique.SnapshotFor(api.chain, header.Hash(), nil)
}

// GetSigners retrieves the list of authorized signers at the specified block.
// GetSigners 检索指定区块的授权签名者列表。
func (api *API) GetSigners(number *rpc.BlockNumber) ([]common.Address, error) {
	snap, err := api.GetSnapshot(number)
	if err != nil {
		return nil, err
	}
	return snap.Signers(), nil
}

// GetSignersAtHash retrieves the list of authorized signers at the specified block.
func (api *API) GetSignersAtHash(hash common.Hash) ([]common.Address, error) {
	snap, err := api.GetSnapshotAtHash(hash)
	if err != nil {
		return nil, err
	}
	return snap.Signers(), nil
}

// Proposals returns the current proposals the node tries to uphold and vote on.
// A true value stands for a nomination, false for a kick.
func (api *API) Proposals() map[common.Address]bool {
	proposals := make(map[common.Address]bool)
	for address, action := range api.clique.Proposals() {
		proposals[address] = action == Nominate
	}
	return proposals
}

// Propose injects a new authorization proposal that the signer will attempt to
// push through.
// Propose 注入一个新的授权提案，签名者将尝试推动该提案通过。
func (api *API) Propose(address common.Address, auth bool) {
	action := Kick
	if auth {
		action = Nominate
	}
	api.clique.Propose(address, action)
}

// Discard drops a currently running proposal, stopping the signer from casting
// further votes (either for or against).
func (api *API) Discard(address common.Address) {
	api.clique.Discard(address)
}

type status struct {
	InturnPercent float64                `json:"inturnPercent"`
	SigningStatus map[common.Address]int `json:"sealerActivity"`
	NumBlocks     uint64                 `json:"numBlocks"`
}

// Status returns the status of the last N blocks,
// - the number of active signers,
// - the number of signers,
// - the percentage of in-turn blocks
func (api *API) Status() (*status, error) {
	header := api.chain.CurrentHeader()
	if header == nil {
		return nil, errUnknownBlock
	}
	snap, err := api.clique.SnapshotFor(api.chain, header.Hash(), nil)
	if err != nil {
		return nil, err
	}
	signStatus := make(map[common.Address]int)
	for _, s := range snap.Signers() {
		signStatus[s] = 0
	}
	// The genesis header is never sealed, start counting from block 1
	var (
		end       = header.Number.Uint64()
		start     = uint64(1)
		numBlocks = end
		optimals  = 0
	)
	if end > statusWindow {
		start, numBlocks = end-statusWindow+1, statusWindow
	}
	for n := start; n <= end; n++ {
		h := api.chain.GetHeaderByNumber(n)
		if h == nil {
			return nil, fmt.Errorf("missing block %d", n)
		}
		if h.Difficulty.Cmp(diffInTurn) == 0 {
			optimals++
		}
		sealer, err := api.clique.Author(h)
		if err != nil {
			return nil, err
		}
		signStatus[sealer]++
	}
	var inturn float64
	if numBlocks > 0 {
		inturn = float64(100*optimals) / float64(numBlocks)
	}
	return &status{
		InturnPercent: inturn,
		SigningStatus: signStatus,
		NumBlocks:     numBlocks,
	}, nil
}

type blockNumberOrHashOrRLP struct {
	*rpc.BlockNumberOrHash
	RLP hexutil.Bytes `json:"rlp,omitempty"`
}

func (sb *blockNumberOrHashOrRLP) UnmarshalJSON(data []byte) error {
	bnOrHash := new(rpc.BlockNumberOrHash)
	// Try to unmarshal bNrOrHash
	if err := bnOrHash.UnmarshalJSON(data); err == nil {
		sb.BlockNumberOrHash = bnOrHash
		return nil
	}
	// Try to unmarshal RLP
	var input string
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}
	blob, err := hexutil.Decode(input)
	if err != nil {
		return err
	}
	sb.RLP = blob
	return nil
}

// GetSigner returns the signer for a specific clique block.
// Can be called with a block number, a block hash or a rlp encoded header.
// GetSigner 返回特定 Clique 区块的签名者，可以通过区块号、区块哈希或 RLP 编码的区块头调用。
func (api *API) GetSigner(rlpOrBlockNr *blockNumberOrHashOrRLP) (common.Address, error) {
	if rlpOrBlockNr == nil || len(rlpOrBlockNr.RLP) == 0 {
		var (
			header        *types.Header
			blockNrOrHash *rpc.BlockNumberOrHash
		)
		if rlpOrBlockNr != nil {
			blockNrOrHash = rlpOrBlockNr.BlockNumberOrHash
		}
		if blockNrOrHash == nil {
			header = api.chain.CurrentHeader()
		} else if hash, ok := blockNrOrHash.Hash(); ok {
			header = api.chain.GetHeaderByHash(hash)
		} else if number, ok := blockNrOrHash.Number(); ok {
			var err error
			if header, err = api.headerByNumber(&number); err != nil {
				return common.Address{}, fmt.Errorf("missing block %v", blockNrOrHash.String())
			}
		}
		if header == nil {
			return common.Address{}, errUnknownBlock
		}
		return api.clique.Author(header)
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(rlpOrBlockNr.RLP, header); err != nil {
		return common.Address{}, err
	}
	return api.clique.Author(header)
}
