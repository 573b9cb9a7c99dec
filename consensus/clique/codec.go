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
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// errInvalidSnapshotList is returned if a persisted snapshot blob is not a
	// well formed list of the expected arity.
	errInvalidSnapshotList = errors.New("malformed snapshot encoding")

	// errUnknownVoteAction is returned if a persisted vote or tally carries an
	// action that is neither the authorize nor the drop nonce pattern.
	errUnknownVoteAction = errors.New("unknown vote action")

	// errDuplicateTally is returned if a persisted snapshot holds two tallies for
	// the same subject.
	errDuplicateTally = errors.New("duplicate tally subject")
)

// The persisted layout of a snapshot is
//
//	[hash, [signer, ...], [vote, ...], [[subject, [action, votes]], ...]]
//	vote = [signer, block, subject, action]
//
// with action being the 8 byte nonce pattern of the vote.

type encodedVote struct {
	Signer  common.Address
	Block   uint64
	Address common.Address
	Action  []byte
}

type encodedTally struct {
	Action []byte
	Votes  uint32
}

type encodedTallyPair struct {
	Address common.Address
	Tally   encodedTally
}

type encodedSnapshot struct {
	Hash    common.Hash
	Signers []common.Address
	Votes   []encodedVote
	Tally   []encodedTallyPair
}

// EncodeSnapshot serializes a snapshot into its persisted binary form. Signers and
// tallies are emitted in ascending address order, votes in the order cast.
// EncodeSnapshot 将快照序列化为持久化的二进制格式。
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	enc := encodedSnapshot{
		Hash:    snap.hash,
		Signers: snap.Signers(),
		Votes:   make([]encodedVote, 0, len(snap.votes)),
		Tally:   make([]encodedTallyPair, 0, len(snap.tally)),
	}
	for _, vote := range snap.votes {
		enc.Votes = append(enc.Votes, encodedVote{
			Signer:  vote.Signer,
			Block:   vote.Block,
			Address: vote.Address,
			Action:  vote.Action.Nonce(),
		})
	}
	for address, tally := range snap.tally {
		enc.Tally = append(enc.Tally, encodedTallyPair{
			Address: address,
			Tally:   encodedTally{Action: tally.Action.Nonce(), Votes: tally.Votes},
		})
	}
	slices.SortFunc(enc.Tally, func(a, b encodedTallyPair) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	return rlp.EncodeToBytes(&enc)
}

// DecodeSnapshot parses a snapshot previously produced by EncodeSnapshot.
// DecodeSnapshot 解析之前由 EncodeSnapshot 生成的快照。
func DecodeSnapshot(blob []byte) (*Snapshot, error) {
	var dec encodedSnapshot
	if err := rlp.DecodeBytes(blob, &dec); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSnapshotList, err)
	}
	snap := newSnapshot(dec.Hash, dec.Signers)
	if len(dec.Votes) > 0 {
		snap.votes = make([]Vote, 0, len(dec.Votes))
	}
	for i, vote := range dec.Votes {
		action, err := actionFromNonce(vote.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: vote %d action %x", errUnknownVoteAction, i, vote.Action)
		}
		snap.votes = append(snap.votes, Vote{
			Signer:  vote.Signer,
			Block:   vote.Block,
			Address: vote.Address,
			Action:  action,
		})
	}
	for _, pair := range dec.Tally {
		action, err := actionFromNonce(pair.Tally.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: tally %x action %x", errUnknownVoteAction, pair.Address, pair.Tally.Action)
		}
		if _, ok := snap.tally[pair.Address]; ok {
			return nil, fmt.Errorf("%w: %x", errDuplicateTally, pair.Address)
		}
		snap.tally[pair.Address] = Tally{Action: action, Votes: pair.Tally.Votes}
	}
	if err := snap.checkTallies(); err != nil {
		return nil, err
	}
	return snap, nil
}

// checkTallies verifies that the tallies are exactly the open proposals: every
// pending vote is counted by the tally of its subject, and every tally is
// backed by as many pending votes as it counts.
// checkTallies 校验计数器与待定投票一一对应。
func (s *Snapshot) checkTallies() error {
	counts := make(map[common.Address]uint32, len(s.tally))
	for i, vote := range s.votes {
		tally, ok := s.tally[vote.Address]
		if !ok {
			return fmt.Errorf("%w: vote %d about %x has no tally", errInvalidSnapshotList, i, vote.Address)
		}
		if tally.Action == vote.Action {
			counts[vote.Address]++
		}
	}
	for subject, tally := range s.tally {
		if tally.Votes == 0 || tally.Votes != counts[subject] {
			return fmt.Errorf("%w: tally %x counts %d votes, %d pending", errInvalidSnapshotList, subject, tally.Votes, counts[subject])
		}
	}
	return nil
}
