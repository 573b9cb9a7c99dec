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
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the state of the authorization voting at a given point in time.
// Snapshots are immutable once built and may be shared freely; mutations go
// through a snapshotBuilder owned by a single apply call.
// Snapshot 是某一时间点授权投票的状态快照。快照构建后不可变，可以自由共享；所有修改都通过单次 apply 调用独占的 snapshotBuilder 完成。
type Snapshot struct {
	hash    common.Hash                // Block hash where the snapshot was created 创建快照时的区块哈希
	signers mapset.Set[common.Address] // Set of authorized signers at this moment 当前授权签名者的集合
	votes   []Vote                     // List of votes cast in chronological order 按时间顺序排列的投票列表
	tally   map[common.Address]Tally   // Current vote tally to avoid recalculating 当前投票计数器，避免重新计算
}

// newSnapshot creates a new snapshot with the specified startup parameters and
// no pending votes. It is used for checkpoint blocks, which carry the full
// signer list and reset the voting state.
// newSnapshot 使用指定参数创建一个没有待处理投票的新快照，用于携带完整签名者列表并重置投票状态的检查点区块。
func newSnapshot(hash common.Hash, signers []common.Address) *Snapshot {
	return &Snapshot{
		hash:    hash,
		signers: mapset.NewThreadUnsafeSet[common.Address](signers...),
		tally:   make(map[common.Address]Tally),
	}
}

// Hash returns the hash of the block the snapshot is valid at.
func (s *Snapshot) Hash() common.Hash { return s.hash }

// Signers retrieves the list of authorized signers in ascending order.
// Signers 按升序检索授权签名者的列表。
func (s *Snapshot) Signers() []common.Address {
	sigs := s.signers.ToSlice()
	slices.SortFunc(sigs, common.Address.Cmp)
	return sigs
}

// IsSigner reports whether address is authorized to seal blocks.
func (s *Snapshot) IsSigner(address common.Address) bool {
	return s.signers.Contains(address)
}

// Votes returns a copy of the pending votes in the order they were cast.
func (s *Snapshot) Votes() []Vote {
	return slices.Clone(s.votes)
}

// Tally returns the open tally about subject, if any.
func (s *Snapshot) Tally(subject common.Address) (Tally, bool) {
	tally, ok := s.tally[subject]
	return tally, ok
}

// Tallies returns a copy of all open tallies.
func (s *Snapshot) Tallies() map[common.Address]Tally {
	return maps.Clone(s.tally)
}

// validVote returns whether it makes sense to cast the specified vote in the
// given snapshot context (e.g. don't try to add an already authorized signer).
func (s *Snapshot) validVote(address common.Address, action VoteAction) bool {
	return action.ValidFor(s.signers, address)
}

// InTurn returns if a signer at a given block height is in-turn or not.
// InTurn 返回在给定区块高度的签名者是否轮次内签名者。
func (s *Snapshot) InTurn(number uint64, signer common.Address) bool {
	signers := s.Signers()
	if len(signers) == 0 {
		return false
	}
	offset := slices.Index(signers, signer)
	return offset >= 0 && (number%uint64(len(signers))) == uint64(offset)
}

// Equal reports whether two snapshots describe the same voting state.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.hash == other.hash &&
		s.signers.Equal(other.signers) &&
		slices.Equal(s.votes, other.votes) &&
		maps.Equal(s.tally, other.tally)
}

// MarshalJSON implements json.Marshaler, used by the RPC API and the CLI.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	votes := s.votes
	if votes == nil {
		votes = []Vote{}
	}
	return json.Marshal(struct {
		Hash    common.Hash              `json:"hash"`
		Signers []common.Address         `json:"signers"`
		Votes   []Vote                   `json:"votes"`
		Tally   map[common.Address]Tally `json:"tally"`
	}{s.hash, s.Signers(), votes, s.tally})
}

// builder opens a mutable working copy of the snapshot, re-keyed to hash.
func (s *Snapshot) builder(hash common.Hash) *snapshotBuilder {
	return &snapshotBuilder{
		hash:    hash,
		signers: s.signers.Clone(),
		votes:   slices.Clone(s.votes),
		tally:   maps.Clone(s.tally),
	}
}

// snapshotBuilder is the exclusively owned, short lived counterpart of a
// Snapshot used while a single header is being applied.
// snapshotBuilder 是应用单个区块头期间使用的、独占且短暂的快照可变副本。
type snapshotBuilder struct {
	hash    common.Hash
	signers mapset.Set[common.Address]
	votes   []Vote
	tally   map[common.Address]Tally
}

// build freezes the builder into an immutable snapshot. The builder must not be
// used afterwards.
func (b *snapshotBuilder) build() *Snapshot {
	snap := &Snapshot{
		hash:    b.hash,
		signers: b.signers,
		votes:   b.votes,
		tally:   b.tally,
	}
	*b = snapshotBuilder{}
	return snap
}

// cast adds a new vote into the tally.
// cast 将新的投票加入计数器。
func (b *snapshotBuilder) cast(vote Vote) bool {
	// Ensure the vote is meaningful
	if !vote.Action.ValidFor(b.signers, vote.Address) {
		return false
	}
	// Cast the vote into an existing or new tally
	if old, ok := b.tally[vote.Address]; ok {
		b.tally[vote.Address] = old.upvote()
	} else {
		b.tally[vote.Address] = Tally{Action: vote.Action, Votes: 1}
	}
	b.votes = append(b.votes, vote)
	return true
}

// uncast removes a previously cast vote from the tally.
// uncast 从计数器中移除之前投出的投票。
func (b *snapshotBuilder) uncast(address common.Address, action VoteAction) {
	// If there's no tally, it's a dangling vote, just drop
	tally, ok := b.tally[address]
	if !ok {
		return
	}
	// Ensure we only revert counted votes
	if tally.Action != action {
		return
	}
	if tally.Votes > 1 {
		b.tally[address] = tally.downvote()
	} else {
		delete(b.tally, address)
	}
}

// retract withdraws every live vote signer cast about subject. Matches are
// collected first and removed once the scan is done.
// retract 撤回 signer 对 subject 投出的所有有效投票。
func (b *snapshotBuilder) retract(signer, subject common.Address) {
	var stale []Vote
	for _, vote := range b.votes {
		if vote.Signer == signer && vote.Address == subject {
			stale = append(stale, vote)
		}
	}
	for _, vote := range stale {
		b.uncast(vote.Address, vote.Action)
	}
	if len(stale) > 0 {
		b.votes = slices.DeleteFunc(b.votes, func(vote Vote) bool {
			return vote.Signer == signer && vote.Address == subject
		})
	}
}

// passed reports whether the open proposal about subject holds a strict
// majority of the current signers.
func (b *snapshotBuilder) passed(subject common.Address) (Tally, bool) {
	tally, ok := b.tally[subject]
	if !ok {
		return Tally{}, false
	}
	return tally, tally.Votes > uint32(b.signers.Cardinality()/2)
}

// resolve applies a passed proposal to the signer set and discards every vote
// cast by or about the subject, along with the subject's tally.
// resolve 将通过的提案应用到签名者集合，并丢弃所有由该账户投出或关于该账户的投票及其计数器。
func (b *snapshotBuilder) resolve(subject common.Address, action VoteAction) {
	switch action {
	case Nominate:
		b.signers.Add(subject)
	case Kick:
		b.signers.Remove(subject)
	}
	// Discard any previous votes the subject cast, reverting their tallies
	for _, vote := range b.votes {
		if vote.Signer == subject {
			b.uncast(vote.Address, vote.Action)
		}
	}
	// Discard any previous votes by or around the just changed account
	b.votes = slices.DeleteFunc(b.votes, func(vote Vote) bool {
		return vote.Signer == subject || vote.Address == subject
	})
	delete(b.tally, subject)
}
