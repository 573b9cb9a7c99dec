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
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	nonceAuthVote = hexutil.MustDecode("0xffffffffffffffff") // Magic nonce number to vote on adding a new signer
	// nonceAuthVote 是一个特殊的 nonce 值，用于投票添加一个新的签名者。
	nonceDropVote = hexutil.MustDecode("0x0000000000000000") // Magic nonce number to vote on removing a signer.
	// nonceDropVote 是一个特殊的 nonce 值，用于投票移除一个签名者。
)

// VoteAction is the membership change a single vote proposes.
// VoteAction 表示一张投票所提议的成员变更。
type VoteAction uint8

const (
	// Nominate proposes adding the subject to the signer set.
	Nominate VoteAction = iota + 1

	// Kick proposes removing the subject from the signer set.
	Kick
)

// actionFromNonce maps a header nonce (or its snapshot wire form) to the vote
// action it carries. This is the only place the nonce patterns are interpreted.
// actionFromNonce 将区块头的 nonce（或其快照编码形式）映射为投票动作。这是唯一解释 nonce 模式的地方。
func actionFromNonce(nonce []byte) (VoteAction, error) {
	switch {
	case bytes.Equal(nonce, nonceAuthVote):
		return Nominate, nil
	case bytes.Equal(nonce, nonceDropVote):
		return Kick, nil
	default:
		return 0, errInvalidVote
	}
}

// Nonce returns the 8 byte nonce pattern encoding the action.
func (a VoteAction) Nonce() []byte {
	if a == Nominate {
		return common.CopyBytes(nonceAuthVote)
	}
	return common.CopyBytes(nonceDropVote)
}

// ValidFor reports whether casting the action about subject makes sense given
// the current signer set: only non-signers can be nominated and only signers
// can be kicked.
// ValidFor 判断在当前签名者集合下对 subject 投出该动作是否有意义：只能提名非签名者，只能移除签名者。
func (a VoteAction) ValidFor(signers mapset.Set[common.Address], subject common.Address) bool {
	signer := signers.Contains(subject)
	switch a {
	case Nominate:
		return !signer
	case Kick:
		return signer
	default:
		return false
	}
}

func (a VoteAction) String() string {
	switch a {
	case Nominate:
		return "nominate"
	case Kick:
		return "kick"
	default:
		return fmt.Sprintf("VoteAction(%d)", uint8(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a VoteAction) MarshalText() ([]byte, error) {
	switch a {
	case Nominate, Kick:
		return []byte(a.String()), nil
	default:
		return nil, errUnknownVoteAction
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *VoteAction) UnmarshalText(input []byte) error {
	switch string(input) {
	case "nominate":
		*a = Nominate
	case "kick":
		*a = Kick
	default:
		return fmt.Errorf("%w: %q", errUnknownVoteAction, input)
	}
	return nil
}

// Vote represents a single vote that an authorized signer made to modify the
// list of authorizations.
// Vote 表示授权签名者为修改授权列表而投出的一票。
type Vote struct {
	Signer  common.Address `json:"signer"`  // Authorized signer that cast this vote 投票的授权签名者地址
	Block   uint64         `json:"block"`   // Block number the vote was cast in 投票所在的区块号
	Address common.Address `json:"address"` // Account being voted on to change its authorization 被投票更改授权状态的账户地址
	Action  VoteAction     `json:"action"`  // Whether to nominate or kick the voted account 提名还是移除该账户
}

// Tally is a simple vote tally to keep the current score of votes. Votes that
// go against the proposal aren't counted since it's equivalent to not voting.
// Tally 是一个简单的投票计数器，用于记录当前的投票分数。反对提案的投票不计入统计，因为等同于未投票。
type Tally struct {
	Action VoteAction `json:"action"` // Whether the vote is about nominating or kicking someone
	Votes  uint32     `json:"votes"`  // Number of votes until now wanting to pass the proposal
}

func (t Tally) upvote() Tally {
	t.Votes++
	return t
}

func (t Tally) downvote() Tally {
	t.Votes--
	return t
}
