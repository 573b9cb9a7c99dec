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
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"slices"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/params"
)

// testerAccountPool is a pool to maintain currently active tester accounts,
// mapped from textual names used in the tests below to actual Ethereum private
// keys capable of signing headers.
type testerAccountPool struct {
	accounts map[string]*ecdsa.PrivateKey
}

func newTesterAccountPool() *testerAccountPool {
	return &testerAccountPool{
		accounts: make(map[string]*ecdsa.PrivateKey),
	}
}

// checkpoint creates a Clique checkpoint signer section from the provided list
// of authorized signers and embeds it into the provided header.
func (ap *testerAccountPool) checkpoint(header *types.Header, signers []string) {
	auths := ap.addresses(signers)
	for i, auth := range auths {
		copy(header.Extra[extraVanity+i*common.AddressLength:], auth.Bytes())
	}
}

// address retrieves the Ethereum address of a tester account by label, creating
// a new account if no previous one exists yet.
func (ap *testerAccountPool) address(account string) common.Address {
	// Return the zero account for non-addresses
	if account == "" {
		return common.Address{}
	}
	// Ensure we have a persistent key for the account
	if ap.accounts[account] == nil {
		ap.accounts[account], _ = crypto.GenerateKey()
	}
	// Resolve and return the Ethereum address
	return crypto.PubkeyToAddress(ap.accounts[account].PublicKey)
}

// addresses resolves a list of labels into ascending addresses.
func (ap *testerAccountPool) addresses(accounts []string) []common.Address {
	addrs := make([]common.Address, len(accounts))
	for i, account := range accounts {
		addrs[i] = ap.address(account)
	}
	slices.SortFunc(addrs, common.Address.Cmp)
	return addrs
}

// key returns the private key of a tester account, creating it if needed.
func (ap *testerAccountPool) key(account string) *ecdsa.PrivateKey {
	ap.address(account)
	return ap.accounts[account]
}

// sign calculates a Clique digital signature for the given header and embeds it
// back into the header.
func (ap *testerAccountPool) sign(header *types.Header, signer string) {
	sighash, err := SealHash(header)
	if err != nil {
		panic(err)
	}
	sig, _ := crypto.Sign(sighash.Bytes(), ap.key(signer))
	copy(header.Extra[len(header.Extra)-extraSeal:], sig)
}

// header assembles and signs a child of parent carrying the given vote.
func (ap *testerAccountPool) header(parent *types.Header, vote testerVote) *types.Header {
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, common.Big1),
		Time:       parent.Time + 1,
		GasLimit:   parent.GasLimit,
		Difficulty: diffInTurn, // Ignored, we just need a valid number
		UncleHash:  uncleHash,
		Coinbase:   ap.address(vote.voted),
		BaseFee:    parent.BaseFee,
		Extra:      make([]byte, extraVanity+len(vote.checkpoint)*common.AddressLength+extraSeal),
	}
	if vote.auth {
		copy(header.Nonce[:], nonceAuthVote)
	}
	if vote.checkpoint != nil {
		ap.checkpoint(header, vote.checkpoint)
	}
	ap.sign(header, vote.signer)
	return header
}

// testerVote represents a single block signed by a particular account, where
// the account may or may not have cast a Clique vote.
type testerVote struct {
	signer     string
	voted      string
	auth       bool
	checkpoint []string
	newbatch   bool
}

type cliqueTest struct {
	epoch   uint64
	signers []string
	votes   []testerVote
	results []string
	failure error
}

// Tests that Clique signer voting is evaluated correctly for various simple and
// complex scenarios, as well as that a few special corner cases fail correctly.
func TestClique(t *testing.T) {
	// Define the various voting scenarios to test
	tests := []cliqueTest{
		{
			// Single signer, no votes cast
			signers: []string{"A"},
			votes:   []testerVote{{signer: "A"}},
			results: []string{"A"},
		}, {
			// Single signer, voting to add two others (only accept first, second needs 2 votes)
			signers: []string{"A"},
			votes: []testerVote{
				{signer: "A", voted: "B", auth: true},
				{signer: "B"},
				{signer: "A", voted: "C", auth: true},
			},
			results: []string{"A", "B"},
		}, {
			// Two signers, voting to add three others (only accept first two, third needs 3 votes already)
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: true},
				{signer: "B", voted: "C", auth: true},
				{signer: "A", voted: "D", auth: true},
				{signer: "B", voted: "D", auth: true},
				{signer: "C"},
				{signer: "A", voted: "E", auth: true},
				{signer: "B", voted: "E", auth: true},
			},
			results: []string{"A", "B", "C", "D"},
		}, {
			// Single signer, dropping itself (weird, but one less cornercase by explicitly allowing this)
			signers: []string{"A"},
			votes: []testerVote{
				{signer: "A", voted: "A", auth: false},
			},
			results: []string{},
		}, {
			// Two signers, actually needing mutual consent to drop either of them (not fulfilled)
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "B", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Two signers, actually needing mutual consent to drop either of them (fulfilled)
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "B", auth: false},
				{signer: "B", voted: "B", auth: false},
			},
			results: []string{"A"},
		}, {
			// Three signers, two of them deciding to drop the third
			signers: []string{"A", "B", "C"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B", voted: "C", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Four signers, consensus of two not being enough to drop anyone
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B", voted: "C", auth: false},
			},
			results: []string{"A", "B", "C", "D"},
		}, {
			// Four signers, consensus of three already being enough to drop someone
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "D", auth: false},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
			},
			results: []string{"A", "B", "C"},
		}, {
			// Authorizations are counted once per signer per target
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: true},
				{signer: "B"},
				{signer: "A", voted: "C", auth: true},
				{signer: "B"},
				{signer: "A", voted: "C", auth: true},
			},
			results: []string{"A", "B"},
		}, {
			// Authorizing multiple accounts concurrently is permitted
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: true},
				{signer: "B"},
				{signer: "A", voted: "D", auth: true},
				{signer: "B"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: true},
				{signer: "A"},
				{signer: "B", voted: "C", auth: true},
			},
			results: []string{"A", "B", "C", "D"},
		}, {
			// Deauthorizations are counted once per signer per target
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "B", auth: false},
				{signer: "B"},
				{signer: "A", voted: "B", auth: false},
				{signer: "B"},
				{signer: "A", voted: "B", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Deauthorizing multiple accounts concurrently is permitted
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A", voted: "D", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
				{signer: "A"},
				{signer: "B", voted: "C", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Votes from deauthorized signers are discarded immediately (deauth votes)
			signers: []string{"A", "B", "C"},
			votes: []testerVote{
				{signer: "C", voted: "B", auth: false},
				{signer: "A", voted: "C", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "A", voted: "B", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Votes from deauthorized signers are discarded immediately (auth votes)
			signers: []string{"A", "B", "C"},
			votes: []testerVote{
				{signer: "C", voted: "D", auth: true},
				{signer: "A", voted: "C", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "A", voted: "D", auth: true},
			},
			results: []string{"A", "B"},
		}, {
			// Cascading changes are not allowed, only the account being voted on may change
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A", voted: "D", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "C"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
			},
			results: []string{"A", "B", "C"},
		}, {
			// Changes reaching consensus out of bounds (via a deauth) are not executed by
			// an illegal vote touching the subject, only a legal vote resolves them
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A", voted: "D", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "C"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
				{signer: "A"},
				{signer: "C", voted: "C", auth: true},
			},
			results: []string{"A", "B", "C"},
		}, {
			// Changes reaching consensus out of bounds (via a deauth) execute on a legal touch
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A", voted: "D", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "C"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
				{signer: "A"},
				{signer: "A", voted: "C", auth: false},
			},
			results: []string{"A", "B"},
		}, {
			// Changes reaching consensus out of bounds (via a deauth) may go out of consensus on first touch
			signers: []string{"A", "B", "C", "D"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: false},
				{signer: "B"},
				{signer: "C"},
				{signer: "A", voted: "D", auth: false},
				{signer: "B", voted: "C", auth: false},
				{signer: "C"},
				{signer: "A"},
				{signer: "B", voted: "D", auth: false},
				{signer: "C", voted: "D", auth: false},
				{signer: "A"},
				{signer: "B", voted: "C", auth: true},
			},
			results: []string{"A", "B", "C"},
		}, {
			// Ensure that pending votes don't survive authorization status changes. This
			// corner case can only appear if a signer is quickly added, removed and then
			// re-added (or the inverse), while one of the original voters dropped. If a
			// past vote is left cached in the system somewhere, this will interfere with
			// the final signer outcome.
			signers: []string{"A", "B", "C", "D", "E"},
			votes: []testerVote{
				{signer: "A", voted: "F", auth: true}, // Authorize F, 3 votes needed
				{signer: "B", voted: "F", auth: true},
				{signer: "C", voted: "F", auth: true},
				{signer: "D", voted: "F", auth: false}, // Deauthorize F, 4 votes needed (leave A's previous vote "unchanged")
				{signer: "E", voted: "F", auth: false},
				{signer: "B", voted: "F", auth: false},
				{signer: "C", voted: "F", auth: false},
				{signer: "D", voted: "F", auth: true}, // Almost authorize F, 2/3 votes needed
				{signer: "E", voted: "F", auth: true},
				{signer: "B", voted: "A", auth: false}, // Deauthorize A, 3 votes needed
				{signer: "C", voted: "A", auth: false},
				{signer: "D", voted: "A", auth: false},
				{signer: "B", voted: "F", auth: true}, // Finish authorizing F, 3/3 votes needed
			},
			results: []string{"B", "C", "D", "E", "F"},
		}, {
			// Epoch transitions reset all votes to allow chain checkpointing
			epoch:   3,
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A", voted: "C", auth: true},
				{signer: "B"},
				{signer: "A", checkpoint: []string{"A", "B"}},
				{signer: "B", voted: "C", auth: true},
			},
			results: []string{"A", "B"},
		}, {
			// An unauthorized signer should not be able to sign blocks
			signers: []string{"A"},
			votes: []testerVote{
				{signer: "B"},
			},
			failure: errUnauthorizedSigner,
		}, {
			// A checkpoint carrying a signer list different from the voted one is rejected
			epoch:   3,
			signers: []string{"A", "B"},
			votes: []testerVote{
				{signer: "A"},
				{signer: "B"},
				{signer: "A", checkpoint: []string{"A", "B", "C"}},
			},
			failure: errMismatchingCheckpointSigners,
		}, {
			// Snapshots survive being split across import batches
			epoch:   3,
			signers: []string{"A", "B", "C"},
			votes: []testerVote{
				{signer: "A", voted: "D", auth: true},
				{signer: "B", voted: "D", auth: true, newbatch: true},
				{signer: "C", checkpoint: []string{"A", "B", "C", "D"}},
				{signer: "D", newbatch: true},
				{signer: "A", voted: "C", auth: false},
			},
			results: []string{"A", "B", "C", "D"},
		},
	}

	// Run through the scenarios and test them
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), tt.run)
	}
}

func (tt *cliqueTest) run(t *testing.T) {
	// Create the account pool and generate the initial set of signers
	accounts := newTesterAccountPool()

	// Create the genesis block with the initial set of signers
	db := rawdb.NewMemoryDatabase()
	genesis, err := core.DefaultGenesis(accounts.addresses(tt.signers)).Commit(db)
	if err != nil {
		t.Fatalf("failed to commit genesis: %v", err)
	}
	engine := New(&params.CliqueConfig{Period: 1, Epoch: tt.epoch}, db)
	engine.fakeDiff = true

	chain, err := core.NewHeaderChain(db, engine)
	if err != nil {
		t.Fatalf("failed to create header chain: %v", err)
	}
	// Assemble a chain of headers from the cast votes
	var (
		headers = make([]*types.Header, 0, len(tt.votes))
		parent  = genesis
	)
	for _, vote := range tt.votes {
		header := accounts.header(parent, vote)
		headers = append(headers, header)
		parent = header
	}
	// Split the headers into batches and import them
	batches := [][]*types.Header{nil}
	for j, header := range headers {
		if tt.votes[j].newbatch {
			batches = append(batches, nil)
		}
		batches[len(batches)-1] = append(batches[len(batches)-1], header)
	}
	for j := 0; j < len(batches)-1; j++ {
		if k, err := chain.InsertHeaderChain(batches[j]); err != nil {
			t.Fatalf("failed to import batch %d, header %d: %v", j, k, err)
		}
	}
	if _, err := chain.InsertHeaderChain(batches[len(batches)-1]); !errors.Is(err, tt.failure) {
		t.Errorf("failure mismatch: have %v, want %v", err, tt.failure)
	}
	if tt.failure != nil {
		return
	}
	// No failure was produced or requested, generate the final voting snapshot
	head := headers[len(headers)-1]
	snap, err := engine.SnapshotFor(chain, head.Hash(), nil)
	if err != nil {
		t.Fatalf("failed to retrieve voting snapshot: %v", err)
	}
	// Verify the final list of signers against the expected ones
	signers := accounts.addresses(tt.results)
	result := snap.Signers()
	if len(result) != len(signers) {
		t.Fatalf("signers mismatch: have %x, want %x", result, signers)
	}
	for j := 0; j < len(result); j++ {
		if !slices.Equal(result[j][:], signers[j][:]) {
			t.Fatalf("signer %d: signer mismatch: have %x, want %x", j, result[j], signers[j])
		}
	}
}

// newTestEngine returns an engine over a fresh memory database together with
// a genesis header sealed for the given signers.
func newTestEngine(t *testing.T, accounts *testerAccountPool, epoch uint64, signers ...string) (*Clique, *types.Header) {
	t.Helper()

	db := rawdb.NewMemoryDatabase()
	genesis, err := core.DefaultGenesis(accounts.addresses(signers)).Commit(db)
	require.NoError(t, err)

	return New(&params.CliqueConfig{Period: 1, Epoch: epoch}, db), genesis
}

// checkInvariants asserts the structural invariants every snapshot upholds.
func checkInvariants(t *testing.T, snap *Snapshot) {
	t.Helper()

	seen := make(map[[2]common.Address]bool)
	counts := make(map[common.Address]uint32)
	for _, vote := range snap.votes {
		key := [2]common.Address{vote.Signer, vote.Address}
		require.False(t, seen[key], "duplicate vote from %x about %x", vote.Signer, vote.Address)
		seen[key] = true

		tally, ok := snap.tally[vote.Address]
		require.True(t, ok, "vote about %x without tally", vote.Address)
		if tally.Action == vote.Action {
			counts[vote.Address]++
		}
	}
	for subject, tally := range snap.tally {
		require.NotZero(t, tally.Votes, "empty tally for %x", subject)
		require.Equal(t, counts[subject], tally.Votes, "tally mismatch for %x", subject)
		require.True(t, tally.Action.ValidFor(snap.signers, subject), "stale tally for %x", subject)
	}
	require.True(t, slices.IsSortedFunc(snap.Signers(), common.Address.Cmp))
}

func TestApplyGenesis(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)
	require.Equal(t, genesis.Hash(), snap.Hash())
	require.Equal(t, accounts.addresses([]string{"A", "B"}), snap.Signers())
	require.Empty(t, snap.Votes())
	require.Empty(t, snap.Tallies())

	cached, ok := engine.recents.Get(genesis.Hash())
	require.True(t, ok)
	require.Same(t, snap, cached)
}

func TestApplyRejectsForeignParent(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	first := accounts.header(genesis, testerVote{signer: "A"})
	second := accounts.header(first, testerVote{signer: "A"})

	_, err = engine.Apply(snap, second)
	require.ErrorIs(t, err, errInvalidVotingChain)

	_, err = engine.Apply(nil, first)
	require.ErrorIs(t, err, errInvalidVotingChain)
}

func TestApplyInvalidNonce(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	header := accounts.header(genesis, testerVote{signer: "A", voted: "B"})
	header.Nonce = types.EncodeNonce(1)
	accounts.sign(header, "A")

	_, err = engine.Apply(snap, header)
	require.ErrorIs(t, err, errInvalidVote)
}

func TestApplyIllegalVoteIsDropped(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	// Nominating an existing signer makes no sense and leaves no trace
	header := accounts.header(genesis, testerVote{signer: "A", voted: "B", auth: true})
	next, err := engine.Apply(snap, header)
	require.NoError(t, err)
	require.Equal(t, header.Hash(), next.Hash())
	require.Equal(t, snap.Signers(), next.Signers())
	require.Empty(t, next.Votes())
	require.Empty(t, next.Tallies())

	cached, ok := engine.recents.Get(header.Hash())
	require.True(t, ok)
	require.Same(t, next, cached)
}

func TestApplyRetractsPreviousVote(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B", "C")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	// A nominates D, then changes its mind and votes to kick D, which is
	// meaningless for a non-signer and simply withdraws the nomination.
	first := accounts.header(genesis, testerVote{signer: "A", voted: "D", auth: true})
	snap, err = engine.Apply(snap, first)
	require.NoError(t, err)
	require.Len(t, snap.Votes(), 1)

	tally, ok := snap.Tally(accounts.address("D"))
	require.True(t, ok)
	require.Equal(t, Tally{Action: Nominate, Votes: 1}, tally)

	second := accounts.header(first, testerVote{signer: "A", voted: "D", auth: false})
	snap, err = engine.Apply(snap, second)
	require.NoError(t, err)
	require.Empty(t, snap.Votes())

	_, ok = snap.Tally(accounts.address("D"))
	require.False(t, ok)
}

func TestApplyDoesNotMutateParent(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B")

	parent, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	header := accounts.header(genesis, testerVote{signer: "A", voted: "C", auth: true})
	child, err := engine.Apply(parent, header)
	require.NoError(t, err)

	require.Empty(t, parent.Votes())
	require.Empty(t, parent.Tallies())
	require.Len(t, child.Votes(), 1)
	require.Equal(t, genesis.Hash(), parent.Hash())
}

func TestApplyForeignSnapshotNotCached(t *testing.T) {
	accounts := newTesterAccountPool()
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B")

	_, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	// A snapshot claiming C already signs at genesis lets a single vote from A
	// pass, but must not replace the real state of the block in the cache
	forged := newSnapshot(genesis.Hash(), accounts.addresses([]string{"A", "C"}))
	header := accounts.header(genesis, testerVote{signer: "A", voted: "D", auth: true})

	next, err := engine.Apply(forged, header)
	require.NoError(t, err)
	require.False(t, next.IsSigner(accounts.address("D")), "2 signers need 2 votes")
	_, ok := next.Tally(accounts.address("D"))
	require.True(t, ok)

	_, cached := engine.recents.Get(header.Hash())
	require.False(t, cached, "snapshot derived from a foreign parent was cached")

	// Rebuilding from the engine's own state yields the real snapshot
	snap, err := engine.SnapshotFor(missingHeaders{}, header.Hash(), []*types.Header{header})
	require.NoError(t, err)
	require.Equal(t, accounts.addresses([]string{"A", "B"}), snap.Signers())
	require.False(t, snap.Equal(next))

	// Applying on top of the engine's snapshot caches the result again
	again, err := engine.Apply(snap, accounts.header(header, testerVote{signer: "B"}))
	require.NoError(t, err)
	cachedSnap, ok := engine.recents.Get(again.Hash())
	require.True(t, ok)
	require.Same(t, again, cachedSnap)
}

// Tests that random voting histories never break the snapshot invariants.
func TestApplyInvariants(t *testing.T) {
	var (
		accounts = newTesterAccountPool()
		names    = []string{"A", "B", "C", "D", "E", "F", "G"}
		rnd      = rand.New(rand.NewSource(1))
	)
	engine, genesis := newTestEngine(t, accounts, 0, "A", "B", "C")

	snap, err := engine.Apply(nil, genesis)
	require.NoError(t, err)

	parent := genesis
	for i := 0; i < 300; i++ {
		signers := snap.Signers()
		if len(signers) == 0 {
			break
		}
		signer := signers[rnd.Intn(len(signers))]
		var label string
		for _, name := range names {
			if accounts.address(name) == signer {
				label = name
			}
		}
		vote := testerVote{signer: label, voted: names[rnd.Intn(len(names))], auth: rnd.Intn(2) == 0}
		header := accounts.header(parent, vote)

		next, err := engine.Apply(snap, header)
		require.NoError(t, err)
		require.Equal(t, header.Hash(), next.Hash())
		checkInvariants(t, next)

		snap, parent = next, header
	}
}
