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

// Package clique implements the proof-of-authority consensus engine.
package clique

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/poa/consensus"
	"github.com/sunyihoo/poa/params"
)

// Clique 是一种典型的 PoA 共识算法，它依赖于一组预先授权的签名者来维护区块链的安全。
//
// 授权签名者: 只有被授权的节点才能创建新的区块。签名者列表可以通过投票机制进行更新。
// 投票机制: 区块头的 Coinbase 字段是投票对象，nonce 字段 (nonceAuthVote 和 nonceDropVote) 表示添加或移除。
// Epoch 和检查点: 在每个 epoch 的开始（检查点），区块头携带完整的签名者列表并清空所有待处理的投票。

const (
	inmemorySnapshots = 128 // Number of recent vote snapshots to keep in memory
	// inmemorySnapshots 是指在内存中保留的最近投票快照的数量。
	inmemorySignatures = 4096 // Number of recent block signatures to keep in memory
	// inmemorySignatures 是指在内存中保留的最近区块签名的数量。

	reconstructLogInterval = 8 * time.Second // Interval between replay progress reports
)

// Clique proof-of-authority protocol constants.
// Clique 权益权威证明协议的常量。
var (
	epochLength = uint64(30000) // Default number of blocks after which to checkpoint and reset the pending votes
	// epochLength 是指在多少个区块之后进行检查点操作并重置待处理的投票。

	extraVanity = 32 // Fixed number of extra-data prefix bytes reserved for signer vanity
	// extraVanity 是指在区块头的 extra-data 字段中，用于存储签名者自定义信息的固定字节数。
	extraSeal = crypto.SignatureLength // Fixed number of extra-data suffix bytes reserved for signer seal
	// extraSeal 是指在区块头的 extra-data 字段中，用于存储签名者签名的固定字节数（65 字节）。

	uncleHash = types.CalcUncleHash(nil) // Always Keccak256(RLP([])) as uncles are meaningless outside of PoW.
	// uncleHash 是叔块哈希，在 PoA 共识中，叔块没有意义，因此始终是空叔块列表的哈希值。

	diffInTurn = big.NewInt(2) // Block difficulty for in-turn signatures
	diffNoTurn = big.NewInt(1) // Block difficulty for out-of-turn signatures
)

// Various error messages to mark blocks invalid. These should be private to
// prevent engine specific errors from being referenced in the remainder of the
// codebase, inherently breaking if the engine is swapped out. Please put common
// error types into the consensus package.
// 用于标记区块无效的各种错误消息。这些错误消息应该是私有的，请将通用的错误类型放在 consensus 包中。
var (
	// errUnknownBlock is returned when the list of signers is requested for a block
	// that is not part of the local blockchain.
	errUnknownBlock = errors.New("unknown block")

	// errInvalidCheckpointBeneficiary is returned if a checkpoint/epoch transition
	// block has a beneficiary set to non-zeroes.
	errInvalidCheckpointBeneficiary = errors.New("beneficiary in checkpoint block non-zero")

	// errInvalidVote is returned if a nonce value is something else that the two
	// allowed constants of 0x00..0 or 0xff..f.
	errInvalidVote = errors.New("vote nonce not 0x00..0 or 0xff..f")

	// errInvalidCheckpointVote is returned if a checkpoint/epoch transition block
	// has a vote nonce set to non-zeroes.
	errInvalidCheckpointVote = errors.New("vote nonce in checkpoint block non-zero")

	// errMissingVanity is returned if a block's extra-data section is shorter than
	// 32 bytes, which is required to store the signer vanity.
	errMissingVanity = errors.New("extra-data 32 byte vanity prefix missing")

	// errMissingSignature is returned if a block's extra-data section doesn't seem
	// to contain a 65 byte secp256k1 signature.
	errMissingSignature = errors.New("extra-data 65 byte signature suffix missing")

	// errExtraSigners is returned if non-checkpoint block contain signer data in
	// their extra-data fields.
	errExtraSigners = errors.New("non-checkpoint block contains extra signer list")

	// errInvalidCheckpointSigners is returned if a checkpoint block contains an
	// invalid list of signers (i.e. non divisible by 20 bytes).
	errInvalidCheckpointSigners = errors.New("invalid signer list on checkpoint block")

	// errMismatchingCheckpointSigners is returned if a checkpoint block contains a
	// list of signers different than the one the local node calculated.
	errMismatchingCheckpointSigners = errors.New("mismatching signer list on checkpoint block")

	// errInvalidMixDigest is returned if a block's mix digest is non-zero.
	errInvalidMixDigest = errors.New("non-zero mix digest")

	// errInvalidUncleHash is returned if a block contains an non-empty uncle list.
	errInvalidUncleHash = errors.New("non empty uncle hash")

	// errInvalidDifficulty is returned if the difficulty of a block neither 1 or 2.
	errInvalidDifficulty = errors.New("invalid difficulty")

	// errWrongDifficulty is returned if the difficulty of a block doesn't match the
	// turn of the signer.
	errWrongDifficulty = errors.New("wrong difficulty")

	// errInvalidTimestamp is returned if the timestamp of a block is lower than
	// the previous block's timestamp + the minimum block period.
	errInvalidTimestamp = errors.New("invalid timestamp")

	// errInvalidVotingChain is returned if an authorization list is attempted to
	// be modified via a header that does not extend the snapshot's block.
	errInvalidVotingChain = errors.New("invalid voting chain")

	// errUnauthorizedSigner is returned if a header is signed by a non-authorized entity.
	errUnauthorizedSigner = errors.New("unauthorized signer")

	// errMissingSigningKey is returned when sealing is requested before a signing
	// key was injected with Authorize.
	errMissingSigningKey = errors.New("no signing key authorized")
)

type sigLRU = lru.Cache[common.Hash, common.Address]

func newSigCache() *sigLRU {
	return lru.NewCache[common.Hash, common.Address](inmemorySignatures)
}

// Clique is the proof-of-authority consensus engine proposed to support the
// Ethereum testnet following the Ropsten attacks.
// Clique 是一种提议用于在 Ropsten 攻击后支持以太坊测试网络的权益权威证明共识引擎。
type Clique struct {
	config *params.CliqueConfig // Consensus engine configuration parameters
	db     Database             // Database to store and retrieve snapshot checkpoints

	recents    *lru.Cache[common.Hash, *Snapshot] // Snapshots for recent block to speed up reorgs
	signatures *sigLRU                            // Signatures of recent blocks to speed up mining
	snapLock   sync.Mutex                         // Serializes snapshot resolution and application
	// snapLock 串行化快照的解析与应用，保护共享的快照缓存。

	proposals map[common.Address]VoteAction // Current list of proposals we are pushing
	// proposals 是当前我们正在推动的提案列表，用于添加或删除授权签名者。

	signer  common.Address    // Ethereum address of the signing key
	signKey *ecdsa.PrivateKey // Signing key used to seal blocks
	lock    sync.RWMutex      // Protects the signer and proposals fields

	// The fields below are for testing only
	fakeDiff bool // Skip difficulty verifications
}

// New creates a Clique proof-of-authority consensus engine with the initial
// signers set to the ones provided by the user.
// New 函数创建一个新的 Clique 权益权威证明共识引擎。
func New(config *params.CliqueConfig, db Database) *Clique {
	// Set any missing consensus parameters to their defaults
	conf := *config
	if conf.Epoch == 0 {
		conf.Epoch = epochLength
	}
	return &Clique{
		config:     &conf,
		db:         db,
		recents:    lru.NewCache[common.Hash, *Snapshot](inmemorySnapshots),
		signatures: newSigCache(),
		proposals:  make(map[common.Address]VoteAction),
	}
}

// Config returns a copy of the effective engine configuration.
func (c *Clique) Config() params.CliqueConfig {
	return *c.config
}

// isCheckpoint reports whether number is an epoch transition block.
func (c *Clique) isCheckpoint(number uint64) bool {
	return number%c.config.Epoch == 0
}

// Author implements consensus.Engine, returning the Ethereum address recovered
// from the signature in the header's extra-data section.
// Author 实现了 consensus.Engine 接口，返回从区块头 extra-data 部分的签名中恢复出的以太坊地址。
func (c *Clique) Author(header *types.Header) (common.Address, error) {
	return ecrecover(header, c.signatures)
}

// VerifyHeader checks whether a header conforms to the consensus rules.
func (c *Clique) VerifyHeader(chain consensus.ChainHeaderReader, header *types.Header) error {
	return c.verifyHeader(chain, header, nil)
}

// VerifyHeaders is similar to VerifyHeader, but verifies a batch of headers. The
// method returns a quit channel to abort the operations and a results channel to
// retrieve the async verifications (the order is that of the input slice).
func (c *Clique) VerifyHeaders(chain consensus.ChainHeaderReader, headers []*types.Header) (chan<- struct{}, <-chan error) {
	abort := make(chan struct{})
	results := make(chan error, len(headers))

	go func() {
		for i, header := range headers {
			err := c.verifyHeader(chain, header, headers[:i])

			select {
			case <-abort:
				return
			case results <- err:
			}
		}
	}()
	return abort, results
}

// verifyHeader checks whether a header conforms to the consensus rules. The
// caller may optionally pass in a batch of parents (ascending order) to avoid
// looking those up from the database. This is useful for verifying a batch of
// new headers that are not yet part of the local chain.
// verifyHeader 检查区块头是否符合共识规则。调用者可以选择性地传入一个父区块头批处理（升序），以避免从数据库中查找。
func (c *Clique) verifyHeader(chain consensus.HeaderReader, header *types.Header, parents []*types.Header) error {
	if err := VerifyHeaderIntegrity(c.config.Epoch, header); err != nil {
		return err
	}
	// All basic checks passed, verify cascading fields
	return c.verifyCascadingFields(chain, header, parents)
}

// verifyCascadingFields verifies all the header fields that are not standalone,
// rather depend on a batch of previous headers. The caller may optionally pass
// in a batch of parents (ascending order) to avoid looking those up from the
// database.
func (c *Clique) verifyCascadingFields(chain consensus.HeaderReader, header *types.Header, parents []*types.Header) error {
	// The genesis block is the always valid dead-end
	number := header.Number.Uint64()
	if number == 0 {
		return nil
	}
	// Ensure that the block's timestamp isn't too close to its parent
	var parent *types.Header
	if len(parents) > 0 {
		parent = parents[len(parents)-1]
	} else {
		parent = chain.GetHeaderByHash(header.ParentHash)
	}
	if parent == nil || parent.Number.Uint64() != number-1 || parent.Hash() != header.ParentHash {
		return consensus.ErrUnknownAncestor
	}
	if parent.Time+c.config.Period > header.Time {
		return errInvalidTimestamp
	}
	// Verify that the gasUsed is <= gasLimit
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("invalid gasUsed: have %d, gasLimit %d", header.GasUsed, header.GasLimit)
	}
	// Retrieve the snapshot needed to verify this header and cache it
	snap, err := c.SnapshotFor(chain, header.ParentHash, parents)
	if err != nil {
		return err
	}
	// If the block is a checkpoint block, verify the signer list
	if c.isCheckpoint(number) {
		signers, err := CheckpointSigners(header)
		if err != nil {
			return err
		}
		if !slices.Equal(signers, snap.Signers()) {
			return errMismatchingCheckpointSigners
		}
	}
	// All basic checks passed, verify the seal and return
	return c.verifySeal(snap, header)
}

// Snapshot retrieves the authorization snapshot for the given block if it can be
// produced without replaying headers: from the in-memory cache, or for
// checkpoint blocks from the database or straight from the checkpoint header.
// Any other block yields an error; use SnapshotFor to reconstruct it.
// Snapshot 在不需要重放区块头的情况下检索给定区块的授权快照：来自内存缓存，或者对于检查点区块，来自数据库或直接来自检查点区块头。
func (c *Clique) Snapshot(chain consensus.HeaderReader, number uint64, hash common.Hash) (*Snapshot, error) {
	c.snapLock.Lock()
	defer c.snapLock.Unlock()

	return c.snapshot(chain, number, hash)
}

func (c *Clique) snapshot(chain consensus.HeaderReader, number uint64, hash common.Hash) (*Snapshot, error) {
	// If an in-memory snapshot was found, use that
	if s, ok := c.recents.Get(hash); ok {
		snapshotCacheHitMeter.Mark(1)
		return s, nil
	}
	snapshotCacheMissMeter.Mark(1)

	// Only checkpoints can be resolved without walking the chain
	if !c.isCheckpoint(number) {
		return nil, errSnapshotNotFound
	}
	// If an on-disk checkpoint snapshot can be found, use that
	s, err := loadSnapshot(c.db, hash)
	switch {
	case err == nil:
		snapshotDiskLoadMeter.Mark(1)
		log.Trace("Loaded voting snapshot from disk", "number", number, "hash", hash)
		c.recents.Add(hash, s)
		return s, nil
	case !errors.Is(err, errSnapshotNotFound):
		log.Warn("Failed to load voting snapshot", "number", number, "hash", hash, "err", err)
	}
	// Checkpoints are self contained, snapshot the signers in the header
	header := chain.GetHeaderByHash(hash)
	if header == nil || header.Number == nil || header.Number.Uint64() != number {
		return nil, errSnapshotNotFound
	}
	return c.checkpointSnapshot(header)
}

// checkpointSnapshot synthesizes the snapshot of a checkpoint block from the
// signer list embedded in its header, caches it and persists it to disk.
func (c *Clique) checkpointSnapshot(header *types.Header) (*Snapshot, error) {
	signers, err := CheckpointSigners(header)
	if err != nil {
		return nil, err
	}
	snap := newSnapshot(header.Hash(), signers)
	c.recents.Add(snap.hash, snap)

	if err := snap.store(c.db); err != nil {
		return nil, err
	}
	snapshotDiskStoreMeter.Mark(1)
	log.Debug("Stored checkpoint snapshot to disk", "number", header.Number, "hash", snap.hash)
	return snap, nil
}

// SnapshotFor resolves the authorization snapshot valid at the block with the
// given hash. Headers not yet part of the local chain may be passed in parents;
// they take precedence over the header store. Missing ancestors are
// reconstructed by walking back to the nearest cached or checkpoint snapshot and
// replaying the intermediate headers.
// SnapshotFor 解析给定哈希区块的授权快照。尚未写入本地链的区块头可以通过 parents 传入，并优先于区块头存储使用。
func (c *Clique) SnapshotFor(chain consensus.HeaderReader, hash common.Hash, parents []*types.Header) (*Snapshot, error) {
	c.snapLock.Lock()
	defer c.snapLock.Unlock()

	return c.snapshotFor(chain, hash, parents)
}

func (c *Clique) snapshotFor(chain consensus.HeaderReader, hash common.Hash, parents []*types.Header) (*Snapshot, error) {
	if s, ok := c.recents.Get(hash); ok {
		snapshotCacheHitMeter.Mark(1)
		return s, nil
	}
	inflight := make(map[common.Hash]*types.Header, len(parents))
	for _, parent := range parents {
		inflight[parent.Hash()] = parent
	}
	lookup := func(hash common.Hash) *types.Header {
		if header, ok := inflight[hash]; ok {
			return header
		}
		return chain.GetHeaderByHash(hash)
	}
	header := lookup(hash)
	if header == nil || header.Number == nil {
		return nil, consensus.ErrUnknownAncestor
	}
	number := header.Number.Uint64()
	if c.isCheckpoint(number) {
		return c.checkpointSnapshot(header)
	}
	// Walk back until a snapshot is found, gathering the skipped headers
	var (
		start   = time.Now()
		headers []*types.Header // newest first
		snap    *Snapshot
	)
	for ancestor, ancestorHash := number-1, header.ParentHash; snap == nil; {
		s, err := c.snapshot(chain, ancestor, ancestorHash)
		if err == nil {
			snap = s
			break
		}
		if !errors.Is(err, errSnapshotNotFound) {
			return nil, err
		}
		parent := lookup(ancestorHash)
		if parent == nil || parent.Number == nil || parent.Number.Uint64() != ancestor {
			return nil, consensus.ErrUnknownAncestor
		}
		if c.isCheckpoint(ancestor) {
			if snap, err = c.checkpointSnapshot(parent); err != nil {
				return nil, err
			}
			break
		}
		headers = append(headers, parent)
		ancestor, ancestorHash = ancestor-1, parent.ParentHash
	}
	// Previous snapshot found, replay the skipped headers oldest first
	logged := time.Now()
	for i := len(headers) - 1; i >= 0; i-- {
		var err error
		if snap, err = c.apply(snap, headers[i]); err != nil {
			return nil, err
		}
		c.recents.Add(snap.hash, snap)
		// If we're taking too much time (ecrecover), notify the user once a while
		if time.Since(logged) > reconstructLogInterval {
			log.Info("Reconstructing voting history", "processed", len(headers)-i, "total", len(headers), "elapsed", common.PrettyDuration(time.Since(start)))
			logged = time.Now()
		}
	}
	snap, err := c.apply(snap, header)
	if err != nil {
		return nil, err
	}
	c.recents.Add(snap.hash, snap)
	snapshotReplayMeter.Mark(int64(len(headers) + 1))
	snapshotCreateTimer.UpdateSince(start)

	if elapsed := time.Since(start); elapsed > reconstructLogInterval {
		log.Info("Reconstructed voting history", "processed", len(headers)+1, "elapsed", common.PrettyDuration(elapsed))
	}
	return snap, nil
}

// Apply derives the snapshot valid after header from the snapshot of its parent.
// The result is cached only if it was derived from a checkpoint or from the
// snapshot the engine itself holds for the parent, so a snapshot assembled by
// the caller never shadows the real voting state of a block.
// Apply 根据父区块的快照推导出应用 header 之后的快照，只有来源可信时才写入缓存。
func (c *Clique) Apply(snap *Snapshot, header *types.Header) (*Snapshot, error) {
	if header.Number == nil {
		return nil, errUnknownBlock
	}
	c.snapLock.Lock()
	defer c.snapLock.Unlock()

	next, err := c.apply(snap, header)
	if err != nil {
		return nil, err
	}
	if c.isCheckpoint(header.Number.Uint64()) || c.known(snap) {
		c.recents.Add(next.hash, next)
	}
	return next, nil
}

// known reports whether snap matches the snapshot cached for its block.
func (c *Clique) known(snap *Snapshot) bool {
	cached, ok := c.recents.Get(snap.hash)
	return ok && (cached == snap || cached.Equal(snap))
}

// apply creates a new authorization snapshot by applying the given header to
// the original one. Votes that make no sense in the current signer set are
// dropped without raising an error. Caching the result is up to the caller.
// apply 通过将给定的区块头应用到原始快照上，创建一个新的授权快照。无意义的投票会被直接丢弃，不会返回错误。
func (c *Clique) apply(snap *Snapshot, header *types.Header) (*Snapshot, error) {
	var (
		number = header.Number.Uint64()
		hash   = header.Hash()
	)
	// Checkpoint blocks carry the full signer list and reset any pending votes
	if c.isCheckpoint(number) {
		signers, err := CheckpointSigners(header)
		if err != nil {
			return nil, err
		}
		return newSnapshot(hash, signers), nil
	}
	if snap == nil || header.ParentHash != snap.hash {
		return nil, errInvalidVotingChain
	}
	// Resolve the authorization key and the vote carried by the header
	signer, err := ecrecover(header, c.signatures)
	if err != nil {
		return nil, err
	}
	action, err := actionFromNonce(header.Nonce[:])
	if err != nil {
		return nil, err
	}
	var (
		builder = snap.builder(hash)
		subject = header.Coinbase
	)
	// Discard any previous votes from the signer about the same subject
	builder.retract(signer, subject)

	// Tally up the new vote and update the signer list if it passed
	if builder.cast(Vote{Signer: signer, Block: number, Address: subject, Action: action}) {
		if tally, passed := builder.passed(subject); passed {
			builder.resolve(subject, tally.Action)
			log.Debug("Clique proposal passed", "number", number, "subject", subject, "action", tally.Action, "votes", tally.Votes)
		}
	}
	return builder.build(), nil
}

// verifySeal checks whether the signature contained in the header satisfies the
// consensus protocol requirements against the parent snapshot.
func (c *Clique) verifySeal(snap *Snapshot, header *types.Header) error {
	// Verifying the genesis block is not supported
	number := header.Number.Uint64()
	if number == 0 {
		return errUnknownBlock
	}
	// Resolve the authorization key and check against signers
	signer, err := ecrecover(header, c.signatures)
	if err != nil {
		return err
	}
	if !snap.IsSigner(signer) {
		return errUnauthorizedSigner
	}
	// Ensure that the difficulty corresponds to the turn-ness of the signer
	if !c.fakeDiff {
		inturn := snap.InTurn(number, signer)
		if inturn && header.Difficulty.Cmp(diffInTurn) != 0 {
			return errWrongDifficulty
		}
		if !inturn && header.Difficulty.Cmp(diffNoTurn) != 0 {
			return errWrongDifficulty
		}
	}
	return nil
}

// Prepare implements consensus.Engine, preparing all the consensus fields of the
// header for running the transactions on top.
func (c *Clique) Prepare(chain consensus.ChainHeaderReader, header *types.Header) error {
	// If the block isn't a checkpoint, cast a random vote (good enough for now)
	header.Coinbase = common.Address{}
	header.Nonce = types.BlockNonce{}

	number := header.Number.Uint64()
	if number == 0 {
		return errUnknownBlock
	}
	// Assemble the voting snapshot to check which votes make sense
	snap, err := c.SnapshotFor(chain, header.ParentHash, nil)
	if err != nil {
		return err
	}
	c.lock.RLock()
	if !c.isCheckpoint(number) {
		// Gather all the proposals that make sense voting on
		addresses := make([]common.Address, 0, len(c.proposals))
		for address, action := range c.proposals {
			if snap.validVote(address, action) {
				addresses = append(addresses, address)
			}
		}
		// If there's pending proposals, cast a vote on them
		if len(addresses) > 0 {
			header.Coinbase = addresses[rand.Intn(len(addresses))]
			copy(header.Nonce[:], c.proposals[header.Coinbase].Nonce())
		}
	}
	// Copy signer protected by mutex to avoid race condition
	signer := c.signer
	c.lock.RUnlock()

	// Set the correct difficulty
	header.Difficulty = calcDifficulty(snap, number, signer)

	// Ensure the extra data has all its components
	if len(header.Extra) < extraVanity {
		header.Extra = append(header.Extra, make([]byte, extraVanity-len(header.Extra))...)
	}
	header.Extra = header.Extra[:extraVanity]

	if c.isCheckpoint(number) {
		for _, signer := range snap.Signers() {
			header.Extra = append(header.Extra, signer[:]...)
		}
	}
	header.Extra = append(header.Extra, make([]byte, extraSeal)...)

	// Mix digest is reserved for now, set to empty
	header.MixDigest = common.Hash{}
	header.UncleHash = uncleHash

	// Ensure the timestamp has the correct delay
	parent := chain.GetHeaderByHash(header.ParentHash)
	if parent == nil {
		return consensus.ErrUnknownAncestor
	}
	header.Time = parent.Time + c.config.Period
	if now := uint64(time.Now().Unix()); header.Time < now {
		header.Time = now
	}
	return nil
}

// Authorize injects a private key into the consensus engine to mint new blocks
// with.
func (c *Clique) Authorize(key *ecdsa.PrivateKey) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.signer = crypto.PubkeyToAddress(key.PublicKey)
	c.signKey = key
}

// Propose injects a new authorization proposal that the signer will attempt to
// push through.
func (c *Clique) Propose(address common.Address, action VoteAction) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.proposals[address] = action
}

// Discard drops a currently running proposal, stopping the signer from casting
// further votes (either for or against).
func (c *Clique) Discard(address common.Address) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.proposals, address)
}

// Proposals returns the current proposals the node tries to uphold and vote on.
func (c *Clique) Proposals() map[common.Address]VoteAction {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return maps.Clone(c.proposals)
}

// Seal implements consensus.Engine, signing the prepared header with the local
// signing credentials. Checkpoint headers get the parent's signer list embedded.
func (c *Clique) Seal(chain consensus.ChainHeaderReader, header *types.Header) (*types.Header, error) {
	number := header.Number.Uint64()
	if number == 0 {
		return nil, errUnknownBlock
	}
	c.lock.RLock()
	signer, key := c.signer, c.signKey
	c.lock.RUnlock()

	if key == nil {
		return nil, errMissingSigningKey
	}
	snap, err := c.SnapshotFor(chain, header.ParentHash, nil)
	if err != nil {
		return nil, err
	}
	if !snap.IsSigner(signer) {
		return nil, errUnauthorizedSigner
	}
	var signers []common.Address
	if c.isCheckpoint(number) {
		signers = snap.Signers()
	}
	return SignHeader(header, key, signers)
}

// CalcDifficulty is the difficulty adjustment algorithm. It returns the difficulty
// that a new block should have:
// * DIFF_NOTURN(1) if BLOCK_NUMBER % SIGNER_COUNT != SIGNER_INDEX
// * DIFF_INTURN(2) if BLOCK_NUMBER % SIGNER_COUNT == SIGNER_INDEX
func (c *Clique) CalcDifficulty(chain consensus.ChainHeaderReader, time uint64, parent *types.Header) *big.Int {
	snap, err := c.SnapshotFor(chain, parent.Hash(), nil)
	if err != nil {
		return nil
	}
	c.lock.RLock()
	signer := c.signer
	c.lock.RUnlock()
	return calcDifficulty(snap, parent.Number.Uint64()+1, signer)
}

func calcDifficulty(snap *Snapshot, number uint64, signer common.Address) *big.Int {
	if snap.InTurn(number, signer) {
		return new(big.Int).Set(diffInTurn)
	}
	return new(big.Int).Set(diffNoTurn)
}

// SealHash returns the hash of a block prior to it being sealed.
func (c *Clique) SealHash(header *types.Header) (common.Hash, error) {
	return SealHash(header)
}

// Close implements consensus.Engine. It's a noop for clique as there are no background threads.
func (c *Clique) Close() error {
	return nil
}

// APIs implements consensus.Engine, returning the user facing RPC API to allow
// controlling the signer voting.
func (c *Clique) APIs(chain consensus.ChainHeaderReader) []rpc.API {
	return []rpc.API{{
		Namespace: "clique",
		Service:   &API{chain: chain, clique: c},
	}}
}
