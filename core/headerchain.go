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
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sunyihoo/poa/consensus"
	"github.com/sunyihoo/poa/internal/syncx"
)

const (
	headerCacheLimit = 512  // 头部缓存限制
	tdCacheLimit     = 1024 // 总难度缓存限制
	numberCacheLimit = 2048 // 区块号缓存限制

	statsReportLimit = 8 * time.Second
)

var (
	headHeaderGauge   = metrics.NewRegisteredGauge("chain/head/header", nil)
	headerImportMeter = metrics.NewRegisteredMeter("chain/headers/import", nil)
	headerReorgMeter  = metrics.NewRegisteredMeter("chain/headers/reorg", nil)
)

// WriteStatus reports whether an imported segment became canonical.
type WriteStatus byte

const (
	NonStatTy WriteStatus = iota
	CanonStatTy
)

// HeaderChain implements the basic block header chain logic on top of a
// key-value database. Headers are validated by the consensus engine before
// being written, and the heaviest chain by total difficulty is kept canonical.
// HeaderChain 在键值数据库之上实现基本的区块头链逻辑。区块头在写入前由共识引擎验证，总难度最大的链保持为规范链。
//
// The data components maintained by HeaderChain include:
//
// - total difficulty
// - header
// - block hash -> number mapping
// - canonical number -> hash mapping
// - head header flag.
type HeaderChain struct {
	chainDb       ethdb.Database
	genesisHeader *types.Header

	currentHeader atomic.Pointer[types.Header] // Current head of the header chain

	headerCache *lru.Cache[common.Hash, *types.Header]
	tdCache     *lru.Cache[common.Hash, *big.Int] // most recent total difficulties
	numberCache *lru.Cache[common.Hash, uint64]   // most recent block numbers

	engine  consensus.Engine
	chainmu *syncx.ClosableMutex // Serializes header imports, closed on Stop
	quit    atomic.Bool          // Set when the chain is stopping
}

// NewHeaderChain creates a new HeaderChain over a database that already holds a
// genesis header (see Genesis.Commit).
// NewHeaderChain 在已经包含创世区块头的数据库上创建一个新的 HeaderChain。
func NewHeaderChain(chainDb ethdb.Database, engine consensus.Engine) (*HeaderChain, error) {
	hc := &HeaderChain{
		chainDb:     chainDb,
		headerCache: lru.NewCache[common.Hash, *types.Header](headerCacheLimit),
		tdCache:     lru.NewCache[common.Hash, *big.Int](tdCacheLimit),
		numberCache: lru.NewCache[common.Hash, uint64](numberCacheLimit),
		engine:      engine,
		chainmu:     syncx.NewClosableMutex(),
	}
	hc.genesisHeader = hc.GetHeaderByNumber(0)
	if hc.genesisHeader == nil {
		return nil, ErrNoGenesis
	}
	hc.currentHeader.Store(hc.genesisHeader)
	if head := rawdb.ReadHeadHeaderHash(chainDb); head != (common.Hash{}) {
		if chead := hc.GetHeaderByHash(head); chead != nil {
			hc.currentHeader.Store(chead)
		}
	}
	headHeaderGauge.Update(hc.CurrentHeader().Number.Int64())
	return hc, nil
}

// Stop interrupts any running import and waits for it to return. Imports
// after Stop fail with errChainStopped.
func (hc *HeaderChain) Stop() {
	if !hc.quit.CompareAndSwap(false, true) {
		return
	}
	hc.chainmu.Close()
}

// Engine returns the consensus engine headers are verified with.
func (hc *HeaderChain) Engine() consensus.Engine { return hc.engine }

// Genesis returns the genesis header of the chain.
func (hc *HeaderChain) Genesis() *types.Header { return hc.genesisHeader }

// GetBlockNumber retrieves the block number belonging to the given hash
// from the cache or database
func (hc *HeaderChain) GetBlockNumber(hash common.Hash) *uint64 {
	if cached, ok := hc.numberCache.Get(hash); ok {
		return &cached
	}
	number := rawdb.ReadHeaderNumber(hc.chainDb, hash)
	if number != nil {
		hc.numberCache.Add(hash, *number)
	}
	return number
}

// GetTd retrieves a block's total difficulty in the canonical chain from the
// database by hash and number, caching it if found.
func (hc *HeaderChain) GetTd(hash common.Hash, number uint64) *big.Int {
	if cached, ok := hc.tdCache.Get(hash); ok {
		return cached
	}
	td := ReadTd(hc.chainDb, hash, number)
	if td == nil {
		return nil
	}
	hc.tdCache.Add(hash, td)
	return td
}

// GetHeader retrieves a block header from the database by hash and number,
// caching it if found.
// GetHeader 从数据库中按哈希和编号检索区块头部，如果找到则缓存。
func (hc *HeaderChain) GetHeader(hash common.Hash, number uint64) *types.Header {
	if header, ok := hc.headerCache.Get(hash); ok {
		return header
	}
	header := rawdb.ReadHeader(hc.chainDb, hash, number)
	if header == nil {
		return nil
	}
	hc.headerCache.Add(hash, header)
	return header
}

// GetHeaderByHash retrieves a block header from the database by hash, caching it if
// found.
func (hc *HeaderChain) GetHeaderByHash(hash common.Hash) *types.Header {
	number := hc.GetBlockNumber(hash)
	if number == nil {
		return nil
	}
	return hc.GetHeader(hash, *number)
}

// HasHeader checks if a block header is present in the database or not.
func (hc *HeaderChain) HasHeader(hash common.Hash, number uint64) bool {
	if hc.numberCache.Contains(hash) || hc.headerCache.Contains(hash) {
		return true
	}
	return rawdb.HasHeader(hc.chainDb, hash, number)
}

// GetHeaderByNumber retrieves a block header from the database by number,
// caching it (associated with its hash) if found.
// GetHeaderByNumber 从数据库中按编号检索规范链上的区块头部。
func (hc *HeaderChain) GetHeaderByNumber(number uint64) *types.Header {
	hash := rawdb.ReadCanonicalHash(hc.chainDb, number)
	if hash == (common.Hash{}) {
		return nil
	}
	return hc.GetHeader(hash, number)
}

// GetCanonicalHash returns the canonical hash at the given height.
func (hc *HeaderChain) GetCanonicalHash(number uint64) common.Hash {
	return rawdb.ReadCanonicalHash(hc.chainDb, number)
}

// CurrentHeader retrieves the current head header of the canonical chain. The
// header is retrieved from the HeaderChain's internal cache.
func (hc *HeaderChain) CurrentHeader() *types.Header {
	return hc.currentHeader.Load()
}

// ValidateHeaderChain checks that the headers are contiguous and runs them
// through the consensus engine. It returns the index of the first failing
// header.
// ValidateHeaderChain 检查区块头是否连续并交由共识引擎验证，返回第一个失败区块头的索引。
func (hc *HeaderChain) ValidateHeaderChain(chain []*types.Header) (int, error) {
	// Do a sanity check that the provided chain is actually ordered and linked
	for i := 1; i < len(chain); i++ {
		if chain[i].Number.Uint64() != chain[i-1].Number.Uint64()+1 || chain[i].ParentHash != chain[i-1].Hash() {
			hash := chain[i].Hash()
			parentHash := chain[i-1].Hash()
			log.Error("Non contiguous header insert", "number", chain[i].Number, "hash", hash,
				"parent", chain[i].ParentHash, "prevnumber", chain[i-1].Number, "prevhash", parentHash)

			return i, fmt.Errorf("non contiguous insert: item %d is #%d [%x..], item %d is #%d [%x..] (parent [%x..])", i-1, chain[i-1].Number,
				parentHash.Bytes()[:4], i, chain[i].Number, hash.Bytes()[:4], chain[i].ParentHash[:4])
		}
	}
	// Start the parallel verifier
	abort, results := hc.engine.VerifyHeaders(hc, chain)
	defer close(abort)

	for i := range chain {
		if hc.quit.Load() {
			log.Debug("Premature abort during headers verification")
			return i, errInsertionInterrupted
		}
		if err := <-results; err != nil {
			return i, err
		}
	}
	return 0, nil
}

// InsertHeaderChain validates and writes the given headers, switching the
// canonical chain over if the new segment is heavier than the local head. The
// returned index points at the offending header on failure.
//
// This insert is all-or-nothing. If this returns an error, no headers were written.
// InsertHeaderChain 验证并写入给定的区块头；如果新链段比本地链头更重则切换规范链。插入是全或无的。
func (hc *HeaderChain) InsertHeaderChain(chain []*types.Header) (int, error) {
	if len(chain) == 0 {
		return 0, nil
	}
	if !hc.chainmu.TryLock() {
		return 0, errChainStopped
	}
	defer hc.chainmu.Unlock()

	// Skip the headers we already have, exports usually start at genesis
	var skipped int
	for skipped < len(chain) && hc.HasHeader(chain[skipped].Hash(), chain[skipped].Number.Uint64()) {
		skipped++
	}
	if chain = chain[skipped:]; len(chain) == 0 {
		return 0, nil
	}
	start := time.Now()
	if i, err := hc.ValidateHeaderChain(chain); err != nil {
		return skipped + i, err
	}
	res, err := hc.writeHeaders(chain)
	if err != nil {
		return 0, err
	}
	headerImportMeter.Mark(int64(res.imported))

	// Report some public statistics so the user has a clue what's going on
	context := []interface{}{
		"count", res.imported,
		"elapsed", common.PrettyDuration(time.Since(start)),
		"number", res.lastHeader.Number, "hash", res.lastHash,
	}
	if timestamp := time.Unix(int64(res.lastHeader.Time), 0); time.Since(timestamp) > time.Minute {
		context = append(context, "age", common.PrettyAge(timestamp))
	}
	if ignored := res.ignored + skipped; ignored > 0 {
		context = append(context, "ignored", ignored)
	}
	if res.status == CanonStatTy {
		log.Info("Imported new block headers", context...)
	} else {
		log.Debug("Imported side chain headers", context...)
	}
	return 0, nil
}

type headerWriteResult struct {
	status     WriteStatus
	ignored    int
	imported   int
	lastHash   common.Hash
	lastHeader *types.Header
}

// writeHeaders writes a validated, contiguous chain of headers in a single batch
// and applies the last one as the chain head if its total difficulty exceeds
// the local head's.
func (hc *HeaderChain) writeHeaders(headers []*types.Header) (*headerWriteResult, error) {
	ptd := hc.GetTd(headers[0].ParentHash, headers[0].Number.Uint64()-1)
	if ptd == nil {
		return nil, consensus.ErrUnknownAncestor
	}
	var (
		newTD    = new(big.Int).Set(ptd)
		batch    = hc.chainDb.NewBatch()
		inserted []*types.Header
		tds      = make([]*big.Int, 0, len(headers))
		last     = headers[len(headers)-1]
		result   = &headerWriteResult{status: NonStatTy, lastHash: last.Hash(), lastHeader: last}
	)
	for _, header := range headers {
		hash, number := header.Hash(), header.Number.Uint64()
		newTD.Add(newTD, header.Difficulty)
		if hc.HasHeader(hash, number) {
			result.ignored++
			continue
		}
		WriteTd(batch, hash, number, newTD)
		rawdb.WriteHeader(batch, header)
		inserted = append(inserted, header)
		tds = append(tds, new(big.Int).Set(newTD))
	}
	result.imported = len(inserted)

	// Extend or switch the canonical chain if the new segment is heavier
	head := hc.CurrentHeader()
	localTD := hc.GetTd(head.Hash(), head.Number.Uint64())
	reorg := localTD == nil || newTD.Cmp(localTD) > 0
	if reorg {
		if err := hc.reorg(batch, head, headers); err != nil {
			return nil, err
		}
		result.status = CanonStatTy
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	for i, header := range inserted {
		hash := header.Hash()
		hc.headerCache.Add(hash, header)
		hc.numberCache.Add(hash, header.Number.Uint64())
		hc.tdCache.Add(hash, tds[i])
	}
	if reorg {
		hc.currentHeader.Store(last)
		headHeaderGauge.Update(last.Number.Int64())
	}
	return result, nil
}

// reorg rewrites the canonical number->hash mappings so that the last header of
// the contiguous segment becomes the canonical head. The ancestors of the
// segment must already be stored in the database.
func (hc *HeaderChain) reorg(batch ethdb.Batch, oldHead *types.Header, segment []*types.Header) error {
	head := segment[len(segment)-1]

	// Delete any canonical number assignments above the new head
	for i := head.Number.Uint64() + 1; i <= oldHead.Number.Uint64(); i++ {
		rawdb.DeleteCanonicalHash(batch, i)
	}
	// Overwrite the canonical chain backwards until it joins the old one
	for _, header := range segment {
		rawdb.WriteCanonicalHash(batch, header.Hash(), header.Number.Uint64())
	}
	var (
		first  = segment[0]
		hash   = first.ParentHash
		number = first.Number.Uint64() - 1
	)
	for hc.GetCanonicalHash(number) != hash {
		if number == 0 {
			return errors.New("reorg reached a foreign genesis")
		}
		ancestor := hc.GetHeader(hash, number)
		if ancestor == nil {
			return consensus.ErrUnknownAncestor
		}
		rawdb.WriteCanonicalHash(batch, hash, number)
		hash, number = ancestor.ParentHash, number-1
	}
	if number < oldHead.Number.Uint64() {
		headerReorgMeter.Mark(1)
		log.Info("Header chain reorg", "common", number, "oldnumber", oldHead.Number, "oldhash", oldHead.Hash(), "newnumber", head.Number, "newhash", head.Hash())
	}
	rawdb.WriteHeadHeaderHash(batch, head.Hash())
	return nil
}

// Export writes the canonical headers in [first, last] to w as a stream of
// RLP encoded headers.
// Export 将规范链上 [first, last] 范围内的区块头以 RLP 流的形式写入 w。
func (hc *HeaderChain) Export(w io.Writer, first, last uint64) error {
	if first > last {
		return fmt.Errorf("export failed: first (%d) is greater than last (%d)", first, last)
	}
	log.Info("Exporting batch of headers", "count", last-first+1)

	var (
		parentHash common.Hash
		start      = time.Now()
		reported   = time.Now()
	)
	for nr := first; nr <= last; nr++ {
		header := hc.GetHeaderByNumber(nr)
		if header == nil {
			return fmt.Errorf("export failed on #%d: not found", nr)
		}
		if nr > first && header.ParentHash != parentHash {
			return errors.New("export failed: chain reorg during export")
		}
		parentHash = header.Hash()
		if err := header.EncodeRLP(w); err != nil {
			return err
		}
		if time.Since(reported) >= statsReportLimit {
			log.Info("Exporting headers", "exported", nr-first, "elapsed", common.PrettyDuration(time.Since(start)))
			reported = time.Now()
		}
	}
	return nil
}
