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
	"crypto/ecdsa"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// errPostMergeField is returned when a header carries fields introduced by the
// Shanghai, Cancun or Prague upgrades, none of which Clique supports.
var errPostMergeField = errors.New("clique does not support post-London header fields")

// SealHash returns the hash of a block prior to it being sealed: the keccak of
// the RLP encoded header with the trailing 65 byte signature stripped from the
// extra-data.
// SealHash 返回区块在封装之前的哈希：去掉 extra-data 末尾 65 字节签名后的区块头 RLP 编码的 keccak 哈希。
func SealHash(header *types.Header) (hash common.Hash, err error) {
	hasher := sha3.NewLegacyKeccak256()
	if err := encodeSigHeader(hasher, header); err != nil {
		return common.Hash{}, err
	}
	hasher.(crypto.KeccakState).Read(hash[:])
	return hash, nil
}

// CliqueRLP returns the rlp bytes which needs to be signed for the proof-of-authority
// sealing. The RLP to sign consists of the entire header apart from the 65 byte signature
// contained at the end of the extra data.
//
// Note, the method requires the extra data to be at least 65 bytes. This is done
// to avoid accidentally using both forms (signature present or not), which could
// be abused to produce different hashes for the same header.
func CliqueRLP(header *types.Header) ([]byte, error) {
	b := new(bytes.Buffer)
	if err := encodeSigHeader(b, header); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func encodeSigHeader(w io.Writer, header *types.Header) error {
	if len(header.Extra) < extraSeal {
		return errMissingSignature
	}
	if header.WithdrawalsHash != nil || header.ExcessBlobGas != nil || header.BlobGasUsed != nil ||
		header.ParentBeaconRoot != nil || header.RequestsHash != nil {
		return errPostMergeField
	}
	enc := []interface{}{
		header.ParentHash,
		header.UncleHash,
		header.Coinbase,
		header.Root,
		header.TxHash,
		header.ReceiptHash,
		header.Bloom,
		header.Difficulty,
		header.Number,
		header.GasLimit,
		header.GasUsed,
		header.Time,
		header.Extra[:len(header.Extra)-extraSeal],
		header.MixDigest,
		header.Nonce,
	}
	if header.BaseFee != nil {
		enc = append(enc, header.BaseFee)
	}
	return rlp.Encode(w, enc)
}

// ecrecover extracts the Ethereum account address from a signed header.
// ecrecover 函数从已签名的区块头中提取以太坊账户地址。
func ecrecover(header *types.Header, sigcache *sigLRU) (common.Address, error) {
	// If the signature's already cached, return that
	hash := header.Hash()
	if address, known := sigcache.Get(hash); known {
		return address, nil
	}
	// Retrieve the signature from the header extra-data
	if len(header.Extra) < extraSeal {
		return common.Address{}, errMissingSignature
	}
	signature := header.Extra[len(header.Extra)-extraSeal:]

	// Recover the public key and the Ethereum address
	sighash, err := SealHash(header)
	if err != nil {
		return common.Address{}, err
	}
	pubkey, err := crypto.Ecrecover(sighash.Bytes(), signature)
	if err != nil {
		return common.Address{}, err
	}
	var signer common.Address
	copy(signer[:], crypto.Keccak256(pubkey[1:])[12:])

	sigcache.Add(hash, signer)
	return signer, nil
}

// CheckpointSigners parses the signer list embedded into the extra-data of a
// checkpoint header: [32 byte vanity][N x 20 byte address][65 byte seal].
// CheckpointSigners 解析检查点区块头 extra-data 中嵌入的签名者列表。
func CheckpointSigners(header *types.Header) ([]common.Address, error) {
	if len(header.Extra) < extraVanity {
		return nil, errMissingVanity
	}
	if len(header.Extra) < extraVanity+extraSeal {
		return nil, errMissingSignature
	}
	section := header.Extra[extraVanity : len(header.Extra)-extraSeal]
	if len(section)%common.AddressLength != 0 {
		return nil, errInvalidCheckpointSigners
	}
	signers := make([]common.Address, len(section)/common.AddressLength)
	for i := range signers {
		copy(signers[i][:], section[i*common.AddressLength:])
	}
	return signers, nil
}

// SignHeader returns a copy of the header with its extra-data rebuilt as the
// original vanity, the given signer list (only pass one for checkpoint blocks)
// and a fresh seal produced with key.
// SignHeader 返回区块头的副本，其 extra-data 被重建为原有的 vanity、给定的签名者列表（仅检查点区块需要）以及用 key 生成的新签名。
func SignHeader(header *types.Header, key *ecdsa.PrivateKey, signers []common.Address) (*types.Header, error) {
	sealed := types.CopyHeader(header)

	extra := make([]byte, extraVanity, extraVanity+len(signers)*common.AddressLength+extraSeal)
	copy(extra, header.Extra)
	for _, signer := range signers {
		extra = append(extra, signer[:]...)
	}
	sealed.Extra = append(extra, make([]byte, extraSeal)...)

	sighash, err := SealHash(sealed)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(sighash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	copy(sealed.Extra[len(sealed.Extra)-extraSeal:], sig)
	return sealed, nil
}
