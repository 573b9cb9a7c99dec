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

package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/poa/cmd/utils"
	"github.com/sunyihoo/poa/consensus/clique"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	countFlag = &cli.IntFlag{
		Name:     "count",
		Usage:    "Number of headers to seal",
		Value:    1,
		Category: flags.CliqueCategory,
	}
	sealCommand = &cli.Command{
		Action:    sealHeaders,
		Name:      "seal",
		Usage:     "Seal new headers on top of the local chain",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			utils.SignerKeyFlag,
			utils.ProposeFlag,
			countFlag,
		},
		Description: `
The seal command signs empty headers with the key in --signer.key and appends
them to the local chain, waiting for the clique period between two headers.
Votes given with --propose are cast on the headers as long as they make sense
for the current signer set.`,
	}
)

// parseProposals parses <address>=<true|false> pairs into vote actions.
func parseProposals(values []string) (map[common.Address]clique.VoteAction, error) {
	proposals := make(map[common.Address]clique.VoteAction, len(values))
	for _, value := range values {
		hex, authStr, ok := strings.Cut(value, "=")
		if !ok || !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("invalid proposal %q, want <address>=<true|false>", value)
		}
		auth, err := strconv.ParseBool(authStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proposal %q: %v", value, err)
		}
		action := clique.Kick
		if auth {
			action = clique.Nominate
		}
		proposals[common.HexToAddress(hex)] = action
	}
	return proposals, nil
}

func sealHeaders(ctx *cli.Context) error {
	keyfile := ctx.String(utils.SignerKeyFlag.Name)
	if keyfile == "" {
		utils.Fatalf("Must supply the signing key with --%s", utils.SignerKeyFlag.Name)
	}
	key, err := crypto.LoadECDSA(keyfile)
	if err != nil {
		utils.Fatalf("Failed to load signer key: %v", err)
	}
	proposals, err := parseProposals(ctx.StringSlice(utils.ProposeFlag.Name))
	if err != nil {
		utils.Fatalf("%v", err)
	}
	db, engine, chain := makeChain(ctx, loadBaseConfig(ctx))
	defer db.Close()
	defer chain.Stop()

	engine.Authorize(key)
	for address, action := range proposals {
		engine.Propose(address, action)
	}
	for i := 0; i < ctx.Int(countFlag.Name); i++ {
		sealed, err := sealNext(engine, chain)
		if err != nil {
			return err
		}
		log.Info("Sealed new header", "number", sealed.Number, "hash", sealed.Hash(), "diff", sealed.Difficulty, "vote", sealed.Coinbase)
	}
	return nil
}

// sealNext prepares, signs and inserts a single empty header on top of the
// current head. It blocks until the header's timestamp is reached.
// sealNext 在当前链头之上准备、签名并插入一个空区块头，直到区块头的时间戳到达前会阻塞。
func sealNext(engine *clique.Clique, chain *core.HeaderChain) (*types.Header, error) {
	parent := chain.CurrentHeader()
	header := &types.Header{
		ParentHash:  parent.Hash(),
		Number:      new(big.Int).Add(parent.Number, common.Big1),
		GasLimit:    parent.GasLimit,
		Root:        parent.Root,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
	}
	if parent.BaseFee != nil {
		header.BaseFee = new(big.Int).Set(parent.BaseFee)
	}
	if err := engine.Prepare(chain, header); err != nil {
		return nil, fmt.Errorf("failed to prepare header #%d: %w", header.Number, err)
	}
	if wait := time.Until(time.Unix(int64(header.Time), 0)); wait > 0 {
		log.Info("Waiting for slot to sign and propagate", "number", header.Number, "delay", common.PrettyDuration(wait))
		time.Sleep(wait)
	}
	sealed, err := engine.Seal(chain, header)
	if err != nil {
		return nil, fmt.Errorf("failed to seal header #%d: %w", header.Number, err)
	}
	if _, err := chain.InsertHeaderChain([]*types.Header{sealed}); err != nil {
		return nil, fmt.Errorf("failed to insert header #%d: %w", header.Number, err)
	}
	return sealed, nil
}
