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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sunyihoo/poa/consensus/clique"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	hashFlag = &cli.StringFlag{
		Name:     "hash",
		Usage:    "Hash of the block to use",
		Category: flags.CliqueCategory,
	}
	numberFlag = &cli.Uint64Flag{
		Name:     "number",
		Usage:    "Number of the canonical block to use",
		Category: flags.CliqueCategory,
	}
	dumpFlag = &cli.BoolFlag{
		Name:     "dump",
		Usage:    "Print the decoded Go structure instead of JSON",
		Category: flags.MiscCategory,
	}

	snapshotCommand = &cli.Command{
		Action:    showSnapshot,
		Name:      "snapshot",
		Usage:     "Print the voting snapshot at a block",
		ArgsUsage: " ",
		Flags:     []cli.Flag{hashFlag, numberFlag, dumpFlag},
		Description: `
The snapshot command resolves the authorization snapshot valid after the
given block (the chain head by default) and prints it as JSON: the signer set,
the open votes and the running tallies. Snapshots missing from the store are
reconstructed by replaying headers since the last checkpoint.`,
	}
	inspectCommand = &cli.Command{
		Action:    inspectSnapshot,
		Name:      "inspect",
		Usage:     "Print a checkpoint snapshot persisted in the database",
		ArgsUsage: " ",
		Flags:     []cli.Flag{hashFlag, numberFlag, dumpFlag},
		Description: `
The inspect command reads a persisted checkpoint snapshot straight from the
database, without replaying any header. It fails for blocks that are not
checkpoints or whose snapshot was never written.`,
	}
)

// targetHeader resolves the block selected by --hash or --number, defaulting to
// the chain head.
func targetHeader(ctx *cli.Context, chain *core.HeaderChain) (*types.Header, error) {
	if err := flags.CheckExclusive(ctx, hashFlag, numberFlag); err != nil {
		return nil, err
	}
	var header *types.Header
	switch {
	case ctx.IsSet(hashFlag.Name):
		hex := ctx.String(hashFlag.Name)
		if len(common.FromHex(hex)) != common.HashLength {
			return nil, fmt.Errorf("invalid block hash %q", hex)
		}
		header = chain.GetHeaderByHash(common.HexToHash(hex))
	case ctx.IsSet(numberFlag.Name):
		header = chain.GetHeaderByNumber(ctx.Uint64(numberFlag.Name))
	default:
		header = chain.CurrentHeader()
	}
	if header == nil {
		return nil, errors.New("block not found")
	}
	return header, nil
}

func printSnapshot(ctx *cli.Context, snap *clique.Snapshot) error {
	if ctx.Bool(dumpFlag.Name) {
		spew.Fdump(ctx.App.Writer, snap)
		return nil
	}
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, string(out))
	return nil
}

func showSnapshot(ctx *cli.Context) error {
	db, engine, chain := makeChain(ctx, loadBaseConfig(ctx))
	defer db.Close()
	defer chain.Stop()

	header, err := targetHeader(ctx, chain)
	if err != nil {
		return err
	}
	snap, err := engine.SnapshotFor(chain, header.Hash(), nil)
	if err != nil {
		return fmt.Errorf("failed to resolve snapshot at #%d: %w", header.Number, err)
	}
	return printSnapshot(ctx, snap)
}

func inspectSnapshot(ctx *cli.Context) error {
	db, _, chain := makeChain(ctx, loadBaseConfig(ctx))
	defer db.Close()
	defer chain.Stop()

	header, err := targetHeader(ctx, chain)
	if err != nil {
		return err
	}
	snap, err := clique.ReadSnapshot(db, header.Hash())
	if err != nil {
		return fmt.Errorf("no checkpoint snapshot for #%d (%x): %w", header.Number, header.Hash(), err)
	}
	return printSnapshot(ctx, snap)
}
