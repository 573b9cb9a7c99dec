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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/poa/cmd/utils"
	"github.com/sunyihoo/poa/core"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	initCommand = &cli.Command{
		Action:    initGenesis,
		Name:      "init",
		Usage:     "Bootstrap and initialize a new header chain",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			utils.GenesisSignersFlag,
			utils.GenesisTimeFlag,
			utils.GenesisGasLimitFlag,
			utils.GenesisBaseFeeFlag,
		},
		Description: `
The init command writes the genesis header of a new proof-of-authority chain.
The initial signers are embedded into its extra-data, which also makes it the
first checkpoint. The clique period and epoch are stored next to it and used
by every later command on this database.

It expects the signer list as a comma separated argument of --genesis.signers.`,
	}
	importCommand = &cli.Command{
		Action:    importChain,
		Name:      "import",
		Usage:     "Import a header chain file",
		ArgsUsage: "<filename> (<filename 2> ... <filename N>) ",
		Description: `
The import command imports headers from RLP-encoded files. Every header is
verified by the clique engine before it is written, and the voting snapshots
of the crossed checkpoints are persisted. Files ending in .gz are gzip
decompressed.

If several files are given, an error in one of them stops the import.`,
	}
	exportCommand = &cli.Command{
		Action:    exportChain,
		Name:      "export",
		Usage:     "Export the canonical header chain into a file",
		ArgsUsage: "<filename> [<headNumFirst> <headNumLast>]",
		Description: `
Requires a first argument of the file to write to.
Optional second and third arguments control the first and
last header to write. By default the whole chain including the genesis is
exported. If the file ends with .gz, the output will be gzipped.`,
	}
)

// parseAddresses turns the values of a string slice flag into addresses. Each
// value may itself be a comma separated list.
func parseAddresses(values []string) ([]common.Address, error) {
	var addrs []common.Address
	for _, value := range values {
		for _, hex := range strings.Split(value, ",") {
			if hex = strings.TrimSpace(hex); hex == "" {
				continue
			}
			if !common.IsHexAddress(hex) {
				return nil, fmt.Errorf("invalid address %q", hex)
			}
			addrs = append(addrs, common.HexToAddress(hex))
		}
	}
	return addrs, nil
}

// initGenesis writes the genesis header described by the flags as the zero'd
// block or will fail hard if it can't succeed.
// initGenesis 写入创世区块头及共识配置，失败时直接退出。
func initGenesis(ctx *cli.Context) error {
	if ctx.Args().Len() > 0 {
		utils.Fatalf("No positional arguments are allowed")
	}
	signers, err := parseAddresses(ctx.StringSlice(utils.GenesisSignersFlag.Name))
	if err != nil {
		utils.Fatalf("Invalid signer list: %v", err)
	}
	if len(signers) == 0 {
		utils.Fatalf("Must supply at least one signer with --%s", utils.GenesisSignersFlag.Name)
	}
	cfg := loadBaseConfig(ctx)

	genesis := core.DefaultGenesis(signers)
	genesis.Config = &cfg.Clique
	genesis.GasLimit = ctx.Uint64(utils.GenesisGasLimitFlag.Name)
	genesis.BaseFee = flags.GlobalBig(ctx, utils.GenesisBaseFeeFlag.Name)
	genesis.Timestamp = uint64(time.Now().Unix())
	if ctx.IsSet(utils.GenesisTimeFlag.Name) {
		genesis.Timestamp = ctx.Uint64(utils.GenesisTimeFlag.Name)
	}

	db := utils.MakeDatabase(ctx, cfg.Database, false)
	defer db.Close()

	head, err := genesis.Commit(db)
	if err != nil {
		utils.Fatalf("Failed to write genesis header: %v", err)
	}
	log.Info("Successfully wrote genesis state", "hash", head.Hash(), "signers", len(signers), "config", cfg.Clique)
	fmt.Fprintln(ctx.App.Writer, head.Hash().Hex())
	return nil
}

func importChain(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		utils.Fatalf("This command requires an argument.")
	}
	db, _, chain := makeChain(ctx, loadBaseConfig(ctx))
	defer db.Close()
	defer chain.Stop()

	start := time.Now()

	var importErr error
	for _, arg := range ctx.Args().Slice() {
		if err := utils.ImportHeaders(chain, arg); err != nil {
			importErr = err
			log.Error("Import error", "file", arg, "err", err)
			break
		}
	}
	head := chain.CurrentHeader()
	log.Info("Import done", "head", head.Number, "hash", head.Hash(), "elapsed", common.PrettyDuration(time.Since(start)))
	return importErr
}

func exportChain(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		utils.Fatalf("This command requires an argument.")
	}
	db, _, chain := makeChain(ctx, loadBaseConfig(ctx))
	defer db.Close()
	defer chain.Stop()

	start := time.Now()

	var (
		fp    = ctx.Args().First()
		first uint64
		last  = chain.CurrentHeader().Number.Uint64()
	)
	switch ctx.Args().Len() {
	case 1:
	case 3:
		var ferr, lerr error
		first, ferr = strconv.ParseUint(ctx.Args().Get(1), 10, 64)
		last, lerr = strconv.ParseUint(ctx.Args().Get(2), 10, 64)
		if ferr != nil || lerr != nil {
			utils.Fatalf("Export error in parsing parameters: header number not an integer\n")
		}
	default:
		return errors.New("export requires either a file name or a file name and a header range")
	}
	if err := utils.ExportHeaders(chain, fp, first, last); err != nil {
		utils.Fatalf("Export error: %v\n", err)
	}
	log.Info("Export done", "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}
