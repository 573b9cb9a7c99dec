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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/poa/consensus/clique"
)

// runClique runs the app in-process and returns what the command printed.
// Every invocation passes --datadir since flag values persist across runs.
func runClique(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	app.Writer = &out
	defer func() { app.Writer = os.Stdout }()

	require.NoError(t, app.Run(append([]string{"clique", "--verbosity", "1"}, args...)))
	return out.String()
}

type snapshotJSON struct {
	Hash    common.Hash                     `json:"hash"`
	Signers []common.Address                `json:"signers"`
	Votes   []clique.Vote                   `json:"votes"`
	Tally   map[common.Address]clique.Tally `json:"tally"`
}

func decodeSnapshot(t *testing.T, out string) snapshotJSON {
	t.Helper()

	var snap snapshotJSON
	require.NoError(t, json.Unmarshal([]byte(out), &snap), "output: %s", out)
	return snap
}

func initChain(t *testing.T, datadir string, signer common.Address) string {
	t.Helper()

	out := runClique(t, "--datadir", datadir, "--db.engine", "leveldb", "--clique.period", "0", "--clique.epoch", "3",
		"init", "--genesis.signers", signer.Hex(), "--genesis.timestamp", "0")
	return strings.TrimSpace(out)
}

func TestChainCommands(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)
	keyfile := filepath.Join(t.TempDir(), "signer.key")
	require.NoError(t, crypto.SaveECDSA(keyfile, key))

	candidate := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	datadir := filepath.Join(t.TempDir(), "chain")
	genesis := initChain(t, datadir, signer)
	require.Len(t, common.FromHex(genesis), common.HashLength)

	// Seal past the first checkpoint, nominating the candidate on the way. A
	// single signer passes the nomination with its own vote.
	runClique(t, "--datadir", datadir, "seal", "--signer.key", keyfile, "--count", "4", "--propose", candidate.Hex()+"=true")

	snap := decodeSnapshot(t, runClique(t, "--datadir", datadir, "snapshot"))
	require.ElementsMatch(t, []common.Address{signer, candidate}, snap.Signers)
	require.Empty(t, snap.Votes)

	genesisSnap := decodeSnapshot(t, runClique(t, "--datadir", datadir, "snapshot", "--number", "0"))
	require.Equal(t, []common.Address{signer}, genesisSnap.Signers)
	require.Equal(t, common.HexToHash(genesis), genesisSnap.Hash)

	// Block 3 is a checkpoint, so its snapshot was persisted while sealing 4
	checkpoint := decodeSnapshot(t, runClique(t, "--datadir", datadir, "inspect", "--number", "3"))
	require.ElementsMatch(t, []common.Address{signer, candidate}, checkpoint.Signers)
	require.Contains(t, runClique(t, "--datadir", datadir, "inspect", "--number", "3", "--dump"), "Snapshot")

	// Export and import into a second database sharing the genesis
	export := filepath.Join(t.TempDir(), "headers.rlp.gz")
	runClique(t, "--datadir", datadir, "export", export)

	replica := filepath.Join(t.TempDir(), "replica")
	require.Equal(t, genesis, initChain(t, replica, signer))
	runClique(t, "--datadir", replica, "import", export)

	imported := decodeSnapshot(t, runClique(t, "--datadir", replica, "snapshot"))
	require.Equal(t, snap, imported)
	replicaCheckpoint := decodeSnapshot(t, runClique(t, "--datadir", replica, "inspect", "--number", "3"))
	require.Equal(t, checkpoint, replicaCheckpoint)
}

func TestDumpConfig(t *testing.T) {
	datadir := t.TempDir()
	file := filepath.Join(t.TempDir(), "config.toml")

	runClique(t, "--datadir", datadir, "--clique.epoch", "1200", "dumpconfig", "--http.port", "9545", file)

	cfg := defaultConfig()
	require.NoError(t, loadConfig(file, &cfg))
	require.Equal(t, uint64(1200), cfg.Clique.Epoch)
	require.Equal(t, 9545, cfg.RPC.HTTPPort)
	require.Equal(t, datadir, cfg.Database.Directory)

	// Loading the dump through --config reproduces it
	out := runClique(t, "--datadir", datadir, "--config", file, "dumpconfig")
	dumped, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, string(dumped), out)

	// Unknown fields are refused
	require.NoError(t, os.WriteFile(file, []byte("[Clique]\nBlocks = 1\n"), 0644))
	require.ErrorContains(t, loadConfig(file, &cfg), "field 'Blocks' is not defined")
}

func TestParseProposals(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	proposals, err := parseProposals([]string{addr.Hex() + "=true"})
	require.NoError(t, err)
	require.Equal(t, clique.Nominate, proposals[addr])

	proposals, err = parseProposals([]string{addr.Hex() + "=false"})
	require.NoError(t, err)
	require.Equal(t, clique.Kick, proposals[addr])

	for _, bad := range []string{addr.Hex(), "0x12=true", addr.Hex() + "=maybe"} {
		_, err := parseProposals([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestParseAddresses(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	addrs, err := parseAddresses([]string{a.Hex() + ", " + b.Hex(), ""})
	require.NoError(t, err)
	require.Equal(t, []common.Address{a, b}, addrs)

	_, err = parseAddresses([]string{"nope"})
	require.Error(t, err)
}
