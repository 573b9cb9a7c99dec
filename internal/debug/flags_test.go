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

package debug

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// runSetup runs Setup through a throwaway app the way cmd/clique wires it.
func runSetup(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		Exit()
		log.SetDefault(log.NewLogger(log.NewTerminalHandler(io.Discard, false)))
	})
	app := cli.NewApp()
	app.Writer, app.ErrWriter = io.Discard, io.Discard
	app.Flags = Flags
	app.Action = Setup
	return app.Run(append([]string{"clique"}, args...))
}

func TestNewLogHandler(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"Sealed new header"`},
		{"logfmt", `msg="Sealed new header"`},
		{"terminal", "Sealed new header"},
		{"", "Sealed new header"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		handler, err := newLogHandler(tt.format, &out, false)
		require.NoError(t, err, "format %q", tt.format)

		log.NewLogger(handler).Info("Sealed new header", "number", 1)
		require.Contains(t, out.String(), tt.want, "format %q", tt.format)
		require.Contains(t, out.String(), "number", "format %q", tt.format)
	}
	_, err := newLogHandler("yaml", io.Discard, false)
	require.ErrorContains(t, err, "unknown log format")
}

func TestSetupLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "clique.log")
	require.NoError(t, runSetup(t, "--log.file", file, "--log.format", "json", "--verbosity", "4"))

	log.Debug("Imported new block headers", "count", 3)
	log.Trace("Hidden below the verbosity")

	blob, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(blob), `"msg":"Logging configured"`)
	require.Contains(t, string(blob), `"msg":"Imported new block headers"`)
	require.NotContains(t, string(blob), "Hidden below the verbosity")
}

func TestSetupRotatedLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clique.log")
	require.NoError(t, runSetup(t, "--log.file", file, "--log.rotate", "--log.format", "logfmt"))

	log.Info("Sealed new header", "number", 7)
	_, rotated := logOutputFile.(*lumberjack.Logger)
	require.True(t, rotated)

	blob, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(blob), `msg="Sealed new header"`)
}

func TestSetupErrors(t *testing.T) {
	require.ErrorIs(t, runSetup(t, "--log.rotate"), errRotateWithoutFile)
	require.ErrorContains(t, runSetup(t, "--log.format", "yaml"), "unknown log format")
	require.ErrorContains(t, runSetup(t, "--log.vmodule", "clique=x"), "invalid vmodule pattern")

	// A failed setup must not leave the log file open
	file := filepath.Join(t.TempDir(), "clique.log")
	require.Error(t, runSetup(t, "--log.file", file, "--log.format", "yaml"))
	require.Nil(t, logOutputFile)
}
