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

package utils

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sunyihoo/poa/core"
)

const (
	importBatchSize = 2500
)

// errInterrupted is returned by ImportHeaders when a signal stopped it between
// two batches.
var errInterrupted = errors.New("interrupted")

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// ImportHeaders reads an RLP stream of headers from fn (gzip compressed when
// the name ends in .gz) and inserts it into the chain in batches. Genesis
// headers in the stream are skipped. SIGINT or SIGTERM stop the import at the
// next batch boundary; everything inserted until then stays.
// ImportHeaders 从 fn 读取 RLP 编码的区块头流（.gz 结尾时按 gzip 解压）并分批插入链中。
func ImportHeaders(chain *core.HeaderChain, fn string) error {
	interrupt := make(chan os.Signal, 1)
	stop := make(chan struct{})
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)
	defer close(interrupt)
	go func() {
		if _, ok := <-interrupt; ok {
			log.Info("Interrupted during import, stopping at next batch")
		}
		close(stop)
	}()
	checkInterrupt := func() bool {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	log.Info("Importing header chain", "file", fn)

	fh, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	var reader io.Reader = fh
	if strings.HasSuffix(fn, ".gz") {
		if reader, err = gzip.NewReader(reader); err != nil {
			return err
		}
	}
	return importHeaderStream(chain, rlp.NewStream(reader, 0), checkInterrupt)
}

func importHeaderStream(chain *core.HeaderChain, stream *rlp.Stream, interrupted func() bool) error {
	var (
		headers = make([]*types.Header, 0, importBatchSize)
		n       int
	)
	for batch := 0; ; batch++ {
		if interrupted() {
			return errInterrupted
		}
		headers = headers[:0]
		for len(headers) < importBatchSize {
			header := new(types.Header)
			if err := stream.Decode(header); err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("at header %d: %v", n, err)
			}
			n++
			if header.Number.Sign() == 0 {
				continue
			}
			headers = append(headers, header)
		}
		if len(headers) == 0 {
			return nil
		}
		if idx, err := chain.InsertHeaderChain(headers); err != nil {
			return fmt.Errorf("invalid header %d: %v", headers[idx].Number, err)
		}
		log.Debug("Imported header batch", "batch", batch, "count", len(headers), "head", headers[len(headers)-1].Number)
	}
}

// ExportHeaders writes the canonical headers between first and last
// (inclusive) to fn, gzip compressing them when the name ends in .gz.
func ExportHeaders(chain *core.HeaderChain, fn string, first, last uint64) error {
	log.Info("Exporting header chain", "file", fn, "first", first, "last", last)

	fh, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.ModePerm)
	if err != nil {
		return err
	}
	defer fh.Close()

	var writer io.Writer = fh
	if strings.HasSuffix(fn, ".gz") {
		gz := gzip.NewWriter(writer)
		defer gz.Close()
		writer = gz
	}
	if err := chain.Export(writer, first, last); err != nil {
		return err
	}
	log.Info("Exported header chain", "file", fn)
	return nil
}
