// Copyright 2021 The go-ethereum Authors
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

// Package shutdowncheck keeps a trail of startups in the database to spot
// processes that died without closing their chain database.
package shutdowncheck

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

const markerRefresh = 5 * time.Minute

// ShutdownTracker reports previous unclean shutdowns upon start. It needs to
// be started after a successful start-up and stopped after a successful
// shutdown, just before the db is closed.
// ShutdownTracker 在启动时报告之前的非正常关闭。需要在成功启动后启动，并在关闭数据库前停止。
type ShutdownTracker struct {
	db      ethdb.KeyValueStore
	refresh time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewShutdownTracker creates a new ShutdownTracker instance and has
// no other side-effect.
func NewShutdownTracker(db ethdb.KeyValueStore) *ShutdownTracker {
	return &ShutdownTracker{
		db:      db,
		refresh: markerRefresh,
		stopCh:  make(chan struct{}),
	}
}

// MarkStartup pushes a new startup marker to the db and reports the unclean
// shutdowns left behind by earlier runs. It returns their boot times.
func (t *ShutdownTracker) MarkStartup() []time.Time {
	uncleanShutdowns, discards, err := rawdb.PushUncleanShutdownMarker(t.db)
	if err != nil {
		log.Error("Could not update unclean-shutdown-marker list", "error", err)
		return nil
	}
	if discards > 0 {
		log.Warn("Old unclean shutdowns found", "count", discards)
	}
	booted := make([]time.Time, 0, len(uncleanShutdowns))
	for _, tstamp := range uncleanShutdowns {
		t := time.Unix(int64(tstamp), 0)
		log.Warn("Unclean shutdown detected", "booted", t, "age", common.PrettyAge(t))
		booted = append(booted, t)
	}
	return booted
}

// Start runs a loop that refreshes the current marker's timestamp.
func (t *ShutdownTracker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rawdb.UpdateUncleanShutdownMarker(t.db)
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop will stop the update loop and clear the current marker.
func (t *ShutdownTracker) Stop() {
	close(t.stopCh)
	t.wg.Wait()
	rawdb.PopUncleanShutdownMarker(t.db)
}
