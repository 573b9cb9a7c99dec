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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sunyihoo/poa/cmd/utils"
	"github.com/sunyihoo/poa/consensus"
	"github.com/sunyihoo/poa/consensus/clique"
	"github.com/sunyihoo/poa/internal/debug"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/sunyihoo/poa/internal/shutdowncheck"
	"github.com/sunyihoo/poa/internal/version"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var (
	rpcFlags = []cli.Flag{
		utils.HTTPListenAddrFlag,
		utils.HTTPPortFlag,
		utils.HTTPDebugFlag,
		utils.HTTPCORSDomainFlag,
		utils.WSEnabledFlag,
		utils.WSAllowedOriginsFlag,
	}
	serveCommand = &cli.Command{
		Action:    serve,
		Name:      "serve",
		Usage:     "Serve the clique API over HTTP",
		ArgsUsage: " ",
		Flags:     flags.Merge(rpcFlags, utils.MetricsFlags),
		Description: `
The serve command exposes the "clique" JSON-RPC namespace of the local chain
over HTTP: snapshots, signers, proposals and the sealing status. The runtime
debugging API is added under "debug" with --http.debug. With --ws the same
endpoint also accepts WebSocket connections. It runs until interrupted.`,
	}
)

// newRPCServer registers the engine APIs, and optionally the debug API, on a
// fresh JSON-RPC server.
// newRPCServer 在新的 JSON-RPC 服务器上注册共识引擎 API，并可选地注册调试 API。
func newRPCServer(engine *clique.Clique, chain consensus.ChainHeaderReader, withDebug bool) (*rpc.Server, error) {
	srv := rpc.NewServer()
	apis := engine.APIs(chain)
	if withDebug {
		apis = append(apis, rpc.API{Namespace: "debug", Service: debug.Handler})
	}
	for _, api := range apis {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			srv.Stop()
			return nil, fmt.Errorf("failed to register %q API: %w", api.Namespace, err)
		}
		log.Debug("Registered RPC namespace", "namespace", api.Namespace)
	}
	return srv, nil
}

// setupMetrics turns on metrics collection and, if a dedicated address is
// configured, starts the stand-alone metrics server. It returns a handler
// which should be mounted on the RPC server otherwise.
func setupMetrics(cfg metricsConfig) http.Handler {
	if !cfg.Enabled {
		return nil
	}
	log.Info("Enabling metrics collection")
	metrics.Enable()

	if cfg.HTTP != "" {
		address := net.JoinHostPort(cfg.HTTP, strconv.Itoa(cfg.Port))
		log.Info("Enabling stand-alone metrics HTTP endpoint", "address", address)
		exp.Setup(address)
		return nil
	}
	return exp.ExpHandler(metrics.DefaultRegistry)
}

func serve(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	metricsHandler := setupMetrics(cfg.Metrics)

	db, engine, chain := makeChain(ctx, cfg)
	defer db.Close()
	defer chain.Stop()

	tracker := shutdowncheck.NewShutdownTracker(db)
	tracker.MarkStartup()
	tracker.Start()
	defer tracker.Stop()

	srv, err := newRPCServer(engine, chain, cfg.RPC.Debug)
	if err != nil {
		return err
	}
	defer srv.Stop()

	mux := http.NewServeMux()
	mux.Handle("/", newRPCHandler(srv, cfg.RPC))
	if metricsHandler != nil {
		mux.Handle("/debug/metrics", metricsHandler)
	}
	endpoint := net.JoinHostPort(cfg.RPC.HTTPHost, strconv.Itoa(cfg.RPC.HTTPPort))
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: rpc.DefaultHTTPTimeouts.ReadHeaderTimeout,
		ReadTimeout:       rpc.DefaultHTTPTimeouts.ReadTimeout,
		WriteTimeout:      rpc.DefaultHTTPTimeouts.WriteTimeout,
		IdleTimeout:       rpc.DefaultHTTPTimeouts.IdleTimeout,
	}
	log.Info("HTTP server started", "endpoint", listener.Addr(), "client", version.ClientName(clientIdentifier))

	sigctx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigctx)
	g.Go(func() error {
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server", "endpoint", listener.Addr())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
