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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

type echoService struct{}

func (echoService) Echo(s string) string { return s }

func newEchoServer(t *testing.T, cfg rpcConfig) *httptest.Server {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("test", new(echoService)))
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(newRPCHandler(srv, cfg))
	t.Cleanup(ts.Close)
	return ts
}

// postEcho performs a test_echo call over HTTP from the given origin.
func postEcho(t *testing.T, url, origin string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["clique"]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRPCHandlerCors(t *testing.T) {
	ts := newEchoServer(t, rpcConfig{HTTPCors: []string{"http://allowed.example"}})

	resp := postEcho(t, ts.URL, "http://allowed.example")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "http://allowed.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = postEcho(t, ts.URL, "http://evil.example")
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	// Without CORS domains no cross origin headers are emitted at all
	plain := newEchoServer(t, rpcConfig{})
	resp = postEcho(t, plain.URL, "http://allowed.example")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRPCHandlerWebsocket(t *testing.T) {
	ts := newEchoServer(t, rpcConfig{WS: true, WSOrigins: []string{"http://allowed.example"}})
	endpoint := "ws" + strings.TrimPrefix(ts.URL, "http")

	client, err := rpc.DialWebsocket(context.Background(), endpoint, "http://allowed.example")
	require.NoError(t, err)
	defer client.Close()

	var echo string
	require.NoError(t, client.Call(&echo, "test_echo", "clique"))
	require.Equal(t, "clique", echo)

	_, err = rpc.DialWebsocket(context.Background(), endpoint, "http://evil.example")
	require.Error(t, err)

	// Plain HTTP keeps working next to WebSocket
	require.Equal(t, http.StatusOK, postEcho(t, ts.URL, "").StatusCode)

	// WebSocket upgrades are refused unless enabled
	off := newEchoServer(t, rpcConfig{})
	_, err = rpc.DialWebsocket(context.Background(), "ws"+strings.TrimPrefix(off.URL, "http"), "")
	require.Error(t, err)
}
