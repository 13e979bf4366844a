// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.

package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/algorand/websocket"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
)

// SessionPath is the HTTP path sessions are upgraded on.
const SessionPath = "/clockwork/v1/session"

// DefaultTimeout applies when DialOptions.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// DialOptions tune Dial.
type DialOptions struct {
	Resolver Resolver
	// Timeout bounds the TCP connect, websocket upgrade and key exchange
	// for each address tried.
	Timeout time.Duration
	Log     logging.Logger
}

// SplitEndpoint accepts "host:port", optionally prefixed with tcp:// or ws://.
func SplitEndpoint(endpoint string) (host, port string, err error) {
	for _, prefix := range []string{"tcp://", "ws://"} {
		endpoint = strings.TrimPrefix(endpoint, prefix)
	}
	host, port, err = net.SplitHostPort(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("bad endpoint '%s': %w", endpoint, err)
	}
	if host == "" {
		return "", "", fmt.Errorf("bad endpoint '%s': no host", endpoint)
	}
	return host, port, nil
}

// Dial resolves endpoint, then tries each address in order until one
// completes both the websocket upgrade and the key exchange with remote.
func Dial(ctx context.Context, endpoint string, local, remote *crypto.Certificate, opts DialOptions) (*Session, error) {
	if opts.Resolver == nil {
		opts.Resolver = SystemResolver()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Log == nil {
		opts.Log = logging.Base()
	}
	if remote == nil {
		return nil, fmt.Errorf("connect to %s: no server certificate", endpoint)
	}

	host, port, err := SplitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	addrs := []string{host}
	if net.ParseIP(host) == nil {
		lookupCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		addrs, err = opts.Resolver.LookupHost(lookupCtx, host)
		cancel()
		if err != nil {
			return nil, &ConnectError{Endpoint: endpoint, Attempts: []error{err}}
		}
	}

	cerr := &ConnectError{Endpoint: endpoint}
	for _, addr := range addrs {
		target := net.JoinHostPort(addr, port)
		opts.Log.Debugf("trying endpoint %s (from %s)", target, endpoint)
		s, err := dialAddress(ctx, target, local, remote, opts)
		if err == nil {
			return s, nil
		}
		cerr.Attempts = append(cerr.Attempts, fmt.Errorf("%s: %w", target, err))
	}
	return nil, cerr
}

func dialAddress(ctx context.Context, target string, local, remote *crypto.Certificate, opts DialOptions) (*Session, error) {
	netDialer := net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}
	dialer := websocket.Dialer{
		HandshakeTimeout:  opts.Timeout,
		EnableCompression: false,
		NetDialContext:    netDialer.DialContext,
	}
	u := url.URL{Scheme: "ws", Host: target, Path: SessionPath}
	conn, resp, err := dialer.DialContext(ctx, u.String(), http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	cipher, err := clientHandshake(conn, local, remote.Public, opts.Timeout, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return newSession(conn, cipher, remote.Public, opts.Timeout, opts.Log.With("remote", target)), nil
}
