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
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/algorand/websocket"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
)

// Handler serves one authenticated session. The session is shut down when
// ServeSession returns.
type Handler interface {
	ServeSession(ctx context.Context, s *Session)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *Session)

// ServeSession calls f(ctx, s).
func (f HandlerFunc) ServeSession(ctx context.Context, s *Session) {
	f(ctx, s)
}

// Listener accepts websocket upgrades and performs the server side of the
// key exchange before handing sessions to its Handler. Masters and mesh
// hubs run one.
type Listener struct {
	cert    *crypto.Certificate
	handler Handler
	log     logging.Logger

	// Authorize restricts which client keys may connect. nil accepts all.
	Authorize func(client [crypto.KeySize]byte) bool
	// Timeout bounds the key exchange and individual writes.
	Timeout time.Duration
	// Linger bounds the close handshake when a session ends.
	Linger time.Duration

	router   *mux.Router
	upgrader websocket.Upgrader

	mu       deadlock.Mutex
	ctx      context.Context
	sessions map[*Session]struct{}
	addr     net.Addr
}

// NewListener returns a Listener serving handler with the given identity.
func NewListener(cert *crypto.Certificate, handler Handler, log logging.Logger) *Listener {
	if log == nil {
		log = logging.Base()
	}
	l := &Listener{
		cert:     cert,
		handler:  handler,
		log:      log,
		Timeout:  DefaultTimeout,
		Linger:   500 * time.Millisecond,
		router:   mux.NewRouter(),
		sessions: make(map[*Session]struct{}),
		ctx:      context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: false,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}
	l.router.HandleFunc(SessionPath, l.serveHTTP).Methods(http.MethodGet)
	return l
}

// ServeHTTP implements http.Handler
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.router.ServeHTTP(w, r)
}

func (l *Listener) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, http.Header{})
	if err != nil {
		l.log.Infof("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	cipher, client, err := serverHandshake(conn, l.cert, l.Authorize, l.Timeout, nil)
	if err != nil {
		l.log.Infof("rejecting client %s: %v", r.RemoteAddr, err)
		conn.Close()
		return
	}

	s := newSession(conn, cipher, client, l.Timeout, l.log.With("remote", r.RemoteAddr))
	l.mu.Lock()
	ctx := l.ctx
	l.sessions[s] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.sessions, s)
		l.mu.Unlock()
		s.Shutdown(l.Linger)
	}()
	l.handler.ServeSession(ctx, s)
}

// Addr returns the address Serve is listening on, once it has started.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Serve accepts connections on ln until ctx is cancelled. Active sessions
// are shut down on the way out.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.ctx = ctx
	l.addr = ln.Addr()
	l.mu.Unlock()

	srv := &http.Server{Handler: l, ReadHeaderTimeout: l.Timeout}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), l.Timeout)
		defer done()
		l.closeSessions()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (l *Listener) closeSessions() {
	l.mu.Lock()
	active := make([]*Session, 0, len(l.sessions))
	for s := range l.sessions {
		active = append(active, s)
	}
	l.mu.Unlock()
	for _, s := range active {
		s.Shutdown(0)
	}
}
