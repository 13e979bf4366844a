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

package cfm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
)

// MaxMasters is the most masters an agent may be configured with.
const MaxMasters = 8

// Master is one policy master an agent may talk to.
type Master struct {
	Endpoint string
	Cert     *crypto.Certificate
}

// StateKind enumerates the stages of master selection.
type StateKind int

const (
	Unresolved StateKind = iota
	Trying
	Connected
	Exhausted
)

func (k StateKind) String() string {
	switch k {
	case Unresolved:
		return "unresolved"
	case Trying:
		return "trying"
	case Connected:
		return "connected"
	case Exhausted:
		return "exhausted"
	}
	return "state(" + strconv.Itoa(int(k)) + ")"
}

// State is a selection stage. Index names the master for Trying and
// Connected.
type State struct {
	Kind  StateKind
	Index int
}

func (s State) String() string {
	if s.Kind == Trying || s.Kind == Connected {
		return fmt.Sprintf("%s(%d)", s.Kind, s.Index)
	}
	return s.Kind.String()
}

// Ring is the ordered set of masters plus the index of the master that
// last answered. Connect starts one past Current, so successive runs
// rotate through a healthy ring.
type Ring struct {
	Masters []Master
	Current int
	// Observer, when set, sees every state transition.
	Observer func(State)
}

// NewRing returns a ring whose first Connect starts at the first master.
func NewRing(masters []Master) *Ring {
	return &Ring{Masters: masters, Current: len(masters) - 1}
}

func (r *Ring) observe(s State) {
	if r.Observer != nil {
		r.Observer(s)
	}
}

// Connect tries each master once, starting after Current, and returns a
// session with the first one that completes the key exchange and answers
// PING with our protocol version. When every master fails it returns a nil
// session and the Exhausted state; the failures are logged, not returned.
func (r *Ring) Connect(ctx context.Context, local *crypto.Certificate, opts network.DialOptions, timeout time.Duration, log logging.Logger) (*network.Session, State) {
	r.observe(State{Kind: Unresolved})
	n := len(r.Masters)
	if n == 0 {
		r.observe(State{Kind: Exhausted})
		return nil, State{Kind: Exhausted}
	}
	start := (r.Current + 1) % n
	if start < 0 {
		start += n
	}
	if opts.Log == nil {
		opts.Log = log
	}

	for k := 0; k < n; k++ {
		if ctx.Err() != nil {
			break
		}
		i := (start + k) % n
		m := r.Masters[i]
		r.observe(State{Kind: Trying, Index: i})

		log.Debugf("Attempting to connect to master %d (%s)", i+1, m.Endpoint)
		s, err := network.Dial(ctx, m.Endpoint, local, m.Cert, opts)
		if err != nil {
			log.Errorf("Failed to connect to master %d (%s): %v", i+1, m.Endpoint, err)
			continue
		}
		if err := ping(s, timeout); err != nil {
			log.Errorf("master %d (%s): %v", i+1, m.Endpoint, err)
			s.Shutdown(0)
			continue
		}

		log.Debugf("setting current master idx to %d", i)
		r.Current = i
		state := State{Kind: Connected, Index: i}
		r.observe(state)
		return s, state
	}

	log.Error("No masters were reachable; falling back to cached policy")
	r.observe(State{Kind: Exhausted})
	return nil, State{Kind: Exhausted}
}

func ping(s *network.Session, timeout time.Duration) error {
	pong, err := s.Request(protocol.MakePDU(protocol.PingTag, strconv.FormatUint(protocol.Version, 10)), timeout)
	if err != nil {
		return fmt.Errorf("no response: %w", err)
	}
	if pong.Type != protocol.PongTag {
		return fmt.Errorf("unexpected %s response - expected PONG", pong.Type)
	}
	v, err := pong.Uint(1)
	if err != nil || v != protocol.Version {
		return fmt.Errorf("upstream server speaks protocol %q (we want %d)", pong.Text(1), protocol.Version)
	}
	return nil
}
