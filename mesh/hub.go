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

package mesh

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
)

// ErrAuthFailed is returned by an Authenticator that rejects a REQUEST.
var ErrAuthFailed = errors.New("authentication failed")

// Authenticator decides whether a REQUEST's proof is good for user.
// pubhex is empty for password requests.
type Authenticator interface {
	Authenticate(user, pubhex string, proof []byte) error
}

// StaticAuth authenticates against fixed password and key tables.
type StaticAuth struct {
	Passwords map[string]string
	// Keys lists the signing public keys, hex encoded, each user may
	// authenticate with.
	Keys map[string][]string
}

// Authenticate implements Authenticator.
func (a StaticAuth) Authenticate(user, pubhex string, proof []byte) error {
	if pubhex == "" {
		want, ok := a.Passwords[user]
		if !ok || subtle.ConstantTimeCompare([]byte(want), proof) != 1 {
			return ErrAuthFailed
		}
		return nil
	}
	for _, k := range a.Keys[user] {
		if k != pubhex {
			continue
		}
		var pub [crypto.KeySize]byte
		if n, err := hex.Decode(pub[:], []byte(pubhex)); err != nil || n != crypto.KeySize {
			return ErrAuthFailed
		}
		if len(proof) != crypto.SealedSize {
			return ErrAuthFailed
		}
		if _, err := crypto.Unseal(pub, proof); err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return nil
	}
	return ErrAuthFailed
}

// DefaultRetention is how long a query outlives the last REQUEST or CHECK
// that touched it.
const DefaultRetention = 2 * time.Minute

type pending struct {
	replies []protocol.PDU
	touched time.Time
}

// Hub is the master side of the mesh: operators submit REQUESTs on its
// control handler, agents subscribe on its broadcast handler and send
// their answers back on control, and CHECK collects them.
type Hub struct {
	Auth Authenticator
	// Creds maps a user to the credential string agents check their ACL
	// with. nil uses the bare user name.
	Creds func(user string) string
	// Compile turns a command into policy code. nil sends commands bare,
	// for the agents' built-ins.
	Compile func(command string) ([]byte, error)
	// Retention bounds how long an idle query keeps collecting replies.
	// Zero means DefaultRetention.
	Retention time.Duration

	log logging.Logger
	now func() time.Time

	mu      deadlock.Mutex
	serial  uint64
	agents  map[*network.Session]struct{}
	queries map[string]*pending
}

// NewHub returns a hub authenticating with auth.
func NewHub(auth Authenticator, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Base()
	}
	return &Hub{
		Auth:    auth,
		log:     log,
		now:     time.Now,
		agents:  make(map[*network.Session]struct{}),
		queries: make(map[string]*pending),
	}
}

// Agents is the number of subscribed agents.
func (h *Hub) Agents() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.agents)
}

// Pending is the number of queries still collecting replies.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queries)
}

// Broadcast returns the handler agents subscribe through.
func (h *Hub) Broadcast() network.Handler {
	return network.HandlerFunc(func(ctx context.Context, s *network.Session) {
		h.mu.Lock()
		h.agents[s] = struct{}{}
		h.mu.Unlock()
		h.log.Debugf("mesh: agent %s subscribed", s.RemoteAddr())

		select {
		case <-s.Done():
		case <-ctx.Done():
		}

		h.mu.Lock()
		delete(h.agents, s)
		h.mu.Unlock()
	})
}

// Control returns the handler operators and agent replies arrive on.
func (h *Hub) Control() network.Handler {
	return network.HandlerFunc(func(ctx context.Context, s *network.Session) {
		// queries submitted on this session die with it
		var owned []string
		defer func() { h.forget(owned) }()
		for {
			pdu, err := s.Recv(0)
			if err != nil {
				return
			}
			for _, reply := range h.handle(pdu) {
				if reply.Type == protocol.SubmittedTag {
					owned = append(owned, reply.Text(1))
				}
				if s.Send(reply) != nil {
					return
				}
			}
		}
	})
}

func (h *Hub) forget(serials []string) {
	if len(serials) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, serial := range serials {
		delete(h.queries, serial)
	}
}

func (h *Hub) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}

// expire drops idle queries. h.mu must be held.
func (h *Hub) expire(now time.Time) {
	retention := h.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	for serial, q := range h.queries {
		if now.Sub(q.touched) > retention {
			h.log.Debugf("mesh: query %s expired", serial)
			delete(h.queries, serial)
		}
	}
}

func (h *Hub) handle(pdu protocol.PDU) []protocol.PDU {
	switch pdu.Type {
	case protocol.RequestTag:
		return []protocol.PDU{h.request(pdu)}
	case protocol.CheckTag:
		return h.check(pdu.Text(1))
	case protocol.ResultTag, protocol.OptoutTag, protocol.ErrorTag:
		h.collect(pdu)
		return nil
	}
	return []protocol.PDU{protocol.MakePDU(protocol.ErrorTag, "unexpected "+string(pdu.Type)+" PDU")}
}

func (h *Hub) request(pdu protocol.PDU) protocol.PDU {
	if pdu.Size() < 6 {
		return protocol.MakePDU(protocol.ErrorTag, "malformed REQUEST")
	}
	user, pubhex, proof := pdu.Text(1), pdu.Text(2), pdu.Frame(3)
	command, filter := pdu.Text(4), pdu.Text(5)

	if h.Auth == nil {
		return protocol.MakePDU(protocol.ErrorTag, "authentication failed")
	}
	if err := h.Auth.Authenticate(user, pubhex, proof); err != nil {
		h.log.Warnf("mesh: rejected request from %s: %v", user, err)
		return protocol.MakePDU(protocol.ErrorTag, "authentication failed")
	}
	if _, err := ParseFilter(filter); err != nil {
		return protocol.MakePDU(protocol.ErrorTag, err.Error())
	}

	var code []byte
	if h.Compile != nil {
		var err error
		if code, err = h.Compile(command); err != nil {
			return protocol.MakePDU(protocol.ErrorTag, err.Error())
		}
	}
	creds := user
	if h.Creds != nil {
		creds = h.Creds(user)
	}

	h.mu.Lock()
	now := h.clock()
	h.expire(now)
	h.serial++
	serial := strconv.FormatUint(h.serial, 10)
	h.queries[serial] = &pending{touched: now}
	agents := make([]*network.Session, 0, len(h.agents))
	for s := range h.agents {
		agents = append(agents, s)
	}
	h.mu.Unlock()

	cmd := protocol.MakePDU(protocol.CommandTag, serial, creds, command, filter)
	cmd.Extend(code)
	for _, s := range agents {
		if err := s.Send(cmd); err != nil {
			h.log.Warnf("mesh: broadcast to %s: %v", s.RemoteAddr(), err)
		}
	}
	h.log.Infof("mesh: query %s '%s' from %s sent to %d agents", serial, command, user, len(agents))
	return protocol.MakePDU(protocol.SubmittedTag, serial)
}

// collect files an agent reply under its serial, in the shape CHECK
// hands to operators: RESULT(fqdn, status, rc, output) or
// OPTOUT(fqdn, reason).
func (h *Hub) collect(pdu protocol.PDU) {
	serial, fqdn := pdu.Text(1), pdu.Text(2)
	var relay protocol.PDU
	switch pdu.Type {
	case protocol.ResultTag:
		relay = protocol.MakePDU(protocol.ResultTag, fqdn, "ok", pdu.Text(3), pdu.Text(4))
	case protocol.OptoutTag:
		relay = protocol.MakePDU(protocol.OptoutTag, fqdn, pdu.Text(3))
	default:
		relay = protocol.MakePDU(protocol.ResultTag, fqdn, "error", "-", pdu.Text(3))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queries[serial]
	if !ok {
		h.log.Debugf("mesh: dropping %s for unknown query %q", pdu.Type, serial)
		return
	}
	q.replies = append(q.replies, relay)
}

func (h *Hub) check(serial string) []protocol.PDU {
	h.mu.Lock()
	h.expire(h.clock())
	q, ok := h.queries[serial]
	var out []protocol.PDU
	if ok {
		out, q.replies = q.replies, nil
		q.touched = h.clock()
	}
	h.mu.Unlock()
	if !ok {
		return []protocol.PDU{protocol.MakePDU(protocol.ErrorTag, "no such query "+serial)}
	}
	return append(out, protocol.MakePDU(protocol.DoneTag))
}
