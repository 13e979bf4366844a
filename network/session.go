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
	"errors"
	"io"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/algorand/websocket"
	"github.com/google/uuid"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/protocol"
)

// MaxMessageLength bounds a single PDU on the wire. Policy images and
// copydown blocks are the largest messages exchanged.
const MaxMessageLength = 64 * 1024 * 1024

const incomingQueueDepth = 16

// Session is one encrypted, mutually authenticated channel to a single remote
// identity. Callers use it strictly request-then-reply; a reader goroutine
// decrypts arriving messages so that Recv timeouts never disturb the channel.
type Session struct {
	// ID correlates log lines for one dialog.
	ID string

	conn   wsConn
	cipher *cipherState
	remote [crypto.KeySize]byte
	log    logging.Logger

	writeTimeout time.Duration
	writeMu      deadlock.Mutex

	incoming  chan []byte
	done      chan struct{}
	closing   chan struct{}
	readErr   error
	closeOnce sync.Once
}

func newSession(conn wsConn, cipher *cipherState, remote [crypto.KeySize]byte, writeTimeout time.Duration, log logging.Logger) *Session {
	if log == nil {
		log = logging.Base()
	}
	id := uuid.NewString()
	s := &Session{
		ID:           id,
		conn:         conn,
		cipher:       cipher,
		remote:       remote,
		log:          log.With("session", id),
		writeTimeout: writeTimeout,
		incoming:     make(chan []byte, incomingQueueDepth),
		done:         make(chan struct{}),
		closing:      make(chan struct{}),
	}
	conn.SetReadLimit(MaxMessageLength)
	go s.readLoop()
	return s
}

// Remote is the long-term public key of the peer.
func (s *Session) Remote() [crypto.KeySize]byte {
	return s.remote
}

// RemoteAddr is the network address of the peer.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *Session) readLoop() {
	var err error
	defer func() {
		s.readErr = err
		close(s.done)
	}()
	for {
		var mt int
		var r io.Reader
		mt, r, err = s.conn.NextReader()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var sealed, msg []byte
		if sealed, err = io.ReadAll(r); err != nil {
			return
		}
		if msg, err = s.cipher.open(sealed); err != nil {
			s.log.Warnf("dropping session from %s: %v", s.RemoteAddr(), err)
			s.conn.Close()
			return
		}
		select {
		case s.incoming <- msg:
		case <-s.closing:
			return
		}
	}
}

// Send encrypts and transmits one PDU.
func (s *Session) Send(pdu protocol.PDU) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		err := &SendError{Type: pdu.Type, Err: ErrClosed}
		s.log.Error(err)
		return err
	default:
	}

	plain, err := protocol.Encode(pdu)
	if err != nil {
		serr := &SendError{Type: pdu.Type, Err: err}
		s.log.Error(serr)
		return serr
	}
	data := s.cipher.seal(plain)
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		serr := &SendError{Type: pdu.Type, Err: err}
		s.log.Error(serr)
		return serr
	}
	return nil
}

// Recv waits up to timeout for the next PDU. A zero timeout waits forever.
// An expired timeout yields ErrTimeout; a closed channel yields ErrClosed.
func (s *Session) Recv(timeout time.Duration) (protocol.PDU, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case msg := <-s.incoming:
		return protocol.Decode(msg)
	case <-s.done:
		// a message that arrived just before the close is still delivered
		select {
		case msg := <-s.incoming:
			return protocol.Decode(msg)
		default:
		}
		return protocol.PDU{}, s.closedErr()
	case <-expired:
		return protocol.PDU{}, ErrTimeout
	}
}

// Request sends pdu and waits up to timeout for the reply.
func (s *Session) Request(pdu protocol.PDU, timeout time.Duration) (protocol.PDU, error) {
	if err := s.Send(pdu); err != nil {
		return protocol.PDU{}, err
	}
	return s.Recv(timeout)
}

// Incoming reports whether a PDU is already queued, without blocking.
func (s *Session) Incoming() bool {
	return len(s.incoming) > 0
}

// Done is closed when the channel is gone.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) closedErr() error {
	if s.readErr == nil {
		return ErrClosed
	}
	var ce *websocket.CloseError
	if errors.As(s.readErr, &ce) {
		return ErrClosed
	}
	return errors.Join(ErrClosed, s.readErr)
}

// Shutdown closes the session, waiting at most linger for the peer to
// acknowledge the close.
func (s *Session) Shutdown(linger time.Duration) {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.writeMu.Lock()
		err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(linger))
		s.writeMu.Unlock()
		if err == nil && linger > 0 {
			select {
			case <-s.done:
			case <-time.After(linger):
			}
		}
		s.conn.Close()
		<-s.done
	})
}
