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
	"fmt"
	"strings"

	"github.com/algorand/go-clockwork/protocol"
)

var (
	// ErrTimeout is returned by Recv when no PDU arrived before the timeout expired.
	ErrTimeout = errors.New("timed out waiting for a reply")
	// ErrClosed is returned once the underlying channel is gone.
	ErrClosed = errors.New("session closed")
)

// SendError wraps the transport cause of a failed send.
type SendError struct {
	Type protocol.Tag
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send %s PDU to remote peer: %v", e.Type, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// HandshakeError reports a failed key exchange. A client configured with the
// wrong server key fails at the "welcome" stage.
type HandshakeError struct {
	Stage string
	Err   error
}

func (e *HandshakeError) Error() string {
	if e.Stage == "welcome" {
		return fmt.Sprintf("handshake failed at %s (possible certificate mismatch): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("handshake failed at %s: %v", e.Stage, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ConnectError collects the failures of every address tried for an endpoint.
type ConnectError struct {
	Endpoint string
	Attempts []error
}

func (e *ConnectError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("connect to %s: no addresses", e.Endpoint)
	}
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("connect to %s: %s", e.Endpoint, strings.Join(msgs, "; "))
}

func (e *ConnectError) Unwrap() []error {
	return e.Attempts
}
