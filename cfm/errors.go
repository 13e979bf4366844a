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

// Package cfm runs configuration management: it picks a reachable policy
// master, retrieves and executes the compiled policy for this host, and
// falls back to the last executed policy when no master answers.
package cfm

import (
	"errors"
	"fmt"

	"github.com/algorand/go-clockwork/protocol"
)

// ProtocolError is an unexpected or ERROR reply from the master.
type ProtocolError struct {
	Phase string
	Got   protocol.Tag
	// Message is the master's explanation for ERROR replies.
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Got == protocol.ErrorTag {
		return fmt.Sprintf("%s: protocol error: %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: protocol violation: received a %s PDU", e.Phase, e.Got)
}

// ErrNoPolicy means neither the master nor the cache produced a policy.
var ErrNoPolicy = errors.New("no policy available")

// ErrInterrupted wraps the fault that stopped a policy before it finished.
var ErrInterrupted = errors.New("policy execution interrupted")

// ErrDigestMismatch is returned when fetched file content does not hash to
// the digest the master announced.
var ErrDigestMismatch = errors.New("content digest mismatch")
