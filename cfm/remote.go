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
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/algorand/go-clockwork/protocol"
)

// requester is the part of a session a dialog needs.
type requester interface {
	Request(pdu protocol.PDU, timeout time.Duration) (protocol.PDU, error)
}

// Remote fetches file content from the connected master during policy
// execution: FILE(key) is answered by SHA1(hex digest), then the content
// is streamed by DATA/BLOCK until EOF and checked against the digest.
type Remote struct {
	Session requester
	Timeout time.Duration
}

// Fetch implements resource.Remote.
func (r *Remote) Fetch(ctx context.Context, key string) ([]byte, error) {
	reply, err := r.Session.Request(protocol.MakePDU(protocol.FileTag, key), r.Timeout)
	if err != nil {
		return nil, fmt.Errorf("FILE %s failed: %w", key, err)
	}
	if reply.Type != protocol.SHA1Tag {
		return nil, &ProtocolError{Phase: "file", Got: reply.Type, Message: reply.Text(1)}
	}
	want := reply.Text(1)

	var buf bytes.Buffer
	if err := stream(ctx, r.Session, r.Timeout, "file", func(block []byte) error {
		buf.Write(block)
		return nil
	}); err != nil {
		return nil, err
	}

	sum := sha1.Sum(buf.Bytes())
	if got := hex.EncodeToString(sum[:]); want != "" && got != want {
		return nil, fmt.Errorf("%s: %w: got %s, master announced %s", key, ErrDigestMismatch, got, want)
	}
	return buf.Bytes(), nil
}

// stream drives a DATA(n)/BLOCK/EOF transfer, handing each block to sink.
func stream(ctx context.Context, s requester, timeout time.Duration, phase string, sink func([]byte) error) error {
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		reply, err := s.Request(protocol.MakePDU(protocol.DataTag, strconv.Itoa(n)), timeout)
		if err != nil {
			return fmt.Errorf("DATA failed: %w", err)
		}
		switch reply.Type {
		case protocol.EOFTag:
			return nil
		case protocol.BlockTag:
			if err := sink(reply.Frame(1)); err != nil {
				return err
			}
		default:
			return &ProtocolError{Phase: phase, Got: reply.Type, Message: reply.Text(1)}
		}
	}
}
