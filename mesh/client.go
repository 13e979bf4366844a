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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
)

const (
	// DefaultTimeout is how long a query collects results.
	DefaultTimeout = 40 * time.Second
	// DefaultSleep is the pause between CHECK rounds.
	DefaultSleep = 250 * time.Millisecond

	minTimeout = time.Second
	minSleep   = 100 * time.Millisecond
)

// RemoteError is an ERROR reply to a REQUEST.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "mesh: " + e.Message
}

// ErrUnexpectedReply is returned when REQUEST is answered with neither
// SUBMITTED nor ERROR.
var ErrUnexpectedReply = errors.New("unexpected reply from mesh master")

// Conn is the session a client talks to the hub over.
type Conn interface {
	Send(pdu protocol.PDU) error
	Recv(timeout time.Duration) (protocol.PDU, error)
}

// Query is one operator request.
type Query struct {
	Username string
	// Password is sent when AuthKey is nil.
	Password string
	// AuthKey is a signing certificate; when set a sealed nonce replaces
	// the password.
	AuthKey *crypto.Certificate
	Command string
	// Filter is newline-separated name=glob clauses.
	Filter string

	Timeout     time.Duration
	Sleep       time.Duration
	ShowOptouts bool
}

// Bounds applies the defaults and floors to the timing fields.
func (q *Query) Bounds() {
	if q.Timeout == 0 {
		q.Timeout = DefaultTimeout
	}
	if q.Timeout < minTimeout {
		q.Timeout = minTimeout
	}
	if q.Sleep == 0 {
		q.Sleep = DefaultSleep
	}
	if q.Sleep < minSleep {
		q.Sleep = minSleep
	}
}

// Request builds the REQUEST PDU for q.
func (q Query) Request() (protocol.PDU, error) {
	if q.AuthKey == nil {
		return protocol.MakePDU(protocol.RequestTag, q.Username, "", q.Password, q.Command, q.Filter), nil
	}
	sealed, err := crypto.SealNonce(q.AuthKey, nil)
	if err != nil {
		return protocol.PDU{}, fmt.Errorf("unable to seal authentication nonce: %w", err)
	}
	pdu := protocol.MakePDU(protocol.RequestTag, q.Username, q.AuthKey.PublicHex())
	pdu.Extend(sealed)
	pdu.ExtendString(q.Command)
	pdu.ExtendString(q.Filter)
	return pdu, nil
}

// Client submits queries to a mesh hub and prints what comes back.
type Client struct {
	Conn Conn
	// Output receives one line per result; nil means stdout.
	Output io.Writer
	Log    logging.Logger
	// ReplyTimeout bounds the wait for each reply from the hub.
	ReplyTimeout time.Duration
}

// Run submits q and polls for results until q.Timeout has elapsed in
// q.Sleep steps.
func (c *Client) Run(ctx context.Context, q Query) error {
	log := c.log()
	q.Bounds()
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	wait := c.ReplyTimeout
	if wait <= 0 {
		wait = network.DefaultTimeout
	}

	req, err := q.Request()
	if err != nil {
		return err
	}
	if err := c.Conn.Send(req); err != nil {
		return err
	}
	reply, err := c.Conn.Recv(wait)
	if err != nil {
		return fmt.Errorf("no reply to REQUEST: %w", err)
	}
	switch reply.Type {
	case protocol.SubmittedTag:
	case protocol.ErrorTag:
		return &RemoteError{Message: reply.Text(1)}
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Type)
	}
	serial := reply.Text(1)
	log.Debugf("query %s submitted", serial)

	checks := int(q.Timeout / q.Sleep)
	if checks < 1 {
		checks = 1
	}
	t := time.NewTimer(q.Sleep)
	defer t.Stop()
	for i := 0; i < checks; i++ {
		if i > 0 {
			t.Reset(q.Sleep)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if err := c.check(serial, q.ShowOptouts, out, wait); err != nil {
			return err
		}
	}
	return nil
}

// check runs one CHECK round. Only a lost session is an error.
func (c *Client) check(serial string, optouts bool, out io.Writer, wait time.Duration) error {
	log := c.log()
	if err := c.Conn.Send(protocol.MakePDU(protocol.CheckTag, serial)); err != nil {
		return err
	}
	for {
		pdu, err := c.Conn.Recv(wait)
		if errors.Is(err, network.ErrTimeout) {
			log.Warnf("no reply to CHECK %s", serial)
			return nil
		}
		if err != nil {
			return err
		}
		switch pdu.Type {
		case protocol.DoneTag:
			return nil
		case protocol.ResultTag:
			frames := make([]string, 0, 4)
			for i := 1; i <= 4 && i < pdu.Size(); i++ {
				frames = append(frames, pdu.Text(i))
			}
			fmt.Fprintln(out, strings.TrimRight(strings.Join(frames, " "), "\n"))
		case protocol.OptoutTag:
			if optouts {
				fmt.Fprintf(out, "%s %s optout\n", pdu.Text(1), pdu.Text(2))
			}
		case protocol.ErrorTag:
			log.Errorf("ERROR: %s", pdu.Text(1))
			return nil
		default:
			log.Errorf("unexpected %s reply to CHECK", pdu.Type)
			return nil
		}
	}
}

func (c *Client) log() logging.Logger {
	if c.Log == nil {
		return logging.Base()
	}
	return c.Log
}
