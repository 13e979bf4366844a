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
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/facts"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/resource"
	"github.com/algorand/go-clockwork/vm"
)

// Sender is where an agent sends its reply.
type Sender interface {
	Send(pdu protocol.PDU) error
}

// Context is the host state a COMMAND is evaluated against. It is built
// fresh for every broadcast and only read.
type Context struct {
	Facts     facts.Facts
	ACL       acl.List
	Default   acl.Disposition
	FQDN      string
	Gatherers string
}

// Agent answers mesh COMMAND broadcasts.
type Agent struct {
	// Env is what code-bearing commands act on.
	Env *resource.Env
	// Remote backs remote.fetch for code-bearing commands; nil disables it.
	Remote  vm.Remote
	Version string
	Log     logging.Logger
}

// Command is a decoded COMMAND broadcast.
type Command struct {
	Serial  string
	Creds   acl.Creds
	Command string
	Filter  Filter
	Code    []byte
}

// ParseCommand decodes COMMAND(serial, creds, command, filter[, code]).
func ParseCommand(pdu protocol.PDU) (cmd Command, err error) {
	if pdu.Type != protocol.CommandTag {
		return cmd, fmt.Errorf("expected a %s PDU, got %s", protocol.CommandTag, pdu.Type)
	}
	cmd.Serial = pdu.Text(1)
	if pdu.Size() < 5 {
		return cmd, fmt.Errorf("%s PDU has %d frames, want at least 5", pdu.Type, pdu.Size())
	}
	if cmd.Serial == "" {
		return cmd, fmt.Errorf("%s PDU has no serial", pdu.Type)
	}
	if cmd.Creds = acl.ParseCreds(pdu.Text(2)); cmd.Creds.User == "" {
		return cmd, fmt.Errorf("%s PDU has no credentials", pdu.Type)
	}
	cmd.Command = normalize(pdu.Text(3))
	if cmd.Command == "" {
		return cmd, fmt.Errorf("%s PDU has an empty command", pdu.Type)
	}
	if cmd.Filter, err = ParseFilter(pdu.Text(4)); err != nil {
		return cmd, err
	}
	cmd.Code = pdu.Frame(5)
	return cmd, nil
}

func normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

// Handle evaluates one broadcast PDU and sends exactly one reply on
// control. Only the send can fail; every other problem becomes an ERROR
// reply.
func (a *Agent) Handle(ctx context.Context, mc Context, pdu protocol.PDU, control Sender) error {
	reply := a.evaluate(ctx, mc, pdu)
	a.log().Debugf("mesh: replying %s", reply)
	if err := control.Send(reply); err != nil {
		return fmt.Errorf("mesh reply: %w", err)
	}
	return nil
}

func (a *Agent) evaluate(ctx context.Context, mc Context, pdu protocol.PDU) protocol.PDU {
	log := a.log()
	cmd, err := ParseCommand(pdu)
	if err != nil {
		log.Warnf("mesh: malformed broadcast: %v", err)
		return protocol.MakePDU(protocol.ErrorTag, cmd.Serial, mc.FQDN, err.Error())
	}
	log = log.WithFields(logging.Fields{"serial": cmd.Serial, "creds": cmd.Creds.String()})

	if !cmd.Filter.Matches(mc.Facts) {
		log.Debugf("mesh: filtered out of '%s'", cmd.Command)
		return protocol.MakePDU(protocol.OptoutTag, cmd.Serial, mc.FQDN, "filtered")
	}

	if mc.ACL.Check(cmd.Creds, cmd.Command, mc.Default) != acl.Allow {
		log.Infof("mesh: denied '%s'", cmd.Command)
		return protocol.MakePDU(protocol.ErrorTag, cmd.Serial, mc.FQDN, "access denied")
	}
	log.Infof("mesh: running '%s'", cmd.Command)

	var rc int
	var out string
	if len(cmd.Code) > 0 {
		rc, out, err = a.exec(ctx, mc, cmd.Code)
	} else {
		rc, out, err = a.builtin(ctx, mc, cmd.Command)
	}
	if err != nil {
		return protocol.MakePDU(protocol.ErrorTag, cmd.Serial, mc.FQDN, err.Error())
	}
	return protocol.MakePDU(protocol.ResultTag, cmd.Serial, mc.FQDN, strconv.Itoa(rc), out)
}

func (a *Agent) exec(ctx context.Context, mc Context, code []byte) (int, string, error) {
	machine := vm.New()
	defer machine.Done()
	if err := machine.Load(code); err != nil {
		return 0, "", fmt.Errorf("invalid code: %w", err)
	}
	var out bytes.Buffer
	machine.Facts = mc.Facts.Clone()
	machine.Env = a.Env
	machine.Remote = a.Remote
	machine.Log = a.log()
	machine.Output = &out
	err := machine.Exec(ctx)
	rc := machine.ExitCode()
	if err != nil {
		fmt.Fprintf(&out, "%v\n", err)
		if rc == 0 {
			rc = 1
		}
	}
	return rc, out.String(), nil
}

func (a *Agent) builtin(ctx context.Context, mc Context, command string) (int, string, error) {
	switch {
	case command == "ping":
		return 0, "PONG\n", nil
	case command == "show version":
		return 0, a.version() + "\n", nil
	case command == "show facts":
		return 0, mc.Facts.String(), nil
	case command == "show acl":
		return 0, fmt.Sprintf("%s# default: %s\n", mc.ACL.String(), mc.Default), nil
	case command == "gather facts":
		fresh, err := facts.Collect(ctx, mc.Gatherers, a.log())
		if err != nil {
			return 1, err.Error() + "\n", nil
		}
		return 0, fresh.String(), nil
	}
	for _, prefix := range []string{"show-fact ", "show fact "} {
		if name, ok := strings.CutPrefix(command, prefix); ok {
			v, ok := mc.Facts[name]
			if !ok {
				return 1, fmt.Sprintf("%s: no such fact\n", name), nil
			}
			return 0, v + "\n", nil
		}
	}
	return 0, "", fmt.Errorf("unrecognized command '%s'", command)
}

func (a *Agent) version() string {
	if a.Version != "" {
		return a.Version
	}
	return fmt.Sprintf("clockwork (protocol v%d)", protocol.Version)
}

func (a *Agent) log() logging.Logger {
	if a.Log == nil {
		return logging.Base()
	}
	return a.Log
}
