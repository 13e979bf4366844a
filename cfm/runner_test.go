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
	"errors"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/test/partitiontest"
	"github.com/algorand/go-clockwork/vm"
)

const motdPolicy = `
pushbytes "role"
fact
pushbytes "web"
==
bz done
pushbytes "/etc/motd"
topic file
pushbytes "source"
pushbytes "motd"
attr
enforce
pop
done:
pushbytes "allow %wheel \"*\" final"
acl
`

func skipWithoutShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("gatherers are shell scripts")
	}
}

func TestRunCompleted(t *testing.T) {
	partitiontest.PartitionTest(t)
	skipWithoutShell(t)

	image := assemble(t, motdPolicy)
	m := newFakeMaster(t, image)
	m.archive = packTree(t, map[string]string{"gather.d/10-role": "#!/bin/sh\necho role=web\n"})
	m.files["file:/etc/motd"] = "welcome to host01\n"
	a := newTestAgent(t, m.start(t))

	var sawRetrieved, sawExecuted atomic.Bool
	m.onFile = func(string) {
		_, err := os.Stat(a.opts.Store.RetrievedPath())
		sawRetrieved.Store(err == nil)
		_, err = os.Stat(a.opts.Store.ExecutedPath())
		sawExecuted.Store(err == nil)
	}

	res := a.runner.Run(context.Background())
	require.NoError(t, res.Err)
	require.Equal(t, Completed, res.Outcome)
	require.Equal(t, State{Kind: Connected, Index: 0}, res.State)
	require.Equal(t, 1, res.Enforced)
	require.Empty(t, res.Failures)
	require.Equal(t, Digest(image), res.Digest)

	// retr.S is written before execution, policy.S only after it returns
	require.True(t, sawRetrieved.Load())
	require.False(t, sawExecuted.Load())
	for _, p := range []string{a.opts.Store.RetrievedPath(), a.opts.Store.ExecutedPath()} {
		raw, err := os.ReadFile(p)
		require.NoError(t, err)
		require.Equal(t, image, raw)
	}

	motd, err := os.ReadFile(a.path("root/etc/motd"))
	require.NoError(t, err)
	require.Equal(t, "welcome to host01\n", string(motd))

	require.Equal(t, "web", a.runner.Facts()["role"])
	require.Contains(t, m.policyFacts(), "role=web\n")
	require.Contains(t, m.policyFacts(), "sys.fqdn=")

	list, err := acl.Read(a.opts.ACLFile)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "%wheel", list[0].Subject)

	rec, ok, err := a.opts.Store.LoadRecord()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "completed", rec.Outcome)
	require.Equal(t, a.opts.Ring.Masters[0].Endpoint, rec.Master)
	require.Contains(t, rec.PhasesMS, "getpolicy")

	seen := m.seen()
	require.Equal(t, []protocol.Tag{protocol.PingTag, protocol.HelloTag, protocol.CopydownTag}, seen[:3])
	require.Equal(t, protocol.ByeTag, seen[len(seen)-1])
	require.Contains(t, seen, protocol.FileTag)
}

func TestRunCopydownWithoutEOF(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, assemble(t, "pushint 1\npop"))
	m.archive = bytes.Repeat([]byte{0}, 4*testBlockSize)
	m.breakCopydown = true
	a := newTestAgent(t, m.start(t))

	res := a.runner.Run(context.Background())
	require.Equal(t, Aborted, res.Outcome)
	var perr *ProtocolError
	require.ErrorAs(t, res.Err, &perr)
	require.Equal(t, "copydown", perr.Phase)

	for _, p := range []string{a.opts.Store.RetrievedPath(), a.opts.Store.ExecutedPath()} {
		_, err := os.Stat(p)
		require.True(t, errors.Is(err, os.ErrNotExist), p)
	}
	require.NotContains(t, m.seen(), protocol.PolicyTag)
}

func TestRunPolicyError(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, nil)
	m.policyError = "no policy defined for host01"
	a := newTestAgent(t, m.start(t))
	a.opts.Gatherers = ""
	a.runner.Reconfigure(a.opts, nil)

	res := a.runner.Run(context.Background())
	require.Equal(t, Aborted, res.Outcome)
	var perr *ProtocolError
	require.ErrorAs(t, res.Err, &perr)
	require.Equal(t, "no policy defined for host01", perr.Message)
	require.Contains(t, perr.Error(), "protocol error")
}

func TestRunInvalidImageFromMaster(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, []byte("garbage"))
	a := newTestAgent(t, m.start(t))
	a.opts.Gatherers = ""
	a.runner.Reconfigure(a.opts, nil)

	res := a.runner.Run(context.Background())
	require.Equal(t, NoPolicy, res.Outcome)
	require.ErrorIs(t, res.Err, ErrNoPolicy)
	require.Contains(t, res.Err.Error(), "67 61 72 62")
	_, err := os.Stat(a.opts.Store.RetrievedPath())
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunOffline(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := newTestAgent(t, deadMaster(t), deadMaster(t))

	res := a.runner.Run(context.Background())
	require.Equal(t, NoPolicy, res.Outcome)
	require.ErrorIs(t, res.Err, ErrNoPolicy)
	require.Equal(t, Exhausted, res.State.Kind)

	image := assemble(t, `
pushbytes "/srv/app"
topic dir
enforce
pop
`)
	require.NoError(t, a.opts.Store.SaveExecuted(image))
	before, err := os.Stat(a.opts.Store.ExecutedPath())
	require.NoError(t, err)

	res = a.runner.Run(context.Background())
	require.Equal(t, Offline, res.Outcome)
	require.Equal(t, 1, res.Enforced)
	require.DirExists(t, a.path("root/srv/app"))

	_, err = os.Stat(a.opts.Store.RetrievedPath())
	require.True(t, errors.Is(err, os.ErrNotExist))
	after, err := os.Stat(a.opts.Store.ExecutedPath())
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())

	require.NoError(t, os.WriteFile(a.opts.Store.ExecutedPath(), []byte("zz"), 0600))
	res = a.runner.Run(context.Background())
	require.Equal(t, NoPolicy, res.Outcome)
	var ierr *InvalidImageError
	require.ErrorAs(t, res.Err, &ierr)
	require.Contains(t, res.Err.Error(), "only 2 bytes")
}

func TestRunInterruptedPolicyIsNotKept(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, assemble(t, `
pushbytes "/srv/a"
topic dir
enforce
pop
err
pushbytes "/srv/b"
topic dir
enforce
pop
`))
	a := newTestAgent(t, m.start(t))
	a.opts.Gatherers = ""
	a.runner.Reconfigure(a.opts, nil)

	res := a.runner.Run(context.Background())
	require.Equal(t, Interrupted, res.Outcome)
	require.ErrorIs(t, res.Err, ErrInterrupted)
	var eerr *vm.EvalError
	require.ErrorAs(t, res.Err, &eerr)
	require.Equal(t, "err", eerr.Op)
	require.Equal(t, 1, res.Enforced)
	require.DirExists(t, a.path("root/srv/a"))
	require.NoDirExists(t, a.path("root/srv/b"))

	require.FileExists(t, a.opts.Store.RetrievedPath())
	_, err := os.Stat(a.opts.Store.ExecutedPath())
	require.True(t, errors.Is(err, os.ErrNotExist))

	seen := m.seen()
	require.Equal(t, protocol.ByeTag, seen[len(seen)-1])
	rec, ok, err := a.opts.Store.LoadRecord()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "interrupted", rec.Outcome)
}

func TestRunCancelledMidPolicy(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, assemble(t, `
pushbytes "/etc/motd"
topic file
pushbytes "source"
pushbytes "motd"
attr
enforce
pop
pushbytes "/srv/late"
topic dir
enforce
pop
`))
	m.files["file:/etc/motd"] = "hi\n"
	a := newTestAgent(t, m.start(t))
	a.opts.Gatherers = ""
	a.runner.Reconfigure(a.opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.onFile = func(string) { cancel() }

	res := a.runner.Run(ctx)
	require.Equal(t, Interrupted, res.Outcome)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.NoDirExists(t, a.path("root/srv/late"))
	_, err := os.Stat(a.opts.Store.ExecutedPath())
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunOfflineCancelledKeepsCache(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := newTestAgent(t, deadMaster(t))
	image := assemble(t, "pushbytes \"/srv/app\"\ntopic dir\nenforce\npop")
	require.NoError(t, a.opts.Store.SaveExecuted(image))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := a.runner.Run(ctx)
	require.Equal(t, Interrupted, res.Outcome)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.NoDirExists(t, a.path("root/srv/app"))

	raw, err := a.opts.Store.LoadExecuted()
	require.NoError(t, err)
	require.Equal(t, image, raw)
}

func TestRunFailover(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, assemble(t, "pushint 1\npop"))
	a := newTestAgent(t, deadMaster(t), m.start(t))
	a.opts.Gatherers = ""
	a.runner.Reconfigure(a.opts, nil)

	res := a.runner.Run(context.Background())
	require.Equal(t, Completed, res.Outcome)
	require.Equal(t, []State{
		{Kind: Unresolved},
		{Kind: Trying, Index: 0},
		{Kind: Trying, Index: 1},
		{Kind: Connected, Index: 1},
	}, a.states)
	require.Equal(t, 1, a.opts.Ring.Current)
}

func TestRunCodeMode(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, assemble(t, "pushint 7\npop"))
	a := newTestAgent(t, m.start(t))
	var code bytes.Buffer
	a.opts.Gatherers = ""
	a.opts.Mode = ModeCode
	a.opts.Code = &code
	a.runner.Reconfigure(a.opts, nil)

	// the gate does not apply to code dumps
	require.NoError(t, os.MkdirAll(a.opts.Gate.LockDir, 0755))
	require.NoError(t, os.WriteFile(a.opts.Gate.KillswitchPath(), nil, 0644))

	res := a.runner.Run(context.Background())
	require.Equal(t, Dumped, res.Outcome)
	require.Contains(t, code.String(), "pushint 7")
	for _, p := range []string{a.opts.Store.RetrievedPath(), a.opts.Store.ExecutedPath(), a.opts.ACLFile} {
		_, err := os.Stat(p)
		require.True(t, errors.Is(err, os.ErrNotExist), p)
	}
}

func TestRunSkippedAndRescheduled(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := newTestAgent(t)
	a.opts.Mode = ModeRun
	a.opts.Schedule = &Schedule{Interval: 5 * time.Minute}
	a.runner.Reconfigure(a.opts, nil)

	require.NoError(t, os.MkdirAll(a.opts.Gate.LockDir, 0755))
	require.NoError(t, os.WriteFile(a.opts.Gate.KillswitchPath(), nil, 0644))

	before := time.Now()
	res := a.runner.Run(context.Background())
	require.Equal(t, Skipped, res.Outcome)
	require.True(t, IsSkip(res.Err))
	require.False(t, a.runner.Schedule().NextRun.Before(before.Add(5*time.Minute)))
}

func TestReconfigureKeepsScheduleAndRing(t *testing.T) {
	partitiontest.PartitionTest(t)

	masters := []Master{deadMaster(t), deadMaster(t)}
	a := newTestAgent(t, masters...)
	a.opts.Schedule = &Schedule{Interval: time.Minute, NextRun: time.Unix(1000, 0)}
	a.opts.Ring.Current = 0
	a.runner.Reconfigure(a.opts, nil)

	next := a.opts
	next.Ring = NewRing(masters)
	next.Schedule = &Schedule{Interval: 2 * time.Minute}
	a.runner.Reconfigure(next, acl.List{{Disposition: acl.Allow, Subject: "*", Pattern: "ping"}})

	require.Equal(t, time.Unix(1000, 0), a.runner.Schedule().NextRun)
	require.Equal(t, 2*time.Minute, a.runner.Schedule().Interval)
	require.Equal(t, 0, next.Ring.Current)
	require.Len(t, a.runner.ACL(), 1)
}

func TestRemoteDigestMismatch(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := newFakeMaster(t, nil)
	m.files["file:/etc/issue"] = "hello"
	m.files["file:/etc/issue.net"] = "hello"
	m.corrupt["file:/etc/issue.net"] = true
	master := m.start(t)

	s, err := network.Dial(context.Background(), master.Endpoint, genCert(t, "agent"), master.Cert, network.DialOptions{Timeout: time.Second, Log: logging.TestingLog(t)})
	require.NoError(t, err)
	defer s.Shutdown(0)

	r := &Remote{Session: s, Timeout: time.Second}
	_, err = r.Fetch(context.Background(), "file:/etc/issue.net")
	require.ErrorIs(t, err, ErrDigestMismatch)

	content, err := r.Fetch(context.Background(), "file:/etc/issue")
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	_, err = r.Fetch(context.Background(), "file:/nope")
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.True(t, strings.Contains(perr.Message, "no such file"))
}
