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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/test/partitiontest"
)

func TestGateKillswitch(t *testing.T) {
	partitiontest.PartitionTest(t)

	g := NewGate(t.TempDir())
	require.NoError(t, os.WriteFile(g.KillswitchPath(), []byte("maintenance"), 0644))

	release, err := g.Enter()
	require.Nil(t, release)
	var ks *KillswitchError
	require.ErrorAs(t, err, &ks)
	require.True(t, IsSkip(err))
	require.Contains(t, err.Error(), "Found CFM KILLSWITCH")

	require.NoError(t, os.Remove(g.KillswitchPath()))
	release, err = g.Enter()
	require.NoError(t, err)
	release()
}

func TestGateLock(t *testing.T) {
	partitiontest.PartitionTest(t)

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(filepath.Join(t.TempDir(), "run"))
	g.now = func() time.Time { return fixed }

	release, err := g.Enter()
	require.NoError(t, err)
	holder, err := os.ReadFile(g.LockPath())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(strings.TrimSpace(string(holder)), "2024-03-01T12:00:00Z"))

	_, err = NewGate(g.LockDir).Enter()
	var le *LockedError
	require.ErrorAs(t, err, &le)
	require.Contains(t, le.Holder, "pid ")
	require.True(t, IsSkip(err))

	release()
	again, err := NewGate(g.LockDir).Enter()
	require.NoError(t, err)
	again()

	require.False(t, IsSkip(errors.New("disk full")))
}

func TestGateLogsHolderWriteFailure(t *testing.T) {
	partitiontest.PartitionTest(t)

	var out bytes.Buffer
	log := logging.NewLogger()
	log.SetOutput(&out)
	log.SetLevel(logging.Debug)

	g := NewGate(filepath.Join(t.TempDir(), "run"))
	g.Log = log
	g.writeFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }

	release, err := g.Enter()
	require.NoError(t, err)
	release()
	require.Contains(t, out.String(), "unable to record lock holder")
	require.Contains(t, out.String(), "disk full")
}

func TestStoreSlots(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := Store{Dir: filepath.Join(t.TempDir(), "state")}
	_, err := s.LoadExecuted()
	require.True(t, errors.Is(err, os.ErrNotExist))

	image := assemble(t, "pushint 1\npop")
	require.NoError(t, s.SaveRetrieved([]byte("not yet run")))
	require.NoError(t, s.SaveExecuted(image))
	got, err := s.LoadExecuted()
	require.NoError(t, err)
	require.Equal(t, image, got)

	st, err := os.Stat(s.ExecutedPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), st.Mode().Perm())

	require.NoError(t, s.SaveExecuted([]byte("CWB?garbage")))
	_, err = s.LoadExecuted()
	var ierr *InvalidImageError
	require.ErrorAs(t, err, &ierr)
	require.Contains(t, err.Error(), "File starts 43 57 42 3f")
	require.Equal(t, 11, ierr.Len)
}

func TestStoreRecord(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := Store{Dir: t.TempDir()}
	_, ok, err := s.LoadRecord()
	require.NoError(t, err)
	require.False(t, ok)

	rec := RunRecord{
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Outcome:  Completed.String(),
		Master:   "cfm01:2314",
		Digest:   Digest([]byte("policy")),
		Enforced: 12,
		Failed:   []string{"file:/etc/motd: permission denied"},
		PhasesMS: map[string]int64{"connect": 3, "enforce": 120},
	}
	require.NoError(t, s.SaveRecord(rec))
	got, ok, err := s.LoadRecord()
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(rec, got))
}

func TestDigest(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := Digest([]byte("one"))
	require.Len(t, a, 16)
	require.Equal(t, a, Digest([]byte("one")))
	require.NotEqual(t, a, Digest([]byte("two")))
}

func TestStats(t *testing.T) {
	partitiontest.PartitionTest(t)

	var s Stats
	boom := errors.New("boom")
	require.ErrorIs(t, s.Time(PhaseFacts, func() error {
		time.Sleep(5 * time.Millisecond)
		return boom
	}), boom)
	require.GreaterOrEqual(t, s.Phases[PhaseFacts], 5*time.Millisecond)
	require.Equal(t, s.Phases[PhaseFacts], s.Total())

	out := s.String()
	require.True(t, strings.HasPrefix(out, "STATS(ms): connect=0, hello=0"))
	require.Contains(t, out, "cleanup=0")
	require.Len(t, s.Millis(), int(numPhases))
}

func TestSchedule(t *testing.T) {
	partitiontest.PartitionTest(t)

	now := time.Unix(1700000000, 0)
	s := &Schedule{Interval: 5 * time.Minute}
	require.True(t, s.Due(now))
	require.Zero(t, s.TimeLeft(now))

	s.Advance(now)
	require.False(t, s.Due(now))
	require.Equal(t, 5*time.Minute, s.TimeLeft(now))
	require.True(t, s.Due(now.Add(5*time.Minute)))
	require.Equal(t, "every 5 minutes", s.Describe())

	s.Interval = 2 * time.Minute
	require.Equal(t, "every 120 seconds", s.Describe())
}
