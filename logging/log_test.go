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

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/test/partitiontest"
)

func isJSON(s string) bool {
	var js map[string]interface{}
	return json.Unmarshal([]byte(s), &js) == nil
}

func TestFileOutputNewLogger(t *testing.T) {
	partitiontest.PartitionTest(t)
	a := require.New(t)

	var bufNewLogger bytes.Buffer
	nl := NewLogger()
	nl.SetOutput(&bufNewLogger)

	nl.Info("Should show up in New logger")
	a.Contains(bufNewLogger.String(), "Should show up in New logger")
}

func TestSetGetLevel(t *testing.T) {
	partitiontest.PartitionTest(t)

	nl := NewLogger()
	require.Equal(t, Info, nl.GetLevel())
	nl.SetLevel(Error)
	require.Equal(t, Error, nl.GetLevel())
	require.False(t, nl.IsLevelEnabled(Warn))
	require.True(t, nl.IsLevelEnabled(Fatal))
}

func TestWithFieldsNewLogger(t *testing.T) {
	partitiontest.PartitionTest(t)
	a := require.New(t)

	var buf bytes.Buffer
	nl := NewLogger()
	nl.SetOutput(&buf)

	nl.WithFields(Fields{"master": "cfm1:2314"}).With("attempt", 2).Warn("no response")
	a.Contains(buf.String(), "master=")
	a.Contains(buf.String(), "attempt=2")
	a.Contains(buf.String(), "file=log_test.go")
}

func TestSetJSONFormatter(t *testing.T) {
	partitiontest.PartitionTest(t)
	a := require.New(t)

	var buf bytes.Buffer
	nl := NewLogger()
	nl.SetOutput(&buf)
	nl.SetJSONFormatter()
	nl.Info("json")
	a.True(isJSON(buf.String()))
}

func TestParseLevel(t *testing.T) {
	partitiontest.PartitionTest(t)

	for name, want := range map[string]Level{
		"debug":   Debug,
		"notice":  Info,
		"WARNING": Warn,
		"err":     Error,
		"crit":    Fatal,
		"emerg":   Panic,
	} {
		lvl, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, want, lvl, name)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestLevelHookFilters(t *testing.T) {
	partitiontest.PartitionTest(t)

	h := levelHook{Hook: allLevels{}, max: Warn}
	levels := h.Levels()
	require.Contains(t, levels, logrus.ErrorLevel)
	require.Contains(t, levels, logrus.WarnLevel)
	require.NotContains(t, levels, logrus.InfoLevel)
	require.NotContains(t, levels, logrus.DebugLevel)
}

type allLevels struct{}

func (allLevels) Levels() []logrus.Level   { return logrus.AllLevels }
func (allLevels) Fire(*logrus.Entry) error { return nil }

func TestCyclicWrite(t *testing.T) {
	partitiontest.PartitionTest(t)

	dir := t.TempDir()
	live := filepath.Join(dir, "cogd.log")
	archive := filepath.Join(dir, "cogd.log.archive")

	w, err := MakeCyclicFileWriter(live, archive, 10)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ijk"))
	require.NoError(t, err)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	require.Equal(t, "abcdefgh", string(data))
	data, err = os.ReadFile(live)
	require.NoError(t, err)
	require.Equal(t, "ijk", string(data))

	_, err = w.Write([]byte("this is far too long"))
	require.Error(t, err)
}

func TestConfigureFile(t *testing.T) {
	partitiontest.PartitionTest(t)

	path := filepath.Join(t.TempDir(), "agent.log")
	nl := NewLogger()
	closer, err := Configure(nl, Options{Level: Debug, File: path})
	require.NoError(t, err)
	nl.Debug("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written to file")
}

func TestCyclicWriteUnlimited(t *testing.T) {
	partitiontest.PartitionTest(t)

	dir := t.TempDir()
	live := filepath.Join(dir, "cogd.log")
	require.NoError(t, os.WriteFile(live, []byte("earlier\n"), 0640))

	w, err := MakeCyclicFileWriter(live, live+".archive", 0)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = w.Write([]byte("0123456789\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	st, err := os.Stat(live)
	require.NoError(t, err)
	require.EqualValues(t, 8+100*11, st.Size())
	_, err = os.Stat(live + ".archive")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigureReplacesHooks(t *testing.T) {
	partitiontest.PartitionTest(t)

	nl := NewLogger()
	nl.AddHook(allLevels{})
	_, err := Configure(nl, Options{Level: Warn})
	require.NoError(t, err)
	require.Empty(t, nl.(logger).entry.Logger.Hooks)
	require.Equal(t, Warn, nl.GetLevel())
}
