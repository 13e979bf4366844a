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


package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/test/partitiontest"
)

func TestResultWriterPlain(t *testing.T) {
	partitiontest.PartitionTest(t)

	var buf bytes.Buffer
	w := newResultWriter(&buf)
	for _, c := range []*color.Color{w.host, w.failed, w.optout} {
		c.DisableColor()
	}

	_, err := w.Write([]byte("web01.example.com ok 0 PONG\ndb01.exa"))
	require.NoError(t, err)
	require.Equal(t, "web01.example.com ok 0 PONG\n", buf.String())
	_, err = w.Write([]byte("mple.com filtered optout\n"))
	require.NoError(t, err)
	require.Equal(t, "web01.example.com ok 0 PONG\ndb01.example.com filtered optout\n", buf.String())
}

func TestResultWriterColors(t *testing.T) {
	partitiontest.PartitionTest(t)

	var buf bytes.Buffer
	w := newResultWriter(&buf)
	for _, c := range []*color.Color{w.host, w.failed, w.optout} {
		c.EnableColor()
	}

	_, err := w.Write([]byte("web01 ok 0 line one\nline two\nweb02 error - access denied\nweb03 filtered optout\n"))
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 4)
	require.Equal(t, w.host.Sprint("web01")+" ok 0 line one", string(lines[0]))
	require.Equal(t, "line two", string(lines[1]))
	require.Equal(t, w.host.Sprint("web02")+" "+w.failed.Sprint("error - access denied"), string(lines[2]))
	require.Equal(t, w.host.Sprint("web03")+" "+w.optout.Sprint("filtered optout"), string(lines[3]))
}

func TestLoadAuthKey(t *testing.T) {
	partitiontest.PartitionTest(t)
	dir := t.TempDir()

	key, err := loadAuthKey("")
	require.NoError(t, err)
	require.Nil(t, key)

	key, err = loadAuthKey(filepath.Join(dir, "missing.key"))
	require.NoError(t, err)
	require.Nil(t, key)

	signing, err := crypto.Generate(crypto.Signing, "jhunt", nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "mesh.key")
	require.NoError(t, crypto.WriteCertificate(path, signing))
	key, err = loadAuthKey(path)
	require.NoError(t, err)
	require.Equal(t, signing.Public, key.Public)

	require.NoError(t, crypto.WriteCertificate(path, signing.PublicOnly()))
	_, err = loadAuthKey(path)
	require.ErrorIs(t, err, crypto.ErrNoSecret)

	box, err := crypto.Generate(crypto.Encryption, "jhunt", nil)
	require.NoError(t, err)
	require.NoError(t, crypto.WriteCertificate(path, box))
	_, err = loadAuthKey(path)
	require.ErrorContains(t, err, "signing key is required")
}

func TestPromptPasswordFromPipe(t *testing.T) {
	partitiontest.PartitionTest(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	_, err = w.WriteString("sekrit\r\nignored\n")
	require.NoError(t, err)
	w.Close()

	var prompt bytes.Buffer
	pw, err := promptPassword(r, &prompt, "password: ")
	require.NoError(t, err)
	require.Equal(t, "sekrit", pw)
	require.Empty(t, prompt.String())

	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	defer r2.Close()
	w2.Close()
	_, err = promptPassword(r2, &prompt, "password: ")
	require.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.NoError(t, rootCmd.Flags().Parse([]string{"-m", "hub.example.com:2316", "-t", "3", "-s", "500", "--optouts"}))
	cfg := config.Mesh{Master: "old:1", Username: "jhunt", Timeout: 40 * time.Second, Sleep: 250 * time.Millisecond}
	applyFlags(rootCmd.Flags(), &cfg)
	require.Equal(t, config.Mesh{
		Master:   "hub.example.com:2316",
		Username: "jhunt",
		Timeout:  3 * time.Second,
		Sleep:    500 * time.Millisecond,
		Optouts:  true,
	}, cfg)
}
