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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/cfm"
	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/test/partitiontest"
	"github.com/algorand/go-clockwork/util/metrics"
)

func writeCert(t *testing.T, path string, kind crypto.KeyType, ident string, public bool) *crypto.Certificate {
	c, err := crypto.Generate(kind, ident, nil)
	require.NoError(t, err)
	if public {
		c = c.PublicOnly()
	}
	require.NoError(t, crypto.WriteCertificate(path, c))
	return c
}

// testConfig writes a complete agent configuration under a temp dir and
// returns it with the path it was saved at.
func testConfig(t *testing.T) (config.Local, string) {
	dir := t.TempDir()
	writeCert(t, filepath.Join(dir, "cogd.cert"), crypto.Encryption, "web01.example.com", false)
	writeCert(t, filepath.Join(dir, "master.pub"), crypto.Encryption, "master", true)

	cfg := config.GetDefaultLocal()
	cfg.Masters = []config.MasterConfig{{Endpoint: "127.0.0.1:1", Cert: filepath.Join(dir, "master.pub")}}
	cfg.SecurityCert = filepath.Join(dir, "cogd.cert")
	cfg.ACL = filepath.Join(dir, "local.acl")
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.LockDir = filepath.Join(dir, "lock")
	cfg.PidFile = filepath.Join(dir, "cogd.pid")
	cfg.Gatherers = filepath.Join(dir, "gather.d", "*")
	cfg.Copydown = filepath.Join(dir, "gather.d")
	cfg.Syslog.Ident = ""

	path := filepath.Join(dir, "cogd.conf")
	require.NoError(t, cfg.SaveToFile(path))
	return cfg, path
}

func TestLoadConfigExitCodes(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.conf"), log)
	require.Error(t, err)
	require.Equal(t, config.ExitConfig, config.ExitCode(err))

	cfg, path := testConfig(t)
	cfg.Masters = nil
	require.NoError(t, cfg.SaveToFile(path))
	_, err = loadConfig(path, log)
	require.ErrorIs(t, err, config.ErrNoMasters)
	require.Equal(t, config.ExitNoMasters, config.ExitCode(err))

	cfg, path = testConfig(t)
	cfg.Interval = 1
	cfg.Timeout = 0
	require.NoError(t, cfg.SaveToFile(path))
	got, err := loadConfig(path, log)
	require.NoError(t, err)
	require.Equal(t, config.MinimumInterval, got.Interval)
	require.Equal(t, config.MinimumTimeout, got.Timeout)
}

func TestLoadIdentity(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	var out bytes.Buffer
	captured := logging.NewLogger()
	captured.SetOutput(&out)
	captured.SetLevel(logging.Info)

	cfg, _ := testConfig(t)
	id, err := loadIdentity(cfg, captured)
	require.NoError(t, err)
	require.Contains(t, out.String(), "no ACL found at "+cfg.ACL)
	require.Equal(t, "web01.example.com", id.Self.Ident)
	require.True(t, id.Self.HasSecret())
	require.Len(t, id.Masters, 1)
	require.False(t, id.Masters[0].Cert.HasSecret())
	require.Empty(t, id.ACL)
	require.Equal(t, acl.Deny, id.Default)
	require.Nil(t, id.MeshCert)

	require.NoError(t, os.WriteFile(cfg.ACL, []byte("allow %wheel \"*\" final\n"), 0600))
	id, err = loadIdentity(cfg, log)
	require.NoError(t, err)
	require.Len(t, id.ACL, 1)

	meshCert := filepath.Join(t.TempDir(), "mesh.pub")
	writeCert(t, meshCert, crypto.Encryption, "hub", false)
	cfg.Mesh = config.MeshConfig{Broadcast: "127.0.0.1:2315", Control: "127.0.0.1:2316", Cert: meshCert}
	id, err = loadIdentity(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, id.MeshCert)
	require.False(t, id.MeshCert.HasSecret())
}

func TestLoadIdentityFailures(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	cfg, _ := testConfig(t)
	writeCert(t, cfg.SecurityCert, crypto.Encryption, "web01.example.com", true)
	_, err := loadIdentity(cfg, log)
	require.ErrorContains(t, err, "no secret key")
	require.Equal(t, config.ExitConfig, config.ExitCode(err))

	writeCert(t, cfg.SecurityCert, crypto.Encryption, "", false)
	_, err = loadIdentity(cfg, log)
	require.ErrorContains(t, err, "no identity")
	require.Equal(t, config.ExitConfig, config.ExitCode(err))

	cfg, _ = testConfig(t)
	cfg.Masters[0].Cert = filepath.Join(t.TempDir(), "nope.pub")
	_, err = loadIdentity(cfg, log)
	require.ErrorContains(t, err, "cert.1")
	require.Equal(t, config.ExitConfig, config.ExitCode(err))

	cfg, _ = testConfig(t)
	require.NoError(t, os.WriteFile(cfg.ACL, []byte("maybe %wheel \"*\"\n"), 0600))
	_, err = loadIdentity(cfg, log)
	require.Error(t, err)
	require.Equal(t, config.ExitConfig, config.ExitCode(err))
}

func TestBuildOptions(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	cfg, _ := testConfig(t)
	id, err := loadIdentity(cfg, log)
	require.NoError(t, err)

	opts := buildOptions(cfg, id, cfm.ModeRun, setupFlags{}, "web01.example.com", log)
	require.Equal(t, "web01.example.com", opts.FQDN)
	require.Equal(t, 5*time.Second, opts.Timeout)
	require.Len(t, opts.Ring.Masters, 1)
	require.Equal(t, filepath.Join(cfg.LockDir, cfm.LockFile), opts.Gate.LockPath())
	require.Equal(t, cfg.StateDir, opts.Store.Dir)
	require.Equal(t, cfg.ACL, opts.ACLFile)
	require.Equal(t, "/usr/bin/diff -u", opts.Env.DiffTool)
	require.NotNil(t, opts.Schedule)
	require.Equal(t, 300*time.Second, opts.Schedule.Interval)
	require.Nil(t, opts.Trace)
	require.Nil(t, opts.Dial.Resolver)

	cfg.Nameserver = []string{"10.0.0.53"}
	opts = buildOptions(cfg, id, cfm.ModeCode, setupFlags{Trace: true}, "web01.example.com", log)
	require.Nil(t, opts.Schedule)
	require.Equal(t, os.Stderr, opts.Trace)
	require.IsType(t, &network.DNSResolver{}, opts.Dial.Resolver)
}

func TestDaemonOnceWithoutPolicy(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	cfg, path := testConfig(t)
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "cogd.prom")
	require.NoError(t, cfg.SaveToFile(path))

	ctx := context.Background()
	d, err := newDaemon(ctx, path, cfm.ModeOnce, setupFlags{}, log)
	require.NoError(t, err)
	defer d.Close()
	require.Empty(t, d.pidfile)

	require.Equal(t, 0, d.Start(ctx))
	_, err = os.Stat(cfg.ACL)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	require.Contains(t, string(raw), `cogd_cfm_runs_total{outcome="no-policy"} 1`)
	require.Contains(t, string(raw), "cogd_cfm_master_index -1")
}

func TestDaemonPidfile(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	cfg, path := testConfig(t)
	d, err := newDaemon(context.Background(), path, cfm.ModeRun, setupFlags{}, log)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.PidFile)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(raw)))

	d.Close()
	_, err = os.Stat(cfg.PidFile)
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg.PidFile = filepath.Join(t.TempDir(), "missing", "cogd.pid")
	require.NoError(t, cfg.SaveToFile(path))
	_, err = newDaemon(context.Background(), path, cfm.ModeRun, setupFlags{}, log)
	require.Error(t, err)
	require.Equal(t, config.ExitEnvironment, config.ExitCode(err))
}

func TestDaemonReload(t *testing.T) {
	partitiontest.PartitionTest(t)
	log := logging.TestingLog(t)

	cfg, path := testConfig(t)
	d, err := newDaemon(context.Background(), path, cfm.ModeRun, setupFlags{}, log)
	require.NoError(t, err)
	defer d.Close()

	next := time.Now().Add(time.Hour)
	d.runner.Schedule().NextRun = next

	require.Equal(t, "/usr/bin/diff -u", d.agent.Env.DiffTool)

	cfg.Interval = 60
	cfg.DiffTool = "/usr/bin/colordiff -u"
	require.NoError(t, os.WriteFile(cfg.ACL, []byte("allow jhunt \"show *\"\n"), 0600))
	require.NoError(t, cfg.SaveToFile(path))
	d.reload(context.Background())
	require.Equal(t, 60*time.Second, d.runner.Schedule().Interval)
	require.Equal(t, "/usr/bin/colordiff -u", d.agent.Env.DiffTool)
	require.Equal(t, next, d.runner.Schedule().NextRun)
	require.Len(t, d.runner.ACL(), 1)

	// a broken configuration keeps the running one
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	d.reload(context.Background())
	require.Equal(t, 60, d.cfg.Interval)
	require.Equal(t, next, d.runner.Schedule().NextRun)
}

type recordingSender struct {
	sent []protocol.PDU
	err  error
}

func (r *recordingSender) Send(pdu protocol.PDU) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, pdu)
	return nil
}

func TestMeshRepliesCounted(t *testing.T) {
	partitiontest.PartitionTest(t)

	reg := metrics.NewRegistry()
	rec := &recordingSender{}
	out := meshReplies{Sender: rec, metrics: reg}
	require.NoError(t, out.Send(protocol.MakePDU(protocol.ResultTag, "1", "web01", "0", "PONG\n")))
	require.NoError(t, out.Send(protocol.MakePDU(protocol.ResultTag, "2", "web01", "0", "PONG\n")))
	require.NoError(t, out.Send(protocol.MakePDU(protocol.OptoutTag, "3", "web01", "filtered")))
	rec.err = errors.New("closed")
	require.Error(t, out.Send(protocol.MakePDU(protocol.OptoutTag, "4", "web01", "filtered")))
	require.Len(t, rec.sent, 3)

	expected := `
# HELP cogd_mesh_commands_total Mesh commands handled, by reply
# TYPE cogd_mesh_commands_total counter
cogd_mesh_commands_total{reply="OPTOUT"} 1
cogd_mesh_commands_total{reply="RESULT"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "cogd_mesh_commands_total"))

	// without a registry replies still go through
	out = meshReplies{Sender: &recordingSender{}}
	require.NoError(t, out.Send(protocol.MakePDU(protocol.ResultTag, "5", "web01", "0", "")))
}
