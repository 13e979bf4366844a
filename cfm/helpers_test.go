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
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/copydown"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/resource"
	"github.com/algorand/go-clockwork/vm"
)

func genCert(t *testing.T, ident string) *crypto.Certificate {
	c, err := crypto.Generate(crypto.Encryption, ident, nil)
	require.NoError(t, err)
	return c
}

const testBlockSize = 32

// fakeMaster answers the CFM dialog from canned content.
type fakeMaster struct {
	cert    *crypto.Certificate
	version string
	image   []byte
	archive []byte
	files   map[string]string

	// breakCopydown answers the second DATA of the copydown with a POLICY.
	breakCopydown bool
	// corrupt lists FILE keys announced with a wrong digest.
	corrupt     map[string]bool
	policyError string
	onFile      func(key string)

	mu    sync.Mutex
	tags  []protocol.Tag
	facts string
}

func newFakeMaster(t *testing.T, image []byte) *fakeMaster {
	return &fakeMaster{
		cert:    genCert(t, "master"),
		version: strconv.FormatUint(protocol.Version, 10),
		image:   image,
		files:   make(map[string]string),
		corrupt: make(map[string]bool),
	}
}

func (m *fakeMaster) seen() []protocol.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Tag(nil), m.tags...)
}

func (m *fakeMaster) policyFacts() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts
}

func (m *fakeMaster) reply(pdu protocol.PDU, stream *[]byte, copying *bool) protocol.PDU {
	switch pdu.Type {
	case protocol.PingTag:
		return protocol.MakePDU(protocol.PongTag, m.version)
	case protocol.HelloTag, protocol.ByeTag:
		return protocol.MakePDU(protocol.OKTag)
	case protocol.CopydownTag:
		*stream, *copying = m.archive, true
		return protocol.MakePDU(protocol.OKTag)
	case protocol.DataTag:
		n, _ := pdu.Uint(1)
		if *copying && m.breakCopydown && n == 1 {
			return protocol.MakePDU(protocol.PolicyTag)
		}
		off := int(n) * testBlockSize
		if off >= len(*stream) {
			*copying = false
			return protocol.MakePDU(protocol.EOFTag)
		}
		end := min(off+testBlockSize, len(*stream))
		block := protocol.MakePDU(protocol.BlockTag)
		block.Extend((*stream)[off:end])
		return block
	case protocol.FileTag:
		key := pdu.Text(1)
		if m.onFile != nil {
			m.onFile(key)
		}
		content, ok := m.files[key]
		if !ok {
			return protocol.MakePDU(protocol.ErrorTag, "no such file "+key)
		}
		sum := sha1.Sum([]byte(content))
		digest := hex.EncodeToString(sum[:])
		if m.corrupt[key] {
			digest = "0000"
		}
		*stream, *copying = []byte(content), false
		return protocol.MakePDU(protocol.SHA1Tag, digest)
	case protocol.PolicyTag:
		m.mu.Lock()
		m.facts = pdu.Text(2)
		m.mu.Unlock()
		if m.policyError != "" {
			return protocol.MakePDU(protocol.ErrorTag, m.policyError)
		}
		p := protocol.MakePDU(protocol.PolicyTag)
		p.Extend(m.image)
		return p
	}
	return protocol.MakePDU(protocol.ErrorTag, "unexpected "+string(pdu.Type))
}

func (m *fakeMaster) ServeSession(ctx context.Context, s *network.Session) {
	var stream []byte
	var copying bool
	for {
		pdu, err := s.Recv(0)
		if err != nil {
			return
		}
		m.mu.Lock()
		m.tags = append(m.tags, pdu.Type)
		m.mu.Unlock()
		if s.Send(m.reply(pdu, &stream, &copying)) != nil {
			return
		}
	}
}

// serve starts a listener for h and returns a Master record pointing at it.
func serve(t *testing.T, cert *crypto.Certificate, h network.Handler) Master {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	l := network.NewListener(cert, h, logging.TestingLog(t))
	l.Timeout = 2 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return Master{Endpoint: ln.Addr().String(), Cert: cert.PublicOnly()}
}

func (m *fakeMaster) start(t *testing.T) Master {
	return serve(t, m.cert, m)
}

// deadMaster returns a master record for a port nobody listens on.
func deadMaster(t *testing.T) Master {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return Master{Endpoint: addr, Cert: genCert(t, "dead").PublicOnly()}
}

func assemble(t *testing.T, source string) []byte {
	image, err := vm.Assemble(source)
	require.NoError(t, err)
	return image
}

func packTree(t *testing.T, files map[string]string) []byte {
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	}
	var buf bytes.Buffer
	require.NoError(t, copydown.Pack(&buf, dir, copydown.Zstd))
	return buf.Bytes()
}

type testAgent struct {
	dir    string
	opts   Options
	runner *Runner
	states []State
}

func newTestAgent(t *testing.T, masters ...Master) *testAgent {
	dir := t.TempDir()
	log := logging.TestingLog(t)
	root := filepath.Join(dir, "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))

	a := &testAgent{dir: dir}
	ring := NewRing(masters)
	ring.Observer = func(s State) { a.states = append(a.states, s) }
	a.opts = Options{
		FQDN:      "host01.example.com",
		Identity:  genCert(t, "host01.example.com"),
		Ring:      ring,
		Dial:      network.DialOptions{Timeout: time.Second},
		Timeout:   time.Second,
		Copydown:  filepath.Join(dir, "copydown"),
		Gatherers: filepath.Join(dir, "copydown", "gather.d", "*"),
		Mode:      ModeOnce,
		Store:     Store{Dir: filepath.Join(dir, "state")},
		Gate:      NewGate(filepath.Join(dir, "lock")),
		ACLFile:   filepath.Join(dir, "local.acl"),
		Env:       resource.NewEnv(root, log),
	}
	a.runner = NewRunner(a.opts, nil, log)
	return a
}

func (a *testAgent) path(rel string) string {
	return filepath.Join(a.dir, rel)
}
