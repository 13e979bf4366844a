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

package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/logging"
)

// fakeRunner answers commands from a table of substrings; unmatched commands
// exit 0 with no output.
type fakeRunner struct {
	mu      sync.Mutex
	answers map[string]Result
	ran     []string
}

func (f *fakeRunner) Run(ctx context.Context, c Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, c.Line)
	for sub, res := range f.answers {
		if strings.Contains(c.Line, sub) {
			return res, nil
		}
	}
	return Result{}, nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeRemote map[string]string

func (f fakeRemote) Fetch(ctx context.Context, key string) ([]byte, error) {
	content, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("no content for %s", key)
	}
	return []byte(content), nil
}

func testEnv(t *testing.T) (*Env, *fakeRunner) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	runner := &fakeRunner{answers: map[string]Result{}}
	env := NewEnv(root, logging.TestingLog(t))
	env.Runner = runner
	return env, runner
}

func converge(t *testing.T, env *Env, r Resource) Report {
	require.NoError(t, r.Stat(context.Background(), env))
	rep, err := r.Remediate(context.Background(), env)
	require.NoError(t, err)
	return rep
}

func mustSet(t *testing.T, r Resource, attrs ...string) {
	require.Zero(t, len(attrs)%2)
	for i := 0; i < len(attrs); i += 2 {
		require.NoError(t, r.Set(attrs[i], attrs[i+1]), attrs[i])
	}
}

func mustNew(t *testing.T, k Kind, key string) Resource {
	r, err := New(k, key)
	require.NoError(t, err)
	return r
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func selfOwner() (string, string) {
	return strconv.Itoa(os.Getuid()), strconv.Itoa(os.Getgid())
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
