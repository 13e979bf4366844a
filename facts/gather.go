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

package facts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/algorand/go-clockwork/logging"
)

// GatherError names the gatherer that failed.
type GatherError struct {
	Script string
	Err    error
	Stderr string
}

func (e *GatherError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("gatherer %s: %v: %s", e.Script, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gatherer %s: %v", e.Script, e.Err)
}

func (e *GatherError) Unwrap() error {
	return e.Err
}

// Gatherers expands pattern to the executable regular files it names, in
// sorted order.
func Gatherers(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	scripts := matches[:0]
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || !st.Mode().IsRegular() || st.Mode().Perm()&0111 == 0 {
			continue
		}
		scripts = append(scripts, m)
	}
	return scripts, nil
}

// Gather runs every gatherer matched by pattern and merges their output, in
// order, into a fresh fact map. The first failing gatherer aborts the run.
func Gather(ctx context.Context, pattern string, log logging.Logger) (Facts, error) {
	f := make(Facts)
	if pattern == "" {
		return f, nil
	}
	scripts, err := Gatherers(pattern)
	if err != nil {
		return nil, err
	}
	for _, script := range scripts {
		log.Debugf("running gatherer %s", script)
		if err := runGatherer(ctx, script, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func runGatherer(ctx context.Context, script string, f Facts) error {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &GatherError{Script: script, Err: err, Stderr: string(bytes.TrimSpace(stderr.Bytes()))}
	}
	if err := f.read(&stdout); err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return &GatherError{Script: script, Err: err}
		}
		return err
	}
	return nil
}

// Collect gathers the script facts for pattern and overlays the built-in
// system facts.
func Collect(ctx context.Context, pattern string, log logging.Logger) (Facts, error) {
	f, err := Gather(ctx, pattern, log)
	if err != nil {
		return nil, err
	}
	f.Merge(Builtin(ctx, log))
	return f, nil
}
