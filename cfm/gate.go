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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/algorand/go-clockwork/logging"
)

const (
	// LockFile serialises configuration runs on a host.
	LockFile = "cfm.lock"
	// KillswitchFile, when present, disables configuration runs.
	KillswitchFile = "cfm.KILLSWITCH"
)

// KillswitchError reports a present killswitch.
type KillswitchError struct {
	Path    string
	ModTime time.Time
}

func (e *KillswitchError) Error() string {
	return fmt.Sprintf("Found CFM KILLSWITCH %s, dated %s", e.Path, e.ModTime.Format("Jan 02 2006 15:04:05-0700"))
}

// LockedError reports a run already holding the lock.
type LockedError struct {
	Path string
	// Holder is what the holder wrote into the lock file, if readable.
	Holder string
}

func (e *LockedError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("Another configuration management run (%s) in progress", e.Path)
	}
	return fmt.Sprintf("Another configuration management run (%s) in progress", e.Holder)
}

// Gate decides whether a run may start: no killswitch, and the advisory
// run lock is free.
type Gate struct {
	LockDir string
	// Log receives diagnostics; logging.Base() when nil.
	Log logging.Logger

	now       func() time.Time
	writeFile func(string, []byte, os.FileMode) error
}

// NewGate returns a gate over lockDir.
func NewGate(lockDir string) *Gate {
	return &Gate{LockDir: lockDir, now: time.Now, writeFile: os.WriteFile}
}

// LockPath is the path of the run lock.
func (g *Gate) LockPath() string {
	return filepath.Join(g.LockDir, LockFile)
}

// KillswitchPath is the path of the killswitch.
func (g *Gate) KillswitchPath() string {
	return filepath.Join(g.LockDir, KillswitchFile)
}

// Enter checks the killswitch and takes the run lock. The returned
// function releases the lock and must be called on every exit path.
func (g *Gate) Enter() (release func(), err error) {
	ks := g.KillswitchPath()
	if st, err := os.Stat(ks); err == nil {
		return nil, &KillswitchError{Path: ks, ModTime: st.ModTime()}
	}

	if err := os.MkdirAll(g.LockDir, 0755); err != nil {
		return nil, err
	}
	path := g.LockPath()
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unexpected failure in establishing %s: %w", path, err)
	}
	if !locked {
		holder, _ := os.ReadFile(path)
		return nil, &LockedError{Path: path, Holder: strings.TrimSpace(string(holder))}
	}

	now := time.Now
	if g.now != nil {
		now = g.now
	}
	write := os.WriteFile
	if g.writeFile != nil {
		write = g.writeFile
	}
	info := fmt.Sprintf("pid %d, started at %s\n", os.Getpid(), now().Format(time.RFC3339))
	if err := write(path, []byte(info), 0644); err != nil {
		log := g.Log
		if log == nil {
			log = logging.Base()
		}
		log.Debugf("unable to record lock holder in %s: %v", path, err)
	}

	return func() {
		lock.Unlock()
	}, nil
}

// IsSkip reports whether err from Enter means the run should simply be
// skipped rather than treated as a failure.
func IsSkip(err error) bool {
	var ks *KillswitchError
	var le *LockedError
	return errors.As(err, &ks) || errors.As(err, &le)
}
