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
	"fmt"
	"strings"
	"time"
)

// Phase names a timed step of a run.
type Phase int

const (
	PhaseConnect Phase = iota
	PhaseHello
	PhasePreinit
	PhaseCopydown
	PhaseFacts
	PhaseGetPolicy
	PhaseParse
	PhaseEnforce
	PhaseCleanup
	numPhases
)

var phaseNames = [numPhases]string{
	"connect", "hello", "preinit", "copydown", "facts",
	"getpolicy", "parse", "enforce", "cleanup",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Stats holds the time spent in each phase of a run.
type Stats struct {
	Phases [numPhases]time.Duration
}

// Time runs fn and adds its duration to phase p.
func (s *Stats) Time(p Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	s.Phases[p] += time.Since(start)
	return err
}

// Total is the sum of all phases.
func (s *Stats) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Phases {
		total += d
	}
	return total
}

// Millis maps phase names to whole milliseconds.
func (s *Stats) Millis() map[string]int64 {
	m := make(map[string]int64, numPhases)
	for p, d := range s.Phases {
		m[Phase(p).String()] = d.Milliseconds()
	}
	return m
}

func (s *Stats) String() string {
	parts := make([]string, 0, numPhases)
	for p, d := range s.Phases {
		parts = append(parts, fmt.Sprintf("%s=%d", Phase(p), d.Milliseconds()))
	}
	return "STATS(ms): " + strings.Join(parts, ", ")
}

// Schedule tracks when the next run is due.
type Schedule struct {
	NextRun  time.Time
	Interval time.Duration
}

// Due reports whether a run should start at now.
func (s *Schedule) Due(now time.Time) bool {
	return !now.Before(s.NextRun)
}

// TimeLeft is the wait until the next run, never negative.
func (s *Schedule) TimeLeft(now time.Time) time.Duration {
	left := s.NextRun.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Advance schedules the next run one interval after now.
func (s *Schedule) Advance(now time.Time) {
	s.NextRun = now.Add(s.Interval)
}

// Describe renders the interval the way the run log reports it: minutes
// above two minutes, seconds otherwise.
func (s *Schedule) Describe() string {
	if s.Interval > 2*time.Minute {
		return fmt.Sprintf("every %d minutes", int64(s.Interval/time.Minute))
	}
	return fmt.Sprintf("every %d seconds", int64(s.Interval/time.Second))
}
