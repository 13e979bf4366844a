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
	"strings"
	"sync/atomic"
	"testing"
)

// testLoggerAdaptor forwards log output to the test log until the test
// finishes.
type testLoggerAdaptor struct {
	tb   testing.TB
	done *atomic.Bool
}

func (a testLoggerAdaptor) Write(p []byte) (int, error) {
	if !a.done.Load() {
		a.tb.Log(strings.TrimSuffix(string(p), "\n"))
	}
	return len(p), nil
}

// TestingLog is a test-only helper that returns a debug level Logger
// writing through tb.Log.
func TestingLog(tb testing.TB) Logger {
	done := &atomic.Bool{}
	tb.Cleanup(func() { done.Store(true) })

	l := NewLogger()
	l.SetLevel(Debug)
	l.SetOutput(testLoggerAdaptor{tb: tb, done: done})
	return l
}
