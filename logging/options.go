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
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options selects where a daemon's log output goes.
type Options struct {
	Level Level

	// File, when set, receives the log through a CyclicFileWriter
	// rotated at FileSizeLimit into File + ".archive". A zero
	// FileSizeLimit never rotates.
	File          string
	FileSizeLimit uint64

	// Foreground also writes to stderr when File is set.
	Foreground bool

	JSON bool

	// Syslog forwarding is enabled when SyslogIdent is set.
	SyslogIdent    string
	SyslogFacility string
	SyslogLevel    Level
}

// Configure applies opts to l and returns a closer for any file it opened.
// It may be called again on reload; earlier hooks and outputs are replaced.
func Configure(l Logger, opts Options) (io.Closer, error) {
	if ll, ok := l.(logger); ok {
		ll.entry.Logger.ReplaceHooks(make(logrus.LevelHooks))
	}
	l.SetOutput(os.Stderr)
	l.SetLevel(opts.Level)
	if opts.JSON {
		l.SetJSONFormatter()
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		w, err := MakeCyclicFileWriter(opts.File, opts.File+".archive", opts.FileSizeLimit)
		if err != nil {
			return nil, err
		}
		closer = w
		if opts.Foreground {
			l.SetOutput(io.MultiWriter(os.Stderr, w))
		} else {
			l.SetOutput(w)
		}
	}

	if opts.SyslogIdent != "" {
		hook, err := NewSyslogHook(opts.SyslogIdent, opts.SyslogFacility, opts.SyslogLevel)
		if err != nil {
			closer.Close()
			return nil, err
		}
		l.AddHook(hook)
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
