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
	"io"
	"strings"

	"github.com/fatih/color"
)

// resultWriter colours the result lines the mesh client prints: the host
// name stands out, errors are red and opt-outs yellow. Partial lines are
// held until their newline arrives.
type resultWriter struct {
	out     io.Writer
	pending []byte

	host   *color.Color
	failed *color.Color
	optout *color.Color
}

func newResultWriter(out io.Writer) *resultWriter {
	return &resultWriter{
		out:    out,
		host:   color.New(color.Bold, color.FgCyan),
		failed: color.New(color.FgRed),
		optout: color.New(color.FgYellow),
	}
}

func (w *resultWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := string(w.pending[:i])
		w.pending = w.pending[i+1:]
		if _, err := io.WriteString(w.out, w.colorize(line)+"\n"); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

func (w *resultWriter) colorize(line string) string {
	host, rest, ok := strings.Cut(line, " ")
	if !ok {
		return line
	}
	switch {
	case strings.HasSuffix(rest, " optout"):
		return w.host.Sprint(host) + " " + w.optout.Sprint(rest)
	case strings.HasPrefix(rest, "error "):
		return w.host.Sprint(host) + " " + w.failed.Sprint(rest)
	case strings.HasPrefix(rest, "ok "):
		return w.host.Sprint(host) + " " + rest
	}
	// continuation of multi-line output
	return line
}
