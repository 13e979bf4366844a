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

// Package facts holds the name=value facts describing a host, the
// line-oriented codec they travel in, and the gatherers that produce them.
package facts

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Facts maps a dotted fact name to its value.
type Facts map[string]string

// ParseError reports a malformed fact line.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: malformed fact %q", e.Line, e.Text)
}

// Parse reads name=value lines from r. Blank lines and lines starting with
// '#' are ignored. Later definitions of a name replace earlier ones.
func Parse(r io.Reader) (Facts, error) {
	f := make(Facts)
	return f, f.read(r)
}

// ParseString is Parse over a string.
func ParseString(s string) (Facts, error) {
	return Parse(strings.NewReader(s))
}

func (f Facts) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return &ParseError{Line: n, Text: line}
		}
		f[name] = value
	}
	return scanner.Err()
}

// Names returns the fact names in sorted order.
func (f Facts) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTo writes the facts as name=value lines sorted by name.
func (f Facts) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, name := range f.Names() {
		n, err := fmt.Fprintf(w, "%s=%s\n", name, f[name])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f Facts) String() string {
	var sb strings.Builder
	f.WriteTo(&sb)
	return sb.String()
}

// Get returns the value of name and whether it is defined.
func (f Facts) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Merge copies every fact of other into f, replacing existing values.
func (f Facts) Merge(other Facts) {
	for k, v := range other {
		f[k] = v
	}
}

// Clone returns an independent copy of f.
func (f Facts) Clone() Facts {
	c := make(Facts, len(f))
	c.Merge(f)
	return c
}

// Prefixed returns the facts whose names start with prefix.
func (f Facts) Prefixed(prefix string) Facts {
	out := make(Facts)
	for k, v := range f {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
