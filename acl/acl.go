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

// Package acl implements the access control lists that govern which mesh
// commands a caller may run on an agent.
//
// An ACL file holds one entry per line:
//
//	allow %wheel "*" final
//	deny  *      "exec *"
//	allow jhunt  "show *"
//
// The subject is a user name, a %group, or * for everyone. The pattern is
// a quoted command glob in which * matches any run of characters, slashes
// and spaces included, and ? matches any single character. Entries are
// evaluated in order and the last matching entry decides, unless a
// matching entry is marked final.
package acl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/algorand/go-clockwork/util/codecs"
)

// Disposition is the outcome of an entry.
type Disposition int

const (
	// Default means no entry matched.
	Default Disposition = iota
	Allow
	Deny
)

func (d Disposition) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "default"
	}
}

// ParseDisposition reads "allow" or "deny".
func ParseDisposition(s string) (Disposition, error) {
	switch s {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	}
	return Default, fmt.Errorf("invalid disposition %q", s)
}

// Entry is one ACL rule.
type Entry struct {
	Disposition Disposition
	// Subject is a user name, "%group", or "*".
	Subject string
	Pattern string
	Final   bool
}

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("acl syntax error")

// ParseEntry parses a single ACL line.
func ParseEntry(line string) (Entry, error) {
	var e Entry
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return e, fmt.Errorf("%w: %q: too few fields", ErrSyntax, line)
	}
	d, err := ParseDisposition(fields[0])
	if err != nil {
		return e, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	e.Disposition = d
	e.Subject = fields[1]
	if e.Subject == "%" {
		return e, fmt.Errorf("%w: %q: empty group subject", ErrSyntax, line)
	}

	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(rest[len(fields[0]):])
	rest = strings.TrimSpace(rest[len(fields[1]):])
	quoted, err := strconv.QuotedPrefix(rest)
	if err != nil {
		return e, fmt.Errorf("%w: %q: pattern must be quoted", ErrSyntax, line)
	}
	if e.Pattern, err = strconv.Unquote(quoted); err != nil {
		return e, fmt.Errorf("%w: %q: %v", ErrSyntax, line, err)
	}
	if _, err := glob.Compile(e.Pattern); err != nil {
		return e, fmt.Errorf("%w: %q: %v", ErrSyntax, line, err)
	}

	switch tail := strings.TrimSpace(rest[len(quoted):]); tail {
	case "":
	case "final":
		e.Final = true
	default:
		return e, fmt.Errorf("%w: %q: unexpected %q", ErrSyntax, line, tail)
	}
	return e, nil
}

func (e Entry) String() string {
	s := fmt.Sprintf("%s %s %s", e.Disposition, e.Subject, strconv.Quote(e.Pattern))
	if e.Final {
		s += " final"
	}
	return s
}

// Creds is a caller identity, "user:group1:group2...".
type Creds struct {
	User   string
	Groups []string
}

// ParseCreds splits a credential string.
func ParseCreds(s string) Creds {
	parts := strings.Split(s, ":")
	c := Creds{User: parts[0]}
	for _, g := range parts[1:] {
		if g != "" {
			c.Groups = append(c.Groups, g)
		}
	}
	return c
}

func (c Creds) String() string {
	return strings.Join(append([]string{c.User}, c.Groups...), ":")
}

// Applies reports whether the entry's subject covers c.
func (e Entry) Applies(c Creds) bool {
	switch {
	case e.Subject == "*":
		return true
	case strings.HasPrefix(e.Subject, "%"):
		group := e.Subject[1:]
		for _, g := range c.Groups {
			if g == group {
				return true
			}
		}
		return false
	default:
		return e.Subject == c.User
	}
}

// Matches reports whether the entry covers c running command.
func (e Entry) Matches(c Creds, command string) bool {
	if !e.Applies(c) {
		return false
	}
	return Match(e.Pattern, normalize(command))
}

// Match reports whether s matches the glob pattern. A pattern that does
// not compile matches nothing.
func Match(pattern, s string) bool {
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(s)
}

func normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

// List is an ordered ACL.
type List []Entry

// Parse reads an ACL document. Blank lines and '#' comments are skipped.
func Parse(r io.Reader) (List, error) {
	var l List
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		l = append(l, e)
	}
	return l, scanner.Err()
}

// Read loads the ACL file at path. A missing file yields an error that
// satisfies errors.Is(err, os.ErrNotExist); callers treat it as an empty
// list.
func Read(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// WriteTo renders the list one entry per line.
func (l List) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range l {
		n, err := io.WriteString(w, e.String()+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (l List) String() string {
	var sb strings.Builder
	l.WriteTo(&sb)
	return sb.String()
}

// Write atomically replaces the ACL file at path.
func (l List) Write(path string) error {
	return codecs.WriteFileAtomic(path, []byte(l.String()), 0600)
}

// Check decides whether c may run command. When no entry matches, def is
// returned.
func (l List) Check(c Creds, command string, def Disposition) Disposition {
	decision := Default
	for _, e := range l {
		if !e.Matches(c, command) {
			continue
		}
		decision = e.Disposition
		if e.Final {
			break
		}
	}
	if decision == Default {
		return def
	}
	return decision
}

// Allowed is Check reduced to a boolean.
func (l List) Allowed(c Creds, command string, def Disposition) bool {
	return l.Check(c, command, def) == Allow
}
