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

// Package mesh implements the operator query protocol: the cw-mesh client
// side (REQUEST, then CHECK until the results stop), the agent side that
// answers broadcast COMMANDs, and a Hub that relays between them.
package mesh

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/facts"
)

// Clause is one fact test of a filter.
type Clause struct {
	Fact string
	// Pattern is matched with acl.Match, so * spans slashes.
	Pattern string
	Negate  bool
}

// Matches reports whether the clause holds for f. A missing fact matches
// only negated clauses.
func (c Clause) Matches(f facts.Facts) bool {
	v, ok := f[c.Fact]
	if !ok {
		return c.Negate
	}
	return acl.Match(c.Pattern, v) != c.Negate
}

func (c Clause) String() string {
	if c.Negate {
		return c.Fact + "!=" + c.Pattern
	}
	return c.Fact + "=" + c.Pattern
}

// Filter selects agents by their facts. All clauses must hold; an empty
// filter matches every agent.
type Filter []Clause

// ParseFilter parses newline-separated name=glob and name!=glob clauses.
// Blank lines are ignored.
func ParseFilter(s string) (Filter, error) {
	var f Filter
	for n, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, pattern, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("filter line %d: %q is not name=value", n+1, line)
		}
		c := Clause{Pattern: strings.TrimSpace(pattern)}
		if strings.HasSuffix(name, "!") {
			c.Negate = true
			name = name[:len(name)-1]
		}
		c.Fact = strings.TrimSpace(name)
		if c.Fact == "" {
			return nil, fmt.Errorf("filter line %d: missing fact name", n+1)
		}
		if _, err := glob.Compile(c.Pattern); err != nil {
			return nil, fmt.Errorf("filter line %d: %w", n+1, err)
		}
		f = append(f, c)
	}
	return f, nil
}

// Matches reports whether every clause holds for f.
func (f Filter) Matches(facts facts.Facts) bool {
	for _, c := range f {
		if !c.Matches(facts) {
			return false
		}
	}
	return true
}

func (f Filter) String() string {
	lines := make([]string, len(f))
	for i, c := range f {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}
