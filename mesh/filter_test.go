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

package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/go-clockwork/facts"
	"github.com/algorand/go-clockwork/test/partitiontest"
)

func TestParseFilter(t *testing.T) {
	partitiontest.PartitionTest(t)

	f, err := ParseFilter("sys.os=linux\n\n  role != db*  \n")
	require.NoError(t, err)
	require.Equal(t, Filter{
		{Fact: "sys.os", Pattern: "linux"},
		{Fact: "role", Pattern: "db*", Negate: true},
	}, f)
	require.Equal(t, "sys.os=linux\nrole!=db*", f.String())

	for _, bad := range []string{"role", "=web", "!=web", "role=[web"} {
		_, err := ParseFilter(bad)
		require.Error(t, err, bad)
	}

	empty, err := ParseFilter("")
	require.NoError(t, err)
	require.True(t, empty.Matches(nil))
}

func TestFilterMatches(t *testing.T) {
	partitiontest.PartitionTest(t)

	host := facts.Facts{"sys.os": "linux", "role": "web", "site": "dc2"}
	cases := []struct {
		filter string
		match  bool
	}{
		{"role=web", true},
		{"role=w*", true},
		{"role=db", false},
		{"role!=db", true},
		{"role=web\nsite=dc1", false},
		{"role=web\nsite=dc?", true},
		{"owner=ops", false},
		{"owner!=ops", true},
		{"role=*", true},
	}
	for _, c := range cases {
		f, err := ParseFilter(c.filter)
		require.NoError(t, err)
		require.Equal(t, c.match, f.Matches(host), c.filter)
	}
}

func TestFilterValuesWithSlashes(t *testing.T) {
	partitiontest.PartitionTest(t)

	host := facts.Facts{"sys.kernel.release": "6.1.0/amd64", "site": "dc2/rack4", "path": "/srv/www"}
	cases := []struct {
		filter string
		match  bool
	}{
		{"sys.kernel.release=*", true},
		{"site=dc2/*", true},
		{"site=dc?/rack?", true},
		{"site!=*", false},
		{"path=/srv/*", true},
		{"path=*www", true},
		{"path=/srv", false},
	}
	for _, c := range cases {
		f, err := ParseFilter(c.filter)
		require.NoError(t, err)
		require.Equal(t, c.match, f.Matches(host), c.filter)
	}
}

func TestFilterNegation(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z.]{0,8}`).Draw(t, "name")
		value := rapid.StringMatching(`[a-z0-9]{0,8}`).Draw(t, "value")
		pattern := rapid.StringMatching(`[a-z0-9*?]{0,6}`).Draw(t, "pattern")
		f := facts.Facts{name: value}
		if rapid.Bool().Draw(t, "missing") {
			f = facts.Facts{}
		}
		pos := Clause{Fact: name, Pattern: pattern}
		neg := Clause{Fact: name, Pattern: pattern, Negate: true}
		if pos.Matches(f) == neg.Matches(f) {
			t.Fatalf("%s and %s agree on %v", pos, neg, f)
		}
	})
}
