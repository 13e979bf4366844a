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

package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/algorand/go-clockwork/util/codecs"
)

// HostsFile is the hosts table edited by host resources.
const HostsFile = "/etc/hosts"

// HostResource manages one line of the hosts table.
type HostResource struct {
	key      string
	hostname string
	ip       string
	aliases  []string
	present  bool

	lines []string
	found int
}

func newHost(key string) *HostResource {
	return &HostResource{key: key, hostname: key, present: true, found: -1}
}

// Kind implements Resource.
func (r *HostResource) Kind() Kind { return Host }

// Key implements Resource.
func (r *HostResource) Key() string { return "host:" + r.key }

// Set implements Resource.
func (r *HostResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "hostname":
		r.hostname = value
	case "ip", "address":
		r.ip = value
	case "aliases", "alias":
		r.aliases = splitList(value)
	case "present":
		r.present, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Host, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *HostResource) Match(attr, value string) bool {
	switch attr {
	case "hostname":
		return r.hostname == value
	case "ip", "address":
		return r.ip == value
	}
	return false
}

// Attrs implements Resource.
func (r *HostResource) Attrs() map[string]string {
	m := map[string]string{"hostname": r.hostname, "present": yesno(r.present)}
	if r.ip != "" {
		m["ip"] = r.ip
	}
	if len(r.aliases) > 0 {
		m["aliases"] = strings.Join(r.aliases, " ")
	}
	return m
}

// Clone implements Resource.
func (r *HostResource) Clone(key string) Resource {
	c := *r
	c.key = key
	c.aliases = append([]string(nil), r.aliases...)
	c.lines, c.found = nil, -1
	return &c
}

func (r *HostResource) line() string {
	return strings.Join(append([]string{r.ip, r.hostname}, r.aliases...), " ")
}

func hostFields(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}

// matches reports whether a hosts line maps our ip to our hostname.
func (r *HostResource) matches(line string) bool {
	f := hostFields(line)
	return len(f) >= 2 && f[0] == r.ip && f[1] == r.hostname
}

// Stat implements Resource.
func (r *HostResource) Stat(ctx context.Context, env *Env) error {
	if r.ip == "" {
		return errors.New("host has no ip")
	}
	raw, err := os.ReadFile(env.Path(HostsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	r.lines, r.found = nil, -1
	if len(raw) > 0 {
		r.lines = strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	}
	for i, l := range r.lines {
		if r.matches(l) {
			r.found = i
			break
		}
	}
	return nil
}

// Remediate implements Resource.
func (r *HostResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Host, Key: r.key}

	switch {
	case !r.present && r.found >= 0:
		kept := r.lines[:0:0]
		for _, l := range r.lines {
			if !r.matches(l) {
				kept = append(kept, l)
			}
		}
		r.lines = kept
		r.found = -1
		rep.fix("removed")

	case r.present && r.found < 0:
		r.lines = append(r.lines, r.line())
		r.found = len(r.lines) - 1
		rep.fix("created")

	case r.present:
		have := hostFields(r.lines[r.found])
		if strings.Join(have[2:], " ") != strings.Join(r.aliases, " ") {
			r.lines[r.found] = r.line()
			rep.fix("aliases")
		}
	}

	if rep.Compliant() {
		return rep, nil
	}
	data := strings.Join(r.lines, "\n")
	if data != "" {
		data += "\n"
	}
	if err := codecs.WriteFileAtomic(env.Path(HostsFile), []byte(data), 0644); err != nil {
		return rep, fmt.Errorf("write %s: %w", HostsFile, err)
	}
	return rep, nil
}
