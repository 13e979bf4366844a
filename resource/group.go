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
	"strconv"
	"strings"

	"github.com/algorand/go-clockwork/authdb"
)

// MinGID is the first gid handed out to groups created without one.
const MinGID = 1000

// membership is a set of names to add and remove. Names prefixed with "!"
// in the attribute value are removals.
type membership struct {
	add []string
	rm  []string
	set bool
}

func parseMembership(value string) membership {
	m := membership{set: true}
	for _, name := range splitList(value) {
		if strings.HasPrefix(name, "!") {
			m.rm = append(m.rm, name[1:])
		} else {
			m.add = append(m.add, name)
		}
	}
	m.add, m.rm = sortedUnique(m.add), sortedUnique(m.rm)
	return m
}

func (m membership) String() string {
	out := append([]string(nil), m.add...)
	for _, name := range m.rm {
		out = append(out, "!"+name)
	}
	return strings.Join(out, " ")
}

// apply returns the converged list and whether it changed.
func (m membership) apply(have []string) ([]string, bool) {
	changed := false
	out := make([]string, 0, len(have)+len(m.add))
	for _, name := range have {
		if contains(m.rm, name) {
			changed = true
			continue
		}
		out = append(out, name)
	}
	for _, name := range m.add {
		if !contains(out, name) {
			out = append(out, name)
			changed = true
		}
	}
	return out, changed
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GroupResource manages an entry in group and gshadow.
type GroupResource struct {
	key      string
	name     string
	present  bool
	gid      int
	gidSet   bool
	password *string
	members  membership
	admins   membership

	existing *authdb.Group
}

func newGroup(key string) *GroupResource {
	return &GroupResource{key: key, name: key, present: true}
}

// Kind implements Resource.
func (r *GroupResource) Kind() Kind { return Group }

// Key implements Resource.
func (r *GroupResource) Key() string { return "group:" + r.key }

// Set implements Resource.
func (r *GroupResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "name":
		r.name = value
	case "gid":
		r.gid, err = strconv.Atoi(value)
		r.gidSet = err == nil
	case "password", "pwhash":
		r.password = strp(value)
	case "members":
		r.members = parseMembership(value)
	case "admins":
		r.admins = parseMembership(value)
	case "present":
		r.present, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Group, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *GroupResource) Match(attr, value string) bool {
	switch attr {
	case "name":
		return r.name == value
	case "gid":
		return r.gidSet && strconv.Itoa(r.gid) == value
	}
	return false
}

// Attrs implements Resource.
func (r *GroupResource) Attrs() map[string]string {
	m := map[string]string{"name": r.name, "present": yesno(r.present)}
	if r.gidSet {
		m["gid"] = strconv.Itoa(r.gid)
	}
	if r.password != nil {
		m["password"] = *r.password
	}
	if r.members.set {
		m["members"] = r.members.String()
	}
	if r.admins.set {
		m["admins"] = r.admins.String()
	}
	return m
}

// Clone implements Resource.
func (r *GroupResource) Clone(key string) Resource {
	c := *r
	c.key, c.existing = key, nil
	return &c
}

// Stat implements Resource.
func (r *GroupResource) Stat(ctx context.Context, env *Env) error {
	db, err := env.AuthDB()
	if err != nil {
		return err
	}
	r.existing = db.Group(r.name)
	return nil
}

// Remediate implements Resource.
func (r *GroupResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Group, Key: r.key}
	db, err := env.AuthDB()
	if err != nil {
		return rep, err
	}

	if !r.present {
		if r.existing != nil {
			db.RemoveGroup(r.name)
			rep.fix("removed")
			r.existing = nil
			return rep, db.Write()
		}
		return rep, nil
	}

	g := r.existing
	if g == nil {
		ng := authdb.Group{Name: r.name, GID: r.gid, InGshadow: true, Hash: "!"}
		if !r.gidSet {
			ng.GID = db.NextGID(MinGID)
		}
		if g, err = db.AddGroup(ng); err != nil {
			return rep, err
		}
		rep.fix("created")
	}

	if r.gidSet && g.GID != r.gid {
		g.GID = r.gid
		rep.fix("gid")
	}
	if r.password != nil && g.Hash != *r.password {
		g.Hash, g.InGshadow = *r.password, true
		rep.fix("password")
	}
	if list, changed := r.members.apply(g.Members); changed {
		g.Members = list
		rep.fix("members")
	}
	if list, changed := r.admins.apply(g.Admins); changed {
		g.Admins, g.InGshadow = list, true
		rep.fix("admins")
	}

	r.existing = g
	if rep.Compliant() {
		return rep, nil
	}
	return rep, db.Write()
}
