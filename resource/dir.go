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
	"fmt"
	"os"
)

// DirResource manages a directory.
type DirResource struct {
	key     string
	path    string
	present bool
	ownership

	st fsInfo
}

func newDir(key string) *DirResource {
	return &DirResource{key: key, path: key, present: true}
}

// Kind implements Resource.
func (r *DirResource) Kind() Kind { return Dir }

// Key implements Resource.
func (r *DirResource) Key() string { return "dir:" + r.key }

// Set implements Resource.
func (r *DirResource) Set(attr, value string) error {
	if ok, err := r.ownership.set(Dir, attr, value); ok {
		return err
	}
	var err error
	switch attr {
	case "path":
		r.path = value
	case "present":
		r.present, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Dir, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *DirResource) Match(attr, value string) bool {
	return attr == "path" && r.path == value
}

// Attrs implements Resource.
func (r *DirResource) Attrs() map[string]string {
	m := map[string]string{"path": r.path, "present": yesno(r.present)}
	r.ownership.attrs(m)
	return m
}

// Clone implements Resource.
func (r *DirResource) Clone(key string) Resource {
	c := *r
	c.key, c.st = key, fsInfo{}
	return &c
}

// Stat implements Resource.
func (r *DirResource) Stat(ctx context.Context, env *Env) (err error) {
	r.st, err = lstat(env.Path(r.path))
	return err
}

// Remediate implements Resource.
func (r *DirResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Dir, Key: r.key}
	path := env.Path(r.path)

	if !r.present {
		if r.st.exists {
			if r.st.ftype != typeDir {
				return rep, fmt.Errorf("%s: is a %s, not a directory", path, r.st.ftype)
			}
			if err := os.Remove(path); err != nil {
				return rep, err
			}
			rep.fix("removed")
		}
		return rep, nil
	}

	if r.st.exists && r.st.ftype != typeDir {
		return rep, fmt.Errorf("%s: is a %s, not a directory", path, r.st.ftype)
	}
	if !r.st.exists {
		if err := os.MkdirAll(path, r.createMode(0755)); err != nil {
			return rep, err
		}
		rep.fix("created")
	}

	st, err := lstat(path)
	if err != nil {
		return rep, err
	}
	if err := r.ownership.converge(env, path, st, &rep); err != nil {
		return rep, err
	}
	r.st = st
	return rep, nil
}
