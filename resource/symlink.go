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
	"os"
)

// SymlinkResource manages a symbolic link.
type SymlinkResource struct {
	key     string
	path    string
	target  string
	present bool

	st      fsInfo
	current string
}

func newSymlink(key string) *SymlinkResource {
	return &SymlinkResource{key: key, path: key, present: true}
}

// Kind implements Resource.
func (r *SymlinkResource) Kind() Kind { return Symlink }

// Key implements Resource.
func (r *SymlinkResource) Key() string { return "symlink:" + r.key }

// Set implements Resource.
func (r *SymlinkResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "path":
		r.path = value
	case "target":
		r.target = value
	case "present":
		r.present, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Symlink, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *SymlinkResource) Match(attr, value string) bool {
	return attr == "path" && r.path == value
}

// Attrs implements Resource.
func (r *SymlinkResource) Attrs() map[string]string {
	m := map[string]string{"path": r.path, "present": yesno(r.present)}
	if r.target != "" {
		m["target"] = r.target
	}
	return m
}

// Clone implements Resource.
func (r *SymlinkResource) Clone(key string) Resource {
	c := *r
	c.key, c.st, c.current = key, fsInfo{}, ""
	return &c
}

// Stat implements Resource.
func (r *SymlinkResource) Stat(ctx context.Context, env *Env) error {
	path := env.Path(r.path)
	st, err := lstat(path)
	if err != nil {
		return err
	}
	r.st, r.current = st, ""
	if st.ftype == typeSymlink {
		if r.current, err = os.Readlink(path); err != nil {
			return err
		}
	}
	return nil
}

// Remediate implements Resource.
func (r *SymlinkResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Symlink, Key: r.key}
	path := env.Path(r.path)

	if r.st.exists && r.st.ftype != typeSymlink {
		return rep, fmt.Errorf("%s: is a %s, not a symbolic link", path, r.st.ftype)
	}
	if !r.present {
		if r.st.exists {
			if err := os.Remove(path); err != nil {
				return rep, err
			}
			rep.fix("removed")
		}
		return rep, nil
	}
	if r.target == "" {
		return rep, errors.New("symlink has no target")
	}
	if r.st.exists && r.current == r.target {
		return rep, nil
	}
	if r.st.exists {
		if err := os.Remove(path); err != nil {
			return rep, err
		}
	}
	if err := os.Symlink(r.target, path); err != nil {
		return rep, err
	}
	rep.fix("target")
	r.current = r.target
	return rep, nil
}
