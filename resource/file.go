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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileResource manages a regular file: presence, ownership, mode and
// content. Content comes from the Remote, keyed by the resource key.
type FileResource struct {
	key     string
	path    string
	present bool
	cache   bool
	ownership
	source   string
	template string
	verify   string
	expect   int
	tmpfile  string

	st      fsInfo
	current []byte
}

func newFile(key string) *FileResource {
	return &FileResource{key: key, path: key, present: true}
}

// Kind implements Resource.
func (r *FileResource) Kind() Kind { return File }

// Key implements Resource.
func (r *FileResource) Key() string { return "file:" + r.key }

// Path is the managed file, relative to the Env root.
func (r *FileResource) Path() string { return r.path }

// Set implements Resource.
func (r *FileResource) Set(attr, value string) error {
	if ok, err := r.ownership.set(File, attr, value); ok {
		return err
	}
	var err error
	switch attr {
	case "path":
		r.path = value
	case "present":
		r.present, err = parseBool(value)
	case "cache":
		r.cache, err = parseBool(value)
	case "source":
		r.source, r.template = value, ""
	case "template":
		r.template, r.source = value, ""
	case "verify":
		r.verify = value
	case "expect":
		r.expect, err = strconv.Atoi(value)
	case "tmpfile":
		r.tmpfile = value
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(File, attr, value, err)
	}
	return nil
}

// Match implements Resource. Only path is a match attribute.
func (r *FileResource) Match(attr, value string) bool {
	return attr == "path" && r.path == value
}

// Attrs implements Resource.
func (r *FileResource) Attrs() map[string]string {
	m := map[string]string{
		"path":    r.path,
		"present": yesno(r.present),
		"cache":   yesno(r.cache),
	}
	r.ownership.attrs(m)
	if r.source != "" {
		m["source"] = r.source
	}
	if r.template != "" {
		m["template"] = r.template
	}
	if r.verify != "" {
		m["verify"] = r.verify
		m["expect"] = strconv.Itoa(r.expect)
	}
	if r.tmpfile != "" {
		m["tmpfile"] = r.tmpfile
	}
	return m
}

// Clone implements Resource.
func (r *FileResource) Clone(key string) Resource {
	c := *r
	c.key = key
	c.st, c.current = fsInfo{}, nil
	return &c
}

func (r *FileResource) managesContent() bool {
	return r.source != "" || r.template != ""
}

// Stat implements Resource.
func (r *FileResource) Stat(ctx context.Context, env *Env) error {
	path := env.Path(r.path)
	st, err := lstat(path)
	if err != nil {
		return err
	}
	r.st, r.current = st, nil
	if st.exists && st.ftype == typeRegular && r.managesContent() {
		if r.current, err = os.ReadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// Remediate implements Resource.
func (r *FileResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: File, Key: r.key}
	path := env.Path(r.path)

	if !r.present {
		if r.st.exists {
			if r.st.ftype == typeDir {
				return rep, fmt.Errorf("%s: is a directory", path)
			}
			if err := os.Remove(path); err != nil {
				return rep, err
			}
			rep.fix("removed")
		}
		return rep, nil
	}

	if r.st.exists && r.st.ftype != typeRegular {
		return rep, fmt.Errorf("%s: is a %s, not a regular file", path, r.st.ftype)
	}

	if r.managesContent() {
		if env.Remote == nil {
			return rep, errors.New("no remote available for file content")
		}
		want, err := env.Remote.Fetch(ctx, r.Key())
		if err != nil {
			return rep, fmt.Errorf("fetch %s: %w", r.Key(), err)
		}
		if !r.st.exists || !bytes.Equal(want, r.current) {
			if err := r.replace(ctx, env, path, want); err != nil {
				return rep, err
			}
			if !r.st.exists {
				rep.fix("created")
			}
			rep.fix("content")
		}
	} else if !r.st.exists {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, r.createMode(0644))
		if err != nil {
			return rep, err
		}
		f.Close()
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

// replace writes new content beside the target, verifies it and renames it
// into place.
func (r *FileResource) replace(ctx context.Context, env *Env, path string, content []byte) error {
	tmp := path + ".cogd"
	if r.tmpfile != "" {
		tmp = env.Path(r.tmpfile)
	}
	mode := r.createMode(0644)
	if r.st.exists && !r.modeSet {
		mode = os.FileMode(r.st.mode & 0777)
	}
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return err
	}

	if r.verify != "" {
		line := strings.ReplaceAll(r.verify, "%s", shellQuote(tmp))
		res, err := env.runner().Run(ctx, Command{Line: line})
		if err == nil && res.Code != r.expect {
			err = fmt.Errorf("verify %q exited %d, expected %d", r.verify, res.Code, r.expect)
		}
		if err != nil {
			os.Remove(tmp)
			return err
		}
	}

	env.diff(ctx, path, tmp)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	r.current = content
	return nil
}
