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
	"fmt"
	"os"
)

type fileType int

const (
	typeNone fileType = iota
	typeRegular
	typeDir
	typeSymlink
	typeOther
)

func (t fileType) String() string {
	switch t {
	case typeRegular:
		return "regular file"
	case typeDir:
		return "directory"
	case typeSymlink:
		return "symbolic link"
	case typeOther:
		return "special file"
	}
	return "nothing"
}

// fsInfo is what Stat observed about a path.
type fsInfo struct {
	exists bool
	ftype  fileType
	uid    int
	gid    int
	mode   uint32
}

// ownership is the owner/group/mode attribute block shared by files and
// directories.
type ownership struct {
	owner   string
	group   string
	mode    uint32
	modeSet bool
}

func (o *ownership) set(k Kind, attr, value string) (bool, error) {
	switch attr {
	case "owner":
		o.owner = value
	case "group":
		o.group = value
	case "mode":
		m, err := parseMode(value)
		if err != nil {
			return true, attrErr(k, attr, value, err)
		}
		o.mode, o.modeSet = m, true
	default:
		return false, nil
	}
	return true, nil
}

func (o *ownership) attrs(m map[string]string) {
	if o.owner != "" {
		m["owner"] = o.owner
	}
	if o.group != "" {
		m["group"] = o.group
	}
	if o.modeSet {
		m["mode"] = formatMode(o.mode)
	}
}

func (o *ownership) createMode(def uint32) os.FileMode {
	if o.modeSet {
		return os.FileMode(o.mode & 0777)
	}
	return os.FileMode(def)
}

// converge fixes owner, group and mode of an existing path.
func (o *ownership) converge(env *Env, path string, st fsInfo, rep *Report) error {
	uid, gid := -1, -1
	if o.owner != "" {
		id, err := env.lookupUID(o.owner)
		if err != nil {
			return err
		}
		if id != st.uid {
			uid = id
		}
	}
	if o.group != "" {
		id, err := env.lookupGID(o.group)
		if err != nil {
			return err
		}
		if id != st.gid {
			gid = id
		}
	}
	if uid >= 0 || gid >= 0 {
		if err := os.Lchown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		if uid >= 0 {
			rep.fix("owner")
		}
		if gid >= 0 {
			rep.fix("group")
		}
	}
	if o.modeSet && st.mode != o.mode {
		if err := chmod(path, o.mode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		rep.fix("mode")
	}
	return nil
}
