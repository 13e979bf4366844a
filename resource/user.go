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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-clockwork/authdb"
)

// MinUID is the first uid handed out to users created without one.
const MinUID = 1000

// UserResource manages an account in passwd and shadow.
type UserResource struct {
	key     string
	name    string
	present bool

	uid, gid       int
	uidSet, gidSet bool
	gecos          *string
	home           *string
	shell          *string
	password       *string
	locked         *bool
	makehome       bool
	skeleton       string
	aging          map[string]int

	existing *authdb.User
}

var agingAttrs = []string{"pwmin", "pwmax", "pwwarn", "inact", "expiry"}

func newUser(key string) *UserResource {
	return &UserResource{key: key, name: key, present: true, skeleton: "/etc/skel", aging: map[string]int{}}
}

// Kind implements Resource.
func (r *UserResource) Kind() Kind { return User }

// Key implements Resource.
func (r *UserResource) Key() string { return "user:" + r.key }

func strp(s string) *string { return &s }

// Set implements Resource.
func (r *UserResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "username", "name":
		r.name = value
	case "uid":
		r.uid, err = strconv.Atoi(value)
		r.uidSet = err == nil
	case "gid":
		r.gid, err = strconv.Atoi(value)
		r.gidSet = err == nil
	case "comment", "gecos":
		r.gecos = strp(value)
	case "home":
		r.home = strp(value)
	case "shell":
		r.shell = strp(value)
	case "password", "pwhash":
		r.password = strp(value)
	case "present":
		r.present, err = parseBool(value)
	case "locked":
		var b bool
		if b, err = parseBool(value); err == nil {
			r.locked = &b
		}
	case "makehome":
		r.makehome, err = parseBool(value)
	case "skeleton":
		r.skeleton = value
	case "pwmin", "pwmax", "pwwarn", "inact", "expiry":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			r.aging[attr] = n
		}
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(User, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *UserResource) Match(attr, value string) bool {
	switch attr {
	case "username", "name":
		return r.name == value
	case "uid":
		return r.uidSet && strconv.Itoa(r.uid) == value
	}
	return false
}

// Attrs implements Resource.
func (r *UserResource) Attrs() map[string]string {
	m := map[string]string{"username": r.name, "present": yesno(r.present)}
	if r.uidSet {
		m["uid"] = strconv.Itoa(r.uid)
	}
	if r.gidSet {
		m["gid"] = strconv.Itoa(r.gid)
	}
	for attr, p := range map[string]*string{"comment": r.gecos, "home": r.home, "shell": r.shell, "password": r.password} {
		if p != nil {
			m[attr] = *p
		}
	}
	if r.locked != nil {
		m["locked"] = yesno(*r.locked)
	}
	if r.makehome {
		m["makehome"] = "yes"
		m["skeleton"] = r.skeleton
	}
	for attr, n := range r.aging {
		m[attr] = strconv.Itoa(n)
	}
	return m
}

// Clone implements Resource.
func (r *UserResource) Clone(key string) Resource {
	c := *r
	c.key = key
	c.aging = make(map[string]int, len(r.aging))
	for k, v := range r.aging {
		c.aging[k] = v
	}
	c.existing = nil
	return &c
}

// Stat implements Resource.
func (r *UserResource) Stat(ctx context.Context, env *Env) error {
	db, err := env.AuthDB()
	if err != nil {
		return err
	}
	r.existing = db.User(r.name)
	return nil
}

func daysSinceEpoch() int {
	return int(time.Now().Unix() / 86400)
}

// Remediate implements Resource.
func (r *UserResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: User, Key: r.key}
	db, err := env.AuthDB()
	if err != nil {
		return rep, err
	}

	if !r.present {
		if r.existing != nil {
			db.RemoveUser(r.name)
			rep.fix("removed")
			r.existing = nil
			return rep, db.Write()
		}
		return rep, nil
	}

	u := r.existing
	if u == nil {
		nu := authdb.User{
			Name:        r.name,
			UID:         r.uid,
			GID:         r.gid,
			Home:        "/home/" + r.name,
			Shell:       "/bin/sh",
			InShadow:    true,
			Hash:        "!",
			LastChanged: daysSinceEpoch(),
			MinDays:     -1,
			MaxDays:     -1,
			WarnDays:    -1,
			GracePeriod: -1,
			Expiration:  -1,
		}
		if !r.uidSet {
			nu.UID = db.NextUID(MinUID)
		}
		if !r.gidSet {
			nu.GID = nu.UID
		}
		if u, err = db.AddUser(nu); err != nil {
			return rep, err
		}
		rep.fix("created")
	}

	if r.uidSet && u.UID != r.uid {
		u.UID = r.uid
		rep.fix("uid")
	}
	if r.gidSet && u.GID != r.gid {
		u.GID = r.gid
		rep.fix("gid")
	}
	for _, f := range []struct {
		attr string
		want *string
		have *string
	}{
		{"comment", r.gecos, &u.Gecos},
		{"home", r.home, &u.Home},
		{"shell", r.shell, &u.Shell},
	} {
		if f.want != nil && *f.want != *f.have {
			*f.have = *f.want
			rep.fix(f.attr)
		}
	}
	if r.password != nil && strings.TrimPrefix(u.Hash, "!") != *r.password {
		locked := strings.HasPrefix(u.Hash, "!") && u.Hash != "!"
		u.Hash = *r.password
		if locked {
			u.Hash = "!" + u.Hash
		}
		u.InShadow = true
		u.LastChanged = daysSinceEpoch()
		rep.fix("password")
	}
	if r.locked != nil {
		isLocked := strings.HasPrefix(u.Hash, "!")
		switch {
		case *r.locked && !isLocked:
			u.Hash = "!" + u.Hash
			rep.fix("locked")
		case !*r.locked && isLocked && u.Hash != "!":
			u.Hash = strings.TrimPrefix(u.Hash, "!")
			rep.fix("unlocked")
		}
	}
	for _, attr := range agingAttrs {
		want, ok := r.aging[attr]
		if !ok {
			continue
		}
		have := map[string]*int{
			"pwmin":  &u.MinDays,
			"pwmax":  &u.MaxDays,
			"pwwarn": &u.WarnDays,
			"inact":  &u.GracePeriod,
			"expiry": &u.Expiration,
		}[attr]
		if *have != want {
			*have = want
			u.InShadow = true
			rep.fix(attr)
		}
	}

	if !rep.Compliant() {
		if err := db.Write(); err != nil {
			return rep, err
		}
	}
	r.existing = u

	if r.makehome {
		home := env.Path(u.Home)
		if _, err := os.Lstat(home); os.IsNotExist(err) {
			if err := makeHome(env.Path(r.skeleton), home, u.UID, u.GID); err != nil {
				return rep, err
			}
			rep.fix("home")
		}
	}
	return rep, nil
}

// makeHome creates a home directory populated from a skeleton directory.
func makeHome(skel, home string, uid, gid int) error {
	if err := os.MkdirAll(home, 0700); err != nil {
		return err
	}
	if err := lchownIfNeeded(home, uid, gid); err != nil {
		return err
	}
	if _, err := os.Stat(skel); err != nil {
		return nil
	}
	return filepath.WalkDir(skel, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == skel {
			return err
		}
		rel, err := filepath.Rel(skel, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(home, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			err = os.Mkdir(dst, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			var target string
			if target, err = os.Readlink(path); err == nil {
				err = os.Symlink(target, dst)
			}
		case d.Type().IsRegular():
			err = copyFile(path, dst, info.Mode().Perm())
		default:
			return nil
		}
		if err != nil {
			return err
		}
		return lchownIfNeeded(dst, uid, gid)
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func lchownIfNeeded(path string, uid, gid int) error {
	st, err := lstat(path)
	if err != nil {
		return err
	}
	if st.uid == uid && st.gid == gid {
		return nil
	}
	return os.Lchown(path, uid, gid)
}
