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

// Package authdb reads and rewrites the passwd, shadow, group and gshadow
// databases found in a directory (normally /etc).
package authdb

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/algorand/go-clockwork/util/codecs"
)

// Database file names within the root directory.
const (
	PasswdFile  = "passwd"
	ShadowFile  = "shadow"
	GroupFile   = "group"
	GshadowFile = "gshadow"
)

// ErrExists is returned when adding an account whose name is taken.
var ErrExists = errors.New("account already exists")

// User is a passwd entry merged with its shadow entry. Shadow aging fields
// hold -1 when empty.
type User struct {
	Name     string
	Password string // passwd field, usually "x"
	UID      int
	GID      int
	Gecos    string
	Home     string
	Shell    string

	InShadow    bool
	Hash        string
	LastChanged int
	MinDays     int
	MaxDays     int
	WarnDays    int
	GracePeriod int
	Expiration  int
	Reserved    string
}

// Group is a group entry merged with its gshadow entry.
type Group struct {
	Name     string
	Password string
	GID      int
	Members  []string

	InGshadow bool
	Hash      string
	Admins    []string
}

// DB holds the four databases of one root directory.
type DB struct {
	root   string
	users  []*User
	groups []*Group
}

// Open reads the databases under root. passwd and group must exist; the
// shadow databases are optional.
func Open(root string) (*DB, error) {
	db := &DB{root: root}
	if err := db.readPasswd(); err != nil {
		return nil, err
	}
	if err := db.readGroup(); err != nil {
		return nil, err
	}
	if err := db.readShadow(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := db.readGshadow(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return db, nil
}

// Root is the directory the databases were read from.
func (db *DB) Root() string {
	return db.root
}

func eachRecord(path string, fields int, fn func(lineno int, f []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Split(line, ":")
		if len(f) < fields {
			return fmt.Errorf("%s:%d: expected %d fields, found %d", path, lineno, fields, len(f))
		}
		if err := fn(lineno, f); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineno, err)
		}
	}
	return scanner.Err()
}

func atoiOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (db *DB) readPasswd() error {
	return eachRecord(filepath.Join(db.root, PasswdFile), 7, func(_ int, f []string) error {
		uid, err := strconv.Atoi(f[2])
		if err != nil {
			return err
		}
		gid, err := strconv.Atoi(f[3])
		if err != nil {
			return err
		}
		db.users = append(db.users, &User{
			Name: f[0], Password: f[1], UID: uid, GID: gid,
			Gecos: f[4], Home: f[5], Shell: f[6],
			LastChanged: -1, MinDays: -1, MaxDays: -1, WarnDays: -1, GracePeriod: -1, Expiration: -1,
		})
		return nil
	})
}

func (db *DB) readShadow() error {
	return eachRecord(filepath.Join(db.root, ShadowFile), 9, func(_ int, f []string) error {
		u := db.User(f[0])
		if u == nil {
			return nil
		}
		var err error
		u.InShadow = true
		u.Hash = f[1]
		for i, dst := range []*int{&u.LastChanged, &u.MinDays, &u.MaxDays, &u.WarnDays, &u.GracePeriod, &u.Expiration} {
			if *dst, err = atoiOr(f[2+i], -1); err != nil {
				return err
			}
		}
		u.Reserved = f[8]
		return nil
	})
}

func (db *DB) readGroup() error {
	return eachRecord(filepath.Join(db.root, GroupFile), 4, func(_ int, f []string) error {
		gid, err := strconv.Atoi(f[2])
		if err != nil {
			return err
		}
		db.groups = append(db.groups, &Group{Name: f[0], Password: f[1], GID: gid, Members: splitList(f[3])})
		return nil
	})
}

func (db *DB) readGshadow() error {
	return eachRecord(filepath.Join(db.root, GshadowFile), 4, func(_ int, f []string) error {
		g := db.Group(f[0])
		if g == nil {
			return nil
		}
		g.InGshadow = true
		g.Hash = f[1]
		g.Admins = splitList(f[2])
		return nil
	})
}

// User finds a user by name.
func (db *DB) User(name string) *User {
	for _, u := range db.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// UserByUID finds the first user with the given uid.
func (db *DB) UserByUID(uid int) *User {
	for _, u := range db.users {
		if u.UID == uid {
			return u
		}
	}
	return nil
}

// Group finds a group by name.
func (db *DB) Group(name string) *Group {
	for _, g := range db.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// GroupByGID finds the first group with the given gid.
func (db *DB) GroupByGID(gid int) *Group {
	for _, g := range db.groups {
		if g.GID == gid {
			return g
		}
	}
	return nil
}

// Users returns every user in file order.
func (db *DB) Users() []*User {
	return append([]*User(nil), db.users...)
}

// Groups returns every group in file order.
func (db *DB) Groups() []*Group {
	return append([]*Group(nil), db.groups...)
}

// NextUID returns the lowest unused uid at or above min.
func (db *DB) NextUID(min int) int {
	used := make(map[int]bool, len(db.users))
	for _, u := range db.users {
		used[u.UID] = true
	}
	for used[min] {
		min++
	}
	return min
}

// NextGID returns the lowest unused gid at or above min.
func (db *DB) NextGID(min int) int {
	used := make(map[int]bool, len(db.groups))
	for _, g := range db.groups {
		used[g.GID] = true
	}
	for used[min] {
		min++
	}
	return min
}

// AddUser appends a user. The returned pointer may be modified in place
// before Write.
func (db *DB) AddUser(u User) (*User, error) {
	if db.User(u.Name) != nil {
		return nil, fmt.Errorf("user %s: %w", u.Name, ErrExists)
	}
	if u.Password == "" {
		u.Password = "x"
	}
	nu := u
	db.users = append(db.users, &nu)
	return &nu, nil
}

// AddGroup appends a group.
func (db *DB) AddGroup(g Group) (*Group, error) {
	if db.Group(g.Name) != nil {
		return nil, fmt.Errorf("group %s: %w", g.Name, ErrExists)
	}
	if g.Password == "" {
		g.Password = "x"
	}
	ng := g
	db.groups = append(db.groups, &ng)
	return &ng, nil
}

// RemoveUser deletes a user and reports whether it existed.
func (db *DB) RemoveUser(name string) bool {
	for i, u := range db.users {
		if u.Name == name {
			db.users = append(db.users[:i], db.users[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveGroup deletes a group and reports whether it existed.
func (db *DB) RemoveGroup(name string) bool {
	for i, g := range db.groups {
		if g.Name == name {
			db.groups = append(db.groups[:i], db.groups[i+1:]...)
			return true
		}
	}
	return false
}

// Creds renders "user:primary:supplementary..." for a user, the form mesh
// commands carry for ACL evaluation. It returns "" for unknown users.
func (db *DB) Creds(name string) string {
	u := db.User(name)
	if u == nil {
		return ""
	}
	parts := []string{u.Name}
	primary := db.GroupByGID(u.GID)
	if primary != nil {
		parts = append(parts, primary.Name)
	}
	for _, g := range db.groups {
		if g == primary {
			continue
		}
		for _, m := range g.Members {
			if m == u.Name {
				parts = append(parts, g.Name)
				break
			}
		}
	}
	return strings.Join(parts, ":")
}

// Groupnames returns the names of the groups name belongs to, primary first.
func (db *DB) Groupnames(name string) []string {
	creds := db.Creds(name)
	if creds == "" {
		return nil
	}
	return strings.Split(creds, ":")[1:]
}

func itoaOrEmpty(n int) string {
	if n < 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Write rewrites all four databases atomically, one file at a time.
func (db *DB) Write() error {
	var passwd, shadow, group, gshadow strings.Builder
	for _, u := range db.users {
		fmt.Fprintf(&passwd, "%s:%s:%d:%d:%s:%s:%s\n", u.Name, u.Password, u.UID, u.GID, u.Gecos, u.Home, u.Shell)
		if u.InShadow {
			fmt.Fprintf(&shadow, "%s:%s:%s:%s:%s:%s:%s:%s:%s\n", u.Name, u.Hash,
				itoaOrEmpty(u.LastChanged), itoaOrEmpty(u.MinDays), itoaOrEmpty(u.MaxDays),
				itoaOrEmpty(u.WarnDays), itoaOrEmpty(u.GracePeriod), itoaOrEmpty(u.Expiration), u.Reserved)
		}
	}
	for _, g := range db.groups {
		fmt.Fprintf(&group, "%s:%s:%d:%s\n", g.Name, g.Password, g.GID, strings.Join(g.Members, ","))
		if g.InGshadow {
			fmt.Fprintf(&gshadow, "%s:%s:%s:%s\n", g.Name, g.Hash, strings.Join(g.Admins, ","), strings.Join(g.Members, ","))
		}
	}

	files := []struct {
		name string
		data string
		perm os.FileMode
	}{
		{PasswdFile, passwd.String(), 0644},
		{ShadowFile, shadow.String(), 0640},
		{GroupFile, group.String(), 0644},
		{GshadowFile, gshadow.String(), 0640},
	}
	for _, f := range files {
		path := filepath.Join(db.root, f.name)
		if f.data == "" {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				continue
			}
		}
		if err := codecs.WriteFileAtomic(path, []byte(f.data), f.perm); err != nil {
			return err
		}
	}
	return nil
}

// SortMembers orders member and admin lists, for stable comparisons.
func (g *Group) SortMembers() {
	sort.Strings(g.Members)
	sort.Strings(g.Admins)
}
