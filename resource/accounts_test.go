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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/authdb"
	"github.com/algorand/go-clockwork/test/partitiontest"
)

func writeAuthFixtures(t *testing.T, env *Env) {
	files := map[string]string{
		"passwd":  "root:x:0:0:root:/root:/bin/bash\nalice:x:1000:1000:Alice:/home/alice:/bin/bash\n",
		"shadow":  "root:!:14009:0:99999:7:::\nalice:$6$a$b:14009:0:99999:7:::\n",
		"group":   "root:x:0:\nalice:x:1000:\nstaff:x:50:bob,carol\n",
		"gshadow": "root:*::\nalice:!::\nstaff:!:bob:bob,carol\n",
	}
	for name, data := range files {
		writeFile(t, filepath.Join(env.Root, "etc", name), data, 0644)
	}
}

func reopen(t *testing.T, env *Env) *authdb.DB {
	db, err := authdb.Open(env.Path("/etc"))
	require.NoError(t, err)
	return db
}

func TestUserLifecycle(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	writeAuthFixtures(t, env)

	r := mustNew(t, User, "web")
	mustSet(t, r, "home", "/srv/web", "comment", "web service")
	require.Equal(t, []string{"created", "comment", "home"}, converge(t, env, r).Fixed)

	u := reopen(t, env).User("web")
	require.NotNil(t, u)
	require.Equal(t, 1001, u.UID)
	require.Equal(t, 1001, u.GID)
	require.Equal(t, "/srv/web", u.Home)
	require.Equal(t, "!", u.Hash)
	require.True(t, converge(t, env, r).Compliant())

	mustSet(t, r, "shell", "/bin/false", "password", "$6$salt$hash", "pwmax", "90")
	require.Equal(t, []string{"shell", "password", "pwmax"}, converge(t, env, r).Fixed)
	mustSet(t, r, "locked", "yes")
	require.Equal(t, []string{"locked"}, converge(t, env, r).Fixed)
	require.True(t, converge(t, env, r).Compliant())

	u = reopen(t, env).User("web")
	require.Equal(t, "/bin/false", u.Shell)
	require.Equal(t, "!$6$salt$hash", u.Hash)
	require.Equal(t, 90, u.MaxDays)

	mustSet(t, r, "locked", "no")
	require.Equal(t, []string{"unlocked"}, converge(t, env, r).Fixed)
	require.Equal(t, "$6$salt$hash", reopen(t, env).User("web").Hash)

	mustSet(t, r, "present", "no")
	require.Equal(t, []string{"removed"}, converge(t, env, r).Fixed)
	require.Nil(t, reopen(t, env).User("web"))
	require.NotNil(t, reopen(t, env).User("alice"))
	require.True(t, converge(t, env, r).Compliant())
}

func TestUserMakeHome(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	writeAuthFixtures(t, env)
	writeFile(t, filepath.Join(env.Root, "etc/skel/.profile"), "export PATH\n", 0644)

	uid, gid := os.Getuid(), os.Getgid()
	r := mustNew(t, User, "me")
	mustSet(t, r, "uid", itoa(uid), "gid", itoa(gid), "home", "/home/me", "makehome", "yes")
	rep := converge(t, env, r)
	require.Contains(t, rep.Fixed, "home")

	raw, err := os.ReadFile(filepath.Join(env.Root, "home/me/.profile"))
	require.NoError(t, err)
	require.Equal(t, "export PATH\n", string(raw))
	require.True(t, converge(t, env, r).Compliant())
}

func TestUserMatch(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := mustNew(t, User, "alice")
	require.True(t, r.Match("username", "alice"))
	require.False(t, r.Match("uid", "1000"))
	mustSet(t, r, "uid", "1000")
	require.True(t, r.Match("uid", "1000"))
	require.False(t, r.Match("shell", "/bin/sh"))
	require.ErrorIs(t, r.Set("colour", "blue"), ErrUnknownAttr)
	require.Error(t, r.Set("uid", "many"))
}

func TestGroupMembership(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	writeAuthFixtures(t, env)

	deploy := mustNew(t, Group, "deploy")
	mustSet(t, deploy, "members", "web alice !bob")
	require.Equal(t, []string{"created", "members"}, converge(t, env, deploy).Fixed)
	g := reopen(t, env).Group("deploy")
	require.Equal(t, 1001, g.GID)
	require.Equal(t, []string{"alice", "web"}, g.Members)
	require.True(t, converge(t, env, deploy).Compliant())

	staff := mustNew(t, Group, "staff")
	mustSet(t, staff, "members", "!bob dave", "admins", "carol !bob", "gid", "51")
	require.Equal(t, []string{"gid", "members", "admins"}, converge(t, env, staff).Fixed)
	g = reopen(t, env).Group("staff")
	require.Equal(t, 51, g.GID)
	require.Equal(t, []string{"carol", "dave"}, g.Members)
	require.Equal(t, []string{"carol"}, g.Admins)
	require.Equal(t, "dave !bob", staff.Attrs()["members"])

	mustSet(t, deploy, "present", "no")
	require.Equal(t, []string{"removed"}, converge(t, env, deploy).Fixed)
	require.Nil(t, reopen(t, env).Group("deploy"))
}
