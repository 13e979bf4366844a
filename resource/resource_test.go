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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-clockwork/test/partitiontest"
)

func TestKindNames(t *testing.T) {
	partitiontest.PartitionTest(t)

	for k := User; k <= maxKind; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)

		r, err := New(k, "key")
		require.NoError(t, err)
		require.Equal(t, k, r.Kind())
		require.Equal(t, k.String()+":key", r.Key())
	}

	_, err := ParseKind("printer")
	require.Error(t, err)
	_, err = New(Kind(0), "key")
	require.Error(t, err)
	_, err = New(maxKind+1, "key")
	require.Error(t, err)
	require.False(t, Kind(0).Valid())
	require.Equal(t, "kind(42)", Kind(42).String())
}

func TestFileAttrs(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := mustNew(t, File, "/etc/sudoers")
	require.Equal(t, map[string]string{
		"path":    "/etc/sudoers",
		"present": "yes",
		"cache":   "no",
	}, r.Attrs())

	mustSet(t, r,
		"owner", "root",
		"group", "sys",
		"mode", "0644",
		"source", "/srv/files/sudo",
		"verify", "visudo -vf %s",
	)
	attrs := r.Attrs()
	require.Equal(t, "root", attrs["owner"])
	require.Equal(t, "sys", attrs["group"])
	require.Equal(t, "0644", attrs["mode"])
	require.Equal(t, "/srv/files/sudo", attrs["source"])
	require.Equal(t, "visudo -vf %s", attrs["verify"])
	require.Equal(t, "0", attrs["expect"])
	require.NotContains(t, attrs, "template")
	require.NotContains(t, attrs, "tmpfile")

	mustSet(t, r,
		"present", "no",
		"cache", "yes",
		"template", "/srv/tpl/sudo",
		"tmpfile", "/etc/sd.TMP",
	)
	attrs = r.Attrs()
	require.Equal(t, "/etc/sd.TMP", attrs["tmpfile"])
	require.Equal(t, "/srv/tpl/sudo", attrs["template"])
	require.Equal(t, "no", attrs["present"])
	require.Equal(t, "yes", attrs["cache"])
	require.NotContains(t, attrs, "source")

	err := r.Set("xyzzy", "bad")
	require.ErrorIs(t, err, ErrUnknownAttr)
	var attrErr *AttrError
	require.True(t, errors.As(err, &attrErr))
	require.Equal(t, "xyzzy", attrErr.Attr)
	require.NotContains(t, r.Attrs(), "xyzzy")

	require.Error(t, r.Set("mode", "999"))
	require.Error(t, r.Set("present", "maybe"))
}

func TestFileMatch(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := mustNew(t, File, "SUDO")
	mustSet(t, r, "owner", "someuser", "path", "/etc/sudoers", "source", "/etc/issue")

	require.True(t, r.Match("path", "/etc/sudoers"))
	require.False(t, r.Match("path", "/tmp/wrong"))
	require.False(t, r.Match("owner", "someuser"))
}

func TestCloneIsIndependent(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := mustNew(t, File, "base")
	mustSet(t, r, "mode", "0600")
	c := r.Clone("copy")
	require.Equal(t, "file:copy", c.Key())
	require.Equal(t, "0600", c.Attrs()["mode"])

	mustSet(t, c, "mode", "0644")
	require.Equal(t, "0600", r.Attrs()["mode"])

	u := mustNew(t, User, "alice")
	mustSet(t, u, "pwmax", "90")
	uc := u.Clone("bob")
	mustSet(t, uc, "pwmax", "30")
	require.Equal(t, "90", u.Attrs()["pwmax"])
}

func TestFileContent(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	env.Remote = fakeRemote{"file:motd": "hello\n"}
	owner, group := selfOwner()

	r := mustNew(t, File, "motd")
	mustSet(t, r, "path", "/etc/motd", "source", "motd", "mode", "0600", "owner", owner, "group", group)

	rep := converge(t, env, r)
	require.Equal(t, []string{"created", "content"}, rep.Fixed)

	raw, err := os.ReadFile(filepath.Join(env.Root, "etc/motd"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(raw))
	fi, err := os.Stat(filepath.Join(env.Root, "etc/motd"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	rep = converge(t, env, r)
	require.True(t, rep.Compliant(), rep.String())

	require.NoError(t, os.Chmod(filepath.Join(env.Root, "etc/motd"), 0644))
	rep = converge(t, env, r)
	require.Equal(t, []string{"mode"}, rep.Fixed)

	env.Remote = fakeRemote{"file:motd": "goodbye\n"}
	rep = converge(t, env, r)
	require.Equal(t, []string{"content"}, rep.Fixed)

	raw, err = os.ReadFile(filepath.Join(env.Root, "etc/motd"))
	require.NoError(t, err)
	require.Equal(t, "goodbye\n", string(raw))

	mustSet(t, r, "present", "no")
	rep = converge(t, env, r)
	require.Equal(t, []string{"removed"}, rep.Fixed)
	require.NoFileExists(t, filepath.Join(env.Root, "etc/motd"))
}

func TestFileVerify(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, runner := testEnv(t)
	env.Remote = fakeRemote{"file:sudoers": "broken"}
	runner.answers["visudo"] = Result{Code: 1}
	path := filepath.Join(env.Root, "etc/sudoers")
	writeFile(t, path, "good", 0440)

	r := mustNew(t, File, "sudoers")
	mustSet(t, r, "path", "/etc/sudoers", "source", "sudoers", "verify", "visudo -cf %s", "tmpfile", "/etc/sudoers.tmp")

	require.NoError(t, r.Stat(context.Background(), env))
	_, err := r.Remediate(context.Background(), env)
	require.ErrorContains(t, err, "exited 1")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "good", string(raw))
	require.NoFileExists(t, filepath.Join(env.Root, "etc/sudoers.tmp"))
	require.Contains(t, runner.commands(), "visudo -cf '"+filepath.Join(env.Root, "etc/sudoers.tmp")+"'")

	runner.answers["visudo"] = Result{Code: 0}
	rep := converge(t, env, r)
	require.Equal(t, []string{"content"}, rep.Fixed)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0440), fi.Mode().Perm())
}

func TestFileWithoutContent(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	r := mustNew(t, File, "/etc/nologin")
	mustSet(t, r, "mode", "0644")

	rep := converge(t, env, r)
	require.Equal(t, []string{"created"}, rep.Fixed)
	require.FileExists(t, filepath.Join(env.Root, "etc/nologin"))
	require.True(t, converge(t, env, r).Compliant())

	dir := mustNew(t, File, "/etc")
	require.NoError(t, dir.Stat(context.Background(), env))
	_, err := dir.Remediate(context.Background(), env)
	require.ErrorContains(t, err, "not a regular file")

	needsRemote := mustNew(t, File, "/etc/issue")
	mustSet(t, needsRemote, "source", "issue")
	require.NoError(t, needsRemote.Stat(context.Background(), env))
	_, err = needsRemote.Remediate(context.Background(), env)
	require.ErrorContains(t, err, "no remote")
}

func TestDir(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	r := mustNew(t, Dir, "/srv/app/data")
	mustSet(t, r, "mode", "0750")

	rep := converge(t, env, r)
	require.Contains(t, rep.Fixed, "created")
	fi, err := os.Stat(filepath.Join(env.Root, "srv/app/data"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	require.Equal(t, os.FileMode(0750), fi.Mode().Perm())
	require.True(t, converge(t, env, r).Compliant())

	mustSet(t, r, "present", "no")
	require.Equal(t, []string{"removed"}, converge(t, env, r).Fixed)
	require.NoDirExists(t, filepath.Join(env.Root, "srv/app/data"))
}

func TestSymlink(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	path := filepath.Join(env.Root, "etc/localtime")

	r := mustNew(t, Symlink, "/etc/localtime")
	mustSet(t, r, "target", "/usr/share/zoneinfo/UTC")
	require.Equal(t, []string{"target"}, converge(t, env, r).Fixed)
	target, err := os.Readlink(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/share/zoneinfo/UTC", target)
	require.True(t, converge(t, env, r).Compliant())

	mustSet(t, r, "target", "/usr/share/zoneinfo/EST")
	require.Equal(t, []string{"target"}, converge(t, env, r).Fixed)
	target, err = os.Readlink(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/share/zoneinfo/EST", target)

	mustSet(t, r, "present", "no")
	require.Equal(t, []string{"removed"}, converge(t, env, r).Fixed)

	writeFile(t, path, "regular", 0644)
	mustSet(t, r, "present", "yes")
	require.NoError(t, r.Stat(context.Background(), env))
	_, err = r.Remediate(context.Background(), env)
	require.ErrorContains(t, err, "not a symbolic link")
}

func TestHost(t *testing.T) {
	partitiontest.PartitionTest(t)

	env, _ := testEnv(t)
	hosts := filepath.Join(env.Root, "etc/hosts")
	writeFile(t, hosts, "127.0.0.1 localhost\n10.0.0.5 db # primary\n", 0644)

	r := mustNew(t, Host, "db")
	mustSet(t, r, "ip", "10.0.0.5")
	require.True(t, converge(t, env, r).Compliant())

	mustSet(t, r, "aliases", "db.example.com,postgres")
	require.Equal(t, []string{"aliases"}, converge(t, env, r).Fixed)
	raw, err := os.ReadFile(hosts)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1 localhost\n10.0.0.5 db db.example.com postgres\n", string(raw))
	require.True(t, converge(t, env, r).Compliant())

	web := mustNew(t, Host, "web")
	mustSet(t, web, "ip", "10.0.0.6")
	require.Equal(t, []string{"created"}, converge(t, env, web).Fixed)

	mustSet(t, r, "present", "no")
	require.Equal(t, []string{"removed"}, converge(t, env, r).Fixed)
	raw, err = os.ReadFile(hosts)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1 localhost\n10.0.0.6 web\n", string(raw))

	require.True(t, r.Match("hostname", "db"))
	require.True(t, r.Match("ip", "10.0.0.5"))

	noip := mustNew(t, Host, "x")
	require.Error(t, noip.Stat(context.Background(), env))
}
