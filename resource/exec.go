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
	"strings"
)

// ExecResource runs a command, optionally guarded by a test command. The
// command runs when the test exits zero, or always when there is no test.
type ExecResource struct {
	key      string
	command  string
	test     string
	user     string
	group    string
	ondemand bool

	needsRun bool
}

func newExec(key string) *ExecResource {
	return &ExecResource{key: key, command: key}
}

// Kind implements Resource.
func (r *ExecResource) Kind() Kind { return Exec }

// Key implements Resource.
func (r *ExecResource) Key() string { return "exec:" + r.key }

// Set implements Resource.
func (r *ExecResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "command":
		r.command = value
	case "test":
		r.test = value
	case "user":
		r.user = value
	case "group":
		r.group = value
	case "ondemand":
		r.ondemand, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Exec, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *ExecResource) Match(attr, value string) bool {
	return attr == "command" && r.command == value
}

// Attrs implements Resource.
func (r *ExecResource) Attrs() map[string]string {
	m := map[string]string{"command": r.command, "ondemand": yesno(r.ondemand)}
	for attr, v := range map[string]string{"test": r.test, "user": r.user, "group": r.group} {
		if v != "" {
			m[attr] = v
		}
	}
	return m
}

// Clone implements Resource.
func (r *ExecResource) Clone(key string) Resource {
	c := *r
	c.key, c.needsRun = key, false
	return &c
}

func (r *ExecResource) cmd(env *Env, line string) (Command, error) {
	c := Command{Line: line}
	if r.user == "" && r.group == "" {
		return c, nil
	}
	c.SetID = true
	c.UID, c.GID = os.Getuid(), os.Getgid()
	var err error
	if r.user != "" {
		if c.UID, err = env.lookupUID(r.user); err != nil {
			return c, err
		}
		if db, err := env.AuthDB(); err == nil {
			if u := db.UserByUID(c.UID); u != nil {
				c.GID = u.GID
			}
		}
	}
	if r.group != "" {
		if c.GID, err = env.lookupGID(r.group); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Stat implements Resource.
func (r *ExecResource) Stat(ctx context.Context, env *Env) error {
	if r.test == "" {
		r.needsRun = true
		return nil
	}
	c, err := r.cmd(env, r.test)
	if err != nil {
		return err
	}
	res, err := env.runner().Run(ctx, c)
	if err != nil {
		return err
	}
	r.needsRun = res.Code == 0
	return nil
}

// Remediate implements Resource. On-demand commands only run through Notify.
func (r *ExecResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Exec, Key: r.key}
	if !r.needsRun || r.ondemand {
		return rep, nil
	}
	if err := r.Notify(ctx, env); err != nil {
		return rep, err
	}
	rep.fix("executed")
	return rep, nil
}

// Notify runs the command unconditionally.
func (r *ExecResource) Notify(ctx context.Context, env *Env) error {
	c, err := r.cmd(env, r.command)
	if err != nil {
		return err
	}
	res, err := env.runner().Run(ctx, c)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("%s exited %d: %s", r.command, res.Code, strings.TrimSpace(res.Stderr))
	}
	return nil
}
