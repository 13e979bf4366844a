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
	"strings"
)

// ServiceResource manages an init service: running state and boot
// enablement.
type ServiceResource struct {
	key     string
	name    string
	running *bool
	enabled *bool
	notify  string

	isRunning bool
	isEnabled bool
}

func newService(key string) *ServiceResource {
	return &ServiceResource{key: key, name: key, notify: "restart"}
}

// Kind implements Resource.
func (r *ServiceResource) Kind() Kind { return Service }

// Key implements Resource.
func (r *ServiceResource) Key() string { return "service:" + r.key }

func boolp(value string) (*bool, error) {
	b, err := parseBool(value)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Set implements Resource.
func (r *ServiceResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "name", "service":
		r.name = value
	case "running":
		r.running, err = boolp(value)
	case "enabled":
		r.enabled, err = boolp(value)
	case "notify":
		r.notify = value
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Service, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *ServiceResource) Match(attr, value string) bool {
	return (attr == "name" || attr == "service") && r.name == value
}

// Attrs implements Resource.
func (r *ServiceResource) Attrs() map[string]string {
	m := map[string]string{"name": r.name, "notify": r.notify}
	if r.running != nil {
		m["running"] = yesno(*r.running)
	}
	if r.enabled != nil {
		m["enabled"] = yesno(*r.enabled)
	}
	return m
}

// Clone implements Resource.
func (r *ServiceResource) Clone(key string) Resource {
	c := *r
	c.key, c.isRunning, c.isEnabled = key, false, false
	return &c
}

func (r *ServiceResource) check(ctx context.Context, env *Env, tmpl string) (bool, error) {
	res, err := env.runner().Run(ctx, Command{Line: fmt.Sprintf(tmpl, shellQuote(r.name))})
	if err != nil {
		return false, err
	}
	return res.Code == 0, nil
}

// Stat implements Resource.
func (r *ServiceResource) Stat(ctx context.Context, env *Env) (err error) {
	if r.running != nil {
		if r.isRunning, err = r.check(ctx, env, env.Services.Running); err != nil {
			return err
		}
	}
	if r.enabled != nil {
		if r.isEnabled, err = r.check(ctx, env, env.Services.Enabled); err != nil {
			return err
		}
	}
	return nil
}

func (r *ServiceResource) run(ctx context.Context, env *Env, line string) error {
	res, err := env.runner().Run(ctx, Command{Line: line})
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("%s exited %d: %s", line, res.Code, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Remediate implements Resource.
func (r *ServiceResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Service, Key: r.key}
	name := shellQuote(r.name)

	if r.enabled != nil && *r.enabled != r.isEnabled {
		tmpl, what := env.Services.Enable, "enabled"
		if !*r.enabled {
			tmpl, what = env.Services.Disable, "disabled"
		}
		if err := r.run(ctx, env, fmt.Sprintf(tmpl, name)); err != nil {
			return rep, err
		}
		r.isEnabled = *r.enabled
		rep.fix(what)
	}
	if r.running != nil && *r.running != r.isRunning {
		tmpl, what := env.Services.Start, "started"
		if !*r.running {
			tmpl, what = env.Services.Stop, "stopped"
		}
		if err := r.run(ctx, env, fmt.Sprintf(tmpl, name)); err != nil {
			return rep, err
		}
		r.isRunning = *r.running
		rep.fix(what)
	}
	return rep, nil
}

// Notify runs the notify action (restart by default) against the service.
func (r *ServiceResource) Notify(ctx context.Context, env *Env) error {
	return r.run(ctx, env, fmt.Sprintf(env.Services.Action, r.notify, shellQuote(r.name)))
}
