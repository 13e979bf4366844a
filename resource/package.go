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

// LatestVersion as a package version accepts whatever is installed.
const LatestVersion = "latest"

// PackageResource manages an installed software package.
type PackageResource struct {
	key     string
	name    string
	version string
	present bool

	installed string
	isPresent bool
}

func newPackage(key string) *PackageResource {
	return &PackageResource{key: key, name: key, present: true}
}

// Kind implements Resource.
func (r *PackageResource) Kind() Kind { return Package }

// Key implements Resource.
func (r *PackageResource) Key() string { return "package:" + r.key }

// Set implements Resource.
func (r *PackageResource) Set(attr, value string) error {
	var err error
	switch attr {
	case "name":
		r.name = value
	case "version":
		r.version = value
	case "installed", "present":
		r.present, err = parseBool(value)
	default:
		err = ErrUnknownAttr
	}
	if err != nil {
		return attrErr(Package, attr, value, err)
	}
	return nil
}

// Match implements Resource.
func (r *PackageResource) Match(attr, value string) bool {
	return attr == "name" && r.name == value
}

// Attrs implements Resource.
func (r *PackageResource) Attrs() map[string]string {
	m := map[string]string{"name": r.name, "installed": yesno(r.present)}
	if r.version != "" {
		m["version"] = r.version
	}
	return m
}

// Clone implements Resource.
func (r *PackageResource) Clone(key string) Resource {
	c := *r
	c.key, c.installed, c.isPresent = key, "", false
	return &c
}

func (r *PackageResource) pinned() bool {
	return r.version != "" && r.version != LatestVersion
}

// Stat implements Resource.
func (r *PackageResource) Stat(ctx context.Context, env *Env) error {
	res, err := env.runner().Run(ctx, Command{Line: fmt.Sprintf(env.Packages.Query, shellQuote(r.name))})
	if err != nil {
		return err
	}
	r.isPresent = res.Code == 0
	r.installed = strings.TrimSpace(res.Stdout)
	return nil
}

// Remediate implements Resource.
func (r *PackageResource) Remediate(ctx context.Context, env *Env) (Report, error) {
	rep := Report{Kind: Package, Key: r.key}

	var line, what string
	switch {
	case !r.present && r.isPresent:
		line, what = fmt.Sprintf(env.Packages.Remove, shellQuote(r.name)), "removed"
	case r.present && !r.isPresent:
		line, what = fmt.Sprintf(env.Packages.Install, shellQuote(r.spec())), "installed"
	case r.present && r.pinned() && r.installed != r.version:
		line, what = fmt.Sprintf(env.Packages.Install, shellQuote(r.spec())), "version"
	default:
		return rep, nil
	}

	res, err := env.runner().Run(ctx, Command{Line: line})
	if err != nil {
		return rep, err
	}
	if res.Code != 0 {
		return rep, fmt.Errorf("%s exited %d: %s", line, res.Code, strings.TrimSpace(res.Stderr))
	}
	rep.fix(what)
	r.isPresent = r.present
	if r.pinned() {
		r.installed = r.version
	}
	return rep, nil
}

func (r *PackageResource) spec() string {
	if r.pinned() {
		return r.name + "=" + r.version
	}
	return r.name
}
