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

// Package resource implements the closed set of resource kinds a policy
// program can enforce. Each kind knows how to parse its attributes, observe
// the current system state (Stat) and converge it (Remediate).
package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the closed tag identifying a resource variant.
type Kind byte

// Resource kinds. The numeric values are part of the bytecode format.
const (
	User Kind = iota + 1
	Group
	File
	Symlink
	Package
	Service
	Host
	Dir
	Exec

	maxKind = Exec
)

var kindNames = [...]string{
	User:    "user",
	Group:   "group",
	File:    "file",
	Symlink: "symlink",
	Package: "package",
	Service: "service",
	Host:    "host",
	Dir:     "dir",
	Exec:    "exec",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Valid reports whether k names a known resource kind.
func (k Kind) Valid() bool {
	return k >= User && k <= maxKind
}

// ParseKind maps a kind name to its tag.
func ParseKind(name string) (Kind, error) {
	for k := User; k <= maxKind; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", name)
}

// ErrUnknownAttr is wrapped by Set when a kind has no such attribute.
var ErrUnknownAttr = errors.New("unknown attribute")

// AttrError describes an attribute that could not be set.
type AttrError struct {
	Kind  Kind
	Attr  string
	Value string
	Err   error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("%s.%s = %q: %v", e.Kind, e.Attr, e.Value, e.Err)
}

func (e *AttrError) Unwrap() error {
	return e.Err
}

// Resource is one enforceable object on the local system.
type Resource interface {
	Kind() Kind
	// Key is "<kind>:<key>", unique within a policy.
	Key() string
	Set(attr, value string) error
	// Match reports whether a match attribute has the given value.
	Match(attr, value string) bool
	// Attrs serializes the configured attributes.
	Attrs() map[string]string
	Clone(key string) Resource
	// Stat observes the current state of the resource. It must be called
	// before Remediate.
	Stat(ctx context.Context, env *Env) error
	Remediate(ctx context.Context, env *Env) (Report, error)
}

// New constructs an empty resource of the given kind.
func New(kind Kind, key string) (Resource, error) {
	switch kind {
	case User:
		return newUser(key), nil
	case Group:
		return newGroup(key), nil
	case File:
		return newFile(key), nil
	case Symlink:
		return newSymlink(key), nil
	case Package:
		return newPackage(key), nil
	case Service:
		return newService(key), nil
	case Host:
		return newHost(key), nil
	case Dir:
		return newDir(key), nil
	case Exec:
		return newExec(key), nil
	default:
		return nil, fmt.Errorf("unknown resource kind %d", byte(kind))
	}
}

// Report lists what a remediation changed. An empty Fixed list means the
// resource was already compliant.
type Report struct {
	Kind  Kind
	Key   string
	Fixed []string
}

// Compliant reports whether nothing needed fixing.
func (r Report) Compliant() bool {
	return len(r.Fixed) == 0
}

func (r *Report) fix(what string) {
	r.Fixed = append(r.Fixed, what)
}

func (r Report) String() string {
	if r.Compliant() {
		return fmt.Sprintf("%s:%s ok", r.Kind, r.Key)
	}
	return fmt.Sprintf("%s:%s fixed %s", r.Kind, r.Key, strings.Join(r.Fixed, ","))
}

func attrErr(k Kind, attr, value string, err error) error {
	return &AttrError{Kind: k, Attr: attr, Value: value, Err: err}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "on", "1":
		return true, nil
	case "no", "n", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseMode(s string) (uint32, error) {
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if m > 07777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return uint32(m), nil
}

func formatMode(m uint32) string {
	return fmt.Sprintf("%04o", m)
}

// splitList accepts comma or whitespace separated names.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
