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

package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/util/codecs"
)

// DefaultConfigFile is where cogd looks for its configuration.
const DefaultConfigFile = "/etc/clockwork/cogd.conf"

// MaxMasters is the most masters a configuration may name.
const MaxMasters = 8

const (
	// MinimumTimeout is the smallest per-request timeout, in seconds.
	MinimumTimeout = 5
	// MinimumInterval is the smallest run interval, in seconds.
	MinimumInterval = 30
)

// fallbackUmask replaces an unparseable or out-of-range umask.
const fallbackUmask = 0002

// Exit codes for fatal startup problems.
const (
	ExitConfig      = 1
	ExitNoMasters   = 2
	ExitEnvironment = 3
)

// ErrNoMasters is returned by Validate when no master is configured.
var ErrNoMasters = errors.New("no masters defined")

// StartupError is a configuration problem cogd cannot start with. Code is
// the process exit status.
type StartupError struct {
	Code int
	Err  error
}

func (e *StartupError) Error() string {
	return e.Err.Error()
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit status: the code of a StartupError,
// or ExitConfig.
func ExitCode(err error) int {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Code
	}
	return ExitConfig
}

// GetDefaultLocal returns a copy of the default configuration.
func GetDefaultLocal() Local {
	c := defaultLocal
	c.Masters = nil
	c.Nameserver = nil
	return c
}

// LoadLocal reads the configuration file over the defaults.
func LoadLocal(path string) (Local, error) {
	c := GetDefaultLocal()
	if err := codecs.LoadObjectFromFile(path, &c); err != nil {
		return c, &StartupError{Code: ExitConfig, Err: fmt.Errorf("unable to parse %s: %w", path, err)}
	}
	return c, nil
}

// SaveToFile writes the configuration as formatted JSON.
func (c Local) SaveToFile(path string) error {
	return codecs.SaveObjectToFile(path, c, true)
}

// ApplyBounds raises a timeout or interval below its minimum to the
// minimum, logging a warning for each.
func (c *Local) ApplyBounds(log logging.Logger) {
	if c.Interval < MinimumInterval {
		log.Warnf("invalid interval value %d detected; falling back to sane default (%d)", c.Interval, MinimumInterval)
		c.Interval = MinimumInterval
	}
	if c.Timeout < MinimumTimeout {
		log.Warnf("invalid timeout value %d detected; falling back to sane default (%d)", c.Timeout, MinimumTimeout)
		c.Timeout = MinimumTimeout
	}
}

// TimeoutDuration is Timeout as a duration.
func (c Local) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IntervalDuration is Interval as a duration.
func (c Local) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Validate checks what cogd cannot run without. The returned error is a
// *StartupError.
func (c Local) Validate() error {
	if len(c.Masters) == 0 {
		return &StartupError{Code: ExitNoMasters, Err: ErrNoMasters}
	}
	if len(c.Masters) > MaxMasters {
		return &StartupError{Code: ExitConfig, Err: fmt.Errorf("%d masters defined; at most %d are supported", len(c.Masters), MaxMasters)}
	}
	for i, m := range c.Masters {
		if m.Endpoint == "" {
			return &StartupError{Code: ExitConfig, Err: fmt.Errorf("master.%d has no endpoint", i+1)}
		}
		if m.Cert == "" {
			return &StartupError{Code: ExitConfig, Err: fmt.Errorf("master.%d (%s) has no matching certificate (cert.%d)", i+1, m.Endpoint, i+1)}
		}
	}
	if _, err := c.ACLDisposition(); err != nil {
		return &StartupError{Code: ExitConfig, Err: err}
	}
	return nil
}

// ACLDisposition is the mesh ACL default. Only allow and deny are valid.
func (c Local) ACLDisposition() (acl.Disposition, error) {
	d, err := acl.ParseDisposition(c.ACLDefault)
	if err != nil || d == acl.Default {
		return acl.Deny, fmt.Errorf("acl.default %q must be allow or deny", c.ACLDefault)
	}
	return d, nil
}

// UmaskValue parses Umask as octal. Garbage or a value above 0777 yields
// 0002 and ok == false.
func (c Local) UmaskValue() (mask int, ok bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(c.Umask), 8, 32)
	if err != nil || v > 0777 {
		return fallbackUmask, false
	}
	return int(v), true
}

// MeshEnabled reports whether broadcast, control and cert are all set.
func (c Local) MeshEnabled() bool {
	return c.Mesh.Broadcast != "" && c.Mesh.Control != "" && c.Mesh.Cert != ""
}

// Dump writes the effective configuration, one key per line.
func (c Local) Dump(w io.Writer) error {
	var b strings.Builder
	line := func(key string, value interface{}) {
		fmt.Fprintf(&b, "%-15s %v\n", key, value)
	}
	for i, m := range c.Masters {
		line(fmt.Sprintf("master.%d", i+1), m.Endpoint)
		if m.Cert != "" {
			line(fmt.Sprintf("cert.%d", i+1), m.Cert)
		}
	}
	line("timeout", c.Timeout)
	line("gatherers", c.Gatherers)
	line("copydown", c.Copydown)
	line("interval", c.Interval)
	line("acl", c.ACL)
	line("acl.default", c.ACLDefault)
	line("syslog.ident", c.Syslog.Ident)
	line("syslog.facility", c.Syslog.Facility)
	line("syslog.level", c.Syslog.Level)
	line("security.cert", c.SecurityCert)
	line("pidfile", c.PidFile)
	line("lockdir", c.LockDir)
	line("statedir", c.StateDir)
	line("difftool", c.DiffTool)
	line("umask", c.Umask)
	if c.MeshEnabled() {
		line("mesh.broadcast", c.Mesh.Broadcast)
		line("mesh.control", c.Mesh.Control)
		line("mesh.cert", c.Mesh.Cert)
	}
	if c.LogFile != "" {
		line("logfile", c.LogFile)
	}
	if len(c.Nameserver) > 0 {
		line("nameserver", strings.Join(c.Nameserver, " "))
	}
	if c.MetricsTextfile != "" {
		line("metrics.textfile", c.MetricsTextfile)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// LogOptions maps the logging keys onto logging.Options.
func (c Local) LogOptions(foreground bool) logging.Options {
	level, err := logging.ParseLevel(c.Syslog.Level)
	if err != nil {
		level = logging.Error
	}
	return logging.Options{
		Level:          level,
		File:           c.LogFile,
		FileSizeLimit:  c.LogFileSizeLimit,
		Foreground:     foreground,
		SyslogIdent:    c.Syslog.Ident,
		SyslogFacility: c.Syslog.Facility,
		SyslogLevel:    level,
	}
}
