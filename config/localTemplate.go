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

// MasterConfig is one policy master.
type MasterConfig struct {
	Endpoint string `json:"endpoint"`
	// Cert is the path of the master's public certificate.
	Cert string `json:"cert"`
}

// MeshConfig locates the mesh hub. The agent subscribes only when all
// three are set.
type MeshConfig struct {
	Broadcast string `json:"broadcast"`
	Control   string `json:"control"`
	Cert      string `json:"cert"`
}

// SyslogConfig routes the agent log to syslog.
type SyslogConfig struct {
	Ident    string `json:"ident"`
	Facility string `json:"facility"`
	// Level is both the syslog threshold and the agent log level.
	Level string `json:"level"`
}

// Local holds the cogd configuration. It is read from a JSON document;
// keys the document omits keep their defaults.
type Local struct {
	// Masters are tried in ring order, at most MaxMasters of them.
	Masters []MasterConfig `json:"masters"`

	// Timeout is the per-request timeout, in seconds.
	Timeout int `json:"timeout"`
	// Interval is the time between configuration runs, in seconds.
	Interval int `json:"interval"`

	Gatherers string `json:"gatherers"`
	Copydown  string `json:"copydown"`
	DiffTool  string `json:"difftool"`

	ACL        string `json:"acl"`
	ACLDefault string `json:"acl.default"`

	// SecurityCert is the agent's own certificate, with its secret key.
	SecurityCert string `json:"security.cert"`

	Mesh MeshConfig `json:"mesh"`

	PidFile  string `json:"pidfile"`
	LockDir  string `json:"lockdir"`
	StateDir string `json:"statedir"`
	// Umask is octal.
	Umask string `json:"umask"`

	Syslog SyslogConfig `json:"syslog"`
	// LogFile, when set, receives the log in addition to syslog.
	LogFile string `json:"logfile"`
	// LogFileSizeLimit rotates LogFile, in bytes. 0 never rotates.
	LogFileSizeLimit uint64 `json:"logfile.size"`

	// Nameserver overrides the system resolver for master lookups.
	Nameserver []string `json:"nameserver"`

	// MetricsTextfile, when set, receives run metrics in the node_exporter
	// textfile format after every run.
	MetricsTextfile string `json:"metrics.textfile"`
}

var defaultLocal = Local{
	Timeout:    5,
	Interval:   300,
	Gatherers:  "/lib/clockwork/gather.d/*",
	Copydown:   "/lib/clockwork/gather.d",
	DiffTool:   "/usr/bin/diff -u",
	ACL:        "/etc/clockwork/local.acl",
	ACLDefault: "deny",

	SecurityCert: "/etc/clockwork/certs/cogd",

	PidFile:  "/var/run/cogd.pid",
	LockDir:  "/var/lock/cogd",
	StateDir: "/lib/clockwork/state",
	Umask:    "0022",

	Syslog: SyslogConfig{
		Ident:    "cogd",
		Facility: "daemon",
		Level:    "error",
	},
	LogFileSizeLimit: 1073741824,
}
