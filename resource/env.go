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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/algorand/go-clockwork/authdb"
	"github.com/algorand/go-clockwork/logging"
)

// Remote supplies file content that lives on the policy master.
type Remote interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// PackageManager holds the shell templates used by package resources. %s is
// replaced by the package name (or name=version for Install when a version
// is pinned).
type PackageManager struct {
	Query   string // prints the installed version, exit 0 when installed
	Install string
	Remove  string
}

// DefaultPackageManager drives dpkg/apt.
var DefaultPackageManager = PackageManager{
	Query:   "dpkg-query -W -f='${Version}' %s 2>/dev/null",
	Install: "DEBIAN_FRONTEND=noninteractive apt-get install -y %s",
	Remove:  "DEBIAN_FRONTEND=noninteractive apt-get remove -y %s",
}

// ServiceManager holds the shell templates used by service resources.
type ServiceManager struct {
	Running string // exit 0 when running
	Enabled string // exit 0 when enabled at boot
	Start   string
	Stop    string
	Enable  string
	Disable string
	Action  string // first %s is the action, second the service
}

// DefaultServiceManager drives systemd.
var DefaultServiceManager = ServiceManager{
	Running: "systemctl is-active --quiet %s",
	Enabled: "systemctl is-enabled --quiet %s",
	Start:   "systemctl start %s",
	Stop:    "systemctl stop %s",
	Enable:  "systemctl enable %s",
	Disable: "systemctl disable %s",
	Action:  "systemctl %s %s",
}

// Env is everything a resource needs to observe and converge the system.
type Env struct {
	// Root prefixes every filesystem path; "" or "/" for the live system.
	Root     string
	Auth     *authdb.DB
	Runner   Runner
	Remote   Remote
	DiffTool string
	Packages PackageManager
	Services ServiceManager
	Log      logging.Logger
}

// NewEnv returns an Env for the given root with the default managers and a
// shell runner.
func NewEnv(root string, log logging.Logger) *Env {
	return &Env{
		Root:     root,
		Runner:   ShellRunner{},
		Packages: DefaultPackageManager,
		Services: DefaultServiceManager,
		Log:      log,
	}
}

// Path maps an absolute resource path under Root.
func (e *Env) Path(p string) string {
	if e.Root == "" || e.Root == "/" {
		return filepath.Clean(p)
	}
	return filepath.Join(e.Root, p)
}

// AuthDB returns the account databases, reading <root>/etc on first use.
func (e *Env) AuthDB() (*authdb.DB, error) {
	if e.Auth != nil {
		return e.Auth, nil
	}
	db, err := authdb.Open(e.Path("/etc"))
	if err != nil {
		return nil, err
	}
	e.Auth = db
	return db, nil
}

func (e *Env) logger() logging.Logger {
	if e.Log == nil {
		return logging.Base()
	}
	return e.Log
}

func (e *Env) runner() Runner {
	if e.Runner == nil {
		return ShellRunner{}
	}
	return e.Runner
}

// lookupUID resolves a user name or numeric id.
func (e *Env) lookupUID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	db, err := e.AuthDB()
	if err != nil {
		return -1, err
	}
	u := db.User(name)
	if u == nil {
		return -1, fmt.Errorf("no such user %q", name)
	}
	return u.UID, nil
}

// lookupGID resolves a group name or numeric id.
func (e *Env) lookupGID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	db, err := e.AuthDB()
	if err != nil {
		return -1, err
	}
	g := db.Group(name)
	if g == nil {
		return -1, fmt.Errorf("no such group %q", name)
	}
	return g.GID, nil
}

// diff runs the configured diff tool over two files and logs its output.
func (e *Env) diff(ctx context.Context, oldPath, newPath string) {
	if e.DiffTool == "" {
		return
	}
	if _, err := os.Stat(oldPath); err != nil {
		oldPath = os.DevNull
	}
	res, err := e.runner().Run(ctx, Command{Line: fmt.Sprintf("%s %s %s", e.DiffTool, shellQuote(oldPath), shellQuote(newPath))})
	if err != nil {
		e.logger().Warnf("diff tool failed: %v", err)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
		if line != "" {
			e.logger().Info(line)
		}
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
