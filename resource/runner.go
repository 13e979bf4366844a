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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Command is one shell command line, optionally run under another identity.
type Command struct {
	Line  string
	Stdin []byte
	SetID bool // run as UID/GID instead of the current identity
	UID   int
	GID   int
}

// Result is the outcome of a command that started.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// Runner runs shell commands for package, service and exec resources.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ShellRunner runs commands through Shell -c, /bin/sh by default.
type ShellRunner struct {
	Shell string
}

// Run executes the command and captures its output. A non-zero exit is
// reported in Result.Code; err is set only when the command did not run.
func (r ShellRunner) Run(ctx context.Context, c Command) (Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	var stdout, stderr bytes.Buffer
	subcmd := exec.CommandContext(ctx, shell, "-c", c.Line)
	subcmd.Stdout = &stdout
	subcmd.Stderr = &stderr
	if c.Stdin != nil {
		subcmd.Stdin = bytes.NewReader(c.Stdin)
	}
	if c.SetID {
		if err := setCredential(subcmd, c.UID, c.GID); err != nil {
			return Result{}, err
		}
	}

	err := subcmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
		if res.Code < 0 {
			return res, fmt.Errorf("%s: %w", c.Line, err)
		}
	default:
		return res, fmt.Errorf("%s: %w", c.Line, err)
	}
	return res, nil
}
