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
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SystemMeshConfig is the site-wide cw-mesh configuration.
const SystemMeshConfig = "/etc/clockwork/cw.cfg"

// Mesh holds the cw-mesh client settings.
type Mesh struct {
	Master string
	// Cert is the hub's public certificate.
	Cert     string
	Timeout  time.Duration
	Sleep    time.Duration
	Username string
	// AuthKey is a signing certificate; when it exists a sealed nonce is
	// sent instead of a password.
	AuthKey string
	Optouts bool
}

// DefaultMesh returns the built-in client settings for the invoking user.
func DefaultMesh() Mesh {
	m := Mesh{
		Timeout: 40 * time.Second,
		Sleep:   250 * time.Millisecond,
	}
	if u, err := user.Current(); err == nil {
		m.Username = u.Username
		m.AuthKey = filepath.Join(u.HomeDir, ".clockwork", "mesh.key")
	}
	return m
}

// MeshConfigFiles lists the files LoadMesh reads by default, in order.
func MeshConfigFiles() []string {
	files := []string{SystemMeshConfig}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".cwrc"))
	}
	return files
}

// LoadMesh applies each file in turn over the defaults. Missing files are
// skipped.
func LoadMesh(files ...string) (Mesh, error) {
	m := DefaultMesh()
	for _, path := range files {
		err := m.merge(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

// merge reads "key value" lines; # starts a comment.
func (m *Mesh) merge(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if err := m.set(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}
	return scanner.Err()
}

func (m *Mesh) set(key, value string) error {
	switch key {
	case "mesh.master":
		m.Master = value
	case "mesh.cert":
		m.Cert = value
	case "mesh.timeout":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("mesh.timeout: %w", err)
		}
		m.Timeout = time.Duration(secs) * time.Second
	case "mesh.sleep":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("mesh.sleep: %w", err)
		}
		m.Sleep = time.Duration(ms) * time.Millisecond
	case "mesh.username":
		m.Username = value
	case "mesh.authkey":
		m.AuthKey = value
	case "mesh.optouts":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("mesh.optouts: %w", err)
		}
		m.Optouts = b
	default:
		// cw.cfg is shared with other clockwork tools
	}
	return nil
}
