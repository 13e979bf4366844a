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


package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/algorand/go-clockwork/crypto"
)

// loadAuthKey reads the operator's signing key. A key file that does not
// exist means password authentication.
func loadAuthKey(path string) (*crypto.Certificate, error) {
	if path == "" {
		return nil, nil
	}
	key, err := crypto.ReadCertificate(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if key.Type != crypto.Signing {
		return nil, fmt.Errorf("%s: %s key cannot authenticate; a signing key is required", path, key.Type)
	}
	if !key.HasSecret() {
		return nil, fmt.Errorf("%s: %w", path, crypto.ErrNoSecret)
	}
	return key, nil
}

// promptPassword reads a password without echo when in is a terminal, and
// a single line otherwise.
func promptPassword(in *os.File, prompt io.Writer, text string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, text)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
