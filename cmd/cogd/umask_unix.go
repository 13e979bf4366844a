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


//go:build !windows

package main

import (
	"golang.org/x/sys/unix"

	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/logging"
)

func applyUmask(cfg config.Local, log logging.Logger) {
	mask, ok := cfg.UmaskValue()
	if !ok {
		log.Warnf("invalid umask value '%s'; falling back to %04o", cfg.Umask, mask)
	}
	log.Debugf("setting umask to %04o", mask)
	unix.Umask(mask)
}
