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

package logging

import (
	"fmt"
	"log/syslog"
	"strings"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

var facilities = map[string]syslog.Priority{
	"kern":     syslog.LOG_KERN,
	"user":     syslog.LOG_USER,
	"mail":     syslog.LOG_MAIL,
	"daemon":   syslog.LOG_DAEMON,
	"auth":     syslog.LOG_AUTH,
	"syslog":   syslog.LOG_SYSLOG,
	"lpr":      syslog.LOG_LPR,
	"news":     syslog.LOG_NEWS,
	"uucp":     syslog.LOG_UUCP,
	"cron":     syslog.LOG_CRON,
	"authpriv": syslog.LOG_AUTHPRIV,
	"ftp":      syslog.LOG_FTP,
	"local0":   syslog.LOG_LOCAL0,
	"local1":   syslog.LOG_LOCAL1,
	"local2":   syslog.LOG_LOCAL2,
	"local3":   syslog.LOG_LOCAL3,
	"local4":   syslog.LOG_LOCAL4,
	"local5":   syslog.LOG_LOCAL5,
	"local6":   syslog.LOG_LOCAL6,
	"local7":   syslog.LOG_LOCAL7,
}

// ParseFacility maps a syslog facility name (daemon, local0, ...) onto its priority bits.
func ParseFacility(name string) (syslog.Priority, error) {
	f, ok := facilities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown syslog facility '%s'", name)
	}
	return f, nil
}

// levelHook forwards only entries at or above a threshold to the wrapped hook.
type levelHook struct {
	logrus.Hook
	max Level
}

func (h levelHook) Levels() []logrus.Level {
	var out []logrus.Level
	for _, lvl := range h.Hook.Levels() {
		if Level(lvl) <= h.max {
			out = append(out, lvl)
		}
	}
	return out
}

// NewSyslogHook connects to the local syslog daemon and returns a hook that
// forwards entries at level or more severe, tagged with ident.
func NewSyslogHook(ident, facility string, level Level) (logrus.Hook, error) {
	f, err := ParseFacility(facility)
	if err != nil {
		return nil, err
	}
	hook, err := lsyslog.NewSyslogHook("", "", f|syslog.LOG_INFO, ident)
	if err != nil {
		return nil, fmt.Errorf("connecting to syslog: %w", err)
	}
	return levelHook{Hook: hook, max: level}, nil
}
