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


// Package logging is the agent's structured logger. Every component takes
// a Logger; only cmd/ reaches for Base. Output goes to stderr until
// Configure points it at a rotated file and syslog.
//
//	log := logging.Base().With("master", endpoint)
//	log.Warnf("no response after %s", timeout)
package logging

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is a logrus severity. Lower is more severe.
type Level uint32

const (
	Panic Level = iota
	// Fatal entries exit the process after logging.
	Fatal
	Error
	Warn
	Info
	Debug
)

const stackPrefix = "[Stack]"

const timestampFormat = "2006-01-02T15:04:05.000000 -0700"

var (
	baseLogger Logger
	once       sync.Once
)

// Init creates the base logger: stderr, warnings and above.
func Init() {
	once.Do(func() {
		baseLogger = NewLogger()
		baseLogger.SetLevel(Warn)
	})
}

func init() {
	Init()
}

// Fields are structured key/value pairs attached to an entry.
type Fields = logrus.Fields

// Logger is what components log through.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	// Fatalf logs with a stack trace and exits.
	Fatalf(string, ...interface{})

	// With returns a logger that adds key=value to every entry.
	With(key string, value interface{}) Logger
	WithFields(Fields) Logger

	SetLevel(Level)
	GetLevel() Level
	IsLevelEnabled(level Level) bool

	SetOutput(io.Writer)
	SetJSONFormatter()
	AddHook(hook logrus.Hook)

	// caller adds the file, line and function of the logging call site.
	caller() *logrus.Entry
}

type logger struct {
	entry *logrus.Entry
}

// Base returns the process-wide logger.
func Base() Logger {
	return baseLogger
}

// NewLogger returns a logger writing text to stderr at Info.
func NewLogger() Logger {
	l := logrus.New()
	if tf, ok := l.Formatter.(*logrus.TextFormatter); ok {
		tf.TimestampFormat = timestampFormat
	}
	return logger{logrus.NewEntry(l)}
}

func (l logger) With(key string, value interface{}) Logger {
	return logger{l.entry.WithField(key, value)}
}

func (l logger) WithFields(fields Fields) Logger {
	return logger{l.entry.WithFields(fields)}
}

func (l logger) Debug(args ...interface{})                 { l.caller().Debug(args...) }
func (l logger) Debugf(format string, args ...interface{}) { l.caller().Debugf(format, args...) }
func (l logger) Info(args ...interface{})                  { l.caller().Info(args...) }
func (l logger) Infof(format string, args ...interface{})  { l.caller().Infof(format, args...) }
func (l logger) Warn(args ...interface{})                  { l.caller().Warn(args...) }
func (l logger) Warnf(format string, args ...interface{})  { l.caller().Warnf(format, args...) }
func (l logger) Error(args ...interface{})                 { l.caller().Error(args...) }
func (l logger) Errorf(format string, args ...interface{}) { l.caller().Errorf(format, args...) }

func (l logger) Fatalf(format string, args ...interface{}) {
	entry := l.caller()
	entry.Error(stackPrefix, " ", string(debug.Stack()))
	entry.Fatalf(format, args...)
}

func (l logger) SetLevel(lvl Level) {
	l.entry.Logger.SetLevel(logrus.Level(lvl))
}

func (l logger) GetLevel() Level {
	return Level(l.entry.Logger.GetLevel())
}

func (l logger) IsLevelEnabled(level Level) bool {
	return l.entry.Logger.IsLevelEnabled(logrus.Level(level))
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.Formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000Z07:00"}
}

func (l logger) AddHook(hook logrus.Hook) {
	l.entry.Logger.AddHook(hook)
}

// caller must be called directly from a logging method: it skips itself
// and that method.
func (l logger) caller() *logrus.Entry {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return l.entry
	}
	fields := logrus.Fields{
		"file": file[strings.LastIndex(file, "/")+1:],
		"line": line,
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		fields["function"] = fn.Name()
	}
	return l.entry.WithFields(fields)
}

// ParseLevel maps a syslog or logrus level name onto a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "emerg", "emergency", "alert", "panic":
		return Panic, nil
	case "crit", "critical", "fatal":
		return Fatal, nil
	case "err", "error":
		return Error, nil
	case "warn", "warning":
		return Warn, nil
	case "notice", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	}
	return Info, fmt.Errorf("unknown log level '%s'", name)
}

func (lvl Level) String() string {
	return logrus.Level(lvl).String()
}
