/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the structured logging surface every component takes at
// construction time instead of reaching for a global. Tracing/DLT sinks are
// out of scope; this package only standardizes the field vocabulary
// (service/instance/client/session/method) the error taxonomy requires in
// log lines, backed by logrus.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is the minimal structured-logging contract used across the core.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Fields is re-exported so callers don't need to import logrus directly.
type Fields = logrus.Fields

type entry struct {
	e *logrus.Entry
}

// New builds a Logger from a *logrus.Logger, using a fresh logrus logger
// when l is nil. Component constructors take the resulting Logger through
// their Config and fall back to Discard when none is given.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return &entry{e: logrus.NewEntry(l)}
}

// Discard returns a Logger that writes nowhere, for tests that don't care
// about log output.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return New(l)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *entry) WithField(key string, value interface{}) Logger {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) WithFields(fields Fields) Logger {
	return &entry{e: l.e.WithFields(fields)}
}

func (l *entry) Debug(args ...interface{}) { l.e.Debug(args...) }
func (l *entry) Info(args ...interface{})  { l.e.Info(args...) }
func (l *entry) Warn(args ...interface{})  { l.e.Warn(args...) }
func (l *entry) Error(args ...interface{}) { l.e.Error(args...) }

func (l *entry) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l *entry) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l *entry) Warnf(format string, args ...interface{})  { l.e.Warnf(format, args...) }
func (l *entry) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }

// WithSession attaches the service/instance/client/session field vocabulary
// used by warning logs and send-timeout teardown logs throughout this repo.
func WithSession(l Logger, service, instance, client, session uint16) Logger {
	return l.WithFields(Fields{
		"service":  service,
		"instance": instance,
		"client":   client,
		"session":  session,
	})
}

// WithAccess is the field helper for access-control denial logs.
func WithAccess(l Logger, uid, gid uint32, service, instance, method uint16) Logger {
	return l.WithFields(Fields{
		"uid":      uid,
		"gid":      gid,
		"service":  service,
		"instance": instance,
		"method":   method,
	})
}
