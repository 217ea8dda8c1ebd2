/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"github.com/sirupsen/logrus"
)

// FieldLogger is the logging interface the rest of the package codes
// against, so callers can hand in any logrus.FieldLogger (a *Logger, a
// scoped *Entry, or a test double) without this package caring which.
type FieldLogger = logrus.FieldLogger

// defaultLogger returns a logrus.Logger configured the way the
// teacher's own logf hook is used: informational by default, one line
// per event, safe for concurrent use from every connection worker.
func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// connLogger returns a logger scoped with the connection id, used for
// every log line emitted while serving a single connection.
func connLogger(base logrus.FieldLogger, connID int64) *logrus.Entry {
	return base.WithField("conn_id", connID)
}

// reqLogger further scopes a connection-scoped logger with the request
// id of the request currently being handled.
func reqLogger(base *logrus.Entry, requestID int64) *logrus.Entry {
	return base.WithField("request_id", requestID)
}
