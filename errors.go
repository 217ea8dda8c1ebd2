/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import "errors"

// Sentinel errors surfaced to the embedder. Errors internal to a single
// connection (transport failures, malformed request lines, timeouts)
// never propagate this far; they only update Stats() counters and
// terminate the worker, per §7.
var (
	// ErrServerClosed is returned by Server.Shutdown and
	// Server.WaitStarted when the server has not been started.
	ErrServerClosed = errors.New("httpd: server closed")

	// ErrAlreadyRunning is returned by Server.Start when it is called a
	// second time on the same Server.
	ErrAlreadyRunning = errors.New("httpd: server already started")

	// ErrBadListenAddr is returned when neither a TCP address, a
	// "unix:" path, nor socket activation is available.
	ErrBadListenAddr = errors.New("httpd: no listen address and no inherited socket")

	// ErrCallbackUnsupported is the typed failure named in §7 for a
	// Callback-style request on a Server configuration that doesn't
	// support it. No method of this package returns it.
	ErrCallbackUnsupported = errors.New("httpd: callback not supported by this server configuration")

	// ErrHijacked is returned when an operation is attempted on a
	// connection already handed off via Detach (the "owned" state).
	ErrHijacked = errors.New("httpd: connection is owned by an external handler")
)
