/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"
)

// ConnectionWorker is the per-connection state machine from §4.4: it
// owns a single accepted socket for as long as the client keeps it
// open, reading one request at a time, running the handler pipeline,
// and either looping for the next keep-alive request or tearing the
// connection down.
type ConnectionWorker struct {
	conn net.Conn
	br   *bufio.Reader

	cfg        *Config
	hooks      *HookTable
	pipeline   *HandlerPipeline
	stats      *statsState
	requestIDs *idAllocator
	logger     FieldLogger

	connID   int64
	remoteIP string
	isSSL    bool

	onClose func(*ConnectionWorker)

	mu       sync.Mutex
	detached bool
	closed   bool
}

// NewConnectionWorker wraps an accepted connection. onClose, if
// non-nil, is called exactly once when the worker is done with the
// connection (whether closed or detached); the acceptor uses it to
// drop the worker from its live-connection set during shutdown drain
// (§4.6) and to fire the OnDisconnect hook.
func NewConnectionWorker(conn net.Conn, cfg *Config, hooks *HookTable, pipeline *HandlerPipeline, stats *statsState, requestIDs *idAllocator, logger FieldLogger, connID int64, isSSL bool, onClose func(*ConnectionWorker)) *ConnectionWorker {
	return &ConnectionWorker{
		conn:       conn,
		br:         bufio.NewReader(conn),
		cfg:        cfg,
		hooks:      hooks,
		pipeline:   pipeline,
		stats:      stats,
		requestIDs: requestIDs,
		logger:     logger,
		connID:     connID,
		remoteIP:   remoteAddrHost(conn.RemoteAddr()),
		isSSL:      isSSL,
		onClose:    onClose,
	}
}

// NewRequestContext allocates and prepares a RequestContext scoped to
// this connection and the next request id.
func (w *ConnectionWorker) NewRequestContext() *RequestContext {
	rc := &RequestContext{}
	rc.Prepare(w.connID, w.requestIDs.Next(), w)
	return rc
}

// Parser builds a RequestParser reading from this connection.
func (w *ConnectionWorker) Parser() *RequestParser {
	return NewRequestParser(w.conn, w.br, w.cfg, w.hooks.BeforeBody, w.remoteIP, w.isSSL)
}

// Run serves a brand-new connection from its very first request
// through to connection close, used when the acceptor dispatches
// directly to a dedicated worker instead of through the pool (§4.6).
func (w *ConnectionWorker) Run() {
	defer w.cleanup()

	rc := w.NewRequestContext()
	outcome := w.Parser().ReadRequest(rc, true, w.computeDeadline())
	w.stats.record(outcome.Result)
	w.logUnexpectedResult(outcome.Result)
	if !isLiveResult(outcome.Result) {
		return
	}
	if !w.runOne(rc, outcome.KeepAlive) {
		return
	}
	w.serveLoop(outcome.KeepAlive)
}

// RunContinuation finishes a request the WorkerPool already parsed up
// through headers (want_body=false) and decided to promote to a
// dedicated worker, either because it's keep-alive or its declared
// body exceeds PromoteBodyThreshold (§4.5). It reads the deferred
// body, runs the pipeline, and then falls into the normal keep-alive
// loop for any further requests on the connection.
func (w *ConnectionWorker) RunContinuation(rc *RequestContext, parser *RequestParser, outcome ParseOutcome) {
	defer w.cleanup()

	if err := parser.FinishBody(rc, rc.Method, outcome); err != nil {
		w.stats.record(ResultError)
		return
	}
	w.stats.record(ResultBodyReceived)
	if !w.runOne(rc, outcome.KeepAlive) {
		return
	}
	w.serveLoop(outcome.KeepAlive)
}

// serveLoop handles every request after the first: wait for more data
// within the keep-alive budget, parse, run, repeat.
func (w *ConnectionWorker) serveLoop(keepAlive bool) {
	for keepAlive {
		if !w.waitForNextRequest() {
			return
		}
		rc := w.NewRequestContext()
		outcome := w.Parser().ReadRequest(rc, true, w.computeDeadline())
		w.stats.record(outcome.Result)
		w.logUnexpectedResult(outcome.Result)
		if !isLiveResult(outcome.Result) {
			return
		}
		keepAlive = w.runOne(rc, outcome.KeepAlive)
	}
}

// logUnexpectedResult logs the exception, oversized_payload and
// rejected ReadResult classes. error (which covers both a dropped
// socket and a malformed request line or header) and timeout are not
// logged.
func (w *ConnectionWorker) logUnexpectedResult(r ReadResult) {
	if w.logger == nil {
		return
	}
	switch r {
	case ResultException, ResultOversizedPayload, ResultRejected:
		connLogger(w.logger, w.connID).Warnf("request rejected: %s", r)
	}
}

// runOne runs the handler pipeline for an already-parsed request and
// reports whether the caller should keep serving this connection.
func (w *ConnectionWorker) runOne(rc *RequestContext, keepAlive bool) bool {
	w.pipeline.Run(w.conn, rc, keepAlive)
	if w.isDetached() {
		w.stats.record(ResultOwned)
		return false
	}
	return keepAlive
}

func isLiveResult(r ReadResult) bool {
	return r == ResultHeaderReceived || r == ResultBodyReceived
}

// computeDeadline turns the configured header-retrieve budget into the
// absolute deadline (nanoseconds since epoch) ReadRequest checks in
// its step 5; zero means no deadline.
func (w *ConnectionWorker) computeDeadline() int64 {
	if w.cfg.HeaderRetrieveAbortDelay <= 0 {
		return 0
	}
	return time.Now().Add(w.cfg.HeaderRetrieveAbortDelay).UnixNano()
}

// waitForNextRequest blocks until more data is available on the
// connection, the keep-alive budget expires, or the peer goes away.
// It polls with a short Peek-backed deadline (up to 50ms per peek)
// rather than a single long read so a concurrent Detach (or server
// shutdown) can still observe the connection. As a spin guard against
// spurious wakeups, a peek that comes back empty in under 40ms is
// followed by a 1ms sleep before the next one.
func (w *ConnectionWorker) waitForNextRequest() bool {
	budget := w.cfg.KeepAliveTimeout
	if budget <= 0 {
		return false
	}
	deadline := time.Now().Add(budget)

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return false
		}
		peekWindow := 50 * time.Millisecond
		if remaining := deadline.Sub(now); remaining < peekWindow {
			peekWindow = remaining
		}

		w.conn.SetReadDeadline(now.Add(peekWindow))
		_, err := w.br.Peek(1)
		w.conn.SetReadDeadline(time.Time{})

		if err == nil {
			return true
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if time.Since(now) < 40*time.Millisecond {
				time.Sleep(time.Millisecond)
			}
			continue
		}
		return false
	}
}

func (w *ConnectionWorker) isDetached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detached
}

// detach implements RequestContext.Detach: it hands the raw
// connection to the caller and puts the worker into its terminal
// "owned" state, after which cleanup will not touch the socket again.
func (w *ConnectionWorker) detach() (net.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detached || w.closed {
		return nil, ErrHijacked
	}
	w.detached = true
	return w.conn, nil
}

func (w *ConnectionWorker) cleanup() {
	w.mu.Lock()
	alreadyClosed := w.closed
	owned := w.detached
	w.closed = true
	w.mu.Unlock()

	if alreadyClosed {
		return
	}
	if !owned {
		w.conn.Close()
	}
	if w.logger != nil {
		connLogger(w.logger, w.connID).Debug("connection closed")
	}
	w.stats.onDisconnect()
	if w.onClose != nil {
		w.onClose(w)
	}
}

func remoteAddrHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
