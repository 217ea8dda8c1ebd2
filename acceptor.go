/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type acceptorState int32

const (
	stateBinding acceptorState = iota
	stateRunning
	stateFinished
)

// ConnectHook and DisconnectHook are the supplemented OnConnect /
// OnDisconnect observability hooks: ConnectHook fires once per accepted
// connection, and DisconnectHook once when a connection worker is done
// with it, independent of whether the connection was ever handed to
// the handler pipeline at all. A connection the pool drops under
// contention fires no DisconnectHook.
type ConnectHook func(remoteIP string, connID int64)
type DisconnectHook func(connID int64)

// Acceptor implements §4.6: it owns the listening socket, accepts
// connections in a background goroutine, and for each one dispatches to
// the WorkerPool when one is configured, or spawns a dedicated
// ConnectionWorker goroutine directly when it isn't.
type Acceptor struct {
	cfg        *Config
	hooks      *HookTable
	pipeline   *HandlerPipeline
	stats      *statsState
	connIDs    *idAllocator
	requestIDs *idAllocator
	logger     FieldLogger

	onConnectHook    ConnectHook
	onDisconnectHook DisconnectHook

	pool *WorkerPool

	listener net.Listener
	state    int32 // acceptorState, accessed atomically

	startedCh chan struct{}
	startErr  error

	shuttingDown int32 // atomic bool

	mu   sync.Mutex
	live map[*ConnectionWorker]struct{}
}

// NewAcceptor builds an Acceptor. Binding does not happen here; call
// Start to kick it off in the background.
func NewAcceptor(cfg *Config, hooks *HookTable, pipeline *HandlerPipeline, stats *statsState, connIDs, requestIDs *idAllocator, logger FieldLogger, onConnect ConnectHook, onDisconnect DisconnectHook) *Acceptor {
	a := &Acceptor{
		cfg:              cfg,
		hooks:            hooks,
		pipeline:         pipeline,
		stats:            stats,
		connIDs:          connIDs,
		requestIDs:       requestIDs,
		logger:           logger,
		onConnectHook:    onConnect,
		onDisconnectHook: onDisconnect,
		startedCh:        make(chan struct{}),
		live:             make(map[*ConnectionWorker]struct{}),
	}
	if cfg.PoolWorkers > 0 {
		a.pool = NewWorkerPool(cfg, hooks, pipeline, stats, requestIDs, logger, a.untrackWorker)
	}
	return a
}

// Start binds the listen address and begins accepting in the
// background; it returns immediately. Use WaitStarted to block until
// binding has finished (successfully or not).
func (a *Acceptor) Start() {
	go a.bindAndServe()
}

// WaitStarted blocks until the listener is bound (or binding fails),
// up to the given number of seconds, and returns the bind error, if
// any.
func (a *Acceptor) WaitStarted(seconds int) error {
	select {
	case <-a.startedCh:
		return a.startErr
	case <-time.After(time.Duration(seconds) * time.Second):
		return fmt.Errorf("httpd: acceptor did not start within %ds", seconds)
	}
}

func (a *Acceptor) bindAndServe() {
	listener, err := a.bind()
	if err != nil {
		a.startErr = err
		atomic.StoreInt32(&a.state, int32(stateFinished))
		close(a.startedCh)
		return
	}
	a.listener = listener
	atomic.StoreInt32(&a.state, int32(stateRunning))
	close(a.startedCh)
	a.acceptLoop()
}

// bind resolves cfg.Addr into a listener: a "unix:" prefix selects a
// Unix-domain socket, an empty address means "inherit the listening
// socket the process was handed" (systemd-style socket activation,
// fd 3), and anything else is a TCP address.
func (a *Acceptor) bind() (net.Listener, error) {
	switch {
	case a.cfg.Addr == "":
		return a.inheritListener()
	case strings.HasPrefix(a.cfg.Addr, "unix:"):
		path := strings.TrimPrefix(a.cfg.Addr, "unix:")
		return net.Listen("unix", path)
	default:
		return net.Listen("tcp", a.cfg.Addr)
	}
}

// inheritListener wraps fd 3, the well-known first passed socket in
// the systemd socket-activation convention (LISTEN_FDS starting at
// SD_LISTEN_FDS_START=3), as the process's listening socket.
func (a *Acceptor) inheritListener() (net.Listener, error) {
	f := os.NewFile(uintptr(3), "httpd-inherited-listener")
	if f == nil {
		return nil, ErrBadListenAddr
	}
	l, err := net.FileListener(f)
	if err != nil {
		return nil, ErrBadListenAddr
	}
	return l, nil
}

func (a *Acceptor) acceptLoop() {
	var tempDelay time.Duration
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&a.shuttingDown) == 1 {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				if a.logger != nil {
					a.logger.Warnf("accept error: %v; retrying in %v", err, tempDelay)
				}
				time.Sleep(tempDelay)
				continue
			}
			if a.logger != nil {
				a.logger.Errorf("accept loop exiting: %v", err)
			}
			atomic.StoreInt32(&a.state, int32(stateFinished))
			return
		}
		tempDelay = 0
		go a.dispatch(conn)
	}
}

// dispatch implements §4.6's dispatch decision: if a pool is
// configured, hand the connection to it, blocking up to
// ContentionAbortDelay before dropping it under contention (§4.5, §8
// scenario S6); otherwise spawn a dedicated ConnectionWorker directly.
func (a *Acceptor) dispatch(conn net.Conn) {
	connID := a.connIDs.Next()
	isSSL := isTLSConn(conn)

	a.stats.onConnect()
	if a.onConnectHook != nil {
		a.onConnectHook(remoteAddrHost(conn.RemoteAddr()), connID)
	}

	if a.pool != nil {
		a.pool.Push(conn, connID, isSSL, true)
		return
	}

	worker := NewConnectionWorker(conn, a.cfg, a.hooks, a.pipeline, a.stats, a.requestIDs, a.logger, connID, isSSL, a.untrackWorker)
	a.trackWorker(worker)
	go worker.Run()
}

func isTLSConn(conn net.Conn) bool {
	_, ok := conn.(*tls.Conn)
	return ok
}

func (a *Acceptor) trackWorker(w *ConnectionWorker) {
	a.mu.Lock()
	a.live[w] = struct{}{}
	a.mu.Unlock()
}

func (a *Acceptor) untrackWorker(w *ConnectionWorker) {
	a.mu.Lock()
	delete(a.live, w)
	a.mu.Unlock()
	if a.onDisconnectHook != nil {
		a.onDisconnectHook(w.connID)
	}
}

func (a *Acceptor) liveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Shutdown implements the graceful-drain half of §4.6: it stops
// accepting new connections, unblocks the accept loop, stops the
// worker pool from taking new work, and waits for every live dedicated
// worker to finish its current request, polling every 100ms up to a
// 20s ceiling.
func (a *Acceptor) Shutdown() DrainReport {
	atomic.StoreInt32(&a.shuttingDown, 1)
	if a.listener != nil {
		a.listener.Close()
	}

	if a.pool != nil {
		a.pool.Shutdown()
	}

	const ceiling = 20 * time.Second
	const poll = 100 * time.Millisecond
	deadline := time.Now().Add(ceiling)
	for a.liveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(poll)
	}

	remaining := a.liveCount()
	atomic.StoreInt32(&a.state, int32(stateFinished))
	return DrainReport{Drained: remaining == 0, RemainingConnections: remaining}
}

// DrainReport summarizes how Shutdown's drain went (§9 supplemented
// feature): whether every live connection finished on its own before
// the ceiling, and how many were still outstanding if not.
type DrainReport struct {
	Drained              bool
	RemainingConnections int
}
