/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"net"
	"sync"
	"time"
)

// queuedConn is one accepted socket waiting for a pool goroutine.
type queuedConn struct {
	conn   net.Conn
	connID int64
	isSSL  bool
}

// WorkerPool implements §4.5: a bounded queue of accepted connections
// served by a fixed number of goroutines. Most requests are small and
// non-keep-alive, so the common case is handled entirely within a pool
// goroutine; a connection that turns out to be keep-alive or to carry
// a large body is promoted to its own dedicated ConnectionWorker
// goroutine instead of tying up a pool slot.
type WorkerPool struct {
	cfg        *Config
	hooks      *HookTable
	pipeline   *HandlerPipeline
	stats      *statsState
	requestIDs *idAllocator
	logger     FieldLogger
	onClose    func(*ConnectionWorker)

	queue chan *queuedConn

	poolWG sync.WaitGroup // the N fixed pool goroutines
	wg     sync.WaitGroup // promoted dedicated-worker goroutines
}

// NewWorkerPool builds and starts cfg.PoolWorkers goroutines draining
// a queue of cfg.QueueLength connections.
func NewWorkerPool(cfg *Config, hooks *HookTable, pipeline *HandlerPipeline, stats *statsState, requestIDs *idAllocator, logger FieldLogger, onClose func(*ConnectionWorker)) *WorkerPool {
	p := &WorkerPool{
		cfg:        cfg,
		hooks:      hooks,
		pipeline:   pipeline,
		stats:      stats,
		requestIDs: requestIDs,
		logger:     logger,
		onClose:    onClose,
		queue:      make(chan *queuedConn, cfg.QueueLength),
	}
	workers := cfg.PoolWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.poolWG.Add(1)
		go p.drain()
	}
	return p
}

func (p *WorkerPool) drain() {
	defer p.poolWG.Done()
	for item := range p.queue {
		p.handle(item)
	}
}

// Push queues an accepted connection. If the queue is already full and
// blockOnContention is false, Push returns false immediately without
// touching conn. If blockOnContention is true (the Acceptor's dispatch
// policy whenever a pool is configured, §4.6), Push instead waits up to
// cfg.ContentionAbortDelay for room before giving up and closing conn
// itself, enforcing the pool's bounded-concurrency guarantee (§8
// scenario S6) instead of letting an unbounded number of dedicated
// goroutines pile up under contention.
func (p *WorkerPool) Push(conn net.Conn, connID int64, isSSL bool, blockOnContention bool) bool {
	item := &queuedConn{conn: conn, connID: connID, isSSL: isSSL}

	select {
	case p.queue <- item:
		return true
	default:
	}

	if !blockOnContention {
		return false
	}

	timer := time.NewTimer(p.cfg.ContentionAbortDelay)
	defer timer.Stop()
	select {
	case p.queue <- item:
		return true
	case <-timer.C:
		conn.Close()
		p.stats.onDisconnect()
		return false
	}
}

// handle implements the first-request processing and promotion
// decision from §4.5: headers are always read first with want_body
// false, and only a keep-alive request or one whose declared body
// exceeds PromoteBodyThreshold earns a dedicated goroutine.
func (p *WorkerPool) handle(item *queuedConn) {
	worker := NewConnectionWorker(item.conn, p.cfg, p.hooks, p.pipeline, p.stats, p.requestIDs, p.logger, item.connID, item.isSSL, p.onClose)

	rc := worker.NewRequestContext()
	parser := worker.Parser()
	outcome := parser.ReadRequest(rc, false, worker.computeDeadline())
	p.stats.record(outcome.Result)

	if !isLiveResult(outcome.Result) {
		worker.cleanup()
		return
	}

	if outcome.KeepAlive || outcome.ContentLength > p.cfg.PromoteBodyThreshold {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			worker.RunContinuation(rc, parser, outcome)
		}()
		return
	}

	if err := parser.FinishBody(rc, rc.Method, outcome); err != nil {
		p.stats.record(ResultError)
		worker.cleanup()
		return
	}
	p.stats.record(ResultBodyReceived)
	// Never loop for a pool-handled connection, regardless of what the
	// client asked for: keep-alive already took the promotion branch
	// above.
	worker.runOne(rc, false)
	worker.cleanup()
}

// Shutdown stops accepting new work and waits for the fixed pool
// goroutines to drain their queue and every promoted dedicated worker
// to finish its current request.
func (p *WorkerPool) Shutdown() {
	close(p.queue)
	p.poolWG.Wait()
	p.wg.Wait()
}
