/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Server ties together the config, hook table, compression registry,
// and the acceptor/pool/worker machinery into the single entry point
// an embedder constructs (§3, §5).
type Server struct {
	cfg         *Config
	hooks       *HookTable
	compression *CompressionRegistry
	sendFile    SendFileStrategy
	promReg     prometheus.Registerer
	logger      FieldLogger

	onConnect    ConnectHook
	onDisconnect DisconnectHook

	writer   *ResponseWriter
	pipeline *HandlerPipeline
	stats    *statsState

	connIDs    *idAllocator
	requestIDs *idAllocator

	// runID identifies this particular Server instance; a new one is
	// generated on every construction, so log lines from the same
	// running server can be told apart from those of earlier or later
	// runs on the same bound address.
	runID string

	mu       sync.Mutex
	started  bool
	acceptor *Acceptor
}

// ServerOption configures a Server at construction time. Every option
// must be applied before Start; hooks, the compression registry, and
// the send-file strategy are immutable once the server has accepted
// its first connection (§5).
type ServerOption func(*Server)

// WithHooks installs the pipeline's callback table.
func WithHooks(hooks *HookTable) ServerOption {
	return func(s *Server) { s.hooks = hooks }
}

// WithCompressionRegistry overrides the default gzip/deflate/br/bzip2
// registry built by NewDefaultCompressionRegistry.
func WithCompressionRegistry(reg *CompressionRegistry) ServerOption {
	return func(s *Server) { s.compression = reg }
}

// WithSendFileStrategy installs the §4.8 static-file hook.
func WithSendFileStrategy(strategy SendFileStrategy) ServerOption {
	return func(s *Server) { s.sendFile = strategy }
}

// WithLogger overrides the default logrus.Logger.
func WithLogger(logger FieldLogger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithPrometheusRegisterer mirrors the server's atomic counters into a
// Prometheus registry; a nil (the default) keeps Stats()-only
// observability with no Prometheus dependency active at runtime.
func WithPrometheusRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) { s.promReg = reg }
}

// WithOnConnect and WithOnDisconnect install the supplemented
// connection-lifecycle observability hooks (§9).
func WithOnConnect(hook ConnectHook) ServerOption {
	return func(s *Server) { s.onConnect = hook }
}

func WithOnDisconnect(hook DisconnectHook) ServerOption {
	return func(s *Server) { s.onDisconnect = hook }
}

// NewServer builds a Server from cfg and any options. It does not bind
// a socket or start accepting connections; call Start for that.
func NewServer(cfg *Config, opts ...ServerOption) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     defaultLogger(),
		connIDs:    newIDAllocator(connIDWrapFloor),
		requestIDs: newIDAllocator(requestIDWrapFloor),
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger != nil {
		s.logger = s.logger.WithField("run_id", s.runID)
	}
	if s.hooks == nil {
		s.hooks = &HookTable{}
	}
	if s.compression == nil {
		s.compression = NewDefaultCompressionRegistry()
	}

	s.stats = newStatsState(s.promReg, s.cfg.ServerName)
	s.writer = NewResponseWriter(s.cfg, s.compression, s.sendFile)
	s.pipeline = NewHandlerPipeline(s.hooks, s.writer, s.logger)
	return s
}

// RunID identifies this Server instance, stable for its process
// lifetime; it's included in structured log lines so multiple restarts
// of the same embedder are distinguishable in aggregated logs.
func (s *Server) RunID() string { return s.runID }

// Start binds the listen address in the background and begins
// accepting connections (§4.6). It returns ErrAlreadyRunning if called
// twice on the same Server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.acceptor = NewAcceptor(s.cfg, s.hooks, s.pipeline, s.stats, s.connIDs, s.requestIDs,
		s.logger, s.onConnect, s.onDisconnect)
	acceptor := s.acceptor
	s.mu.Unlock()

	acceptor.Start()
	return nil
}

// WaitStarted blocks until the listener is bound or binding fails, up
// to the given number of seconds.
func (s *Server) WaitStarted(seconds int) error {
	s.mu.Lock()
	acceptor := s.acceptor
	s.mu.Unlock()
	if acceptor == nil {
		return ErrServerClosed
	}
	return acceptor.WaitStarted(seconds)
}

// Stats returns a point-in-time snapshot of the server's operational
// counters (§6, §9 supplemented feature).
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// Shutdown stops accepting new connections and waits for in-flight
// ones to finish, bounded by ctx. It reports how the drain went even
// if ctx expires first.
func (s *Server) Shutdown(ctx context.Context) (DrainReport, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return DrainReport{}, ErrServerClosed
	}
	acceptor := s.acceptor
	s.mu.Unlock()

	done := make(chan DrainReport, 1)
	go func() { done <- acceptor.Shutdown() }()

	select {
	case report := <-done:
		return report, nil
	case <-ctx.Done():
		return DrainReport{}, ctx.Err()
	}
}
