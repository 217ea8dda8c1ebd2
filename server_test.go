/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestServerRunIDStableAcrossCalls(t *testing.T) {
	s := NewServer(NewConfig())
	if s.RunID() == "" {
		t.Fatal("RunID should be non-empty once constructed")
	}
	if s.RunID() != s.RunID() {
		t.Error("RunID should be stable across calls")
	}
}

func TestServerStartServesAndShutsDown(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:0"
	hooks := &HookTable{
		Request: func(ctx *RequestContext) int {
			ctx.OutContent = []byte("hello")
			ctx.OutContentType = "text/plain"
			return 200
		},
	}
	s := NewServer(cfg, WithHooks(hooks))

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.WaitStarted(5); err != nil {
		t.Fatalf("WaitStarted: %v", err)
	}
	if err := s.Start(); err != ErrAlreadyRunning {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	addr := s.acceptor.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("GET / HTTP/1.0\r\nHost: example.com\r\nX-Test: 1\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	status, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if !strings.Contains(status, "200") {
		t.Errorf("status line = %q, want 200", status)
	}
	conn.Close()

	stats := s.Stats()
	if stats.Results[ResultBodyReceived] == 0 {
		t.Errorf("expected at least one recorded request, got %+v", stats)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := s.Shutdown(ctx)
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !report.Drained {
		t.Errorf("expected a clean drain, got %+v", report)
	}
}

func TestServerShutdownBeforeStartReturnsErrServerClosed(t *testing.T) {
	s := NewServer(NewConfig())
	_, err := s.Shutdown(context.Background())
	if err != ErrServerClosed {
		t.Errorf("Shutdown before Start = %v, want ErrServerClosed", err)
	}
}

func TestServerWaitStartedBeforeStartReturnsErrServerClosed(t *testing.T) {
	s := NewServer(NewConfig())
	if err := s.WaitStarted(1); err != ErrServerClosed {
		t.Errorf("WaitStarted before Start = %v, want ErrServerClosed", err)
	}
}
