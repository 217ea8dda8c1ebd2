/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestAcceptor(t *testing.T, cfg *Config, hooks *HookTable, onConnect ConnectHook, onDisconnect DisconnectHook) *Acceptor {
	t.Helper()
	writer := NewResponseWriter(cfg, nil, nil)
	pipeline := NewHandlerPipeline(hooks, writer, nil)
	stats := newStatsState(nil, "test")
	a := NewAcceptor(cfg, hooks, pipeline, stats, newIDAllocator(connIDWrapFloor), newIDAllocator(requestIDWrapFloor), nil, onConnect, onDisconnect)
	return a
}

func TestAcceptorBindsAndServesTCP(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:0"
	hooks := &HookTable{
		Request: func(ctx *RequestContext) int {
			ctx.OutContent = []byte("pong")
			return 200
		},
	}
	a := newTestAcceptor(t, cfg, hooks, nil, nil)
	a.Start()
	if err := a.WaitStarted(5); err != nil {
		t.Fatalf("WaitStarted: %v", err)
	}

	conn, err := net.Dial("tcp", a.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	request := "GET /ping HTTP/1.0\r\nHost: example.com\r\nX-Test: 1\r\n\r\n"
	if _, err := conn.Write([]byte(request)); err != nil {
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

	report := a.Shutdown()
	if !report.Drained {
		t.Errorf("expected a clean drain, got %+v", report)
	}
}

func TestAcceptorFiresConnectAndDisconnectHooks(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "127.0.0.1:0"
	hooks := &HookTable{
		Request: func(ctx *RequestContext) int { return 200 },
	}

	var mu sync.Mutex
	connected := 0
	disconnected := 0
	onConnect := func(remoteIP string, connID int64) {
		mu.Lock()
		connected++
		mu.Unlock()
	}
	onDisconnect := func(connID int64) {
		mu.Lock()
		disconnected++
		mu.Unlock()
	}

	a := newTestAcceptor(t, cfg, hooks, onConnect, onDisconnect)
	a.Start()
	if err := a.WaitStarted(5); err != nil {
		t.Fatalf("WaitStarted: %v", err)
	}

	conn, err := net.Dial("tcp", a.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	conn.Write([]byte("GET / HTTP/1.0\r\nHost: example.com\r\nX-Test: 1\r\n\r\n"))
	bufio.NewReader(conn).ReadString('\n')
	conn.Close()

	a.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if connected == 0 {
		t.Error("expected at least one OnConnect call")
	}
	if disconnected == 0 {
		t.Error("expected at least one OnDisconnect call")
	}
}

func TestAcceptorBindFailureSurfacesThroughWaitStarted(t *testing.T) {
	cfg := NewConfig()
	cfg.Addr = "not-a-valid-address"
	a := newTestAcceptor(t, cfg, &HookTable{}, nil, nil)
	a.Start()
	if err := a.WaitStarted(5); err == nil {
		t.Fatal("expected a bind error for an invalid address")
	}
}
