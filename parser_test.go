/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"io"
	"net"
	"testing"

	"github.com/mobius1qwe/httpcore/hdr"
)

// newTestParser returns a RequestParser reading from one end of an
// in-memory pipe, and the other end for a test to write a raw request
// into.
func newTestParser(cfg *Config, beforeBody BeforeBodyHook) (*RequestParser, net.Conn) {
	server, client := net.Pipe()
	p := NewRequestParser(server, bufio.NewReader(server), cfg, beforeBody, "203.0.113.9", false)
	return p, client
}

func writeAndClose(t *testing.T, conn net.Conn, request string) {
	t.Helper()
	go func() {
		io.WriteString(conn, request)
		conn.Close()
	}()
}

func TestReadRequestHeaderOnly(t *testing.T) {
	cfg := NewConfig()
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, false, 0)

	if outcome.Result != ResultHeaderReceived {
		t.Fatalf("Result = %v, want header_received", outcome.Result)
	}
	if !outcome.KeepAlive {
		t.Error("KeepAlive = false, want true for HTTP/1.1")
	}
	if ctx.URL != "/hello" || ctx.Method != "GET" {
		t.Errorf("got method=%q url=%q", ctx.Method, ctx.URL)
	}
}

func TestReadRequestRemoteIPLiftedIntoHeaders(t *testing.T) {
	cfg := NewConfig()
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, false, 0)

	if outcome.Result != ResultHeaderReceived {
		t.Fatalf("Result = %v, want header_received", outcome.Result)
	}
	if ctx.RemoteIP != "203.0.113.9" {
		t.Errorf("ctx.RemoteIP = %q, want 203.0.113.9", ctx.RemoteIP)
	}
	if got := ctx.InHeaders.Get(hdr.RemoteIP); got != "203.0.113.9" {
		t.Errorf("InHeaders.Get(RemoteIP) = %q, want 203.0.113.9", got)
	}
}

func TestReadRequestWithBody(t *testing.T) {
	cfg := NewConfig()
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, true, 0)

	if outcome.Result != ResultBodyReceived {
		t.Fatalf("Result = %v, want body_received", outcome.Result)
	}
	if string(ctx.InContent) != "hello" {
		t.Errorf("InContent = %q, want hello", ctx.InContent)
	}
}

func TestReadRequestConnectionClose(t *testing.T) {
	cfg := NewConfig()
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "GET / HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, false, 0)

	if outcome.KeepAlive {
		t.Error("KeepAlive = true, want false after Connection: close")
	}
}

func TestReadRequestOversizedPayload(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxContentLength = 10
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 1000\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, true, 0)

	if outcome.Result != ResultOversizedPayload {
		t.Fatalf("Result = %v, want oversized_payload", outcome.Result)
	}
}

func TestReadRequestBeforeBodyRejects(t *testing.T) {
	cfg := NewConfig()

	p, client := newTestParser(cfg, func(url, method string, headers hdr.Block, contentType, remoteIP string, contentLength int64, isSSL bool) int {
		return 403
	})
	defer client.Close()

	writeAndClose(t, client, "GET /private HTTP/1.1\r\nHost: example.com\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, true, 0)

	if outcome.Result != ResultRejected {
		t.Fatalf("Result = %v, want rejected", outcome.Result)
	}
}

func TestReadRequestTCPPrefixMismatch(t *testing.T) {
	cfg := NewConfig()
	cfg.TCPPrefix = "PROXY"
	p, client := newTestParser(cfg, nil)
	defer client.Close()

	writeAndClose(t, client, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	outcome := p.ReadRequest(&ctx, false, 0)

	if outcome.Result != ResultError {
		t.Fatalf("Result = %v, want error", outcome.Result)
	}
}
