/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"net"
	"strings"
	"testing"
)

func runPipeline(t *testing.T, hooks *HookTable, setup func(ctx *RequestContext)) string {
	t.Helper()
	cfg := NewConfig()
	writer := NewResponseWriter(cfg, nil, nil)
	p := NewHandlerPipeline(hooks, writer, nil)

	server, client := net.Pipe()
	done := make(chan string, 1)
	go func() { done <- readAll(t, client) }()

	var ctx RequestContext
	ctx.Prepare(1, 1, nil)
	ctx.Method = "GET"
	ctx.InHeaders.Add("X-Test", "1")
	if setup != nil {
		setup(&ctx)
	}

	go func() {
		p.Run(server, &ctx, false)
		server.Close()
	}()

	return <-done
}

func TestPipelineDefaultNotFound(t *testing.T) {
	out := runPipeline(t, &HookTable{}, nil)
	if !strings.Contains(out, "HTTP/1.0 404 Not Found") {
		t.Errorf("expected default 404, got: %q", out)
	}
}

func TestPipelineRequestHookSetsResponse(t *testing.T) {
	hooks := &HookTable{
		Request: func(ctx *RequestContext) int {
			ctx.OutContent = []byte("hi")
			ctx.OutContentType = "text/plain"
			return 200
		},
	}
	out := runPipeline(t, hooks, nil)
	if !strings.Contains(out, "HTTP/1.0 200 OK") || !strings.HasSuffix(out, "hi") {
		t.Errorf("expected 200 with body hi, got: %q", out)
	}
}

func TestPipelineBeforeRequestShortCircuits(t *testing.T) {
	calledRequest := false
	hooks := &HookTable{
		BeforeRequest: func(ctx *RequestContext) int { return 403 },
		Request: func(ctx *RequestContext) int {
			calledRequest = true
			return 200
		},
	}
	out := runPipeline(t, hooks, nil)
	if !strings.Contains(out, "HTTP/1.0 403 Forbidden") {
		t.Errorf("expected 403 short-circuit, got: %q", out)
	}
	if calledRequest {
		t.Error("Request hook ran despite BeforeRequest short-circuiting")
	}
}

func TestPipelineBeforeRequest202Proceeds(t *testing.T) {
	hooks := &HookTable{
		BeforeRequest: func(ctx *RequestContext) int { return 202 },
		Request: func(ctx *RequestContext) int {
			ctx.OutContent = []byte("proceeded")
			return 200
		},
	}
	out := runPipeline(t, hooks, nil)
	if !strings.Contains(out, "HTTP/1.0 200 OK") || !strings.HasSuffix(out, "proceeded") {
		t.Errorf("expected Request hook to run after 202, got: %q", out)
	}
}

func TestPipelineAfterRequestOverridesStatus(t *testing.T) {
	hooks := &HookTable{
		Request:      func(ctx *RequestContext) int { return 200 },
		AfterRequest: func(ctx *RequestContext, statusCode int) int { return 201 },
	}
	out := runPipeline(t, hooks, nil)
	if !strings.Contains(out, "HTTP/1.0 201 Created") {
		t.Errorf("expected AfterRequest override to 201, got: %q", out)
	}
}

func TestPipelineRequestPanicBecomes500(t *testing.T) {
	afterResponseRan := false
	hooks := &HookTable{
		Request:       func(ctx *RequestContext) int { panic("boom") },
		AfterResponse: func(ctx *RequestContext, statusCode int) { afterResponseRan = true },
	}
	out := runPipeline(t, hooks, nil)
	if !strings.Contains(out, "HTTP/1.0 500 Internal Server Error") {
		t.Errorf("expected panic to surface as 500, got: %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected panic text in response body, got: %q", out)
	}
	if afterResponseRan {
		t.Error("AfterResponse should be skipped after a handler panic")
	}
}

func TestPipelineAfterResponseRuns(t *testing.T) {
	ran := false
	hooks := &HookTable{
		Request:       func(ctx *RequestContext) int { return 200 },
		AfterResponse: func(ctx *RequestContext, statusCode int) { ran = true },
	}
	runPipeline(t, hooks, nil)
	if !ran {
		t.Error("AfterResponse hook did not run")
	}
}
