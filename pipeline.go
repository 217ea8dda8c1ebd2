/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"fmt"
	"net"
)

// RequestHook is the core handler stage: given a fully parsed request
// it returns the status code to respond with. A nil Request hook
// behaves as a bare 404 handler (§4.3).
type RequestHook func(ctx *RequestContext) int

// BeforeRequestHook runs before RequestHook and can short-circuit the
// pipeline. Returning 0 or 202 lets the request fall through to
// RequestHook; any other code is written immediately, RequestHook and
// AfterRequestHook are skipped, and AfterResponseHook still runs (§4.3,
// §8 invariant 3).
type BeforeRequestHook func(ctx *RequestContext) int

// AfterRequestHook runs after RequestHook and may override its status
// code; it receives the code RequestHook produced and returns the code
// that actually gets written.
type AfterRequestHook func(ctx *RequestContext, statusCode int) int

// AfterResponseHook runs once the response has been written (or would
// have been, had ctx.written not already been set). It's best-effort:
// its return value, if any, is ignored, and a panic here only gets
// logged, never turned into a response (there's nothing left to write
// to by this point).
type AfterResponseHook func(ctx *RequestContext, statusCode int)

// HookTable is the full set of pluggable callbacks a Server consults
// while serving a request (§4.3). BeforeBody lives in parser.go since
// it runs before the body is even read; the rest run after.
type HookTable struct {
	BeforeBody    BeforeBodyHook
	BeforeRequest BeforeRequestHook
	Request       RequestHook
	AfterRequest  AfterRequestHook
	AfterResponse AfterResponseHook
}

// HandlerPipeline runs the four request-scoped hooks and writes
// exactly one response per request (§4.3, §8 invariant 4).
type HandlerPipeline struct {
	hooks  *HookTable
	writer *ResponseWriter
	logger FieldLogger
}

// NewHandlerPipeline builds a pipeline around hooks (nil is valid: a
// bare pipeline always 404s) and the server's shared ResponseWriter.
func NewHandlerPipeline(hooks *HookTable, writer *ResponseWriter, logger FieldLogger) *HandlerPipeline {
	if hooks == nil {
		hooks = &HookTable{}
	}
	return &HandlerPipeline{hooks: hooks, writer: writer, logger: logger}
}

// Run executes the pipeline for one parsed request and writes its
// response onto conn.
func (p *HandlerPipeline) Run(conn net.Conn, ctx *RequestContext, keepAlive bool) {
	statusCode := 0
	shortCircuited := false
	var errorDetail string
	var panicked bool

	if p.hooks.BeforeRequest != nil {
		code, detail, didPanic := p.callStage("before_request", ctx, p.hooks.BeforeRequest)
		if didPanic {
			statusCode, errorDetail, panicked = code, detail, true
			shortCircuited = true
		} else if code != 0 && code != 202 {
			statusCode = code
			shortCircuited = true
		}
	}

	if !shortCircuited {
		if p.hooks.Request != nil {
			code, detail, didPanic := p.callStage("request", ctx, p.hooks.Request)
			statusCode = code
			if didPanic {
				errorDetail, panicked = detail, true
			}
		} else {
			statusCode = 404
		}
		if !panicked && p.hooks.AfterRequest != nil {
			code, detail, didPanic := p.callAfterRequest(ctx, statusCode)
			statusCode = code
			if didPanic {
				errorDetail, panicked = detail, true
			}
		}
	}

	if !ctx.written {
		if err := p.writer.Write(conn, ctx, statusCode, keepAlive, errorDetail); err != nil && p.logger != nil {
			reqLogger(connLogger(p.logger, ctx.ConnID), ctx.RequestID).Warnf("write response: %v", err)
		}
	}

	// §4.3: a handler-stage panic skips AfterResponse entirely, since
	// there's no well-defined post-request state to report.
	if !panicked && p.hooks.AfterResponse != nil {
		p.callAfterResponse(ctx, statusCode)
	}
}

// callStage invokes a BeforeRequestHook or RequestHook, converting a
// panic into a 500 plus the panic text as errorDetail instead of
// letting it unwind into the connection worker's goroutine (§4.3, §7).
func (p *HandlerPipeline) callStage(stage string, ctx *RequestContext, fn func(*RequestContext) int) (code int, errorDetail string, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.WithField("stage", stage).Errorf("handler panic: %v", r)
			}
			code, errorDetail, panicked = 500, fmt.Sprintf("%v", r), true
		}
	}()
	return fn(ctx), "", false
}

func (p *HandlerPipeline) callAfterRequest(ctx *RequestContext, statusCode int) (code int, errorDetail string, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.WithField("stage", "after_request").Errorf("handler panic: %v", r)
			}
			code, errorDetail, panicked = 500, fmt.Sprintf("%v", r), true
		}
	}()
	return p.hooks.AfterRequest(ctx, statusCode), "", false
}

func (p *HandlerPipeline) callAfterResponse(ctx *RequestContext, statusCode int) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.WithField("stage", "after_response").Errorf("handler panic: %v", r)
		}
	}()
	p.hooks.AfterResponse(ctx, statusCode)
}
