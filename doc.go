/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package httpd is an embeddable HTTP/1.1 origin server: a connection
// acceptor that dispatches between a bounded worker pool and dedicated
// per-connection goroutines, a strict request parser with size and
// time budgets, and a response pipeline with pluggable compression and
// static-file hand-off.
//
// A minimal server looks like:
//
//	cfg := httpd.NewConfig()
//	cfg.Addr = ":8080"
//	srv := httpd.NewServer(cfg, httpd.WithHooks(&httpd.HookTable{
//		Request: func(ctx *httpd.RequestContext) int {
//			ctx.OutContent = []byte("hello")
//			ctx.OutContentType = "text/plain"
//			return 200
//		},
//	}))
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	srv.WaitStarted(5)
package httpd
