/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"fmt"
	"html"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mobius1qwe/httpcore/hdr"
)

// ResponseWriter implements §4.2: it turns a RequestContext's output
// fields plus a status code into bytes on the wire. One instance is
// shared by every connection (its fields are immutable server-wide
// configuration, per §5), so Write takes the connection explicitly.
type ResponseWriter struct {
	cfg         *Config
	compression *CompressionRegistry
	sendFile    SendFileStrategy
}

// NewResponseWriter builds a ResponseWriter against the server's
// compression registry and (optional) static-file strategy.
func NewResponseWriter(cfg *Config, compression *CompressionRegistry, sendFile SendFileStrategy) *ResponseWriter {
	return &ResponseWriter{cfg: cfg, compression: compression, sendFile: sendFile}
}

// Write frames and sends one response for ctx onto conn. statusCode is
// the code the pipeline decided on; keepAlive is whatever the request
// parse determined (§4.1) and selects the HTTP/1.1 keep-alive framing.
// errorDetail, if non-empty, is the raw exception text from a handler
// panic (§4.3, §7); Write HTML-escapes it into an error page that
// overwrites whatever OutContent the handler had set.
func (w *ResponseWriter) Write(conn net.Conn, ctx *RequestContext, statusCode int, keepAlive bool, errorDetail string) error {
	if ctx.OutContentType == StaticFile {
		w.resolveStaticFile(ctx, &statusCode)
	}

	if ctx.OutContentType == NoResponse {
		ctx.OutContentType = ""
		ctx.OutContent = nil
	}

	if statusCode < 200 || ctx.InHeaders.Len() == 0 {
		// Status floor: a handler that forgets to set one, or returns a
		// 1xx code this server never negotiates, or a request that
		// somehow carried no headers at all, gets a well-formed 404
		// instead of a malformed or nonsensical status line.
		statusCode = 404
	}

	if errorDetail != "" {
		ctx.OutContent = []byte(errorDetailPage(statusCode, w.cfg.ServerName, errorDetail))
		ctx.OutContentType = "text/html; charset=utf-8"
		ctx.OutCustomHeaders = hdr.Block{}
	} else if statusCode >= 400 && len(ctx.OutContent) == 0 {
		ctx.OutContent = []byte(errorPage(statusCode))
		ctx.OutContentType = "text/html; charset=utf-8"
	}

	handlerSetEncoding := ctx.OutCustomHeaders.Get(hdr.ContentEncoding) != ""
	contentEncoding := ""
	if !handlerSetEncoding && w.compression != nil && len(ctx.OutContent) > 0 {
		if name, codec, ok := w.compression.Select(ctx.acceptEncoding, len(ctx.OutContent)); ok {
			if encoded, err := codec(ctx.OutContent); err == nil {
				ctx.OutContent = encoded
				contentEncoding = name
			}
		}
	}

	bw := bufio.NewWriter(conn)

	version := "HTTP/1.0"
	if keepAlive {
		version = "HTTP/1.1"
	}
	if w.cfg.TCPPrefix != "" {
		fmt.Fprintf(bw, "%s\r\n", w.cfg.TCPPrefix)
	}
	fmt.Fprintf(bw, "%s %d %s\r\n", version, statusCode, statusReason(statusCode))
	fmt.Fprintf(bw, "%s: %s\r\n", hdr.ServerHeader, w.cfg.ServerName)
	if w.cfg.PoweredBy != "" {
		fmt.Fprintf(bw, "%s: %s\r\n", hdr.XPoweredBy, w.cfg.PoweredBy)
	}
	fmt.Fprintf(bw, "Date: %s\r\n", time.Now().UTC().Format(hdr.TimeFormat))

	for _, line := range ctx.OutCustomHeaders.Lines() {
		fmt.Fprintf(bw, "%s\r\n", line)
	}
	if contentEncoding != "" {
		fmt.Fprintf(bw, "%s: %s\r\n", hdr.ContentEncoding, contentEncoding)
	}
	if ctx.OutContentType != "" {
		fmt.Fprintf(bw, "%s: %s\r\n", hdr.ContentType, ctx.OutContentType)
	}
	fmt.Fprintf(bw, "%s: %d\r\n", hdr.ContentLength, len(ctx.OutContent))

	if keepAlive {
		fmt.Fprintf(bw, "%s: Keep-Alive\r\n", hdr.Connection)
		if w.compression != nil && w.compression.Advertise() != "" {
			fmt.Fprintf(bw, "%s: %s\r\n", hdr.AcceptEncoding, w.compression.Advertise())
		}
	} else {
		fmt.Fprintf(bw, "%s: close\r\n", hdr.Connection)
	}

	bw.WriteString(hdr.CRLF)

	if ctx.Method != "HEAD" && len(ctx.OutContent) > 0 {
		bw.Write(ctx.OutContent)
	}

	ctx.written = true
	return bw.Flush()
}

// resolveStaticFile implements §4.8: consult the optional send-file
// strategy first (it may hand the file off to a reverse proxy without
// this process ever opening it); otherwise read the file directly and
// guess its content type from the extension.
func (w *ResponseWriter) resolveStaticFile(ctx *RequestContext, statusCode *int) {
	if w.sendFile != nil && w.sendFile.TrySend(ctx) {
		ctx.OutContentType = ""
		return
	}
	path := string(ctx.OutContent)
	data, err := os.ReadFile(path)
	if err != nil {
		*statusCode = 404
		ctx.OutContent = nil
		ctx.OutContentType = ""
		return
	}
	ctx.OutContent = data
	ctx.OutContentType = contentTypeByExtension(path)
}

// contentTypeByExtension maps a file extension to a content type using
// a small built-in table of common static-asset extensions; any other
// extension, or none, yields application/octet-stream. No
// content sniffing is done.
func contentTypeByExtension(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "application/octet-stream"
	}
	switch strings.ToLower(path[i+1:]) {
	case "html", "htm":
		return "text/html; charset=utf-8"
	case "css":
		return "text/css; charset=utf-8"
	case "js":
		return "application/javascript; charset=utf-8"
	case "json":
		return "application/json"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	case "txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// errorPage synthesizes a minimal HTML body for a response a handler
// left empty at an error status (the default 404 from §4.3, or any
// other status a handler sets without writing its own body).
func errorPage(statusCode int) string {
	reason := statusReason(statusCode)
	return fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%d %s</h1></body></html>",
		statusCode, reason, statusCode, reason)
}

// errorDetailPage synthesizes the 500-with-exception-text body from
// §4.3/§7: a handler panic always gets this page regardless of what the
// handler had already written, with the panic text escaped so it can't
// inject markup into the response.
func errorDetailPage(statusCode int, serverName, detail string) string {
	reason := statusReason(statusCode)
	return fmt.Sprintf(
		"<html><head><title>%s Server Error %d</title></head><body><h1>%s Server Error %d</h1><p>%d %s</p><pre>%s</pre><hr><address>%s</address></body></html>",
		serverName, statusCode, serverName, statusCode, statusCode, reason, html.EscapeString(detail), serverName,
	)
}
