/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mobius1qwe/httpcore/hdr"
)

// BeforeBodyHook is invoked after headers are parsed but before the
// body is read (§4.1 step 7, §8 invariant 3). Returning anything other
// than 200 rejects the request before a byte of body is consumed.
type BeforeBodyHook func(url, method string, headers hdr.Block, contentType, remoteIP string, contentLength int64, isSSL bool) int

// ParseOutcome is what ReadRequest reports back to its caller: the
// typed Result (§4.1, shared with the Stats counters in stats.go) plus
// the keep-alive and upgrade flags the connection worker needs to
// decide what happens next.
type ParseOutcome struct {
	Result        ReadResult
	KeepAlive     bool
	Upgrade       bool
	ContentLength int64
}

// RequestParser implements §4.1: it consumes a buffered socket and
// produces a parsed request (written into a caller-supplied
// RequestContext) or a typed failure.
type RequestParser struct {
	conn net.Conn
	br   *bufio.Reader

	cfg        *Config
	beforeBody BeforeBodyHook

	isSSL    bool
	remoteIP string
}

// NewRequestParser wraps conn (with its buffered reader br, so a
// worker can peek before handing the connection to the parser)
// ready to read one request.
func NewRequestParser(conn net.Conn, br *bufio.Reader, cfg *Config, beforeBody BeforeBodyHook, remoteIP string, isSSL bool) *RequestParser {
	return &RequestParser{
		conn:       conn,
		br:         br,
		cfg:        cfg,
		beforeBody: beforeBody,
		isSSL:      isSSL,
		remoteIP:   remoteIP,
	}
}

// ReadRequest implements the algorithm in §4.1. ctx must already carry
// ConnID/RequestID (assigned by the caller via Prepare); ReadRequest
// fills in the rest of its input fields.
func (p *RequestParser) ReadRequest(ctx *RequestContext, wantBody bool, deadlineTicks int64) ParseOutcome {
	// Step 1: TCP prefix.
	if p.cfg.TCPPrefix != "" {
		line, err := p.readLine()
		if err != nil || line != p.cfg.TCPPrefix {
			return ParseOutcome{Result: ResultError}
		}
	}

	// Step 2: request line.
	reqLine, err := p.readLine()
	if err != nil {
		return ParseOutcome{Result: p.classifyReadErr(err)}
	}
	parts := strings.Split(reqLine, " ")
	if len(parts) != 3 {
		return ParseOutcome{Result: ResultError}
	}
	method, url, version := parts[0], parts[1], parts[2]

	keepAlive := version == "HTTP/1.1" && p.cfg.KeepAliveTimeout > 0

	// Step 3: headers.
	var headers hdr.Block
	var contentType, contentEncoding, acceptEncoding string
	contentLength := int64(-1)
	upgrade := false
	remoteIP := p.remoteIP

	for {
		line, err := p.readLine()
		if err != nil {
			return ParseOutcome{Result: p.classifyReadErr(err)}
		}
		if line == "" {
			break
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return ParseOutcome{Result: ResultError}
		}
		canon := hdr.CanonicalHeaderKey(name)

		switch {
		case canon == hdr.ContentLength:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				contentLength = n
			}
		case canon == hdr.ContentType:
			contentType = value
		case canon == hdr.ContentEncoding:
			contentEncoding = value
		case canon == hdr.AcceptEncoding:
			acceptEncoding = value
		case canon == hdr.Host, canon == hdr.UserAgent, canon == hdr.Referer:
			// Special but carry no dedicated RequestContext field;
			// filtered mode drops them, unfiltered keeps them in the
			// block below.
		case canon == hdr.Connection:
			for _, tok := range strings.Split(value, ",") {
				switch strings.ToLower(strings.TrimSpace(tok)) {
				case "close":
					keepAlive = false
				case "upgrade":
					upgrade = true
				}
			}
		case p.cfg.RemoteIPHeader != "" && canon == hdr.CanonicalHeaderKey(p.cfg.RemoteIPHeader):
			remoteIP = value
			if !p.cfg.UnfilteredHeaders {
				continue
			}
		case p.cfg.RemoteConnIDHeader != "" && canon == hdr.CanonicalHeaderKey(p.cfg.RemoteConnIDHeader):
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				ctx.ConnID = int64(n)
			}
			if !p.cfg.UnfilteredHeaders {
				continue
			}
		default:
			headers.AddLine(canon + ": " + value)
			continue
		}

		if p.cfg.UnfilteredHeaders {
			headers.AddLine(canon + ": " + value)
		}
	}

	if remoteIP != "" {
		headers.AddLine(hdr.RemoteIP + ": " + remoteIP)
	}

	ctx.URL = url
	ctx.Method = method
	ctx.InHeaders = headers
	ctx.InContentType = contentType
	ctx.acceptEncoding = acceptEncoding
	ctx.RemoteIP = remoteIP
	ctx.IsSSL = p.isSSL

	outcome := ParseOutcome{KeepAlive: keepAlive, Upgrade: upgrade, ContentLength: contentLength}

	// Step 5: deadline check before the body is read.
	if deadlineTicks > 0 && time.Now().UnixNano() >= deadlineTicks {
		outcome.Result = ResultTimeout
		return outcome
	}

	// Step 6: max content length.
	if p.cfg.MaxContentLength > 0 && contentLength > p.cfg.MaxContentLength {
		p.writeMinimalResponse(413, "Request Entity Too Large")
		outcome.Result = ResultOversizedPayload
		return outcome
	}

	// Step 7: BeforeBody hook.
	if p.beforeBody != nil {
		code := p.beforeBody(url, method, headers, contentType, remoteIP, contentLength, p.isSSL)
		if code != 200 {
			reason := statusReason(code)
			p.writeMinimalResponse(code, reason)
			outcome.Result = ResultRejected
			return outcome
		}
	}

	_ = contentEncoding // carried for symmetry; the core doesn't decode request bodies (Non-goal)

	// Step 8: body.
	if !wantBody || upgrade {
		outcome.Result = ResultHeaderReceived
		return outcome
	}

	body, err := p.readBody(contentLength, method, keepAlive)
	if err != nil {
		outcome.Result = p.classifyReadErr(err)
		return outcome
	}
	ctx.InContent = body
	outcome.Result = ResultBodyReceived
	return outcome
}

// FinishBody completes the body read for a request whose headers were
// already parsed with wantBody=false (pool.go's inline path and the
// promoted worker's RunContinuation in worker.go):
// it applies the same Content-Length / EOF-quirk framing ReadRequest
// itself would have, against the outcome ReadRequest already returned.
func (p *RequestParser) FinishBody(ctx *RequestContext, method string, outcome ParseOutcome) error {
	if outcome.Upgrade {
		return nil
	}
	body, err := p.readBody(outcome.ContentLength, method, outcome.KeepAlive)
	if err != nil {
		return err
	}
	ctx.InContent = body
	return nil
}

// readBody implements the Content-Length / EOF-quirk framing from §4.1
// step 8 and the Design Note 9's open question: Content-Length == -1
// (absent) means "no body" for GET or keep-alive requests, but "read
// to EOF" for everything else, a compatibility quirk carried forward
// from the source on purpose, not an HTTP/1.1-correct default.
func (p *RequestParser) readBody(contentLength int64, method string, keepAlive bool) ([]byte, error) {
	if contentLength < 0 {
		if method == "GET" || keepAlive {
			return nil, nil
		}
		return io.ReadAll(p.br)
	}
	if contentLength == 0 {
		return nil, nil
	}
	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(p.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *RequestParser) readLine() (string, error) {
	line, err := p.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}

// classifyReadErr maps a low-level read failure to the error/exception
// split from §7: a cleanly dropped socket increments error; anything
// else surfaces as exception.
func (p *RequestParser) classifyReadErr(err error) ReadResult {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isConnClosed(err) {
		return ResultError
	}
	return ResultException
}

func isConnClosed(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "broken pipe")
}

// writeMinimalResponse writes the HTTP/1.0 status response §4.1 steps
// 6-7 specify for early rejections, before any body has been read.
func (p *RequestParser) writeMinimalResponse(code int, reason string) {
	body := fmt.Sprintf("%s %d", reason, code)
	fmt.Fprintf(p.conn, "HTTP/1.0 %d %s\r\n\r\n%s", code, reason, body)
}

func statusReason(code int) string {
	if r, ok := statusText[code]; ok {
		return r
	}
	return "Unknown"
}

var statusText = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	409: "Conflict",
	413: "Request Entity Too Large",
	429: "Too Many Requests",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
}
