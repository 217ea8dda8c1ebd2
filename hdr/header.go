/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr holds the header-name constants and the small set of
// RFC 7230 token/value validators the request parser and response
// writer need. It also defines Block, the normalized "text block with
// CRLF separators" RequestContext.InHeaders is specified to carry.
package hdr

const (
	Accept          = "Accept"
	AcceptEncoding  = "Accept-Encoding"
	Connection      = "Connection"
	ContentEncoding = "Content-Encoding"
	ContentLength   = "Content-Length"
	ContentType     = "Content-Type"
	Host            = "Host"
	Referer         = "Referer"
	RemoteIP        = "RemoteIP"
	ServerHeader    = "Server"
	UserAgent       = "User-Agent"
	Upgrade         = "Upgrade"
	XAccelRedirect  = "X-Accel-Redirect"
	XPoweredBy      = "X-Powered-By"

	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// CRLF is the wire line terminator used throughout request and
// response framing.
const CRLF = "\r\n"

// special is the set of header names the parser lifts into typed
// RequestContext fields instead of leaving them in the headers block,
// when running in the default filtered mode (see §4.1 step 3).
var special = map[string]bool{
	ContentLength:   true,
	ContentType:     true,
	ContentEncoding: true,
	Connection:      true,
	AcceptEncoding:  true,
	Host:            true,
	UserAgent:       true,
	Referer:         true,
}

// IsSpecial reports whether name (already canonicalized) belongs to the
// filtered set that filtered-mode parsing lifts out of the headers
// block.
func IsSpecial(name string) bool {
	return special[CanonicalHeaderKey(name)]
}

// CanonicalHeaderKey returns the canonical format of the header key s,
// "Foo-Bar" style, by capitalizing the first letter of each
// hyphen-separated word. Unlike net/textproto's version this is a
// small, allocation-light helper scoped to the header names this
// package knows about plus whatever arrives on the wire.
func CanonicalHeaderKey(s string) string {
	if s == "" {
		return s
	}
	upper := true
	out := []byte(s)
	for i, c := range out {
		if upper && 'a' <= c && c <= 'z' {
			out[i] = c - ('a' - 'A')
		} else if !upper && 'A' <= c && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(out)
}
