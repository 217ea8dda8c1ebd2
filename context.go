/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"net"

	"github.com/mobius1qwe/httpcore/hdr"
)

// AuthStatus is the authentication outcome carried through to an
// external authenticator; the core never performs authentication
// itself (it's a Non-goal), it only carries the byte and principal an
// upstream hook has already decided.
type AuthStatus byte

const (
	AuthNone AuthStatus = iota
	AuthFailed
	AuthBasic
	AuthDigest
	AuthNtlm
	AuthNegotiate
	AuthKerberos
)

// Sentinel OutContentType values (§6).
const (
	// StaticFile tells ResponseWriter.Write to treat OutContent as a
	// UTF-8 file path to serve.
	StaticFile = "!STATICFILE"
	// NoResponse tells ResponseWriter.Write the handler already
	// responded out-of-band; the sentinel is cleared and a normal,
	// empty-bodied response is still framed.
	NoResponse = "!NORESPONSE"
)

// RequestContext carries a single request's inputs and outputs between
// the four pipeline hooks (§3, §4.3). Input fields are immutable after
// Prepare; OutContent/OutContentType/OutCustomHeaders are the only
// fields a handler is expected to mutate.
type RequestContext struct {
	// --- inputs, immutable after Prepare ---
	URL           string
	Method        string
	InHeaders     hdr.Block
	InContent     []byte
	InContentType string
	// acceptEncoding is the raw Accept-Encoding value, lifted out of
	// InHeaders like the other special headers (§4.1 step 3). It isn't
	// exported because it's wire bookkeeping ResponseWriter consumes
	// when picking a codec, not request data a handler acts on.
	acceptEncoding string
	RemoteIP       string
	IsSSL         bool
	AuthStatus    AuthStatus
	AuthPrincipal string
	ConnID        int64
	RequestID     int64

	// --- outputs, set by the handler ---
	OutContent       []byte
	OutContentType   string
	OutCustomHeaders hdr.Block

	// worker is the owning connection, used by a handler wanting to
	// Detach the socket (the "owned" hand-off, §3).
	worker *ConnectionWorker

	// written is set once ResponseWriter.Write has run, enforcing the
	// at-most-one-response invariant (§8 invariant 4).
	written bool
}

// Prepare resets ctx to serve a newly parsed request. connID and
// requestID are assigned by the caller (the ConnectionWorker) per the
// allocators described in §3 and Design Note 9.1.
func (ctx *RequestContext) Prepare(connID, requestID int64, w *ConnectionWorker) {
	ctx.ConnID = connID
	ctx.RequestID = requestID
	ctx.worker = w
	ctx.written = false
	ctx.OutContent = nil
	ctx.OutContentType = ""
	ctx.OutCustomHeaders = hdr.Block{}
	ctx.AuthStatus = AuthNone
	ctx.AuthPrincipal = ""
}

// Detach transfers ownership of the underlying socket to the caller,
// putting the connection in the terminal "owned" state (§3, Design
// Note 9.1): the ConnectionWorker will not read, write, or close it
// again. Detach returns ErrHijacked if the connection has already been
// detached or closed.
func (ctx *RequestContext) Detach() (net.Conn, error) {
	if ctx.worker == nil {
		return nil, ErrHijacked
	}
	return ctx.worker.detach()
}
