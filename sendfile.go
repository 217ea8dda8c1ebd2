/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"strings"

	"github.com/mobius1qwe/httpcore/hdr"
)

// SendFileStrategy is the optional pluggable hook from §4.8. It's
// consulted before ResponseWriter.Write opens and reads the static
// file itself; when it returns true, the writer trusts that
// OutCustomHeaders / OutContent have already been rewritten for a
// reverse proxy to serve the file, and skips its own file read.
type SendFileStrategy interface {
	// TrySend inspects ctx (whose OutContent holds the file path) and,
	// if it owns this path, rewrites ctx's output fields and returns
	// true. Returning false means "not mine, read the file yourself".
	TrySend(ctx *RequestContext) bool
}

// PrefixSendFile is the built-in strategy named in §4.8: an allow-list
// of case-sensitive path prefixes commonly paired with a reverse proxy
// that honors X-Accel-Redirect (nginx's convention, also followed by a
// number of Go-written origins sitting behind one). For an allowed
// path it strips the prefix, appends the X-Accel-Redirect header, and
// clears OutContent so no file bytes are read into this process at
// all.
type PrefixSendFile struct {
	prefixes []string
}

// NewPrefixSendFile returns a PrefixSendFile allow-listing the given
// path prefixes, matched left-to-right and case-sensitively.
func NewPrefixSendFile(prefixes ...string) *PrefixSendFile {
	return &PrefixSendFile{prefixes: prefixes}
}

func (p *PrefixSendFile) TrySend(ctx *RequestContext) bool {
	path := string(ctx.OutContent)
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			stripped := path[len(prefix):]
			ctx.OutCustomHeaders.Add(hdr.XAccelRedirect, stripped)
			ctx.OutContent = nil
			return true
		}
	}
	return false
}
