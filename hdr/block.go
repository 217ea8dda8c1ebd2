/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import "strings"

// Block is the normalized "Name: value" text block, CRLF-separated,
// that RequestContext uses to carry the non-special request headers
// (and, in unfiltered mode, every header) between the parser and the
// handler pipeline. It intentionally isn't a map: the wire order of
// headers from a single request is preserved, and a Block can be
// rendered back to bytes exactly once, cheaply, for handlers that want
// to forward it verbatim (e.g. to an upstream).
type Block struct {
	lines []string
}

// Add appends a "Name: value" line. name is canonicalized; value is
// used verbatim.
func (b *Block) Add(name, value string) {
	b.lines = append(b.lines, CanonicalHeaderKey(name)+": "+value)
}

// AddLine appends a raw, already-formatted "Name: value" line, used
// when the parser re-lifts a line it read directly off the wire.
func (b *Block) AddLine(line string) {
	b.lines = append(b.lines, line)
}

// Get scans the block for the first line whose name matches name
// case-insensitively and returns its value. Returns "" if absent.
func (b *Block) Get(name string) string {
	want := CanonicalHeaderKey(name)
	for _, l := range b.lines {
		i := strings.IndexByte(l, ':')
		if i < 0 {
			continue
		}
		if CanonicalHeaderKey(strings.TrimSpace(l[:i])) == want {
			return strings.TrimSpace(l[i+1:])
		}
	}
	return ""
}

// Lines returns the block's lines in wire order. The returned slice
// must not be mutated by the caller.
func (b *Block) Lines() []string { return b.lines }

// Len reports the number of header lines carried in the block.
func (b *Block) Len() int { return len(b.lines) }

// String renders the block as it would appear on the wire: each line
// followed by CRLF, no trailing blank line.
func (b *Block) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, l := range b.lines {
		sb.WriteString(l)
		sb.WriteString(CRLF)
	}
	return sb.String()
}
