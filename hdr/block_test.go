/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import "testing"

func TestBlockAddAndString(t *testing.T) {
	var tests = []struct {
		build    func(b *Block)
		expected string
	}{
		{func(b *Block) {}, ""},
		{
			func(b *Block) { b.Add("content-type", "text/plain") },
			"Content-Type: text/plain\r\n",
		},
		{
			func(b *Block) {
				b.Add("x-custom", "a")
				b.AddLine("X-Custom: b")
			},
			"X-Custom: a\r\nX-Custom: b\r\n",
		},
	}

	for i, tt := range tests {
		var b Block
		tt.build(&b)
		if got := b.String(); got != tt.expected {
			t.Errorf("case %d: String() = %q, want %q", i, got, tt.expected)
		}
	}
}

func TestBlockGet(t *testing.T) {
	var b Block
	b.Add("X-Request-Id", "abc123")
	b.AddLine("Accept: text/html")

	if got := b.Get("x-request-id"); got != "abc123" {
		t.Errorf("Get(x-request-id) = %q, want abc123", got)
	}
	if got := b.Get("Accept"); got != "text/html" {
		t.Errorf("Get(Accept) = %q, want text/html", got)
	}
	if got := b.Get("Missing"); got != "" {
		t.Errorf("Get(Missing) = %q, want empty", got)
	}
}

func TestBlockLen(t *testing.T) {
	var b Block
	if b.Len() != 0 {
		t.Fatalf("Len() on empty block = %d, want 0", b.Len())
	}
	b.Add("Host", "example.com")
	b.Add("Connection", "keep-alive")
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
}

func TestCanonicalHeaderKey(t *testing.T) {
	var tests = []struct{ in, want string }{
		{"content-type", "Content-Type"},
		{"CONTENT-LENGTH", "Content-Length"},
		{"x-accel-redirect", "X-Accel-Redirect"},
		{"", ""},
		{"a", "A"},
	}
	for _, tt := range tests {
		if got := CanonicalHeaderKey(tt.in); got != tt.want {
			t.Errorf("CanonicalHeaderKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSpecial(t *testing.T) {
	var tests = []struct {
		name string
		want bool
	}{
		{"Content-Length", true},
		{"content-length", true},
		{"Accept-Encoding", true},
		{"X-Request-Id", false},
	}
	for _, tt := range tests {
		if got := IsSpecial(tt.name); got != tt.want {
			t.Errorf("IsSpecial(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
