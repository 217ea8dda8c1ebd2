/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import "testing"

func TestIsToken(t *testing.T) {
	var tests = []struct {
		in   string
		want bool
	}{
		{"", false},
		{"Content-Type", true},
		{"X-Custom-Header", true},
		{"has space", false},
		{"has\ttab", false},
		{"has:colon", false},
	}
	for _, tt := range tests {
		if got := IsToken(tt.in); got != tt.want {
			t.Errorf("IsToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidHeaderFieldValue(t *testing.T) {
	var tests = []struct {
		in   string
		want bool
	}{
		{"text/plain", true},
		{"a\tb", true},
		{"a\nb", false},
		{"a\rb", false},
		{string(rune(0x7f)), false},
	}
	for _, tt := range tests {
		if got := ValidHeaderFieldValue(tt.in); got != tt.want {
			t.Errorf("ValidHeaderFieldValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
