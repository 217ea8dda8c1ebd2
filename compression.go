/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"bytes"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Codec encodes a response body, returning the encoded bytes in a new
// slice. It must not mutate the slice it's handed.
type Codec func(content []byte) ([]byte, error)

// compressionEntry is one {name, codec, min_size} registration (§3).
type compressionEntry struct {
	name    string
	codec   Codec
	minSize int
}

// CompressionRegistry is the ordered list of content-encoding codecs
// described in §4.7. Registration order is preference order: the
// first registered codec whose name also appears in the request's
// Accept-Encoding list, and whose min-size is met, wins. The registry
// is immutable after the server accepts its first request (§5).
type CompressionRegistry struct {
	entries  []compressionEntry
	advertise string
}

// NewCompressionRegistry returns an empty registry. Use Register to
// add codecs, or NewDefaultCompressionRegistry for the stock gzip /
// deflate / brotli / bzip2 set wired in from the domain stack.
func NewCompressionRegistry() *CompressionRegistry {
	return &CompressionRegistry{}
}

// NewDefaultCompressionRegistry registers, in preference order: gzip
// and deflate via klauspost/compress (a faster drop-in for the stdlib
// packages of the same name), br via andybalholm/brotli, and bzip2 via
// dsnet/compress last, so it only ever gets selected when a client
// asks for it and nothing earlier in the list matches, demonstrating
// that registry order, not codec efficiency, decides selection (§8
// invariant 8).
func NewDefaultCompressionRegistry() *CompressionRegistry {
	r := NewCompressionRegistry()
	r.Register("gzip", gzipCodec, 1024)
	r.Register("deflate", deflateCodec, 512)
	r.Register("br", brotliCodec, 1024)
	r.Register("bzip2", bzip2Codec, 2048)
	return r
}

// Register adds a codec to the end of the preference list. minSize is
// the lower bound, in bytes, OutContent must meet for the codec to
// activate; minSize <= 0 defaults to 1024.
func (r *CompressionRegistry) Register(name string, codec Codec, minSize int) {
	if minSize <= 0 {
		minSize = 1024
	}
	r.entries = append(r.entries, compressionEntry{name: name, codec: codec, minSize: minSize})
	r.advertise = r.buildAdvertise()
}

// buildAdvertise precomputes the comma-joined Accept-Encoding response
// fragment (§4.7), in registration order.
func (r *CompressionRegistry) buildAdvertise() string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return strings.Join(names, ",")
}

// Advertise returns the precomputed "Accept-Encoding: ..." fragment
// value for use in keep-alive responses (§4.2 step 9).
func (r *CompressionRegistry) Advertise() string { return r.advertise }

// Select walks acceptEncoding (the request's raw header value, a
// comma-separated list of tokens in request order) and returns the
// first registered codec, in registration order, whose name appears
// anywhere in that list and whose min-size is met by contentLen. ok is
// false if no codec matches.
func (r *CompressionRegistry) Select(acceptEncoding string, contentLen int) (name string, codec Codec, ok bool) {
	if acceptEncoding == "" {
		return "", nil, false
	}
	tokens := splitAcceptEncoding(acceptEncoding)
	for _, e := range r.entries {
		if contentLen < e.minSize {
			continue
		}
		for _, t := range tokens {
			if strings.EqualFold(t, e.name) {
				return e.name, e.codec, true
			}
		}
	}
	return "", nil, false
}

func splitAcceptEncoding(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if i := strings.IndexByte(p, ';'); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func gzipCodec(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateCodec(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliCodec(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bzip2Codec(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
