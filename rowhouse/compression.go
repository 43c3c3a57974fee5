// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the client's response compression preference. Any
// preference other than CompressionNone adds the compress=1 negotiation
// parameter to the request; the standard HTTP codings additionally send an
// Accept-Encoding header and the response body is transparently decoded
// before row decoding sees it.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
	CompressionGzip
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// contentCoding returns the Accept-Encoding token for the preference, or ""
// when no coding header should be sent.
func (c Compression) contentCoding() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return ""
	}
}

// decodedBody wraps a decompression reader together with everything that
// must be closed underneath it.
type decodedBody struct {
	r       io.Reader
	closers []io.Closer
}

func (d *decodedBody) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *decodedBody) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// decompressBody wraps the response body according to its Content-Encoding.
// An identity body passes through untouched.
func decompressBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(encoding) {
	case "", "identity":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("rowhouse: gzip response: %w", err)
		}
		return &decodedBody{r: zr, closers: []io.Closer{zr, body}}, nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("rowhouse: zstd response: %w", err)
		}
		zrc := zr.IOReadCloser()
		return &decodedBody{r: zrc, closers: []io.Closer{zrc, body}}, nil
	case "lz4":
		return &decodedBody{r: lz4.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		_ = body.Close()
		return nil, fmt.Errorf("rowhouse: unsupported response encoding %q", encoding)
	}
}
