// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import "context"

// QueryHook provides observability callpoints around query execution.
// Implementations must be safe for concurrent use (independent queries run
// concurrently).
type QueryHook interface {
	// OnQueryStart runs after the request is built and before any network
	// activity. The returned context is used for the HTTP request; the hook
	// may add entries to info.Headers (e.g. trace propagation) and they are
	// copied onto the outgoing request.
	OnQueryStart(ctx context.Context, info QueryInfo) (context.Context, HookToken)
	// OnQueryEnd runs exactly once when the query reaches a terminal state:
	// after Exec drains the response, when a cursor is exhausted or fails,
	// or when a cursor is closed early.
	OnQueryEnd(ctx context.Context, token HookToken, info QueryInfo, stats *QueryStatistics, err error)
}

// HookToken is an opaque value returned by OnQueryStart and passed back to
// OnQueryEnd. Only meaningful to the QueryHook that created it.
type HookToken interface{}

// QueryInfo carries query metadata passed to hooks.
type QueryInfo struct {
	Query    string            // final query text after placeholder resolution
	Method   string            // "GET" or "POST"
	ReadOnly bool              // whether the query was dispatched read-only
	Database string            // configured database, if any
	Headers  map[string]string // extra request headers, writable by the hook
}

// QueryStatistics holds per-query I/O counters.
type QueryStatistics struct {
	Chunks int64 // response chunks received
	Bytes  int64 // decompressed response bytes received
	Rows   int64 // rows decoded
}

// RecordChunk records one received chunk of the given size.
func (s *QueryStatistics) RecordChunk(n int64) {
	s.Chunks++
	s.Bytes += n
}

// RecordRow records one decoded row.
func (s *QueryStatistics) RecordRow() {
	s.Rows++
}
