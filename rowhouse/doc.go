// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package rowhouse implements a Go client for ClickHouse-compatible
// analytical databases over their HTTP interface, decoding query results
// incrementally from the compact RowBinary wire format.
//
// The client never buffers a whole response: the body is consumed chunk by
// chunk as it arrives from the transport, and rows are decoded as soon as
// enough bytes are available. Chunk boundaries are arbitrary: a row, a
// field, or even a length prefix may be split across any number of chunks,
// and the decoder handles every split identically to the contiguous case.
//
// # Row types
//
// Result rows are declared as Go structs annotated with `rowhouse` struct
// tags giving the wire column name. The tag format is:
//
//	`rowhouse:"column_name[,option]"`
//
// Supported options:
//
//   - fixed=N: the column is a FixedString(N), exactly N bytes on the
//     wire with no length prefix. Valid on string and []byte fields.
//   - date: the column is a Date (days since epoch, 2 bytes). Valid on
//     time.Time fields, which otherwise map to DateTime.
//
// Tagged fields must appear in the struct in wire order; the tag list is
// compiled once per type into a column manifest used both for `?fields`
// expansion and for decoding.
//
// # Queries
//
// Queries are templates with `?` placeholders bound left-to-right via
// [Query.Bind]. String and time values are escaped as literals, numeric
// values are emitted verbatim, and [Identifier] values are quoted as
// identifiers. A single `?fields` placeholder expands to the row type's
// comma-joined column list:
//
//	type Visit struct {
//		ID   uint64 `rowhouse:"id"`
//		Host string `rowhouse:"host"`
//	}
//
//	client := rowhouse.NewClient("http://localhost:8123")
//	cursor, err := rowhouse.Fetch[Visit](ctx,
//		client.Query("SELECT ?fields FROM visits WHERE host = ?").Bind("a.example"))
//
// # Transport
//
// Read-only queries at or below 8192 bytes travel as GET requests with the
// query text in the URL; everything else is POSTed with the query as the
// request body. Credentials are attached as X-ClickHouse-User and
// X-ClickHouse-Key headers. When a compression preference is configured the
// client negotiates a compressed response and transparently decodes it
// before decoding rows.
//
// # Observability
//
// A [QueryHook] installed with [Client.WithQueryHook] observes every query
// with per-query statistics (chunks, rows, bytes). The rowotel subpackage
// provides an OpenTelemetry implementation with distributed tracing and
// metrics.
package rowhouse
