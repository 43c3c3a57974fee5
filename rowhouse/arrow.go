// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

// ArrowCursor iterates over the record batches of a FORMAT ArrowStream
// response. Unlike [Cursor] it yields columnar batches, not single rows;
// the same single-consumer and single-pass rules apply.
type ArrowCursor struct {
	rdr *ipc.Reader
	res *response
	rec arrow.Record
	err error
}

// FetchArrowStream executes the query read-only with FORMAT ArrowStream and
// returns a cursor over Arrow record batches. Use it when the consumer is
// columnar; for typed per-row decoding use [Fetch].
func (q *Query) FetchArrowStream(ctx context.Context) (*ArrowCursor, error) {
	q.sql.appendText(" FORMAT ArrowStream")

	res, err := q.execute(ctx, true)
	if err != nil {
		return nil, err
	}
	rdr, err := ipc.NewReader(res.body)
	if err != nil {
		err = fmt.Errorf("rowhouse: arrow stream: %w", err)
		res.finish(err)
		return nil, err
	}
	return &ArrowCursor{rdr: rdr, res: res}, nil
}

// Next advances to the next record batch. The batch returned by [ArrowCursor.Record]
// is valid until the following Next or Close call.
func (c *ArrowCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.rdr.Next() {
		c.rec = c.rdr.Record()
		c.res.stats.RecordChunk(recordBufferSize(c.rec))
		c.res.stats.Rows += c.rec.NumRows()
		return true
	}
	c.err = c.rdr.Err()
	c.release()
	return false
}

// Record returns the current batch.
func (c *ArrowCursor) Record() arrow.Record {
	return c.rec
}

// Err returns the terminal error, if any.
func (c *ArrowCursor) Err() error {
	return c.err
}

// Close releases the reader and the underlying response stream. Safe to
// call more than once.
func (c *ArrowCursor) Close() {
	c.release()
}

func (c *ArrowCursor) release() {
	if c.rdr != nil {
		c.rdr.Release()
		c.rdr = nil
	}
	c.rec = nil
	c.res.finish(c.err)
}

// recordBufferSize returns the total top-level buffer size in bytes across
// all columns in a record batch.
func recordBufferSize(rec arrow.Record) int64 {
	var total int64
	for i := 0; i < int(rec.NumCols()); i++ {
		col := rec.Column(i)
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}
