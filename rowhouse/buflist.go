// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

// bufList is an append-only aggregation of response chunks with a single
// logical read cursor and a committed floor. Reads advance the cursor;
// rollback moves it back to the floor, commit moves the floor up to the
// cursor and releases fully consumed leading chunks.
//
// Chunks are never mutated or dropped on rollback, only the cursor moves.
// This is what makes speculative row decodes idempotent: a failed attempt
// is fully undone by a single rollback.
type bufList struct {
	bufs [][]byte // held chunks, oldest first
	idx  int      // cursor: index into bufs
	off  int      // cursor: byte offset within bufs[idx]

	// committed floor, always within bufs[0] (commit releases everything
	// before it)
	floor int
}

// push appends a chunk. Empty chunks are dropped so that bufsCnt reflects
// only chunks that can still yield bytes.
func (b *bufList) push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.bufs = append(b.bufs, chunk)
}

// skipConsumed advances the cursor past fully consumed chunks.
func (b *bufList) skipConsumed() {
	for b.idx < len(b.bufs) && b.off == len(b.bufs[b.idx]) {
		b.idx++
		b.off = 0
	}
}

// readByte consumes one byte, or reports errNeedMore when the cursor is at
// the end of buffered data.
func (b *bufList) readByte() (byte, error) {
	b.skipConsumed()
	if b.idx >= len(b.bufs) {
		return 0, errNeedMore
	}
	c := b.bufs[b.idx][b.off]
	b.off++
	return c, nil
}

// next consumes the next n bytes. When they lie within a single chunk the
// returned slice is a zero-copy view into that chunk, valid until the next
// commit. When they straddle chunk boundaries they are gathered into
// scratch; if scratch cannot hold them, next reports tooSmallError with the
// missing capacity so the caller can grow and retry. The capacity check
// deliberately precedes the availability check: a grown buffer retry may
// then degrade to errNeedMore if the bytes have not arrived yet.
func (b *bufList) next(n int, scratch []byte) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	b.skipConsumed()
	if b.idx < len(b.bufs) && len(b.bufs[b.idx])-b.off >= n {
		view := b.bufs[b.idx][b.off : b.off+n]
		b.off += n
		return view, nil
	}

	// Copy path: the span crosses a chunk boundary.
	if n > len(scratch) {
		return nil, &tooSmallError{need: n - len(scratch)}
	}
	if b.remaining() < n {
		return nil, errNeedMore
	}
	filled := 0
	for filled < n {
		b.skipConsumed()
		chunk := b.bufs[b.idx][b.off:]
		m := copy(scratch[filled:n], chunk)
		filled += m
		b.off += m
	}
	return scratch[:n], nil
}

// remaining reports the byte count between the cursor and the end of
// buffered data.
func (b *bufList) remaining() int {
	if b.idx >= len(b.bufs) {
		return 0
	}
	total := len(b.bufs[b.idx]) - b.off
	for i := b.idx + 1; i < len(b.bufs); i++ {
		total += len(b.bufs[i])
	}
	return total
}

// commit fixes the cursor as the new floor and releases chunks that are now
// fully consumed. Committed bytes can never be re-read.
func (b *bufList) commit() {
	b.skipConsumed()
	if b.idx > 0 {
		b.bufs = b.bufs[b.idx:]
		b.idx = 0
	}
	b.floor = b.off
}

// rollback discards any uncommitted reads, resetting the cursor to the floor.
func (b *bufList) rollback() {
	b.idx = 0
	b.off = b.floor
}

// bufsCnt reports the held, not fully committed chunk count. After a clean
// final commit it is zero; a non-zero count at stream end means a row was
// left incomplete.
func (b *bufList) bufsCnt() int {
	return len(b.bufs)
}
