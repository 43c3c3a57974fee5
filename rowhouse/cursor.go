// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"context"
	"errors"
	"io"
	"math/bits"
	"reflect"
)

// initialScratchSize is the scratch buffer size a cursor starts with. It
// grows in powers of two as values straddling chunk boundaries demand, and
// never shrinks.
const initialScratchSize = 1024

// chunkSource is a finite sequence of response chunks. next returns io.EOF
// at clean end of stream and may return a transport error mid-stream.
type chunkSource interface {
	next(ctx context.Context) ([]byte, error)
	close() error
}

// Cursor is a single-pass, single-consumer sequence of decoded rows. It is
// finite and not restartable. The only blocking point is the pull from the
// underlying transport; decode attempts and scratch growth run to
// completion in between. Abandoning a cursor at any point is safe; all
// buffered state is owned by the cursor and needs no cleanup beyond
// [Cursor.Close].
type Cursor[T any] struct {
	src     chunkSource
	pending bufList
	scratch []byte
	man     *manifest
	stats   *QueryStatistics
	finish  func(error)
	done    bool
	err     error
}

func newCursor[T any](src chunkSource, stats *QueryStatistics, finish func(error)) (*Cursor[T], error) {
	man, err := manifestOf(reflect.TypeFor[T]())
	if err != nil {
		_ = src.close()
		finish(err)
		return nil, err
	}
	return &Cursor[T]{
		src:     src,
		scratch: make([]byte, initialScratchSize),
		man:     man,
		stats:   stats,
		finish:  finish,
	}, nil
}

// Next returns the next decoded row, or (nil, nil) at clean end of stream.
// A stream that ends with a partially buffered row fails with
// [ErrNotEnoughData]; transport errors propagate verbatim. After the first
// terminal outcome every subsequent call repeats it.
func (c *Cursor[T]) Next(ctx context.Context) (*T, error) {
	if c.done {
		return nil, c.err
	}
	for {
		var row T
		err := c.man.decode(&c.pending, c.scratch, reflect.ValueOf(&row).Elem())
		if err == nil {
			c.pending.commit()
			c.stats.RecordRow()
			return &row, nil
		}

		var small *tooSmallError
		if errors.As(err, &small) {
			c.scratch = growScratch(c.scratch, small.need)
			c.pending.rollback()
			continue
		}
		if !errors.Is(err, errNeedMore) {
			return nil, c.terminate(err)
		}
		c.pending.rollback()

		chunk, err := c.src.next(ctx)
		switch {
		case err == nil:
			c.pending.push(chunk)
			c.stats.RecordChunk(int64(len(chunk)))
		case errors.Is(err, io.EOF):
			if c.pending.bufsCnt() > 0 {
				return nil, c.terminate(ErrNotEnoughData)
			}
			c.terminate(nil)
			return nil, nil
		default:
			return nil, c.terminate(err)
		}
	}
}

// Close releases the underlying response stream. It is safe to call more
// than once and after a terminal Next.
func (c *Cursor[T]) Close() error {
	if c.done {
		return nil
	}
	c.terminate(nil)
	return nil
}

// Err returns the terminal error, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

func (c *Cursor[T]) terminate(err error) error {
	c.done = true
	c.err = err
	_ = c.src.close()
	c.finish(err)
	return err
}

// growScratch returns a scratch buffer whose size is the next power of two
// at or above the current size plus the reported deficit. Growth is
// monotonic: one growth cycle always satisfies the deficit that caused it.
func growScratch(scratch []byte, need int) []byte {
	n := len(scratch) + need
	if n <= 0 {
		return scratch
	}
	return make([]byte, nextPowerOfTwo(n))
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
