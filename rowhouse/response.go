// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// responseChunkSize is the read size used when pulling chunks from the
// response body. The transport may deliver less per read; chunk boundaries
// are arbitrary either way.
const responseChunkSize = 8 * 1024

// maxErrorBodySize bounds how much of an error response body is read into
// a ServerError message.
const maxErrorBodySize = 64 * 1024

// response is a dispatched query's decoded body stream plus the bookkeeping
// to complete its observability hook exactly once.
type response struct {
	body     io.ReadCloser
	info     QueryInfo
	stats    QueryStatistics
	hook     QueryHook
	hookCtx  context.Context
	token    HookToken
	finished bool
}

// finish closes the body and completes the query hook. Safe to call more
// than once; only the first terminal error is reported.
func (r *response) finish(err error) {
	if r.finished {
		return
	}
	r.finished = true
	_ = r.body.Close()
	if r.hook != nil {
		r.hook.OnQueryEnd(r.hookCtx, r.token, r.info, &r.stats, err)
	}
}

// drain consumes the remainder of the body, surfacing any transport error
// that would otherwise be lost.
func (r *response) drain() error {
	n, err := io.Copy(io.Discard, r.body)
	r.stats.Bytes += n
	return err
}

// readAll accumulates the whole decoded body.
func (r *response) readAll() ([]byte, error) {
	data, err := io.ReadAll(r.body)
	r.stats.Bytes += int64(len(data))
	return data, err
}

// source exposes the body as a chunk sequence for a cursor.
func (r *response) source() chunkSource {
	return &bodySource{body: r.body}
}

// bodySource adapts an io.ReadCloser into a chunk sequence. Every Read call
// yields one chunk; each chunk is freshly allocated because the buffer list
// retains chunks until their rows are committed.
type bodySource struct {
	body    io.ReadCloser
	pending error
}

func (s *bodySource) next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending != nil {
		return nil, s.pending
	}
	for {
		p := make([]byte, responseChunkSize)
		n, err := s.body.Read(p)
		if n > 0 {
			if err != nil {
				s.pending = err
			}
			return p[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *bodySource) close() error {
	return s.body.Close()
}

// checkResponse turns a non-2xx HTTP response into a ServerError carrying
// the server's error text and exception code header.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()

	code := 0
	if v := resp.Header.Get(HeaderExceptionCode); v != "" {
		code, _ = strconv.Atoi(v)
	}
	return &ServerError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    strings.TrimSpace(string(body)),
	}
}
