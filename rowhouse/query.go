// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

// maxQueryLenForGet is the longest final query text still dispatched as a
// GET request. Longer read-only queries and every mutating statement go
// over POST, avoiding URL length limits and GET caching side effects.
const maxQueryLenForGet = 8192

// Query is a parameterized query under construction, bound to the client
// that created it.
type Query struct {
	client *Client
	sql    *sqlBuilder
}

// Bind appends values, in order, to the query's `?` placeholders. Each
// value is escaped as a typed literal, or as a quoted identifier for
// [Identifier] values. The bound count must exactly match the `?` count in
// the template or execution fails before dispatch.
func (q *Query) Bind(values ...any) *Query {
	for _, v := range values {
		q.sql.bindArg(v)
	}
	return q
}

// Exec executes the query without expecting rows back, draining the
// response to surface late server errors.
func (q *Query) Exec(ctx context.Context) error {
	res, err := q.execute(ctx, false)
	if err != nil {
		return err
	}
	err = res.drain()
	res.finish(err)
	return err
}

// Fetch executes the query read-only and returns a cursor over rows of T.
// The row type's column manifest is bound to the `?fields` placeholder and
// ` FORMAT RowBinary` is appended to the final text. The context must stay
// valid while the cursor is consumed.
func Fetch[T any](ctx context.Context, q *Query) (*Cursor[T], error) {
	man, err := manifestOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	q.sql.bindFields(man.names())
	q.sql.appendText(" FORMAT RowBinary")

	res, err := q.execute(ctx, true)
	if err != nil {
		return nil, err
	}
	return newCursor[T](res.source(), &res.stats, res.finish)
}

// FetchOne executes the query and returns its single row, or
// [ErrRowNotFound] when it produced none.
func FetchOne[T any](ctx context.Context, q *Query) (T, error) {
	var zero T
	row, err := FetchOptional[T](ctx, q)
	if err != nil {
		return zero, err
	}
	if row == nil {
		return zero, ErrRowNotFound
	}
	return *row, nil
}

// FetchOptional executes the query and returns its first row, or nil when
// it produced none.
func FetchOptional[T any](ctx context.Context, q *Query) (*T, error) {
	cursor, err := Fetch[T](ctx, q)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	return cursor.Next(ctx)
}

// FetchAll executes the query and materializes every row.
func FetchAll[T any](ctx context.Context, q *Query) ([]T, error) {
	cursor, err := Fetch[T](ctx, q)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var rows []T
	for {
		row, err := cursor.Next(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, *row)
	}
}

// FetchRaw executes the query like [Fetch] but returns the accumulated
// response bytes without decoding rows.
func FetchRaw[T any](ctx context.Context, q *Query) ([]byte, error) {
	man, err := manifestOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	q.sql.bindFields(man.names())
	q.sql.appendText(" FORMAT RowBinary")

	res, err := q.execute(ctx, true)
	if err != nil {
		return nil, err
	}
	data, err := res.readAll()
	res.finish(err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// execute finishes the query text, builds the request, and dispatches it.
// Request shape: GET only when the operation is read-only and the query
// text is at or below maxQueryLenForGet; the query travels as the POST body
// or the query= URL parameter accordingly. URL parameters are written in a
// fixed order with anything already on the base URL cleared first.
func (q *Query) execute(ctx context.Context, readOnly bool) (*response, error) {
	query, err := q.sql.finish()
	if err != nil {
		return nil, err
	}
	c := q.client

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &InvalidParamsError{Err: err}
	}

	usePost := !readOnly || len(query) > maxQueryLenForGet

	var params []Param
	if c.database != "" {
		params = append(params, Param{ParamDatabase, c.database})
	}
	if usePost && readOnly {
		params = append(params, Param{ParamReadonly, "1"})
	}
	if c.compression != CompressionNone {
		params = append(params, Param{ParamCompress, "1"})
	}
	if !usePost {
		params = append(params, Param{ParamQuery, query})
	}
	params = append(params, c.options...)
	u.RawQuery = encodeParams(params)

	method := http.MethodGet
	var body io.Reader
	if usePost {
		method = http.MethodPost
		body = strings.NewReader(query)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &InvalidParamsError{Err: err}
	}
	if usePost {
		req.ContentLength = int64(len(query))
	} else {
		req.ContentLength = 0
	}
	if c.user != "" {
		req.Header.Set(HeaderUser, c.user)
	}
	if c.password != "" {
		req.Header.Set(HeaderKey, c.password)
	}
	if coding := c.compression.contentCoding(); coding != "" {
		req.Header.Set("Accept-Encoding", coding)
	}

	info := QueryInfo{
		Query:    query,
		Method:   method,
		ReadOnly: readOnly,
		Database: c.database,
		Headers:  map[string]string{},
	}
	hookCtx := ctx
	var token HookToken
	if c.hook != nil {
		hookCtx, token = c.hook.OnQueryStart(ctx, info)
		for k, v := range info.Headers {
			req.Header.Set(k, v)
		}
		req = req.WithContext(hookCtx)
	}
	fail := func(err error) error {
		if c.hook != nil {
			c.hook.OnQueryEnd(hookCtx, token, info, &QueryStatistics{}, err)
		}
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fail(err)
	}
	decoded, err := decompressBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fail(err)
	}

	return &response{
		body:    decoded,
		info:    info,
		hook:    c.hook,
		hookCtx: hookCtx,
		token:   token,
	}, nil
}

// encodeParams renders URL parameters preserving their order, which
// url.Values would not.
func encodeParams(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
