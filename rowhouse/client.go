// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"context"
	"net/http"
)

// Param is one static name/value URL parameter attached to every request.
// Parameters keep their configuration order on the wire.
type Param struct {
	Name  string
	Value string
}

// Client holds connection-level settings for a ClickHouse-compatible HTTP
// endpoint. A Client is an immutable value: the With* methods return
// modified copies, and a Client may be shared freely between concurrent
// queries. The zero Client is not usable; construct with [NewClient].
type Client struct {
	baseURL     string
	database    string
	user        string
	password    string
	compression Compression
	options     []Param
	httpClient  *http.Client
	hook        QueryHook
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8123". The URL is validated at query time, before any
// network activity.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// WithDatabase returns a copy of the client that adds the database URL
// parameter to every request.
func (c *Client) WithDatabase(database string) *Client {
	cc := c.clone()
	cc.database = database
	return cc
}

// WithUser returns a copy of the client that authenticates as user via the
// X-ClickHouse-User header.
func (c *Client) WithUser(user string) *Client {
	cc := c.clone()
	cc.user = user
	return cc
}

// WithPassword returns a copy of the client that sends the password via the
// X-ClickHouse-Key header.
func (c *Client) WithPassword(password string) *Client {
	cc := c.clone()
	cc.password = password
	return cc
}

// WithCompression returns a copy of the client with the given response
// compression preference.
func (c *Client) WithCompression(compression Compression) *Client {
	cc := c.clone()
	cc.compression = compression
	return cc
}

// WithOption returns a copy of the client that appends one static URL
// parameter (e.g. max_execution_time) to every request, after the
// parameters this layer sets itself.
func (c *Client) WithOption(name, value string) *Client {
	cc := c.clone()
	cc.options = append(cc.options[:len(cc.options):len(cc.options)], Param{Name: name, Value: value})
	return cc
}

// WithHTTPClient returns a copy of the client using the given *http.Client
// for transport. Timeout, TLS, and pooling policy belong there.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cc := c.clone()
	cc.httpClient = hc
	return cc
}

// WithQueryHook returns a copy of the client with the given observability
// hook installed.
func (c *Client) WithQueryHook(hook QueryHook) *Client {
	cc := c.clone()
	cc.hook = hook
	return cc
}

func (c *Client) clone() *Client {
	cc := *c
	return &cc
}

// Query starts building a query from a template with `?` and `?fields`
// placeholders.
func (c *Client) Query(template string) *Query {
	return &Query{
		client: c,
		sql:    newSQLBuilder(template),
	}
}

// Ping checks server liveness with a trivial read-only query.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.Query("SELECT 1").execute(ctx, true)
	if err != nil {
		return err
	}
	err = res.drain()
	res.finish(err)
	return err
}
