// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"github.com/madplan/apix/failure"
	"golang.org/x/net/http/httpguts"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

const (
	nilCtxMsg = "apix/request: nil context"
)

// A Plan describes one logical HTTP request, which a client may turn
// into several HTTP request attempts if failed attempts are retried.
//
// The fields mirror the client-side fields of http.Request, except that
// the body is a pre-buffered []byte so it can be replayed on every
// attempt.
//
// A Plan has a context which controls the whole execution, including the
// wait between a failed attempt and its retry. Cancelling the context
// stops the execution and prevents any pending retry from firing.
type Plan struct {
	// ID optionally pins the request identifier used to track retry
	// attempts of this plan. If empty, the client generates a fresh
	// identifier for every execution.
	//
	// Executions sharing an identifier share one retry budget. A pinned
	// ID must not be shared by distinct requests running at the same
	// time.
	ID string

	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL specifies the absolute http or https URL to access.
	URL *urlpkg.URL

	// Header contains the request header fields to be sent with every
	// attempt. Attempt-specific headers, such as Authorization, are
	// added to a per-attempt clone and never written back here.
	Header http.Header

	// Body is the pre-buffered request body. A nil or empty body means
	// no request body is sent.
	Body []byte

	// Close stipulates whether to close the connection after each
	// attempt, as if Transport.DisableKeepAlives were set.
	Close bool

	// Host optionally overrides the Host header to send. If empty, the
	// value of URL.Host is sent.
	Host string

	ctx context.Context
}

// NewPlan wraps NewPlanWithContext using the background context.
func NewPlan(method, url string, body interface{}) (*Plan, error) {
	return NewPlanWithContext(context.Background(), method, url, body)
}

// NewPlanWithContext returns a new Plan given a method, URL, and
// optional body.
//
// The URL must be absolute, with an http or https scheme and a host.
// Any other URL, including one that fails to parse, produces a
// *failure.Error of kind failure.InvalidTarget.
//
// Parameter body may be nil (empty body), or it may be a string,
// []byte, io.Reader, or io.ReadCloser. If body is an io.Reader, it is
// read to the end and buffered into a []byte. If body is an
// io.ReadCloser, it is closed after buffering.
func NewPlanWithContext(ctx context.Context, method, url string, body interface{}) (*Plan, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("apix/request: invalid method %q", method)
	}
	u, err := ParseTarget(url)
	if err != nil {
		return nil, err
	}
	b, err := BodyBytes(body)
	if err != nil {
		return nil, err
	}
	return &Plan{
		ctx:    ctx,
		Method: method,
		URL:    u,
		Header: make(http.Header),
		Body:   b,
		Host:   u.Host,
	}, nil
}

// ParseTarget parses and validates a destination URL. It returns a
// *failure.Error of kind failure.InvalidTarget if url is not an absolute
// http or https URL with a host.
func ParseTarget(url string) (*urlpkg.URL, error) {
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, failure.Invalid(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, failure.Invalid(fmt.Errorf("unsupported scheme in %q", url))
	}
	u.Host = strings.TrimSuffix(u.Host, ":")
	if u.Host == "" {
		return nil, failure.Invalid(fmt.Errorf("missing host in %q", url))
	}
	return u, nil
}

// Context returns the request plan's context. The returned context is
// always non-nil; it defaults to the background context.
func (p *Plan) Context() context.Context {
	if p.ctx != nil {
		return p.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of p with its context changed to
// ctx, which must be non-nil.
func (p *Plan) WithContext(ctx context.Context) *Plan {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	p2 := new(Plan)
	*p2 = *p
	p2.ctx = ctx
	return p2
}

// ToRequest creates an HTTP request attempt for the plan. The context
// of the new request is set to ctx, which may not be nil.
//
// The request's Header references the plan's Header. Code that changes
// the header of a single attempt must clone it first.
func (p *Plan) ToRequest(ctx context.Context) *http.Request {
	r := template.WithContext(ctx)
	r.Method = p.Method
	r.URL = p.URL
	r.Header = p.Header
	if len(p.Body) > 0 {
		r.Body = io.NopCloser(bytes.NewReader(p.Body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(p.Body)), nil
		}
		r.ContentLength = int64(len(p.Body))
	}
	r.Close = p.Close
	r.Host = p.Host
	return r
}

func validMethod(method string) bool {
	return strings.IndexFunc(method, func(r rune) bool {
		return !httpguts.IsTokenRune(r)
	}) == -1
}
