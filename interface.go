// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"context"
	"net/http"
	"net/url"

	"github.com/madplan/apix/request"
)

// An HTTPDoer sends one HTTP request and returns its response, following
// the contract of Do on the standard library's http.Client. A
// *http.Client is the usual HTTPDoer.
type HTTPDoer interface {
	Do(r *http.Request) (*http.Response, error)
}

// An Adapter prepares each HTTP request attempt just before it is sent,
// typically by adding credentials. Adapt must not fail: if it cannot
// adapt the request it returns it unchanged.
//
// Adapt receives a request whose Header still references the plan's
// Header, so an Adapter must clone the header before changing it.
type Adapter interface {
	Adapt(r *http.Request) *http.Request
}

// Doer is the interface that wraps the basic Do method.
//
// Do executes an HTTP request plan and returns the final execution
// state, and an error if the logical request failed. Client implements
// Doer, and a Dispatcher runs plans on any Doer.
type Doer interface {
	Do(p *request.Plan) (*request.Execution, error)
}

// IdleCloser is the interface that wraps the basic CloseIdleConnections
// method. It closes connections sitting idle in a keep-alive state
// without interrupting connections in use.
type IdleCloser interface {
	CloseIdleConnections()
}

// Executor is the interface implemented by Client: Doer plus the
// convenience methods built on top of Do.
type Executor interface {
	Doer
	IdleCloser
	Execute(ctx context.Context, method, url string, body interface{}) (*request.Execution, error)
	Get(url string) (*request.Execution, error)
	Head(url string) (*request.Execution, error)
	Post(url, contentType string, body interface{}) (*request.Execution, error)
	PostForm(url string, data url.Values) (*request.Execution, error)
}

// Get uses d to issue a GET to the specified URL.
func Get(d Doer, url string) (*request.Execution, error) {
	p, err := request.NewPlan(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return d.Do(p)
}

// Head uses d to issue a HEAD to the specified URL.
func Head(d Doer, url string) (*request.Execution, error) {
	p, err := request.NewPlan(http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return d.Do(p)
}

// Post uses d to issue a POST to the specified URL with the given
// content type. The body may be any type accepted by request.BodyBytes.
func Post(d Doer, url, contentType string, body interface{}) (*request.Execution, error) {
	p, err := request.NewPlan(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	p.Header.Set("Content-Type", contentType)
	return d.Do(p)
}

// PostForm uses d to issue a POST to the specified URL, with data's keys
// and values URL-encoded as the request body.
func PostForm(d Doer, url string, data url.Values) (*request.Execution, error) {
	return Post(d, url, "application/x-www-form-urlencoded", data.Encode())
}
