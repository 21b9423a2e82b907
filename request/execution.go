// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/madplan/apix/transient"
)

// An Execution represents the state of a single Plan execution.
//
// The client creates an Execution when it starts executing a plan,
// updates it as attempts are made, and returns it when the execution
// ends. Retry and timeout policies and event handlers receive the same
// Execution. They may store private data with SetValue but should treat
// the exported fields as read-only, with the exception of reasonable
// changes to Request before it is sent.
type Execution struct {
	// ID is the request identifier. It is assigned when the execution
	// starts and stays the same across every retry of the plan, so it
	// keys the retry attempt tracker.
	ID string

	// Plan specifies the HTTP request plan being executed. It is never
	// nil.
	Plan *Plan

	// Start is the start time of the execution.
	Start time.Time

	// End is the end time of the execution. It is the zero time until
	// the execution ends.
	End time.Time

	// Attempt is the zero-based number of the current HTTP request
	// attempt: zero on the initial attempt, one on the first retry, and
	// so on.
	Attempt int

	// AttemptTimeouts counts the attempts which ended in a timeout.
	AttemptTimeouts int

	// Request is the HTTP request to be made in the current attempt, or
	// already made in the last attempt.
	Request *http.Request

	// Response is the HTTP response received in the most recent
	// attempt. It is nil if that attempt ended without a response.
	Response *http.Response

	// Err is the error from the most recent attempt, or, once the
	// execution has ended, the error returned to the caller.
	//
	// While an attempt is in flight Err is nil. After an attempt it is
	// a *url.Error if no complete response was obtained. Once the
	// execution has ended it is nil on success and otherwise a
	// *failure.Error.
	Err error

	// Body is the complete response body read after the most recent
	// attempt.
	Body []byte

	data context.Context
}

// StatusCode returns the status code of the HTTP response from the
// most recent request attempt in the execution. If there is no HTTP
// response, 0 is returned.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the HTTP response headers from the most recent request
// attempt, or a nil header if there is no response.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		return nil
	}

	return e.Response.Header
}

// Succeeded reports whether the most recent attempt obtained a complete
// response with a 2XX status code.
func (e *Execution) Succeeded() bool {
	s := e.StatusCode()
	return e.Err == nil && s >= 200 && s <= 299
}

// Duration returns the duration of the execution: zero before it
// starts, End minus Start once it has ended, and the time elapsed since
// Start in between.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the execution has started.
func (e *Execution) Started() bool {
	return !e.Start.IsZero()
}

// Ended indicates whether the execution has ended.
func (e *Execution) Ended() bool {
	return !e.End.IsZero()
}

// Timeout indicates whether Err currently contains a timeout error,
// from either an attempt timeout or a plan timeout.
func (e *Execution) Timeout() bool {
	return transient.Categorize(e.Err) == transient.Timeout
}

// SetValue stores arbitrary data in the execution. The key follows the
// rules of context.WithValue: it must be non-nil, comparable, and should
// be of an unexported type to avoid collisions.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	if e.data == nil {
		return nil
	}

	return e.data.Value(key)
}
