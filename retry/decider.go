// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/madplan/apix/request"
	"github.com/madplan/apix/transient"
)

// A Decider answers a yes/no question about the current state of an
// execution. Deciders drive stateless policies built with NewPolicy,
// and classify client errors for an Evaluator (Evaluator.Rejects).
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as deciders. It also provides the logical composition
// methods And, Or and Not.
type DeciderFunc func(e *request.Execution) bool

// ClientError is the default Evaluator.Rejects decider. It is true when
// the most recent attempt received a 4XX status code.
var ClientError = StatusRange(400, 499)

// ServerError is true when the most recent attempt received a 5XX
// status code.
var ServerError = StatusRange(500, 599)

// TransientErr is true when the most recent attempt's error falls in a
// transient category according to transient.Categorize. It only looks
// at the error, so it is false whenever a valid response was received.
var TransientErr DeciderFunc = func(e *request.Execution) bool {
	return transient.Categorize(e.Err) != transient.Not
}

// Decide calls f(e).
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And returns a decider which is true when both f and g are true. g is
// not evaluated if f is false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or returns a decider which is true when either f or g is true. g is
// not evaluated if f is true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Not returns the negation of f.
//
// For example, to have an Evaluator retry 429 Too Many Requests like a
// server error:
//
//	ev.Rejects = retry.ClientError.And(retry.StatusCode(429).Not())
func (f DeciderFunc) Not() DeciderFunc {
	return func(e *request.Execution) bool {
		return !f(e)
	}
}

// Times returns a decider which is true while the execution's zero-based
// attempt number is less than n, allowing up to n retries in a
// stateless policy.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Before returns a decider which is true while the execution has been
// running for less than d.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode returns a decider which is true when the most recent
// attempt received a response whose status code is one of ss.
func StatusCode(ss ...int) DeciderFunc {
	set := make(map[int]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return func(e *request.Execution) bool {
		if e.Response == nil {
			return false
		}
		_, ok := set[e.StatusCode()]
		return ok
	}
}

// StatusRange returns a decider which is true when the most recent
// attempt received a response whose status code lies in [lo, hi].
func StatusRange(lo, hi int) DeciderFunc {
	return func(e *request.Execution) bool {
		s := e.StatusCode()
		return e.Response != nil && s >= lo && s <= hi
	}
}
