// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/madplan/apix/tracker"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts is the retry budget of an Evaluator whose
	// MaxAttempts is zero.
	DefaultMaxAttempts = 3
	// DefaultDelay is the fixed wait used by DefaultWaiter.
	DefaultDelay = 3 * time.Second
)

// DefaultTracker is the process-wide attempt tracker used by
// DefaultPolicy and by any Evaluator whose Tracker is nil.
var DefaultTracker = tracker.New()

// An Evaluator is a stateful retry Policy which counts failed attempts
// per request identifier (Execution.ID) in a tracker.Tracker.
//
// Evaluate applies these rules in order:
//
// 1. If MaxAttempts failures have already been counted for the
// identifier, the entry is removed and the decision is DoNotRetry. This
// ceiling applies whatever the new failure looks like.
//
// 2. If a response was received and Rejects says it is a client error
// (by default any 4XX status), the entry is removed and the decision is
// DoNotRetryWithError carrying a failure.ClientRejected error.
//
// 3. Otherwise the failure is transient (5XX, any other non-2XX status,
// or no response at all): the count is incremented and the decision is
// RetryAfterDelay with the delay given by Waiter.
//
// An Evaluator is safe for concurrent use by multiple goroutines. Its
// zero value uses DefaultTracker, DefaultMaxAttempts, DefaultWaiter and
// ClientError.
type Evaluator struct {
	// Tracker holds the attempt counts. If nil, DefaultTracker is used.
	Tracker *tracker.Tracker
	// MaxAttempts is the retry budget. If zero, DefaultMaxAttempts is
	// used.
	MaxAttempts int
	// Waiter gives the delay before each retry. If nil, DefaultWaiter
	// is used.
	Waiter Waiter
	// Rejects classifies received responses as non-retryable client
	// errors. If nil, ClientError is used. Every rejected response ends
	// with a failure.ClientRejected error, whatever its status.
	Rejects Decider
	// Logger receives one debug event per decision.
	Logger zerolog.Logger
}

// NewEvaluator returns an Evaluator using tracker t, retry budget
// maxAttempts and waiter w.
func NewEvaluator(t *tracker.Tracker, maxAttempts int, w Waiter) *Evaluator {
	if t == nil {
		panic("apix/retry: nil tracker")
	}
	if maxAttempts < 0 {
		panic("apix/retry: negative max attempts")
	}
	if w == nil {
		panic("apix/retry: nil waiter")
	}
	return &Evaluator{Tracker: t, MaxAttempts: maxAttempts, Waiter: w}
}

// Evaluate implements Policy.
func (ev *Evaluator) Evaluate(e *request.Execution) Decision {
	t := ev.tracker()
	n := t.Get(e.ID)

	var d Decision
	if n >= ev.maxAttempts() {
		t.Remove(e.ID)
		d = Stop()
	} else if e.Response != nil && ev.rejects().Decide(e) {
		t.Remove(e.ID)
		err := failure.Status(e.StatusCode(), failure.BodyMessage(e.Body))
		// A custom Rejects may reject statuses outside 4XX; the error is
		// terminal either way.
		err.Kind = failure.ClientRejected
		err.Err = e.Err
		d = Reject(err)
	} else {
		// 5XX, other unexpected statuses and transport failures are all
		// treated as transient.
		n = t.Increment(e.ID)
		e.SetValue(incrementsKey{}, increments(e)+1)
		d = After(ev.waiter().Wait(e))
	}

	ev.Logger.Debug().
		Str("request_id", e.ID).
		Int("attempt", e.Attempt).
		Int("failures", n).
		Int("status", e.StatusCode()).
		Stringer("decision", d).
		Msg("retry decision")
	return d
}

// Finish gives back the attempts counted for the execution, removing the
// tracker entry once nothing else holds it. The client calls Finish when
// an execution ends without a terminal decision, for example on success
// or cancellation, so the tracker only holds live chains.
//
// Only the execution's own failures are released: another execution
// still retrying under the same identifier keeps its count.
func (ev *Evaluator) Finish(e *request.Execution) {
	ev.tracker().Release(e.ID, increments(e))
	e.SetValue(incrementsKey{}, 0)
}

type incrementsKey struct{}

// increments returns how many times Evaluate incremented the tracker for
// this execution.
func increments(e *request.Execution) int {
	n, _ := e.Value(incrementsKey{}).(int)
	return n
}

func (ev *Evaluator) tracker() *tracker.Tracker {
	if ev.Tracker == nil {
		return DefaultTracker
	}
	return ev.Tracker
}

func (ev *Evaluator) maxAttempts() int {
	if ev.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return ev.MaxAttempts
}

func (ev *Evaluator) waiter() Waiter {
	if ev.Waiter == nil {
		return DefaultWaiter
	}
	return ev.Waiter
}

func (ev *Evaluator) rejects() Decider {
	if ev.Rejects == nil {
		return ClientError
	}
	return ev.Rejects
}
