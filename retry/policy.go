// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"github.com/madplan/apix/request"
)

// A Policy decides, after every failed attempt of an execution, whether
// the client should retry and how long it should wait first.
//
// The client calls Evaluate only for failed attempts: those which ended
// with a transport error or received a non-2XX status code. It never
// overrides the returned Decision.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Evaluate(e *request.Execution) Decision
}

// A Finisher is a Policy that keeps per-execution state. The client
// calls Finish when an execution ends without a terminal decision from
// the policy, so that the state can be released.
type Finisher interface {
	Finish(e *request.Execution)
}

// DefaultPolicy is the status-aware Evaluator with a retry budget of
// DefaultMaxAttempts, a fixed DefaultDelay between attempts, and the
// process-wide DefaultTracker.
var DefaultPolicy Policy = &Evaluator{}

// Never is a policy that never retries. It is useful if you want to use
// the other features of apix.Client but do not want retries.
var Never Policy = never{}

type never struct{}

func (never) Evaluate(_ *request.Execution) Decision {
	return Stop()
}

// NewPolicy composes a Decider and a Waiter into a stateless retry
// Policy. The policy retries after w.Wait(e) whenever d.Decide(e) is
// true, and otherwise stops.
//
// Stateless policies rely on Execution.Attempt rather than a tracker,
// for example:
//
//	p := retry.NewPolicy(
//		retry.Times(5).And(retry.ServerError.Or(retry.TransientErr)),
//		retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, nil))
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("apix/retry: nil decider")
	}
	if w == nil {
		panic("apix/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

type policy struct {
	decider Decider
	waiter  Waiter
}

func (p policy) Evaluate(e *request.Execution) Decision {
	if !p.decider.Decide(e) {
		return Stop()
	}
	return After(p.waiter.Wait(e))
}
