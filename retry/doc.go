// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry decides whether a failed attempt of an HTTP request
// execution is retried, and how long to wait before retrying.
//
// The default policy is an Evaluator: a bounded, status-aware policy
// which counts failures per request identifier in a tracker.Tracker. A
// 4XX response ends the execution with a client error, any other
// failure is retried after a fixed delay, and the execution stops once
// the retry budget is spent:
//
//	ev := retry.NewEvaluator(tracker.New(), 3, retry.NewFixedWaiter(3*time.Second))
//
// Stateless policies can be assembled with NewPolicy from a Decider and
// a Waiter. Both have constructors for common use cases:
//
//	decider := retry.Times(3).
//		And(retry.Before(5 * time.Second)).
//		And(retry.StatusCode(500).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, nil)
//	policy := retry.NewPolicy(decider, waiter)
package retry
