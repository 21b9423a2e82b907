// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/madplan/apix/request"
)

// A Waiter specifies how long to wait before retrying a failed attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines. The client only consults a Waiter, through its policy,
// when a retry has been decided.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter waits a fixed DefaultDelay before every retry.
var DefaultWaiter = NewFixedWaiter(DefaultDelay)

// NewFixedWaiter constructs a Waiter that always returns d.
func NewFixedWaiter(d time.Duration) Waiter {
	if d < 0 {
		panic("apix/retry: negative wait")
	}
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing capped exponential
// backoff, optionally with "full jitter":
//
//	ceil := min(base * 2**attempt, max)
//
// If src is nil, Wait returns ceil. Otherwise Wait returns a random
// duration in [0, ceil) drawn from src.
//
// Base must be positive and max must be at least base.
func NewExpWaiter(base, max time.Duration, src rand.Source) Waiter {
	if base < 1 {
		panic("apix/retry: base must be positive")
	}
	if max < base {
		panic("apix/retry: max must be at least base")
	}
	w := &expWaiter{base: base, max: max}
	if src != nil {
		w.rand = rand.New(src)
	}
	return w
}

type expWaiter struct {
	base time.Duration
	max  time.Duration
	lock sync.Mutex
	rand *rand.Rand
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	ceil := w.max
	if e.Attempt < 63 {
		if c := w.base << uint(e.Attempt); c >= w.base && c < w.max {
			ceil = c
		}
	}
	if w.rand == nil {
		return ceil
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	return time.Duration(w.rand.Int63n(int64(ceil)))
}
