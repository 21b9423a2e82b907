// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"time"

	"github.com/madplan/apix/request"
)

// DefaultAttempt is the attempt timeout of DefaultPolicy.
const DefaultAttempt = 30 * time.Second

// A Policy gives the timeout of the next request attempt of an
// execution, whether it is the initial attempt or a retry.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Timeout(e *request.Execution) time.Duration
}

// DefaultPolicy allows every attempt DefaultAttempt to complete,
// including reading the response body.
var DefaultPolicy Policy = Fixed(DefaultAttempt)

// Infinite never times out an attempt. The plan context can still end
// the execution.
var Infinite Policy = Fixed(math.MaxInt64)

// Fixed returns a policy giving every attempt the timeout d.
func Fixed(d time.Duration) Policy {
	return fixed(d)
}

type fixed time.Duration

func (p fixed) Timeout(_ *request.Execution) time.Duration {
	return time.Duration(p)
}

// Adaptive returns a policy that lengthens the timeout after attempts
// time out.
//
// The initial attempt, and any retry following an attempt that did not
// time out, get the usual timeout. A retry following a timed out
// attempt gets after[k-1], where k counts the timed out attempts of the
// execution so far; the last element of after is reused once k exceeds
// its length. For example:
//
//	p := timeout.Adaptive(2*time.Second, 10*time.Second, 30*time.Second)
//
// After the first attempt timeout p gives 10 seconds, and after any
// later one 30 seconds.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	return &adaptive{usual: usual, after: append([]time.Duration(nil), after...)}
}

type adaptive struct {
	usual time.Duration
	after []time.Duration
}

func (p *adaptive) Timeout(e *request.Execution) time.Duration {
	if len(p.after) == 0 || e.AttemptTimeouts == 0 || !e.Timeout() {
		return p.usual
	}

	i := e.AttemptTimeouts - 1
	if i >= len(p.after) {
		i = len(p.after) - 1
	}

	return p.after[i]
}
