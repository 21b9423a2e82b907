// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"fmt"
	"time"
)

// A Kind says what a client must do after a failed attempt.
type Kind int

const (
	// DoNotRetry ends the execution. The client reports the failure of
	// the last attempt as failure.RetryBudgetExhausted.
	DoNotRetry Kind = iota
	// DoNotRetryWithError ends the execution and surfaces the decision's
	// error to the caller unchanged.
	DoNotRetryWithError
	// RetryAfterDelay asks the client to wait at least the decision's
	// delay and then make another attempt.
	RetryAfterDelay
)

var kindNames = []string{"DoNotRetry", "DoNotRetryWithError", "RetryAfterDelay"}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// A Decision is the outcome of evaluating a failed attempt. Decisions
// are produced fresh for every evaluation and carry no state.
type Decision struct {
	Kind  Kind
	Delay time.Duration
	Err   error
}

// Stop returns a DoNotRetry decision.
func Stop() Decision {
	return Decision{Kind: DoNotRetry}
}

// Reject returns a DoNotRetryWithError decision carrying err.
func Reject(err error) Decision {
	return Decision{Kind: DoNotRetryWithError, Err: err}
}

// After returns a RetryAfterDelay decision.
func After(d time.Duration) Decision {
	return Decision{Kind: RetryAfterDelay, Delay: d}
}

// Retry reports whether the decision asks for another attempt.
func (d Decision) Retry() bool {
	return d.Kind == RetryAfterDelay
}

func (d Decision) String() string {
	switch d.Kind {
	case RetryAfterDelay:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Delay)
	case DoNotRetryWithError:
		return fmt.Sprintf("%s(%v)", d.Kind, d.Err)
	default:
		return d.Kind.String()
	}
}
