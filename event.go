// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

// An Event identifies a point in a plan execution at which a Client runs
// the matching handler chain of its HandlerGroup.
type Event int

const (
	// BeforeExecutionStart occurs before the execution starts. Only the
	// execution's ID and Plan are set.
	BeforeExecutionStart Event = iota
	// BeforeAttempt occurs before each HTTP request attempt, after the
	// client's Adapter has run. The execution's Request is the request
	// that will be sent once all BeforeAttempt handlers have finished.
	//
	// Handlers may replace the Request or change its fields, but must
	// clone Header and URL before changing them because they may still
	// reference the plan's.
	BeforeAttempt
	// BeforeReadBody occurs when an attempt received a response, before
	// the response body is read. It fires whatever the status code.
	BeforeReadBody
	// AfterAttemptTimeout occurs after an attempt failed because its
	// timeout elapsed. The execution's AttemptTimeouts has already been
	// incremented.
	AfterAttemptTimeout
	// AfterAttempt occurs after every attempt, successful or not, and
	// before the retry policy is consulted. At least one of Response
	// and Err is set.
	AfterAttempt
	// AfterPlanTimeout occurs when the plan context's deadline is
	// exceeded, either during an attempt or while waiting to retry.
	// Err has been set to the final TransportFailure.
	AfterPlanTimeout
	// AfterExecutionEnd occurs after the execution ends. End and the
	// final Err are set.
	AfterExecutionEnd

	numEvents = int(AfterExecutionEnd) + 1
)

var eventNames = [numEvents]string{
	"BeforeExecutionStart",
	"BeforeAttempt",
	"BeforeReadBody",
	"AfterAttemptTimeout",
	"AfterAttempt",
	"AfterPlanTimeout",
	"AfterExecutionEnd",
}

// Events returns every event in the order in which they may occur.
func Events() []Event {
	evts := make([]Event, numEvents)
	for i := range evts {
		evts[i] = Event(i)
	}
	return evts
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[evt]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
