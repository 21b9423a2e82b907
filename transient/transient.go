// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"syscall"
)

// A Category is the transience category of an attempt error, as
// reported by Categorize.
//
// Not means the error gives no particular reason to expect a retry to
// succeed. Every other category names a well known transient cause.
//
// Note that the retry evaluator treats every transport failure as
// transient whatever its category; categories are used for logging,
// metrics, and by the TransientErr retry decider.
type Category int

const (
	// Not indicates a nil error or one of no known transient category.
	Not Category = iota
	// Timeout indicates a client-side timeout: the error, or one of its
	// wrapped causes, has a Timeout method reporting true.
	Timeout
	// ConnRefused indicates the remote host refused the connection
	// (ECONNREFUSED), as happens while a service restarts.
	ConnRefused
	// ConnReset indicates the remote host reset an active connection
	// (ECONNRESET), or closed it before a complete response was read
	// (io.ErrUnexpectedEOF).
	ConnReset
)

var categoryNames = []string{"not", "timeout", "conn_refused", "conn_reset"}

// String returns a short snake_case name for the category, suitable for
// use as a metric label value.
func (c Category) String() string {
	if int(c) < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Categorize returns the transience category of err, looking through
// wrapped causes. A nil error is Not.
//
// Categorize never consults Temporary methods, whose semantics are not
// well defined.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return Timeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF):
		return ConnReset
	}

	return Not
}
