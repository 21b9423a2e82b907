// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package failure

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxMessageLen = 256

// A Kind is the category of a failed logical HTTP request, or of one
// failed attempt within it.
type Kind int

const (
	// InvalidTarget indicates the destination URL was malformed. It is
	// detected before any network activity and is never retried.
	InvalidTarget Kind = iota + 1
	// TransportFailure indicates no HTTP response was obtained, for
	// example because the connection was refused or timed out. It is
	// treated as transient.
	TransportFailure
	// ClientRejected indicates a 4XX status code. The request itself is
	// invalid (or unauthorized) so it is never retried.
	ClientRejected
	// ServerTransient indicates a 5XX status code, presumed transient.
	ServerTransient
	// UnexpectedStatus indicates a non-2XX status code outside both the
	// 4XX and 5XX ranges, for example a redirect the HTTPDoer did not
	// follow. It is treated as transient.
	UnexpectedStatus
	// RetryBudgetExhausted indicates the retry budget for the logical
	// request was used up. The error wraps the cause of the final
	// failed attempt.
	RetryBudgetExhausted
)

var kindNames = map[Kind]string{
	InvalidTarget:        "InvalidTarget",
	TransportFailure:     "TransportFailure",
	ClientRejected:       "ClientRejected",
	ServerTransient:      "ServerTransient",
	UnexpectedStatus:     "UnexpectedStatus",
	RetryBudgetExhausted: "RetryBudgetExhausted",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Transient reports whether a failure of this kind may succeed on retry.
func (k Kind) Transient() bool {
	return k == TransportFailure || k == ServerTransient || k == UnexpectedStatus
}

// An Error describes why a logical HTTP request, or an attempt within
// it, failed.
//
// StatusCode is zero unless an HTTP response was received. Attempts is
// only set on RetryBudgetExhausted errors and counts the attempts made
// in the execution.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ClientRejected, ServerTransient, UnexpectedStatus:
		if e.Message != "" {
			return fmt.Sprintf("apix: %s: status %d: %s", e.Kind, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("apix: %s: status %d", e.Kind, e.StatusCode)
	case RetryBudgetExhausted:
		if e.Err != nil {
			return fmt.Sprintf("apix: %s after %d attempts: %v", e.Kind, e.Attempts, e.Err)
		}
		return fmt.Sprintf("apix: %s after %d attempts", e.Kind, e.Attempts)
	default:
		if e.Err != nil {
			return fmt.Sprintf("apix: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("apix: %s", e.Kind)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying cause is a timeout.
func (e *Error) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Invalid returns an InvalidTarget error wrapping err.
func Invalid(err error) *Error {
	return &Error{Kind: InvalidTarget, Err: err}
}

// Transport returns a TransportFailure error wrapping err.
func Transport(err error) *Error {
	return &Error{Kind: TransportFailure, Err: err}
}

// Status classifies a non-2XX HTTP status code. The message should be a
// short human readable explanation, typically the response body; if it
// is empty the standard status text is used.
func Status(code int, message string) *Error {
	if message == "" {
		message = http.StatusText(code)
	}
	k := UnexpectedStatus
	switch {
	case code >= 400 && code <= 499:
		k = ClientRejected
	case code >= 500 && code <= 599:
		k = ServerTransient
	}
	return &Error{Kind: k, StatusCode: code, Message: message}
}

// BodyMessage extracts a short human readable message from a response
// body for use with Status. It returns the empty string if the body is
// not text.
func BodyMessage(body []byte) string {
	if !utf8.Valid(body) {
		return ""
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxMessageLen {
		s = s[:maxMessageLen]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}

// Exhausted returns a RetryBudgetExhausted error wrapping the cause of
// the final failed attempt.
func Exhausted(attempts int, cause error) *Error {
	e := &Error{Kind: RetryBudgetExhausted, Attempts: attempts, Err: cause}
	var fe *Error
	if errors.As(cause, &fe) {
		e.StatusCode = fe.StatusCode
	}
	return e
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// zero if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsKind reports whether any *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == k {
			return true
		}
		err = fe.Err
	}
	return false
}
