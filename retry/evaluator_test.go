// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"bytes"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/madplan/apix/tracker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewEvaluator(t *testing.T) {
	t.Run("Bad Args", func(t *testing.T) {
		assert.PanicsWithValue(t, "apix/retry: nil tracker", func() { NewEvaluator(nil, 3, DefaultWaiter) })
		assert.PanicsWithValue(t, "apix/retry: negative max attempts", func() { NewEvaluator(tracker.New(), -1, DefaultWaiter) })
		assert.PanicsWithValue(t, "apix/retry: nil waiter", func() { NewEvaluator(tracker.New(), 3, nil) })
	})
	t.Run("Normal", func(t *testing.T) {
		tr := tracker.New()
		ev := NewEvaluator(tr, 5, NewFixedWaiter(time.Second))
		assert.Same(t, tr, ev.Tracker)
		assert.Equal(t, 5, ev.MaxAttempts)
	})
}

func TestEvaluator_Evaluate(t *testing.T) {
	testCases := []struct {
		name      string
		prior     int
		status    int
		err       error
		body      string
		expKind   Kind
		expDelay  time.Duration
		expCount  int
		expStatus int
	}{
		{name: "first 503", status: 503, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 1},
		{name: "second 500", prior: 1, status: 500, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 2},
		{name: "third 502", prior: 2, status: 502, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 3},
		{name: "fourth 503", prior: 3, status: 503, expKind: DoNotRetry},
		{name: "budget beats 4XX", prior: 3, status: 404, expKind: DoNotRetry},
		{name: "budget beats 2XX", prior: 7, status: 200, expKind: DoNotRetry},
		{name: "404", status: 404, body: "no such post", expKind: DoNotRetryWithError, expStatus: 404},
		{name: "401 after retries", prior: 2, status: 401, expKind: DoNotRetryWithError, expStatus: 401},
		{name: "429", status: 429, expKind: DoNotRetryWithError, expStatus: 429},
		{name: "3XX", status: 302, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 1},
		{name: "1XX", prior: 1, status: 100, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 2},
		{name: "transport error", err: syscall.ECONNREFUSED, expKind: RetryAfterDelay, expDelay: DefaultDelay, expCount: 1},
		{name: "transport error at budget", prior: 3, err: syscall.ECONNRESET, expKind: DoNotRetry},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			tr := tracker.New()
			ev := NewEvaluator(tr, DefaultMaxAttempts, DefaultWaiter)
			for i := 0; i < testCase.prior; i++ {
				tr.Increment("r")
			}
			e := execution("r", testCase.status, testCase.body)
			e.Err = testCase.err

			d := ev.Evaluate(e)

			assert.Equal(t, testCase.expKind, d.Kind)
			assert.Equal(t, testCase.expDelay, d.Delay)
			assert.Equal(t, testCase.expCount, tr.Get("r"))
			if testCase.expKind == DoNotRetryWithError {
				require.Error(t, d.Err)
				assert.True(t, failure.IsKind(d.Err, failure.ClientRejected))
				var fe *failure.Error
				require.ErrorAs(t, d.Err, &fe)
				assert.Equal(t, testCase.expStatus, fe.StatusCode)
				if testCase.body != "" {
					assert.Equal(t, testCase.body, fe.Message)
				} else {
					assert.Equal(t, http.StatusText(testCase.expStatus), fe.Message)
				}
			} else {
				assert.NoError(t, d.Err)
			}
			if testCase.expCount == 0 {
				assert.Equal(t, 0, tr.Len())
			}
		})
	}
}

func TestEvaluator_ZeroValue(t *testing.T) {
	var ev Evaluator
	e := execution(t.Name(), 503, "")
	defer DefaultTracker.Remove(e.ID)

	d := ev.Evaluate(e)

	assert.Equal(t, After(DefaultDelay), d)
	assert.Equal(t, 1, DefaultTracker.Get(e.ID))
	ev.Finish(e)
	assert.Equal(t, 0, DefaultTracker.Get(e.ID))
}

func TestEvaluator_FinishSharedIdentifier(t *testing.T) {
	tr := tracker.New()
	ev := NewEvaluator(tr, 3, DefaultWaiter)
	failing := execution("shared", 503, "")
	ev.Evaluate(failing)
	ev.Evaluate(failing)

	for i := 0; i < 5; i++ {
		ev.Finish(execution("shared", 200, ""))
	}
	assert.Equal(t, 2, tr.Get("shared"))

	other := execution("shared", 503, "")
	ev.Evaluate(other)
	assert.Equal(t, 3, tr.Get("shared"))
	ev.Finish(other)
	assert.Equal(t, 2, tr.Get("shared"))

	assert.Equal(t, RetryAfterDelay, ev.Evaluate(failing).Kind)
	assert.Equal(t, DoNotRetry, ev.Evaluate(failing).Kind)
	assert.Equal(t, 0, tr.Len())
}

func TestEvaluator_Chain(t *testing.T) {
	tr := tracker.New()
	ev := NewEvaluator(tr, 3, NewFixedWaiter(10*time.Millisecond))
	e := execution("chain", 503, "")

	var kinds []Kind
	for {
		d := ev.Evaluate(e)
		kinds = append(kinds, d.Kind)
		if !d.Retry() {
			break
		}
		e.Attempt++
	}

	assert.Equal(t, []Kind{RetryAfterDelay, RetryAfterDelay, RetryAfterDelay, DoNotRetry}, kinds)
	assert.Equal(t, 0, tr.Len())
}

func TestEvaluator_IndependentIdentifiers(t *testing.T) {
	tr := tracker.New()
	ev := NewEvaluator(tr, 3, DefaultWaiter)

	ev.Evaluate(execution("a", 503, ""))
	ev.Evaluate(execution("a", 503, ""))
	ev.Evaluate(execution("b", 503, ""))
	ev.Evaluate(execution("c", 404, ""))

	assert.Equal(t, 2, tr.Get("a"))
	assert.Equal(t, 1, tr.Get("b"))
	assert.Equal(t, 0, tr.Get("c"))
	assert.Equal(t, 2, tr.Len())
}

func TestEvaluator_Rejects(t *testing.T) {
	tr := tracker.New()
	ev := NewEvaluator(tr, 3, DefaultWaiter)
	ev.Rejects = ClientError.And(StatusCode(http.StatusTooManyRequests).Not())

	d := ev.Evaluate(execution("r", 429, ""))
	assert.Equal(t, RetryAfterDelay, d.Kind)
	assert.Equal(t, 1, tr.Get("r"))

	d = ev.Evaluate(execution("r", 403, ""))
	assert.Equal(t, DoNotRetryWithError, d.Kind)
	assert.Equal(t, 0, tr.Get("r"))

	t.Run("outside 4XX", func(t *testing.T) {
		ev := NewEvaluator(tracker.New(), 3, DefaultWaiter)
		ev.Rejects = StatusCode(http.StatusNotImplemented, http.StatusMultipleChoices)
		for _, status := range []int{http.StatusNotImplemented, http.StatusMultipleChoices} {
			d := ev.Evaluate(execution("s", status, ""))
			require.Equal(t, DoNotRetryWithError, d.Kind)
			var fe *failure.Error
			require.ErrorAs(t, d.Err, &fe)
			assert.Equal(t, failure.ClientRejected, fe.Kind)
			assert.Equal(t, status, fe.StatusCode)
			assert.False(t, fe.Kind.Transient())
		}
	})
}

func TestEvaluator_Logger(t *testing.T) {
	var buf bytes.Buffer
	ev := NewEvaluator(tracker.New(), 3, DefaultWaiter)
	ev.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	ev.Evaluate(execution("logged", 503, ""))

	s := buf.String()
	assert.Contains(t, s, `"request_id":"logged"`)
	assert.Contains(t, s, `"failures":1`)
	assert.Contains(t, s, `"decision":"RetryAfterDelay(3s)"`)
}

func TestEvaluator_Properties(t *testing.T) {
	t.Run("budget spent", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			tr := tracker.New()
			ev := NewEvaluator(tr, DefaultMaxAttempts, DefaultWaiter)
			n := rapid.IntRange(DefaultMaxAttempts, 20).Draw(t, "n")
			status := rapid.IntRange(0, 599).Draw(t, "status")
			for i := 0; i < n; i++ {
				tr.Increment("id")
			}

			d := ev.Evaluate(execution("id", status, ""))

			if d.Kind != DoNotRetry {
				t.Fatalf("expected DoNotRetry, got %s", d)
			}
			if tr.Get("id") != 0 {
				t.Fatalf("entry not removed")
			}
		})
	})
	t.Run("client error", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			tr := tracker.New()
			ev := NewEvaluator(tr, DefaultMaxAttempts, DefaultWaiter)
			n := rapid.IntRange(0, DefaultMaxAttempts-1).Draw(t, "n")
			status := rapid.IntRange(400, 499).Draw(t, "status")
			for i := 0; i < n; i++ {
				tr.Increment("id")
			}

			d := ev.Evaluate(execution("id", status, ""))

			if d.Kind != DoNotRetryWithError || !failure.IsKind(d.Err, failure.ClientRejected) {
				t.Fatalf("expected client rejection, got %s", d)
			}
			if tr.Get("id") != 0 {
				t.Fatalf("entry not removed")
			}
		})
	})
	t.Run("transient", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			tr := tracker.New()
			ev := NewEvaluator(tr, DefaultMaxAttempts, DefaultWaiter)
			n := rapid.IntRange(0, DefaultMaxAttempts-1).Draw(t, "n")
			status := rapid.SampledFrom([]int{0, 100, 204, 301, 500, 502, 503, 504, 599}).Draw(t, "status")
			for i := 0; i < n; i++ {
				tr.Increment("id")
			}

			d := ev.Evaluate(execution("id", status, ""))

			if d != After(DefaultDelay) {
				t.Fatalf("expected RetryAfterDelay(3s), got %s", d)
			}
			if got := tr.Get("id"); got != n+1 {
				t.Fatalf("expected count %d, got %d", n+1, got)
			}
		})
	})
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "DoNotRetry", Stop().String())
	assert.Equal(t, "RetryAfterDelay(3s)", After(3*time.Second).String())
	assert.Equal(t, "DoNotRetryWithError(boom)", Reject(fmt.Errorf("boom")).String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.True(t, After(0).Retry())
	assert.False(t, Stop().Retry())
}

// execution builds an execution whose last attempt received status, or
// no response at all when status is zero.
func execution(id string, status int, body string) *request.Execution {
	e := &request.Execution{ID: id}
	if status != 0 {
		e.Response = &http.Response{StatusCode: status}
		e.Body = []byte(body)
	}
	return e
}
