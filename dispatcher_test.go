// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/madplan/apix/retry"
	"github.com/madplan/apix/tracker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewDispatcher(t *testing.T) {
	assert.PanicsWithValue(t, "apix: nil doer", func() { NewDispatcher(nil, 1, zerolog.Nop()) })
	assert.PanicsWithValue(t, "apix: workers must be positive", func() { NewDispatcher(newMockDoer(t), 0, zerolog.Nop()) })
}

func TestDispatcher_Execute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m := newMockDoer(t)
		d := NewDispatcher(m, 2, zerolog.Nop())
		defer d.Close()
		expected := &request.Execution{ID: "ok"}
		m.On("Do", mock.Anything).Return(expected, nil).Once()
		p := newPlan(t)
		done := make(chan *request.Execution, 1)

		err := d.Execute(p, func(e *request.Execution) { done <- e }, func(*request.Execution, error) {
			t.Error("failure callback called")
		})

		require.NoError(t, err)
		select {
		case e := <-done:
			assert.Same(t, expected, e)
		case <-time.After(5 * time.Second):
			t.Fatal("success callback not called")
		}
		m.AssertExpectations(t)
	})
	t.Run("failure", func(t *testing.T) {
		m := newMockDoer(t)
		d := NewDispatcher(m, 2, zerolog.Nop())
		defer d.Close()
		cause := failure.Status(404, "")
		expected := &request.Execution{ID: "rejected"}
		m.On("Do", mock.Anything).Return(expected, cause).Once()
		type outcome struct {
			e   *request.Execution
			err error
		}
		done := make(chan outcome, 1)

		err := d.Execute(newPlan(t), nil, func(e *request.Execution, err error) {
			done <- outcome{e, err}
		})

		require.NoError(t, err)
		select {
		case o := <-done:
			assert.Same(t, expected, o.e)
			assert.Same(t, cause, o.err)
		case <-time.After(5 * time.Second):
			t.Fatal("failure callback not called")
		}
	})
	t.Run("nil callbacks", func(t *testing.T) {
		m := newMockDoer(t)
		d := NewDispatcher(m, 1, zerolog.Nop())
		m.On("Do", mock.Anything).Return(&request.Execution{}, errors.New("boom")).Once()
		m.On("Do", mock.Anything).Return(&request.Execution{}, nil).Once()

		require.NoError(t, d.Execute(newPlan(t), nil, nil))
		require.NoError(t, d.Execute(newPlan(t), nil, nil))
		d.Close()

		m.AssertExpectations(t)
		assert.Equal(t, int64(0), d.InFlight())
	})
}

func TestDispatcher_Concurrent(t *testing.T) {
	m := newMockDoer(t)
	d := NewDispatcher(m, 4, zerolog.Nop())
	m.On("Do", mock.Anything).Return(&request.Execution{}, nil).Times(50)
	var lock sync.Mutex
	n := 0

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Execute(newPlan(t), func(*request.Execution) {
			lock.Lock()
			n++
			lock.Unlock()
		}, nil))
	}
	d.Close()

	assert.Equal(t, 50, n)
	assert.Equal(t, int64(0), d.InFlight())
}

func TestDispatcher_Close(t *testing.T) {
	t.Run("cancels pending retry", func(t *testing.T) {
		mockDoer := newMockHTTPDoer(t)
		tr := tracker.New()
		cl := &Client{
			HTTPDoer:    mockDoer,
			RetryPolicy: retry.NewEvaluator(tr, 3, retry.NewFixedWaiter(time.Hour)),
			Handlers:    &HandlerGroup{},
		}
		waiting := make(chan struct{})
		cl.Handlers.PushBack(AfterAttempt, HandlerFunc(func(Event, *request.Execution) {
			close(waiting)
		}))
		mockDoer.On("Do", mock.Anything).Return(response(503, ""), nil).Once()
		d := NewDispatcher(cl, 1, zerolog.Nop())
		var got error
		require.NoError(t, d.Execute(newPlan(t), nil, func(_ *request.Execution, err error) {
			got = err
		}))
		<-waiting
		assert.Equal(t, int64(1), d.InFlight())

		start := time.Now()
		d.Close()

		assert.Less(t, time.Since(start), 5*time.Second)
		mockDoer.AssertExpectations(t)
		assert.Equal(t, failure.TransportFailure, failure.KindOf(got))
		assert.ErrorIs(t, got, context.Canceled)
		assert.Equal(t, 0, tr.Len())
		assert.Equal(t, int64(0), d.InFlight())
	})
	t.Run("rejects new plans", func(t *testing.T) {
		m := newMockDoer(t)
		d := NewDispatcher(m, 1, zerolog.Nop())
		d.Close()

		err := d.Execute(newPlan(t), nil, nil)

		assert.ErrorIs(t, err, ErrDispatcherClosed)
		m.AssertNotCalled(t, "Do", mock.Anything)
	})
}

func newPlan(t *testing.T) *request.Plan {
	p, err := request.NewPlan("GET", "http://example.com/posts", nil)
	require.NoError(t, err)
	return p
}
