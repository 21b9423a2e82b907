// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"github.com/madplan/apix/request"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ErrDispatcherClosed is returned by Dispatcher.Execute after Close.
var ErrDispatcherClosed = errors.New("apix: dispatcher closed")

// A Dispatcher executes plans asynchronously on a bounded pool of
// workers and reports each outcome through callbacks.
//
// Every plan runs with a context derived from both its own context and
// the dispatcher's, so Close stops pending retries from firing.
type Dispatcher struct {
	doer     Doer
	pool     pond.Pool
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight atomic.Int64
	logger   zerolog.Logger
}

// NewDispatcher returns a Dispatcher running plans on d with at most
// workers concurrent executions.
func NewDispatcher(d Doer, workers int, logger zerolog.Logger) *Dispatcher {
	if d == nil {
		panic("apix: nil doer")
	}
	if workers < 1 {
		panic("apix: workers must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		doer:   d,
		pool:   pond.NewPool(workers),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Execute queues p for execution. When the execution ends, onSuccess is
// called with the execution if it succeeded, and otherwise onFailure is
// called with the execution and its error. Either callback may be nil.
// Callbacks run on a worker goroutine.
//
// Execute returns ErrDispatcherClosed, and calls neither callback, if
// the dispatcher has been closed.
func (d *Dispatcher) Execute(p *request.Plan, onSuccess func(*request.Execution), onFailure func(*request.Execution, error)) error {
	if d.ctx.Err() != nil {
		return ErrDispatcherClosed
	}

	ctx, cancel := context.WithCancel(p.Context())
	stop := context.AfterFunc(d.ctx, cancel)
	p = p.WithContext(ctx)

	d.inFlight.Inc()
	err := d.pool.Go(func() {
		defer d.inFlight.Dec()
		defer stop()
		defer cancel()

		e, err := d.doer.Do(p)
		if err != nil {
			evt := d.logger.Debug().Str("url", p.URL.Redacted()).Err(err)
			if e != nil {
				evt = evt.Str("request_id", e.ID)
			}
			evt.Msg("dispatched execution failed")
			if onFailure != nil {
				onFailure(e, err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(e)
		}
	})
	if err != nil {
		d.inFlight.Dec()
		stop()
		cancel()
		return ErrDispatcherClosed
	}

	return nil
}

// InFlight returns the number of plans queued or executing.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Close cancels every queued and executing plan and waits for the
// workers to finish. Callbacks of cancelled executions still run.
func (d *Dispatcher) Close() {
	d.cancel()
	d.pool.StopAndWait()
}
