// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package observe

import (
	"strconv"

	"github.com/madplan/apix"
	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "apix"

// Metrics holds the Prometheus collectors updated by the handlers
// Install adds to a handler group.
type Metrics struct {
	// Attempts counts finished attempts by status code. Attempts which
	// received no response are counted with status "none".
	Attempts *prometheus.CounterVec
	// AttemptTimeouts counts attempts which ended in a timeout.
	AttemptTimeouts prometheus.Counter
	// Executions counts ended executions by result: "success" or the
	// failure kind.
	Executions *prometheus.CounterVec
	// Duration observes execution durations in seconds, including
	// retry waits.
	Duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. It
// fails if any of them is already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "attempts_total",
				Help:      "Total number of HTTP request attempts",
			},
			[]string{"status"},
		),
		AttemptTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "attempt_timeouts_total",
				Help:      "Total number of HTTP request attempts which timed out",
			},
		),
		Executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "executions_total",
				Help:      "Total number of ended executions",
			},
			[]string{"result"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "execution_duration_seconds",
				Help:      "Execution duration in seconds, retry waits included",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Attempts, m.AttemptTimeouts, m.Executions, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Install adds the metric handlers to g.
func (m *Metrics) Install(g *apix.HandlerGroup) {
	g.PushBack(apix.AfterAttempt, apix.HandlerFunc(m.afterAttempt))
	g.PushBack(apix.AfterAttemptTimeout, apix.HandlerFunc(func(apix.Event, *request.Execution) {
		m.AttemptTimeouts.Inc()
	}))
	g.PushBack(apix.AfterExecutionEnd, apix.HandlerFunc(m.afterExecutionEnd))
}

func (m *Metrics) afterAttempt(_ apix.Event, e *request.Execution) {
	status := "none"
	if e.Response != nil {
		status = strconv.Itoa(e.StatusCode())
	}
	m.Attempts.WithLabelValues(status).Inc()
}

func (m *Metrics) afterExecutionEnd(_ apix.Event, e *request.Execution) {
	m.Executions.WithLabelValues(result(e.Err)).Inc()
	m.Duration.Observe(e.Duration().Seconds())
}

func result(err error) string {
	if err == nil {
		return "success"
	}
	if k := failure.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
