// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package observe

import (
	"net/http"

	"github.com/madplan/apix"
	"github.com/madplan/apix/request"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of the tracer used by Tracing.
const TracerName = "github.com/madplan/apix/observe"

type spanKey struct{}

// Tracing records one client span per execution, with an event for
// every attempt, and propagates the span context to the server in the
// headers of every attempt.
type Tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracing returns a Tracing which creates spans from tp and injects
// them into requests with p.
func NewTracing(tp trace.TracerProvider, p propagation.TextMapPropagator) *Tracing {
	if tp == nil {
		panic("apix/observe: nil tracer provider")
	}
	if p == nil {
		panic("apix/observe: nil propagator")
	}
	return &Tracing{
		tracer:     tp.Tracer(TracerName),
		propagator: p,
	}
}

// Install adds the tracing handlers to g.
func (t *Tracing) Install(g *apix.HandlerGroup) {
	g.PushBack(apix.BeforeExecutionStart, apix.HandlerFunc(t.start))
	g.PushBack(apix.BeforeAttempt, apix.HandlerFunc(t.inject))
	g.PushBack(apix.AfterAttempt, apix.HandlerFunc(t.attempt))
	g.PushBack(apix.AfterExecutionEnd, apix.HandlerFunc(t.end))
}

func (t *Tracing) start(_ apix.Event, e *request.Execution) {
	_, span := t.tracer.Start(e.Plan.Context(), "HTTP "+e.Plan.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", e.Plan.Method),
			attribute.String("url.full", target(e)),
			attribute.String("apix.request_id", e.ID),
		))
	e.SetValue(spanKey{}, span)
}

// inject writes the span context into a copy of the attempt's header,
// leaving the plan's header untouched.
func (t *Tracing) inject(_ apix.Event, e *request.Execution) {
	span := spanOf(e)
	if span == nil || e.Request == nil {
		return
	}
	e.Request.Header = e.Request.Header.Clone()
	if e.Request.Header == nil {
		e.Request.Header = make(http.Header)
	}
	ctx := trace.ContextWithSpan(e.Request.Context(), span)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(e.Request.Header))
}

func (t *Tracing) attempt(_ apix.Event, e *request.Execution) {
	span := spanOf(e)
	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("apix.attempt", e.Attempt),
		attribute.Int("http.response.status_code", e.StatusCode()),
	}
	if e.Err != nil {
		attrs = append(attrs, attribute.String("error.message", e.Err.Error()))
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))
}

func (t *Tracing) end(_ apix.Event, e *request.Execution) {
	span := spanOf(e)
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("apix.attempts", e.Attempt+1),
		attribute.Int("http.response.status_code", e.StatusCode()),
	)
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, result(e.Err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.End))
}

func spanOf(e *request.Execution) trace.Span {
	span, _ := e.Value(spanKey{}).(trace.Span)
	return span
}
