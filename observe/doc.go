// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package observe provides event handlers which make client executions
visible: structured logs through zerolog, Prometheus metrics, and
OpenTelemetry spans.

Each facility installs itself into an apix.HandlerGroup:

	handlers := &apix.HandlerGroup{}
	observe.LogHandlers(logger, handlers)
	metrics, err := observe.NewMetrics(prometheus.DefaultRegisterer)
	...
	metrics.Install(handlers)
	observe.NewTracing(otel.GetTracerProvider(), otel.GetTextMapPropagator()).Install(handlers)
	client.Handlers = handlers
*/
package observe
