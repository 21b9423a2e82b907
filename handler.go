// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"github.com/madplan/apix/request"
)

// A Handler handles the occurrence of an event during a request plan
// execution. Handlers run synchronously on the goroutine executing the
// plan.
type Handler interface {
	Handle(Event, *request.Execution)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers.
type HandlerFunc func(Event, *request.Execution)

// Handle calls f(evt, e).
func (f HandlerFunc) Handle(evt Event, e *request.Execution) {
	f(evt, e)
}

// A HandlerGroup holds one handler chain per event. Install it in a
// Client to extend the client with logging, metrics or tracing.
//
// A HandlerGroup must not be changed while a Client using it is
// executing plans.
type HandlerGroup struct {
	chains [numEvents][]Handler
}

// PushBack adds h to the back of the handler chain for evt.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("apix: nil handler")
	}
	if evt < 0 || int(evt) >= numEvents {
		panic("apix: unknown event")
	}

	g.chains[evt] = append(g.chains[evt], h)
}

// Len returns the number of handlers in the chain for evt.
func (g *HandlerGroup) Len(evt Event) int {
	return len(g.chains[evt])
}

func (g *HandlerGroup) run(evt Event, e *request.Execution) {
	for _, h := range g.chains[evt] {
		h.Handle(evt, e)
	}
}
