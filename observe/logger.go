// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package observe

import (
	"io"
	"os"
	"time"

	"github.com/madplan/apix"
	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/rs/zerolog"
)

// NewLogger returns a logger writing to w, or to standard error if w is
// nil. If pretty is true, entries are formatted for humans, otherwise
// as JSON. An unknown level means info.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// LogHandlers installs handlers into g which log the progress of every
// execution: each attempt at debug level, attempt timeouts and failed
// executions at warn level, and successful executions at info level.
//
// Request headers are never logged, so credentials stay out of the log.
func LogHandlers(logger zerolog.Logger, g *apix.HandlerGroup) {
	g.PushBack(apix.BeforeAttempt, apix.HandlerFunc(func(_ apix.Event, e *request.Execution) {
		logger.Debug().
			Str("request_id", e.ID).
			Str("method", e.Plan.Method).
			Str("url", target(e)).
			Int("attempt", e.Attempt).
			Msg("attempt started")
	}))
	g.PushBack(apix.AfterAttemptTimeout, apix.HandlerFunc(func(_ apix.Event, e *request.Execution) {
		logger.Warn().
			Str("request_id", e.ID).
			Int("attempt", e.Attempt).
			Int("timeouts", e.AttemptTimeouts).
			Msg("attempt timed out")
	}))
	g.PushBack(apix.AfterAttempt, apix.HandlerFunc(func(_ apix.Event, e *request.Execution) {
		evt := logger.Debug().
			Str("request_id", e.ID).
			Int("attempt", e.Attempt).
			Int("status", e.StatusCode())
		if e.Err != nil {
			evt = evt.Err(e.Err)
		}
		evt.Msg("attempt finished")
	}))
	g.PushBack(apix.AfterExecutionEnd, apix.HandlerFunc(func(_ apix.Event, e *request.Execution) {
		var evt *zerolog.Event
		if e.Err == nil {
			evt = logger.Info()
		} else {
			evt = logger.Warn().Err(e.Err).Stringer("kind", failure.KindOf(e.Err))
		}
		evt.Str("request_id", e.ID).
			Str("method", e.Plan.Method).
			Str("url", target(e)).
			Int("attempts", e.Attempt+1).
			Int("status", e.StatusCode()).
			Dur("duration", e.Duration()).
			Msg("execution ended")
	}))
}

func target(e *request.Execution) string {
	if e.Plan == nil || e.Plan.URL == nil {
		return ""
	}
	return e.Plan.URL.Redacted()
}
