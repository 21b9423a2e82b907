// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package apix provides an HTTP client for authenticated JSON APIs. Every
outgoing request carries a Bearer token read from a credential store,
and failed attempts are retried according to their outcome: client
errors are reported at once, while server errors and transport failures
are retried after a fixed delay until a small retry budget runs out.

Create a Client from configuration to begin making requests.

	cfg, err := config.Load("apix.yaml")
	...
	store := credential.NewFileStore(path, logger)
	client, err := apix.NewClient(cfg, store, logger)
	...
	e, err := client.Get("https://api.example.com/posts")
	...
	e, err := client.Execute(ctx, "POST", "https://api.example.com/posts",
		`{"title":"hello"}`)

The zero value Client is also ready to use. It sends unauthenticated
requests through http.DefaultClient and uses the default retry and
timeout policies.

Errors returned by the client are *failure.Error values. Use
failure.KindOf to tell an invalid target, a client rejection, an
exhausted retry budget and a transport failure apart:

	switch failure.KindOf(err) {
	case failure.ClientRejected:
		// The server answered 4XX. Retrying will not help.
	case failure.RetryBudgetExhausted:
		// Every attempt failed transiently.
	}

For control over the client's retry decisions and timing, set a custom
retry policy using package retry:

	client := &apix.Client{
		RetryPolicy: retry.NewEvaluator(tracker.New(), 5,
			retry.NewExpWaiter(250*time.Millisecond, 5*time.Second, nil)),
	}

For control over individual attempt timeouts, set a custom timeout
policy using package timeout:

	client := &apix.Client{
		TimeoutPolicy: timeout.Fixed(10 * time.Second),
	}

To hook into the fine-grained details of request execution, install a
handler into the appropriate handler chain:

	handlers := &apix.HandlerGroup{}
	handlers.PushBack(apix.BeforeAttempt, apix.HandlerFunc(
		func(_ apix.Event, e *request.Execution) {
			logger.Info().Int("attempt", e.Attempt).Msg("sending")
		}))
	client := &apix.Client{
		Handlers: handlers,
	}

Package observe provides ready-made handlers for structured logging,
Prometheus metrics and OpenTelemetry tracing.

To run many plans concurrently on a bounded number of workers, use a
Dispatcher:

	d := apix.NewDispatcher(client, 8, logger)
	defer d.Close()
	err := d.Execute(plan, onSuccess, onFailure)
*/
package apix
