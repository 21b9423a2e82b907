// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/madplan/apix/auth"
	"github.com/madplan/apix/config"
	"github.com/madplan/apix/credential"
	"github.com/madplan/apix/failure"
	"github.com/madplan/apix/request"
	"github.com/madplan/apix/retry"
	"github.com/madplan/apix/timeout"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// DefaultContentType is the Content-Type set by Client.Execute when the
// client has none configured.
const DefaultContentType = "application/json"

var emptyHandlers = HandlerGroup{}

// A Client is an HTTP client which authenticates every request attempt
// and retries failed attempts according to a status-aware policy. Its
// zero value is a valid configuration.
//
// The zero value client uses http.DefaultClient as the HTTPDoer,
// timeout.DefaultPolicy as the timeout policy, retry.DefaultPolicy as
// the retry policy, no Adapter and no event handlers. Use NewClient to
// build a client from configuration, with a credential store.
//
// On top of the HTTPDoer, Client:
//
// • buffers the entire response body into Execution.Body;
//
// • runs the Adapter on every attempt just before it is sent;
//
// • sets a timeout on every attempt using the timeout policy;
//
// • consults the retry policy after every failed attempt and honors its
// decision exactly, waiting out any retry delay on a timer which is
// abandoned if the plan context ends; and
//
// • runs event handlers at designated points of the attempt loop.
//
// Client is safe for concurrent use by multiple goroutines. Each call to
// Do runs its whole execution on the calling goroutine, so concurrent
// executions never delay each other.
type Client struct {
	// HTTPDoer sends HTTP requests and receives responses. If nil,
	// http.DefaultClient is used.
	HTTPDoer HTTPDoer
	// RetryPolicy decides what to do after a failed attempt. If nil,
	// retry.DefaultPolicy is used.
	RetryPolicy retry.Policy
	// TimeoutPolicy gives the timeout of each attempt. If nil,
	// timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Adapter, if not nil, prepares every attempt before the
	// BeforeAttempt handlers run.
	Adapter Adapter
	// ContentType is the Content-Type set by Execute. If empty,
	// DefaultContentType is used.
	ContentType string
	// Handlers are run when events occur during an execution. If nil,
	// no handlers are run.
	Handlers *HandlerGroup
}

// NewClient builds a Client from cfg, authenticating requests with the
// token found in store. If cfg is nil the default configuration is
// used. If store is nil requests are sent without credentials.
//
// The client counts failed attempts in retry.DefaultTracker. The logger
// receives retry decisions at debug level and credential warnings.
func NewClient(cfg *config.Config, store credential.Store, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HTTP.ForceHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("apix: failed to configure http2: %w", err)
		}
	}

	ev := retry.NewEvaluator(retry.DefaultTracker, cfg.Retry.MaxAttempts, retry.NewFixedWaiter(cfg.Retry.Delay))
	ev.Logger = logger

	c := &Client{
		HTTPDoer:      &http.Client{Transport: transport},
		RetryPolicy:   ev,
		TimeoutPolicy: timeout.Fixed(cfg.Timeout.Attempt),
		ContentType:   cfg.HTTP.ContentType,
	}
	if store != nil {
		a := auth.New(store, logger)
		a.Service = cfg.Credential.Service
		a.Account = cfg.Credential.Account
		c.Adapter = a
	}

	return c, nil
}

// Do executes an HTTP request plan and returns the final execution
// state.
//
// The execution is identified by p.ID, or by a fresh UUID if p.ID is
// empty. The identifier keys the retry policy's attempt tracking, so
// plans which share an ID share a retry budget.
//
// After every failed attempt, that is one which ended without a
// complete response or received a non-2XX status code, the retry
// policy is consulted:
//
// • RetryAfterDelay: Do waits the delay, then makes another attempt;
//
// • DoNotRetryWithError: Do returns the decision's error, normally a
// *failure.Error of kind failure.ClientRejected;
//
// • DoNotRetry: Do returns a *failure.Error of kind
// failure.RetryBudgetExhausted wrapping the cause of the last failure.
//
// If the plan context ends before a 2XX response is obtained, Do returns
// a failure.TransportFailure wrapping a *url.Error, and no further
// attempt is made.
//
// The returned Execution is never nil, and the returned error is also
// stored in its Err field. On success Response and Body are both set.
func (c *Client) Do(p *request.Plan) (*request.Execution, error) {
	e := request.Execution{
		ID:   p.ID,
		Plan: p,
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	doer := c.doer()

	timeoutPolicy := c.TimeoutPolicy
	if timeoutPolicy == nil {
		timeoutPolicy = timeout.DefaultPolicy
	}

	retryPolicy := c.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = retry.DefaultPolicy
	}

	handlers := c.Handlers
	if handlers == nil {
		handlers = &emptyHandlers
	}
	handlers.run(BeforeExecutionStart, &e)
	e.Start = time.Now()

RetryLoop:
	for {
		c.sendAndReceive(&e, doer, handlers, timeoutPolicy)
		if e.Timeout() {
			e.AttemptTimeouts++
			handlers.run(AfterAttemptTimeout, &e)
		}
		handlers.run(AfterAttempt, &e)

		if e.Succeeded() {
			finish(retryPolicy, &e)
			break
		}
		if err := p.Context().Err(); err != nil {
			abandon(&e, err, handlers)
			finish(retryPolicy, &e)
			break
		}

		cause := classify(&e)
		d := retryPolicy.Evaluate(&e)
		if d.Kind == retry.DoNotRetryWithError {
			e.Err = d.Err
			if e.Err == nil {
				e.Err = cause
			}
			break
		} else if d.Kind != retry.RetryAfterDelay {
			e.Err = failure.Exhausted(e.Attempt+1, cause)
			break
		}

		timer := time.NewTimer(d.Delay)
		select {
		case <-timer.C:
		case <-p.Context().Done():
			timer.Stop()
			abandon(&e, p.Context().Err(), handlers)
			finish(retryPolicy, &e)
			break RetryLoop
		}
		e.Response = nil
		e.Err = nil
		e.Body = nil
		e.Attempt++
	}

	e.End = time.Now()
	handlers.run(AfterExecutionEnd, &e)
	return &e, e.Err
}

// Execute builds a plan for method and url with the given body, sets
// its Content-Type to the client's ContentType, and executes it with
// Do. An empty method means GET.
//
// Execute returns a *failure.Error of kind failure.InvalidTarget,
// without any network activity, if url is not a valid absolute http or
// https URL.
func (c *Client) Execute(ctx context.Context, method, url string, body interface{}) (*request.Execution, error) {
	p, err := request.NewPlanWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	p.Header.Set("Content-Type", c.contentType())
	return c.Do(p)
}

// Get issues a GET to the specified URL, using the same policies
// followed by Do.
func (c *Client) Get(url string) (*request.Execution, error) {
	return Get(c, url)
}

// Head issues a HEAD to the specified URL, using the same policies
// followed by Do.
func (c *Client) Head(url string) (*request.Execution, error) {
	return Head(c, url)
}

// Post issues a POST to the specified URL, using the same policies
// followed by Do.
func (c *Client) Post(url, contentType string, body interface{}) (*request.Execution, error) {
	return Post(c, url, contentType, body)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
func (c *Client) PostForm(url string, data url.Values) (*request.Execution, error) {
	return PostForm(c, url, data)
}

// CloseIdleConnections invokes the same method on the client's
// HTTPDoer, if it has one.
func (c *Client) CloseIdleConnections() {
	if ic, ok := c.doer().(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func (c *Client) sendAndReceive(e *request.Execution, doer HTTPDoer, handlers *HandlerGroup, timeoutPolicy timeout.Policy) {
	p := e.Plan
	ctx, cancel := context.WithTimeout(p.Context(), timeoutPolicy.Timeout(e))
	defer cancel()
	e.Request = p.ToRequest(ctx)
	if c.Adapter != nil {
		if r := c.Adapter.Adapt(e.Request); r != nil {
			e.Request = r
		}
	}
	handlers.run(BeforeAttempt, e)
	var err error
	e.Response, err = doer.Do(e.Request)
	if err != nil {
		e.Err = urlErrorWrap(p, err)
	} else {
		readBody(e, handlers)
	}
}

func (c *Client) doer() HTTPDoer {
	if c.HTTPDoer == nil {
		return http.DefaultClient
	}

	return c.HTTPDoer
}

func (c *Client) contentType() string {
	if c.ContentType == "" {
		return DefaultContentType
	}

	return c.ContentType
}

func readBody(e *request.Execution, handlers *HandlerGroup) {
	defer func() {
		_ = e.Response.Body.Close()
	}()
	handlers.run(BeforeReadBody, e)
	var err error
	e.Body, err = io.ReadAll(e.Response.Body)
	if err != nil {
		e.Err = urlErrorWrap(e.Plan, err)
	}
}

// classify describes why the most recent attempt failed.
func classify(e *request.Execution) error {
	if e.Err != nil {
		return failure.Transport(e.Err)
	}

	return failure.Status(e.StatusCode(), failure.BodyMessage(e.Body))
}

// abandon ends the execution because the plan context ended.
func abandon(e *request.Execution, err error, handlers *HandlerGroup) {
	e.Err = failure.Transport(urlErrorWrap(e.Plan, err))
	if err == context.DeadlineExceeded {
		handlers.run(AfterPlanTimeout, e)
	}
}

func finish(p retry.Policy, e *request.Execution) {
	if f, ok := p.(retry.Finisher); ok {
		f.Finish(e)
	}
}

func urlErrorWrap(p *request.Plan, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	return &url.Error{
		Op:  urlErrorOp(p.Method),
		URL: p.URL.String(),
		Err: err,
	}
}

// urlErrorOp matches the Op of errors returned by http.Client.
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
