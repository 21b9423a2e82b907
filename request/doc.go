// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Plan (describes a logical HTTP
request) and Execution (describes the execution of a Plan, including
every retry).

Create a plan and execute it with a client:

	p, err := request.NewPlan("GET", "https://example.com/posts", nil)
	...
	e, err := client.Do(p)
	...

A plan may carry a context. Cancelling it stops the execution, including
any wait before a retry:

	p, err := request.NewPlanWithContext(ctx, "POST", "https://example.com/posts", body)

An Execution is both the result of a client's plan executing methods and
the input to retry policies, timeout policies and event handlers. Its ID
field is the request identifier: it is unique per execution and stable
across the retries of that execution.
*/
package request
