// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/madplan/apix"
	"github.com/madplan/apix/observe"
	"github.com/madplan/apix/request"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	method string
	data   string
	id     string
}

func newFetchCommand(a *app) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch one or more URLs",
		Long: `Fetch sends one request per URL, concurrently, and writes each response
body to standard output in argument order.

Failures are reported on standard error. The command fails if any request
failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "request body")
	cmd.Flags().StringVar(&opts.id, "id", "", "request identifier, suffixed with -<index> when several URLs are given (default: a fresh UUID per request)")

	return cmd
}

// planID derives the identifier of the i-th of n plans from the --id
// flag. Every URL gets its own identifier, so concurrent requests never
// share a retry budget.
func planID(id string, i, n int) string {
	if id == "" || n == 1 {
		return id
	}
	return id + "-" + strconv.Itoa(i)
}

type fetchResult struct {
	e   *request.Execution
	err error
}

func (a *app) fetch(cmd *cobra.Command, opts *fetchOptions, urls []string) error {
	store, stop := a.watchedStore()
	defer stop()
	client, err := apix.NewClient(a.cfg, store, a.logger)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()
	client.Handlers = &apix.HandlerGroup{}
	observe.LogHandlers(a.logger, client.Handlers)

	plans := make([]*request.Plan, len(urls))
	for i, u := range urls {
		var body interface{}
		if opts.data != "" {
			body = opts.data
		}
		p, err := request.NewPlanWithContext(cmd.Context(), opts.method, u, body)
		if err != nil {
			return fmt.Errorf("%s: %w", u, err)
		}
		p.ID = planID(opts.id, i, len(urls))
		if body != nil {
			p.Header.Set("Content-Type", a.cfg.HTTP.ContentType)
		}
		plans[i] = p
	}

	results := make([]fetchResult, len(plans))
	var wg sync.WaitGroup
	d := apix.NewDispatcher(client, a.cfg.Dispatch.Workers, a.logger)
	for i, p := range plans {
		wg.Add(1)
		err := d.Execute(p,
			func(e *request.Execution) {
				results[i] = fetchResult{e: e}
				wg.Done()
			},
			func(e *request.Execution, err error) {
				results[i] = fetchResult{e: e, err: err}
				wg.Done()
			})
		if err != nil {
			wg.Done()
			results[i] = fetchResult{err: err}
		}
	}
	wg.Wait()
	d.Close()

	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", urls[i], r.err)
			continue
		}
		if _, err := cmd.OutOrStdout().Write(r.e.Body); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(results))
	}

	return nil
}
