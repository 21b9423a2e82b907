// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package observe

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/madplan/apix"
	"github.com/madplan/apix/retry"
	"github.com/madplan/apix/tracker"
)

// statusServer answers with the statuses in order, repeating the last
// one, and remembers the request headers it saw.
type statusServer struct {
	*httptest.Server
	lock     sync.Mutex
	statuses []int
	headers  []http.Header
}

func newStatusServer(t *testing.T, statuses ...int) *statusServer {
	s := &statusServer{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		n := len(s.headers)
		s.headers = append(s.headers, r.Header.Clone())
		status := s.statuses[len(s.statuses)-1]
		if n < len(s.statuses) {
			status = s.statuses[n]
		}
		s.lock.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *statusServer) seen() []http.Header {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func newTestClient(server *statusServer, handlers *apix.HandlerGroup) *apix.Client {
	return &apix.Client{
		HTTPDoer:    server.Client(),
		RetryPolicy: retry.NewEvaluator(tracker.New(), 3, retry.NewFixedWaiter(time.Millisecond)),
		Handlers:    handlers,
	}
}
