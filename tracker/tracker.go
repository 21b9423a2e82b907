// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tracker

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultStripes is the number of lock stripes used by New.
const DefaultStripes = 32

// A Tracker counts failed attempts per request identifier.
//
// A Tracker is safe for concurrent use by multiple goroutines. Keys are
// spread across a fixed set of stripes, each guarded by its own mutex,
// so operations on keys in different stripes never contend, and
// operations on the same key are serialized (no lost updates).
//
// Every key present in a Tracker has a count of at least one. There is
// no teardown: entries disappear as callers Remove them.
type Tracker struct {
	stripes []stripe
}

type stripe struct {
	lock     sync.Mutex
	attempts map[string]int
}

// New returns an empty Tracker with DefaultStripes stripes.
func New() *Tracker {
	return NewWithStripes(DefaultStripes)
}

// NewWithStripes returns an empty Tracker with n lock stripes. A value
// of 1 gives a single lock guarding the whole map.
func NewWithStripes(n int) *Tracker {
	if n < 1 {
		panic("apix/tracker: stripes must be positive")
	}
	t := &Tracker{stripes: make([]stripe, n)}
	for i := range t.stripes {
		t.stripes[i].attempts = make(map[string]int)
	}
	return t
}

// Get returns the attempt count for key, or zero if key is absent.
func (t *Tracker) Get(key string) int {
	s := t.stripe(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.attempts[key]
}

// Increment adds one to the attempt count for key, creating the entry
// if it is absent, and returns the new count.
func (t *Tracker) Increment(key string) int {
	s := t.stripe(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	n := s.attempts[key] + 1
	s.attempts[key] = n
	return n
}

// Remove deletes the entry for key. Removing an absent key does nothing.
func (t *Tracker) Remove(key string) {
	s := t.stripe(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.attempts, key)
}

// Release subtracts n from the attempt count for key, deleting the
// entry once the count reaches zero. Releasing an absent key, or a
// non-positive n, does nothing.
func (t *Tracker) Release(key string, n int) {
	if n <= 0 {
		return
	}
	s := t.stripe(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	left, ok := s.attempts[key]
	if !ok {
		return
	}
	if left -= n; left > 0 {
		s.attempts[key] = left
	} else {
		delete(s.attempts, key)
	}
}

// Len returns the number of keys currently tracked.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.stripes {
		s := &t.stripes[i]
		s.lock.Lock()
		n += len(s.attempts)
		s.lock.Unlock()
	}
	return n
}

func (t *Tracker) stripe(key string) *stripe {
	if len(t.stripes) == 1 {
		return &t.stripes[0]
	}
	return &t.stripes[xxh3.HashString(key)%uint64(len(t.stripes))]
}
