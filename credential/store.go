// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package credential

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store.Read when no credential is stored at
// the requested coordinate.
var ErrNotFound = errors.New("apix/credential: not found")

// A Store reads opaque credential blobs addressed by a (service,
// account) coordinate.
//
// Implementations of Store must be safe for concurrent use by multiple
// goroutines. Read returns ErrNotFound if nothing is stored at the
// coordinate; the returned slice belongs to the caller.
type Store interface {
	Read(ctx context.Context, service, account string) ([]byte, error)
}

// A Writer is a Store that can also save and delete credentials.
//
// Save replaces any existing blob at the coordinate. Deleting an absent
// coordinate is not an error.
type Writer interface {
	Store
	Save(ctx context.Context, service, account string, data []byte) error
	Delete(ctx context.Context, service, account string) error
}

type coordinate struct {
	service string
	account string
}

// MemoryStore is an in-memory Writer. Its zero value is an empty store
// ready to use.
type MemoryStore struct {
	lock  sync.RWMutex
	blobs map[coordinate][]byte
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, service, account string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	b, ok := s.blobs[coordinate{service, account}]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

// Save implements Writer.
func (s *MemoryStore) Save(_ context.Context, service, account string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.blobs == nil {
		s.blobs = make(map[coordinate][]byte)
	}
	s.blobs[coordinate{service, account}] = clone(data)
	return nil
}

// Delete implements Writer.
func (s *MemoryStore) Delete(_ context.Context, service, account string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.blobs, coordinate{service, account})
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
