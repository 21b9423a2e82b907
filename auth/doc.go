// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth provides Adapter, which injects a bearer token from a
// credential.Store into each outgoing HTTP request attempt.
//
// Install an Adapter on apix.Client to have it run before every attempt,
// including retries:
//
//	store := &credential.MemoryStore{}
//	client := &apix.Client{
//		Adapter: auth.New(store, logger),
//	}
package auth
