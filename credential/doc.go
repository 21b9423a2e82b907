// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package credential defines the Store interface the request adapter
// reads bearer tokens from, along with two implementations: an
// in-memory MemoryStore and a YAML file backed FileStore.
package credential
