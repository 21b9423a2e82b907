// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracker provides Tracker, a concurrency-safe map from request
// identifier to the number of failed attempts made so far in that
// request's retry chain.
//
// Package tracker is consulted by the retry.Evaluator and has no
// dependencies on the rest of apix.
package tracker
