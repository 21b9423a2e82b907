// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies giving the timeout of each attempt
// of an HTTP request execution. The client cancels an attempt whose
// timeout elapses before its response body has been read, and counts
// the attempt as a transport failure.
package timeout
