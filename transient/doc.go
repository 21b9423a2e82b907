// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies attempt errors into well known transient
// categories (timeout, connection refused, connection reset). The
// categories feed logging, metrics labels, and the retry.TransientErr
// decider.
package transient
