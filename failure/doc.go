// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package failure defines the error taxonomy used by the apix client.
//
// Only two kinds ever reach the caller of a logical request as a
// terminal failure after an HTTP exchange: ClientRejected (4XX, never
// retried) and RetryBudgetExhausted (the retry budget ran out, whatever
// the cause of the last attempt). InvalidTarget is reported before any
// network activity. The remaining kinds describe individual attempts
// and are only visible wrapped inside RetryBudgetExhausted.
package failure
