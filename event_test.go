// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package apix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvents(t *testing.T) {
	events := Events()
	assert.Len(t, events, numEvents)
	for i, evt := range events {
		assert.Equal(t, Event(i), evt)
	}
	assert.Equal(t, BeforeExecutionStart, events[0])
	assert.Equal(t, AfterExecutionEnd, events[len(events)-1])
}

func TestEvent_Name(t *testing.T) {
	assert.Equal(t, "BeforeExecutionStart", BeforeExecutionStart.Name())
	assert.Equal(t, "BeforeAttempt", BeforeAttempt.Name())
	assert.Equal(t, "BeforeReadBody", BeforeReadBody.Name())
	assert.Equal(t, "AfterAttemptTimeout", AfterAttemptTimeout.Name())
	assert.Equal(t, "AfterAttempt", AfterAttempt.Name())
	assert.Equal(t, "AfterPlanTimeout", AfterPlanTimeout.Name())
	assert.Equal(t, "AfterExecutionEnd", AfterExecutionEnd.String())
}
