package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionTrackerRoundsPercent(t *testing.T) {
	tracker := &CompletionTracker{TotalRequiredInputs: 3, CompletedInputs: 2}

	became := tracker.UpdateCompletionStatus()

	assert.False(t, became)
	assert.Equal(t, 67.0, tracker.CompletionPercent)
	assert.False(t, tracker.IsReadyToAdvance)

	tracker.CompletedInputs = 1
	tracker.UpdateCompletionStatus()
	assert.Equal(t, 33.0, tracker.CompletionPercent)
}

func TestCompletionTrackerReadyAtFullQuota(t *testing.T) {
	tracker := &CompletionTracker{TotalRequiredInputs: 3, CompletedInputs: 3}

	became := tracker.UpdateCompletionStatus()

	assert.True(t, became)
	assert.Equal(t, 100.0, tracker.CompletionPercent)
	assert.True(t, tracker.IsReadyToAdvance)
	require.NotNil(t, tracker.CompletedAt)

	// A second recompute reports no transition and keeps the timestamp.
	completedAt := *tracker.CompletedAt
	assert.False(t, tracker.UpdateCompletionStatus())
	assert.Equal(t, completedAt, *tracker.CompletedAt)
}

func TestCompletionTrackerPercentClamped(t *testing.T) {
	tracker := &CompletionTracker{TotalRequiredInputs: 2, CompletedInputs: 5}

	tracker.UpdateCompletionStatus()

	assert.Equal(t, 100.0, tracker.CompletionPercent)
	assert.True(t, tracker.IsReadyToAdvance)
}

func TestCompletionTrackerRoundedFullIsNotReady(t *testing.T) {
	// 299 of 300 rounds to 100 but the quota is not met.
	tracker := &CompletionTracker{TotalRequiredInputs: 300, CompletedInputs: 299}

	became := tracker.UpdateCompletionStatus()

	assert.False(t, became)
	assert.Equal(t, 100.0, tracker.CompletionPercent)
	assert.False(t, tracker.IsReadyToAdvance)
}
