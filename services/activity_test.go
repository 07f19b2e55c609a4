package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyActivity(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	day := 24 * time.Hour

	tests := []struct {
		name      string
		lastDebit *time.Time
		want      ActivityStatus
	}{
		{name: "never debited", lastDebit: nil, want: ActivityPassive},
		{name: "zero time", lastDebit: &time.Time{}, want: ActivityPassive},
		{name: "just now", lastDebit: ago(0), want: ActivityActive},
		{name: "exactly seven days", lastDebit: ago(7 * day), want: ActivityActive},
		{name: "just over seven days", lastDebit: ago(7*day + time.Second), want: ActivityIdle},
		{name: "exactly thirty days", lastDebit: ago(30 * day), want: ActivityIdle},
		{name: "just over thirty days", lastDebit: ago(30*day + time.Second), want: ActivityPassive},
		{name: "a year ago", lastDebit: ago(365 * day), want: ActivityPassive},
		{name: "clock skew into the future", lastDebit: ago(-time.Hour), want: ActivityActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyActivity(tt.lastDebit, now))
		})
	}
}

func TestActivityCutoffsAgreeWithClassifier(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	activeSince, idleSince := ActivityCutoffs(now)

	assert.Equal(t, ActivityActive, ClassifyActivity(&activeSince, now))
	before := activeSince.Add(-time.Nanosecond)
	assert.Equal(t, ActivityIdle, ClassifyActivity(&before, now))
	assert.Equal(t, ActivityIdle, ClassifyActivity(&idleSince, now))
	before = idleSince.Add(-time.Nanosecond)
	assert.Equal(t, ActivityPassive, ClassifyActivity(&before, now))
}

func TestParseActivityStatus(t *testing.T) {
	s, ok := ParseActivityStatus("idle")
	assert.True(t, ok)
	assert.Equal(t, ActivityIdle, s)

	_, ok = ParseActivityStatus("Active")
	assert.False(t, ok)
}
