// services/activity.go
package services

import "time"

// ActivityStatus is the churn label derived from a customer's most recent
// debit. It is computed on every read and never stored.
type ActivityStatus string

const (
	ActivityActive  ActivityStatus = "active"
	ActivityIdle    ActivityStatus = "idle"
	ActivityPassive ActivityStatus = "passive"
)

// Band edges. A band includes its upper edge: exactly 7 days is active,
// exactly 30 days is idle.
const (
	ActiveWindow = 7 * 24 * time.Hour
	IdleWindow   = 30 * 24 * time.Hour
)

// ClassifyActivity labels a customer by the age of its last debit.
// nil (no debit ever) is passive. A debit in the future counts as active.
func ClassifyActivity(lastDebit *time.Time, now time.Time) ActivityStatus {
	if lastDebit == nil || lastDebit.IsZero() {
		return ActivityPassive
	}
	age := now.Sub(*lastDebit)
	switch {
	case age <= ActiveWindow:
		return ActivityActive
	case age <= IdleWindow:
		return ActivityIdle
	default:
		return ActivityPassive
	}
}

// ActivityCutoffs returns the timestamps equivalent to the band edges at now:
// last >= activeSince is active, activeSince > last >= idleSince is idle.
// SQL filters use these so they agree with ClassifyActivity.
func ActivityCutoffs(now time.Time) (activeSince, idleSince time.Time) {
	return now.Add(-ActiveWindow), now.Add(-IdleWindow)
}

// ParseActivityStatus validates a status filter value.
func ParseActivityStatus(s string) (ActivityStatus, bool) {
	switch ActivityStatus(s) {
	case ActivityActive, ActivityIdle, ActivityPassive:
		return ActivityStatus(s), true
	}
	return "", false
}
