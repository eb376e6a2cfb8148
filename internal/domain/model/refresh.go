package model

import "time"

type RefreshState string

const (
	RefreshIdle               RefreshState = "idle"
	RefreshFetching           RefreshState = "fetching"
	RefreshPartiallyPopulated RefreshState = "partially_populated"
	RefreshFailed             RefreshState = "failed"
)

// RefreshStatus summarizes the most recent refresh cycle. State is the live
// state and returns to idle once a cycle ends; Outcome keeps how it ended.
type RefreshStatus struct {
	State       RefreshState `json:"state"`
	Outcome     RefreshState `json:"outcome,omitempty"`
	Trigger     string       `json:"trigger,omitempty"`
	LastAttempt time.Time    `json:"last_attempt,omitempty"`
	LastSuccess time.Time    `json:"last_success,omitempty"`
	Fetched     int          `json:"fetched"`
	Stored      int          `json:"stored"`
	Skipped     int          `json:"skipped"`
	LastError   string       `json:"last_error,omitempty"`
}
