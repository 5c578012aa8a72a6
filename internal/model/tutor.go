package model

import "time"

// Tutor holds the per-tutor scheduling and pricing configuration. The
// pricing collaborator owns these values; the engine only reads them.
type Tutor struct {
	ID                  int64     `json:"id"`
	CreditFactor        int64     `json:"credit_factor"`         // credits per base interval
	BaseIntervalMinutes int       `json:"base_interval_minutes"` // atomic scheduling granularity
	CreatedAt           time.Time `json:"created_at"`
}

// BaseInterval returns the tutor's base interval as a duration.
func (t *Tutor) BaseInterval() time.Duration {
	return time.Duration(t.BaseIntervalMinutes) * time.Minute
}

// SessionCredits computes the credit price of a session spanning slotCount
// base intervals.
func (t *Tutor) SessionCredits(slotCount int) int64 {
	return int64(slotCount) * t.CreditFactor
}
