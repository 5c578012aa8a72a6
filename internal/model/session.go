package model

import "time"

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusNoShow     SessionStatus = "no_show"
)

// Session is a single committed booking. Sessions are append-only: they are
// never deleted, only moved to a terminal status.
type Session struct {
	ID         int64         `json:"id"`
	TutorID    int64         `json:"tutor_id"`
	StudentID  int64         `json:"student_id"`
	ContractID *int64        `json:"contract_id"` // nil for ad-hoc bookings
	StartsAt   time.Time     `json:"starts_at"`
	SlotCount  int           `json:"slot_count"` // base intervals consumed
	Topic      string        `json:"topic"`      // opaque to the engine
	Status     SessionStatus `json:"status"`
	Credits    int64         `json:"credits"` // slot_count * tutor credit factor
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// FromContract reports whether the session was created by a recurring
// contract and therefore runs on the reserve/consume credit path.
func (s *Session) FromContract() bool {
	return s.ContractID != nil
}

// IsActive reports whether the session still occupies its time window.
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusScheduled || s.Status == SessionStatusInProgress
}

// CanCancel reports whether cancellation is a valid transition.
func (s *Session) CanCancel() bool {
	return s.IsActive()
}

// CanComplete reports whether completion is a valid transition.
func (s *Session) CanComplete() bool {
	return s.IsActive()
}

// EndsAt returns the exclusive end instant given the tutor's base interval.
func (s *Session) EndsAt(base time.Duration) time.Time {
	return s.StartsAt.Add(time.Duration(s.SlotCount) * base)
}
