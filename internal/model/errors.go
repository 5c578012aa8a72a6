package model

import "fmt"

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// SlotUnavailableError means the requested start time is no longer a free
// slot at commit time. The caller can recover by re-querying slots.
type SlotUnavailableError struct {
	TutorID  int64
	StartsAt string
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s for tutor %d is not available", e.StartsAt, e.TutorID)
}

// InsufficientCreditsError carries the shortfall so a purchase flow can be
// offered to the student.
type InsufficientCreditsError struct {
	StudentID int64
	TutorID   int64
	Shortfall int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits for student %d with tutor %d: short %d", e.StudentID, e.TutorID, e.Shortfall)
}

// InvalidStateTransitionError marks an operation applied to an entity in a
// state that does not permit it. Not retryable.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// EmptyScheduleError means a contract expansion produced zero occurrences.
type EmptyScheduleError struct {
	Msg string
}

func (e *EmptyScheduleError) Error() string {
	if e.Msg == "" {
		return "schedule expansion produced no occurrences"
	}
	return "schedule expansion produced no occurrences: " + e.Msg
}
