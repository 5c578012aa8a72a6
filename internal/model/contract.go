package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusAccepted  ContractStatus = "accepted"
	ContractStatusRejected  ContractStatus = "rejected"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusCompleted ContractStatus = "completed"
)

// Contract is a recurring booking agreement: a date range crossed with a
// weekday set and a time of day, expanded into one Session per occurrence
// once the tutor accepts.
type Contract struct {
	ID              int64          `json:"id"`
	PublicID        uuid.UUID      `json:"public_id"`
	TutorID         int64          `json:"tutor_id"`
	StudentID       int64          `json:"student_id"`
	StartDate       time.Time      `json:"start_date"` // inclusive, UTC midnight
	EndDate         time.Time      `json:"end_date"`   // inclusive, UTC midnight
	Weekdays        []int          `json:"weekdays"`   // 0 = Sunday, 6 = Saturday
	StartMinute     int            `json:"start_minute"`
	SlotCount       int            `json:"slot_count"`
	Topic           string         `json:"topic"`
	TotalCredits    int64          `json:"total_credits"`
	UsedCredits     int64          `json:"used_credits"`
	ReservedCredits int64          `json:"reserved_credits"`
	Status          ContractStatus `json:"status"`
	Reason          string         `json:"reason"` // rejection or cancellation reason
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsPending checks if the contract awaits the tutor's response.
func (c *Contract) IsPending() bool {
	return c.Status == ContractStatusPending
}

// IsAccepted checks if the contract is running.
func (c *Contract) IsAccepted() bool {
	return c.Status == ContractStatusAccepted
}

// IsTerminal reports whether no further transition is possible.
func (c *Contract) IsTerminal() bool {
	switch c.Status {
	case ContractStatusRejected, ContractStatusCancelled, ContractStatusCompleted:
		return true
	}
	return false
}
