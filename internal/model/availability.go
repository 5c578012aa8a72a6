package model

import (
	"sort"
	"time"
)

// TemplateInterval is one entry of a tutor's recurring weekly availability
// template, expressed in minutes of day.
type TemplateInterval struct {
	Weekday     int `json:"weekday"` // 0 = Sunday, 6 = Saturday
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

const minutesPerDay = 24 * 60

// ValidateTemplate checks the replace-all template write: every interval must
// have start < end within the day, a valid weekday, and intervals on the same
// weekday must not overlap.
func ValidateTemplate(intervals []TemplateInterval) error {
	for _, iv := range intervals {
		if iv.Weekday < 0 || iv.Weekday > 6 {
			return Validationf("weekday %d out of range", iv.Weekday)
		}
		if iv.StartMinute < 0 || iv.EndMinute > minutesPerDay {
			return Validationf("interval %d-%d outside of day", iv.StartMinute, iv.EndMinute)
		}
		if iv.StartMinute >= iv.EndMinute {
			return Validationf("interval start %d must be before end %d", iv.StartMinute, iv.EndMinute)
		}
	}

	byDay := make(map[int][]TemplateInterval)
	for _, iv := range intervals {
		byDay[iv.Weekday] = append(byDay[iv.Weekday], iv)
	}
	for day, ivs := range byDay {
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].StartMinute < ivs[j].StartMinute })
		for i := 1; i < len(ivs); i++ {
			if ivs[i].StartMinute < ivs[i-1].EndMinute {
				return Validationf("overlapping intervals on weekday %d", day)
			}
		}
	}
	return nil
}

type PeriodStatus string

const (
	PeriodStatusActive PeriodStatus = "active"
	PeriodStatusEnded  PeriodStatus = "ended"
)

// UnavailabilityPeriod is a tutor-declared blackout window [StartsAt, EndsAt).
// Periods for the same tutor may overlap in storage; they are merged when
// computing blocked time.
type UnavailabilityPeriod struct {
	ID        int64        `json:"id"`
	TutorID   int64        `json:"tutor_id"`
	StartsAt  time.Time    `json:"starts_at"`
	EndsAt    time.Time    `json:"ends_at"`
	Reason    string       `json:"reason"`
	Status    PeriodStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsActive checks if the period has not been ended early.
func (p *UnavailabilityPeriod) IsActive() bool {
	return p.Status == PeriodStatusActive
}

// Covers reports whether the instant falls inside the period.
func (p *UnavailabilityPeriod) Covers(at time.Time) bool {
	return !at.Before(p.StartsAt) && at.Before(p.EndsAt)
}
