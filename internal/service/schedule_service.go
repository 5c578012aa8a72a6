package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/schedule"
	"go.uber.org/zap"
)

// ScheduleService is the slot generator: a pure function of the tutor's
// template, active blackout periods, committed sessions and the clock. It is
// also run inside booking transactions to re-validate a slot at commit time.
type ScheduleService struct {
	store     Store
	clock     Clock
	minNotice time.Duration
	logger    *zap.Logger
}

func NewScheduleService(store Store, clock Clock, minNotice time.Duration, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{store: store, clock: clock, minNotice: minNotice, logger: logger}
}

// GenerateSlots returns the bookable start times for the tutor on the given
// calendar day, ascending. With slotCount > 1 only starts with enough
// contiguous free intervals behind them are kept. Calling it twice with no
// intervening mutation returns identical sequences.
func (s *ScheduleService) GenerateSlots(ctx context.Context, tutorID int64, day time.Time, slotCount int) ([]time.Time, error) {
	if slotCount < 1 {
		return nil, model.Validationf("slot count must be at least 1, got %d", slotCount)
	}

	tutor, err := s.store.Tutors().GetByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	if tutor == nil {
		return nil, model.Validationf("tutor %d not found", tutorID)
	}

	dayStart := schedule.DayStart(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	template, err := s.store.Availability().GetTemplate(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	periods, err := s.store.Availability().ActivePeriodsOverlapping(ctx, tutorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("get unavailability periods: %w", err)
	}
	blackouts := make([]schedule.Interval, 0, len(periods))
	for _, p := range periods {
		blackouts = append(blackouts, schedule.Interval{Start: p.StartsAt, End: p.EndsAt})
	}

	sessions, err := s.store.Sessions().ActiveByTutorBetween(ctx, tutorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}
	busy := make([]schedule.Interval, 0, len(sessions))
	for _, sess := range sessions {
		busy = append(busy, schedule.Interval{Start: sess.StartsAt, End: sess.EndsAt(tutor.BaseInterval())})
	}

	earliest := s.clock.Now().Add(s.minNotice)
	slots := schedule.BuildDaySlots(dayStart, template, blackouts, busy, tutor.BaseInterval(), earliest)
	slots = schedule.FilterContiguous(slots, slotCount, tutor.BaseInterval())

	s.logger.Debug("Slots generated",
		zap.Int64("tutor_id", tutorID),
		zap.Time("day", dayStart),
		zap.Int("slot_count", slotCount),
		zap.Int("slots", len(slots)),
	)
	return slots, nil
}

// IsBookable re-checks that startsAt is still a valid start for a booking of
// slotCount base intervals. Run inside the booking transaction to defend
// against a concurrent booking of the same slot.
func (s *ScheduleService) IsBookable(ctx context.Context, tutorID int64, startsAt time.Time, slotCount int) (bool, error) {
	slots, err := s.GenerateSlots(ctx, tutorID, startsAt, slotCount)
	if err != nil {
		return false, err
	}
	return schedule.ContainsStart(slots, startsAt), nil
}
