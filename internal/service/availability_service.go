package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tutorbase/engine/internal/metrics"
	"github.com/tutorbase/engine/internal/model"
	"go.uber.org/zap"
)

// AvailabilityService manages the recurring weekly template and blackout
// periods, and reconciles committed sessions when a blackout lands on them.
type AvailabilityService struct {
	store    Store
	sessions *SessionService
	notifier Notifier
	metrics  *metrics.Metrics
	clock    Clock
	logger   *zap.Logger
}

func NewAvailabilityService(
	store Store,
	sessions *SessionService,
	notifier Notifier,
	m *metrics.Metrics,
	clock Clock,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		metrics:  m,
		clock:    clock,
		logger:   logger,
	}
}

// SetTemplate replaces the tutor's whole weekly template atomically.
func (s *AvailabilityService) SetTemplate(ctx context.Context, tutorID int64, intervals []model.TemplateInterval) error {
	if err := model.ValidateTemplate(intervals); err != nil {
		return err
	}

	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		tutor, err := s.store.Tutors().GetByID(ctx, tutorID)
		if err != nil {
			return fmt.Errorf("get tutor: %w", err)
		}
		if tutor == nil {
			return model.Validationf("tutor %d not found", tutorID)
		}
		return s.store.Availability().ReplaceTemplate(ctx, tutorID, intervals)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Availability template replaced",
		zap.Int64("tutor_id", tutorID),
		zap.Int("intervals", len(intervals)),
	)
	return nil
}

// GetTemplate returns the tutor's current weekly template.
func (s *AvailabilityService) GetTemplate(ctx context.Context, tutorID int64) ([]model.TemplateInterval, error) {
	return s.store.Availability().GetTemplate(ctx, tutorID)
}

// FailedCancellation is one session the reconciler could not cancel; the
// caller may retry the declaration, already-processed sessions stay
// cancelled and refunded.
type FailedCancellation struct {
	SessionID int64  `json:"session_id"`
	Err       string `json:"error"`
}

// Reconciliation is the per-session outcome report of a blackout
// declaration.
type Reconciliation struct {
	Cancelled []int64              `json:"cancelled"`
	Failed    []FailedCancellation `json:"failed"`
}

// PreviewUnavailability returns, without committing anything, the sessions a
// blackout over [from, to) would invalidate, so the caller can confirm.
func (s *AvailabilityService) PreviewUnavailability(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Session, error) {
	if !from.Before(to) {
		return nil, model.Validationf("period start must be before end")
	}
	return s.store.Sessions().ActiveByTutorBetween(ctx, tutorID, from, to)
}

// DeclareUnavailable commits a blackout period and reconciles the sessions
// inside it: each is cancelled and refunded in its own transaction, so a
// partial failure surfaces in the report instead of aborting the whole
// declaration.
func (s *AvailabilityService) DeclareUnavailable(ctx context.Context, tutorID int64, from, to time.Time, reason string) (*model.UnavailabilityPeriod, *Reconciliation, error) {
	if !from.Before(to) {
		return nil, nil, model.Validationf("period start must be before end")
	}

	period := &model.UnavailabilityPeriod{
		TutorID:  tutorID,
		StartsAt: from,
		EndsAt:   to,
		Reason:   reason,
		Status:   model.PeriodStatusActive,
	}
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		tutor, err := s.store.Tutors().GetByID(ctx, tutorID)
		if err != nil {
			return fmt.Errorf("get tutor: %w", err)
		}
		if tutor == nil {
			return model.Validationf("tutor %d not found", tutorID)
		}
		return s.store.Availability().CreatePeriod(ctx, period)
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.BlackoutsDeclared.Inc()

	affected, err := s.store.Sessions().ActiveByTutorBetween(ctx, tutorID, from, to)
	if err != nil {
		return period, nil, fmt.Errorf("list affected sessions: %w", err)
	}

	report := &Reconciliation{}
	for _, sess := range affected {
		if err := s.sessions.Cancel(ctx, sess.ID, tutorID); err != nil {
			report.Failed = append(report.Failed, FailedCancellation{SessionID: sess.ID, Err: err.Error()})
			s.metrics.BlackoutFailed.Inc()
			s.logger.Error("Blackout reconciliation failed for session",
				zap.Int64("session_id", sess.ID),
				zap.Int64("tutor_id", tutorID),
				zap.Error(err),
			)
			continue
		}
		report.Cancelled = append(report.Cancelled, sess.ID)
		s.metrics.BlackoutCancelled.Inc()
		s.notifier.Notify(ctx, sess.StudentID,
			fmt.Sprintf("Your session on %s was cancelled because the tutor is unavailable; credits were returned", sess.StartsAt.Format(time.RFC3339)))
	}

	s.logger.Info("Unavailability declared",
		zap.Int64("period_id", period.ID),
		zap.Int64("tutor_id", tutorID),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("cancelled", len(report.Cancelled)),
		zap.Int("failed", len(report.Failed)),
	)
	return period, report, nil
}

// Resume ends a blackout period early. Cancellations already processed by
// the declaration are not undone.
func (s *AvailabilityService) Resume(ctx context.Context, tutorID, periodID int64) error {
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		period, err := s.store.Availability().GetPeriod(ctx, periodID)
		if err != nil {
			return fmt.Errorf("get period: %w", err)
		}
		if period == nil {
			return model.Validationf("unavailability period %d not found", periodID)
		}
		if period.TutorID != tutorID {
			return model.Validationf("period %d does not belong to tutor %d", periodID, tutorID)
		}
		if !period.IsActive() {
			return &model.InvalidStateTransitionError{Entity: "unavailability_period", From: string(period.Status), To: string(model.PeriodStatusEnded)}
		}
		return s.store.Availability().EndPeriod(ctx, periodID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Availability resumed",
		zap.Int64("tutor_id", tutorID),
		zap.Int64("period_id", periodID),
	)
	return nil
}

// EndExpiredPeriods flips ACTIVE periods whose end has passed to ENDED.
// Called by the background sweeper.
func (s *AvailabilityService) EndExpiredPeriods(ctx context.Context) (int64, error) {
	n, err := s.store.Availability().EndExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("end expired periods: %w", err)
	}
	if n > 0 {
		s.logger.Info("Expired unavailability periods ended", zap.Int64("count", n))
	}
	return n, nil
}
