package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tutorbase/engine/internal/metrics"
	"github.com/tutorbase/engine/internal/model"
	"go.uber.org/zap"
)

// SessionService creates and transitions single bookings. Slot validity is
// re-checked and credits are debited inside the same transaction that
// persists the session, so a session never exists without its matching
// ledger effect.
type SessionService struct {
	store    Store
	ledger   *LedgerService
	schedule *ScheduleService
	notifier Notifier
	metrics  *metrics.Metrics
	clock    Clock
	logger   *zap.Logger
}

func NewSessionService(
	store Store,
	ledger *LedgerService,
	scheduleSvc *ScheduleService,
	notifier Notifier,
	m *metrics.Metrics,
	clock Clock,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		store:    store,
		ledger:   ledger,
		schedule: scheduleSvc,
		notifier: notifier,
		metrics:  m,
		clock:    clock,
		logger:   logger,
	}
}

// Book commits an ad-hoc booking: re-validate the slot, debit credits
// directly and create the scheduled session, all in one transaction.
func (s *SessionService) Book(ctx context.Context, tutorID, studentID int64, startsAt time.Time, slotCount int, topic string) (*model.Session, error) {
	if slotCount < 1 {
		return nil, model.Validationf("slot count must be at least 1, got %d", slotCount)
	}

	var session *model.Session
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.Tutors().LockForScheduling(ctx, tutorID); err != nil {
			return fmt.Errorf("lock tutor: %w", err)
		}

		tutor, err := s.store.Tutors().GetByID(ctx, tutorID)
		if err != nil {
			return fmt.Errorf("get tutor: %w", err)
		}
		if tutor == nil {
			return model.Validationf("tutor %d not found", tutorID)
		}

		ok, err := s.schedule.IsBookable(ctx, tutorID, startsAt, slotCount)
		if err != nil {
			return err
		}
		if !ok {
			s.metrics.SlotRaceRejections.Inc()
			return &model.SlotUnavailableError{TutorID: tutorID, StartsAt: startsAt.Format(time.RFC3339)}
		}

		credits := tutor.SessionCredits(slotCount)
		if err := s.ledger.DebitDirect(ctx, studentID, tutorID, credits); err != nil {
			return err
		}

		session = &model.Session{
			TutorID:   tutorID,
			StudentID: studentID,
			StartsAt:  startsAt,
			SlotCount: slotCount,
			Topic:     topic,
			Status:    model.SessionStatusScheduled,
			Credits:   credits,
		}
		if err := s.store.Sessions().Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		var insufficient *model.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			s.metrics.InsufficientCredits.Inc()
		}
		return nil, err
	}

	s.metrics.BookingsTotal.Inc()
	s.logger.Info("Session booked",
		zap.Int64("session_id", session.ID),
		zap.Int64("tutor_id", tutorID),
		zap.Int64("student_id", studentID),
		zap.Time("starts_at", startsAt),
		zap.Int64("credits", session.Credits),
	)
	s.notifier.Notify(ctx, tutorID, fmt.Sprintf("New session booked for %s", startsAt.Format(time.RFC3339)))

	return session, nil
}

// Cancel moves an active session to cancelled and refunds its credits:
// reserved credits are released for contract sessions, a direct debit is
// reversed for ad-hoc ones.
func (s *SessionService) Cancel(ctx context.Context, sessionID, actorID int64) error {
	var session *model.Session
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.store.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return model.Validationf("session %d not found", sessionID)
		}
		if session.StudentID != actorID && session.TutorID != actorID {
			return model.Validationf("user %d is not a party to session %d", actorID, sessionID)
		}
		if !session.CanCancel() {
			return &model.InvalidStateTransitionError{Entity: "session", From: string(session.Status), To: string(model.SessionStatusCancelled)}
		}

		if err := s.store.Sessions().UpdateStatus(ctx, sessionID, model.SessionStatusCancelled); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}

		if session.FromContract() {
			if err := s.ledger.Release(ctx, session.StudentID, session.TutorID, session.Credits); err != nil {
				return err
			}
			return s.releaseFromContract(ctx, *session.ContractID, session.Credits)
		}
		return s.ledger.Refund(ctx, session.StudentID, session.TutorID, session.Credits)
	})
	if err != nil {
		return err
	}

	s.metrics.SessionsCancelled.Inc()
	s.logger.Info("Session cancelled",
		zap.Int64("session_id", sessionID),
		zap.Int64("actor_id", actorID),
		zap.Int64("credits_refunded", session.Credits),
	)
	if actorID != session.StudentID {
		s.notifier.Notify(ctx, session.StudentID, fmt.Sprintf("Your session on %s was cancelled", session.StartsAt.Format(time.RFC3339)))
	}
	if actorID != session.TutorID {
		s.notifier.Notify(ctx, session.TutorID, fmt.Sprintf("Session on %s was cancelled", session.StartsAt.Format(time.RFC3339)))
	}
	return nil
}

// Start moves a scheduled session to in-progress when both parties join.
func (s *SessionService) Start(ctx context.Context, sessionID int64) error {
	return s.store.Atomic(ctx, func(ctx context.Context) error {
		session, err := s.store.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return model.Validationf("session %d not found", sessionID)
		}
		if session.Status != model.SessionStatusScheduled {
			return &model.InvalidStateTransitionError{Entity: "session", From: string(session.Status), To: string(model.SessionStatusInProgress)}
		}
		return s.store.Sessions().UpdateStatus(ctx, sessionID, model.SessionStatusInProgress)
	})
}

// Complete resolves a session. For contract sessions the reserved share is
// consumed and the contract's counters move with it; ad-hoc sessions were
// already debited at booking time.
func (s *SessionService) Complete(ctx context.Context, sessionID int64, actualDuration time.Duration) error {
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		session, err := s.store.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return model.Validationf("session %d not found", sessionID)
		}
		if !session.CanComplete() {
			return &model.InvalidStateTransitionError{Entity: "session", From: string(session.Status), To: string(model.SessionStatusCompleted)}
		}

		if err := s.store.Sessions().UpdateStatus(ctx, sessionID, model.SessionStatusCompleted); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}

		if session.FromContract() {
			if err := s.ledger.Consume(ctx, session.StudentID, session.TutorID, session.Credits); err != nil {
				return err
			}
			return s.consumeFromContract(ctx, *session.ContractID, session.Credits)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.SessionsCompleted.Inc()
	s.logger.Info("Session completed",
		zap.Int64("session_id", sessionID),
		zap.Duration("actual_duration", actualDuration),
	)
	return nil
}

// MarkNoShow resolves a session as missed. Credits are not returned for
// missed sessions: the contract share is consumed, the ad-hoc debit stands.
func (s *SessionService) MarkNoShow(ctx context.Context, sessionID int64) error {
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		session, err := s.store.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return model.Validationf("session %d not found", sessionID)
		}
		if !session.IsActive() {
			return &model.InvalidStateTransitionError{Entity: "session", From: string(session.Status), To: string(model.SessionStatusNoShow)}
		}

		if err := s.store.Sessions().UpdateStatus(ctx, sessionID, model.SessionStatusNoShow); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}

		if session.FromContract() {
			if err := s.ledger.Consume(ctx, session.StudentID, session.TutorID, session.Credits); err != nil {
				return err
			}
			return s.consumeFromContract(ctx, *session.ContractID, session.Credits)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.SessionsNoShow.Inc()
	s.logger.Info("Session marked as no-show", zap.Int64("session_id", sessionID))
	return nil
}

// GetByID returns a session by id.
func (s *SessionService) GetByID(ctx context.Context, sessionID int64) (*model.Session, error) {
	return s.store.Sessions().GetByID(ctx, sessionID)
}

// GetStudentSessions returns all sessions of a student, newest first.
func (s *SessionService) GetStudentSessions(ctx context.Context, studentID int64) ([]*model.Session, error) {
	return s.store.Sessions().ByStudentID(ctx, studentID)
}

// releaseFromContract decrements the contract's reserved counter after one
// of its sessions was cancelled.
func (s *SessionService) releaseFromContract(ctx context.Context, contractID, credits int64) error {
	contract, err := s.store.Contracts().GetByID(ctx, contractID)
	if err != nil {
		return fmt.Errorf("get contract: %w", err)
	}
	if contract == nil {
		return model.Validationf("contract %d not found", contractID)
	}
	contract.ReservedCredits -= credits
	if err := s.store.Contracts().Update(ctx, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return nil
}

// consumeFromContract moves credits from the contract's reserved to used
// counter and completes the contract when the last occurrence has resolved.
func (s *SessionService) consumeFromContract(ctx context.Context, contractID, credits int64) error {
	contract, err := s.store.Contracts().GetByID(ctx, contractID)
	if err != nil {
		return fmt.Errorf("get contract: %w", err)
	}
	if contract == nil {
		return model.Validationf("contract %d not found", contractID)
	}
	contract.ReservedCredits -= credits
	contract.UsedCredits += credits

	if contract.IsAccepted() {
		sessions, err := s.store.Sessions().ByContractID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("get contract sessions: %w", err)
		}
		remaining := 0
		for _, sess := range sessions {
			if sess.IsActive() {
				remaining++
			}
		}
		if remaining == 0 {
			contract.Status = model.ContractStatusCompleted
			s.logger.Info("Contract completed",
				zap.Int64("contract_id", contractID),
				zap.Int64("used_credits", contract.UsedCredits),
			)
		}
	}

	if err := s.store.Contracts().Update(ctx, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return nil
}
