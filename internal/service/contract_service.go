package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorbase/engine/internal/metrics"
	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/schedule"
	"go.uber.org/zap"
)

// ContractService runs the recurring-agreement lifecycle:
// PENDING -> ACCEPTED | REJECTED, ACCEPTED -> CANCELLED | COMPLETED.
// Acceptance expands the agreement into concrete sessions and reserves their
// credits in a single transaction.
type ContractService struct {
	store    Store
	ledger   *LedgerService
	schedule *ScheduleService
	sessions *SessionService
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewContractService(
	store Store,
	ledger *LedgerService,
	scheduleSvc *ScheduleService,
	sessions *SessionService,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ContractService {
	return &ContractService{
		store:    store,
		ledger:   ledger,
		schedule: scheduleSvc,
		sessions: sessions,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// AcceptResult reports the outcome of accepting a contract: the sessions
// created and any planned occurrences skipped because their slot was no
// longer free.
type AcceptResult struct {
	Contract *model.Contract  `json:"contract"`
	Sessions []*model.Session `json:"sessions"`
	Skipped  []time.Time      `json:"skipped"`
}

// ContractSpec carries the schedule parameters of a proposal or an edit.
type ContractSpec struct {
	StartDate   time.Time
	EndDate     time.Time
	Weekdays    []int
	StartMinute int
	SlotCount   int
	Topic       string
}

func (sp *ContractSpec) validate() error {
	if len(sp.Weekdays) == 0 {
		return model.Validationf("at least one weekday is required")
	}
	for _, wd := range sp.Weekdays {
		if wd < 0 || wd > 6 {
			return model.Validationf("weekday %d out of range", wd)
		}
	}
	if sp.EndDate.Before(sp.StartDate) {
		return model.Validationf("end date must not be before start date")
	}
	if sp.StartMinute < 0 || sp.StartMinute >= 24*60 {
		return model.Validationf("start minute %d out of range", sp.StartMinute)
	}
	if sp.SlotCount < 1 {
		return model.Validationf("slot count must be at least 1, got %d", sp.SlotCount)
	}
	return nil
}

// Propose expands the schedule parameters, pre-checks the student's balance
// without reserving anything and creates the contract as pending.
func (s *ContractService) Propose(ctx context.Context, studentID, tutorID int64, spec ContractSpec) (*model.Contract, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	tutor, err := s.store.Tutors().GetByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	if tutor == nil {
		return nil, model.Validationf("tutor %d not found", tutorID)
	}

	occurrences := schedule.ExpandOccurrences(spec.StartDate, spec.EndDate, spec.Weekdays, spec.StartMinute)
	if len(occurrences) == 0 {
		return nil, &model.EmptyScheduleError{Msg: "no matching weekdays in date range"}
	}

	totalCredits := int64(len(occurrences)) * tutor.SessionCredits(spec.SlotCount)

	// Non-binding pre-check: nothing is reserved until the tutor accepts,
	// but a proposal the student cannot pay for is rejected up front.
	summary, err := s.ledger.GetSummary(ctx, studentID, tutorID)
	if err != nil {
		return nil, err
	}
	if summary.Available() < totalCredits {
		s.metrics.InsufficientCredits.Inc()
		return nil, &model.InsufficientCreditsError{
			StudentID: studentID,
			TutorID:   tutorID,
			Shortfall: totalCredits - summary.Available(),
		}
	}

	contract := &model.Contract{
		PublicID:     uuid.New(),
		TutorID:      tutorID,
		StudentID:    studentID,
		StartDate:    schedule.DayStart(spec.StartDate),
		EndDate:      schedule.DayStart(spec.EndDate),
		Weekdays:     spec.Weekdays,
		StartMinute:  spec.StartMinute,
		SlotCount:    spec.SlotCount,
		Topic:        spec.Topic,
		TotalCredits: totalCredits,
		Status:       model.ContractStatusPending,
	}
	if err := s.store.Contracts().Create(ctx, contract); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}

	s.metrics.ContractsProposed.Inc()
	s.logger.Info("Contract proposed",
		zap.Int64("contract_id", contract.ID),
		zap.String("public_id", contract.PublicID.String()),
		zap.Int64("student_id", studentID),
		zap.Int64("tutor_id", tutorID),
		zap.Int("occurrences", len(occurrences)),
		zap.Int64("total_credits", totalCredits),
	)
	s.notifier.Notify(ctx, tutorID, fmt.Sprintf("New recurring contract proposal %s", contract.PublicID))

	return contract, nil
}

// Respond records the tutor's decision on a pending contract. On accept,
// every planned occurrence is re-validated against the current slot list; an
// occurrence that has since become blocked is skipped and reported, the rest
// are reserved and scheduled in one transaction.
func (s *ContractService) Respond(ctx context.Context, contractID int64, accept bool, reason string) (*AcceptResult, error) {
	result := &AcceptResult{}
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		contract, err := s.store.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		if contract == nil {
			return model.Validationf("contract %d not found", contractID)
		}
		if !contract.IsPending() {
			to := model.ContractStatusAccepted
			if !accept {
				to = model.ContractStatusRejected
			}
			return &model.InvalidStateTransitionError{Entity: "contract", From: string(contract.Status), To: string(to)}
		}

		if !accept {
			contract.Status = model.ContractStatusRejected
			contract.Reason = reason
			if err := s.store.Contracts().Update(ctx, contract); err != nil {
				return fmt.Errorf("update contract: %w", err)
			}
			result.Contract = contract
			return nil
		}

		if err := s.store.Tutors().LockForScheduling(ctx, contract.TutorID); err != nil {
			return fmt.Errorf("lock tutor: %w", err)
		}
		tutor, err := s.store.Tutors().GetByID(ctx, contract.TutorID)
		if err != nil {
			return fmt.Errorf("get tutor: %w", err)
		}
		if tutor == nil {
			return model.Validationf("tutor %d not found", contract.TutorID)
		}

		occurrences := schedule.ExpandOccurrences(contract.StartDate, contract.EndDate, contract.Weekdays, contract.StartMinute)
		perSession := tutor.SessionCredits(contract.SlotCount)

		var valid []time.Time
		for _, occ := range occurrences {
			ok, err := s.schedule.IsBookable(ctx, contract.TutorID, occ, contract.SlotCount)
			if err != nil {
				return err
			}
			if !ok {
				result.Skipped = append(result.Skipped, occ)
				s.logger.Warn("Contract occurrence skipped",
					zap.Int64("contract_id", contractID),
					zap.Time("occurrence", occ),
				)
				continue
			}
			valid = append(valid, occ)
		}
		if len(valid) == 0 {
			return &model.SlotUnavailableError{TutorID: contract.TutorID, StartsAt: "all planned occurrences"}
		}

		reserve := int64(len(valid)) * perSession
		if err := s.ledger.Reserve(ctx, contract.StudentID, contract.TutorID, reserve); err != nil {
			return err
		}

		for _, occ := range valid {
			contractID := contract.ID
			session := &model.Session{
				TutorID:    contract.TutorID,
				StudentID:  contract.StudentID,
				ContractID: &contractID,
				StartsAt:   occ,
				SlotCount:  contract.SlotCount,
				Topic:      contract.Topic,
				Status:     model.SessionStatusScheduled,
				Credits:    perSession,
			}
			if err := s.store.Sessions().Create(ctx, session); err != nil {
				return fmt.Errorf("create occurrence session: %w", err)
			}
			result.Sessions = append(result.Sessions, session)
		}

		contract.Status = model.ContractStatusAccepted
		contract.ReservedCredits = reserve
		contract.TotalCredits = reserve
		if err := s.store.Contracts().Update(ctx, contract); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		result.Contract = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	contract := result.Contract
	if accept {
		s.metrics.ContractsAccepted.Inc()
		s.metrics.OccurrencesSkipped.Add(float64(len(result.Skipped)))
		s.logger.Info("Contract accepted",
			zap.Int64("contract_id", contract.ID),
			zap.Int("sessions", len(result.Sessions)),
			zap.Int("skipped", len(result.Skipped)),
			zap.Int64("reserved_credits", contract.ReservedCredits),
		)
		s.notifier.Notify(ctx, contract.StudentID, fmt.Sprintf("Your recurring contract %s was accepted", contract.PublicID))
	} else {
		s.metrics.ContractsRejected.Inc()
		s.logger.Info("Contract rejected",
			zap.Int64("contract_id", contract.ID),
			zap.String("reason", reason),
		)
		s.notifier.Notify(ctx, contract.StudentID, fmt.Sprintf("Your recurring contract %s was rejected", contract.PublicID))
	}
	return result, nil
}

// Cancel terminates a pending or accepted contract. For accepted contracts
// every future child session is cancelled through the session scheduler,
// which releases its reserved credits.
func (s *ContractService) Cancel(ctx context.Context, contractID, actorID int64, reason string) error {
	var contract *model.Contract
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		contract, err = s.store.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		if contract == nil {
			return model.Validationf("contract %d not found", contractID)
		}
		if contract.StudentID != actorID && contract.TutorID != actorID {
			return model.Validationf("user %d is not a party to contract %d", actorID, contractID)
		}
		if !contract.IsPending() && !contract.IsAccepted() {
			return &model.InvalidStateTransitionError{Entity: "contract", From: string(contract.Status), To: string(model.ContractStatusCancelled)}
		}

		if contract.IsAccepted() {
			sessions, err := s.store.Sessions().ByContractID(ctx, contractID)
			if err != nil {
				return fmt.Errorf("get contract sessions: %w", err)
			}
			for _, sess := range sessions {
				if !sess.CanCancel() {
					continue
				}
				if err := s.sessions.Cancel(ctx, sess.ID, actorID); err != nil {
					return fmt.Errorf("cancel session %d: %w", sess.ID, err)
				}
			}
			// Reload: the per-session cancellations updated the counters.
			contract, err = s.store.Contracts().GetByID(ctx, contractID)
			if err != nil {
				return fmt.Errorf("reload contract: %w", err)
			}
		}

		contract.Status = model.ContractStatusCancelled
		contract.Reason = reason
		if err := s.store.Contracts().Update(ctx, contract); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ContractsCancelled.Inc()
	s.logger.Info("Contract cancelled",
		zap.Int64("contract_id", contractID),
		zap.Int64("actor_id", actorID),
		zap.String("reason", reason),
	)
	other := contract.StudentID
	if actorID == contract.StudentID {
		other = contract.TutorID
	}
	s.notifier.Notify(ctx, other, fmt.Sprintf("Recurring contract %s was cancelled: %s", contract.PublicID, reason))
	return nil
}

// Edit replaces the schedule parameters of a pending contract by re-running
// the proposal expansion. The ledger is untouched since nothing is reserved
// before acceptance.
func (s *ContractService) Edit(ctx context.Context, contractID, actorID int64, spec ContractSpec) (*model.Contract, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var contract *model.Contract
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		contract, err = s.store.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		if contract == nil {
			return model.Validationf("contract %d not found", contractID)
		}
		if contract.StudentID != actorID {
			return model.Validationf("only the proposing student can edit contract %d", contractID)
		}
		if !contract.IsPending() {
			return &model.InvalidStateTransitionError{Entity: "contract", From: string(contract.Status), To: string(model.ContractStatusPending)}
		}

		tutor, err := s.store.Tutors().GetByID(ctx, contract.TutorID)
		if err != nil {
			return fmt.Errorf("get tutor: %w", err)
		}
		if tutor == nil {
			return model.Validationf("tutor %d not found", contract.TutorID)
		}

		occurrences := schedule.ExpandOccurrences(spec.StartDate, spec.EndDate, spec.Weekdays, spec.StartMinute)
		if len(occurrences) == 0 {
			return &model.EmptyScheduleError{Msg: "no matching weekdays in date range"}
		}

		contract.StartDate = schedule.DayStart(spec.StartDate)
		contract.EndDate = schedule.DayStart(spec.EndDate)
		contract.Weekdays = spec.Weekdays
		contract.StartMinute = spec.StartMinute
		contract.SlotCount = spec.SlotCount
		contract.Topic = spec.Topic
		contract.TotalCredits = int64(len(occurrences)) * tutor.SessionCredits(spec.SlotCount)

		if err := s.store.Contracts().Update(ctx, contract); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Contract edited",
		zap.Int64("contract_id", contractID),
		zap.Int64("total_credits", contract.TotalCredits),
	)
	return contract, nil
}

// GetByID returns a contract by id.
func (s *ContractService) GetByID(ctx context.Context, contractID int64) (*model.Contract, error) {
	return s.store.Contracts().GetByID(ctx, contractID)
}

// GetStudentContracts returns all contracts proposed by a student.
func (s *ContractService) GetStudentContracts(ctx context.Context, studentID int64) ([]*model.Contract, error) {
	return s.store.Contracts().ByStudentID(ctx, studentID)
}
