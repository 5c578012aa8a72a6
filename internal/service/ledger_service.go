package service

import (
	"context"
	"fmt"

	"github.com/tutorbase/engine/internal/model"
	"go.uber.org/zap"
)

// LedgerService owns every credit mutation. Each operation loads the
// (student, tutor) row under an exclusive lock, applies the arithmetic on
// the model, and writes it back inside the surrounding transaction, so two
// concurrent debits against the same row serialize.
type LedgerService struct {
	store  Store
	logger *zap.Logger
}

func NewLedgerService(store Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger}
}

func (s *LedgerService) apply(ctx context.Context, studentID, tutorID int64, op string, fn func(ledger *model.CreditLedger) error) error {
	return s.store.Atomic(ctx, func(ctx context.Context) error {
		ledger, err := s.store.Ledgers().GetForUpdate(ctx, studentID, tutorID)
		if err != nil {
			return fmt.Errorf("get ledger: %w", err)
		}

		if err := fn(ledger); err != nil {
			return err
		}

		if err := s.store.Ledgers().Save(ctx, ledger); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}

		s.logger.Debug("Ledger updated",
			zap.String("op", op),
			zap.Int64("student_id", studentID),
			zap.Int64("tutor_id", tutorID),
			zap.Int64("available", ledger.Available()),
			zap.Int64("reserved", ledger.Reserved),
			zap.Int64("used", ledger.Used),
		)
		return nil
	})
}

// Reserve earmarks credits for future contract occurrences.
func (s *LedgerService) Reserve(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "reserve", func(l *model.CreditLedger) error {
		return l.Reserve(amount)
	})
}

// Consume moves reserved credits to used when a contract session completes.
func (s *LedgerService) Consume(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "consume", func(l *model.CreditLedger) error {
		return l.Consume(amount)
	})
}

// Release returns reserved credits to available.
func (s *LedgerService) Release(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "release", func(l *model.CreditLedger) error {
		return l.Release(amount)
	})
}

// DebitDirect charges available credits immediately, the ad-hoc booking path.
func (s *LedgerService) DebitDirect(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "debit_direct", func(l *model.CreditLedger) error {
		return l.DebitDirect(amount)
	})
}

// Refund reverses a direct debit after an ad-hoc cancellation.
func (s *LedgerService) Refund(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "refund", func(l *model.CreditLedger) error {
		return l.Refund(amount)
	})
}

// AddPurchase records a top-up from the payment collaborator.
func (s *LedgerService) AddPurchase(ctx context.Context, studentID, tutorID, amount int64) error {
	return s.apply(ctx, studentID, tutorID, "add_purchase", func(l *model.CreditLedger) error {
		return l.AddPurchase(amount)
	})
}

// GetSummary returns the current balances for a (student, tutor) pair. A
// pair with no history reads as all zeroes.
func (s *LedgerService) GetSummary(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error) {
	ledger, err := s.store.Ledgers().Get(ctx, studentID, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return ledger, nil
}
