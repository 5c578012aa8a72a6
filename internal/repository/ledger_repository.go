package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tutorbase/engine/internal/model"
)

type LedgerRepository struct {
	store *Store
}

const ledgerColumns = `student_id, tutor_id, total_purchased, used, reserved, updated_at`

func (r *LedgerRepository) get(ctx context.Context, studentID, tutorID int64, forUpdate bool) (*model.CreditLedger, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM credit_ledgers
		WHERE student_id = $1 AND tutor_id = $2
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var ledger model.CreditLedger
	err := r.store.q(ctx).QueryRow(ctx, query, studentID, tutorID).Scan(
		&ledger.StudentID,
		&ledger.TutorID,
		&ledger.TotalPurchased,
		&ledger.Used,
		&ledger.Reserved,
		&ledger.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// A pair with no history reads as all zeroes.
			return &model.CreditLedger{StudentID: studentID, TutorID: tutorID}, nil
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	return &ledger, nil
}

// Get returns the balances for a (student, tutor) pair.
func (r *LedgerRepository) Get(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error) {
	return r.get(ctx, studentID, tutorID, false)
}

// GetForUpdate returns the balances with the row locked until the
// surrounding transaction ends. Absent rows are materialized first so there
// is a row to lock.
func (r *LedgerRepository) GetForUpdate(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error) {
	insert := `
		INSERT INTO credit_ledgers (student_id, tutor_id, total_purchased, used, reserved)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (student_id, tutor_id) DO NOTHING
	`
	if _, err := r.store.q(ctx).Exec(ctx, insert, studentID, tutorID); err != nil {
		return nil, fmt.Errorf("materialize ledger: %w", err)
	}

	return r.get(ctx, studentID, tutorID, true)
}

// Save upserts the ledger row.
func (r *LedgerRepository) Save(ctx context.Context, ledger *model.CreditLedger) error {
	query := `
		INSERT INTO credit_ledgers (student_id, tutor_id, total_purchased, used, reserved, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (student_id, tutor_id) DO UPDATE
		SET total_purchased = EXCLUDED.total_purchased,
		    used = EXCLUDED.used,
		    reserved = EXCLUDED.reserved,
		    updated_at = now()
		RETURNING updated_at
	`

	err := r.store.q(ctx).QueryRow(
		ctx, query,
		ledger.StudentID,
		ledger.TutorID,
		ledger.TotalPurchased,
		ledger.Used,
		ledger.Reserved,
	).Scan(&ledger.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	return nil
}
