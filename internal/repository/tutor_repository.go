package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tutorbase/engine/internal/model"
)

type TutorRepository struct {
	store *Store
}

// GetByID fetches a tutor's scheduling/pricing row. Returns nil when the
// tutor does not exist.
func (r *TutorRepository) GetByID(ctx context.Context, id int64) (*model.Tutor, error) {
	query := `
		SELECT id, credit_factor, base_interval_minutes, created_at
		FROM tutors
		WHERE id = $1
	`

	var tutor model.Tutor
	err := r.store.q(ctx).QueryRow(ctx, query, id).Scan(
		&tutor.ID,
		&tutor.CreditFactor,
		&tutor.BaseIntervalMinutes,
		&tutor.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tutor by id: %w", err)
	}

	return &tutor, nil
}

// Upsert writes the tutor row supplied by the pricing collaborator.
func (r *TutorRepository) Upsert(ctx context.Context, tutor *model.Tutor) error {
	query := `
		INSERT INTO tutors (id, credit_factor, base_interval_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET credit_factor = EXCLUDED.credit_factor,
		    base_interval_minutes = EXCLUDED.base_interval_minutes
		RETURNING created_at
	`

	err := r.store.q(ctx).QueryRow(ctx, query, tutor.ID, tutor.CreditFactor, tutor.BaseIntervalMinutes).
		Scan(&tutor.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}

	return nil
}

// LockForScheduling locks the tutor row until the surrounding transaction
// ends, serializing concurrent bookings for the same tutor.
func (r *TutorRepository) LockForScheduling(ctx context.Context, id int64) error {
	query := `SELECT id FROM tutors WHERE id = $1 FOR UPDATE`

	var locked int64
	err := r.store.q(ctx).QueryRow(ctx, query, id).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Validationf("tutor %d not found", id)
		}
		return fmt.Errorf("lock tutor: %w", err)
	}

	return nil
}
