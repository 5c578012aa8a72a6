package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tutorbase/engine/internal/model"
)

type ContractRepository struct {
	store *Store
}

const contractColumns = `id, public_id, tutor_id, student_id, start_date, end_date, weekdays, start_minute,
		slot_count, topic, total_credits, used_credits, reserved_credits, status, reason, created_at, updated_at`

func scanContract(row pgx.Row) (*model.Contract, error) {
	var contract model.Contract
	var weekdays []int32
	err := row.Scan(
		&contract.ID,
		&contract.PublicID,
		&contract.TutorID,
		&contract.StudentID,
		&contract.StartDate,
		&contract.EndDate,
		&weekdays,
		&contract.StartMinute,
		&contract.SlotCount,
		&contract.Topic,
		&contract.TotalCredits,
		&contract.UsedCredits,
		&contract.ReservedCredits,
		&contract.Status,
		&contract.Reason,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	contract.Weekdays = make([]int, len(weekdays))
	for i, wd := range weekdays {
		contract.Weekdays[i] = int(wd)
	}
	return &contract, nil
}

func weekdaysParam(weekdays []int) []int32 {
	out := make([]int32, len(weekdays))
	for i, wd := range weekdays {
		out[i] = int32(wd)
	}
	return out
}

// Create inserts a new contract.
func (r *ContractRepository) Create(ctx context.Context, contract *model.Contract) error {
	query := `
		INSERT INTO contracts (public_id, tutor_id, student_id, start_date, end_date, weekdays, start_minute,
			slot_count, topic, total_credits, used_credits, reserved_credits, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.store.q(ctx).QueryRow(
		ctx, query,
		contract.PublicID,
		contract.TutorID,
		contract.StudentID,
		contract.StartDate,
		contract.EndDate,
		weekdaysParam(contract.Weekdays),
		contract.StartMinute,
		contract.SlotCount,
		contract.Topic,
		contract.TotalCredits,
		contract.UsedCredits,
		contract.ReservedCredits,
		contract.Status,
		contract.Reason,
	).Scan(&contract.ID, &contract.CreatedAt, &contract.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create contract: %w", err)
	}

	return nil
}

// GetByID fetches a contract. Returns nil when not found.
func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	contract, err := scanContract(r.store.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract by id: %w", err)
	}

	return contract, nil
}

// Update writes back the mutable contract fields.
func (r *ContractRepository) Update(ctx context.Context, contract *model.Contract) error {
	query := `
		UPDATE contracts
		SET start_date = $1, end_date = $2, weekdays = $3, start_minute = $4, slot_count = $5,
		    topic = $6, total_credits = $7, used_credits = $8, reserved_credits = $9,
		    status = $10, reason = $11, updated_at = now()
		WHERE id = $12
		RETURNING updated_at
	`

	err := r.store.q(ctx).QueryRow(
		ctx, query,
		contract.StartDate,
		contract.EndDate,
		weekdaysParam(contract.Weekdays),
		contract.StartMinute,
		contract.SlotCount,
		contract.Topic,
		contract.TotalCredits,
		contract.UsedCredits,
		contract.ReservedCredits,
		contract.Status,
		contract.Reason,
		contract.ID,
	).Scan(&contract.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Validationf("contract %d not found", contract.ID)
		}
		return fmt.Errorf("update contract: %w", err)
	}

	return nil
}

// ByStudentID returns all contracts proposed by a student, newest first.
func (r *ContractRepository) ByStudentID(ctx context.Context, studentID int64) ([]*model.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE student_id = $1 ORDER BY created_at DESC`

	rows, err := r.store.q(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get contracts by student: %w", err)
	}
	defer rows.Close()

	var contracts []*model.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}

	return contracts, rows.Err()
}
