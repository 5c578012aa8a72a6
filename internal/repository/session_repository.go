package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorbase/engine/internal/model"
)

type SessionRepository struct {
	store *Store
}

const sessionColumns = `id, tutor_id, student_id, contract_id, starts_at, slot_count, topic, status, credits, created_at, updated_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.StudentID,
		&session.ContractID,
		&session.StartsAt,
		&session.SlotCount,
		&session.Topic,
		&session.Status,
		&session.Credits,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (tutor_id, student_id, contract_id, starts_at, slot_count, topic, status, credits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.store.q(ctx).QueryRow(
		ctx, query,
		session.TutorID,
		session.StudentID,
		session.ContractID,
		session.StartsAt,
		session.SlotCount,
		session.Topic,
		session.Status,
		session.Credits,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID fetches a session. Returns nil when not found.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.store.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// UpdateStatus moves a session to a new status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) error {
	query := `UPDATE sessions SET status = $1, updated_at = now() WHERE id = $2`

	tag, err := r.store.q(ctx).Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Validationf("session %d not found", id)
	}

	return nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// ActiveByTutorBetween returns scheduled/in-progress sessions of the tutor
// starting in [from, to), ascending.
func (r *SessionRepository) ActiveByTutorBetween(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tutor_id = $1
		  AND status IN ('scheduled', 'in_progress')
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at
	`
	return r.list(ctx, query, tutorID, from, to)
}

// ByContractID returns every occurrence session of a contract, ascending.
func (r *SessionRepository) ByContractID(ctx context.Context, contractID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE contract_id = $1
		ORDER BY starts_at
	`
	return r.list(ctx, query, contractID)
}

// ByStudentID returns all sessions of a student, newest first.
func (r *SessionRepository) ByStudentID(ctx context.Context, studentID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE student_id = $1
		ORDER BY starts_at DESC
	`
	return r.list(ctx, query, studentID)
}
