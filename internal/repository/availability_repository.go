package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorbase/engine/internal/model"
)

type AvailabilityRepository struct {
	store *Store
}

// GetTemplate returns the tutor's weekly template ordered by weekday and
// start minute.
func (r *AvailabilityRepository) GetTemplate(ctx context.Context, tutorID int64) ([]model.TemplateInterval, error) {
	query := `
		SELECT weekday, start_minute, end_minute
		FROM availability_intervals
		WHERE tutor_id = $1
		ORDER BY weekday, start_minute
	`

	rows, err := r.store.q(ctx).Query(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	defer rows.Close()

	var intervals []model.TemplateInterval
	for rows.Next() {
		var iv model.TemplateInterval
		if err := rows.Scan(&iv.Weekday, &iv.StartMinute, &iv.EndMinute); err != nil {
			return nil, fmt.Errorf("scan template interval: %w", err)
		}
		intervals = append(intervals, iv)
	}

	return intervals, rows.Err()
}

// ReplaceTemplate swaps the whole template in one statement pair. Callers
// run it inside Atomic so the delete and the inserts commit together.
func (r *AvailabilityRepository) ReplaceTemplate(ctx context.Context, tutorID int64, intervals []model.TemplateInterval) error {
	if _, err := r.store.q(ctx).Exec(ctx, `DELETE FROM availability_intervals WHERE tutor_id = $1`, tutorID); err != nil {
		return fmt.Errorf("clear template: %w", err)
	}

	query := `
		INSERT INTO availability_intervals (tutor_id, weekday, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
	`
	for _, iv := range intervals {
		if _, err := r.store.q(ctx).Exec(ctx, query, tutorID, iv.Weekday, iv.StartMinute, iv.EndMinute); err != nil {
			return fmt.Errorf("insert template interval: %w", err)
		}
	}

	return nil
}

// CreatePeriod inserts a new unavailability period.
func (r *AvailabilityRepository) CreatePeriod(ctx context.Context, period *model.UnavailabilityPeriod) error {
	query := `
		INSERT INTO unavailability_periods (tutor_id, starts_at, ends_at, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.store.q(ctx).QueryRow(
		ctx, query,
		period.TutorID,
		period.StartsAt,
		period.EndsAt,
		period.Reason,
		period.Status,
	).Scan(&period.ID, &period.CreatedAt)
	if err != nil {
		return fmt.Errorf("create unavailability period: %w", err)
	}

	return nil
}

// GetPeriod fetches a period by id. Returns nil when not found.
func (r *AvailabilityRepository) GetPeriod(ctx context.Context, id int64) (*model.UnavailabilityPeriod, error) {
	query := `
		SELECT id, tutor_id, starts_at, ends_at, reason, status, created_at
		FROM unavailability_periods
		WHERE id = $1
	`

	var period model.UnavailabilityPeriod
	err := r.store.q(ctx).QueryRow(ctx, query, id).Scan(
		&period.ID,
		&period.TutorID,
		&period.StartsAt,
		&period.EndsAt,
		&period.Reason,
		&period.Status,
		&period.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get unavailability period: %w", err)
	}

	return &period, nil
}

// ActivePeriodsOverlapping returns active periods intersecting [from, to).
func (r *AvailabilityRepository) ActivePeriodsOverlapping(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.UnavailabilityPeriod, error) {
	query := `
		SELECT id, tutor_id, starts_at, ends_at, reason, status, created_at
		FROM unavailability_periods
		WHERE tutor_id = $1
		  AND status = 'active'
		  AND starts_at < $3
		  AND ends_at > $2
		ORDER BY starts_at
	`

	rows, err := r.store.q(ctx).Query(ctx, query, tutorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get active periods: %w", err)
	}
	defer rows.Close()

	var periods []*model.UnavailabilityPeriod
	for rows.Next() {
		var period model.UnavailabilityPeriod
		err := rows.Scan(
			&period.ID,
			&period.TutorID,
			&period.StartsAt,
			&period.EndsAt,
			&period.Reason,
			&period.Status,
			&period.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, &period)
	}

	return periods, rows.Err()
}

// EndPeriod flips a period to ended.
func (r *AvailabilityRepository) EndPeriod(ctx context.Context, id int64) error {
	query := `UPDATE unavailability_periods SET status = 'ended' WHERE id = $1`

	tag, err := r.store.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("end period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Validationf("unavailability period %d not found", id)
	}

	return nil
}

// EndExpired flips every active period whose end instant has passed.
func (r *AvailabilityRepository) EndExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE unavailability_periods SET status = 'ended' WHERE status = 'active' AND ends_at <= $1`

	tag, err := r.store.q(ctx).Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("end expired periods: %w", err)
	}

	return tag.RowsAffected(), nil
}
