package service

import (
	"context"
	"time"

	"github.com/tutorbase/engine/internal/model"
)

// Store aggregates the engine's repositories behind one transactional
// boundary. Atomic runs fn inside a transaction; a nested Atomic call made
// with the context it hands to fn joins the same transaction, so a service
// operation composes sub-operations into one atomic unit.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Tutors() TutorRepository
	Availability() AvailabilityRepository
	Ledgers() LedgerRepository
	Sessions() SessionRepository
	Contracts() ContractRepository
}

// TutorRepository reads the per-tutor scheduling/pricing configuration.
// Upsert exists for bootstrap and the external pricing collaborator.
type TutorRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Tutor, error)
	Upsert(ctx context.Context, tutor *model.Tutor) error
	// LockForScheduling takes an exclusive per-tutor lock for the duration of
	// the surrounding transaction, serializing concurrent slot
	// revalidate-then-commit sequences for the same tutor.
	LockForScheduling(ctx context.Context, id int64) error
}

type AvailabilityRepository interface {
	GetTemplate(ctx context.Context, tutorID int64) ([]model.TemplateInterval, error)
	ReplaceTemplate(ctx context.Context, tutorID int64, intervals []model.TemplateInterval) error
	CreatePeriod(ctx context.Context, period *model.UnavailabilityPeriod) error
	GetPeriod(ctx context.Context, id int64) (*model.UnavailabilityPeriod, error)
	ActivePeriodsOverlapping(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.UnavailabilityPeriod, error)
	EndPeriod(ctx context.Context, id int64) error
	EndExpired(ctx context.Context, now time.Time) (int64, error)
}

// LedgerRepository persists credit ledger rows. GetForUpdate must lock the
// row for the duration of the surrounding transaction; both it and Get
// return a zero-balance row when none exists yet.
type LedgerRepository interface {
	Get(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error)
	GetForUpdate(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error)
	Save(ctx context.Context, ledger *model.CreditLedger) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) error
	// ActiveByTutorBetween returns scheduled/in-progress sessions whose start
	// instant falls in [from, to), ascending.
	ActiveByTutorBetween(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Session, error)
	ByContractID(ctx context.Context, contractID int64) ([]*model.Session, error)
	ByStudentID(ctx context.Context, studentID int64) ([]*model.Session, error)
}

type ContractRepository interface {
	Create(ctx context.Context, contract *model.Contract) error
	GetByID(ctx context.Context, id int64) (*model.Contract, error)
	Update(ctx context.Context, contract *model.Contract) error
	ByStudentID(ctx context.Context, studentID int64) ([]*model.Contract, error)
}

// Clock supplies the current instant, injected so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// Notifier dispatches fire-and-forget user notifications. Implementations
// must not block the calling operation on delivery; errors are logged by the
// implementation, never propagated into the engine's transactions.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string)
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, userID int64, message string) {}
