// Package memory implements the engine's storage in process memory. It
// backs the unit tests and the STORE=memory dev mode. One mutex serializes
// all transactions, and Atomic restores a snapshot on error, so the
// all-or-nothing behaviour matches the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/service"
)

type txKey struct{}

type ledgerKey struct {
	studentID int64
	tutorID   int64
}

type data struct {
	tutors    map[int64]model.Tutor
	templates map[int64][]model.TemplateInterval
	periods   map[int64]model.UnavailabilityPeriod
	ledgers   map[ledgerKey]model.CreditLedger
	sessions  map[int64]model.Session
	contracts map[int64]model.Contract

	nextPeriodID   int64
	nextSessionID  int64
	nextContractID int64
}

func newData() *data {
	return &data{
		tutors:    make(map[int64]model.Tutor),
		templates: make(map[int64][]model.TemplateInterval),
		periods:   make(map[int64]model.UnavailabilityPeriod),
		ledgers:   make(map[ledgerKey]model.CreditLedger),
		sessions:  make(map[int64]model.Session),
		contracts: make(map[int64]model.Contract),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.tutors {
		c.tutors[k] = v
	}
	for k, v := range d.templates {
		c.templates[k] = append([]model.TemplateInterval(nil), v...)
	}
	for k, v := range d.periods {
		c.periods[k] = v
	}
	for k, v := range d.ledgers {
		c.ledgers[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = copySession(v)
	}
	for k, v := range d.contracts {
		c.contracts[k] = copyContract(v)
	}
	c.nextPeriodID = d.nextPeriodID
	c.nextSessionID = d.nextSessionID
	c.nextContractID = d.nextContractID
	return c
}

func copySession(s model.Session) model.Session {
	if s.ContractID != nil {
		id := *s.ContractID
		s.ContractID = &id
	}
	return s
}

func copyContract(c model.Contract) model.Contract {
	c.Weekdays = append([]int(nil), c.Weekdays...)
	return c
}

type Store struct {
	mu   sync.Mutex
	data *data
}

func NewStore() *Store {
	return &Store{data: newData()}
}

// Atomic serializes the callback behind the store mutex and rolls the whole
// state back if it fails. A nested call joins the in-flight transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// lock guards plain reads made outside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Tutors() service.TutorRepository              { return &tutorRepo{s} }
func (s *Store) Availability() service.AvailabilityRepository { return &availabilityRepo{s} }
func (s *Store) Ledgers() service.LedgerRepository            { return &ledgerRepo{s} }
func (s *Store) Sessions() service.SessionRepository          { return &sessionRepo{s} }
func (s *Store) Contracts() service.ContractRepository        { return &contractRepo{s} }

type tutorRepo struct{ store *Store }

func (r *tutorRepo) GetByID(ctx context.Context, id int64) (*model.Tutor, error) {
	defer r.store.lock(ctx)()
	tutor, ok := r.store.data.tutors[id]
	if !ok {
		return nil, nil
	}
	return &tutor, nil
}

func (r *tutorRepo) Upsert(ctx context.Context, tutor *model.Tutor) error {
	defer r.store.lock(ctx)()
	if tutor.CreatedAt.IsZero() {
		tutor.CreatedAt = time.Now().UTC()
	}
	r.store.data.tutors[tutor.ID] = *tutor
	return nil
}

func (r *tutorRepo) LockForScheduling(ctx context.Context, id int64) error {
	// The store mutex already serializes transactions.
	defer r.store.lock(ctx)()
	if _, ok := r.store.data.tutors[id]; !ok {
		return model.Validationf("tutor %d not found", id)
	}
	return nil
}

type availabilityRepo struct{ store *Store }

func (r *availabilityRepo) GetTemplate(ctx context.Context, tutorID int64) ([]model.TemplateInterval, error) {
	defer r.store.lock(ctx)()
	intervals := append([]model.TemplateInterval(nil), r.store.data.templates[tutorID]...)
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].Weekday != intervals[j].Weekday {
			return intervals[i].Weekday < intervals[j].Weekday
		}
		return intervals[i].StartMinute < intervals[j].StartMinute
	})
	return intervals, nil
}

func (r *availabilityRepo) ReplaceTemplate(ctx context.Context, tutorID int64, intervals []model.TemplateInterval) error {
	defer r.store.lock(ctx)()
	r.store.data.templates[tutorID] = append([]model.TemplateInterval(nil), intervals...)
	return nil
}

func (r *availabilityRepo) CreatePeriod(ctx context.Context, period *model.UnavailabilityPeriod) error {
	defer r.store.lock(ctx)()
	r.store.data.nextPeriodID++
	period.ID = r.store.data.nextPeriodID
	period.CreatedAt = time.Now().UTC()
	r.store.data.periods[period.ID] = *period
	return nil
}

func (r *availabilityRepo) GetPeriod(ctx context.Context, id int64) (*model.UnavailabilityPeriod, error) {
	defer r.store.lock(ctx)()
	period, ok := r.store.data.periods[id]
	if !ok {
		return nil, nil
	}
	return &period, nil
}

func (r *availabilityRepo) ActivePeriodsOverlapping(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.UnavailabilityPeriod, error) {
	defer r.store.lock(ctx)()
	var out []*model.UnavailabilityPeriod
	for _, period := range r.store.data.periods {
		if period.TutorID != tutorID || !period.IsActive() {
			continue
		}
		if period.StartsAt.Before(to) && period.EndsAt.After(from) {
			p := period
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *availabilityRepo) EndPeriod(ctx context.Context, id int64) error {
	defer r.store.lock(ctx)()
	period, ok := r.store.data.periods[id]
	if !ok {
		return model.Validationf("unavailability period %d not found", id)
	}
	period.Status = model.PeriodStatusEnded
	r.store.data.periods[id] = period
	return nil
}

func (r *availabilityRepo) EndExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.store.lock(ctx)()
	var n int64
	for id, period := range r.store.data.periods {
		if period.IsActive() && !period.EndsAt.After(now) {
			period.Status = model.PeriodStatusEnded
			r.store.data.periods[id] = period
			n++
		}
	}
	return n, nil
}

type ledgerRepo struct{ store *Store }

func (r *ledgerRepo) Get(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error) {
	defer r.store.lock(ctx)()
	ledger, ok := r.store.data.ledgers[ledgerKey{studentID, tutorID}]
	if !ok {
		return &model.CreditLedger{StudentID: studentID, TutorID: tutorID}, nil
	}
	return &ledger, nil
}

func (r *ledgerRepo) GetForUpdate(ctx context.Context, studentID, tutorID int64) (*model.CreditLedger, error) {
	return r.Get(ctx, studentID, tutorID)
}

func (r *ledgerRepo) Save(ctx context.Context, ledger *model.CreditLedger) error {
	defer r.store.lock(ctx)()
	ledger.UpdatedAt = time.Now().UTC()
	r.store.data.ledgers[ledgerKey{ledger.StudentID, ledger.TutorID}] = *ledger
	return nil
}

type sessionRepo struct{ store *Store }

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	defer r.store.lock(ctx)()
	r.store.data.nextSessionID++
	session.ID = r.store.data.nextSessionID
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.store.data.sessions[session.ID] = copySession(*session)
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	defer r.store.lock(ctx)()
	session, ok := r.store.data.sessions[id]
	if !ok {
		return nil, nil
	}
	session = copySession(session)
	return &session, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) error {
	defer r.store.lock(ctx)()
	session, ok := r.store.data.sessions[id]
	if !ok {
		return model.Validationf("session %d not found", id)
	}
	session.Status = status
	session.UpdatedAt = time.Now().UTC()
	r.store.data.sessions[id] = session
	return nil
}

func (r *sessionRepo) collect(match func(model.Session) bool) []*model.Session {
	var out []*model.Session
	for _, session := range r.store.data.sessions {
		if match(session) {
			s := copySession(session)
			out = append(out, &s)
		}
	}
	return out
}

func (r *sessionRepo) ActiveByTutorBetween(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Session, error) {
	defer r.store.lock(ctx)()
	out := r.collect(func(s model.Session) bool {
		return s.TutorID == tutorID && s.IsActive() && !s.StartsAt.Before(from) && s.StartsAt.Before(to)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *sessionRepo) ByContractID(ctx context.Context, contractID int64) ([]*model.Session, error) {
	defer r.store.lock(ctx)()
	out := r.collect(func(s model.Session) bool {
		return s.ContractID != nil && *s.ContractID == contractID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *sessionRepo) ByStudentID(ctx context.Context, studentID int64) ([]*model.Session, error) {
	defer r.store.lock(ctx)()
	out := r.collect(func(s model.Session) bool { return s.StudentID == studentID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

type contractRepo struct{ store *Store }

func (r *contractRepo) Create(ctx context.Context, contract *model.Contract) error {
	defer r.store.lock(ctx)()
	r.store.data.nextContractID++
	contract.ID = r.store.data.nextContractID
	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now
	r.store.data.contracts[contract.ID] = copyContract(*contract)
	return nil
}

func (r *contractRepo) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	defer r.store.lock(ctx)()
	contract, ok := r.store.data.contracts[id]
	if !ok {
		return nil, nil
	}
	contract = copyContract(contract)
	return &contract, nil
}

func (r *contractRepo) Update(ctx context.Context, contract *model.Contract) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.data.contracts[contract.ID]; !ok {
		return model.Validationf("contract %d not found", contract.ID)
	}
	contract.UpdatedAt = time.Now().UTC()
	r.store.data.contracts[contract.ID] = copyContract(*contract)
	return nil
}

func (r *contractRepo) ByStudentID(ctx context.Context, studentID int64) ([]*model.Contract, error) {
	defer r.store.lock(ctx)()
	var out []*model.Contract
	for _, contract := range r.store.data.contracts {
		if contract.StudentID == studentID {
			c := copyContract(contract)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
