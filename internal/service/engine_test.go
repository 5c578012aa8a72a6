package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorbase/engine/internal/metrics"
	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/repository/memory"
	"github.com/tutorbase/engine/internal/service"
)

const (
	tutorID   = int64(1)
	studentID = int64(100)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, fmt.Sprintf("%d: %s", userID, message))
}

type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	notifier     *recordingNotifier
	ledger       *service.LedgerService
	schedule     *service.ScheduleService
	sessions     *service.SessionService
	contracts    *service.ContractService
	availability *service.AvailabilityService
}

// newFixture wires the services over the in-memory store with the clock
// pinned one week before the test dates. The tutor charges 2 credits per
// 20 minute interval and works Mondays 09:00-10:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	clock := &fakeClock{now: ts(t, "2023-12-25T12:00:00Z")}
	notifier := &recordingNotifier{}
	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	ledgerSvc := service.NewLedgerService(store, logger)
	scheduleSvc := service.NewScheduleService(store, clock, 30*time.Minute, logger)
	sessionSvc := service.NewSessionService(store, ledgerSvc, scheduleSvc, notifier, m, clock, logger)
	contractSvc := service.NewContractService(store, ledgerSvc, scheduleSvc, sessionSvc, notifier, m, logger)
	availabilitySvc := service.NewAvailabilityService(store, sessionSvc, notifier, m, clock, logger)

	require.NoError(t, store.Tutors().Upsert(ctx, &model.Tutor{
		ID:                  tutorID,
		CreditFactor:        2,
		BaseIntervalMinutes: 20,
	}))
	require.NoError(t, availabilitySvc.SetTemplate(ctx, tutorID, []model.TemplateInterval{
		{Weekday: 1, StartMinute: 540, EndMinute: 600},
	}))

	return &fixture{
		store:        store,
		clock:        clock,
		notifier:     notifier,
		ledger:       ledgerSvc,
		schedule:     scheduleSvc,
		sessions:     sessionSvc,
		contracts:    contractSvc,
		availability: availabilitySvc,
	}
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed.UTC()
}

func (f *fixture) topUp(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.AddPurchase(context.Background(), studentID, tutorID, amount))
}

func (f *fixture) balances(t *testing.T) *model.CreditLedger {
	t.Helper()
	ledger, err := f.ledger.GetSummary(context.Background(), studentID, tutorID)
	require.NoError(t, err)
	assert.LessOrEqual(t, ledger.Used+ledger.Reserved, ledger.TotalPurchased)
	return ledger
}

func TestBookAndCancelRestoresSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)
	day := ts(t, "2024-01-01T00:00:00Z")

	slots, err := f.schedule.GenerateSlots(ctx, tutorID, day, 1)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	session, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "algebra")
	require.NoError(t, err)
	assert.Equal(t, int64(2), session.Credits)
	assert.Equal(t, model.SessionStatusScheduled, session.Status)

	slots, err = f.schedule.GenerateSlots(ctx, tutorID, day, 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		ts(t, "2024-01-01T09:20:00Z"),
		ts(t, "2024-01-01T09:40:00Z"),
	}, slots)

	l := f.balances(t)
	assert.Equal(t, int64(2), l.Used)
	assert.Equal(t, int64(8), l.Available())

	require.NoError(t, f.sessions.Cancel(ctx, session.ID, studentID))

	slots, err = f.schedule.GenerateSlots(ctx, tutorID, day, 1)
	require.NoError(t, err)
	assert.Len(t, slots, 3)

	l = f.balances(t)
	assert.Equal(t, int64(0), l.Used)
	assert.Equal(t, int64(10), l.Available())
}

func TestBookInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 1) // a single session costs 2

	_, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	var insufficient *model.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.Shortfall)

	// Nothing was committed.
	sessions, err := f.sessions.GetStudentSessions(ctx, studentID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	l := f.balances(t)
	assert.Equal(t, int64(0), l.Used)
}

func TestBookOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)

	startsAt := ts(t, "2024-01-01T09:00:00Z")
	_, err := f.sessions.Book(ctx, tutorID, studentID, startsAt, 1, "")
	require.NoError(t, err)

	_, err = f.sessions.Book(ctx, tutorID, int64(200), startsAt, 1, "")
	var unavailable *model.SlotUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestBookBelowMinNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)

	// 09:00 on the day the clock sits in: the notice floor pushes past it.
	f.clock.Set(ts(t, "2024-01-01T08:45:00Z"))

	_, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	var unavailable *model.SlotUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// 09:20 is still past the 30 minute notice.
	_, err = f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:20:00Z"), 1, "")
	require.NoError(t, err)
}

func TestCompleteAdHocSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)

	session, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Start(ctx, session.ID))
	require.NoError(t, f.sessions.Complete(ctx, session.ID, 20*time.Minute))

	got, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, got.Status)

	// The direct debit from booking stands, nothing moves on completion.
	l := f.balances(t)
	assert.Equal(t, int64(2), l.Used)
	assert.Equal(t, int64(0), l.Reserved)

	// A completed session cannot be cancelled.
	err = f.sessions.Cancel(ctx, session.ID, studentID)
	var transition *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestMarkNoShowKeepsDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)

	session, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	require.NoError(t, err)
	require.NoError(t, f.sessions.MarkNoShow(ctx, session.ID))

	got, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusNoShow, got.Status)

	l := f.balances(t)
	assert.Equal(t, int64(2), l.Used)
	assert.Equal(t, int64(8), l.Available())
}

func TestContractLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	spec := service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1}, // Jan 1 and Jan 8
		StartMinute: 540,
		SlotCount:   1,
		Topic:       "geometry",
	}

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, spec)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusPending, contract.Status)
	assert.Equal(t, int64(4), contract.TotalCredits)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", contract.PublicID.String())

	// Nothing is reserved while the proposal is pending.
	l := f.balances(t)
	assert.Equal(t, int64(0), l.Reserved)

	result, err := f.contracts.Respond(ctx, contract.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusAccepted, result.Contract.Status)
	assert.Len(t, result.Sessions, 2)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, int64(4), result.Contract.ReservedCredits)

	l = f.balances(t)
	assert.Equal(t, int64(4), l.Reserved)
	assert.Equal(t, int64(16), l.Available())

	// Responding twice is rejected.
	_, err = f.contracts.Respond(ctx, contract.ID, true, "")
	var transition *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)

	// Complete both occurrences; the contract resolves with them.
	for _, sess := range result.Sessions {
		require.NoError(t, f.sessions.Complete(ctx, sess.ID, 20*time.Minute))
	}

	contract, err = f.contracts.GetByID(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusCompleted, contract.Status)
	assert.Equal(t, int64(4), contract.UsedCredits)
	assert.Equal(t, int64(0), contract.ReservedCredits)

	l = f.balances(t)
	assert.Equal(t, int64(4), l.Used)
	assert.Equal(t, int64(0), l.Reserved)
}

func TestContractProposeInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 3) // two occurrences cost 4

	_, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	var insufficient *model.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.Shortfall)
}

func TestContractProposeEmptySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	// Jan 2 to Jan 6 contains no Monday.
	_, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-02T00:00:00Z"),
		EndDate:     ts(t, "2024-01-06T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	var empty *model.EmptyScheduleError
	require.ErrorAs(t, err, &empty)
}

func TestContractRejectLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)

	result, err := f.contracts.Respond(ctx, contract.ID, false, "schedule full")
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusRejected, result.Contract.Status)
	assert.Equal(t, "schedule full", result.Contract.Reason)

	l := f.balances(t)
	assert.Equal(t, int64(0), l.Reserved)
	assert.Equal(t, int64(20), l.Available())

	sessions, err := f.sessions.GetStudentSessions(ctx, studentID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestContractEditPendingOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)

	// Only the proposing student may edit.
	_, err = f.contracts.Edit(ctx, contract.ID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-21T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)

	edited, err := f.contracts.Edit(ctx, contract.ID, studentID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-21T00:00:00Z"), // three Mondays now
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), edited.TotalCredits)

	// Accepted contracts are frozen.
	_, err = f.contracts.Respond(ctx, contract.ID, true, "")
	require.NoError(t, err)
	_, err = f.contracts.Edit(ctx, contract.ID, studentID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	var transition *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestContractAcceptSkipsOccupiedOccurrences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-22T00:00:00Z"),
		Weekdays:    []int{1}, // Jan 1, 8, 15, 22
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)

	// Another student takes the Jan 8 slot before the tutor responds.
	otherStudent := int64(200)
	require.NoError(t, f.ledger.AddPurchase(ctx, otherStudent, tutorID, 10))
	_, err = f.sessions.Book(ctx, tutorID, otherStudent, ts(t, "2024-01-08T09:00:00Z"), 1, "")
	require.NoError(t, err)

	result, err := f.contracts.Respond(ctx, contract.ID, true, "")
	require.NoError(t, err)
	assert.Len(t, result.Sessions, 3)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, ts(t, "2024-01-08T09:00:00Z"), result.Skipped[0])
	assert.Equal(t, int64(6), result.Contract.ReservedCredits)
	assert.Equal(t, int64(6), result.Contract.TotalCredits)

	l := f.balances(t)
	assert.Equal(t, int64(6), l.Reserved)
}

func TestContractAcceptAllOccurrencesBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-01T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)

	otherStudent := int64(200)
	require.NoError(t, f.ledger.AddPurchase(ctx, otherStudent, tutorID, 10))
	_, err = f.sessions.Book(ctx, tutorID, otherStudent, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	require.NoError(t, err)

	_, err = f.contracts.Respond(ctx, contract.ID, true, "")
	var unavailable *model.SlotUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The failed accept rolled back: still pending, nothing reserved.
	contract, err = f.contracts.GetByID(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusPending, contract.Status)
	l := f.balances(t)
	assert.Equal(t, int64(0), l.Reserved)
}

func TestContractCancelReleasesRemainingSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-01T00:00:00Z"),
		EndDate:     ts(t, "2024-01-14T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)
	result, err := f.contracts.Respond(ctx, contract.ID, true, "")
	require.NoError(t, err)

	// The first occurrence completes before the student cancels.
	require.NoError(t, f.sessions.Complete(ctx, result.Sessions[0].ID, 20*time.Minute))

	require.NoError(t, f.contracts.Cancel(ctx, contract.ID, studentID, "moving abroad"))

	contract, err = f.contracts.GetByID(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusCancelled, contract.Status)
	assert.Equal(t, int64(2), contract.UsedCredits)
	assert.Equal(t, int64(0), contract.ReservedCredits)

	second, err := f.sessions.GetByID(ctx, result.Sessions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, second.Status)

	// The completed occurrence stays consumed, the cancelled one returned.
	l := f.balances(t)
	assert.Equal(t, int64(2), l.Used)
	assert.Equal(t, int64(0), l.Reserved)
	assert.Equal(t, int64(18), l.Available())
}

func TestBlackoutReconcilesCommittedSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 20)

	// One ad-hoc booking on Jan 1, one accepted contract occurrence on Jan 8.
	adHoc, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	require.NoError(t, err)

	contract, err := f.contracts.Propose(ctx, studentID, tutorID, service.ContractSpec{
		StartDate:   ts(t, "2024-01-08T00:00:00Z"),
		EndDate:     ts(t, "2024-01-08T00:00:00Z"),
		Weekdays:    []int{1},
		StartMinute: 540,
		SlotCount:   1,
	})
	require.NoError(t, err)
	accepted, err := f.contracts.Respond(ctx, contract.ID, true, "")
	require.NoError(t, err)
	require.Len(t, accepted.Sessions, 1)
	contractSession := accepted.Sessions[0]

	before := f.balances(t)
	assert.Equal(t, int64(2), before.Used)     // ad-hoc debit
	assert.Equal(t, int64(2), before.Reserved) // contract reservation

	from := ts(t, "2024-01-01T00:00:00Z")
	to := ts(t, "2024-01-15T00:00:00Z")

	preview, err := f.availability.PreviewUnavailability(ctx, tutorID, from, to)
	require.NoError(t, err)
	assert.Len(t, preview, 2)

	period, report, err := f.availability.DeclareUnavailable(ctx, tutorID, from, to, "illness")
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.ElementsMatch(t, []int64{adHoc.ID, contractSession.ID}, report.Cancelled)
	assert.Empty(t, report.Failed)

	// Both refund paths ran: the direct debit reversed, the reservation
	// released and mirrored on the contract.
	after := f.balances(t)
	assert.Equal(t, int64(0), after.Used)
	assert.Equal(t, int64(0), after.Reserved)
	assert.Equal(t, int64(20), after.Available())

	contract, err = f.contracts.GetByID(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), contract.ReservedCredits)

	// The blackout also removes the slots from generation.
	slots, err := f.schedule.GenerateSlots(ctx, tutorID, ts(t, "2024-01-08T00:00:00Z"), 1)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestResumeRestoresSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	from := ts(t, "2024-01-01T00:00:00Z")
	to := ts(t, "2024-01-02T00:00:00Z")
	period, _, err := f.availability.DeclareUnavailable(ctx, tutorID, from, to, "conference")
	require.NoError(t, err)

	slots, err := f.schedule.GenerateSlots(ctx, tutorID, from, 1)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// A foreign tutor cannot end the period.
	err = f.availability.Resume(ctx, int64(99), period.ID)
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)

	require.NoError(t, f.availability.Resume(ctx, tutorID, period.ID))

	slots, err = f.schedule.GenerateSlots(ctx, tutorID, from, 1)
	require.NoError(t, err)
	assert.Len(t, slots, 3)

	// Resuming twice is an invalid transition.
	err = f.availability.Resume(ctx, tutorID, period.ID)
	var transition *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestEndExpiredPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.availability.DeclareUnavailable(ctx, tutorID,
		ts(t, "2024-01-01T00:00:00Z"), ts(t, "2024-01-02T00:00:00Z"), "")
	require.NoError(t, err)

	// Still active while the clock is before the period end.
	n, err := f.availability.EndExpiredPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	f.clock.Set(ts(t, "2024-01-03T00:00:00Z"))
	n, err = f.availability.EndExpiredPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.availability.EndExpiredPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCancelRequiresParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topUp(t, 10)

	session, err := f.sessions.Book(ctx, tutorID, studentID, ts(t, "2024-01-01T09:00:00Z"), 1, "")
	require.NoError(t, err)

	err = f.sessions.Cancel(ctx, session.ID, int64(9999))
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)

	got, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusScheduled, got.Status)
}

func TestSetTemplateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.availability.SetTemplate(ctx, tutorID, []model.TemplateInterval{
		{Weekday: 1, StartMinute: 540, EndMinute: 620},
		{Weekday: 1, StartMinute: 600, EndMinute: 660},
	})
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)

	// The previous template survives a rejected replacement.
	template, err := f.availability.GetTemplate(ctx, tutorID)
	require.NoError(t, err)
	require.Len(t, template, 1)
	assert.Equal(t, 540, template[0].StartMinute)
}
