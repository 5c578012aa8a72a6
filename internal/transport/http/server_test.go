package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	enginehttp "github.com/tutorbase/engine/internal/transport/http"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

// newTestServer wires the full stack over the in-memory store: one tutor
// working Mondays 09:00-10:00 at 2 credits per 20 minute interval.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	clock := stubClock{now: time.Date(2023, 12, 25, 12, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	ledgerSvc := service.NewLedgerService(store, logger)
	scheduleSvc := service.NewScheduleService(store, clock, 30*time.Minute, logger)
	sessionSvc := service.NewSessionService(store, ledgerSvc, scheduleSvc, service.NopNotifier{}, m, clock, logger)
	contractSvc := service.NewContractService(store, ledgerSvc, scheduleSvc, sessionSvc, service.NopNotifier{}, m, logger)
	availabilitySvc := service.NewAvailabilityService(store, sessionSvc, service.NopNotifier{}, m, clock, logger)

	require.NoError(t, store.Tutors().Upsert(ctx, &model.Tutor{ID: 1, CreditFactor: 2, BaseIntervalMinutes: 20}))
	require.NoError(t, availabilitySvc.SetTemplate(ctx, 1, []model.TemplateInterval{
		{Weekday: 1, StartMinute: 540, EndMinute: 600},
	}))

	server := enginehttp.NewServer(availabilitySvc, ledgerSvc, scheduleSvc, sessionSvc, contractSvc, logger)
	return server.Router()
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateSlotsEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/tutors/1/slots?date=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["slots"], 3)

	rec = doJSON(t, h, http.MethodGet, "/v1/tutors/1/slots?date=january", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["kind"])
}

func TestBookErrorMapping(t *testing.T) {
	h := newTestServer(t)

	book := map[string]any{
		"tutor_id":   1,
		"student_id": 100,
		"starts_at":  "2024-01-01T09:00:00Z",
		"slot_count": 1,
	}

	// No credits purchased yet.
	rec := doJSON(t, h, http.MethodPost, "/v1/sessions", book)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "insufficient_credits", body["kind"])
	assert.Equal(t, float64(2), body["shortfall"])

	rec = doJSON(t, h, http.MethodPost, "/v1/ledger/purchase", map[string]any{
		"student_id": 100, "tutor_id": 1, "amount": 10,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/sessions", book)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The same slot again races into a conflict.
	book["student_id"] = 200
	rec = doJSON(t, h, http.MethodPost, "/v1/ledger/purchase", map[string]any{
		"student_id": 200, "tutor_id": 1, "amount": 10,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/v1/sessions", book)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decodeBody(t, rec)["kind"])
}

func TestSessionTransitionConflict(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/ledger/purchase", map[string]any{
		"student_id": 100, "tutor_id": 1, "amount": 10,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/sessions", map[string]any{
		"tutor_id":   1,
		"student_id": 100,
		"starts_at":  "2024-01-01T09:00:00Z",
		"slot_count": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = doJSON(t, h, http.MethodPost, "/v1/sessions/1/cancel", map[string]any{"actor_id": 100})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A cancelled session cannot complete.
	rec = doJSON(t, h, http.MethodPost, "/v1/sessions/1/complete", map[string]any{"actual_minutes": 20})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state_transition", decodeBody(t, rec)["kind"])
}

func TestProposeContractEmptySchedule(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/contracts", map[string]any{
		"student_id":   100,
		"tutor_id":     1,
		"start_date":   "2024-01-02",
		"end_date":     "2024-01-06", // no Monday inside
		"weekdays":     []int{1},
		"start_minute": 540,
		"slot_count":   1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_schedule", decodeBody(t, rec)["kind"])
}

func TestLedgerSummaryEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/ledger/purchase", map[string]any{
		"student_id": 100, "tutor_id": 1, "amount": 7,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/ledger?student_id=100&tutor_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["available"])
	assert.Equal(t, float64(0), body["used"])
}

func TestGetSessionNotFound(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/sessions/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["kind"])
}
