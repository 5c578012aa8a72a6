package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/service"
)

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, model.Validationf("invalid %s", name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, model.Validationf("invalid %s", name)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.Validationf("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleGenerateSlots(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, model.Validationf("invalid date, want YYYY-MM-DD"))
		return
	}
	slotCount := 1
	if v := r.URL.Query().Get("slot_count"); v != "" {
		if slotCount, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, model.Validationf("invalid slot_count"))
			return
		}
	}

	slots, err := s.schedule.GenerateSlots(r.Context(), tutorID, day, slotCount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tutor_id": tutorID, "slots": slots})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	intervals, err := s.availability.GetTemplate(r.Context(), tutorID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tutor_id": tutorID, "intervals": intervals})
}

func (s *Server) handleSetTemplate(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Intervals []model.TemplateInterval `json:"intervals"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.availability.SetTemplate(r.Context(), tutorID, req.Intervals); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewUnavailability(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		s.writeError(w, r, model.Validationf("invalid from instant"))
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		s.writeError(w, r, model.Validationf("invalid to instant"))
		return
	}

	affected, err := s.availability.PreviewUnavailability(r.Context(), tutorID, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affected_sessions": affected})
}

func (s *Server) handleDeclareUnavailable(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
		Reason   string    `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	period, report, err := s.availability.DeclareUnavailable(r.Context(), tutorID, req.StartsAt, req.EndsAt, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"period": period, "reconciliation": report})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	periodID, err := pathID(r, "periodID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.availability.Resume(r.Context(), tutorID, periodID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TutorID   int64     `json:"tutor_id"`
		StudentID int64     `json:"student_id"`
		StartsAt  time.Time `json:"starts_at"`
		SlotCount int       `json:"slot_count"`
		Topic     string    `json:"topic"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.sessions.Book(r.Context(), req.TutorID, req.StudentID, req.StartsAt, req.SlotCount, req.Topic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Cancel(r.Context(), sessionID, req.ActorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Start(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		ActualMinutes int `json:"actual_minutes"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Complete(r.Context(), sessionID, time.Duration(req.ActualMinutes)*time.Minute); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkNoShow(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.MarkNoShow(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contractRequest struct {
	StudentID   int64  `json:"student_id"`
	TutorID     int64  `json:"tutor_id"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date"`
	Weekdays    []int  `json:"weekdays"`
	StartMinute int    `json:"start_minute"`
	SlotCount   int    `json:"slot_count"`
	Topic       string `json:"topic"`
}

func (req *contractRequest) spec() (service.ContractSpec, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return service.ContractSpec{}, model.Validationf("invalid start_date, want YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return service.ContractSpec{}, model.Validationf("invalid end_date, want YYYY-MM-DD")
	}
	return service.ContractSpec{
		StartDate:   startDate,
		EndDate:     endDate,
		Weekdays:    req.Weekdays,
		StartMinute: req.StartMinute,
		SlotCount:   req.SlotCount,
		Topic:       req.Topic,
	}, nil
}

func (s *Server) handleProposeContract(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	spec, err := req.spec()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contract, err := s.contracts.Propose(r.Context(), req.StudentID, req.TutorID, spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contract)
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "contractID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, err := s.contracts.GetByID(r.Context(), contractID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if contract == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "contract not found", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (s *Server) handleEditContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "contractID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req contractRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	spec, err := req.spec()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contract, err := s.contracts.Edit(r.Context(), contractID, req.StudentID, spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (s *Server) handleRespondContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "contractID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Accept bool   `json:"accept"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.contracts.Respond(r.Context(), contractID, req.Accept, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "contractID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		ActorID int64  `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.contracts.Cancel(r.Context(), contractID, req.ActorID, req.Reason); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "student_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tutorID, err := queryID(r, "tutor_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.ledger.GetSummary(r.Context(), studentID, tutorID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student_id":      summary.StudentID,
		"tutor_id":        summary.TutorID,
		"total_purchased": summary.TotalPurchased,
		"used":            summary.Used,
		"reserved":        summary.Reserved,
		"available":       summary.Available(),
	})
}

func (s *Server) handleAddPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID int64 `json:"student_id"`
		TutorID   int64 `json:"tutor_id"`
		Amount    int64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.AddPurchase(r.Context(), req.StudentID, req.TutorID, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentSessions(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sessions, err := s.sessions.GetStudentSessions(r.Context(), studentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleStudentContracts(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contracts, err := s.contracts.GetStudentContracts(r.Context(), studentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": contracts})
}
