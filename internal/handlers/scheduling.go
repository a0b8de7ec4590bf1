// Package handlers is the HTTP surface UI collaborators talk to. All
// mutation goes through the orchestrator; handlers never touch a record
// directly.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odontoplus/scheduling/internal/appointment"
	"github.com/odontoplus/scheduling/internal/availability"
	"github.com/odontoplus/scheduling/internal/backend"
	"github.com/odontoplus/scheduling/internal/calendar"
)

// ActingUserHeader carries the identity performing a mutation. Session
// handling itself is owned by the gateway in front of this service.
const ActingUserHeader = "X-Acting-User"

// Scheduler is the orchestrator surface the handlers consume.
type Scheduler interface {
	Fetch(ctx context.Context, id string) (appointment.Appointment, error)
	Create(ctx context.Context, draft appointment.Draft, actingUser string) (appointment.Appointment, error)
	Edit(ctx context.Context, current appointment.Appointment, draft appointment.Draft) (appointment.Appointment, error)
	Confirm(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error)
	Start(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error)
	Complete(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error)
	MarkNoShow(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error)
	Cancel(ctx context.Context, current appointment.Appointment, reason, actingUser string) (appointment.Appointment, error)
	Delete(ctx context.Context, current appointment.Appointment) error
	CheckSlot(ctx context.Context, req availability.Request) (availability.Result, error)
}

// CalendarView is the aggregator surface the handlers consume.
type CalendarView interface {
	Events(ctx context.Context, s calendar.ViewSession) ([]calendar.Event, error)
}

type SchedulingHandler struct {
	scheduler Scheduler
	views     CalendarView
	logger    *slog.Logger
}

func NewSchedulingHandler(scheduler Scheduler, views CalendarView, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{scheduler: scheduler, views: views, logger: logger}
}

func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/appointments", h.create)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.get)
	mux.HandleFunc("PUT /api/v1/appointments/{id}", h.edit)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", h.delete)
	mux.HandleFunc("GET /api/v1/appointments/{id}/actions", h.legalActions)
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", h.action(appointment.ActionConfirm))
	mux.HandleFunc("POST /api/v1/appointments/{id}/start", h.action(appointment.ActionStart))
	mux.HandleFunc("POST /api/v1/appointments/{id}/complete", h.action(appointment.ActionComplete))
	mux.HandleFunc("POST /api/v1/appointments/{id}/no-show", h.action(appointment.ActionMarkNoShow))
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.action(appointment.ActionCancel))
	mux.HandleFunc("GET /api/v1/calendar", h.calendarView)
	mux.HandleFunc("GET /api/v1/availability", h.checkAvailability)
	mux.HandleFunc("GET /api/v1/procedures", h.procedures)
}

// appointmentResponse adds the derived flags so UI code never computes
// them from the status on its own.
type appointmentResponse struct {
	appointment.Appointment
	IsEditable   bool                 `json:"is_editable"`
	IsFinalized  bool                 `json:"is_finalized"`
	LegalActions []appointment.Action `json:"legal_actions"`
}

func toResponse(appt appointment.Appointment) appointmentResponse {
	actions := appointment.LegalActions(appt.Status)
	if actions == nil {
		actions = []appointment.Action{}
	}
	return appointmentResponse{
		Appointment:  appt,
		IsEditable:   appt.Editable(),
		IsFinalized:  appt.Finalized(),
		LegalActions: actions,
	}
}

func (h *SchedulingHandler) create(w http.ResponseWriter, r *http.Request) {
	var draft appointment.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", "invalid json body")
		return
	}
	created, err := h.scheduler.Create(r.Context(), draft, actingUser(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (h *SchedulingHandler) get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.scheduler.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *SchedulingHandler) edit(w http.ResponseWriter, r *http.Request) {
	var draft appointment.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", "invalid json body")
		return
	}
	current, err := h.scheduler.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.scheduler.Edit(r.Context(), current, draft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (h *SchedulingHandler) delete(w http.ResponseWriter, r *http.Request) {
	current, err := h.scheduler.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.scheduler.Delete(r.Context(), current); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulingHandler) legalActions(w http.ResponseWriter, r *http.Request) {
	appt, err := h.scheduler.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	actions := appointment.LegalActions(appt.Status)
	if actions == nil {
		actions = []appointment.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  appt.Status,
		"actions": actions,
	})
}

type actionBody struct {
	Reason string `json:"reason,omitempty"`
}

// action builds a transition handler. The current record is re-fetched so
// the state-machine check runs against fresh state, then the orchestrator
// re-checks it anyway before calling out.
func (h *SchedulingHandler) action(act appointment.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actionBody
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "validation", "invalid json body")
				return
			}
		}
		current, err := h.scheduler.Fetch(r.Context(), r.PathValue("id"))
		if err != nil {
			h.writeError(w, err)
			return
		}

		user := actingUser(r)
		var updated appointment.Appointment
		switch act {
		case appointment.ActionConfirm:
			updated, err = h.scheduler.Confirm(r.Context(), current, user)
		case appointment.ActionStart:
			updated, err = h.scheduler.Start(r.Context(), current, user)
		case appointment.ActionComplete:
			updated, err = h.scheduler.Complete(r.Context(), current, user)
		case appointment.ActionMarkNoShow:
			updated, err = h.scheduler.MarkNoShow(r.Context(), current, user)
		case appointment.ActionCancel:
			updated, err = h.scheduler.Cancel(r.Context(), current, body.Reason, user)
		default:
			writeJSONError(w, http.StatusNotFound, "validation", "unknown action")
			return
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(updated))
	}
}

func (h *SchedulingHandler) calendarView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dentistID := strings.TrimSpace(q.Get("dentist_id"))
	if dentistID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation", "dentist_id required")
		return
	}
	granularity, err := calendar.ParseGranularity(strings.TrimSpace(q.Get("granularity")))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	anchor, err := appointment.ParseDate(strings.TrimSpace(q.Get("anchor")))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	var statuses []appointment.Status
	if raw := strings.TrimSpace(q.Get("statuses")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := appointment.Status(strings.TrimSpace(s))
			if !st.Valid() {
				writeJSONError(w, http.StatusBadRequest, "validation", "unknown status "+string(st))
				return
			}
			statuses = append(statuses, st)
		}
	}

	session := calendar.ViewSession{
		DentistID:   dentistID,
		Anchor:      anchor,
		Granularity: granularity,
		Statuses:    statuses,
	}
	events, err := h.views.Events(r.Context(), session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *SchedulingHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dentistID := strings.TrimSpace(q.Get("dentist_id"))
	if dentistID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation", "dentist_id required")
		return
	}
	date, err := appointment.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	start, err := appointment.ParseTimeOfDay(strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	end, err := appointment.ParseTimeOfDay(strings.TrimSpace(q.Get("end_time")))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	result, err := h.scheduler.CheckSlot(r.Context(), availability.Request{
		DentistID: dentistID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		ExcludeID: strings.TrimSpace(q.Get("exclude_id")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type procedureItem struct {
	Type            appointment.Procedure `json:"type"`
	Label           string                `json:"label"`
	DefaultDuration int                   `json:"default_duration_minutes"`
}

func (h *SchedulingHandler) procedures(w http.ResponseWriter, _ *http.Request) {
	items := make([]procedureItem, 0)
	for _, p := range appointment.Procedures() {
		items = append(items, procedureItem{
			Type:            p,
			Label:           p.Label(),
			DefaultDuration: int(p.DefaultDuration().Minutes()),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func actingUser(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActingUserHeader))
}

// writeError maps the error taxonomy onto HTTP statuses. The kind field
// lets the UI distinguish input problems (fix and resubmit) from remote
// failures (safe to retry).
func (h *SchedulingHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case appointment.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
	case appointment.IsInvalidTransition(err):
		writeJSONError(w, http.StatusConflict, "invalid_transition", err.Error())
	case appointment.IsFinalized(err):
		writeJSONError(w, http.StatusConflict, "finalized", err.Error())
	case backend.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "appointment not found")
	case backend.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case backend.IsTransport(err):
		h.logger.Error("clinic api call failed", "err", err)
		writeJSONError(w, http.StatusBadGateway, "transport", "clinic api unavailable, please retry")
	default:
		h.logger.Error("unexpected error", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
