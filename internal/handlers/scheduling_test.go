package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/odontoplus/scheduling/internal/appointment"
	"github.com/odontoplus/scheduling/internal/availability"
	"github.com/odontoplus/scheduling/internal/backend"
	"github.com/odontoplus/scheduling/internal/calendar"
)

// stubScheduler returns scripted results and records the acting user of
// the last mutation.
type stubScheduler struct {
	appt       appointment.Appointment
	err        error
	slotResult availability.Result

	lastActingUser string
	lastReason     string
}

func (s *stubScheduler) Fetch(context.Context, string) (appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubScheduler) Create(_ context.Context, _ appointment.Draft, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	return s.appt, s.err
}

func (s *stubScheduler) Edit(context.Context, appointment.Appointment, appointment.Draft) (appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubScheduler) Confirm(_ context.Context, _ appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	return s.appt, s.err
}

func (s *stubScheduler) Start(_ context.Context, _ appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	return s.appt, s.err
}

func (s *stubScheduler) Complete(_ context.Context, _ appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	return s.appt, s.err
}

func (s *stubScheduler) MarkNoShow(_ context.Context, _ appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	return s.appt, s.err
}

func (s *stubScheduler) Cancel(_ context.Context, _ appointment.Appointment, reason, actingUser string) (appointment.Appointment, error) {
	s.lastActingUser = actingUser
	s.lastReason = reason
	return s.appt, s.err
}

func (s *stubScheduler) Delete(context.Context, appointment.Appointment) error {
	return s.err
}

func (s *stubScheduler) CheckSlot(context.Context, availability.Request) (availability.Result, error) {
	return s.slotResult, s.err
}

type stubCalendar struct {
	session calendar.ViewSession
	events  []calendar.Event
	err     error
}

func (s *stubCalendar) Events(_ context.Context, session calendar.ViewSession) ([]calendar.Event, error) {
	s.session = session
	return s.events, s.err
}

func newTestServer(sched *stubScheduler, views *stubCalendar) *httptest.Server {
	mux := http.NewServeMux()
	NewSchedulingHandler(sched, views, slog.Default()).Register(mux)
	return httptest.NewServer(mux)
}

func sampleAppointment(status appointment.Status) appointment.Appointment {
	return appointment.Appointment{
		ID:          "apt-1",
		PatientID:   "p1",
		PatientName: "Maria Souza",
		DentistID:   "d1",
		Date:        appointment.NewDate(2025, time.March, 10),
		StartTime:   appointment.NewTimeOfDay(9, 0),
		EndTime:     appointment.NewTimeOfDay(9, 30),
		Procedure:   appointment.ProcedureCleaning,
		Status:      status,
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestCreate_Returns201WithDerivedFlags(t *testing.T) {
	sched := &stubScheduler{appt: sampleAppointment(appointment.StatusScheduled)}
	srv := newTestServer(sched, &stubCalendar{})
	defer srv.Close()

	payload := `{"patient_id":"p1","dentist_id":"d1","date":"2025-03-10","start_time":"09:00","end_time":"09:30","procedure_type":"cleaning"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/appointments", strings.NewReader(payload))
	req.Header.Set(ActingUserHeader, "dr.ana")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["id"] != "apt-1" {
		t.Fatalf("id = %v", body["id"])
	}
	if body["is_editable"] != true || body["is_finalized"] != false {
		t.Fatalf("derived flags = %v / %v", body["is_editable"], body["is_finalized"])
	}
	if _, ok := body["legal_actions"].([]any); !ok {
		t.Fatalf("legal_actions = %v", body["legal_actions"])
	}
	if sched.lastActingUser != "dr.ana" {
		t.Fatalf("acting user = %q", sched.lastActingUser)
	}
}

func TestCreate_MalformedBodyIs400(t *testing.T) {
	srv := newTestServer(&stubScheduler{}, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/appointments", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["kind"] != "validation" {
		t.Fatalf("kind = %v", body["kind"])
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", &appointment.ValidationError{Field: "patient_id", Reason: "required"}, http.StatusBadRequest, "validation"},
		{"invalid transition", &appointment.InvalidTransitionError{Current: appointment.StatusCompleted, Action: appointment.ActionCancel}, http.StatusConflict, "invalid_transition"},
		{"finalized", &appointment.FinalizedError{ID: "apt-1", Status: appointment.StatusCompleted}, http.StatusConflict, "finalized"},
		{"not found", backend.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", &backend.ConflictError{Message: "slot taken"}, http.StatusConflict, "conflict"},
		{"transport", &backend.TransportError{Op: "GET /appointments/apt-1", Err: context.DeadlineExceeded}, http.StatusBadGateway, "transport"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := newTestServer(&stubScheduler{err: c.err}, &stubCalendar{})
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/api/v1/appointments/apt-1")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != c.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, c.wantStatus)
			}
			if body := decodeBody(t, resp); body["kind"] != c.wantKind {
				t.Fatalf("kind = %v, want %s", body["kind"], c.wantKind)
			}
		})
	}
}

func TestCancelAction_PassesReason(t *testing.T) {
	sched := &stubScheduler{appt: sampleAppointment(appointment.StatusCancelled)}
	srv := newTestServer(sched, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/appointments/apt-1/cancel", "application/json",
		strings.NewReader(`{"reason":"patient request"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if sched.lastReason != "patient request" {
		t.Fatalf("reason = %q", sched.lastReason)
	}
	if body := decodeBody(t, resp); body["status"] != "cancelled" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestConfirmAction_EmptyBodyAccepted(t *testing.T) {
	sched := &stubScheduler{appt: sampleAppointment(appointment.StatusConfirmed)}
	srv := newTestServer(sched, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/appointments/apt-1/confirm", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLegalActionsEndpoint(t *testing.T) {
	srv := newTestServer(&stubScheduler{appt: sampleAppointment(appointment.StatusCompleted)}, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/appointments/apt-1/actions")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp)
	actions, ok := body["actions"].([]any)
	if !ok {
		t.Fatalf("actions = %v", body["actions"])
	}
	if len(actions) != 0 {
		t.Fatalf("completed appointment has legal actions: %v", actions)
	}
}

func TestCalendar_ParsesSession(t *testing.T) {
	views := &stubCalendar{}
	srv := newTestServer(&stubScheduler{}, views)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/calendar?dentist_id=d1&granularity=week&anchor=2025-03-10&statuses=scheduled,confirmed")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	if views.session.DentistID != "d1" || views.session.Granularity != calendar.GranularityWeek {
		t.Fatalf("session = %+v", views.session)
	}
	if views.session.Anchor != appointment.NewDate(2025, time.March, 10) {
		t.Fatalf("anchor = %v", views.session.Anchor)
	}
	if len(views.session.Statuses) != 2 {
		t.Fatalf("statuses = %v", views.session.Statuses)
	}
}

func TestCalendar_RejectsBadInput(t *testing.T) {
	srv := newTestServer(&stubScheduler{}, &stubCalendar{})
	defer srv.Close()

	for _, u := range []string{
		"/api/v1/calendar?granularity=week&anchor=2025-03-10",
		"/api/v1/calendar?dentist_id=d1&granularity=fortnight&anchor=2025-03-10",
		"/api/v1/calendar?dentist_id=d1&granularity=week&anchor=10/03/2025",
		"/api/v1/calendar?dentist_id=d1&granularity=week&anchor=2025-03-10&statuses=unknown",
	} {
		resp, err := http.Get(srv.URL + u)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", u, resp.StatusCode)
		}
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	sched := &stubScheduler{slotResult: availability.Result{Available: false, ConflictIDs: []string{"apt-9"}}}
	srv := newTestServer(sched, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/availability?dentist_id=d1&date=2025-03-10&start_time=09:00&end_time=09:30")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["available"] != false {
		t.Fatalf("available = %v", body["available"])
	}
}

func TestProceduresEndpoint(t *testing.T) {
	srv := newTestServer(&stubScheduler{}, &stubCalendar{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/procedures")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != len(appointment.Procedures()) {
		t.Fatalf("got %d procedures", len(items))
	}
	for _, item := range items {
		if item["label"] == "" || item["default_duration_minutes"] == float64(0) {
			t.Fatalf("incomplete procedure entry: %v", item)
		}
	}
}
