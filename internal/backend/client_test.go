package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/odontoplus/scheduling/internal/appointment"
)

func testDraft() appointment.Draft {
	return appointment.Draft{
		PatientID:   "p1",
		PatientName: "Maria Souza",
		DentistID:   "d1",
		Date:        appointment.NewDate(2025, time.March, 10),
		StartTime:   appointment.NewTimeOfDay(9, 0),
		EndTime:     appointment.NewTimeOfDay(9, 30),
		Procedure:   appointment.ProcedureCleaning,
	}
}

func TestCreate_SendsDraftAndDecodesRecord(t *testing.T) {
	var gotPath, gotCreatedBy string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		gotCreatedBy, _ = body["created_by"].(string)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "apt-1",
			"patient_id":     body["patient_id"],
			"dentist_id":     body["dentist_id"],
			"date":           body["date"],
			"start_time":     body["start_time"],
			"end_time":       body["end_time"],
			"procedure_type": body["procedure_type"],
			"status":         "scheduled",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	created, err := c.Create(context.Background(), testDraft(), "dr.ana")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if gotPath != "POST /appointments" {
		t.Fatalf("request was %q", gotPath)
	}
	if gotCreatedBy != "dr.ana" {
		t.Fatalf("created_by = %q", gotCreatedBy)
	}
	if created.ID != "apt-1" || created.Status != appointment.StatusScheduled {
		t.Fatalf("created = %+v", created)
	}
	if created.Date != appointment.NewDate(2025, time.March, 10) || created.StartTime.String() != "09:00" {
		t.Fatalf("date/time decoded as %v %v", created.Date, created.StartTime)
	}
}

func TestFetchByID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"no such appointment"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, slog.Default()).FetchByID(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestApplyAction_ConflictDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/apt-1/confirm" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":        "slot already taken",
			"conflict_ids": []string{"apt-9"},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, slog.Default()).Confirm(context.Background(), "apt-1", "dr.ana")
	if !IsConflict(err) {
		t.Fatalf("got %v, want ConflictError", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("cannot unwrap ConflictError from %v", err)
	}
	if ce.Message != "slot already taken" || len(ce.ConflictIDs) != 1 || ce.ConflictIDs[0] != "apt-9" {
		t.Fatalf("conflict = %+v", ce)
	}
}

func TestDo_UnprocessableEntityIsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"appointment already finalized"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, slog.Default()).Cancel(context.Background(), "apt-1", "double booked", "dr.ana")
	if !IsConflict(err) {
		t.Fatalf("422 should map to ConflictError, got %v", err)
	}
}

func TestDo_ServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, slog.Default()).FetchByID(context.Background(), "apt-1")
	if !IsTransport(err) {
		t.Fatalf("got %v, want TransportError", err)
	}
}

func TestDo_ConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, err := NewClient(srv.URL, slog.Default()).FetchByID(context.Background(), "apt-1")
	if !IsTransport(err) {
		t.Fatalf("got %v, want TransportError", err)
	}
}

func TestListByDentistAndDate_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("dentist_id") != "d1" || q.Get("date") != "2025-03-10" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"apt-1","status":"scheduled"}]`))
	}))
	defer srv.Close()

	appts, err := NewClient(srv.URL, slog.Default()).ListByDentistAndDate(context.Background(), "d1", appointment.NewDate(2025, time.March, 10))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "apt-1" {
		t.Fatalf("appts = %+v", appts)
	}
}

func TestCheckAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/availability" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("start_time") != "09:00" {
			t.Errorf("start_time = %s", r.URL.Query().Get("start_time"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"available":false}`))
	}))
	defer srv.Close()

	ok, err := NewClient(srv.URL, slog.Default()).CheckAvailability(
		context.Background(), "d1",
		appointment.NewDate(2025, time.March, 10),
		appointment.NewTimeOfDay(9, 0), appointment.NewTimeOfDay(9, 30),
	)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if ok {
		t.Fatal("remote said unavailable")
	}
}

func TestDelete_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, slog.Default()).Delete(context.Background(), "apt-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}
