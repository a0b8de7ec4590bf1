package appointment

import (
	"strings"
	"time"
)

// Appointment is the scheduling record as held by the remote clinic API.
// IDs and audit timestamps are assigned remotely; this service never
// mutates a record except through the orchestrator's named operations.
type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	DentistID   string    `json:"dentist_id"`
	Date        Date      `json:"date"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Procedure   Procedure `json:"procedure_type"`
	Status      Status    `json:"status"`

	Observations string `json:"observations,omitempty"`

	// Cancellation metadata, present only when Status is cancelled.
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Editable reports whether the record may still be modified. Editable and
// Finalized are mutually exclusive and exhaustive over the status enum.
func (a Appointment) Editable() bool { return a.Status.Editable() }

// Finalized reports whether the record is terminal and immutable.
func (a Appointment) Finalized() bool { return a.Status.Finalized() }

// StartAt composes the appointment date and start time into an instant.
func (a Appointment) StartAt(loc *time.Location) time.Time {
	return a.Date.At(a.StartTime, loc)
}

// EndAt composes the appointment date and end time into an instant.
func (a Appointment) EndAt(loc *time.Location) time.Time {
	return a.Date.At(a.EndTime, loc)
}

// Draft carries the caller-supplied fields for a create or edit request.
// The remote API owns everything else (id, status, audit fields).
type Draft struct {
	PatientID    string    `json:"patient_id"`
	PatientName  string    `json:"patient_name,omitempty"`
	DentistID    string    `json:"dentist_id"`
	Date         Date      `json:"date"`
	StartTime    TimeOfDay `json:"start_time"`
	EndTime      TimeOfDay `json:"end_time"`
	Procedure    Procedure `json:"procedure_type"`
	Observations string    `json:"observations,omitempty"`
}

// Validate checks the draft's local invariants. It never consults the
// remote API.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.PatientID) == "" {
		return &ValidationError{Field: "patient_id", Reason: "required"}
	}
	if strings.TrimSpace(d.DentistID) == "" {
		return &ValidationError{Field: "dentist_id", Reason: "required"}
	}
	if d.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if !d.Procedure.Valid() {
		return &ValidationError{Field: "procedure_type", Reason: "unknown procedure type"}
	}
	if !d.EndTime.After(d.StartTime) {
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return nil
}
