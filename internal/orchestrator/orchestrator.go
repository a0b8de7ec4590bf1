// Package orchestrator mediates every appointment mutation. It validates
// inputs and checks the status state machine locally, calls the remote
// clinic API, and on success replaces the caller's held copy with the
// authoritative response. On failure the held copy is untouched and the
// error is surfaced; there are no partial commits and no automatic
// retries.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odontoplus/scheduling/internal/appointment"
	"github.com/odontoplus/scheduling/internal/availability"
	"github.com/odontoplus/scheduling/internal/backend"
	"github.com/odontoplus/scheduling/internal/events"
)

// Backend is the remote clinic API surface the orchestrator depends on.
type Backend interface {
	Create(ctx context.Context, draft appointment.Draft, createdBy string) (appointment.Appointment, error)
	Update(ctx context.Context, id string, draft appointment.Draft) (appointment.Appointment, error)
	FetchByID(ctx context.Context, id string) (appointment.Appointment, error)
	ListByDentistAndDate(ctx context.Context, dentistID string, date appointment.Date) ([]appointment.Appointment, error)
	CheckAvailability(ctx context.Context, dentistID string, date appointment.Date, start, end appointment.TimeOfDay) (bool, error)
	Confirm(ctx context.Context, id, actingUser string) (appointment.Appointment, error)
	Start(ctx context.Context, id, actingUser string) (appointment.Appointment, error)
	Complete(ctx context.Context, id, actingUser string) (appointment.Appointment, error)
	MarkNoShow(ctx context.Context, id, actingUser string) (appointment.Appointment, error)
	Cancel(ctx context.Context, id, reason, actingUser string) (appointment.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// Announcer publishes lifecycle events after successful mutations.
type Announcer interface {
	AppointmentChanged(ctx context.Context, eventType string, appt appointment.Appointment)
}

// ViewInvalidator drops cached calendar views for a dentist.
type ViewInvalidator interface {
	InvalidateDentist(ctx context.Context, dentistID string)
}

type Orchestrator struct {
	backend   Backend
	announcer Announcer
	views     ViewInvalidator
	logger    *slog.Logger
}

// New builds an orchestrator. announcer and views may be nil.
func New(b Backend, announcer Announcer, views ViewInvalidator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{backend: b, announcer: announcer, views: views, logger: logger}
}

// Fetch loads the current authoritative record.
func (o *Orchestrator) Fetch(ctx context.Context, id string) (appointment.Appointment, error) {
	return o.backend.FetchByID(ctx, id)
}

// Create validates the draft and submits it. New appointments always start
// in scheduled status; the remote API assigns the id and audit fields.
func (o *Orchestrator) Create(ctx context.Context, draft appointment.Draft, actingUser string) (appointment.Appointment, error) {
	if err := draft.Validate(); err != nil {
		return appointment.Appointment{}, err
	}
	created, err := o.backend.Create(ctx, draft, actingUser)
	if err != nil {
		return appointment.Appointment{}, err
	}
	o.afterMutation(ctx, events.EventCreated, created)
	return created, nil
}

// Edit submits a full field update for the held record. Finalized records
// are immutable; the remote API re-checks regardless, since the held copy
// may be stale.
func (o *Orchestrator) Edit(ctx context.Context, current appointment.Appointment, draft appointment.Draft) (appointment.Appointment, error) {
	if current.Finalized() {
		return appointment.Appointment{}, &appointment.FinalizedError{ID: current.ID, Status: current.Status}
	}
	if err := draft.Validate(); err != nil {
		return appointment.Appointment{}, err
	}
	updated, err := o.backend.Update(ctx, current.ID, draft)
	if err != nil {
		return appointment.Appointment{}, err
	}
	o.afterMutation(ctx, events.EventUpdated, updated)
	return updated, nil
}

func (o *Orchestrator) Confirm(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	return o.transition(ctx, current, appointment.ActionConfirm, events.EventConfirmed, func(ctx context.Context) (appointment.Appointment, error) {
		return o.backend.Confirm(ctx, current.ID, actingUser)
	})
}

func (o *Orchestrator) Start(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	return o.transition(ctx, current, appointment.ActionStart, events.EventStarted, func(ctx context.Context) (appointment.Appointment, error) {
		return o.backend.Start(ctx, current.ID, actingUser)
	})
}

func (o *Orchestrator) Complete(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	return o.transition(ctx, current, appointment.ActionComplete, events.EventCompleted, func(ctx context.Context) (appointment.Appointment, error) {
		return o.backend.Complete(ctx, current.ID, actingUser)
	})
}

func (o *Orchestrator) MarkNoShow(ctx context.Context, current appointment.Appointment, actingUser string) (appointment.Appointment, error) {
	return o.transition(ctx, current, appointment.ActionMarkNoShow, events.EventNoShow, func(ctx context.Context) (appointment.Appointment, error) {
		return o.backend.MarkNoShow(ctx, current.ID, actingUser)
	})
}

// Cancel requires a non-empty reason; a whitespace-only reason fails
// locally without reaching the remote API.
func (o *Orchestrator) Cancel(ctx context.Context, current appointment.Appointment, reason, actingUser string) (appointment.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appointment.Appointment{}, &appointment.ValidationError{Field: "reason", Reason: "required to cancel"}
	}
	return o.transition(ctx, current, appointment.ActionCancel, events.EventCancelled, func(ctx context.Context) (appointment.Appointment, error) {
		return o.backend.Cancel(ctx, current.ID, reason, actingUser)
	})
}

// Delete removes the record remotely. Delete is a list-management
// convenience, not a transition; it carries no status precondition.
func (o *Orchestrator) Delete(ctx context.Context, current appointment.Appointment) error {
	if err := o.backend.Delete(ctx, current.ID); err != nil {
		return err
	}
	o.afterMutation(ctx, events.EventDeleted, current)
	return nil
}

// CheckSlot is the advisory availability check: it runs the local overlap
// check over the dentist's appointments for the day and, when the local
// check passes, consults the remote authoritative check as well. A remote
// transport failure downgrades the answer to the local result, since the
// check is a best-effort pre-filter either way.
func (o *Orchestrator) CheckSlot(ctx context.Context, req availability.Request) (availability.Result, error) {
	if !req.EndTime.After(req.StartTime) {
		return availability.Result{}, &appointment.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	existing, err := o.backend.ListByDentistAndDate(ctx, req.DentistID, req.Date)
	if err != nil {
		return availability.Result{}, err
	}
	result := availability.Check(existing, req)
	if !result.Available {
		return result, nil
	}

	remoteOK, err := o.backend.CheckAvailability(ctx, req.DentistID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		o.logger.Warn("remote availability check failed, using local result", "dentist_id", req.DentistID, "err", err)
		return result, nil
	}
	if !remoteOK {
		return availability.Result{Available: false}, nil
	}
	return result, nil
}

// transition applies one state-machine action. The local check runs before
// any network round trip so an illegal transition fails fast, but the
// remote API remains the authority: a retried transition that already
// applied remotely is rejected there, never silently accepted here.
func (o *Orchestrator) transition(ctx context.Context, current appointment.Appointment, action appointment.Action, eventType string, call func(context.Context) (appointment.Appointment, error)) (appointment.Appointment, error) {
	if _, err := appointment.Next(current.Status, action); err != nil {
		return appointment.Appointment{}, err
	}
	updated, err := call(ctx)
	if err != nil {
		return appointment.Appointment{}, err
	}
	o.afterMutation(ctx, eventType, updated)
	return updated, nil
}

func (o *Orchestrator) afterMutation(ctx context.Context, eventType string, appt appointment.Appointment) {
	if o.announcer != nil {
		o.announcer.AppointmentChanged(ctx, eventType, appt)
	}
	if o.views != nil {
		o.views.InvalidateDentist(ctx, appt.DentistID)
	}
}

// ensure the concrete client satisfies the Backend surface
var _ Backend = (*backend.Client)(nil)
