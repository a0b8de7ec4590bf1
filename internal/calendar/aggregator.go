// Package calendar turns stored appointments into the event projection a
// rendering surface consumes. The event list is rebuilt wholesale on every
// fetch; nothing here mutates an appointment.
package calendar

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/odontoplus/scheduling/internal/appointment"
)

// Lister is the subset of the clinic API used by calendar views.
type Lister interface {
	ListByDentistAndDate(ctx context.Context, dentistID string, date appointment.Date) ([]appointment.Appointment, error)
	ListByDateRange(ctx context.Context, from, to appointment.Date) ([]appointment.Appointment, error)
}

// Event is one projected calendar entry. Color is a stable one-to-one
// mapping from status used purely for downstream color-coding.
type Event struct {
	ID     string             `json:"id"`
	Title  string             `json:"title"`
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
	Status appointment.Status `json:"status"`
	Color  string             `json:"color"`
}

var statusColors = map[appointment.Status]string{
	appointment.StatusScheduled:  "blue",
	appointment.StatusConfirmed:  "green",
	appointment.StatusInProgress: "amber",
	appointment.StatusCompleted:  "gray",
	appointment.StatusCancelled:  "red",
	appointment.StatusNoShow:     "purple",
}

// Classify maps a status to its display color class.
func Classify(s appointment.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "gray"
}

type Aggregator struct {
	backend Lister
	cache   *ViewCache
	logger  *slog.Logger
	loc     *time.Location
}

// NewAggregator builds an aggregator. cache may be nil, which disables
// view caching. loc controls the timezone the event instants are composed
// in; nil means UTC.
func NewAggregator(backend Lister, cache *ViewCache, logger *slog.Logger, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{backend: backend, cache: cache, logger: logger, loc: loc}
}

// Events fetches and projects the appointment set for the session's
// window. Day views use the dentist+date listing; week and month views
// fetch the date range and filter to the session's dentist client-side.
// The status filter drops events from the projection only.
func (a *Aggregator) Events(ctx context.Context, s ViewSession) ([]Event, error) {
	if a.cache != nil {
		if events, ok := a.cache.Get(ctx, s); ok {
			return events, nil
		}
	}

	var (
		appts []appointment.Appointment
		err   error
	)
	if s.Granularity == GranularityDay {
		appts, err = a.backend.ListByDentistAndDate(ctx, s.DentistID, s.Anchor)
	} else {
		from, to := s.Range()
		appts, err = a.backend.ListByDateRange(ctx, from, to)
	}
	if err != nil {
		return nil, err
	}

	events := a.project(appts, s)

	if a.cache != nil {
		a.cache.Set(ctx, s, events)
	}
	return events, nil
}

func (a *Aggregator) project(appts []appointment.Appointment, s ViewSession) []Event {
	events := make([]Event, 0, len(appts))
	for _, appt := range appts {
		if appt.DentistID != s.DentistID {
			continue
		}
		if !s.includes(appt.Status) {
			continue
		}
		events = append(events, Event{
			ID:     appt.ID,
			Title:  eventTitle(appt),
			Start:  appt.StartAt(a.loc),
			End:    appt.EndAt(a.loc),
			Status: appt.Status,
			Color:  Classify(appt.Status),
		})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

func eventTitle(appt appointment.Appointment) string {
	title := appt.PatientName
	if title == "" {
		title = appt.PatientID
	}
	if appt.Procedure != "" {
		title += " - " + appt.Procedure.Label()
	}
	return title
}
