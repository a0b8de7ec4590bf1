// Package availability implements the client-side slot conflict check.
//
// The check is advisory: it lets callers validate a slot before submitting
// a create or update request, but the remote clinic API remains the
// authority and may still reject with a conflict.
package availability

import "github.com/odontoplus/scheduling/internal/appointment"

// Request describes the slot being checked. ExcludeID, when set, removes
// the appointment being edited from conflict consideration so a record
// never conflicts with itself.
type Request struct {
	DentistID string
	Date      appointment.Date
	StartTime appointment.TimeOfDay
	EndTime   appointment.TimeOfDay
	ExcludeID string
}

// Result reports whether the slot is free and, when it is not, which
// appointments occupy it.
type Result struct {
	Available   bool     `json:"available"`
	ConflictIDs []string `json:"conflict_ids,omitempty"`
}

// Check runs the conflict check against the given appointments. Cancelled
// appointments never occupy a slot; every other status (including no_show)
// does, since the slot was reserved. Intervals are half-open: [s1,e1) and
// [s2,e2) conflict iff s1 < e2 && s2 < e1.
func Check(existing []appointment.Appointment, req Request) Result {
	var conflicts []string
	for _, a := range existing {
		if a.ID != "" && a.ID == req.ExcludeID {
			continue
		}
		if a.DentistID != req.DentistID || a.Date != req.Date {
			continue
		}
		if a.Status == appointment.StatusCancelled {
			continue
		}
		if req.StartTime.Before(a.EndTime) && a.StartTime.Before(req.EndTime) {
			conflicts = append(conflicts, a.ID)
		}
	}
	return Result{Available: len(conflicts) == 0, ConflictIDs: conflicts}
}
