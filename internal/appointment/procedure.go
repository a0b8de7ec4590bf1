package appointment

import "time"

// Procedure is the closed set of procedure types an appointment can be
// booked for. Default durations are a booking-form convenience, not a
// stored invariant.
type Procedure string

const (
	ProcedureConsultation Procedure = "consultation"
	ProcedureCleaning     Procedure = "cleaning"
	ProcedureRestoration  Procedure = "restoration"
	ProcedureExtraction   Procedure = "extraction"
	ProcedureRootCanal    Procedure = "root_canal"
	ProcedureWhitening    Procedure = "whitening"
	ProcedureOrthodontics Procedure = "orthodontics"
)

var procedureInfo = map[Procedure]struct {
	label    string
	duration time.Duration
}{
	ProcedureConsultation: {"Consultation", 30 * time.Minute},
	ProcedureCleaning:     {"Cleaning", 45 * time.Minute},
	ProcedureRestoration:  {"Restoration", 60 * time.Minute},
	ProcedureExtraction:   {"Extraction", 45 * time.Minute},
	ProcedureRootCanal:    {"Root canal", 90 * time.Minute},
	ProcedureWhitening:    {"Whitening", 60 * time.Minute},
	ProcedureOrthodontics: {"Orthodontic adjustment", 30 * time.Minute},
}

func (p Procedure) Valid() bool {
	_, ok := procedureInfo[p]
	return ok
}

// Label is the human-readable procedure name used in calendar event titles.
func (p Procedure) Label() string {
	if info, ok := procedureInfo[p]; ok {
		return info.label
	}
	return string(p)
}

func (p Procedure) DefaultDuration() time.Duration {
	if info, ok := procedureInfo[p]; ok {
		return info.duration
	}
	return 30 * time.Minute
}

// SuggestEndTime proposes an end time for a booking form given the chosen
// procedure and start time.
func SuggestEndTime(start TimeOfDay, p Procedure) TimeOfDay {
	return start.Add(p.DefaultDuration())
}

func Procedures() []Procedure {
	return []Procedure{
		ProcedureConsultation,
		ProcedureCleaning,
		ProcedureRestoration,
		ProcedureExtraction,
		ProcedureRootCanal,
		ProcedureWhitening,
		ProcedureOrthodontics,
	}
}
