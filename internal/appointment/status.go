package appointment

// Status is the lifecycle state of an appointment. Transitions between
// statuses happen only through Next; nothing else in the codebase assigns
// a status directly.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// Action is a named status transition requested by a user.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionMarkNoShow Action = "mark_no_show"
)

// transitions is the full set of legal status transitions. Terminal
// statuses (completed, cancelled, no_show) have no outgoing edges.
var transitions = map[Status]map[Action]Status{
	StatusScheduled: {
		ActionConfirm:    StatusConfirmed,
		ActionMarkNoShow: StatusNoShow,
		ActionCancel:     StatusCancelled,
	},
	StatusConfirmed: {
		ActionStart:      StatusInProgress,
		ActionMarkNoShow: StatusNoShow,
		ActionCancel:     StatusCancelled,
	},
	StatusInProgress: {
		ActionComplete: StatusCompleted,
		ActionCancel:   StatusCancelled,
	},
}

// actionOrder fixes the iteration order for LegalActions.
var actionOrder = []Action{ActionConfirm, ActionStart, ActionComplete, ActionCancel, ActionMarkNoShow}

// Next returns the status reached by applying action from the current
// status, or an InvalidTransitionError if the transition is not legal.
func Next(from Status, action Action) (Status, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", &InvalidTransitionError{Current: from, Action: action}
	}
	return to, nil
}

// CanApply reports whether action is legal from the given status.
func CanApply(from Status, action Action) bool {
	_, ok := transitions[from][action]
	return ok
}

// LegalActions returns the actions that may be applied from the given
// status, in a stable order. Terminal statuses return nil.
func LegalActions(from Status) []Action {
	edges := transitions[from]
	if len(edges) == 0 {
		return nil
	}
	actions := make([]Action, 0, len(edges))
	for _, a := range actionOrder {
		if _, ok := edges[a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Editable reports whether an appointment in this status may still be
// modified. Editable and Finalized partition the status enum.
func (s Status) Editable() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Finalized reports whether the status is terminal. Finalized
// appointments are immutable except for read access.
func (s Status) Finalized() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func AllStatuses() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow}
}
