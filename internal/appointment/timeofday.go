package appointment

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a clock time within a day, stored as minutes since midnight.
// It marshals as "15:04".
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
