package calendar

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidTime     = errors.New("invalid time")
)

// Wall-clock layouts accepted from the model. Fractional seconds are
// accepted after the seconds field and truncated.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// AttachTimezone interprets a naive wall-clock timestamp in the named
// timezone. Timestamps carrying their own offset are rejected.
func AttachTimezone(wallClock, timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}

	for _, layout := range wallClockLayouts {
		t, err := time.ParseInLocation(layout, wallClock, loc)
		if err == nil {
			return t.Truncate(time.Second), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q is not a wall-clock time like 2006-01-02T15:04:05", ErrInvalidTime, wallClock)
}

// FormatTime renders t with its offset, at second precision.
func FormatTime(t time.Time) string {
	return t.Truncate(time.Second).Format(time.RFC3339)
}
