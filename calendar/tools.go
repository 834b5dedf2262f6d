package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/tuxsy/my-ai-agents/tools"
)

const (
	DefaultCalendarID = "primary"
	DefaultTimezone   = "Europe/Madrid"
)

const (
	getCurrentDatetimeHelp = `Get the current date and time. Use it to resolve relative dates such as "tomorrow" or "next Monday".`
	checkAvailabilityHelp  = `Check whether a calendar is free between two wall-clock times. Returns the busy intervals found in that range.`
	createEventHelp        = `Create a calendar event. Every call creates a new event, so only call it once per event the user asked for.`
)

type Calendar struct {
	backend    Backend
	now        func() time.Time
	timezone   string
	calendarID string
}

type Option func(c *Calendar)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

func WithTimezone(tz string) Option {
	return func(c *Calendar) {
		c.timezone = tz
	}
}

func WithCalendarID(id string) Option {
	return func(c *Calendar) {
		c.calendarID = id
	}
}

func New(backend Backend, opts ...Option) *Calendar {
	c := &Calendar{
		backend:    backend,
		now:        time.Now,
		timezone:   DefaultTimezone,
		calendarID: DefaultCalendarID,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

type DatetimeResult struct {
	CurrentDatetime string `json:"current_datetime"`
}

type BusyTime struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResult struct {
	CalendarID string     `json:"calendar_id"`
	TimeStart  string     `json:"time_start"`
	TimeEnd    string     `json:"time_end"`
	BusyTimes  []BusyTime `json:"busy_times"`
	Available  bool       `json:"available"`
}

type EventResult struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendar_id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	TimeStart   string `json:"time_start"`
	TimeEnd     string `json:"time_end"`
	Status      string `json:"status,omitempty"`
	HTMLLink    string `json:"html_link,omitempty"`
}

func (c *Calendar) CurrentDatetime() DatetimeResult {
	return DatetimeResult{CurrentDatetime: FormatTime(c.now())}
}

func (c *Calendar) span(start, end, tz string) (time.Time, time.Time, error) {
	s, err := AttachTimezone(start, tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	e, err := AttachTimezone(end, tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if !e.After(s) {
		return time.Time{}, time.Time{}, errors.New("time_end must be after time_start")
	}

	return s, e, nil
}

func (c *Calendar) CheckAvailability(ctx context.Context, calendarID, start, end, tz string) (*AvailabilityResult, error) {
	s, e, err := c.span(start, end, tz)
	if err != nil {
		return nil, err
	}

	busy, err := c.backend.FreeBusy(ctx, calendarID, s, e)
	if err != nil {
		return nil, err
	}

	res := &AvailabilityResult{
		CalendarID: calendarID,
		TimeStart:  FormatTime(s),
		TimeEnd:    FormatTime(e),
		BusyTimes:  make([]BusyTime, 0, len(busy)),
	}

	for _, b := range busy {
		res.BusyTimes = append(res.BusyTimes, BusyTime{Start: FormatTime(b.Start), End: FormatTime(b.End)})
	}
	res.Available = len(res.BusyTimes) == 0

	return res, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, calendarID, summary, description, start, end, tz string) (*EventResult, error) {
	s, e, err := c.span(start, end, tz)
	if err != nil {
		return nil, err
	}

	created, err := c.backend.InsertEvent(ctx, calendarID, Event{
		Summary:     summary,
		Description: description,
		Start:       s,
		End:         e,
		TimeZone:    tz,
	})
	if err != nil {
		return nil, err
	}

	return &EventResult{
		ID:          created.ID,
		CalendarID:  calendarID,
		Summary:     created.Summary,
		Description: created.Description,
		TimeStart:   FormatTime(created.Start),
		TimeEnd:     FormatTime(created.End),
		Status:      created.Status,
		HTMLLink:    created.HTMLLink,
	}, nil
}

func (c *Calendar) timeParams() []tools.Param {
	return []tools.Param{
		{Name: "time_start", Required: true, Description: "Start as local wall-clock time without offset, e.g. 2026-02-16T17:00:00"},
		{Name: "time_end", Required: true, Description: "End as local wall-clock time without offset, e.g. 2026-02-16T17:30:00"},
		{Name: "timezone", Default: c.timezone, Description: "IANA timezone the times are expressed in"},
		{Name: "calendar", Default: c.calendarID, Description: "Calendar id"},
	}
}

// Tools returns the calendar tools ready to register with a dispatcher.
func (c *Calendar) Tools() *tools.Tools {
	ts := tools.New()

	ts.Add(tools.Tool{
		Name:        "get_current_datetime",
		Description: getCurrentDatetimeHelp,
		Handler: func(ctx context.Context, args tools.Args) (any, error) {
			return c.CurrentDatetime(), nil
		},
	})

	ts.Add(tools.Tool{
		Name:        "check_availability",
		Description: checkAvailabilityHelp,
		Params:      c.timeParams(),
		Handler: func(ctx context.Context, args tools.Args) (any, error) {
			return c.CheckAvailability(ctx,
				args.String("calendar"),
				args.String("time_start"),
				args.String("time_end"),
				args.String("timezone"))
		},
	})

	eventParams := append([]tools.Param{
		{Name: "summary", Required: true, Description: "Event title"},
		{Name: "description", Default: "", Description: "Event description"},
	}, c.timeParams()...)

	ts.Add(tools.Tool{
		Name:        "create_event",
		Description: createEventHelp,
		Params:      eventParams,
		Handler: func(ctx context.Context, args tools.Args) (any, error) {
			return c.CreateEvent(ctx,
				args.String("calendar"),
				args.String("summary"),
				args.String("description"),
				args.String("time_start"),
				args.String("time_end"),
				args.String("timezone"))
		},
	})

	return ts
}
