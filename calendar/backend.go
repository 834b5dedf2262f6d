package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Interval is a busy period.
type Interval struct {
	Start time.Time
	End   time.Time
}

type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Status      string
	HTMLLink    string
}

// Backend is the calendar service the tools talk to.
type Backend interface {
	FreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]Interval, error)
	InsertEvent(ctx context.Context, calendarID string, ev Event) (*Event, error)
}

// GoogleBackend talks to the Google Calendar v3 API.
type GoogleBackend struct {
	ts   oauth2.TokenSource
	opts []option.ClientOption
}

func NewGoogleBackend(ts oauth2.TokenSource, opts ...option.ClientOption) *GoogleBackend {
	return &GoogleBackend{ts: ts, opts: opts}
}

func (b *GoogleBackend) service(ctx context.Context) (*gcalendar.Service, error) {
	opts := make([]option.ClientOption, 0, len(b.opts)+1)
	opts = append(opts, option.WithTokenSource(b.ts))
	opts = append(opts, b.opts...)

	svc, err := gcalendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

func (b *GoogleBackend) FreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]Interval, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}

	query := &gcalendar.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: start.Location().String(),
		Items:    []*gcalendar.FreeBusyRequestItem{{Id: calendarID}},
	}

	result, err := svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	cal, ok := result.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy response has no calendar %q", calendarID)
	}

	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Reason)
		}
		return nil, fmt.Errorf("freebusy failed for calendar %q: %s", calendarID, strings.Join(reasons, ", "))
	}

	busy := make([]Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid busy start %q: %w", p.Start, err)
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("invalid busy end %q: %w", p.End, err)
		}
		busy = append(busy, Interval{Start: s.In(start.Location()), End: e.In(start.Location())})
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	return busy, nil
}

func (b *GoogleBackend) InsertEvent(ctx context.Context, calendarID string, ev Event) (*Event, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}

	event := &gcalendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcalendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcalendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	out := ev
	out.ID = created.Id
	out.Status = created.Status
	out.HTMLLink = created.HtmlLink
	return &out, nil
}
