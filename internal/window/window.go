package window

import (
	"fmt"
	"time"

	"sensorviz/internal/models"
)

// DateLayout is the calendar-date form used by the backend and by users.
const DateLayout = "2006-01-02"

// DefaultAllSince is the first date fetched for AllRange unless configured.
const DefaultAllSince = "2020-01-01"

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time // Inclusive, normalized to start of day (00:00:00)
	End   time.Time // Inclusive, normalized to start of day (00:00:00)

	// Since optionally narrows the first day to an instant: records before
	// it are outside the window even though their date is not.
	Since time.Time
}

// NormalizeDate returns the date at 00:00:00 in t's location
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// New builds a window from two instants, keeping only their dates.
func New(start, end time.Time) (Window, error) {
	w := Window{Start: NormalizeDate(start), End: NormalizeDate(end)}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("window start %s is after end %s", w.StartDate(), w.EndDate())
	}
	return w, nil
}

// Parse builds a window from two YYYY-MM-DD dates interpreted in loc.
func Parse(start, end string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return Window{}, fmt.Errorf("parsing start date: %w", err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return Window{}, fmt.Errorf("parsing end date: %w", err)
	}
	return New(s, e)
}

// LastDays covers the n calendar days ending on now's date.
func LastDays(n int, now time.Time) Window {
	if n < 1 {
		n = 1
	}
	end := NormalizeDate(now)
	return Window{Start: end.AddDate(0, 0, -n+1), End: end}
}

// Bounds returns start@00:00:00 and end@23:59:59.
func (w Window) Bounds() (from, to time.Time) {
	return w.Start, time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 23, 59, 59, 0, w.End.Location())
}

// Contains checks if an instant lies within the window, both bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	from, to := w.Bounds()
	if !w.Since.IsZero() && w.Since.After(from) {
		from = w.Since
	}
	return !t.Before(from) && !t.After(to)
}

func (w Window) StartDate() string { return w.Start.Format(DateLayout) }

func (w Window) EndDate() string { return w.End.Format(DateLayout) }

// Days is the number of calendar days covered. Days are counted on the
// calendar so a DST change inside the window does not shift the count.
func (w Window) Days() int {
	s := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s)/(24*time.Hour)) + 1
}

func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

func (w Window) String() string {
	return w.StartDate() + ".." + w.EndDate()
}

// MarshalJSON renders the window as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"},
// plus an RFC 3339 "since" when the window has an instant cutoff.
func (w Window) MarshalJSON() ([]byte, error) {
	if w.Since.IsZero() {
		return []byte(fmt.Sprintf(`{"start":%q,"end":%q}`, w.StartDate(), w.EndDate())), nil
	}
	return []byte(fmt.Sprintf(`{"start":%q,"end":%q,"since":%q}`,
		w.StartDate(), w.EndDate(), w.Since.Format(time.RFC3339))), nil
}

// Filter keeps the records whose timestamp falls inside w. Records with an
// unparseable timestamp are dropped. A nil window passes everything through.
func Filter(records []models.Reading, w *Window, loc *time.Location) []models.Reading {
	out := make([]models.Reading, 0, len(records))
	if w == nil {
		return append(out, records...)
	}
	for _, r := range records {
		t, ok := r.Time(loc)
		if !ok || !w.Contains(t) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Derive returns the smallest window covering every parseable timestamp in
// records. It returns models.ErrNoUsableData when nothing parses.
func Derive(records []models.Reading, loc *time.Location) (Window, error) {
	var first, last time.Time
	found := false
	for _, r := range records {
		t, ok := r.Time(loc)
		if !ok {
			continue
		}
		if !found || t.Before(first) {
			first = t
		}
		if !found || t.After(last) {
			last = t
		}
		found = true
	}
	if !found {
		return Window{}, models.ErrNoUsableData
	}
	if loc != nil {
		first, last = first.In(loc), last.In(loc)
	}
	return New(first, last)
}

// Range is a relative window choice offered next to explicit dates.
type Range string

const (
	Last24h  Range = "24h"
	Last7d   Range = "7d"
	AllRange Range = "all"
)

// ParseRange accepts "24h", "7d" or "all".
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case Last24h, Last7d, AllRange:
		return r, nil
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// Resolve turns r into a window ending on now's date. Last24h and Last7d
// fetch whole days but carry an instant cutoff (now-24h, now-7*24h) so
// filtering is exact. AllRange starts at allSince's date and has no cutoff.
func (r Range) Resolve(now, allSince time.Time) Window {
	end := NormalizeDate(now)
	var since time.Time
	switch r {
	case Last24h:
		since = now.Add(-24 * time.Hour)
	case Last7d:
		since = now.Add(-7 * 24 * time.Hour)
	default:
		start := NormalizeDate(allSince.In(now.Location()))
		if allSince.IsZero() || start.After(end) {
			start = end
		}
		return Window{Start: start, End: end}
	}
	return Window{Start: NormalizeDate(since), End: end, Since: since}
}
