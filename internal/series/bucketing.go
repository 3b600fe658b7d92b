package series

import (
	"fmt"
	"time"

	"github.com/sosodev/duration"
)

// Unit is a time-axis unit understood by the chart renderer.
type Unit string

const (
	Minute Unit = "minute"
	Hour   Unit = "hour"
	Day    Unit = "day"
)

// Bucketing tells the renderer how to draw the time axis. It never changes
// which points are plotted.
type Bucketing struct {
	Unit           Unit            `json:"unit"`
	Step           int             `json:"stepSize"`
	DisplayFormats map[Unit]string `json:"displayFormats"`
	TooltipFormat  string          `json:"tooltipFormat"`
}

// Renderer-side (date-fns) formats per unit.
var displayFormats = map[Unit]string{
	Minute: "MMM d, HH:mm",
	Hour:   "MMM d, HH:mm",
	Day:    "MMM d",
}

// Go layouts mirroring displayFormats, for text output.
var labelLayouts = map[Unit]string{
	Minute: "Jan 2, 15:04",
	Hour:   "Jan 2, 15:04",
	Day:    "Jan 2",
}

const tooltipFormat = "MMM d,yyyy HH:mm:ss"

// NewBucketing builds the axis config for a unit and step.
func NewBucketing(unit Unit, step int) (Bucketing, error) {
	if _, ok := displayFormats[unit]; !ok {
		return Bucketing{}, fmt.Errorf("unknown axis unit %q", unit)
	}
	if step < 1 {
		return Bucketing{}, fmt.Errorf("axis step must be positive, got %d", step)
	}
	formats := make(map[Unit]string, len(displayFormats))
	for u, f := range displayFormats {
		formats[u] = f
	}
	return Bucketing{
		Unit:           unit,
		Step:           step,
		DisplayFormats: formats,
		TooltipFormat:  tooltipFormat,
	}, nil
}

// DefaultBucketing is five-minute ticks.
func DefaultBucketing() Bucketing {
	b, _ := NewBucketing(Minute, 5)
	return b
}

// ParseBucketing derives the axis config from an ISO-8601 interval such as
// "PT5M", "PT1H" or "P1D". The largest unit dividing the interval wins.
func ParseBucketing(iso string) (Bucketing, error) {
	d, err := duration.Parse(iso)
	if err != nil {
		return Bucketing{}, fmt.Errorf("parsing interval %q: %w", iso, err)
	}
	td := d.ToTimeDuration()
	if td <= 0 {
		return Bucketing{}, fmt.Errorf("interval %q must be positive", iso)
	}

	switch {
	case td%(24*time.Hour) == 0:
		return NewBucketing(Day, int(td/(24*time.Hour)))
	case td%time.Hour == 0:
		return NewBucketing(Hour, int(td/time.Hour))
	case td%time.Minute == 0:
		return NewBucketing(Minute, int(td/time.Minute))
	default:
		return Bucketing{}, fmt.Errorf("interval %q is finer than a minute", iso)
	}
}

// Interval is the tick spacing.
func (b Bucketing) Interval() time.Duration {
	switch b.Unit {
	case Day:
		return time.Duration(b.Step) * 24 * time.Hour
	case Hour:
		return time.Duration(b.Step) * time.Hour
	default:
		return time.Duration(b.Step) * time.Minute
	}
}

// Label formats t the way the axis shows it.
func (b Bucketing) Label(t time.Time) string {
	layout, ok := labelLayouts[b.Unit]
	if !ok {
		layout = labelLayouts[Minute]
	}
	return t.Format(layout)
}

func (b Bucketing) key() string {
	return fmt.Sprintf("%s/%d", b.Unit, b.Step)
}

// Axis presets offered next to the configured interval.
var presets = map[string]struct {
	unit Unit
	step int
}{
	"minute5": {Minute, 5},
	"hourly":  {Hour, 1},
	"daily":   {Day, 1},
}

// Preset returns a named axis config ("minute5", "hourly", "daily") or, for
// any other value, parses it as an ISO-8601 interval.
func Preset(name string) (Bucketing, error) {
	if p, ok := presets[name]; ok {
		return NewBucketing(p.unit, p.step)
	}
	return ParseBucketing(name)
}
