package series

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sensorviz/internal/inventory"
	"sensorviz/internal/models"
	"sensorviz/internal/window"
)

// Input is everything a chart rendering depends on.
type Input struct {
	Records   []models.Reading
	Window    *window.Window // nil: derive from Records
	Metrics   []models.Metric
	Bucketing Bucketing
	Selection inventory.Selection
}

// Chart is the series list for one metric.
type Chart struct {
	Metric models.Metric `json:"metric"`
	Title  string        `json:"title"`
	Series []Series      `json:"series"`
}

// Output is the renderer contract: series per metric plus the axis config,
// both computed from the same window and records.
type Output struct {
	Window    window.Window `json:"window"`
	Derived   bool          `json:"derived"`
	Charts    []Chart       `json:"charts"`
	Bucketing Bucketing     `json:"bucketing"`
	Points    int           `json:"points"`
}

// Chart returns the chart for metric, if built.
func (o Output) Chart(metric models.Metric) (Chart, bool) {
	for _, c := range o.Charts {
		if c.Metric == metric {
			return c, true
		}
	}
	return Chart{}, false
}

// Pipeline turns a raw record set into chart series. Run is a pure function of
// its Input; the last result is memoised on input identity.
type Pipeline struct {
	palette Palette
	loc     *time.Location
	log     *slog.Logger

	mu   sync.Mutex
	last *memo
}

type memo struct {
	key inputKey
	out Output
	err error
}

type inputKey struct {
	first     *models.Reading
	n         int
	window    string
	metrics   string
	bucketing string
	selection inventory.Selection
}

// NewPipeline creates a pipeline parsing zone-less timestamps in loc.
func NewPipeline(palette Palette, loc *time.Location, log *slog.Logger) *Pipeline {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{palette: palette, loc: loc, log: log}
}

func keyOf(in Input) inputKey {
	k := inputKey{
		n:         len(in.Records),
		bucketing: in.Bucketing.key(),
		selection: in.Selection,
	}
	if len(in.Records) > 0 {
		k.first = &in.Records[0]
	}
	if in.Window != nil {
		k.window = in.Window.String()
		if !in.Window.Since.IsZero() {
			k.window += "@" + in.Window.Since.Format(time.RFC3339Nano)
		}
	}
	names := make([]string, len(in.Metrics))
	for i, m := range in.Metrics {
		names[i] = string(m)
	}
	k.metrics = strings.Join(names, ",")
	return k
}

// Run filters, groups and builds. It returns models.ErrNoUsableData together
// with a (possibly partial) Output when nothing is plottable.
func (p *Pipeline) Run(in Input) (Output, error) {
	key := keyOf(in)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && p.last.key == key {
		return p.last.out, p.last.err
	}

	out, err := p.run(in)
	p.last = &memo{key: key, out: out, err: err}
	return out, err
}

func (p *Pipeline) run(in Input) (Output, error) {
	metrics := in.Metrics
	if len(metrics) == 0 {
		metrics = models.ChartMetrics
	}
	out := Output{Bucketing: in.Bucketing, Charts: []Chart{}}
	if out.Bucketing.Unit == "" {
		out.Bucketing = DefaultBucketing()
	}

	if in.Window != nil {
		out.Window = *in.Window
	} else {
		w, err := window.Derive(in.Records, p.loc)
		if err != nil {
			return out, err
		}
		out.Window = w
		out.Derived = true
	}

	selected := in.Selection.Apply(in.Records)
	filtered := window.Filter(selected, &out.Window, p.loc)
	groups := Group(filtered, p.loc)

	for _, m := range metrics {
		list := Build(groups, m, p.palette)
		out.Charts = append(out.Charts, Chart{
			Metric: m,
			Title:  fmt.Sprintf("%s Over Time (%s)", m.Title(), m.Unit()),
			Series: list,
		})
		out.Points += Points(list)
	}

	p.log.Debug("built chart series",
		"window", out.Window.String(),
		"derived", out.Derived,
		"records", len(in.Records),
		"filtered", len(filtered),
		"sensors", groups.Len(),
		"points", out.Points)

	if out.Points == 0 {
		return out, models.ErrNoUsableData
	}
	return out, nil
}
