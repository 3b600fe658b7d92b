package views

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"sensorviz/internal/ingest"
	"sensorviz/internal/inventory"
	"sensorviz/internal/models"
	"sensorviz/internal/refresh"
	"sensorviz/internal/series"
	"sensorviz/internal/window"
)

// ChartState is everything the historical graph screen renders.
type ChartState struct {
	State     refresh.State       `json:"state"`
	Message   string              `json:"message,omitempty"`
	Empty     bool                `json:"empty"`
	Output    *series.Output      `json:"output,omitempty"`
	Inventory inventory.Inventory `json:"inventory"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Charts drives the historical graph: a user-chosen window (or a lookback
// range until one is chosen), fetched through a refresh view and turned into
// series by its own pipeline.
type Charts struct {
	view      *refresh.View
	pipeline  *series.Pipeline
	bucketing series.Bucketing
	lookback  int
	loc       *time.Location
	now       func() time.Time

	mu        sync.Mutex
	user      *window.Window
	metrics   []models.Metric
	selection inventory.Selection
}

// NewCharts creates a chart view with a pipeline of its own, so memoised
// series are never shared with another view.
func NewCharts(view *refresh.View, palette series.Palette, bucketing series.Bucketing, lookbackDays int, loc *time.Location, log *slog.Logger) *Charts {
	if loc == nil {
		loc = time.Local
	}
	return &Charts{
		view:      view,
		pipeline:  series.NewPipeline(palette, loc, log),
		bucketing: bucketing,
		lookback:  lookbackDays,
		loc:       loc,
		now:       time.Now,
		metrics:   models.ChartMetrics,
	}
}

// UseClock replaces the time source for the lookback range.
func (c *Charts) UseClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Query is the range fetched for the current window choice.
func (c *Charts) Query() ingest.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.user
	if w == nil {
		lw := window.LastDays(c.lookback, c.now().In(c.loc))
		w = &lw
	}
	return ingest.RangeQuery(w.StartDate(), w.EndDate())
}

// Window returns the user window, nil when none was chosen.
func (c *Charts) Window() *window.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SetWindow sets (or with nil clears) the user window and refetches. A
// window derived from data is never stored here.
func (c *Charts) SetWindow(w *window.Window) uint64 {
	c.mu.Lock()
	if w != nil {
		cp := *w
		w = &cp
	}
	c.user = w
	c.mu.Unlock()
	return c.view.Trigger(c.Query())
}

// SetMetrics chooses which metrics are charted. No refetch is needed.
func (c *Charts) SetMetrics(metrics []models.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(metrics) == 0 {
		metrics = models.ChartMetrics
	}
	c.metrics = slices.Clone(metrics)
}

// SetBucketing changes the time axis. No refetch is needed.
func (c *Charts) SetBucketing(b series.Bucketing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucketing = b
}

// SetSelection narrows the charts to one robot and/or sensor.
func (c *Charts) SetSelection(sel inventory.Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = sel
}

func (c *Charts) Mount() uint64 {
	return c.view.Trigger(c.Query())
}

// Load mounts the view and waits for the first result.
func (c *Charts) Load(ctx context.Context) (ChartState, error) {
	c.Mount()
	return c.Await(ctx)
}

// Await waits for the request in flight and returns the resulting state.
func (c *Charts) Await(ctx context.Context) (ChartState, error) {
	if _, err := c.view.Await(ctx); err != nil {
		return ChartState{}, err
	}
	return c.State(), nil
}

// State renders the latest applied records. While loading or after a
// failure the previous records stay on screen.
func (c *Charts) State() ChartState {
	snap := c.view.Snapshot()
	st := ChartState{
		State:     snap.State,
		Message:   snap.Message,
		UpdatedAt: snap.UpdatedAt,
		Inventory: inventory.Discover(snap.Records),
	}
	if !snap.Loaded {
		return st
	}

	c.mu.Lock()
	in := series.Input{
		Records:   snap.Records,
		Window:    c.user,
		Metrics:   c.metrics,
		Bucketing: c.bucketing,
		Selection: c.selection,
	}
	c.mu.Unlock()

	out, err := c.pipeline.Run(in)
	st.Output = &out
	if errors.Is(err, models.ErrNoUsableData) {
		st.Empty = true
		if st.Message == "" {
			st.Message = ingest.UserMessage(err)
		}
	}
	return st
}

func (c *Charts) Close() { c.view.Close() }
