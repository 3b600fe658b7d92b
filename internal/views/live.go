package views

import (
	"context"
	"time"

	"sensorviz/internal/ingest"
	"sensorviz/internal/refresh"
	"sensorviz/internal/table"
)

type LiveState struct {
	State     refresh.State `json:"state"`
	Message   string        `json:"message,omitempty"`
	Cards     []table.Card  `json:"cards"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Live polls the latest reading of every sensor.
type Live struct {
	view  *refresh.View
	fm    *table.Formatter
	sched refresh.Schedule
}

func NewLive(view *refresh.View, sched refresh.Schedule, fm *table.Formatter) *Live {
	return &Live{view: view, sched: sched, fm: fm}
}

// Start fetches immediately and then on every schedule tick until ctx ends
// or Close is called.
func (l *Live) Start(ctx context.Context) {
	l.view.StartPolling(ctx, l.sched, ingest.LatestQuery())
}

// Load fetches once without polling.
func (l *Live) Load(ctx context.Context) (LiveState, error) {
	if _, err := l.view.Load(ctx, ingest.LatestQuery()); err != nil {
		return LiveState{}, err
	}
	return l.State(), nil
}

func (l *Live) OnChange(fn func(LiveState)) {
	l.view.OnChange(func(snap refresh.Snapshot) {
		if snap.State == refresh.Loading {
			return
		}
		fn(l.state(snap))
	})
}

func (l *Live) State() LiveState {
	return l.state(l.view.Snapshot())
}

func (l *Live) state(snap refresh.Snapshot) LiveState {
	return LiveState{
		State:     snap.State,
		Message:   snap.Message,
		Cards:     l.fm.Cards(snap.Records),
		UpdatedAt: snap.UpdatedAt,
	}
}

func (l *Live) Close() { l.view.Close() }
