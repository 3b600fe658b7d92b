package views

import (
	"context"
	"time"

	"sensorviz/internal/pagination"
	"sensorviz/internal/refresh"
	"sensorviz/internal/table"
)

type TableState struct {
	State     refresh.State `json:"state"`
	Message   string        `json:"message,omitempty"`
	Limit     int           `json:"limit"`
	Options   []int         `json:"options"`
	Rows      []table.Row   `json:"rows"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Table is the raw readings list with a selectable page size.
type Table struct {
	view   *refresh.View
	limits *pagination.LimitController
	fm     *table.Formatter
}

func NewTable(view *refresh.View, options []int, initial int, fm *table.Formatter) (*Table, error) {
	limits, err := pagination.NewLimitController(options, initial, view)
	if err != nil {
		return nil, err
	}
	return &Table{view: view, limits: limits, fm: fm}, nil
}

func (t *Table) Mount() uint64 { return t.limits.Mount() }

// Select changes the page size, refetching only when it differs.
func (t *Table) Select(n int) (bool, error) { return t.limits.Select(n) }

func (t *Table) Load(ctx context.Context) (TableState, error) {
	t.Mount()
	if _, err := t.view.Await(ctx); err != nil {
		return TableState{}, err
	}
	return t.State(), nil
}

func (t *Table) State() TableState {
	snap := t.view.Snapshot()
	return TableState{
		State:     snap.State,
		Message:   snap.Message,
		Limit:     t.limits.Current(),
		Options:   t.limits.Options(),
		Rows:      t.fm.Rows(snap.Records),
		UpdatedAt: snap.UpdatedAt,
	}
}

func (t *Table) Close() { t.view.Close() }
