package pagination

import (
	"fmt"
	"slices"
	"sync"

	"sensorviz/internal/ingest"
)

// DefaultOptions are the page sizes offered when none are configured.
var DefaultOptions = []int{10, 25, 50, 100}

// Trigger is the part of a refresh view the controller drives.
type Trigger interface {
	Trigger(q ingest.Query) uint64
}

// LimitController owns the page size of a limit-mode view.
type LimitController struct {
	options []int
	view    Trigger

	mu      sync.Mutex
	current int
}

// NewLimitController validates initial against options. A nil options slice
// uses DefaultOptions.
func NewLimitController(options []int, initial int, view Trigger) (*LimitController, error) {
	if len(options) == 0 {
		options = DefaultOptions
	}
	for _, n := range options {
		if n < 1 {
			return nil, fmt.Errorf("limit option %d must be positive", n)
		}
	}
	if !slices.Contains(options, initial) {
		return nil, fmt.Errorf("initial limit %d is not one of %v", initial, options)
	}
	return &LimitController{
		options: slices.Clone(options),
		current: initial,
		view:    view,
	}, nil
}

func (c *LimitController) Options() []int { return slices.Clone(c.options) }

func (c *LimitController) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Query is the ingestion query for the current page size.
func (c *LimitController) Query() ingest.Query {
	return ingest.LimitQuery(c.Current())
}

// Mount issues the initial query.
func (c *LimitController) Mount() uint64 {
	return c.view.Trigger(c.Query())
}

// Select switches to n and triggers a new query. It reports whether a query
// was issued: re-selecting the current value does nothing. The query is
// re-read after the switch so the last one issued always matches Current.
func (c *LimitController) Select(n int) (bool, error) {
	if !slices.Contains(c.options, n) {
		return false, fmt.Errorf("%w: limit %d is not one of %v", ingest.ErrInvalidQuery, n, c.options)
	}
	c.mu.Lock()
	if c.current == n {
		c.mu.Unlock()
		return false, nil
	}
	c.current = n
	c.mu.Unlock()

	c.view.Trigger(c.Query())
	return true, nil
}
