package refresh

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"sensorviz/internal/ingest"
	"sensorviz/internal/metrics"
	"sensorviz/internal/models"
)

// ErrClosed is returned by Await once the view has been closed.
var ErrClosed = errors.New("view closed")

type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fetcher runs one ingestion query. It should honour ctx cancellation.
type Fetcher func(ctx context.Context, q ingest.Query) ([]models.Reading, error)

// Snapshot is a view's state at one instant. Records are the last
// successfully applied set and survive later failures.
type Snapshot struct {
	State     State            `json:"state"`
	Records   []models.Reading `json:"-"`
	Query     ingest.Query     `json:"-"`
	Err       error            `json:"-"`
	Message   string           `json:"message,omitempty"`
	Seq       uint64           `json:"seq"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Loaded    bool             `json:"loaded"` // a result has been applied at least once
}

// View holds the record set behind one screen and keeps it consistent with
// the most recent request. Completions from superseded requests are dropped.
type View struct {
	name    string
	fetch   Fetcher
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   Clock

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	inflight context.CancelFunc
	snap     Snapshot
	closed   bool
	subs     []func(Snapshot)
	changed  chan struct{}
}

type Option func(*View)

func WithLogger(log *slog.Logger) Option {
	return func(v *View) { v.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *View) { v.metrics = m }
}

func WithClock(c Clock) Option {
	return func(v *View) { v.clock = c }
}

// WithContext sets the parent of every request context. Cancelling it has
// the same effect as Close.
func WithContext(ctx context.Context) Option {
	return func(v *View) { v.ctx = ctx }
}

func NewView(name string, fetch Fetcher, opts ...Option) *View {
	v := &View{
		name:    name,
		fetch:   fetch,
		log:     slog.Default(),
		clock:   wallClock{},
		ctx:     context.Background(),
		changed: make(chan struct{}),
	}
	for _, o := range opts {
		o(v)
	}
	v.ctx, v.stop = context.WithCancel(v.ctx)
	v.log = v.log.With("view", name)
	return v
}

func (v *View) Name() string { return v.name }

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// OnChange registers fn to be called after every applied transition.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.subs = append(v.subs, fn)
	v.mu.Unlock()
}

// Trigger starts a request for q and returns its sequence number. Any
// request still in flight is cancelled and its result will be ignored.
// It returns 0 after Close.
func (v *View) Trigger(q ingest.Query) uint64 {
	v.mu.Lock()
	if v.closed || v.ctx.Err() != nil {
		v.mu.Unlock()
		return 0
	}
	v.seq++
	seq := v.seq
	if v.inflight != nil {
		v.inflight()
	}
	ctx, cancel := context.WithCancel(v.ctx)
	v.inflight = cancel

	v.snap.State = Loading
	v.snap.Query = q
	v.snap.Seq = seq
	snap, subs := v.publish()
	v.mu.Unlock()

	v.log.Debug("request started", "seq", seq, "query", q.String())
	notify(subs, snap)

	go func() {
		records, err := v.fetch(ctx, q)
		cancel()
		v.complete(seq, q, records, err)
	}()
	return seq
}

func (v *View) complete(seq uint64, q ingest.Query, records []models.Reading, err error) {
	v.mu.Lock()
	if v.closed || v.ctx.Err() != nil || seq != v.seq {
		latest, closed := v.seq, v.closed
		v.mu.Unlock()
		v.metrics.Discarded(v.name)
		v.log.Debug("discarding stale result", "seq", seq, "latest", latest, "closed", closed, "query", q.String())
		return
	}
	v.inflight = nil

	if err != nil {
		v.snap.State = Failed
		v.snap.Err = err
		v.snap.Message = ingest.UserMessage(err)
	} else {
		if records == nil {
			records = []models.Reading{}
		}
		v.snap.State = Ready
		v.snap.Records = records
		v.snap.Err = nil
		v.snap.Message = ""
		v.snap.Loaded = true
	}
	v.snap.UpdatedAt = v.clock.Now()
	snap, subs := v.publish()
	v.mu.Unlock()

	if err != nil {
		v.log.Warn("request failed", "seq", seq, "query", q.String(), "err", err)
	} else {
		v.metrics.SetRecords(v.name, len(records))
		v.log.Debug("request applied", "seq", seq, "query", q.String(), "rows", len(records))
	}
	notify(subs, snap)
}

// publish wakes Await callers and returns what subscribers should see.
// Callers hold v.mu.
func (v *View) publish() (Snapshot, []func(Snapshot)) {
	close(v.changed)
	v.changed = make(chan struct{})
	return v.snap, slices.Clone(v.subs)
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// Await blocks until the view is not loading and returns its state.
func (v *View) Await(ctx context.Context) (Snapshot, error) {
	for {
		v.mu.Lock()
		snap, ch, closed := v.snap, v.changed, v.closed
		v.mu.Unlock()

		if closed {
			return snap, ErrClosed
		}
		if snap.State != Loading {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-v.ctx.Done():
			return snap, ErrClosed
		}
	}
}

// Load triggers q and waits for its outcome.
func (v *View) Load(ctx context.Context, q ingest.Query) (Snapshot, error) {
	v.Trigger(q)
	return v.Await(ctx)
}

// StartPolling triggers q now and again at every tick of sched until ctx is
// cancelled or the view is closed.
func (v *View) StartPolling(ctx context.Context, sched Schedule, q ingest.Query) {
	v.Trigger(q)
	go func() {
		for {
			now := v.clock.Now()
			wait := sched.Next(now).Sub(now)
			select {
			case <-ctx.Done():
				return
			case <-v.ctx.Done():
				return
			case <-v.clock.After(wait):
				v.Trigger(q)
			}
		}
	}()
}

// Close stops polling, cancels the in-flight request and makes the view
// ignore any result still arriving.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.inflight != nil {
		v.inflight()
		v.inflight = nil
	}
	v.stop()
	close(v.changed)
	v.changed = make(chan struct{})
	v.log.Debug("view closed", "seq", v.seq)
}
