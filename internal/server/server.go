package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sensorviz/internal/ingest"
	"sensorviz/internal/inventory"
	"sensorviz/internal/metrics"
	"sensorviz/internal/models"
	"sensorviz/internal/pagination"
	"sensorviz/internal/refresh"
	"sensorviz/internal/series"
	"sensorviz/internal/summary"
	"sensorviz/internal/table"
	"sensorviz/internal/views"
	"sensorviz/internal/window"
)

type Options struct {
	Fetch        refresh.Fetcher
	Palette      series.Palette // each chart request builds its own pipeline from it
	Formatter    *table.Formatter
	Bucketing    series.Bucketing
	Location     *time.Location // zone of backend timestamps and of date windows
	LookbackDays int
	AllSince     time.Time // first day fetched for range=all
	LimitOptions []int
	DefaultLimit int
	Schedule     refresh.Schedule // live polling
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
}

// Server exposes the chart, table and live views as JSON for an external
// renderer.
type Server struct {
	opts Options
	log  *slog.Logger
	live *views.Live
	now  func() time.Time
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.LimitOptions) == 0 {
		opts.LimitOptions = pagination.DefaultOptions
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = opts.LimitOptions[0]
	}
	if opts.Bucketing.Unit == "" {
		opts.Bucketing = series.DefaultBucketing()
	}
	if opts.AllSince.IsZero() {
		opts.AllSince, _ = time.ParseInLocation(window.DateLayout, window.DefaultAllSince, opts.Location)
	}
	s := &Server{opts: opts, log: opts.Logger, now: time.Now}
	s.live = views.NewLive(s.newView(context.Background(), "live"), opts.Schedule, opts.Formatter)
	return s
}

func (s *Server) newView(ctx context.Context, name string) *refresh.View {
	return refresh.NewView(name, s.opts.Fetch,
		refresh.WithContext(ctx),
		refresh.WithLogger(s.log),
		refresh.WithMetrics(s.opts.Metrics))
}

// LoadAPI registers all REST endpoints.
func (s *Server) LoadAPI(r *mux.Router) {
	sr := r.PathPrefix("/api").Subrouter()
	sr.HandleFunc("/charts", s.getCharts).Methods("GET")
	sr.HandleFunc("/table", s.getTable).Methods("GET")
	sr.HandleFunc("/latest", s.getLatest).Methods("GET")
	sr.HandleFunc("/summary", s.getSummary).Methods("GET")
	sr.HandleFunc("/limits", s.getLimits).Methods("GET")
}

// Handler returns the complete router including /metrics.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	s.LoadAPI(r)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run starts live polling and serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.opts.Schedule != nil {
		s.live.Start(ctx)
	}
	g.Go(func() error {
		s.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.live.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response", "status", status, "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// dateWindow reads start/end or range. It returns nil when neither is given.
// Relative ranges fetch whole days and cut off at the exact instant.
func (s *Server) dateWindow(r *http.Request) (*window.Window, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	switch {
	case start != "" && end != "":
		w, err := window.Parse(start, end, s.opts.Location)
		if err != nil {
			return nil, err
		}
		return &w, nil
	case start != "" || end != "":
		return nil, errors.New("start and end must be given together")
	}
	if rng := q.Get("range"); rng != "" {
		rr, err := window.ParseRange(rng)
		if err != nil {
			return nil, err
		}
		w := rr.Resolve(s.now().In(s.opts.Location), s.opts.AllSince)
		return &w, nil
	}
	return nil, nil
}

func parseMetrics(r *http.Request) ([]models.Metric, error) {
	var out []models.Metric
	for _, v := range r.URL.Query()["metric"] {
		for _, name := range strings.Split(v, ",") {
			m, err := models.ParseMetric(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Server) getCharts(w http.ResponseWriter, r *http.Request) {
	win, err := s.dateWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ms, err := parseMetrics(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucketing := s.opts.Bucketing
	if axis := r.URL.Query().Get("axis"); axis != "" {
		if bucketing, err = series.Preset(axis); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	c := views.NewCharts(s.newView(r.Context(), "charts"), s.opts.Palette, bucketing, s.opts.LookbackDays, s.opts.Location, s.log)
	defer c.Close()
	c.UseClock(s.now)
	c.SetMetrics(ms)
	c.SetSelection(inventory.Selection{Robot: r.URL.Query().Get("robot"), Sensor: r.URL.Query().Get("sensor")})
	if win != nil {
		c.SetWindow(win)
	} else {
		c.Mount()
	}

	st, err := c.Await(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	switch {
	case st.State == refresh.Failed:
		s.writeError(w, http.StatusBadGateway, st.Message)
	case st.Empty:
		s.writeJSON(w, http.StatusOK, struct {
			Empty   bool          `json:"empty"`
			Message string        `json:"message"`
			Window  window.Window `json:"window"`
		}{true, st.Message, st.Output.Window})
	default:
		s.writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	t, err := views.NewTable(s.newView(r.Context(), "table"), s.opts.LimitOptions, limit, s.opts.Formatter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer t.Close()

	st, err := t.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if st.State == refresh.Failed {
		s.writeError(w, http.StatusBadGateway, st.Message)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	st := s.live.State()
	if st.State == refresh.Idle || s.opts.Schedule == nil {
		var err error
		st, err = s.live.Load(r.Context())
		if err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	if st.State == refresh.Failed && len(st.Cards) == 0 {
		s.writeError(w, http.StatusBadGateway, st.Message)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	win, err := s.dateWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ms, err := parseMetrics(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if win == nil {
		lw := window.LastDays(s.opts.LookbackDays, s.now().In(s.opts.Location))
		win = &lw
	}

	v := s.newView(r.Context(), "summary")
	defer v.Close()
	snap, err := v.Load(r.Context(), ingest.RangeQuery(win.StartDate(), win.EndDate()))
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if snap.State == refresh.Failed {
		s.writeError(w, http.StatusBadGateway, snap.Message)
		return
	}

	loc := s.opts.Location
	records := window.Filter(snap.Records, win, loc)
	s.writeJSON(w, http.StatusOK, summary.Summarize(*win, series.Group(records, loc), ms))
}

func (s *Server) getLimits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Options []int `json:"options"`
		Default int   `json:"default"`
	}{s.opts.LimitOptions, s.opts.DefaultLimit})
}
