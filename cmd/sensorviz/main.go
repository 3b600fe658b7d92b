package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sensorviz/internal/config"
	"sensorviz/internal/ingest"
	"sensorviz/internal/inventory"
	"sensorviz/internal/metrics"
	"sensorviz/internal/models"
	"sensorviz/internal/refresh"
	"sensorviz/internal/series"
	"sensorviz/internal/server"
	"sensorviz/internal/summary"
	"sensorviz/internal/table"
	"sensorviz/internal/views"
	"sensorviz/internal/window"
)

func parseDate(dateStr string, loc *time.Location) (time.Time, error) {
	// Try different date formats
	formats := []string{
		"2006-01-02",
		"02.01.2006",
		"02.01.06",
	}

	var parseErr error
	for _, format := range formats {
		t, err := time.ParseInLocation(format, dateStr, loc)
		if err == nil {
			return t, nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("invalid date format, please use YYYY-MM-DD or DD.MM.YYYY: %v", parseErr)
}

// userWindow turns -from/-to or -days into a window. nil means no user
// choice: the view falls back to its lookback range.
func userWindow(from, to string, days int, loc *time.Location) (*window.Window, error) {
	switch {
	case from != "" && to != "":
		start, err := parseDate(from, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %v", err)
		}
		end, err := parseDate(to, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %v", err)
		}
		w, err := window.New(start, end)
		if err != nil {
			return nil, err
		}
		return &w, nil
	case from != "" || to != "":
		return nil, errors.New("-from and -to must be given together")
	case days > 0:
		w := window.LastDays(days, time.Now().In(loc))
		return &w, nil
	}
	return nil, nil
}

// rangeWindow resolves -range (24h, 7d or all) against now.
func rangeWindow(rng string, now, allSince time.Time) (*window.Window, error) {
	if rng == "" {
		return nil, nil
	}
	r, err := window.ParseRange(rng)
	if err != nil {
		return nil, err
	}
	w := r.Resolve(now, allSince)
	return &w, nil
}

func parseMetrics(list string) ([]models.Metric, error) {
	if list == "" {
		return nil, nil
	}
	var out []models.Metric
	for _, name := range strings.Split(list, ",") {
		m, err := models.ParseMetric(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type app struct {
	cfg       *config.Config
	log       *slog.Logger
	reg       *prometheus.Registry
	metrics   *metrics.Metrics
	client    *ingest.Client
	palette   series.Palette
	formatter *table.Formatter
	bucketing series.Bucketing
	schedule  refresh.Schedule
	dataLoc   *time.Location
	allSince  time.Time
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	displayLoc, err := cfg.DisplayLocation()
	if err != nil {
		return nil, err
	}
	dataLoc, err := cfg.DataLocation()
	if err != nil {
		return nil, err
	}
	bucketing, err := series.ParseBucketing(cfg.View.Interval)
	if err != nil {
		return nil, err
	}
	schedule, err := refresh.ParseSchedule(cfg.View.PollSchedule)
	if err != nil {
		return nil, err
	}
	allSince, err := cfg.AllSinceDate(dataLoc)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	return &app{
		cfg:       cfg,
		log:       log,
		reg:       reg,
		metrics:   m,
		client:    ingest.NewClient(cfg.API.BaseURL, timeout, ingest.WithLogger(log), ingest.WithMetrics(m)),
		palette:   series.Palette(cfg.View.Palette),
		formatter: table.NewFormatter(displayLoc, dataLoc),
		bucketing: bucketing,
		schedule:  schedule,
		dataLoc:   dataLoc,
		allSince:  allSince,
	}, nil
}

func (a *app) view(ctx context.Context, name string) *refresh.View {
	return refresh.NewView(name, a.client.Fetch,
		refresh.WithContext(ctx),
		refresh.WithLogger(a.log),
		refresh.WithMetrics(a.metrics))
}

func (a *app) showCharts(ctx context.Context, w *window.Window, ms []models.Metric, sel inventory.Selection, asJSON bool) error {
	c := views.NewCharts(a.view(ctx, "charts"), a.palette, a.bucketing, a.cfg.View.LookbackDays, a.dataLoc, a.log)
	defer c.Close()
	c.SetMetrics(ms)
	c.SetSelection(sel)
	if w != nil {
		c.SetWindow(w)
	} else {
		c.Mount()
	}

	st, err := c.Await(ctx)
	if err != nil {
		return err
	}
	if st.State == refresh.Failed {
		return errors.New(st.Message)
	}
	if st.Empty {
		fmt.Println(st.Message)
		return nil
	}

	if !asJSON {
		st.Output.Dump(os.Stdout)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st.Output)
}

func (a *app) showTable(ctx context.Context, limit int) error {
	t, err := views.NewTable(a.view(ctx, "table"), a.cfg.View.LimitOptions, limit, a.formatter)
	if err != nil {
		return err
	}
	defer t.Close()

	st, err := t.Load(ctx)
	if err != nil {
		return err
	}
	if st.State == refresh.Failed {
		return errors.New(st.Message)
	}
	fmt.Printf("\nLatest %d readings:\n\n", st.Limit)
	table.Dump(os.Stdout, st.Rows)
	return nil
}

// fetchWindow loads the records of w, or of the lookback range when w is nil.
func (a *app) fetchWindow(ctx context.Context, w *window.Window) (window.Window, []models.Reading, error) {
	if w == nil {
		lw := window.LastDays(a.cfg.View.LookbackDays, time.Now().In(a.dataLoc))
		w = &lw
	}
	v := a.view(ctx, "summary")
	defer v.Close()

	snap, err := v.Load(ctx, ingest.RangeQuery(w.StartDate(), w.EndDate()))
	if err != nil {
		return *w, nil, err
	}
	if snap.State == refresh.Failed {
		return *w, nil, errors.New(snap.Message)
	}
	return *w, window.Filter(snap.Records, w, a.dataLoc), nil
}

func (a *app) showSummary(ctx context.Context, w *window.Window, ms []models.Metric) error {
	win, records, err := a.fetchWindow(ctx, w)
	if err != nil {
		return err
	}
	rep := summary.Summarize(win, series.Group(records, a.dataLoc), ms)
	rep.Dump(os.Stdout, ms)
	return nil
}

func (a *app) showInventory(ctx context.Context, w *window.Window) error {
	win, records, err := a.fetchWindow(ctx, w)
	if err != nil {
		return err
	}
	inv := inventory.Discover(records)

	fmt.Printf("\nRobots and sensors seen %s to %s:\n", win.StartDate(), win.EndDate())
	if len(inv.Robots) == 0 {
		fmt.Printf("\nWarning: No robots found\n")
		return nil
	}
	for _, robot := range inv.Robots {
		fmt.Printf("  %s:\n", robot)
		for _, sensor := range inv.SensorsFor(robot) {
			fmt.Printf("    - %s\n", sensor)
		}
	}
	fmt.Printf("\n%d robots, %d distinct sensors\n", len(inv.Robots), len(inv.SensorsFor(inventory.All)))
	return nil
}

func (a *app) runLive(ctx context.Context) error {
	l := views.NewLive(a.view(ctx, "live"), a.schedule, a.formatter)
	defer l.Close()

	l.OnChange(func(st views.LiveState) {
		fmt.Printf("\n=== %s ===\n", time.Now().Format(time.DateTime))
		if st.State == refresh.Failed {
			fmt.Printf("%s\n", st.Message)
		}
		table.DumpCards(os.Stdout, st.Cards)
	})
	l.Start(ctx)
	<-ctx.Done()
	return nil
}

func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func main() {
	var (
		configPath string
		startDate  string
		endDate    string
		days       int
		limit      int
		metricList string
		robot      string
		sensor     string
		axis       string
		rng        string
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Config file")
	flag.StringVar(&startDate, "from", "", "Start date (format: YYYY-MM-DD or DD.MM.YYYY)")
	flag.StringVar(&endDate, "to", "", "End date (format: YYYY-MM-DD or DD.MM.YYYY)")
	flag.IntVar(&days, "days", 0, "Number of days to show (ignored if from/to are specified)")
	flag.StringVar(&rng, "range", "", "Relative range: 24h, 7d or all (ignored if from/to or days are specified)")
	flag.IntVar(&limit, "limit", 0, "Number of readings for -table (one of the configured limit options)")
	flag.StringVar(&metricList, "metric", "", "Comma separated metrics for -charts/-summary (temperature,humidity,powerConsumption,motorInterval)")
	flag.StringVar(&axis, "axis", "", "Chart axis: minute5, hourly, daily or an ISO-8601 interval (default from config)")
	flag.StringVar(&robot, "robot", inventory.All, "Robot to chart")
	flag.StringVar(&sensor, "sensor", inventory.All, "Sensor to chart")
	live := flag.Bool("live", false, "Poll and print the latest reading of every sensor")
	charts := flag.Bool("charts", false, "Print chart series")
	asJSON := flag.Bool("json", false, "Print -charts output as JSON")
	tableMode := flag.Bool("table", false, "Print the most recent readings")
	summaryMode := flag.Bool("summary", false, "Print per-sensor statistics")
	inventoryMode := flag.Bool("inventory", false, "List robots and their sensors")
	serve := flag.Bool("serve", false, "Serve the views over HTTP")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.TimeOnly}))
	slog.SetDefault(log)

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := userWindow(startDate, endDate, days, a.dataLoc)
	if err == nil && w == nil {
		w, err = rangeWindow(rng, time.Now().In(a.dataLoc), a.allSince)
	}
	if err != nil {
		log.Error("invalid time range", "err", err)
		os.Exit(2)
	}
	ms, err := parseMetrics(metricList)
	if err != nil {
		log.Error("invalid metric", "err", err)
		os.Exit(2)
	}
	if limit == 0 {
		limit = cfg.View.DefaultLimit
	}
	if axis != "" {
		if a.bucketing, err = series.Preset(axis); err != nil {
			log.Error("invalid axis", "err", err)
			os.Exit(2)
		}
	}

	switch {
	case *serve:
		if err := a.client.TestConnection(ctx); err != nil {
			log.Warn("backend not reachable", "url", cfg.API.BaseURL, "err", err)
		}
		srv := server.New(server.Options{
			Fetch:        a.client.Fetch,
			Palette:      a.palette,
			Formatter:    a.formatter,
			Bucketing:    a.bucketing,
			Location:     a.dataLoc,
			LookbackDays: cfg.View.LookbackDays,
			AllSince:     a.allSince,
			LimitOptions: cfg.View.LimitOptions,
			DefaultLimit: cfg.View.DefaultLimit,
			Schedule:     a.schedule,
			Logger:       log,
			Metrics:      a.metrics,
			Gatherer:     a.reg,
		})
		err = srv.Run(ctx, cfg.Server.Listen)
	case *live:
		err = a.runLive(ctx)
	case *charts:
		err = a.showCharts(ctx, w, ms, inventory.Selection{Robot: robot, Sensor: sensor}, *asJSON)
	case *tableMode:
		err = a.showTable(ctx, limit)
	case *summaryMode:
		err = a.showSummary(ctx, w, ms)
	case *inventoryMode:
		err = a.showInventory(ctx, w)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("failed", "err", err)
		os.Exit(1)
	}
}
