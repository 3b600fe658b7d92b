package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"sensorviz/internal/ingest"
	"sensorviz/internal/metrics"
	"sensorviz/internal/models"
	"sensorviz/internal/series"
	"sensorviz/internal/table"
)

func f(v float64) *float64 { return &v }

type backend struct {
	mu      sync.Mutex
	queries []ingest.Query
	records []models.Reading
	err     error
}

func (b *backend) fetch(ctx context.Context, q ingest.Query) ([]models.Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, q)
	if b.err != nil {
		return nil, b.err
	}
	return b.records, nil
}

func (b *backend) last() ingest.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[len(b.queries)-1]
}

func newServer(t *testing.T, b *backend) (*Server, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := New(Options{
		Fetch:        b.fetch,
		Formatter:    table.NewFormatter(time.UTC, time.UTC),
		Location:     time.UTC,
		LookbackDays: 7,
		LimitOptions: []int{10, 25, 50, 100},
		DefaultLimit: 10,
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
	})
	s.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(s.live.Close)
	return s, s.Handler()
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

var sample = []models.Reading{
	{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-01 10:00:00", Temperature: f(20), Humidity: f(50)},
	{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-01 10:05:00", Temperature: f(21), Humidity: f(51)},
	{RobotID: "Rpi__2", SensorID: "S2", Timestamp: "2024-01-01 10:00:00", Temperature: f(30)},
}

func TestCharts(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/charts?start=2024-01-01&end=2024-01-01&metric=temperature")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ingest.RangeQuery("2024-01-01", "2024-01-01"), b.last())

	var body struct {
		State  string `json:"state"`
		Output struct {
			Window    map[string]string `json:"window"`
			Bucketing series.Bucketing  `json:"bucketing"`
			Charts    []struct {
				Metric string `json:"metric"`
				Series []struct {
					SensorID string `json:"sensorId"`
					Color    string `json:"color"`
					Points   []struct {
						X time.Time `json:"x"`
						Y float64   `json:"y"`
					} `json:"points"`
				} `json:"series"`
			} `json:"charts"`
		} `json:"output"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ready", body.State)
	require.Equal(t, "2024-01-01", body.Output.Window["start"])
	require.Equal(t, 5, body.Output.Bucketing.Step)
	require.Len(t, body.Output.Charts, 1)
	require.Len(t, body.Output.Charts[0].Series, 2)
	require.Equal(t, "S1", body.Output.Charts[0].Series[0].SensorID)
	require.Equal(t, series.DefaultPalette[0], body.Output.Charts[0].Series[0].Color)
	require.Len(t, body.Output.Charts[0].Series[0].Points, 2)
	require.Equal(t, 21.0, body.Output.Charts[0].Series[0].Points[1].Y)
}

func TestChartsDefaultsToLookback(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/charts?robot=Rpi__2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ingest.RangeQuery("2024-01-04", "2024-01-10"), b.last())
	require.Contains(t, rec.Body.String(), `"derived":true`)

	get(t, h, "/api/charts?range=24h")
	require.Equal(t, ingest.RangeQuery("2024-01-09", "2024-01-10"), b.last())

	rec = get(t, h, "/api/charts?range=all")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ingest.RangeQuery("2020-01-01", "2024-01-10"), b.last())
	require.Contains(t, rec.Body.String(), `"derived":false`)
}

func TestChartsRangeCutoff(t *testing.T) {
	b := &backend{records: []models.Reading{
		{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-09 03:35:00", Temperature: f(20)},
		{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-10 11:00:00", Temperature: f(25)},
	}}
	_, h := newServer(t, b)

	points := func(url string) int {
		rec := get(t, h, url)
		require.Equal(t, http.StatusOK, rec.Code, url)
		var body struct {
			Output struct {
				Points int `json:"points"`
			} `json:"output"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body.Output.Points
	}

	require.Equal(t, 1, points("/api/charts?range=24h&metric=temperature"))
	require.Equal(t, 2, points("/api/charts?range=7d&metric=temperature"))
	require.Equal(t, 2, points("/api/charts?range=all&metric=temperature"))
}

func TestChartsEmpty(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/charts?start=2024-02-01&end=2024-02-02")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"empty":true,"message":"No data available for the selected period.","window":{"start":"2024-02-01","end":"2024-02-02"}}`, rec.Body.String())
}

func TestChartsBadRequest(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	for _, url := range []string{
		"/api/charts?start=2024-01-05&end=2024-01-01",
		"/api/charts?start=2024-01-05",
		"/api/charts?metric=pressure",
		"/api/charts?range=fortnight",
	} {
		require.Equal(t, http.StatusBadRequest, get(t, h, url).Code, url)
	}
	require.Empty(t, b.queries)
}

func TestBackendFailure(t *testing.T) {
	b := &backend{err: &ingest.ResponseError{Status: 500, Detail: "boom"}}
	_, h := newServer(t, b)

	for _, url := range []string{"/api/charts", "/api/table", "/api/latest", "/api/summary"} {
		rec := get(t, h, url)
		require.Equal(t, http.StatusBadGateway, rec.Code, url)
		require.JSONEq(t, `{"error":"500 - boom"}`, rec.Body.String(), url)
	}
}

func TestTable(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/table?limit=25")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ingest.LimitQuery(25), b.last())

	var body struct {
		Limit int         `json:"limit"`
		Rows  []table.Row `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 25, body.Limit)
	require.Len(t, body.Rows, 3)

	get(t, h, "/api/table")
	require.Equal(t, ingest.LimitQuery(10), b.last())

	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/table?limit=33").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/table?limit=ten").Code)
}

func TestLatest(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ingest.LatestQuery(), b.last())
	require.Contains(t, rec.Body.String(), `"phase":"Mesophilic"`)
}

func TestLatestSameSensorOnTwoRobots(t *testing.T) {
	b := &backend{records: []models.Reading{
		{RobotID: "Rpi__1", SensorID: "Sensor__1", Timestamp: "2024-01-10 11:00:00", Temperature: f(20)},
		{RobotID: "Rpi__2", SensorID: "Sensor__1", Timestamp: "2024-01-10 11:00:00", Temperature: f(60)},
	}}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cards []table.Card `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Cards, 2)
	require.Equal(t, "Rpi__1", body.Cards[0].RobotID)
	require.Equal(t, "Rpi__2", body.Cards[1].RobotID)
	require.Equal(t, "60.0 °C", body.Cards[1].Temperature)
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{
		Fetch:  (&backend{}).fetch,
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})
	t.Cleanup(s.live.Close)

	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, math.Inf(1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, buf.String(), "encoding response")
	require.Contains(t, buf.String(), "unsupported value")
}

func TestSummary(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/summary?start=2024-01-01&end=2024-01-01&metric=temperature")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep struct {
		Sensors []struct {
			SensorID string `json:"sensorId"`
			Readings int    `json:"readings"`
			Metrics  map[string]struct {
				Max float64 `json:"max"`
			} `json:"metrics"`
		} `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.Len(t, rep.Sensors, 2)
	require.Equal(t, 2, rep.Sensors[0].Readings)
	require.Equal(t, 21.0, rep.Sensors[0].Metrics["temperature"].Max)
}

func TestLimitsAndMetrics(t *testing.T) {
	b := &backend{records: sample}
	_, h := newServer(t, b)

	rec := get(t, h, "/api/limits")
	require.JSONEq(t, `{"options":[10,25,50,100],"default":10}`, rec.Body.String())

	get(t, h, "/api/latest")
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "sensorviz_view_records"))
}
