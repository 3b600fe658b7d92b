package summary

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sensorviz/internal/models"
	"sensorviz/internal/series"
	"sensorviz/internal/window"
)

func f(v float64) *float64 { return &v }

func TestPhaseFor(t *testing.T) {
	for _, tc := range []struct {
		temp *float64
		want Phase
	}{
		{nil, Inactive},
		{f(-5), Psychrophilic},
		{f(9.9), Psychrophilic},
		{f(10), Mesophilic},
		{f(44.9), Mesophilic},
		{f(45), Thermophilic},
		{f(70), Thermophilic},
		{f(70.1), Overheating},
		{f(math.NaN()), Inactive},
	} {
		require.Equal(t, tc.want, PhaseFor(tc.temp))
	}
}

func TestSummarize(t *testing.T) {
	records := []models.Reading{
		{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-01 10:00", Temperature: f(20), Humidity: f(50)},
		{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-01 09:00", Temperature: f(10)},
		{RobotID: "Rpi__1", SensorID: "S1", Timestamp: "2024-01-01 11:00", Temperature: f(60), Humidity: f(70)},
		{RobotID: "Rpi__2", SensorID: "S2", Timestamp: "2024-01-01 11:00"},
	}
	w, err := window.Parse("2024-01-01", "2024-01-01", time.UTC)
	require.NoError(t, err)

	rep := Summarize(w, series.Group(records, time.UTC), nil)
	require.Len(t, rep.Sensors, 2)

	s1 := rep.Sensors[0]
	require.Equal(t, "S1", s1.SensorID)
	require.Equal(t, "Rpi__1", s1.RobotID)
	require.Equal(t, 3, s1.Readings)
	require.Equal(t, Thermophilic, s1.Phase)
	require.Equal(t, 9, s1.First.Hour())
	require.Equal(t, 11, s1.Last.Hour())

	temp := s1.Metrics[models.Temperature]
	require.Equal(t, 3, temp.Count)
	require.Equal(t, 10.0, temp.Min)
	require.Equal(t, 60.0, temp.Max)
	require.InDelta(t, 30.0, temp.Mean, 1e-9)
	require.Equal(t, 60.0, temp.Last)

	hum := s1.Metrics[models.Humidity]
	require.Equal(t, 2, hum.Count)
	require.InDelta(t, 60.0, hum.Mean, 1e-9)
	require.NotContains(t, s1.Metrics, models.PowerConsumption)

	s2 := rep.Sensors[1]
	require.Equal(t, Inactive, s2.Phase)
	require.Empty(t, s2.Metrics)

	var buf bytes.Buffer
	rep.Dump(&buf, nil)
	require.Contains(t, buf.String(), "Sensor Summary for period: 2024-01-01 to 2024-01-01 (1 days)")
	require.Contains(t, buf.String(), "S1 (Rpi__1): 3 readings, phase Thermophilic")
}

func TestSummarizeEmpty(t *testing.T) {
	rep := Summarize(window.Window{}, series.Group(nil, time.UTC), nil)
	require.NotNil(t, rep.Sensors)
	require.Empty(t, rep.Sensors)

	var buf bytes.Buffer
	rep.Dump(&buf, nil)
	require.Contains(t, buf.String(), "(none)")
}
