package summary

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"sensorviz/internal/models"
	"sensorviz/internal/series"
	"sensorviz/internal/window"
)

// Stats describes one metric of one sensor over a window.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Last  float64 `json:"last"`
}

func (s *Stats) add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	}
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
	s.Mean += (v - s.Mean) / float64(s.Count+1)
	s.Last = v
	s.Count++
}

// SensorSummary holds the per-metric statistics of one sensor.
type SensorSummary struct {
	SensorID string                   `json:"sensorId"`
	RobotID  string                   `json:"robotId"`
	Readings int                      `json:"readings"`
	First    time.Time                `json:"first"`
	Last     time.Time                `json:"last"`
	Phase    Phase                    `json:"phase"` // from the latest temperature
	Metrics  map[models.Metric]*Stats `json:"metrics"`
}

// Report is the summary of every sensor in a window, in encounter order.
type Report struct {
	Window  window.Window   `json:"window"`
	Sensors []SensorSummary `json:"sensors"`
}

// Summarize computes statistics for metrics over grouped records. Records
// without a value for a metric do not count towards it.
func Summarize(w window.Window, g series.Groups, metrics []models.Metric) Report {
	if len(metrics) == 0 {
		metrics = models.AllMetrics
	}
	rep := Report{Window: w, Sensors: make([]SensorSummary, 0, g.Len())}

	for _, id := range g.Keys {
		records := g.By[id]
		s := SensorSummary{
			SensorID: id,
			Readings: len(records),
			Metrics:  make(map[models.Metric]*Stats),
			Phase:    Inactive,
		}
		if len(records) > 0 {
			s.RobotID = records[0].RobotID
			s.First = records[0].Time
			s.Last = records[len(records)-1].Time
		}

		var lastTemp *float64
		for _, r := range records {
			for _, m := range metrics {
				v, ok := m.Value(r.Reading)
				if !ok {
					continue
				}
				st, ok := s.Metrics[m]
				if !ok {
					st = &Stats{}
					s.Metrics[m] = st
				}
				st.add(v)
			}
			if r.Temperature != nil {
				lastTemp = r.Temperature
			}
		}
		s.Phase = PhaseFor(lastTemp)
		rep.Sensors = append(rep.Sensors, s)
	}
	return rep
}

// Dump writes a human-readable representation of the report.
func (rep Report) Dump(w io.Writer, metrics []models.Metric) {
	if len(metrics) == 0 {
		metrics = models.AllMetrics
	}
	fmt.Fprintf(w, "\nSensor Summary for period: %s to %s (%d days)\n\n",
		rep.Window.StartDate(), rep.Window.EndDate(), rep.Window.Days())

	if len(rep.Sensors) == 0 {
		fmt.Fprintf(w, "  (none)\n")
		return
	}

	for _, s := range rep.Sensors {
		fmt.Fprintf(w, "%s (%s): %d readings, phase %s\n", s.SensorID, s.RobotID, s.Readings, s.Phase)
		fmt.Fprintf(w, "  %-22s %7s %9s %9s %9s %9s\n", "Metric", "Count", "Min", "Max", "Mean", "Last")
		fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 70))
		for _, m := range metrics {
			st, ok := s.Metrics[m]
			if !ok {
				fmt.Fprintf(w, "  %-22s %7d %9s %9s %9s %9s\n", m.Label(), 0, "-", "-", "-", "-")
				continue
			}
			fmt.Fprintf(w, "  %-22s %7d %9.1f %9.1f %9.1f %9.1f\n",
				m.Label(), st.Count, st.Min, st.Max, st.Mean, st.Last)
		}
		fmt.Fprintln(w)
	}
}
