package series

import (
	"fmt"
	"time"

	"sensorviz/internal/models"
)

// Point is one plotted (time, value) pair.
type Point struct {
	Time  time.Time `json:"x"`
	Value float64   `json:"y"`
}

// Series is one sensor's line for one metric.
type Series struct {
	SensorID string        `json:"sensorId"`
	Metric   models.Metric `json:"metric"`
	Label    string        `json:"label"`
	Color    string        `json:"color"`
	Fill     string        `json:"backgroundColor"`
	Points   []Point       `json:"points"`
}

// Build maps grouped records to one series per sensor, in encounter order.
// The i-th sensor gets palette colour i, so colours are stable as long as the
// encounter order is. Records missing the metric contribute no point.
func Build(g Groups, metric models.Metric, p Palette) []Series {
	out := make([]Series, 0, g.Len())
	for i, id := range g.Keys {
		color := p.Color(i)
		s := Series{
			SensorID: id,
			Metric:   metric,
			Label:    fmt.Sprintf("%s - %s", id, metric.Label()),
			Color:    color,
			Fill:     fill(color),
			Points:   []Point{},
		}
		for _, r := range g.By[id] {
			v, ok := metric.Value(r.Reading)
			if !ok {
				continue
			}
			s.Points = append(s.Points, Point{Time: r.Time, Value: v})
		}
		out = append(out, s)
	}
	return out
}

// Points counts plotted points across series.
func Points(list []Series) int {
	n := 0
	for _, s := range list {
		n += len(s.Points)
	}
	return n
}
