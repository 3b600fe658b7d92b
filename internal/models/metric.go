package models

import "fmt"

// Metric names one numeric field of a Reading.
type Metric string

const (
	Temperature      Metric = "temperature"
	Humidity         Metric = "humidity"
	PowerConsumption Metric = "powerConsumption"
	MotorInterval    Metric = "motorInterval"
)

// ChartMetrics are the metrics plotted by the historical graph view.
var ChartMetrics = []Metric{Temperature, Humidity}

// AllMetrics lists every numeric field, in display order.
var AllMetrics = []Metric{Temperature, Humidity, PowerConsumption, MotorInterval}

// ParseMetric accepts a metric name, case-sensitive.
func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Value returns the metric's value in r. ok is false when the field is absent.
func (m Metric) Value(r Reading) (v float64, ok bool) {
	var p *float64
	switch m {
	case Temperature:
		p = r.Temperature
	case Humidity:
		p = r.Humidity
	case PowerConsumption:
		p = r.PowerConsumption
	case MotorInterval:
		p = r.MotorInterval
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (m Metric) Title() string {
	switch m {
	case Temperature:
		return "Temperature"
	case Humidity:
		return "Humidity"
	case PowerConsumption:
		return "Power Consumption"
	case MotorInterval:
		return "Motor Interval"
	default:
		return string(m)
	}
}

func (m Metric) Unit() string {
	switch m {
	case Temperature:
		return "°C"
	case Humidity:
		return "%"
	case PowerConsumption:
		return "W"
	case MotorInterval:
		return "s"
	default:
		return ""
	}
}

// Label is the axis/legend caption, e.g. "Temperature (°C)".
func (m Metric) Label() string {
	if u := m.Unit(); u != "" {
		return fmt.Sprintf("%s (%s)", m.Title(), u)
	}
	return m.Title()
}
