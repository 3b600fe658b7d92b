package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// ErrNoUsableData signals that a record set yielded nothing to plot. It is an
// informational state, not a failure.
var ErrNoUsableData = errors.New("no usable data")

// Reading is one timestamped observation from a sensor mounted on a robot.
// Keys are matched case-insensitively when decoding, so the backend's
// "robotid" and "powerconsumption" spellings land in the same fields.
type Reading struct {
	ID               *int64   `json:"id,omitempty"`
	RobotID          string   `json:"robotId"`
	SensorID         string   `json:"sensorId"`
	Timestamp        string   `json:"timestamp"`
	Temperature      *float64 `json:"temperature"`
	Humidity         *float64 `json:"humidity"`
	ControlMode      string   `json:"controlMode"`
	MotorInterval    *float64 `json:"motorInterval"`
	PowerConsumption *float64 `json:"powerConsumption"`
	CompostPhase     string   `json:"compostPhase,omitempty"`
}

// Validate checks the identity fields every downstream stage keys on.
func (r Reading) Validate() error {
	if r.RobotID == "" {
		return fmt.Errorf("reading has empty robotId")
	}
	if r.SensorID == "" {
		return fmt.Errorf("reading from %s has empty sensorId", r.RobotID)
	}
	return nil
}

// Time parses the reading's timestamp in loc.
func (r Reading) Time(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(r.Timestamp, loc)
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339Nano,
}

// ParseTimestamp normalises a backend timestamp ("2024-01-01 10:00:00") to
// ISO-8601 and parses it. Zone-less values are interpreted in loc. ok is false
// when the value cannot be parsed.
func ParseTimestamp(s string, loc *time.Location) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := iso8601.ParseInLocation([]byte(s), loc); err == nil {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
