package inventory

import (
	"sensorviz/internal/models"
)

// All is the selection value that matches every robot or sensor.
const All = "All"

// Inventory lists the robots and sensors seen in a record set, in the order
// they were first encountered.
type Inventory struct {
	Robots  []string            `json:"robots"`
	Sensors map[string][]string `json:"sensors"` // robotId -> sensorIds
}

// Discover walks records once and collects unique robot and sensor ids.
func Discover(records []models.Reading) Inventory {
	inv := Inventory{Sensors: make(map[string][]string)}
	seen := make(map[string]map[string]bool)

	for _, r := range records {
		sensors, ok := seen[r.RobotID]
		if !ok {
			sensors = make(map[string]bool)
			seen[r.RobotID] = sensors
			inv.Robots = append(inv.Robots, r.RobotID)
		}
		if !sensors[r.SensorID] {
			sensors[r.SensorID] = true
			inv.Sensors[r.RobotID] = append(inv.Sensors[r.RobotID], r.SensorID)
		}
	}
	return inv
}

// SensorsFor returns the sensors of one robot, or of every robot for All.
func (inv Inventory) SensorsFor(robot string) []string {
	if robot != "" && robot != All {
		return inv.Sensors[robot]
	}
	var out []string
	seen := make(map[string]bool)
	for _, id := range inv.Robots {
		for _, s := range inv.Sensors[id] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Selection narrows a record set to one robot and/or sensor. Empty fields or
// All match everything.
type Selection struct {
	Robot  string `json:"robot,omitempty"`
	Sensor string `json:"sensor,omitempty"`
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}

// Match reports whether r passes the selection.
func (s Selection) Match(r models.Reading) bool {
	return matches(s.Robot, r.RobotID) && matches(s.Sensor, r.SensorID)
}

// IsAll reports whether the selection matches every record.
func (s Selection) IsAll() bool {
	return matches(s.Robot, "") && matches(s.Sensor, "")
}

// Apply returns the matching records in input order.
func (s Selection) Apply(records []models.Reading) []models.Reading {
	if s.IsAll() {
		return records
	}
	out := make([]models.Reading, 0, len(records))
	for _, r := range records {
		if s.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
