package table

import (
	"fmt"
	"io"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dustin/go-humanize"

	"sensorviz/internal/models"
	"sensorviz/internal/summary"
)

// DisplayLayout renders timestamps as "January 02, 2006, 15:04:05 JST".
const DisplayLayout = "January 02, 2006, 15:04:05 MST"

const unknownTime = "unknown time"

// Formatter renders readings for people: timestamps converted from the data
// zone to the display zone, missing values as "-".
type Formatter struct {
	display *time.Location
	data    *time.Location
	now     func() time.Time
}

func NewFormatter(display, data *time.Location) *Formatter {
	if display == nil {
		display = time.Local
	}
	if data == nil {
		data = time.Local
	}
	return &Formatter{display: display, data: data, now: time.Now}
}

// Time formats a backend timestamp in the display zone.
func (f *Formatter) Time(ts string) string {
	t, ok := models.ParseTimestamp(ts, f.data)
	if !ok {
		return unknownTime
	}
	return t.In(f.display).Format(DisplayLayout)
}

// Age describes how long ago ts was, e.g. "3 minutes ago".
func (f *Formatter) Age(ts string) string {
	t, ok := models.ParseTimestamp(ts, f.data)
	if !ok {
		return unknownTime
	}
	return humanize.RelTime(t, f.now(), "ago", "from now")
}

func value(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return humanize.FormatFloat("#,###.#", *v) + unit
}

// Row is one line of the readings table.
type Row struct {
	ID               string `json:"id"`
	RobotID          string `json:"robotId"`
	SensorID         string `json:"sensorId"`
	Time             string `json:"time"`
	Temperature      string `json:"temperature"`
	Humidity         string `json:"humidity"`
	ControlMode      string `json:"controlMode"`
	MotorInterval    string `json:"motorInterval"`
	PowerConsumption string `json:"powerConsumption"`
}

func (f *Formatter) Row(r models.Reading) Row {
	id := "-"
	if r.ID != nil {
		id = fmt.Sprint(*r.ID)
	}
	mode := r.ControlMode
	if mode == "" {
		mode = "-"
	}
	return Row{
		ID:               id,
		RobotID:          r.RobotID,
		SensorID:         r.SensorID,
		Time:             f.Time(r.Timestamp),
		Temperature:      value(r.Temperature, " °C"),
		Humidity:         value(r.Humidity, " %"),
		ControlMode:      mode,
		MotorInterval:    value(r.MotorInterval, " s"),
		PowerConsumption: value(r.PowerConsumption, " W"),
	}
}

// Rows formats records in the order given.
func (f *Formatter) Rows(records []models.Reading) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, f.Row(r))
	}
	return rows
}

// Card is the live status of one sensor.
type Card struct {
	RobotID     string        `json:"robotId"`
	SensorID    string        `json:"sensorId"`
	Time        string        `json:"time"`
	Age         string        `json:"age"`
	Temperature string        `json:"temperature"`
	Humidity    string        `json:"humidity"`
	Phase       summary.Phase `json:"phase"`
}

type sensorKey struct {
	robot, sensor string
}

// Cards keeps the most recent reading per sensor, in encounter order. A
// sensor is identified by robot and sensor id together. When timestamps tie
// or cannot be parsed the later record wins.
func (f *Formatter) Cards(records []models.Reading) []Card {
	var order []sensorKey
	latest := make(map[sensorKey]models.Reading)
	for _, r := range records {
		k := sensorKey{r.RobotID, r.SensorID}
		prev, ok := latest[k]
		if !ok {
			order = append(order, k)
			latest[k] = r
			continue
		}
		pt, pok := models.ParseTimestamp(prev.Timestamp, f.data)
		rt, rok := models.ParseTimestamp(r.Timestamp, f.data)
		if !pok || !rok || !rt.Before(pt) {
			latest[k] = r
		}
	}

	cards := make([]Card, 0, len(order))
	for _, k := range order {
		r := latest[k]
		phase := summary.Phase(r.CompostPhase)
		if phase == "" {
			phase = summary.PhaseFor(r.Temperature)
		}
		cards = append(cards, Card{
			RobotID:     r.RobotID,
			SensorID:    r.SensorID,
			Time:        f.Time(r.Timestamp),
			Age:         f.Age(r.Timestamp),
			Temperature: value(r.Temperature, " °C"),
			Humidity:    value(r.Humidity, " %"),
			Phase:       phase,
		})
	}
	return cards
}

// Dump writes rows as a fixed-width table.
func Dump(w io.Writer, rows []Row) {
	fmt.Fprintf(w, "%-6s %-10s %-12s %-36s %10s %9s %-8s %8s %10s\n",
		"ID", "Robot", "Sensor", "Time", "Temp", "Humidity", "Mode", "Motor", "Power")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 120))
	if len(rows) == 0 {
		fmt.Fprintf(w, "(none)\n")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-6s %-10s %-12s %-36s %10s %9s %-8s %8s %10s\n",
			r.ID, r.RobotID, r.SensorID, r.Time, r.Temperature, r.Humidity,
			r.ControlMode, r.MotorInterval, r.PowerConsumption)
	}
}

// DumpCards writes one block per sensor.
func DumpCards(w io.Writer, cards []Card) {
	if len(cards) == 0 {
		fmt.Fprintf(w, "No sensor data available.\n")
		return
	}
	for _, c := range cards {
		fmt.Fprintf(w, "%s / %s\n", c.RobotID, c.SensorID)
		fmt.Fprintf(w, "  Temperature:   %s\n", c.Temperature)
		fmt.Fprintf(w, "  Humidity:      %s\n", c.Humidity)
		fmt.Fprintf(w, "  Compost Phase: %s\n", c.Phase)
		fmt.Fprintf(w, "  Updated:       %s (%s)\n\n", c.Time, c.Age)
	}
}
