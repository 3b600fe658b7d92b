package series

import (
	"sort"
	"time"

	"sensorviz/internal/models"
)

// Record is a reading paired with its parsed timestamp.
type Record struct {
	models.Reading
	Time time.Time
}

// Groups partitions records by sensor. Keys holds sensor ids in the order they
// were first encountered; map iteration order is never used.
type Groups struct {
	Keys []string
	By   map[string][]Record
}

// Group partitions records by SensorID and sorts each partition by time.
// Equal timestamps keep their input order. Records whose timestamp does not
// parse are left out.
func Group(records []models.Reading, loc *time.Location) Groups {
	g := Groups{By: make(map[string][]Record)}
	for _, r := range records {
		t, ok := r.Time(loc)
		if !ok {
			continue
		}
		if _, seen := g.By[r.SensorID]; !seen {
			g.Keys = append(g.Keys, r.SensorID)
		}
		g.By[r.SensorID] = append(g.By[r.SensorID], Record{Reading: r, Time: t})
	}

	for _, id := range g.Keys {
		recs := g.By[id]
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Time.Before(recs[j].Time)
		})
	}
	return g
}

// Len is the number of sensors.
func (g Groups) Len() int { return len(g.Keys) }

// Total is the number of records across all sensors.
func (g Groups) Total() int {
	n := 0
	for _, id := range g.Keys {
		n += len(g.By[id])
	}
	return n
}
