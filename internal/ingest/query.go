package ingest

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

type Mode string

const (
	ModeRange  Mode = "range"
	ModeLatest Mode = "latest"
	ModeLimit  Mode = "limit"
)

// Query selects one of the backend's three read endpoints.
type Query struct {
	Mode  Mode
	Start string // YYYY-MM-DD, range only
	End   string // YYYY-MM-DD, range only
	Limit int    // limit only
}

func RangeQuery(start, end string) Query {
	return Query{Mode: ModeRange, Start: start, End: end}
}

func LatestQuery() Query {
	return Query{Mode: ModeLatest}
}

func LimitQuery(n int) Query {
	return Query{Mode: ModeLimit, Limit: n}
}

func (q Query) Validate() error {
	switch q.Mode {
	case ModeRange:
		s, err := time.Parse(dateLayout, q.Start)
		if err != nil {
			return fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidQuery, q.Start)
		}
		e, err := time.Parse(dateLayout, q.End)
		if err != nil {
			return fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidQuery, q.End)
		}
		if s.After(e) {
			return fmt.Errorf("%w: start %s is after end %s", ErrInvalidQuery, q.Start, q.End)
		}
	case ModeLatest:
	case ModeLimit:
		if q.Limit < 1 {
			return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	return nil
}

// path returns the endpoint path and its query parameters.
func (q Query) path() (string, url.Values) {
	v := url.Values{}
	switch q.Mode {
	case ModeRange:
		v.Set("startDate", q.Start)
		v.Set("endDate", q.End)
		return "/getGraphData", v
	case ModeLimit:
		v.Set("limit", strconv.Itoa(q.Limit))
		return "/getSensorData", v
	default:
		return "/getLatestSensorData", v
	}
}

func (q Query) String() string {
	switch q.Mode {
	case ModeRange:
		return fmt.Sprintf("range %s..%s", q.Start, q.End)
	case ModeLimit:
		return fmt.Sprintf("limit %d", q.Limit)
	default:
		return string(q.Mode)
	}
}
