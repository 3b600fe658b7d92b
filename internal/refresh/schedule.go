package refresh

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Clock is the time source used for polling.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Schedule yields the next poll instant after a given time. cron.Schedule
// satisfies it.
type Schedule interface {
	Next(time.Time) time.Time
}

// ParseSchedule accepts a standard cron spec ("*/5 * * * *", "@every 5s") or
// a bare Go duration ("5s").
func ParseSchedule(spec string) (Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err == nil {
		return sched, nil
	}
	d, derr := time.ParseDuration(spec)
	if derr != nil {
		return nil, fmt.Errorf("parsing poll schedule %q: %v", spec, err)
	}
	if d < time.Second {
		return nil, fmt.Errorf("poll interval %s is below one second", d)
	}
	return cron.Every(d), nil
}
