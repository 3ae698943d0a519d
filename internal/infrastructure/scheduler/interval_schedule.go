package scheduler

import (
	"fmt"
	"time"
)

// never is far enough ahead that a job scheduled for it does not run.
var never = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// IntervalSchedule runs a job at a fixed interval. Zero or negative
// intervals never fire.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an IntervalSchedule.
func Every(interval time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s IntervalSchedule) Next(t time.Time) time.Time {
	if s.Interval <= 0 {
		return never
	}
	return t.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
