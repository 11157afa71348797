package webhooks

import (
	"time"

	"github.com/goliatone/go-relay/core"
)

// Schedule is a retry delay table indexed by attempt number starting at 1.
// Attempts past the end of the table reuse the last entry.
type Schedule []time.Duration

func DefaultSchedule() Schedule {
	return ScheduleFromSeconds(core.DefaultBackoffSeconds)
}

func ScheduleFromSeconds(seconds []int) Schedule {
	out := make(Schedule, 0, len(seconds))
	for _, value := range seconds {
		if value <= 0 {
			continue
		}
		out = append(out, time.Duration(value)*time.Second)
	}
	return out
}

func (s Schedule) Delay(attempt int) time.Duration {
	if len(s) == 0 {
		return DefaultSchedule().Delay(attempt)
	}
	if attempt < 1 {
		attempt = 1
	}
	index := attempt - 1
	if index >= len(s) {
		index = len(s) - 1
	}
	return s[index]
}
