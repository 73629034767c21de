package tracking

import "time"

// Clock provides wall time for session start and end stamps.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
