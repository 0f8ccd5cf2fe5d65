package cooldown

import (
	"fmt"
	"time"
)

// TimeLeft is a remaining cooldown split for display.
type TimeLeft struct {
	Hours   int
	Minutes int
	Seconds int
	Total   time.Duration
}

// Split breaks d into hours, minutes and seconds. Partial seconds round up
// so a blocked user never sees "0s".
func Split(d time.Duration) TimeLeft {
	if d <= 0 {
		return TimeLeft{}
	}
	secs := int((d + time.Second - 1) / time.Second)
	return TimeLeft{
		Hours:   secs / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
		Total:   d,
	}
}

func (t TimeLeft) String() string {
	return fmt.Sprintf("%dh %dm %ds", t.Hours, t.Minutes, t.Seconds)
}
