package scheduler

import (
	"fmt"
	"time"
)

// Trigger produces the 6-field (with-seconds) cron spec robfig/cron
// expects, the way the teacher's scheduler is configured
// (cron.New(cron.WithSeconds())).
type Trigger interface {
	CronSpec() string
}

type cronSpec string

func (c cronSpec) CronSpec() string { return string(c) }

// IntervalMinutes fires every n minutes, on the minute. A whole number of
// hours is expressed in the hour field; any other n that does not divide 60
// restarts its count at the top of each hour.
func IntervalMinutes(n int) Trigger {
	if n >= 60 && n%60 == 0 {
		return cronSpec(fmt.Sprintf("0 0 */%d * * *", n/60))
	}
	return cronSpec(fmt.Sprintf("0 */%d * * * *", n))
}

// CronDaily fires once a day at hour:minute.
func CronDaily(hour, minute int) Trigger {
	return cronSpec(fmt.Sprintf("0 %d %d * * *", minute, hour))
}

// CronWeekly fires once a week on weekday at hour:minute.
func CronWeekly(weekday time.Weekday, hour, minute int) Trigger {
	return cronSpec(fmt.Sprintf("0 %d %d * * %d", minute, hour, int(weekday)))
}
