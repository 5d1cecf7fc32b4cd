package scheduler

import (
	"fmt"
	"time"
)

// staggeredInterval is a cron schedule that first fires at a fixed offset
// from the scheduler base time and then repeats at a fixed interval.
// Device i gets offset i*60s so that long attendance fetches never start
// simultaneously across the fleet.
type staggeredInterval struct {
	first time.Time
	every time.Duration
}

func (s staggeredInterval) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	elapsed := t.Sub(s.first)
	periods := elapsed/s.every + 1
	return s.first.Add(periods * s.every)
}

// refreshSchedule builds the schedule for device index i: first fire at
// base + i*60s, then every interval. The engine only asks for fire times
// strictly after the start instant, so the first fire carries one second
// of slack; without it device 0 would wait a full interval before its
// first refresh.
func refreshSchedule(base time.Time, i int, interval time.Duration) staggeredInterval {
	return staggeredInterval{
		first: base.Add(time.Duration(i)*time.Minute + time.Second),
		every: interval,
	}
}

// backupSpec builds the cron expression for device index i: daily at
// hour:minute UTC plus a 5-minute stagger per device, carrying into the
// next hour (or day) when the minutes overflow.
func backupSpec(hour, minute, i int) string {
	total := hour*60 + minute + 5*i
	return fmt.Sprintf("%d %d * * *", total%60, (total/60)%24)
}

// cleanupSpec runs retention cleanup one hour after the backup window
// opens, on the hour.
func cleanupSpec(hour int) string {
	return fmt.Sprintf("0 %d * * *", (hour+1)%24)
}
