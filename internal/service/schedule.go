package service

import (
	"context"
	"time"
)

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// RunDaily calls trigger once a day at hour:minute in loc until ctx is done.
func RunDaily(ctx context.Context, hour, minute int, loc *time.Location, trigger func()) {
	for {
		wait := time.Until(NextRun(time.Now(), hour, minute, loc))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			trigger()
		}
	}
}
