// Package notify decides which subscribers are due a soup notification and
// delivers it to them over Slack.
package notify

import (
	"fmt"
	"time"
)

var clockLayouts = []string{"15:04:05", "15:04"}

// Window decides whether a subscriber's notify time falls close enough to
// now. Interval should equal the period of the trigger that runs the
// notifier so that consecutive runs cover the day exactly once.
//
// The window is placed on the subscriber's current local date and does not
// wrap around midnight: a notify time within Interval/2 of 00:00 can be
// missed or delivered twice when a run straddles the day boundary.
type Window struct {
	Interval time.Duration
	// Location is used for subscribers without a timezone.
	Location *time.Location
}

// Due reports whether now lies in [t-Interval/2, t+Interval/2], where t is
// notifyTime on today's date in timezone. Bounds are inclusive.
func (w Window) Due(now time.Time, notifyTime, timezone string) (bool, error) {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return false, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	clock, err := parseClock(notifyTime)
	if err != nil {
		return false, err
	}
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
	half := w.Interval / 2
	return !now.Before(target.Add(-half)) && !now.After(target.Add(half)), nil
}

func parseClock(s string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid notify time %q", s)
}
