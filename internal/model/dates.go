package model

import (
	"fmt"
	"strings"
	"time"
)

// Date truncates t to midnight UTC of the calendar date t has in its own
// location. All calendar days are stored and compared in this form.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay compares the calendar dates of a and b, each in its own location.
func SameDay(a, b time.Time) bool {
	return Date(a).Equal(Date(b))
}

// TextForDate names day relative to today: Today, Tomorrow, Yesterday or a
// formatted date such as "Monday, Jan 2".
func TextForDate(day, today time.Time) string {
	d := Date(day)
	t := Date(today)
	switch {
	case d.Equal(t):
		return "Today"
	case d.Equal(t.AddDate(0, 0, 1)):
		return "Tomorrow"
	case d.Equal(t.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	return d.Format("Monday, Jan 2")
}

var dayLayouts = []string{"2006-01-02", "2006/01/02", "1/2/2006", "January 2, 2006", "Jan 2, 2006"}

// DateForText resolves the day argument of a slash command. Empty text and
// "today" mean today.
func DateForText(text string, today time.Time) (time.Time, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	switch text {
	case "", "today":
		return Date(today), nil
	case "tomorrow":
		return Date(today).AddDate(0, 0, 1), nil
	case "yesterday":
		return Date(today).AddDate(0, 0, -1), nil
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised day %q", text)
}

// WeekBounds returns the Sunday and Saturday of the week containing day.
func WeekBounds(day time.Time) (time.Time, time.Time) {
	d := Date(day)
	start := d.AddDate(0, 0, -int(d.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

var notifyLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 pm",
	"3:04pm",
	"3 pm",
	"3pm",
}

// ParseNotifyTime accepts the forms users type ("8:00 am", "8am", "14:30")
// and returns the stored "HH:MM:SS" form.
func ParseNotifyTime(text string) (string, error) {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, layout := range notifyLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("unrecognised time %q", text)
}
