// Package calendar picks a follow-up start time from free-text suggestions and
// builds calendar invite links.
package calendar

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDuration is the length of a suggested follow-up.
const DefaultDuration = 15 * time.Minute

var (
	clock12 = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*([ap])\.?m\b`)
	clock24 = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var buckets = []struct {
	word string
	hour int
}{
	{"morning", 10},
	{"afternoon", 14},
	{"evening", 18},
}

// cue is what one suggestion says about timing.
type cue struct {
	hasTime      bool
	hour, minute int
	hasDay       bool
	days         int // offset from today
}

// SuggestStart returns the start time implied by the first suggestion that
// carries a timing cue. Without any cue it is a week from now at 17:00.
// The result is in now's location with seconds cleared.
func SuggestStart(suggestions []string, now time.Time) time.Time {
	for _, s := range suggestions {
		c, ok := parse(strings.ToLower(s), now)
		if !ok {
			continue
		}
		return c.resolve(now)
	}
	return at(now, 7, 17, 0)
}

func parse(text string, now time.Time) (cue, bool) {
	var c cue

	if m := clock12.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			minute := 0
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			h %= 12
			if m[3] == "p" {
				h += 12
			}
			c.hasTime, c.hour, c.minute = true, h, minute
		}
	}
	if !c.hasTime {
		if m := clock24.FindStringSubmatch(text); m != nil {
			c.hour, _ = strconv.Atoi(m[1])
			c.minute, _ = strconv.Atoi(m[2])
			c.hasTime = true
		}
	}
	if !c.hasTime {
		for _, b := range buckets {
			if strings.Contains(text, b.word) {
				c.hasTime, c.hour, c.minute = true, b.hour, 0
				break
			}
		}
	}

	switch {
	case strings.Contains(text, "tomorrow"):
		c.hasDay, c.days = true, 1
	case containsWeekday(text):
		wd := firstWeekday(text)
		d := (int(wd) - int(now.Weekday()) + 7) % 7
		if d == 0 {
			d = 7
		}
		c.hasDay, c.days = true, d
	case strings.Contains(text, "next week"):
		c.hasDay, c.days = true, 7
	}

	return c, c.hasTime || c.hasDay
}

func (c cue) resolve(now time.Time) time.Time {
	switch {
	case c.hasDay && c.hasTime:
		return at(now, c.days, c.hour, c.minute)
	case c.hasDay:
		return at(now, c.days, 17, 0)
	default:
		t := at(now, 0, c.hour, c.minute)
		if !t.After(now) {
			t = at(now, 1, c.hour, c.minute)
		}
		return t
	}
}

func at(now time.Time, days, hour, minute int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+days, hour, minute, 0, 0, now.Location())
}

func containsWeekday(text string) bool {
	_, ok := weekdayIndex(text)
	return ok
}

// firstWeekday returns the weekday named earliest in text.
func firstWeekday(text string) time.Weekday {
	wd, _ := weekdayIndex(text)
	return wd
}

func weekdayIndex(text string) (time.Weekday, bool) {
	best, found := -1, time.Sunday
	for name, wd := range weekdays {
		if i := strings.Index(text, name); i >= 0 && (best < 0 || i < best) {
			best, found = i, wd
		}
	}
	return found, best >= 0
}

// InviteURL builds a Google Calendar event template link.
func InviteURL(title, details, attendee string, start time.Time, duration time.Duration) string {
	if duration <= 0 {
		duration = DefaultDuration
	}
	const layout = "20060102T150405Z"
	end := start.Add(duration)

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("details", details)
	q.Set("dates", start.UTC().Format(layout)+"/"+end.UTC().Format(layout))
	if attendee != "" {
		q.Set("add", attendee)
	}
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}
