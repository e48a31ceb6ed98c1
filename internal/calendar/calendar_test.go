package calendar

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2024-05-15 11:20:45 local.
var now = time.Date(2024, 5, 15, 11, 20, 45, 500, time.Local)

func day(d, h, m int) time.Time {
	return time.Date(2024, 5, d, h, m, 0, 0, time.Local)
}

func TestSuggestStart(t *testing.T) {
	tests := []struct {
		name        string
		suggestions []string
		want        time.Time
	}{
		{"tomorrow morning", []string{"Let's meet tomorrow morning"}, day(16, 10, 0)},
		{"time later today", []string{"Call at 3:30 PM"}, day(15, 15, 30)},
		{"time already passed", []string{"Coffee at 9am"}, day(16, 9, 0)},
		{"noon", []string{"Lunch at 12 pm tomorrow"}, day(16, 12, 0)},
		{"midnight", []string{"12:15am works"}, day(16, 0, 15)},
		{"24h clock", []string{"sync at 16:45"}, day(15, 16, 45)},
		{"weekday with time", []string{"Friday at 2pm"}, day(17, 14, 0)},
		{"same weekday is next week", []string{"Wednesday afternoon"}, day(22, 14, 0)},
		{"weekday without time", []string{"Monday works"}, day(20, 17, 0)},
		{"next week", []string{"Sometime next week"}, day(22, 17, 0)},
		{"evening bucket", []string{"Drinks in the evening"}, day(15, 18, 0)},
		{"first cue wins", []string{"Stay in touch", "Thursday morning", "tomorrow"}, day(16, 10, 0)},
		{"no cue", []string{"Schedule a follow-up call"}, day(22, 17, 0)},
		{"no suggestions", nil, day(22, 17, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestStart(tt.suggestions, now)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			assert.Zero(t, got.Second())
			assert.Zero(t, got.Nanosecond())
			assert.Equal(t, now.Location(), got.Location())
		})
	}
}

func TestInviteURL(t *testing.T) {
	start := time.Date(2024, 5, 16, 10, 0, 0, 0, time.UTC)
	raw := InviteURL("Great meeting you", "Hi Sam,\nThanks!", "sam@example.com", start, 0)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", u.Host)

	q := u.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Great meeting you", q.Get("text"))
	assert.Equal(t, "Hi Sam,\nThanks!", q.Get("details"))
	assert.Equal(t, "sam@example.com", q.Get("add"))
	assert.Equal(t, "20240516T100000Z/20240516T101500Z", q.Get("dates"))
}

func TestInviteURLConvertsToUTC(t *testing.T) {
	zone := time.FixedZone("UTC-4", -4*3600)
	start := time.Date(2024, 5, 16, 17, 0, 0, 0, zone)

	u, err := url.Parse(InviteURL("x", "y", "", start, 30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "20240516T210000Z/20240516T213000Z", u.Query().Get("dates"))
	assert.False(t, u.Query().Has("add"))
}
