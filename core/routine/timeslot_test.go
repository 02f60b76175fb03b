package routine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitSlot(t *testing.T) {
	tests := []struct {
		slot      string
		wantStart string
		wantEnd   string
	}{
		{slot: "10:00-10:50", wantStart: "10:00", wantEnd: "10:50"},
		{slot: "10:00 - 10:50", wantStart: "10:00", wantEnd: "10:50"},
		{slot: "10:00–10:50", wantStart: "10:00", wantEnd: "10:50"},
		{slot: "10:00 — 10:50", wantStart: "10:00", wantEnd: "10:50"},
		{slot: "9 AM to 10 AM", wantStart: "9 AM", wantEnd: "10 AM"},
		{slot: "  2:00 PM TO 3:00 PM ", wantStart: "2:00 PM", wantEnd: "3:00 PM"},
		{slot: "morning", wantStart: "", wantEnd: ""},
		{slot: "", wantStart: "", wantEnd: ""},
	}
	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			start, end := SplitSlot(tt.slot)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in       string
		wantHour int
		wantMin  int
		wantOk   bool
	}{
		{in: "10:00", wantHour: 10, wantMin: 0, wantOk: true},
		{in: "9.30", wantHour: 9, wantMin: 30, wantOk: true},
		{in: "23:59", wantHour: 23, wantMin: 59, wantOk: true},
		{in: "10 AM", wantHour: 10, wantMin: 0, wantOk: true},
		{in: "2:30pm", wantHour: 14, wantMin: 30, wantOk: true},
		{in: "12 pm", wantHour: 12, wantMin: 0, wantOk: true},
		{in: "12:15 a.m.", wantHour: 0, wantMin: 15, wantOk: true},
		{in: "24:00", wantOk: false},
		{in: "13 PM", wantOk: false},
		{in: "10", wantOk: false},
		{in: "noon", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hour, min, ok := ParseClock(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.wantHour, hour)
				assert.Equal(t, tt.wantMin, min)
			}
		})
	}
}

func TestCanonicalSlot(t *testing.T) {
	assert.Equal(t, "10:00-10:50", CanonicalSlot("10:00–10:50"))
	assert.Equal(t, "10:00-10:50", CanonicalSlot("10:00 AM - 10:50 AM"))
	assert.Equal(t, "14:00-15:00", CanonicalSlot("2 PM to 3 PM"))
	assert.Equal(t, "after lunch", CanonicalSlot("  After   Lunch "))

	assert.True(t, SameSlot("10:00–10:50", "10:00 - 10:50"))
	assert.False(t, SameSlot("10:00-10:50", "10:00-11:00"))
}

func TestSlotsOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same", a: "10:00-10:50", b: "10:00 - 10:50", want: true},
		{name: "partial", a: "10:00-10:50", b: "10:30-11:20", want: true},
		{name: "contained", a: "09:00-12:00", b: "10:00-10:50", want: true},
		{name: "adjacent", a: "10:00-10:50", b: "10:50-11:40", want: false},
		{name: "disjoint", a: "10:00-10:50", b: "14:00-14:50", want: false},
		{name: "unparseable equal", a: "Period 1", b: "period 1", want: true},
		{name: "unparseable different", a: "Period 1", b: "Period 2", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SlotsOverlap(tt.a, tt.b))
		})
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Weekday
		wantOk bool
	}{
		{in: "Monday", want: time.Monday, wantOk: true},
		{in: "monday", want: time.Monday, wantOk: true},
		{in: "MON", want: time.Monday, wantOk: true},
		{in: "Thu", want: time.Thursday, wantOk: true},
		{in: "tues", want: time.Tuesday, wantOk: true},
		{in: " Sunday ", want: time.Sunday, wantOk: true},
		{in: "mo", wantOk: false},
		{in: "funday", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			wd, ok := ParseWeekday(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, wd)
			}
		})
	}
}
