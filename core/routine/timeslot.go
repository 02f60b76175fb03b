package routine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slotSeparator = regexp.MustCompile(`(?i)\s*(?:–|—|-|\s+to\s+)\s*`)
	clockRegex    = regexp.MustCompile(`(?i)^(\d{1,2})(?:[:.](\d{2}))?\s*([ap])\.?\s*m?\.?$|^(\d{1,2})[:.](\d{2})$`)
	spaces        = regexp.MustCompile(`\s+`)

	weekdays = map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
)

// SplitSlot splits a time slot such as "10:00 - 10:50" or "9 AM to 10 AM" into its two ends.
// A slot without separator yields empty strings.
func SplitSlot(slot string) (start, end string) {
	parts := slotSeparator.Split(strings.TrimSpace(slot), 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// ParseClock parses "10:00", "9.30", "14:05", "10 AM" or "2:30pm" into hour and minute.
func ParseClock(s string) (hour, min int, ok bool) {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	if m[4] != "" { // 24h clock
		hour, _ = strconv.Atoi(m[4])
		min, _ = strconv.Atoi(m[5])
		if hour > 23 || min > 59 {
			return 0, 0, false
		}
		return hour, min, true
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		min, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || min > 59 {
		return 0, 0, false
	}
	pm := strings.EqualFold(m[3], "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour, min, true
}

// SlotInterval returns the slot bounds as minutes since midnight.
func SlotInterval(slot string) (start, end int, ok bool) {
	s, e := SplitSlot(slot)
	sh, sm, ok := ParseClock(s)
	if !ok {
		return 0, 0, false
	}
	eh, em, ok := ParseClock(e)
	if !ok {
		return 0, 0, false
	}
	return sh*60 + sm, eh*60 + em, true
}

// CanonicalSlot renders a slot as "HH:MM-HH:MM" when both ends parse,
// otherwise as its lower-cased, whitespace-collapsed text.
func CanonicalSlot(slot string) string {
	if start, end, ok := SlotInterval(slot); ok {
		return fmt.Sprintf("%02d:%02d-%02d:%02d", start/60, start%60, end/60, end%60)
	}
	return spaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(slot)), " ")
}

// SameSlot compares two slots by their canonical form.
func SameSlot(a, b string) bool {
	return CanonicalSlot(a) == CanonicalSlot(b)
}

// SlotsOverlap reports whether two slots share any minute. Unparseable slots fall back to SameSlot.
func SlotsOverlap(a, b string) bool {
	as, ae, aok := SlotInterval(a)
	bs, be, bok := SlotInterval(b)
	if !aok || !bok {
		return SameSlot(a, b)
	}
	return as < be && bs < ae
}

// IsValidSlot reports whether both ends of the slot parse and the slot does not end before it starts.
func IsValidSlot(slot string) bool {
	start, end, ok := SlotInterval(slot)
	return ok && start < end
}

// ParseWeekday accepts english day names and their abbreviations of at least three letters, case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	if wd, ok := weekdays[s]; ok {
		return wd, true
	}
	for name, wd := range weekdays {
		if strings.HasPrefix(name, s) {
			return wd, true
		}
	}
	return 0, false
}

// DayMatches reports whether an entry day name denotes weekday wd.
func DayMatches(day string, wd time.Weekday) bool {
	parsed, ok := ParseWeekday(day)
	return ok && parsed == wd
}
