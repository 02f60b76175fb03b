package routine

import (
	"strings"
	"time"
)

// Status of a class, either on the template or resolved for a date.
type Status string

const (
	StatusPending  Status = "pending"
	StatusTaken    Status = "taken"
	StatusMissed   Status = "missed"
	StatusHandover Status = "handover"
)

// HandedOver marks an entry of the original faculty once a handover of it was approved.
const HandedOver = "Handed Over"

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusHandover:
		return true
	}
	return false
}

// Entry is one recurring weekly class of a Routine.
type Entry struct {
	ID       string `json:"id" bson:"id"`
	Day      string `json:"day" bson:"day"`
	TimeSlot string `json:"time_slot" bson:"time_slot"`
	Subject  string `json:"subject" bson:"subject"`
	Course   string `json:"course" bson:"course"`
	Room     string `json:"room" bson:"room"`
	Status   Status `json:"status" bson:"status"`

	// set on the original faculty's entry
	HandoverStatus string `json:"handover_status,omitempty" bson:"handover_status,omitempty"`
	SubstituteID   string `json:"substitute_id,omitempty" bson:"substitute_id,omitempty"`
	SubstituteName string `json:"substitute_name,omitempty" bson:"substitute_name,omitempty"`

	// set on the substitute's appended entry
	Handover            bool   `json:"handover,omitempty" bson:"handover,omitempty"`
	OriginalFacultyID   string `json:"original_faculty_id,omitempty" bson:"original_faculty_id,omitempty"`
	OriginalFacultyName string `json:"original_faculty_name,omitempty" bson:"original_faculty_name,omitempty"`

	// both sides
	HandoverID   string `json:"handover_id,omitempty" bson:"handover_id,omitempty"`
	HandoverDate string `json:"handover_date,omitempty" bson:"handover_date,omitempty"` // YYYY-MM-DD
}

// IsHandedOverOn reports whether the entry was handed over to a substitute for day.
func (e Entry) IsHandedOverOn(day time.Time) bool {
	return e.HandoverStatus == HandedOver && e.HandoverDate == FormatDate(day)
}

// Routine is a faculty member's weekly timetable, effective over [StartDate, EndDate].
type Routine struct {
	ID          string     `json:"id"`
	FacultyID   string     `json:"faculty_id"`
	FacultyName string     `json:"faculty_name"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"` // nil: open-ended
	Revision    int64      `json:"revision"`
	Version     int64      `json:"version"`
	Entries     []Entry    `json:"entries"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// Covers reports whether day falls within the routine's effective range, whole days inclusive.
func (r Routine) Covers(day time.Time) bool {
	day = CalendarDay(day)
	if day.Before(CalendarDay(r.StartDate)) {
		return false
	}
	return r.EndDate == nil || !day.After(CalendarDay(*r.EndDate))
}

// Overlaps reports whether the routine is effective on at least one day of [start, end].
func (r Routine) Overlaps(start, end time.Time) bool {
	if CalendarDay(r.StartDate).After(CalendarDay(end)) {
		return false
	}
	return r.EndDate == nil || !CalendarDay(*r.EndDate).Before(CalendarDay(start))
}

// EntriesOn returns the entries scheduled on weekday wd.
func (r Routine) EntriesOn(wd time.Weekday) []Entry {
	entries := make([]Entry, 0)
	for _, e := range r.Entries {
		if DayMatches(e.Day, wd) {
			entries = append(entries, e)
		}
	}
	return entries
}

// FindEntry returns the index of the entry with the given id, tolerating ObjectID renderings.
func (r Routine) FindEntry(id string) (int, bool) {
	for i, e := range r.Entries {
		if SameID(e.ID, id) {
			return i, true
		}
	}
	return -1, false
}

// HasHandover reports whether an entry already carries the given handover id.
func (r Routine) HasHandover(handoverID string) bool {
	for _, e := range r.Entries {
		if e.HandoverID != "" && SameID(e.HandoverID, handoverID) {
			return true
		}
	}
	return false
}

// NormalizeID strips `ObjectId("...")` / `ObjectID("...")` wrappers and quotes from an id.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "objectid(") && strings.HasSuffix(id, ")") {
		id = id[len("objectid(") : len(id)-1]
	}
	return strings.Trim(id, `"' `)
}

// SameID compares two ids regardless of their string or ObjectID rendering.
func SameID(a, b string) bool {
	a, b = NormalizeID(a), NormalizeID(b)
	return a != "" && strings.EqualFold(a, b)
}
