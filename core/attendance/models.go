package attendance

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

// SystemActor marks events written by the grace period transition.
const SystemActor = "system"

type (
	// Event is the outcome of one routine entry on one date, keyed by (EntryID, Date).
	Event struct {
		ID             string         `json:"id"`
		EntryID        string         `json:"entry_id"`
		RoutineID      string         `json:"routine_id"`
		FacultyID      string         `json:"faculty_id"`
		Date           time.Time      `json:"date"`
		Status         routine.Status `json:"status"`
		MarkedBy       string         `json:"marked_by"`
		Auto           bool           `json:"auto"`
		AbsentStudents []string       `json:"absent_students"`
		CreatedAt      time.Time      `json:"created_at"` // UTC
		UpdatedAt      time.Time      `json:"updated_at"` // UTC
	}

	// Absence lists the students missing from a class a head marked as taken.
	Absence struct {
		ID         string    `json:"id"`
		Date       time.Time `json:"date"`
		EntryID    string    `json:"entry_id"`
		RoutineID  string    `json:"routine_id"`
		FacultyID  string    `json:"faculty_id"`
		Subject    string    `json:"subject"`
		Students   []string  `json:"students"`
		RecordedBy string    `json:"recorded_by"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}

	// ClassInstance is a routine entry resolved for a date.
	ClassInstance struct {
		EntryID             string         `json:"entry_id"`
		RoutineID           string         `json:"routine_id"`
		FacultyID           string         `json:"faculty_id"`
		FacultyName         string         `json:"faculty_name"`
		Date                string         `json:"date"`
		Day                 string         `json:"day"`
		TimeSlot            string         `json:"time_slot"`
		StartTime           string         `json:"start_time"`
		EndTime             string         `json:"end_time"`
		Subject             string         `json:"subject"`
		Course              string         `json:"course"`
		Room                string         `json:"room"`
		Status              routine.Status `json:"status"`
		MarkedBy            string         `json:"marked_by,omitempty"`
		Handover            bool           `json:"handover,omitempty"`
		OriginalFacultyName string         `json:"original_faculty_name,omitempty"`
		SubstituteName      string         `json:"substitute_name,omitempty"`
	}

	MarkRequest struct {
		EntryID        string         `json:"entry_id" validate:"required"`
		RoutineID      string         `json:"parent_routine_id" validate:"required"`
		FacultyID      string         `json:"faculty_id"`
		Status         routine.Status `json:"status" validate:"required,oneof=pending taken missed handover"`
		Date           string         `json:"date" validate:"required,datetime=2006-01-02"`
		AbsentStudents []string       `json:"absent_students" validate:"max=500"`
	}

	// Statistics aggregates the resolved statuses of a faculty member's classes over a date range.
	Statistics struct {
		FacultyID            string            `json:"faculty_id"`
		StartDate            string            `json:"start_date"`
		EndDate              string            `json:"end_date"`
		TotalClasses         int               `json:"total_classes"`
		TakenClasses         int               `json:"taken_classes"`
		MissedClasses        int               `json:"missed_classes"`
		HandoverClasses      int               `json:"handover_classes"`
		PendingClasses       int               `json:"pending_classes"`
		AttendancePercentage int               `json:"attendance_percentage"`
		PerClassBreakdown    []ClassStatistics `json:"per_class_breakdown"`
	}

	ClassStatistics struct {
		EntryID              string `json:"entry_id"`
		RoutineID            string `json:"routine_id"`
		Subject              string `json:"subject"`
		Course               string `json:"course"`
		Day                  string `json:"day"`
		TimeSlot             string `json:"time_slot"`
		TotalClasses         int    `json:"total_classes"`
		TakenClasses         int    `json:"taken_classes"`
		MissedClasses        int    `json:"missed_classes"`
		HandoverClasses      int    `json:"handover_classes"`
		PendingClasses       int    `json:"pending_classes"`
		AttendancePercentage int    `json:"attendance_percentage"`
	}
)

func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias(e), routine.FormatDate(e.Date)})
}

func (a Absence) MarshalJSON() ([]byte, error) {
	type alias Absence
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias(a), routine.FormatDate(a.Date)})
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	mr.EntryID = routine.NormalizeID(mr.EntryID)
	mr.RoutineID = routine.NormalizeID(mr.RoutineID)
	mr.FacultyID = core.CleanString(mr.FacultyID)
	mr.Status = routine.Status(core.CleanString(string(mr.Status), true /* lower */))
	mr.Date = core.CleanString(mr.Date)
	mr.AbsentStudents = core.CleanStrings(mr.AbsentStudents)
	return validate.Struct(mr)
}

// Percentage is round_half_up(taken / total * 100), 0 when total is 0.
func Percentage(taken, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*taken + total) / (2 * total)
}

type counters struct {
	total, taken, missed, handover, pending int
}

func (c *counters) add(status routine.Status) {
	c.total++
	switch status {
	case routine.StatusTaken:
		c.taken++
	case routine.StatusMissed:
		c.missed++
	case routine.StatusHandover:
		c.handover++
	default:
		c.pending++
	}
}
