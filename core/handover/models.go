package handover

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Request asks for a substitute to take one class on one date.
type Request struct {
	ID             string     `json:"id"`
	FacultyID      string     `json:"faculty_id"`
	FacultyName    string     `json:"faculty_name"`
	SubstituteID   string     `json:"substitute_id"`
	SubstituteName string     `json:"substitute_name"`
	RoutineID      string     `json:"routine_id"`
	ClassID        string     `json:"class_id"`
	DateOfClass    time.Time  `json:"date_of_class"`
	TimeSlot       string     `json:"time_slot"`
	Subject        string     `json:"subject"`
	Course         string     `json:"course"`
	RoomNo         string     `json:"room_no"`
	Reason         string     `json:"reason"`
	Status         Status     `json:"status"`
	Remarks        string     `json:"remarks"`
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecidedByName  string     `json:"decided_by_name,omitempty"`
	DecidedAt      *time.Time `json:"decided_at"`
	PropagatedAt   *time.Time `json:"propagated_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	return json.Marshal(struct {
		alias
		DateOfClass string `json:"date_of_class"`
	}{alias(r), routine.FormatDate(r.DateOfClass)})
}

// IsParty reports whether facultyID requested the handover or is its substitute.
func (r Request) IsParty(facultyID string) bool {
	return r.FacultyID == facultyID || r.SubstituteID == facultyID
}

// IsOrphaned reports an approval whose schedule propagation has not completed.
func (r Request) IsOrphaned() bool {
	return r.Status == StatusApproved && r.PropagatedAt == nil
}

type NewRequest struct {
	SubstituteID string `json:"substitute_id" validate:"required"`
	RoutineID    string `json:"routine_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
	DateOfClass  string `json:"date_of_class" validate:"required,datetime=2006-01-02"`
	// optional, taken from the class when empty
	TimeSlot string `json:"time_slot" validate:"omitempty,timeslot"`
	Subject  string `json:"subject"`
	Course   string `json:"course"`
	RoomNo   string `json:"room_no"`
	Reason   string `json:"reason" validate:"max=500"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.SubstituteID = core.CleanString(nr.SubstituteID)
	nr.RoutineID = routine.NormalizeID(nr.RoutineID)
	nr.ClassID = routine.NormalizeID(nr.ClassID)
	nr.DateOfClass = core.CleanString(nr.DateOfClass)
	nr.TimeSlot = core.CleanString(nr.TimeSlot)
	nr.Subject = core.CleanString(nr.Subject)
	nr.Course = core.CleanString(nr.Course)
	nr.RoomNo = core.CleanString(nr.RoomNo)
	nr.Reason = core.CleanString(nr.Reason)
	return validate.Struct(nr)
}

// Decision approves or rejects a pending request.
type Decision struct {
	Status  Status `json:"status" validate:"required,oneof=Approved Rejected"`
	Remarks string `json:"remarks" validate:"max=500"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Remarks = core.CleanString(d.Remarks)
	return validate.Struct(d)
}

type QueryFilter struct {
	FacultyID    string    // requester
	SubstituteID string    // substitute
	Party        string    // requester or substitute
	Status       Status    // any when empty
	Date         time.Time // any when zero
	Unpropagated bool      // only requests without PropagatedAt
}

// Match applies the filter in memory.
func (f QueryFilter) Match(r Request) bool {
	if f.FacultyID != "" && r.FacultyID != f.FacultyID {
		return false
	}
	if f.SubstituteID != "" && r.SubstituteID != f.SubstituteID {
		return false
	}
	if f.Party != "" && !r.IsParty(f.Party) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.Date.IsZero() && !routine.CalendarDay(f.Date).Equal(routine.CalendarDay(r.DateOfClass)) {
		return false
	}
	if f.Unpropagated && r.PropagatedAt != nil {
		return false
	}
	return true
}
