package routine

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

var (
	weekdayTag  = "weekday"
	weekdayText = "must be a day of the week"

	timeSlotTag  = "timeslot"
	timeSlotText = "must be a time slot such as 10:00-10:50"
)

type (
	NewEntry struct {
		Day      string `json:"day" validate:"required,weekday"`
		TimeSlot string `json:"time_slot" validate:"required,timeslot"`
		Subject  string `json:"subject" validate:"required"`
		Course   string `json:"course"`
		Room     string `json:"room"`
	}

	NewRoutine struct {
		FacultyID string     `json:"faculty_id"`
		StartDate string     `json:"start_date" validate:"required,datetime=2006-01-02"`
		EndDate   string     `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
		Entries   []NewEntry `json:"entries" validate:"required,min=1,dive"`
	}
)

func (ne NewEntry) entry() Entry {
	day := ne.Day
	if wd, ok := ParseWeekday(day); ok {
		day = wd.String()
	}
	return Entry{
		Day:      day,
		TimeSlot: ne.TimeSlot,
		Subject:  ne.Subject,
		Course:   ne.Course,
		Room:     ne.Room,
		Status:   StatusPending,
	}
}

func (nr *NewRoutine) clean() {
	nr.FacultyID = core.CleanString(nr.FacultyID)
	nr.StartDate = core.CleanString(nr.StartDate)
	nr.EndDate = core.CleanString(nr.EndDate)
	for i := range nr.Entries {
		e := &nr.Entries[i]
		e.Day = core.CleanString(e.Day)
		e.TimeSlot = core.CleanString(e.TimeSlot)
		e.Subject = core.CleanString(e.Subject)
		e.Course = core.CleanString(e.Course)
		e.Room = core.CleanString(e.Room)
	}
}

func (nr *NewRoutine) Validate(validate *validator.Validate) error {
	nr.clean()
	return validate.Struct(nr)
}

// InitValidators registers the routine validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)

	_ = validate.RegisterValidation(timeSlotTag, timeSlotValidation)
	core.RegisterCustomTranslation(validate, translator, timeSlotTag, timeSlotText)
}

func weekdayValidation(fl validator.FieldLevel) bool {
	_, ok := ParseWeekday(fl.Field().String())
	return ok
}

func timeSlotValidation(fl validator.FieldLevel) bool {
	return IsValidSlot(fl.Field().String())
}
