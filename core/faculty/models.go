package faculty

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

// Roles
const (
	RoleFaculty = "faculty:"
	RoleHead    = "head:" // department head
)

var AllRoles = []string{RoleFaculty, RoleHead}

type Faculty struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Subjects   []string  `json:"subjects"`
	Roles      []string  `json:"roles"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (f Faculty) HasRole(role string) bool {
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (f Faculty) IsHead() bool {
	return f.HasRole(RoleHead)
}

// CanTeach reports whether subject is one of the member's subjects. An empty subject matches anyone.
func (f Faculty) CanTeach(subject string) bool {
	subject = core.CleanString(subject, true /* lower */)
	if subject == "" {
		return true
	}
	for _, s := range f.Subjects {
		if strings.ToLower(s) == subject {
			return true
		}
	}
	return false
}

type NewFaculty struct {
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Department string   `json:"department"`
	Subjects   []string `json:"subjects"`
	Head       bool     `json:"head"`
}

func (nf *NewFaculty) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Email = core.CleanString(nf.Email, true /* lower */)
	nf.Department = core.CleanString(nf.Department)
	nf.Subjects = core.CleanStrings(nf.Subjects)
	return validate.Struct(nf)
}

type QueryFilter struct {
	Department string `query:"department"`
	Subject    string `query:"subject"`
	Role       string `query:"role"`
	ActiveOnly bool   `query:"active"`
}

func (f *QueryFilter) Clean() {
	f.Department = core.CleanString(f.Department)
	f.Subject = core.CleanString(f.Subject)
	f.Role = core.CleanString(f.Role, true /* lower */)
}

// Match applies the filter in memory.
func (f QueryFilter) Match(fac Faculty) bool {
	if f.ActiveOnly && !fac.IsActive {
		return false
	}
	if f.Department != "" && !strings.EqualFold(f.Department, fac.Department) {
		return false
	}
	if f.Subject != "" && !fac.CanTeach(f.Subject) {
		return false
	}
	if f.Role != "" && !fac.HasRole(f.Role) {
		return false
	}
	return true
}
