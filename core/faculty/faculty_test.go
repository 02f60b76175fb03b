package faculty_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/tests"
)

func TestFaculty_CanTeach(t *testing.T) {
	fac := faculty.Faculty{Subjects: []string{"Anatomy", "Physiology"}}

	tests := []struct {
		subject string
		want    bool
	}{
		{subject: "", want: true},
		{subject: "anatomy", want: true},
		{subject: "  PHYSIOLOGY ", want: true},
		{subject: "Surgery", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, fac.CanTeach(tt.subject))
		})
	}
}

func TestQueryFilter_Match(t *testing.T) {
	fac := faculty.Faculty{
		Department: "CSE",
		Subjects:   []string{"Networks"},
		Roles:      []string{faculty.RoleFaculty},
		IsActive:   false,
	}

	tests := []struct {
		name   string
		filter faculty.QueryFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "department", filter: faculty.QueryFilter{Department: "cse"}, want: true},
		{name: "other department", filter: faculty.QueryFilter{Department: "EEE"}},
		{name: "subject", filter: faculty.QueryFilter{Subject: "networks"}, want: true},
		{name: "role", filter: faculty.QueryFilter{Role: faculty.RoleHead}},
		{name: "active only", filter: faculty.QueryFilter{ActiveOnly: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(fac))
		})
	}
}

func TestService_UpdateOrCreate(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	created, err := env.Faculty.UpdateOrCreate(ctx, faculty.NewFaculty{Name: "Ada", Email: "ada@test.cd", Subjects: []string{"Anatomy"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsHead())
	assert.True(t, created.IsActive)

	_, err = env.Faculty.SetActive(ctx, created.ID, false)
	require.NoError(t, err)

	updated, err := env.Faculty.UpdateOrCreate(ctx, faculty.NewFaculty{Name: "Ada L.", Email: "ada@test.cd", Head: true})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.True(t, updated.IsHead())
	assert.True(t, updated.IsActive)

	active, err := env.Faculty.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
