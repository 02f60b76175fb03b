package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
)

const facultyColumns = "id, name, email, department, subjects, roles, is_active, created_at, updated_at"

type facultyRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Email      string         `db:"email"`
	Department string         `db:"department"`
	Subjects   pq.StringArray `db:"subjects"`
	Roles      pq.StringArray `db:"roles"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r facultyRow) toFaculty() faculty.Faculty {
	return faculty.Faculty{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Department: r.Department,
		Subjects:   []string(r.Subjects),
		Roles:      []string(r.Roles),
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type facultyRepository struct {
	db *sqlx.DB
}

func NewFacultyRepository(db *sqlx.DB) faculty.Repository {
	return &facultyRepository{db: db}
}

func (repo facultyRepository) get(ctx context.Context, cond string, arg interface{}) (faculty.Faculty, error) {
	var row facultyRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row, "SELECT "+facultyColumns+" FROM faculty WHERE "+cond, arg)
	if isNoRows(err) {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	if err != nil {
		return faculty.Faculty{}, core.NewStorageError("getting faculty", err)
	}
	return row.toFaculty(), nil
}

func (repo facultyRepository) CreateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	fac.ID = uuid.NewString()
	if fac.Subjects == nil {
		fac.Subjects = []string{}
	}
	_, err := executor(ctx, repo.db).ExecContext(ctx,
		`INSERT INTO faculty (`+facultyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fac.ID, fac.Name, fac.Email, fac.Department, pq.Array(fac.Subjects), pq.Array(fac.Roles),
		fac.IsActive, fac.CreatedAt, fac.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return faculty.Faculty{}, faculty.ErrEmailExists
	}
	if err != nil {
		return faculty.Faculty{}, core.NewStorageError("creating faculty", err)
	}
	return fac, nil
}

func (repo facultyRepository) GetFacultyByID(ctx context.Context, id string) (faculty.Faculty, error) {
	return repo.get(ctx, "id = $1", id)
}

func (repo facultyRepository) GetFacultyByEmail(ctx context.Context, email string) (faculty.Faculty, error) {
	return repo.get(ctx, "lower(email) = lower($1)", email)
}

func (repo facultyRepository) QueryFaculty(ctx context.Context, filter faculty.QueryFilter) ([]faculty.Faculty, error) {
	var w where
	if filter.ActiveOnly {
		w.add("is_active = ?", true)
	}
	if filter.Department != "" {
		w.add("lower(department) = lower(?)", filter.Department)
	}
	if filter.Role != "" {
		w.add("? = ANY(roles)", filter.Role)
	}

	var rows []facultyRow
	q := "SELECT " + facultyColumns + " FROM faculty" + w.String() + " ORDER BY name, id"
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, core.NewStorageError("querying faculty", err)
	}

	members := make([]faculty.Faculty, 0, len(rows))
	for _, r := range rows {
		fac := r.toFaculty()
		if filter.Match(fac) { // subject matching is case-insensitive over an array
			members = append(members, fac)
		}
	}
	return members, nil
}

func (repo facultyRepository) UpdateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	if fac.Subjects == nil {
		fac.Subjects = []string{}
	}
	var row facultyRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		`UPDATE faculty
		SET name = $2, email = $3, department = $4, subjects = $5, roles = $6, is_active = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+facultyColumns,
		fac.ID, fac.Name, fac.Email, fac.Department, pq.Array(fac.Subjects), pq.Array(fac.Roles),
		fac.IsActive, fac.UpdatedAt,
	)
	switch {
	case isNoRows(err):
		return faculty.Faculty{}, faculty.ErrNotFound
	case isUniqueViolation(err):
		return faculty.Faculty{}, faculty.ErrEmailExists
	case err != nil:
		return faculty.Faculty{}, core.NewStorageError("updating faculty", err)
	}
	return row.toFaculty(), nil
}
