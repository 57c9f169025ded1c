package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

var courseRowColumns = []string{"id", "name", "description", "duration_hours", "instructor_id", "created_at", "updated_at", "instructor_name"}

func TestCourseRepositoryListOrdersByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseRowColumns).
		AddRow("c-1", "Algebra", nil, 40, "inst-1", now, now, "Grace Hopper").
		AddRow("c-2", "Biology", "Cells", 30, "inst-1", now, now, "Grace Hopper")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.instructor_id = $1 ORDER BY c.name ASC LIMIT 20 OFFSET 0")).
		WithArgs("inst-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses c")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{InstructorID: "inst-1"})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, 2, total)
	assert.Nil(t, courses[0].Description)
	require.NotNil(t, courses[1].Description)
	assert.Equal(t, "Cells", *courses[1].Description)
	assert.Equal(t, "Grace Hopper", courses[0].InstructorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE name = $1 AND id <> $2 LIMIT 1")).
		WithArgs("Algebra", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE name = $1 LIMIT 1")).
		WithArgs("Algebra").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "Algebra", "c-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByName(context.Background(), "Algebra", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").WillReturnError(&pq.Error{Code: "23505", Constraint: "courses_name_key"})

	err := repo.Create(context.Background(), &models.Course{Name: "Algebra", DurationHours: 10, InstructorID: "inst-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Course{ID: "c-404", Name: "X", DurationHours: 1, InstructorID: "inst-1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE course_id = $1")).WithArgs("c-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).WithArgs("c-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "c-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListAvailableForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $1)")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).AddRow("c-3", "Chemistry", nil, 20, "inst-2", now, now, "Marie Curie"))

	courses, err := repo.ListAvailableForStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Chemistry", courses[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryMalformedIDIsNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)
	badUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "7"`}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).WithArgs("7").WillReturnError(badUUID)
	_, err := repo.FindByID(context.Background(), "7")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE course_id = $1")).WithArgs("7").WillReturnError(badUUID)
	mock.ExpectRollback()
	err = repo.Delete(context.Background(), "7")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}
