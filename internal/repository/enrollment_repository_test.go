package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

var enrollmentRowColumns = []string{
	"id", "student_id", "course_id", "status", "partial_grade", "final_grade", "average",
	"requested_at", "enrolled_at", "completed_at", "rejection_reason", "created_at", "updated_at",
	"course_name", "student_name", "student_email", "instructor_id", "instructor_name",
}

func enrollmentRow(rows *sqlmock.Rows, id string, status models.EnrollmentStatus, partial interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "stu-1", "c-1", string(status), partial, nil, nil,
		now, now, nil, nil, now, now,
		"Algebra", "Alan Turing", "alan@example.com", "inst-1", "Grace Hopper")
}

func TestEnrollmentRepositoryListScopedToInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.instructor_id = $1 AND e.status = $2 ORDER BY e.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("inst-1", models.EnrollmentStatusInProgress).
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusInProgress, "14.00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("inst-1", models.EnrollmentStatusInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{InstructorID: "inst-1", Status: models.EnrollmentStatusInProgress})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.True(t, items[0].PartialGrade.Valid)
	assert.Equal(t, "14.00", items[0].PartialGrade.Decimal.StringFixed(2))
	assert.False(t, items[0].FinalGrade.Valid)
	assert.Equal(t, "inst-1", items[0].InstructorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicatePair(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", CourseID: "c-1", Status: models.EnrollmentStatusPending})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsForPair(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1")).
		WithArgs("stu-1", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForPair(context.Background(), "stu-1", "c-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMutateLocksAndUpdates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1 FOR UPDATE OF e")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusEnrolled, nil))
	mock.ExpectExec("UPDATE enrollments SET status = ").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Mutate(context.Background(), "enr-1", func(d *models.EnrollmentDetail) error {
		d.Status = models.EnrollmentStatusInProgress
		d.PartialGrade = decimal.NewNullDecimal(decimal.RequireFromString("12.5"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusInProgress, updated.Status)
	assert.Equal(t, "Algebra", updated.CourseName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMutateRollsBackOnCallbackError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	veto := errors.New("veto")
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusRejected, nil))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "enr-1", func(*models.EnrollmentDetail) error { return veto })
	assert.ErrorIs(t, err, veto)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMutateMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").WillReturnRows(sqlmock.NewRows(enrollmentRowColumns))
	mock.ExpectRollback()

	called := false
	_, err := repo.Mutate(context.Background(), "enr-404", func(*models.EnrollmentDetail) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMutateSerializationFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusPending, nil))
	mock.ExpectExec("UPDATE enrollments").WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "enr-1", func(d *models.EnrollmentDetail) error {
		d.Status = models.EnrollmentStatusEnrolled
		return nil
	})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteGuarded(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusPending, nil))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WithArgs("enr-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.DeleteGuarded(context.Background(), "enr-1", func(d *models.EnrollmentDetail) error {
		assert.Equal(t, models.EnrollmentStatusPending, d.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "enr-1", removed.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListPendingNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows(enrollmentRowColumns)
	enrollmentRow(rows, "enr-2", models.EnrollmentStatusPending, nil)
	enrollmentRow(rows, "enr-1", models.EnrollmentStatusPending, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.status = $1 ORDER BY e.requested_at DESC")).
		WithArgs(models.EnrollmentStatusPending).
		WillReturnRows(rows)

	items, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "enr-2", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMalformedIDIsNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	badUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).WithArgs("abc").WillReturnError(badUUID)
	_, err := repo.FindDetailByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectRollback()
	_, err = repo.Mutate(context.Background(), "abc", func(*models.EnrollmentDetail) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectRollback()
	_, err = repo.DeleteGuarded(context.Background(), "abc", func(*models.EnrollmentDetail) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListMalformedFilterIsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.course_id = $1")).
		WithArgs("7").
		WillReturnError(&pq.Error{Code: "22P02"})

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{CourseID: "7"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteGuardedConcurrentAbort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusPending, nil))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	_, err := repo.DeleteGuarded(context.Background(), "enr-1", func(*models.EnrollmentDetail) error { return nil })
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF e").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", models.EnrollmentStatusPending, nil))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40P01"})

	_, err = repo.DeleteGuarded(context.Background(), "enr-1", func(*models.EnrollmentDetail) error { return nil })
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
