package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t1.Add(24 * time.Hour)
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestAverageRoundsHalfUp(t *testing.T) {
	cases := []struct{ partial, final, want string }{
		{"14", "16", "15.2"},
		{"20", "20", "20"},
		{"0", "0", "0"},
		{"10.01", "10.02", "10.02"},
		{"12.33", "12.34", "12.34"},
		{"0.01", "0.02", "0.02"},
		{"11.11", "11.12", "11.12"},
		{"0.05", "0.05", "0.05"},
		{"0.0125", "0.0125", "0.01"},
	}
	for _, tc := range cases {
		got := Average(dec(tc.partial), dec(tc.final))
		assert.True(t, got.Equal(dec(tc.want)), "avg(%s,%s) = %s, want %s", tc.partial, tc.final, got, tc.want)
	}
	// exact half rounds up
	assert.True(t, Average(dec("0.0125"), dec("0.0")).Equal(dec("0.01")))
	assert.True(t, Average(dec("0"), dec("0.0125")).Equal(dec("0.01")))
	assert.True(t, Average(dec("0.025"), dec("0.025")).Equal(dec("0.03")))
}

func TestDeriveFromGrades(t *testing.T) {
	both := DeriveFromGrades(decimal.NewNullDecimal(dec("14")), decimal.NewNullDecimal(dec("16")), nil, t1)
	assert.Equal(t, models.EnrollmentStatusCompleted, both.Status)
	assert.True(t, both.Average.Decimal.Equal(dec("15.20")))
	require.NotNil(t, both.CompletedAt)
	assert.Equal(t, t1, *both.CompletedAt)

	sticky := DeriveFromGrades(decimal.NewNullDecimal(dec("18")), decimal.NewNullDecimal(dec("16")), &t0, t2)
	assert.Equal(t, t0, *sticky.CompletedAt)

	one := DeriveFromGrades(decimal.NullDecimal{}, decimal.NewNullDecimal(dec("16")), &t0, t2)
	assert.Equal(t, models.EnrollmentStatusInProgress, one.Status)
	assert.False(t, one.Average.Valid)
	assert.Nil(t, one.CompletedAt)

	none := DeriveFromGrades(decimal.NullDecimal{}, decimal.NullDecimal{}, &t0, t2)
	assert.Equal(t, models.EnrollmentStatusEnrolled, none.Status)
	assert.Nil(t, none.CompletedAt)
}

func TestNormalizeGrade(t *testing.T) {
	g, err := NormalizeGrade("partial_grade", decimal.NewNullDecimal(dec("14.005")))
	require.NoError(t, err)
	assert.Equal(t, "14.01", g.Decimal.StringFixed(2))

	_, err = NormalizeGrade("final_grade", decimal.NewNullDecimal(dec("20.01")))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 422, appErr.Status)
	assert.Equal(t, "final_grade", appErr.Details[0].Field)

	_, err = NormalizeGrade("final_grade", decimal.NewNullDecimal(dec("-0.01")))
	assert.Error(t, err)

	_, err = NormalizeGrade("final_grade", decimal.NewNullDecimal(dec("20.004")))
	assert.NoError(t, err)

	g, err = NormalizeGrade("final_grade", decimal.NullDecimal{})
	require.NoError(t, err)
	assert.False(t, g.Valid)
}

func TestRequestApproveGradeScenario(t *testing.T) {
	e := NewRequest("stu-1", "course-7", t0)
	assert.Equal(t, models.EnrollmentStatusPending, e.Status)
	require.NotNil(t, e.RequestedAt)

	require.NoError(t, Approve(e, t1))
	assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
	assert.Equal(t, t1, *e.EnrolledAt)

	evt, err := Apply(e, Update{PartialGrade: models.GradeOf("14.00")}, t1)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEventGraded, evt)
	assert.Equal(t, models.EnrollmentStatusInProgress, e.Status)
	assert.False(t, e.Average.Valid)

	_, err = Apply(e, Update{FinalGrade: models.GradeOf("16.00")}, t2)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Equal(t, "15.20", e.Average.Decimal.StringFixed(2))
	assert.Equal(t, "14.00", e.PartialGrade.Decimal.StringFixed(2))
	require.NotNil(t, e.CompletedAt)
	assert.Equal(t, t2, *e.CompletedAt)

	// Revising a grade while still complete keeps the first completion time.
	_, err = Apply(e, Update{FinalGrade: models.GradeOf("18")}, t2.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t2, *e.CompletedAt)
	assert.Equal(t, "16.40", e.Average.Decimal.StringFixed(2))

	// Clearing a grade drops back to in_progress and clears derived fields.
	_, err = Apply(e, Update{PartialGrade: models.ClearedGrade()}, t2)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusInProgress, e.Status)
	assert.False(t, e.Average.Valid)
	assert.Nil(t, e.CompletedAt)

	_, err = Apply(e, Update{FinalGrade: models.ClearedGrade()}, t2)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
}

func TestApproveAndRejectOnlyFromPending(t *testing.T) {
	e := NewDirect("stu-1", "course-1", t0)
	err := Approve(e, t1)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	err = Reject(e, nil)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	pending := NewRequest("stu-1", "course-1", t0)
	blank := "   "
	require.NoError(t, Reject(pending, &blank))
	assert.Equal(t, models.EnrollmentStatusRejected, pending.Status)
	assert.Equal(t, DefaultRejectionReason, *pending.RejectionReason)

	again := NewRequest("stu-1", "course-2", t0)
	reason := " course is full "
	require.NoError(t, Reject(again, &reason))
	assert.Equal(t, "course is full", *again.RejectionReason)
}

func TestAbandonWinsOverGrades(t *testing.T) {
	e := NewDirect("stu-1", "course-1", t0)
	evt, err := Apply(e, Update{PartialGrade: models.GradeOf("12"), FinalGrade: models.GradeOf("13"), Abandon: true}, t1)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEventAbandoned, evt)
	assert.Equal(t, models.EnrollmentStatusAbandoned, e.Status)
	assert.True(t, e.PartialGrade.Valid)
	assert.True(t, e.FinalGrade.Valid)
	assert.False(t, e.Average.Valid)
	assert.Nil(t, e.CompletedAt)
}

func TestAbandonFromAnyStatusButRejected(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusPending,
		models.EnrollmentStatusEnrolled,
		models.EnrollmentStatusInProgress,
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusAbandoned,
	} {
		e := &models.Enrollment{Status: status, CompletedAt: &t0}
		_, err := Apply(e, Update{Abandon: true}, t1)
		require.NoError(t, err, status)
		assert.Equal(t, models.EnrollmentStatusAbandoned, e.Status)
	}

	rejected := &models.Enrollment{Status: models.EnrollmentStatusRejected}
	_, err := Apply(rejected, Update{Abandon: true}, t1)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	assert.Equal(t, models.EnrollmentStatusRejected, rejected.Status)
}

func TestGradingRequiresGradableStatus(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusPending,
		models.EnrollmentStatusRejected,
		models.EnrollmentStatusAbandoned,
	} {
		e := &models.Enrollment{Status: status}
		_, err := Apply(e, Update{PartialGrade: models.GradeOf("10")}, t1)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidState), status)
		assert.False(t, e.PartialGrade.Valid)
		assert.Equal(t, status, e.Status)
	}
}

func TestApplyLeavesRecordUntouchedOnInvalidGrade(t *testing.T) {
	e := NewDirect("stu-1", "course-1", t0)
	_, err := Apply(e, Update{PartialGrade: models.GradeOf("15"), FinalGrade: models.GradeOf("25")}, t1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.False(t, e.PartialGrade.Valid)
	assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
}

func TestApplyRequiresSomething(t *testing.T) {
	e := NewDirect("stu-1", "course-1", t0)
	_, err := Apply(e, Update{}, t1)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCanCancel(t *testing.T) {
	assert.NoError(t, CanCancel(models.RoleStudent, models.EnrollmentStatusPending))
	assert.NoError(t, CanCancel(models.RoleStudent, models.EnrollmentStatusEnrolled))
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusInProgress,
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusAbandoned,
		models.EnrollmentStatusRejected,
	} {
		assert.True(t, errors.Is(CanCancel(models.RoleStudent, status), appErrors.ErrInvalidState), status)
		assert.NoError(t, CanCancel(models.RoleAdmin, status))
	}
	assert.True(t, errors.Is(CanCancel(models.RoleInstructor, models.EnrollmentStatusPending), appErrors.ErrForbidden))
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.EnrollmentStatusPending, models.EnrollmentStatusEnrolled))
	assert.False(t, CanTransition(models.EnrollmentStatusPending, models.EnrollmentStatusCompleted))
	assert.False(t, CanTransition(models.EnrollmentStatusRejected, models.EnrollmentStatusEnrolled))
	assert.Empty(t, AllowedTransitions(models.EnrollmentStatusAbandoned))
	assert.Len(t, AllowedTransitions(models.EnrollmentStatusEnrolled), 3)
}
