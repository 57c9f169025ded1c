package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// GradeScale is the number of fractional digits kept for grades and averages.
const GradeScale = 2

var (
	MinGrade = decimal.Zero
	MaxGrade = decimal.NewFromInt(20)

	partialWeight = decimal.RequireFromString("0.4")
	finalWeight   = decimal.RequireFromString("0.6")
)

// Average is partial*0.4 + final*0.6 rounded half-up to two places.
func Average(partial, final decimal.Decimal) decimal.Decimal {
	return partial.Mul(partialWeight).Add(final.Mul(finalWeight)).Round(GradeScale)
}

// Derived is the state implied by a pair of grades.
type Derived struct {
	Status      models.EnrollmentStatus
	Average     decimal.NullDecimal
	CompletedAt *time.Time
}

// DeriveFromGrades computes status, average and completion time from the
// resulting grade pair alone. A previous completion time is kept so the first
// completion stays sticky while the enrollment remains complete.
func DeriveFromGrades(partial, final decimal.NullDecimal, previousCompletedAt *time.Time, now time.Time) Derived {
	switch {
	case partial.Valid && final.Valid:
		completedAt := previousCompletedAt
		if completedAt == nil {
			ts := now
			completedAt = &ts
		}
		return Derived{
			Status:      models.EnrollmentStatusCompleted,
			Average:     decimal.NewNullDecimal(Average(partial.Decimal, final.Decimal)),
			CompletedAt: completedAt,
		}
	case partial.Valid || final.Valid:
		return Derived{Status: models.EnrollmentStatusInProgress}
	default:
		return Derived{Status: models.EnrollmentStatusEnrolled}
	}
}

// NormalizeGrade rounds a grade to two places and checks the [0, 20] range.
// Invalid (null) grades pass through untouched.
func NormalizeGrade(field string, grade decimal.NullDecimal) (decimal.NullDecimal, error) {
	if !grade.Valid {
		return grade, nil
	}
	rounded := grade.Decimal.Round(GradeScale)
	if rounded.LessThan(MinGrade) || rounded.GreaterThan(MaxGrade) {
		return decimal.NullDecimal{}, appErrors.InvalidField(field, "range", "must be between 0 and 20")
	}
	return decimal.NewNullDecimal(rounded), nil
}
