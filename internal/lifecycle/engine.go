package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// DefaultRejectionReason is stored when an administrator rejects without a reason.
const DefaultRejectionReason = "Request rejected by an administrator"

// NewRequest builds a pending enrollment for a student self-request.
func NewRequest(studentID, courseID string, now time.Time) *models.Enrollment {
	ts := now
	return &models.Enrollment{
		StudentID:   studentID,
		CourseID:    courseID,
		Status:      models.EnrollmentStatusPending,
		RequestedAt: &ts,
	}
}

// NewDirect builds an enrollment created by an administrator, skipping approval.
func NewDirect(studentID, courseID string, now time.Time) *models.Enrollment {
	ts := now
	return &models.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     models.EnrollmentStatusEnrolled,
		EnrolledAt: &ts,
	}
}

// Approve moves a pending request to enrolled.
func Approve(e *models.Enrollment, now time.Time) error {
	if e.Status != models.EnrollmentStatusPending {
		return alreadyProcessed(e.Status)
	}
	ts := now
	e.Status = models.EnrollmentStatusEnrolled
	e.EnrolledAt = &ts
	return nil
}

// Reject closes a pending request. A blank reason falls back to the default text.
func Reject(e *models.Enrollment, reason *string) error {
	if e.Status != models.EnrollmentStatusPending {
		return alreadyProcessed(e.Status)
	}
	text := DefaultRejectionReason
	if reason != nil && strings.TrimSpace(*reason) != "" {
		text = strings.TrimSpace(*reason)
	}
	e.Status = models.EnrollmentStatusRejected
	e.RejectionReason = &text
	return nil
}

// Update is the typed command behind PUT /enrollments/{id}.
type Update struct {
	PartialGrade models.OptionalGrade
	FinalGrade   models.OptionalGrade
	Abandon      bool
}

// TouchesGrades reports whether either grade field was supplied.
func (u Update) TouchesGrades() bool {
	return u.PartialGrade.Set || u.FinalGrade.Set
}

// Apply validates u and mutates e in place. Abandonment wins over grade
// derivation; grades sent together with it are still stored. The returned
// event type names the transition that happened.
func Apply(e *models.Enrollment, u Update, now time.Time) (models.EnrollmentEventType, error) {
	if !u.TouchesGrades() && !u.Abandon {
		return "", appErrors.Validation(nil, "no changes supplied",
			appErrors.FieldError{Field: "partial_grade", Message: "partial_grade, final_grade or abandoned is required", Rule: "required_without_all"})
	}

	partial, final := e.PartialGrade, e.FinalGrade
	if u.PartialGrade.Set {
		g, err := NormalizeGrade("partial_grade", u.PartialGrade.Value)
		if err != nil {
			return "", err
		}
		partial = g
	}
	if u.FinalGrade.Set {
		g, err := NormalizeGrade("final_grade", u.FinalGrade.Value)
		if err != nil {
			return "", err
		}
		final = g
	}

	if u.Abandon {
		if e.Status != models.EnrollmentStatusAbandoned && !CanTransition(e.Status, models.EnrollmentStatusAbandoned) {
			return "", invalidState(fmt.Sprintf("a %s enrollment cannot be abandoned", e.Status))
		}
		e.PartialGrade, e.FinalGrade = partial, final
		e.Status = models.EnrollmentStatusAbandoned
		e.Average.Valid = false
		e.CompletedAt = nil
		return models.EnrollmentEventAbandoned, nil
	}

	if !Gradable(e.Status) {
		return "", invalidState(fmt.Sprintf("grades cannot be recorded for a %s enrollment", e.Status))
	}
	derived := DeriveFromGrades(partial, final, completedAtIfComplete(e), now)
	if derived.Status != e.Status && !CanTransition(e.Status, derived.Status) {
		return "", invalidState(fmt.Sprintf("cannot move from %s to %s", e.Status, derived.Status))
	}

	e.PartialGrade, e.FinalGrade = partial, final
	e.Status = derived.Status
	e.Average = derived.Average
	e.CompletedAt = derived.CompletedAt
	return models.EnrollmentEventGraded, nil
}

// CanCancel checks the state half of a cancellation. Ownership is decided by
// the policy package before this is consulted.
func CanCancel(role models.Role, status models.EnrollmentStatus) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if studentCancellable[status] {
			return nil
		}
		return invalidState(fmt.Sprintf("a %s enrollment can no longer be cancelled", status))
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to cancel enrollments")
	}
}

func completedAtIfComplete(e *models.Enrollment) *time.Time {
	if e.Status != models.EnrollmentStatusCompleted {
		return nil
	}
	return e.CompletedAt
}

func alreadyProcessed(status models.EnrollmentStatus) error {
	return invalidState(fmt.Sprintf("request has already been processed (status %s)", status))
}

func invalidState(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidState, message)
}
