// Package lifecycle holds the enrollment state machine. Everything here is a
// pure function of its inputs; persistence and authorization live elsewhere.
package lifecycle

import "github.com/noah-isme/course-enrollment-api/internal/models"

// transitions lists every status change the engine may perform. Self
// transitions produced by grade derivation are handled separately.
var transitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusPending: {
		models.EnrollmentStatusEnrolled,
		models.EnrollmentStatusRejected,
		models.EnrollmentStatusAbandoned,
	},
	models.EnrollmentStatusEnrolled: {
		models.EnrollmentStatusInProgress,
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusAbandoned,
	},
	models.EnrollmentStatusInProgress: {
		models.EnrollmentStatusEnrolled,
		models.EnrollmentStatusCompleted,
		models.EnrollmentStatusAbandoned,
	},
	// completed only leaves through grade revision or manual abandonment.
	models.EnrollmentStatusCompleted: {
		models.EnrollmentStatusEnrolled,
		models.EnrollmentStatusInProgress,
		models.EnrollmentStatusAbandoned,
	},
	models.EnrollmentStatusAbandoned: {},
	models.EnrollmentStatusRejected:  {},
}

// gradable are the statuses in which grades may be recorded.
var gradable = map[models.EnrollmentStatus]bool{
	models.EnrollmentStatusEnrolled:   true,
	models.EnrollmentStatusInProgress: true,
	models.EnrollmentStatusCompleted:  true,
}

// studentCancellable are the statuses a student may still withdraw from.
var studentCancellable = map[models.EnrollmentStatus]bool{
	models.EnrollmentStatusPending:  true,
	models.EnrollmentStatusEnrolled: true,
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to models.EnrollmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given one.
func AllowedTransitions(from models.EnrollmentStatus) []models.EnrollmentStatus {
	next := transitions[from]
	out := make([]models.EnrollmentStatus, len(next))
	copy(out, next)
	return out
}

// Gradable reports whether grades may be written in the given status.
func Gradable(status models.EnrollmentStatus) bool {
	return gradable[status]
}
