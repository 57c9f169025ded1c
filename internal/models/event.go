package models

import "time"

// EnrollmentEventType names a committed lifecycle transition.
type EnrollmentEventType string

const (
	EnrollmentEventRequested EnrollmentEventType = "enrollment.requested"
	EnrollmentEventEnrolled  EnrollmentEventType = "enrollment.enrolled"
	EnrollmentEventApproved  EnrollmentEventType = "enrollment.approved"
	EnrollmentEventRejected  EnrollmentEventType = "enrollment.rejected"
	EnrollmentEventGraded    EnrollmentEventType = "enrollment.graded"
	EnrollmentEventAbandoned EnrollmentEventType = "enrollment.abandoned"
	EnrollmentEventCancelled EnrollmentEventType = "enrollment.cancelled"
)

// EnrollmentEvent is published after an enrollment transition commits.
type EnrollmentEvent struct {
	ID           string              `json:"id"`
	Type         EnrollmentEventType `json:"type"`
	EnrollmentID string              `json:"enrollment_id"`
	StudentID    string              `json:"student_id"`
	CourseID     string              `json:"course_id"`
	Status       EnrollmentStatus    `json:"status"`
	ActorID      string              `json:"actor_id"`
	ActorRole    Role                `json:"actor_role"`
	OccurredAt   time.Time           `json:"occurred_at"`
}
