package models

import "time"

// Course is a catalogue entry owned by one instructor.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description,omitempty"`
	DurationHours int       `db:"duration_hours" json:"duration_hours"`
	InstructorID  string    `db:"instructor_id" json:"instructor_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with the instructor's display name.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	InstructorID string
	Search       string
	Page         int
	PageSize     int
}
