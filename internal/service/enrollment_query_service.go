package service

import (
	"context"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/policy"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type enrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListPending(ctx context.Context) ([]models.EnrollmentDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

type availableCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ListAvailableForStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error)
}

// EnrollmentQueryService serves the role-scoped read side of enrollments.
type EnrollmentQueryService struct {
	enrollments enrollmentReader
	courses     availableCourseReader
}

// NewEnrollmentQueryService constructs the service.
func NewEnrollmentQueryService(enrollments enrollmentReader, courses availableCourseReader) *EnrollmentQueryService {
	return &EnrollmentQueryService{enrollments: enrollments, courses: courses}
}

// List returns the enrollments visible to the actor.
func (s *EnrollmentQueryService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	scope, err := policy.ListScope(actor, policy.ActionEnrollmentList)
	if err != nil {
		return nil, nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.InvalidField("status", "oneof", "must be one of: pending enrolled in_progress completed abandoned rejected")
	}
	switch scope.Kind {
	case policy.ScopeInstructor:
		filter.InstructorID = scope.OwnerID
	case policy.ScopeStudent:
		filter.StudentID = scope.OwnerID
	}

	items, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// AvailableCourses lists the courses the student has no enrollment row for.
func (s *EnrollmentQueryService) AvailableCourses(ctx context.Context, actor models.Actor) ([]models.CourseDetail, error) {
	if err := policy.Authorize(actor, policy.ActionAvailableCourses, policy.Target{}); err != nil {
		return nil, err
	}
	courses, err := s.courses.ListAvailableForStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	return courses, nil
}

// PendingRequests lists every pending request, newest first.
func (s *EnrollmentQueryService) PendingRequests(ctx context.Context, actor models.Actor) ([]models.EnrollmentDetail, error) {
	if err := policy.Authorize(actor, policy.ActionPendingRequests, policy.Target{}); err != nil {
		return nil, err
	}
	items, err := s.enrollments.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

// Roster returns a course together with all of its enrollments.
func (s *EnrollmentQueryService) Roster(ctx context.Context, actor models.Actor, courseID string) (*models.CourseDetail, []models.EnrollmentDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, nil, storageError(err, "course not found", "failed to load course")
	}
	if err := policy.Authorize(actor, policy.ActionCourseRoster, policy.Target{CourseInstructorID: course.InstructorID}); err != nil {
		return nil, nil, err
	}
	items, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return course, items, nil
}
