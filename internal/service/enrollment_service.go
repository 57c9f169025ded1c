package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/lifecycle"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/policy"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type enrollmentRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForPair(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Mutate(ctx context.Context, id string, fn func(*models.EnrollmentDetail) error) (*models.EnrollmentDetail, error)
	DeleteGuarded(ctx context.Context, id string, fn func(*models.EnrollmentDetail) error) (*models.EnrollmentDetail, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type eventSink interface {
	Dispatch(ctx context.Context, evt models.EnrollmentEvent)
}

// CreateEnrollmentRequest is the payload for POST /enrollments. Students send
// only course_id; administrators also name the student.
type CreateEnrollmentRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	StudentID string `json:"student_id"`
}

// RejectEnrollmentRequest carries an optional rejection reason.
type RejectEnrollmentRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateEnrollmentRequest is the payload for PUT /enrollments/{id}. A grade
// key sent as null clears that grade.
type UpdateEnrollmentRequest struct {
	PartialGrade models.OptionalGrade `json:"partial_grade"`
	FinalGrade   models.OptionalGrade `json:"final_grade"`
	Abandoned    *bool                `json:"abandoned"`
}

func (r UpdateEnrollmentRequest) command() lifecycle.Update {
	return lifecycle.Update{
		PartialGrade: r.PartialGrade,
		FinalGrade:   r.FinalGrade,
		Abandon:      r.Abandoned != nil && *r.Abandoned,
	}
}

// EnrollmentService orchestrates lifecycle transitions. Every mutation runs
// inside a row lock so concurrent requests see each other's results.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseFinder
	users     userLookup
	events    eventSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the service. events and metrics may be nil.
func NewEnrollmentService(repo enrollmentRepository, courses courseFinder, users userLookup, events eventSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = appErrors.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		users:     users,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create routes to RequestEnrollment or DirectEnroll depending on whether a
// student is named in the payload.
func (s *EnrollmentService) Create(ctx context.Context, actor models.Actor, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if req.StudentID != "" {
		return s.DirectEnroll(ctx, actor, req.StudentID, req.CourseID)
	}
	return s.RequestEnrollment(ctx, actor, req.CourseID)
}

// RequestEnrollment records a pending self-request from a student.
func (s *EnrollmentService) RequestEnrollment(ctx context.Context, actor models.Actor, courseID string) (*models.EnrollmentDetail, error) {
	if err := policy.Authorize(actor, policy.ActionEnrollmentRequest, policy.Target{EnrollmentStudentID: actor.ID}); err != nil {
		return nil, err
	}
	if courseID == "" {
		return nil, appErrors.InvalidField("course_id", "required", "is required")
	}
	enrollment := lifecycle.NewRequest(actor.ID, courseID, s.now())
	return s.insert(ctx, actor, enrollment, models.EnrollmentEventRequested)
}

// DirectEnroll enrolls a student on an administrator's behalf, skipping approval.
func (s *EnrollmentService) DirectEnroll(ctx context.Context, actor models.Actor, studentID, courseID string) (*models.EnrollmentDetail, error) {
	if err := policy.Authorize(actor, policy.ActionEnrollmentDirect, policy.Target{}); err != nil {
		return nil, err
	}
	if courseID == "" {
		return nil, appErrors.InvalidField("course_id", "required", "is required")
	}
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		return nil, storageError(err, "student not found", "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.InvalidField("student_id", "role", "must reference a user with the student role")
	}
	enrollment := lifecycle.NewDirect(student.ID, courseID, s.now())
	return s.insert(ctx, actor, enrollment, models.EnrollmentEventEnrolled)
}

// Approve moves a pending request to enrolled.
func (s *EnrollmentService) Approve(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	return s.mutate(ctx, actor, id, models.EnrollmentEventApproved, func(e *models.EnrollmentDetail) (models.EnrollmentEventType, error) {
		if err := policy.Authorize(actor, policy.ActionEnrollmentApprove, targetOf(e)); err != nil {
			return "", err
		}
		return models.EnrollmentEventApproved, lifecycle.Approve(&e.Enrollment, s.now())
	})
}

// Reject closes a pending request with a reason.
func (s *EnrollmentService) Reject(ctx context.Context, actor models.Actor, id string, req RejectEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid reject payload")
	}
	return s.mutate(ctx, actor, id, models.EnrollmentEventRejected, func(e *models.EnrollmentDetail) (models.EnrollmentEventType, error) {
		if err := policy.Authorize(actor, policy.ActionEnrollmentReject, targetOf(e)); err != nil {
			return "", err
		}
		return models.EnrollmentEventRejected, lifecycle.Reject(&e.Enrollment, req.Reason)
	})
}

// Update records grades and/or marks the enrollment abandoned.
func (s *EnrollmentService) Update(ctx context.Context, actor models.Actor, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	cmd := req.command()
	action := policy.ActionEnrollmentGrade
	if cmd.Abandon {
		action = policy.ActionEnrollmentAbandon
	}
	return s.mutate(ctx, actor, id, models.EnrollmentEventGraded, func(e *models.EnrollmentDetail) (models.EnrollmentEventType, error) {
		if err := policy.Authorize(actor, action, targetOf(e)); err != nil {
			return "", err
		}
		return lifecycle.Apply(&e.Enrollment, cmd, s.now())
	})
}

// Cancel deletes an enrollment. Students may only cancel their own pending or
// enrolled rows; ownership is checked before the state is revealed.
func (s *EnrollmentService) Cancel(ctx context.Context, actor models.Actor, id string) error {
	removed, err := s.repo.DeleteGuarded(ctx, id, func(e *models.EnrollmentDetail) error {
		if err := policy.Authorize(actor, policy.ActionEnrollmentCancel, targetOf(e)); err != nil {
			return err
		}
		return lifecycle.CanCancel(actor.Role, e.Status)
	})
	if err != nil {
		return storageError(err, "enrollment not found", "failed to cancel enrollment")
	}
	s.committed(ctx, actor, removed, models.EnrollmentEventCancelled)
	return nil
}

// Get returns one enrollment the actor may view.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "enrollment not found", "failed to load enrollment")
	}
	if err := policy.Authorize(actor, policy.ActionEnrollmentView, targetOf(detail)); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *EnrollmentService) insert(ctx context.Context, actor models.Actor, enrollment *models.Enrollment, evt models.EnrollmentEventType) (*models.EnrollmentDetail, error) {
	if _, err := s.courses.FindByID(ctx, enrollment.CourseID); err != nil {
		return nil, storageError(err, "course not found", "failed to load course")
	}
	exists, err := s.repo.ExistsForPair(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, duplicateEnrollment()
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateEnrollment()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to reload enrollment", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
		detail = &models.EnrollmentDetail{Enrollment: *enrollment}
	}
	s.committed(ctx, actor, detail, evt)
	return detail, nil
}

func (s *EnrollmentService) mutate(ctx context.Context, actor models.Actor, id string, fallback models.EnrollmentEventType, fn func(*models.EnrollmentDetail) (models.EnrollmentEventType, error)) (*models.EnrollmentDetail, error) {
	evt := fallback
	updated, err := s.repo.Mutate(ctx, id, func(e *models.EnrollmentDetail) error {
		t, err := fn(e)
		if err != nil {
			return err
		}
		if t != "" {
			evt = t
		}
		return nil
	})
	if err != nil {
		return nil, storageError(err, "enrollment not found", "failed to update enrollment")
	}
	s.committed(ctx, actor, updated, evt)
	return updated, nil
}

func (s *EnrollmentService) committed(ctx context.Context, actor models.Actor, e *models.EnrollmentDetail, evt models.EnrollmentEventType) {
	s.metrics.RecordTransition(string(evt))
	s.logger.Info("enrollment transition",
		zap.String("event", string(evt)),
		zap.String("enrollment_id", e.ID),
		zap.String("status", string(e.Status)),
		zap.String("actor_id", actor.ID),
	)
	if s.events == nil {
		return
	}
	s.events.Dispatch(ctx, models.EnrollmentEvent{
		ID:           uuid.NewString(),
		Type:         evt,
		EnrollmentID: e.ID,
		StudentID:    e.StudentID,
		CourseID:     e.CourseID,
		Status:       e.Status,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		OccurredAt:   s.now(),
	})
}

func targetOf(e *models.EnrollmentDetail) policy.Target {
	return policy.Target{CourseInstructorID: e.InstructorID, EnrollmentStudentID: e.StudentID}
}

func duplicateEnrollment() error {
	return appErrors.Clone(appErrors.ErrConflict, "student already has an enrollment for this course")
}
