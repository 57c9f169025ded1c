package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/policy"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

const courseCachePattern = "courses:*"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateCourseRequest is the payload for POST /courses.
type CreateCourseRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	DurationHours int     `json:"duration_hours" validate:"required,gte=1,lte=10000"`
	InstructorID  string  `json:"instructor_id" validate:"required"`
}

// UpdateCourseRequest is the payload for PUT /courses/{id}.
type UpdateCourseRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	DurationHours *int    `json:"duration_hours" validate:"omitempty,gte=1,lte=10000"`
	InstructorID  *string `json:"instructor_id"`
}

// CourseList is a page of courses as cached and returned by List.
type CourseList struct {
	Items      []models.CourseDetail `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	users     userLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service. cache may be nil.
func NewCourseService(repo courseRepository, users userLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = appErrors.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// NormalizeCourseName trims name and title-cases every whitespace-delimited
// word. Inner whitespace is kept as typed. Applying it twice is a no-op.
func NormalizeCourseName(name string) string {
	trimmed := strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(trimmed))
	wordStart := true
	for _, r := range trimmed {
		switch {
		case unicode.IsSpace(r):
			wordStart = true
			b.WriteRune(r)
		case wordStart:
			wordStart = false
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// List returns the courses visible to the actor ordered by name. The boolean
// reports whether the page came from cache.
func (s *CourseService) List(ctx context.Context, actor models.Actor, filter models.CourseFilter) (*CourseList, bool, error) {
	scope, err := policy.ListScope(actor, policy.ActionCourseList)
	if err != nil {
		return nil, false, err
	}
	if scope.Kind == policy.ScopeInstructor {
		filter.InstructorID = scope.OwnerID
	}
	page := models.NewPagination(filter.Page, filter.PageSize, 0)
	filter.Page, filter.PageSize = page.Page, page.PageSize

	owner := filter.InstructorID
	if owner == "" {
		owner = "all"
	}
	key := fmt.Sprintf("courses:list:%s:%s:%d:%d", owner, url.QueryEscape(strings.ToLower(filter.Search)), filter.Page, filter.PageSize)

	list, hit, err := cached(ctx, s.cache, key, func() (*CourseList, error) {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.CourseDetail{}
		}
		return &CourseList{Items: items, Pagination: *models.NewPagination(filter.Page, filter.PageSize, total)}, nil
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return list, hit, nil
}

// Get returns a course the actor is allowed to see.
func (s *CourseService) Get(ctx context.Context, actor models.Actor, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "course not found", "failed to load course")
	}
	if err := policy.Authorize(actor, policy.ActionCourseView, policy.Target{CourseInstructorID: course.InstructorID}); err != nil {
		return nil, err
	}
	return course, nil
}

// Create registers a course under a normalized, unique name.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := policy.Authorize(actor, policy.ActionCourseCreate, policy.Target{}); err != nil {
		return nil, err
	}
	req.Name = NormalizeCourseName(req.Name)
	req.Description = trimOptional(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid course payload")
	}
	if err := s.ensureNameFree(ctx, req.Name, ""); err != nil {
		return nil, err
	}
	if err := s.ensureInstructor(ctx, req.InstructorID); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:          req.Name,
		Description:   req.Description,
		DurationHours: req.DurationHours,
		InstructorID:  req.InstructorID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, s.writeError(err, "failed to create course")
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("actor_id", actor.ID))
	return s.reload(ctx, course.ID)
}

// Update edits a course. Renames go through the same normalization and
// uniqueness rules as creation.
func (s *CourseService) Update(ctx context.Context, actor models.Actor, id string, req UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := policy.Authorize(actor, policy.ActionCourseUpdate, policy.Target{}); err != nil {
		return nil, err
	}
	if req.Name != nil {
		normalized := NormalizeCourseName(*req.Name)
		if normalized == "" {
			return nil, appErrors.InvalidField("name", "required", "must not be blank")
		}
		req.Name = &normalized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid course payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "course not found", "failed to load course")
	}
	course := existing.Course

	if req.Name != nil && *req.Name != course.Name {
		if err := s.ensureNameFree(ctx, *req.Name, course.ID); err != nil {
			return nil, err
		}
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = trimOptional(req.Description)
	}
	if req.DurationHours != nil {
		course.DurationHours = *req.DurationHours
	}
	if req.InstructorID != nil && *req.InstructorID != course.InstructorID {
		if err := s.ensureInstructor(ctx, *req.InstructorID); err != nil {
			return nil, err
		}
		course.InstructorID = *req.InstructorID
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, s.writeError(err, "failed to update course")
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	return s.reload(ctx, course.ID)
}

// Delete removes a course and every enrollment in it.
func (s *CourseService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := policy.Authorize(actor, policy.ActionCourseDelete, policy.Target{}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageError(err, "course not found", "failed to delete course")
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	s.logger.Info("course deleted", zap.String("course_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *CourseService) ensureNameFree(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a course named %q already exists", name))
	}
	return nil
}

func (s *CourseService) ensureInstructor(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.InvalidField("instructor_id", "exists", "must reference an existing instructor")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if user.Role != models.RoleInstructor {
		return appErrors.InvalidField("instructor_id", "role", "must reference a user with the instructor role")
	}
	return nil
}

func (s *CourseService) writeError(err error, failure string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrConflict, "a course with this name already exists")
	}
	return storageError(err, "course not found", failure)
}

func (s *CourseService) reload(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "course not found", "failed to load course")
	}
	return course, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
