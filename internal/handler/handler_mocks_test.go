package handler

import (
	"context"
	"strings"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// stubTokens accepts bearer tokens of the form "<role>:<user id>".
type stubTokens struct{}

func (stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	role, err := models.ParseRole(parts[0])
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return &models.JWTClaims{UserID: parts[1], Role: role}, nil
}

type authServiceMock struct {
	loginReq models.LoginRequest
	loginErr error
	meActor  models.Actor
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "signed", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (m *authServiceMock) Me(_ context.Context, actor models.Actor) (*models.UserInfo, error) {
	m.meActor = actor
	return &models.UserInfo{ID: actor.ID, Role: actor.Role}, nil
}

type userServiceMock struct {
	filter  models.UserFilter
	created *service.CreateUserRequest
	deleted string
	getErr  error
	calls   int
}

func (m *userServiceMock) List(_ context.Context, _ models.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.calls++
	m.filter = filter
	return []models.User{{ID: "stu-1", Name: "Ada", Role: models.RoleStudent}}, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (m *userServiceMock) Get(_ context.Context, _ models.Actor, id string) (*models.User, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.User{ID: id}, nil
}

func (m *userServiceMock) Create(_ context.Context, _ models.Actor, req service.CreateUserRequest) (*models.User, error) {
	m.calls++
	m.created = &req
	return &models.User{ID: "new-user", Name: req.Name, Email: req.Email, Role: req.Role}, nil
}

func (m *userServiceMock) Update(_ context.Context, _ models.Actor, id string, req service.UpdateUserRequest) (*models.User, error) {
	m.calls++
	return &models.User{ID: id}, nil
}

func (m *userServiceMock) Delete(_ context.Context, _ models.Actor, id string) error {
	m.calls++
	m.deleted = id
	return nil
}

type courseServiceMock struct {
	filter    models.CourseFilter
	cacheHit  bool
	createErr error
	actor     models.Actor
}

func (m *courseServiceMock) List(_ context.Context, actor models.Actor, filter models.CourseFilter) (*service.CourseList, bool, error) {
	m.actor = actor
	m.filter = filter
	page := models.NewPagination(filter.Page, filter.PageSize, 1)
	return &service.CourseList{Items: []models.CourseDetail{{Course: models.Course{ID: "c-1", Name: "Algebra"}}}, Pagination: *page}, m.cacheHit, nil
}

func (m *courseServiceMock) Get(_ context.Context, _ models.Actor, id string) (*models.CourseDetail, error) {
	return &models.CourseDetail{Course: models.Course{ID: id}}, nil
}

func (m *courseServiceMock) Create(_ context.Context, _ models.Actor, req service.CreateCourseRequest) (*models.CourseDetail, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.CourseDetail{Course: models.Course{ID: "c-new", Name: req.Name, InstructorID: req.InstructorID}}, nil
}

func (m *courseServiceMock) Update(_ context.Context, _ models.Actor, id string, _ service.UpdateCourseRequest) (*models.CourseDetail, error) {
	return &models.CourseDetail{Course: models.Course{ID: id}}, nil
}

func (m *courseServiceMock) Delete(context.Context, models.Actor, string) error {
	return nil
}

type rosterServiceMock struct {
	err error
}

func (m *rosterServiceMock) Roster(_ context.Context, _ models.Actor, courseID string) (*models.CourseDetail, []models.EnrollmentDetail, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	course := &models.CourseDetail{Course: models.Course{ID: courseID, Name: "Algebra"}}
	return course, []models.EnrollmentDetail{{Enrollment: models.Enrollment{ID: "enr-1", CourseID: courseID}, StudentName: "Ada"}}, nil
}

type rosterExporterMock struct {
	format string
}

func (m *rosterExporterMock) Export(_ context.Context, _ models.Actor, _ string, format string) (*service.RosterFile, error) {
	m.format = format
	if format != "csv" {
		return nil, appErrors.InvalidField("format", "oneof", "must be one of: csv pdf xlsx")
	}
	return &service.RosterFile{Filename: "algebra-roster-20240305.csv", ContentType: "text/csv", Content: []byte("Student,Email\n")}, nil
}

type enrollmentServiceMock struct {
	actor     models.Actor
	createReq *service.CreateEnrollmentRequest
	updateReq *service.UpdateEnrollmentRequest
	rejectReq *service.RejectEnrollmentRequest
	err       error
	cancelled string
}

func (m *enrollmentServiceMock) detail(id string, status models.EnrollmentStatus) (*models.EnrollmentDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, Status: status}}, nil
}

func (m *enrollmentServiceMock) Create(_ context.Context, actor models.Actor, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	m.actor = actor
	m.createReq = &req
	return m.detail("enr-1", models.EnrollmentStatusPending)
}

func (m *enrollmentServiceMock) Get(_ context.Context, _ models.Actor, id string) (*models.EnrollmentDetail, error) {
	return m.detail(id, models.EnrollmentStatusEnrolled)
}

func (m *enrollmentServiceMock) Update(_ context.Context, _ models.Actor, id string, req service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	m.updateReq = &req
	return m.detail(id, models.EnrollmentStatusInProgress)
}

func (m *enrollmentServiceMock) Approve(_ context.Context, _ models.Actor, id string) (*models.EnrollmentDetail, error) {
	return m.detail(id, models.EnrollmentStatusEnrolled)
}

func (m *enrollmentServiceMock) Reject(_ context.Context, _ models.Actor, id string, req service.RejectEnrollmentRequest) (*models.EnrollmentDetail, error) {
	m.rejectReq = &req
	return m.detail(id, models.EnrollmentStatusRejected)
}

func (m *enrollmentServiceMock) Cancel(_ context.Context, _ models.Actor, id string) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = id
	return nil
}

type enrollmentQueriesMock struct {
	filter models.EnrollmentFilter
	calls  int
}

func (m *enrollmentQueriesMock) List(_ context.Context, _ models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.calls++
	m.filter = filter
	return []models.EnrollmentDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (m *enrollmentQueriesMock) AvailableCourses(context.Context, models.Actor) ([]models.CourseDetail, error) {
	m.calls++
	return []models.CourseDetail{{Course: models.Course{ID: "c-2", Name: "Biology"}}}, nil
}

func (m *enrollmentQueriesMock) PendingRequests(context.Context, models.Actor) ([]models.EnrollmentDetail, error) {
	m.calls++
	return []models.EnrollmentDetail{}, nil
}
