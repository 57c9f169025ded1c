package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type mockEnrollmentReader struct {
	items      []models.EnrollmentDetail
	listFilter models.EnrollmentFilter
	rosterFor  string
	err        error
}

func (m *mockEnrollmentReader) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.listFilter = filter
	return m.items, len(m.items), m.err
}

func (m *mockEnrollmentReader) ListPending(ctx context.Context) ([]models.EnrollmentDetail, error) {
	return m.items, m.err
}

func (m *mockEnrollmentReader) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	m.rosterFor = courseID
	return m.items, m.err
}

func TestEnrollmentQueryServiceListScopes(t *testing.T) {
	courses, _ := courseFixture()
	reader := &mockEnrollmentReader{}
	svc := NewEnrollmentQueryService(reader, courses)
	ctx := context.Background()

	items, page, err := svc.List(ctx, adminActor, models.EnrollmentFilter{StudentID: "stu-9", PageSize: 500})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Equal(t, "stu-9", reader.listFilter.StudentID)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(ctx, instructorActor, models.EnrollmentFilter{InstructorID: "inst-2"})
	require.NoError(t, err)
	assert.Equal(t, "inst-1", reader.listFilter.InstructorID)

	_, _, err = svc.List(ctx, studentActor, models.EnrollmentFilter{StudentID: "stu-2", Status: models.EnrollmentStatusPending})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", reader.listFilter.StudentID)
	assert.Equal(t, models.EnrollmentStatusPending, reader.listFilter.Status)
}

func TestEnrollmentQueryServiceListRejectsUnknownStatus(t *testing.T) {
	courses, _ := courseFixture()
	svc := NewEnrollmentQueryService(&mockEnrollmentReader{}, courses)

	_, _, err := svc.List(context.Background(), adminActor, models.EnrollmentFilter{Status: "active"})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestEnrollmentQueryServiceListStorageFailure(t *testing.T) {
	courses, _ := courseFixture()
	svc := NewEnrollmentQueryService(&mockEnrollmentReader{err: errors.New("db down")}, courses)

	_, _, err := svc.List(context.Background(), adminActor, models.EnrollmentFilter{})
	assertAppError(t, err, appErrors.ErrInternal)
}

func TestEnrollmentQueryServiceAvailableCourses(t *testing.T) {
	courses, _ := courseFixture()
	courses.available = []models.CourseDetail{{Course: models.Course{ID: "c-2", Name: "Biology"}}}
	svc := NewEnrollmentQueryService(&mockEnrollmentReader{}, courses)

	items, err := svc.AvailableCourses(context.Background(), studentActor)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.AvailableCourses(context.Background(), adminActor)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentQueryServicePendingRequestsAdminOnly(t *testing.T) {
	courses, _ := courseFixture()
	svc := NewEnrollmentQueryService(&mockEnrollmentReader{}, courses)

	items, err := svc.PendingRequests(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	_, err = svc.PendingRequests(context.Background(), instructorActor)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentQueryServiceRoster(t *testing.T) {
	courses, _ := courseFixture()
	reader := &mockEnrollmentReader{items: []models.EnrollmentDetail{{StudentName: "Alan"}}}
	svc := NewEnrollmentQueryService(reader, courses)
	ctx := context.Background()

	course, items, err := svc.Roster(ctx, instructorActor, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Algebra", course.Name)
	assert.Len(t, items, 1)
	assert.Equal(t, "c-1", reader.rosterFor)

	_, _, err = svc.Roster(ctx, instructorActor, "c-2")
	assertAppError(t, err, appErrors.ErrForbidden)

	_, _, err = svc.Roster(ctx, studentActor, "c-1")
	assertAppError(t, err, appErrors.ErrForbidden)

	_, _, err = svc.Roster(ctx, adminActor, "missing")
	assertAppError(t, err, appErrors.ErrNotFound)
}
