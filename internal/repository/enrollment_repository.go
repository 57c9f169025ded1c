package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.status, e.partial_grade, e.final_grade, e.average,
        e.requested_at, e.enrolled_at, e.completed_at, e.rejection_reason, e.created_at, e.updated_at,
        c.name AS course_name, s.name AS student_name, s.email AS student_email,
        c.instructor_id, i.name AS instructor_name`

const enrollmentDetailFrom = `FROM enrollments e
JOIN courses c ON c.id = e.course_id
JOIN users s ON s.id = e.student_id
JOIN users i ON i.id = c.instructor_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"requested_at": "e.requested_at",
		"student_name": "s.name",
		"course_name":  "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	offset := (p.Page - 1) * p.PageSize

	query := fmt.Sprintf(`%s
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentDetailSelect, enrollmentDetailFrom+clause, orderBy, order, p.PageSize, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		if errors.Is(translate(err), sql.ErrNoRows) {
			// a malformed course_id or student_id filter matches nothing
			return []models.EnrollmentDetail{}, 0, nil
		}
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", enrollmentDetailFrom+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindDetailByID returns an enrollment with course, student and instructor info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n" + enrollmentDetailFrom + "\nWHERE e.id = $1"
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, translate(err)
	}
	return &detail, nil
}

// ExistsForPair reports whether any enrollment row links student and course.
func (r *EnrollmentRepository) ExistsForPair(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment. The (student_id, course_id) unique key
// turns a racing duplicate into ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, partial_grade, final_grade, average,
        requested_at, enrolled_at, completed_at, rejection_reason, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :partial_grade, :final_grade, :average,
        :requested_at, :enrolled_at, :completed_at, :rejection_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if translated := translate(err); errors.Is(translated, ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Mutate locks the enrollment row, hands it to fn and writes the result back
// in the same transaction. An error from fn rolls back and is returned as is.
// A missing row yields sql.ErrNoRows.
func (r *EnrollmentRepository) Mutate(ctx context.Context, id string, fn func(*models.EnrollmentDetail) error) (detail *models.EnrollmentDetail, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := lockEnrollment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err = fn(current); err != nil {
		return nil, err
	}

	current.UpdatedAt = time.Now().UTC()
	const update = `UPDATE enrollments SET status = :status, partial_grade = :partial_grade, final_grade = :final_grade,
        average = :average, enrolled_at = :enrolled_at, completed_at = :completed_at,
        rejection_reason = :rejection_reason, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, &current.Enrollment); err != nil {
		err = translate(err)
		if errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("update enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		err = translate(err)
		if errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return current, nil
}

// DeleteGuarded locks the row, lets fn veto the removal and deletes it.
func (r *EnrollmentRepository) DeleteGuarded(ctx context.Context, id string, fn func(*models.EnrollmentDetail) error) (detail *models.EnrollmentDetail, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := lockEnrollment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err = fn(current); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		err = translate(err)
		if errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("delete enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		err = translate(err)
		if errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("commit enrollment delete: %w", err)
	}
	return current, nil
}

// ListPending returns every pending request, newest first.
func (r *EnrollmentRepository) ListPending(ctx context.Context) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n" + enrollmentDetailFrom + "\nWHERE e.status = $1 ORDER BY e.requested_at DESC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, models.EnrollmentStatusPending); err != nil {
		return nil, fmt.Errorf("list pending enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByCourse returns the full roster of a course ordered by student name.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n" + enrollmentDetailFrom + "\nWHERE e.course_id = $1 ORDER BY s.name ASC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return enrollments, nil
}

func lockEnrollment(ctx context.Context, tx *sqlx.Tx, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n" + enrollmentDetailFrom + "\nWHERE e.id = $1 FOR UPDATE OF e"
	var detail models.EnrollmentDetail
	if err := tx.GetContext(ctx, &detail, query, id); err != nil {
		if err = translate(err); errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	return &detail, nil
}
