package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-ledger/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment. A second row for the same
// (student, course) pair fails with ErrDuplicate; a vanished parent fails
// with ErrForeignKey.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, grade)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :grade)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return wrapWrite("create enrollment", err)
	}
	return nil
}

// FindByPair returns the enrollment for a student and course.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := r.db.Rebind(`SELECT id, student_id, course_id, enrolled_at, grade FROM enrollments WHERE student_id = ? AND course_id = ?`)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// LockByPair loads the enrollment inside ext, holding a row lock where the
// dialect supports one. Returns sql.ErrNoRows when absent.
func (r *EnrollmentRepository) LockByPair(ctx context.Context, ext sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	query := ext.Rebind(`SELECT id, student_id, course_id, enrolled_at, grade FROM enrollments WHERE student_id = ? AND course_id = ?` + lockSuffix(ext))
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, ext, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateGrade overwrites the grade of one enrollment inside ext.
func (r *EnrollmentRepository) UpdateGrade(ctx context.Context, ext sqlx.ExtContext, id string, grade decimal.NullDecimal) error {
	if _, err := ext.ExecContext(ctx, ext.Rebind(`UPDATE enrollments SET grade = ? WHERE id = ?`), grade, id); err != nil {
		return fmt.Errorf("update enrollment grade: %w", err)
	}
	return nil
}

// Delete removes the enrollment for a pair and returns the rows removed.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, courseID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM enrollments WHERE student_id = ? AND course_id = ?`), studentID, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return affected, nil
}

// DeleteByStudent removes every enrollment of a student inside ext.
func (r *EnrollmentRepository) DeleteByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int64, error) {
	return r.deleteWhere(ctx, ext, "student_id", studentID)
}

// DeleteByCourse removes every enrollment of a course inside ext.
func (r *EnrollmentRepository) DeleteByCourse(ctx context.Context, ext sqlx.ExtContext, courseID string) (int64, error) {
	return r.deleteWhere(ctx, ext, "course_id", courseID)
}

func (r *EnrollmentRepository) deleteWhere(ctx context.Context, ext sqlx.ExtContext, column, id string) (int64, error) {
	query := ext.Rebind(fmt.Sprintf(`DELETE FROM enrollments WHERE %s = ?`, column))
	res, err := ext.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("cascade enrollments by %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cascade enrollments rows: %w", err)
	}
	return affected, nil
}

// ListCoursesForStudent joins a student's enrollments with their courses.
func (r *EnrollmentRepository) ListCoursesForStudent(ctx context.Context, studentID string) ([]models.StudentCourse, error) {
	query := r.db.Rebind(`SELECT c.id AS course_id, c.name AS course_name, c.instructor, c.credits, c.department, e.grade, e.enrolled_at
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = ?
        ORDER BY e.enrolled_at, c.name`)
	courses := []models.StudentCourse{}
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return courses, nil
}

// ListStudentsForCourse joins a course's enrollments with their students.
func (r *EnrollmentRepository) ListStudentsForCourse(ctx context.Context, courseID string) ([]models.CourseStudent, error) {
	query := r.db.Rebind(`SELECT s.id AS student_id, s.full_name, s.gender, s.enrollment_year, s.email, e.grade, e.enrolled_at
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = ?
        ORDER BY s.full_name, s.id`)
	students := []models.CourseStudent{}
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}

// CountByCourse returns the number of current enrollments for a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`), courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}
