package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

type enrollmentReader interface {
	ListCoursesForStudent(ctx context.Context, studentID string) ([]models.StudentCourse, error)
	ListStudentsForCourse(ctx context.Context, courseID string) ([]models.CourseStudent, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// QueryService serves read-side projections of the enrollment ledger. Every
// call reads committed state; nothing is cached.
type QueryService struct {
	repo enrollmentReader
	inst instrumentation
}

// NewQueryService constructs QueryService.
func NewQueryService(repo enrollmentReader, metrics operationRecorder) *QueryService {
	return &QueryService{repo: repo, inst: newInstrumentation(metrics)}
}

// CoursesForStudent lists a student's courses. Unknown students yield an
// empty list.
func (s *QueryService) CoursesForStudent(ctx context.Context, studentID string) (courses []models.StudentCourse, err error) {
	studentID = strings.TrimSpace(studentID)
	ctx, end := s.inst.start(ctx, "courses_for_student", attribute.String("student_id", studentID))
	defer func() { end(err) }()

	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student identifier is required")
	}
	courses, err = s.repo.ListCoursesForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list student courses")
	}
	if courses == nil {
		courses = []models.StudentCourse{}
	}
	return courses, nil
}

// StudentsForCourse lists a course's students. Unknown courses yield an
// empty list.
func (s *QueryService) StudentsForCourse(ctx context.Context, courseID string) (students []models.CourseStudent, err error) {
	courseID = strings.TrimSpace(courseID)
	ctx, end := s.inst.start(ctx, "students_for_course", attribute.String("course_id", courseID))
	defer func() { end(err) }()

	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course identifier is required")
	}
	students, err = s.repo.ListStudentsForCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list course students")
	}
	if students == nil {
		students = []models.CourseStudent{}
	}
	return students, nil
}

// EnrollmentCount counts the current enrollments of a course.
func (s *QueryService) EnrollmentCount(ctx context.Context, courseID string) (count int, err error) {
	courseID = strings.TrimSpace(courseID)
	ctx, end := s.inst.start(ctx, "enrollment_count", attribute.String("course_id", courseID))
	defer func() { end(err) }()

	if courseID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "course identifier is required")
	}
	count, err = s.repo.CountByCourse(ctx, courseID)
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to count enrollments")
	}
	return count, nil
}
