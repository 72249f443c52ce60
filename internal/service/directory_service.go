package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/repository"
	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateEmail(ctx context.Context, id, email string) (int64, error)
	Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error)
}

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error)
}

type enrollmentCascader interface {
	CascadeDeleteForStudent(ctx context.Context, tx sqlx.ExtContext, studentID string) (int64, error)
	CascadeDeleteForCourse(ctx context.Context, tx sqlx.ExtContext, courseID string) (int64, error)
	AnnounceCascade(ctx context.Context, studentID, courseID string, removed int64)
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	ID             string `json:"id" validate:"omitempty,max=64"`
	FullName       string `json:"full_name" validate:"required,max=200"`
	Gender         string `json:"gender" validate:"omitempty,max=16"`
	EnrollmentYear int    `json:"enrollment_year" validate:"required,gte=1900,lte=2200"`
	Email          string `json:"email" validate:"required,email,max=254"`
}

// UpdateEmailRequest changes a student's email.
type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// CreateCourseRequest is the payload for offering a course.
type CreateCourseRequest struct {
	ID         string `json:"id" validate:"omitempty,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Instructor string `json:"instructor" validate:"omitempty,max=200"`
	Credits    int    `json:"credits" validate:"gte=0,lte=60"`
	Department string `json:"department" validate:"omitempty,max=120"`
}

// DirectoryService manages students and courses. Deleting either removes its
// enrollments in the same transaction.
type DirectoryService struct {
	students  studentRepository
	courses   courseRepository
	ledger    enrollmentCascader
	tx        txRunner
	validator *validator.Validate
	logger    *zap.Logger
	inst      instrumentation
}

// NewDirectoryService constructs DirectoryService.
func NewDirectoryService(students studentRepository, courses courseRepository, ledger enrollmentCascader, tx txRunner, validate *validator.Validate, logger *zap.Logger, metrics operationRecorder) *DirectoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		students:  students,
		courses:   courses,
		ledger:    ledger,
		tx:        tx,
		validator: validate,
		logger:    logger,
		inst:      newInstrumentation(metrics),
	}
}

// ListStudents returns students with pagination metadata.
func (s *DirectoryService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Unavailable(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetStudent returns a student by ID.
func (s *DirectoryService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		return nil, appErrors.Unavailable(err, "failed to load student")
	}
	return student, nil
}

// CreateStudent registers a student. Emails are unique across students.
func (s *DirectoryService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.students.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %s already registered", req.Email))
	}
	student := &models.Student{
		ID:             req.ID,
		FullName:       req.FullName,
		Gender:         strings.TrimSpace(req.Gender),
		EnrollmentYear: req.EnrollmentYear,
		Email:          req.Email,
	}
	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student identifier or email already registered")
		}
		return nil, appErrors.Unavailable(err, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("actor", actor.FromContext(ctx, actor.System)))
	return student, nil
}

// UpdateStudentEmail changes a student's email address.
func (s *DirectoryService) UpdateStudentEmail(ctx context.Context, id string, req UpdateEmailRequest) (*models.Student, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}
	exists, err := s.students.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %s already registered", req.Email))
	}
	updated, err := s.students.UpdateEmail(ctx, id, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %s already registered", req.Email))
		}
		return nil, appErrors.Unavailable(err, "failed to update email")
	}
	if updated == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
	}
	return s.GetStudent(ctx, id)
}

// DeleteStudent removes a student and, atomically, all of their enrollments.
// Audit entries are kept.
func (s *DirectoryService) DeleteStudent(ctx context.Context, id string) (removed int64, err error) {
	ctx, end := s.inst.start(ctx, "delete_student", attribute.String("student_id", id))
	defer func() { end(err) }()

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if removed, err = s.ledger.CascadeDeleteForStudent(ctx, tx, id); err != nil {
			return err
		}
		deleted, err := s.students.Delete(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrForeignKey) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student %s gained an enrollment during deletion, retry", id))
			}
			return appErrors.Unavailable(err, "failed to delete student")
		}
		if deleted == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		return nil
	})
	if err != nil {
		return 0, asAppError(err, "failed to delete student")
	}
	s.ledger.AnnounceCascade(ctx, id, "", removed)
	return removed, nil
}

// ListCourses returns courses with their live enrollment counts.
func (s *DirectoryService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Unavailable(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.CourseSummary{}
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetCourse returns a course by ID.
func (s *DirectoryService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil, appErrors.Unavailable(err, "failed to load course")
	}
	return course, nil
}

// CreateCourse offers a new course. Names are unique.
func (s *DirectoryService) CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	exists, err := s.courses.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to validate course name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s already exists", req.Name))
	}
	course := &models.Course{
		ID:         req.ID,
		Name:       req.Name,
		Instructor: strings.TrimSpace(req.Instructor),
		Credits:    req.Credits,
		Department: strings.TrimSpace(req.Department),
	}
	if err := s.courses.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course identifier or name already exists")
		}
		return nil, appErrors.Unavailable(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("actor", actor.FromContext(ctx, actor.System)))
	return course, nil
}

// DeleteCourse removes a course and, atomically, all of its enrollments.
// Audit entries are kept.
func (s *DirectoryService) DeleteCourse(ctx context.Context, id string) (removed int64, err error) {
	ctx, end := s.inst.start(ctx, "delete_course", attribute.String("course_id", id))
	defer func() { end(err) }()

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if removed, err = s.ledger.CascadeDeleteForCourse(ctx, tx, id); err != nil {
			return err
		}
		deleted, err := s.courses.Delete(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrForeignKey) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s gained an enrollment during deletion, retry", id))
			}
			return appErrors.Unavailable(err, "failed to delete course")
		}
		if deleted == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil
	})
	if err != nil {
		return 0, asAppError(err, "failed to delete course")
	}
	s.ledger.AnnounceCascade(ctx, "", id, removed)
	return removed, nil
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// asAppError keeps typed errors raised inside a transaction and classifies
// begin or commit failures as unavailability.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Unavailable(err, message)
}
