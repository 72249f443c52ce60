package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/repository"
	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/events"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID, courseID string) (int64, error)
	DeleteByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int64, error)
	DeleteByCourse(ctx context.Context, ext sqlx.ExtContext, courseID string) (int64, error)
}

type existenceOracle interface {
	StudentExists(ctx context.Context, id string) (bool, error)
	CourseExists(ctx context.Context, id string) (bool, error)
}

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
	CourseID  string `json:"course_id" validate:"required,max=64"`
}

// EnrollmentService owns the set of student/course enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	oracle    existenceOracle
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	inst      instrumentation
	actor     string
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, oracle existenceOracle, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger, metrics operationRecorder) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &EnrollmentService{
		repo:      repo,
		oracle:    oracle,
		publisher: publisher,
		validator: validate,
		logger:    logger,
		inst:      newInstrumentation(metrics),
		actor:     actor.System,
		now:       time.Now,
	}
}

// WithDefaultActor sets the tag recorded on events when the context has none.
func (s *EnrollmentService) WithDefaultActor(tag string) *EnrollmentService {
	if tag != "" {
		s.actor = tag
	}
	return s
}

// Enroll registers a student in a course. Both sides must exist and the pair
// must not be enrolled already.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (enrollment *models.Enrollment, err error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	ctx, end := s.inst.start(ctx, "enroll",
		attribute.String("student_id", req.StudentID),
		attribute.String("course_id", req.CourseID),
	)
	defer func() { end(err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	exists, err := s.oracle.StudentExists(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", req.StudentID))
	}
	exists, err = s.oracle.CourseExists(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", req.CourseID))
	}

	enrollment = &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, EnrolledAt: s.now().UTC()}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student %s already enrolled in course %s", req.StudentID, req.CourseID))
		case errors.Is(err, repository.ErrForeignKey):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student or course no longer exists")
		}
		return nil, appErrors.Unavailable(err, "failed to create enrollment")
	}

	tag := actor.FromContext(ctx, s.actor)
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID),
		zap.String("actor", tag),
	)
	publishAfterCommit(ctx, s.publisher, s.logger, events.Event{
		Type:         events.TypeEnrollmentCreated,
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Actor:        tag,
		OccurredAt:   enrollment.EnrolledAt,
	})
	return enrollment, nil
}

// Withdraw removes the enrollment for a pair. Audit entries are untouched.
func (s *EnrollmentService) Withdraw(ctx context.Context, studentID, courseID string) (err error) {
	studentID = strings.TrimSpace(studentID)
	courseID = strings.TrimSpace(courseID)
	ctx, end := s.inst.start(ctx, "withdraw",
		attribute.String("student_id", studentID),
		attribute.String("course_id", courseID),
	)
	defer func() { end(err) }()

	if studentID == "" || courseID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student and course identifiers are required")
	}
	removed, err := s.repo.Delete(ctx, studentID, courseID)
	if err != nil {
		return appErrors.Unavailable(err, "failed to withdraw enrollment")
	}
	if removed == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s is not enrolled in course %s", studentID, courseID))
	}

	tag := actor.FromContext(ctx, s.actor)
	s.logger.Info("student withdrawn",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("actor", tag),
	)
	publishAfterCommit(ctx, s.publisher, s.logger, events.Event{
		Type:       events.TypeEnrollmentWithdrawn,
		StudentID:  studentID,
		CourseID:   courseID,
		Actor:      tag,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// CascadeDeleteForStudent removes every enrollment of a student. It must run
// inside the transaction that deletes the student.
func (s *EnrollmentService) CascadeDeleteForStudent(ctx context.Context, tx sqlx.ExtContext, studentID string) (removed int64, err error) {
	ctx, end := s.inst.start(ctx, "cascade_student", attribute.String("student_id", studentID))
	defer func() { end(err) }()

	removed, err = s.repo.DeleteByStudent(ctx, tx, studentID)
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to cascade student enrollments")
	}
	return removed, nil
}

// CascadeDeleteForCourse removes every enrollment of a course. It must run
// inside the transaction that deletes the course.
func (s *EnrollmentService) CascadeDeleteForCourse(ctx context.Context, tx sqlx.ExtContext, courseID string) (removed int64, err error) {
	ctx, end := s.inst.start(ctx, "cascade_course", attribute.String("course_id", courseID))
	defer func() { end(err) }()

	removed, err = s.repo.DeleteByCourse(ctx, tx, courseID)
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to cascade course enrollments")
	}
	return removed, nil
}

// AnnounceCascade publishes the outcome of a committed cascade.
func (s *EnrollmentService) AnnounceCascade(ctx context.Context, studentID, courseID string, removed int64) {
	tag := actor.FromContext(ctx, s.actor)
	s.logger.Info("enrollments cascaded",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.Int64("removed", removed),
		zap.String("actor", tag),
	)
	publishAfterCommit(ctx, s.publisher, s.logger, events.Event{
		Type:       events.TypeEnrollmentCascaded,
		StudentID:  studentID,
		CourseID:   courseID,
		Removed:    removed,
		Actor:      tag,
		OccurredAt: s.now().UTC(),
	})
}
