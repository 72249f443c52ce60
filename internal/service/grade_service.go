package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/events"
)

const gradeScale = 2

type gradeRepository interface {
	LockByPair(ctx context.Context, ext sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error)
	UpdateGrade(ctx context.Context, ext sqlx.ExtContext, id string, grade decimal.NullDecimal) error
}

type auditAppender interface {
	Append(ctx context.Context, ext sqlx.ExtContext, entry *models.GradeAuditEntry) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SetGradeRequest carries a grade; null clears it.
type SetGradeRequest struct {
	Grade decimal.NullDecimal `json:"grade" swaggertype:"number"`
}

// GradeService mutates enrollment grades and records every change in the
// audit trail within the same transaction.
type GradeService struct {
	enrollments gradeRepository
	audit       auditAppender
	tx          txRunner
	publisher   events.Publisher
	bounds      config.GradeConfig
	logger      *zap.Logger
	inst        instrumentation
	actor       string
	now         func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(enrollments gradeRepository, audit auditAppender, tx txRunner, publisher events.Publisher, bounds config.GradeConfig, logger *zap.Logger, metrics operationRecorder) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &GradeService{
		enrollments: enrollments,
		audit:       audit,
		tx:          tx,
		publisher:   publisher,
		bounds:      bounds,
		logger:      logger,
		inst:        newInstrumentation(metrics),
		actor:       actor.System,
		now:         time.Now,
	}
}

// WithDefaultActor sets the audit actor used when the context carries none.
func (s *GradeService) WithDefaultActor(tag string) *GradeService {
	if tag != "" {
		s.actor = tag
	}
	return s
}

// Bounds returns the inclusive accepted grade range.
func (s *GradeService) Bounds() config.GradeConfig {
	return s.bounds
}

// SetGrade overwrites the grade of an enrollment, or clears it when grade is
// null, and appends exactly one audit entry. Unchanged values still succeed
// and are still audited.
func (s *GradeService) SetGrade(ctx context.Context, studentID, courseID string, grade decimal.NullDecimal) (entry *models.GradeAuditEntry, err error) {
	studentID = strings.TrimSpace(studentID)
	courseID = strings.TrimSpace(courseID)
	ctx, end := s.inst.start(ctx, "set_grade",
		attribute.String("student_id", studentID),
		attribute.String("course_id", courseID),
		attribute.Bool("clear", !grade.Valid),
	)
	defer func() { end(err) }()

	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and course identifiers are required")
	}
	if err := s.validateGrade(grade); err != nil {
		return nil, err
	}

	tag := actor.FromContext(ctx, s.actor)
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		enrollment, err := s.enrollments.LockByPair(ctx, tx, studentID, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s is not enrolled in course %s", studentID, courseID))
			}
			return appErrors.Unavailable(err, "failed to load enrollment")
		}
		if err := s.enrollments.UpdateGrade(ctx, tx, enrollment.ID, grade); err != nil {
			return appErrors.Unavailable(err, "failed to update grade")
		}
		entry = &models.GradeAuditEntry{
			EnrollmentID: enrollment.ID,
			StudentID:    studentID,
			CourseID:     courseID,
			OldGrade:     enrollment.Grade,
			NewGrade:     grade,
			ChangedAt:    s.now().UTC(),
			Actor:        tag,
		}
		if err := s.audit.Append(ctx, tx, entry); err != nil {
			return appErrors.Unavailable(err, "failed to append grade audit")
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to commit grade change")
	}

	s.logger.Info("grade changed",
		zap.String("enrollment_id", entry.EnrollmentID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("old_grade", formatGrade(entry.OldGrade)),
		zap.String("new_grade", formatGrade(entry.NewGrade)),
		zap.String("actor", tag),
	)
	publishAfterCommit(ctx, s.publisher, s.logger, events.Event{
		Type:         events.TypeGradeChanged,
		EnrollmentID: entry.EnrollmentID,
		StudentID:    studentID,
		CourseID:     courseID,
		OldGrade:     gradePointer(entry.OldGrade),
		NewGrade:     gradePointer(entry.NewGrade),
		Actor:        tag,
		OccurredAt:   entry.ChangedAt,
	})
	return entry, nil
}

func (s *GradeService) validateGrade(grade decimal.NullDecimal) error {
	if !grade.Valid {
		return nil
	}
	value := grade.Decimal
	if value.LessThan(s.bounds.Min) || value.GreaterThan(s.bounds.Max) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade must be between %s and %s", s.bounds.Min, s.bounds.Max))
	}
	if !value.Equal(value.Round(gradeScale)) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade allows at most %d decimal places", gradeScale))
	}
	return nil
}

// ParseGrade reads a user supplied grade. Empty text, "null" and "none" clear
// the grade.
func ParseGrade(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "none":
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("grade %q is not a number", raw))
	}
	return decimal.NewNullDecimal(value), nil
}

func formatGrade(grade decimal.NullDecimal) string {
	if !grade.Valid {
		return ""
	}
	return grade.Decimal.String()
}

func gradePointer(grade decimal.NullDecimal) *string {
	if !grade.Valid {
		return nil
	}
	value := grade.Decimal.String()
	return &value
}
