package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/export"
)

type auditRepository interface {
	Recent(ctx context.Context, limit int) ([]models.GradeAuditRecord, error)
	ListByPair(ctx context.Context, studentID, courseID string) ([]models.GradeAuditEntry, error)
}

var auditExportHeaders = []string{"id", "changed_at", "student_id", "student", "course_id", "course", "old_grade", "new_grade", "actor"}

// ExportResult is a rendered audit document.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Entries     int
}

// AuditService exposes the read side of the grade audit trail.
type AuditService struct {
	repo   auditRepository
	limits config.AuditConfig
	logger *zap.Logger
	inst   instrumentation
	now    func() time.Time
}

// NewAuditService constructs AuditService.
func NewAuditService(repo auditRepository, limits config.AuditConfig, logger *zap.Logger, metrics operationRecorder) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 20
	}
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = 500
	}
	if limits.DefaultLimit > limits.MaxLimit {
		limits.DefaultLimit = limits.MaxLimit
	}
	return &AuditService{repo: repo, limits: limits, logger: logger, inst: newInstrumentation(metrics), now: time.Now}
}

// Recent returns at most limit entries, newest first with ties broken by
// entry ID. A non-positive limit selects the default; oversized limits are
// capped.
func (s *AuditService) Recent(ctx context.Context, limit int) (views []models.GradeAuditView, err error) {
	limit = s.effectiveLimit(limit)
	ctx, end := s.inst.start(ctx, "audit_recent", attribute.Int("limit", limit))
	defer func() { end(err) }()

	records, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load grade audit")
	}
	if len(records) > limit {
		records = records[:limit]
	}
	views = make([]models.GradeAuditView, 0, len(records))
	for _, record := range records {
		views = append(views, record.View())
	}
	return views, nil
}

// History returns every audit entry captured for one student and course,
// including entries that outlived a withdrawal.
func (s *AuditService) History(ctx context.Context, studentID, courseID string) (entries []models.GradeAuditEntry, err error) {
	studentID = strings.TrimSpace(studentID)
	courseID = strings.TrimSpace(courseID)
	ctx, end := s.inst.start(ctx, "audit_history",
		attribute.String("student_id", studentID),
		attribute.String("course_id", courseID),
	)
	defer func() { end(err) }()

	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and course identifiers are required")
	}
	entries, err = s.repo.ListByPair(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load grade history")
	}
	return entries, nil
}

// Export renders the Recent projection as CSV or PDF.
func (s *AuditService) Export(ctx context.Context, format string, limit int) (*ExportResult, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	views, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Grade audit trail (%s)", generatedAt.Format(time.RFC3339)),
		Headers: auditExportHeaders,
		Rows:    make([]map[string]string, 0, len(views)),
	}
	for _, view := range views {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":         fmt.Sprintf("%d", view.ID),
			"changed_at": view.ChangedAt.UTC().Format(time.RFC3339),
			"student_id": view.StudentID,
			"student":    view.Student,
			"course_id":  view.CourseID,
			"course":     view.Course,
			"old_grade":  formatGrade(view.OldGrade),
			"new_grade":  formatGrade(view.NewGrade),
			"actor":      view.Actor,
		})
	}

	body, err := export.RendererFor(f).Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	s.logger.Info("grade audit exported", zap.String("format", string(f)), zap.Int("entries", len(views)))
	return &ExportResult{
		Filename:    fmt.Sprintf("grade-audit-%s.%s", generatedAt.Format("20060102-150405"), f),
		ContentType: f.ContentType(),
		Body:        body,
		Entries:     len(views),
	}, nil
}

func (s *AuditService) effectiveLimit(limit int) int {
	if limit <= 0 {
		return s.limits.DefaultLimit
	}
	if limit > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return limit
}
