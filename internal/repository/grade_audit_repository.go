package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-ledger/internal/models"
)

// GradeAuditRepository stores the append-only grade audit log.
type GradeAuditRepository struct {
	db *sqlx.DB
}

// NewGradeAuditRepository constructs the repository.
func NewGradeAuditRepository(db *sqlx.DB) *GradeAuditRepository {
	return &GradeAuditRepository{db: db}
}

// Append writes one entry inside ext and sets its generated ID. There is no
// update or delete counterpart.
func (r *GradeAuditRepository) Append(ctx context.Context, ext sqlx.ExtContext, entry *models.GradeAuditEntry) error {
	query := ext.Rebind(`INSERT INTO grade_audit_log (enrollment_id, student_id, course_id, old_grade, new_grade, changed_at, actor)
        VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := sqlx.GetContext(ctx, ext, &entry.ID, query,
		entry.EnrollmentID,
		entry.StudentID,
		entry.CourseID,
		entry.OldGrade,
		entry.NewGrade,
		entry.ChangedAt,
		entry.Actor,
	); err != nil {
		return fmt.Errorf("append grade audit: %w", err)
	}
	return nil
}

// Recent returns the newest entries first, ties broken by ID, resolving the
// current student and course names where the rows still exist.
func (r *GradeAuditRepository) Recent(ctx context.Context, limit int) ([]models.GradeAuditRecord, error) {
	query := r.db.Rebind(`SELECT g.id, g.enrollment_id, g.student_id, g.course_id, g.old_grade, g.new_grade, g.changed_at, g.actor,
        s.full_name AS student_name, c.name AS course_name
        FROM grade_audit_log g
        LEFT JOIN students s ON s.id = g.student_id
        LEFT JOIN courses c ON c.id = g.course_id
        ORDER BY g.changed_at DESC, g.id DESC
        LIMIT ?`)
	records := []models.GradeAuditRecord{}
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list grade audit: %w", err)
	}
	return records, nil
}

// ListByPair returns every entry captured for a student and course, newest
// first. Entries survive withdrawal and parent deletion.
func (r *GradeAuditRepository) ListByPair(ctx context.Context, studentID, courseID string) ([]models.GradeAuditEntry, error) {
	query := r.db.Rebind(`SELECT id, enrollment_id, student_id, course_id, old_grade, new_grade, changed_at, actor
        FROM grade_audit_log
        WHERE student_id = ? AND course_id = ?
        ORDER BY changed_at DESC, id DESC`)
	entries := []models.GradeAuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list grade history: %w", err)
	}
	return entries, nil
}
