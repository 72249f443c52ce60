package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GradeAuditEntry records a single grade transition. Entries are append-only
// and outlive the enrollment they reference.
type GradeAuditEntry struct {
	ID           int64               `db:"id" json:"id"`
	EnrollmentID string              `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string              `db:"student_id" json:"student_id"`
	CourseID     string              `db:"course_id" json:"course_id"`
	OldGrade     decimal.NullDecimal `db:"old_grade" json:"old_grade"`
	NewGrade     decimal.NullDecimal `db:"new_grade" json:"new_grade"`
	ChangedAt    time.Time           `db:"changed_at" json:"changed_at"`
	Actor        string              `db:"actor" json:"actor"`
}

// GradeAuditRecord is an audit entry joined with the current student and
// course names. The names are nil once the referenced row is deleted.
type GradeAuditRecord struct {
	GradeAuditEntry
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
	CourseName  *string `db:"course_name" json:"course_name,omitempty"`
}

// StudentDisplay returns the current student name or the captured identifier.
func (r GradeAuditRecord) StudentDisplay() string {
	if r.StudentName != nil && *r.StudentName != "" {
		return *r.StudentName
	}
	return "SID:" + r.StudentID
}

// CourseDisplay returns the current course name or the captured identifier.
func (r GradeAuditRecord) CourseDisplay() string {
	if r.CourseName != nil && *r.CourseName != "" {
		return *r.CourseName
	}
	return "CID:" + r.CourseID
}

// GradeAuditView is the rendered form of an audit record.
type GradeAuditView struct {
	ID           int64               `json:"id"`
	EnrollmentID string              `json:"enrollment_id"`
	StudentID    string              `json:"student_id"`
	CourseID     string              `json:"course_id"`
	Student      string              `json:"student"`
	Course       string              `json:"course"`
	OldGrade     decimal.NullDecimal `json:"old_grade" swaggertype:"number"`
	NewGrade     decimal.NullDecimal `json:"new_grade" swaggertype:"number"`
	ChangedAt    time.Time           `json:"changed_at"`
	Actor        string              `json:"actor"`
}

// View resolves display names for rendering.
func (r GradeAuditRecord) View() GradeAuditView {
	return GradeAuditView{
		ID:           r.ID,
		EnrollmentID: r.EnrollmentID,
		StudentID:    r.StudentID,
		CourseID:     r.CourseID,
		Student:      r.StudentDisplay(),
		Course:       r.CourseDisplay(),
		OldGrade:     r.OldGrade,
		NewGrade:     r.NewGrade,
		ChangedAt:    r.ChangedAt,
		Actor:        r.Actor,
	}
}
