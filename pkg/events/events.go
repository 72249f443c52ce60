package events

import (
	"context"
	"time"
)

// Event types emitted after a ledger change commits.
const (
	TypeEnrollmentCreated   = "enrollment.created"
	TypeEnrollmentWithdrawn = "enrollment.withdrawn"
	TypeEnrollmentCascaded  = "enrollment.cascaded"
	TypeGradeChanged        = "grade.changed"
)

// Event is the envelope published for every committed ledger change.
type Event struct {
	Type         string    `json:"type"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	StudentID    string    `json:"student_id,omitempty"`
	CourseID     string    `json:"course_id,omitempty"`
	OldGrade     *string   `json:"old_grade,omitempty"`
	NewGrade     *string   `json:"new_grade,omitempty"`
	Removed      int64     `json:"removed,omitempty"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Key returns the partition key. Events for one student stay ordered.
func (e Event) Key() string {
	if e.StudentID != "" {
		return e.StudentID
	}
	return e.CourseID
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
