package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Enrollment links one student to one course. The (StudentID, CourseID) pair
// is unique; ID is the surrogate key referenced by audit entries.
type Enrollment struct {
	ID         string              `db:"id" json:"id"`
	StudentID  string              `db:"student_id" json:"student_id"`
	CourseID   string              `db:"course_id" json:"course_id"`
	EnrolledAt time.Time           `db:"enrolled_at" json:"enrolled_at"`
	Grade      decimal.NullDecimal `db:"grade" json:"grade"`
}

// StudentCourse is one row of a student's course list.
type StudentCourse struct {
	CourseID   string              `db:"course_id" json:"course_id"`
	CourseName string              `db:"course_name" json:"course_name"`
	Instructor string              `db:"instructor" json:"instructor"`
	Credits    int                 `db:"credits" json:"credits"`
	Department string              `db:"department" json:"department"`
	Grade      decimal.NullDecimal `db:"grade" json:"grade"`
	EnrolledAt time.Time           `db:"enrolled_at" json:"enrolled_at"`
}

// CourseStudent is one row of a course roster.
type CourseStudent struct {
	StudentID      string              `db:"student_id" json:"student_id"`
	FullName       string              `db:"full_name" json:"full_name"`
	Gender         string              `db:"gender" json:"gender"`
	EnrollmentYear int                 `db:"enrollment_year" json:"enrollment_year"`
	Email          string              `db:"email" json:"email"`
	Grade          decimal.NullDecimal `db:"grade" json:"grade"`
	EnrolledAt     time.Time           `db:"enrolled_at" json:"enrolled_at"`
}
