package models

import "time"

// Course is a unit students can enroll in.
type Course struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Instructor string    `db:"instructor" json:"instructor"`
	Credits    int       `db:"credits" json:"credits"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CourseSummary adds the live enrollment count used by list views.
type CourseSummary struct {
	Course
	EnrollmentCount int `db:"enrollment_count" json:"enrollment_count"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Search     string
	Department string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
