package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Gender         string    `db:"gender" json:"gender"`
	EnrollmentYear int       `db:"enrollment_year" json:"enrollment_year"`
	Email          string    `db:"email" json:"email"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
