package service

import (
	"context"

	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

// identityLookup is satisfied by the student and course repositories.
type identityLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
	DisplayName(ctx context.Context, id string) (string, bool, error)
}

// IdentityOracle answers existence and display questions about students and
// courses on behalf of the ledger.
type IdentityOracle struct {
	students identityLookup
	courses  identityLookup
}

// NewIdentityOracle constructs an oracle over the directory repositories.
func NewIdentityOracle(students, courses identityLookup) *IdentityOracle {
	return &IdentityOracle{students: students, courses: courses}
}

// StudentExists reports whether the student is currently registered.
func (o *IdentityOracle) StudentExists(ctx context.Context, id string) (bool, error) {
	ok, err := o.students.Exists(ctx, id)
	if err != nil {
		return false, appErrors.Unavailable(err, "failed to check student")
	}
	return ok, nil
}

// CourseExists reports whether the course is currently offered.
func (o *IdentityOracle) CourseExists(ctx context.Context, id string) (bool, error) {
	ok, err := o.courses.Exists(ctx, id)
	if err != nil {
		return false, appErrors.Unavailable(err, "failed to check course")
	}
	return ok, nil
}

// StudentDisplayName returns the student's name; ok is false once deleted.
func (o *IdentityOracle) StudentDisplayName(ctx context.Context, id string) (string, bool, error) {
	name, ok, err := o.students.DisplayName(ctx, id)
	if err != nil {
		return "", false, appErrors.Unavailable(err, "failed to load student name")
	}
	return name, ok, nil
}

// CourseDisplayName returns the course's name; ok is false once deleted.
func (o *IdentityOracle) CourseDisplayName(ctx context.Context, id string) (string, bool, error) {
	name, ok, err := o.courses.DisplayName(ctx, id)
	if err != nil {
		return "", false, appErrors.Unavailable(err, "failed to load course name")
	}
	return name, ok, nil
}
