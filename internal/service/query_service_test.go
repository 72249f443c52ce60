package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

func TestCoursesForUnknownStudentIsEmpty(t *testing.T) {
	e := newEngine()
	courses, err := e.queries.CoursesForStudent(context.Background(), "ghost")
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestQueryProjections(t *testing.T) {
	e := newEngine()
	e.store.addStudent("S1", "Alice")
	e.store.addStudent("S2", "Bob")
	e.store.addCourse("C1", "Math")
	e.store.addCourse("C2", "Art")
	for _, pair := range [][2]string{{"S1", "C1"}, {"S1", "C2"}, {"S2", "C1"}} {
		_, err := e.ledger.Enroll(context.Background(), EnrollRequest{StudentID: pair[0], CourseID: pair[1]})
		require.NoError(t, err)
	}
	_, err := e.grades.SetGrade(context.Background(), "S2", "C1", gradeOf("64"))
	require.NoError(t, err)

	courses, err := e.queries.CoursesForStudent(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Art", courses[0].CourseName)

	roster, err := e.queries.StudentsForCourse(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Bob", roster[1].FullName)
	assert.Equal(t, "64", roster[1].Grade.Decimal.String())

	count, err := e.queries.EnrollmentCount(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = e.queries.EnrollmentCount(context.Background(), "C9")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueryRejectsBlankIdentifiers(t *testing.T) {
	e := newEngine()
	_, err := e.queries.StudentsForCourse(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = e.queries.EnrollmentCount(context.Background(), " ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
