package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

func enrolledEngine(t *testing.T) *engine {
	t.Helper()
	e := newEngine()
	e.store.addStudent("S1", "Alice")
	e.store.addCourse("C1", "Math")
	_, err := e.ledger.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseID: "C1"})
	require.NoError(t, err)
	return e
}

func TestSetGradeAuditsOldAndNew(t *testing.T) {
	e := enrolledEngine(t)

	first, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("71.5"))
	require.NoError(t, err)
	assert.False(t, first.OldGrade.Valid)
	assert.True(t, first.NewGrade.Decimal.Equal(decimal.RequireFromString("71.5")))

	second, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("88"))
	require.NoError(t, err)
	assert.True(t, second.OldGrade.Decimal.Equal(decimal.RequireFromString("71.5")))
	assert.True(t, second.NewGrade.Decimal.Equal(decimal.NewFromInt(88)))

	assert.Len(t, e.store.audit, 2)
	stored := e.store.enrollments[pairKey("S1", "C1")]
	assert.True(t, stored.Grade.Decimal.Equal(decimal.NewFromInt(88)))
}

func TestSetGradeUnchangedValueStillAudited(t *testing.T) {
	e := enrolledEngine(t)

	_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("90"))
	require.NoError(t, err)
	entry, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("90.00"))
	require.NoError(t, err)

	assert.True(t, entry.OldGrade.Decimal.Equal(entry.NewGrade.Decimal))
	assert.Len(t, e.store.audit, 2)
}

func TestSetGradeClearsGrade(t *testing.T) {
	e := enrolledEngine(t)
	_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("60"))
	require.NoError(t, err)

	entry, err := e.grades.SetGrade(context.Background(), "S1", "C1", decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, entry.OldGrade.Valid)
	assert.False(t, entry.NewGrade.Valid)
	assert.False(t, e.store.enrollments[pairKey("S1", "C1")].Grade.Valid)
}

func TestSetGradeMissingEnrollment(t *testing.T) {
	e := enrolledEngine(t)

	_, err := e.grades.SetGrade(context.Background(), "S1", "C2", gradeOf("50"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, e.store.audit)
}

func TestSetGradeRejectsOutOfRange(t *testing.T) {
	e := enrolledEngine(t)

	for _, v := range []string{"-0.01", "100.01", "1000"} {
		_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf(v))
		assert.ErrorIs(t, err, appErrors.ErrValidation, v)
	}
	for _, v := range []string{"0", "100"} {
		_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf(v))
		assert.NoError(t, err, v)
	}
	assert.Len(t, e.store.audit, 2)
}

func TestSetGradeRejectsExcessPrecision(t *testing.T) {
	e := enrolledEngine(t)
	_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("88.125"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSetGradeConfiguredBounds(t *testing.T) {
	e := enrolledEngine(t)
	grades := NewGradeService(e.store, memAudit{e.store}, e.store, nil, config.GradeConfig{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(4)}, nil, nil)

	_, err := grades.SetGrade(context.Background(), "S1", "C1", gradeOf("4.5"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = grades.SetGrade(context.Background(), "S1", "C1", gradeOf("3.75"))
	assert.NoError(t, err)

	explicit := NewGradeService(e.store, memAudit{e.store}, e.store, nil, config.GradeConfig{}, nil, nil)
	assert.True(t, explicit.Bounds().Max.IsZero())
	_, err = explicit.SetGrade(context.Background(), "S1", "C1", gradeOf("50"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSetGradeAppendFailureRollsBack(t *testing.T) {
	e := enrolledEngine(t)
	_, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("70"))
	require.NoError(t, err)
	e.store.appendErr = errors.New("write failed")

	_, err = e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("95"))
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)

	stored := e.store.enrollments[pairKey("S1", "C1")]
	assert.True(t, stored.Grade.Decimal.Equal(decimal.NewFromInt(70)))
	assert.Len(t, e.store.audit, 1)
}

func TestSetGradeRecordsActor(t *testing.T) {
	e := enrolledEngine(t)

	entry, err := e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("50"))
	require.NoError(t, err)
	assert.Equal(t, actor.System, entry.Actor)

	e.grades.WithDefaultActor("desk-app")
	entry, err = e.grades.SetGrade(context.Background(), "S1", "C1", gradeOf("51"))
	require.NoError(t, err)
	assert.Equal(t, "desk-app", entry.Actor)

	ctx := actor.With(context.Background(), "dean@example.edu")
	entry, err = e.grades.SetGrade(ctx, "S1", "C1", gradeOf("52"))
	require.NoError(t, err)
	assert.Equal(t, "dean@example.edu", entry.Actor)
}

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade(" 92.5 ")
	require.NoError(t, err)
	assert.True(t, g.Valid)
	assert.Equal(t, "92.5", g.Decimal.String())

	for _, raw := range []string{"", "null", "NONE"} {
		g, err = ParseGrade(raw)
		require.NoError(t, err)
		assert.False(t, g.Valid)
	}

	_, err = ParseGrade("A+")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
