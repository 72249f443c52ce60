package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/fixtures"
)

type directoryWriter interface {
	CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error)
	CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error)
}

type enroller interface {
	Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error)
}

type gradeSetter interface {
	SetGrade(ctx context.Context, studentID, courseID string, grade decimal.NullDecimal) (*models.GradeAuditEntry, error)
}

// SeedReport counts what a seed run created and what already existed.
type SeedReport struct {
	StudentsCreated    int `json:"students_created"`
	CoursesCreated     int `json:"courses_created"`
	EnrollmentsCreated int `json:"enrollments_created"`
	GradesSet          int `json:"grades_set"`
	Skipped            int `json:"skipped"`
}

// SeedService loads fixture documents through the engine so that seeded
// grades are audited like any other change.
type SeedService struct {
	directory directoryWriter
	ledger    enroller
	grades    gradeSetter
	logger    *zap.Logger
}

// NewSeedService constructs SeedService.
func NewSeedService(directory directoryWriter, ledger enroller, grades gradeSetter, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{directory: directory, ledger: ledger, grades: grades, logger: logger}
}

// Apply creates every record in doc. Records that already exist are skipped,
// so applying the same document twice is safe; grades are set again and
// audited again.
func (s *SeedService) Apply(ctx context.Context, doc *fixtures.Document) (SeedReport, error) {
	var report SeedReport
	for _, st := range doc.Students {
		_, err := s.directory.CreateStudent(ctx, CreateStudentRequest{
			ID:             st.ID,
			FullName:       st.FullName,
			Gender:         st.Gender,
			EnrollmentYear: st.EnrollmentYear,
			Email:          st.Email,
		})
		if skip, err := s.classify(err, "student "+st.ID, &report); err != nil {
			return report, err
		} else if !skip {
			report.StudentsCreated++
		}
	}
	for _, c := range doc.Courses {
		_, err := s.directory.CreateCourse(ctx, CreateCourseRequest{
			ID:         c.ID,
			Name:       c.Name,
			Instructor: c.Instructor,
			Credits:    c.Credits,
			Department: c.Department,
		})
		if skip, err := s.classify(err, "course "+c.ID, &report); err != nil {
			return report, err
		} else if !skip {
			report.CoursesCreated++
		}
	}
	for _, e := range doc.Enrollments {
		_, err := s.ledger.Enroll(ctx, EnrollRequest{StudentID: e.Student, CourseID: e.Course})
		if skip, err := s.classify(err, fmt.Sprintf("enrollment %s/%s", e.Student, e.Course), &report); err != nil {
			return report, err
		} else if !skip {
			report.EnrollmentsCreated++
		}
		if e.Grade == nil {
			continue
		}
		grade, err := ParseGrade(*e.Grade)
		if err != nil {
			return report, err
		}
		if _, err := s.grades.SetGrade(ctx, e.Student, e.Course, grade); err != nil {
			return report, err
		}
		report.GradesSet++
	}
	s.logger.Info("fixtures applied",
		zap.Int("students", report.StudentsCreated),
		zap.Int("courses", report.CoursesCreated),
		zap.Int("enrollments", report.EnrollmentsCreated),
		zap.Int("grades", report.GradesSet),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *SeedService) classify(err error, what string, report *SeedReport) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, appErrors.ErrConflict) {
		s.logger.Debug("fixture record exists", zap.String("record", what))
		report.Skipped++
		return true, nil
	}
	return false, fmt.Errorf("seed %s: %w", what, err)
}
