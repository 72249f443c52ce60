package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-ledger/internal/app"
	"github.com/noah-isme/enrollment-ledger/internal/service"
	"github.com/noah-isme/enrollment-ledger/pkg/database"
	"github.com/noah-isme/enrollment-ledger/pkg/fixtures"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			cfg.Database.AutoMigrate = true
			db, err := database.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitUnavailable, "failed to migrate", err)
			}
			defer db.Close()
			return opts.output(cmd).Success(map[string]string{"driver": cfg.Database.Driver, "schema": "up to date"}, func(w io.Writer) {
				fmt.Fprintf(w, "Schema up to date (%s)\n", cfg.Database.Driver)
			})
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load students, courses, enrollments and grades from a YAML fixture",
		Long: `Load a YAML fixture through the ledger so grades are audited.

Rows that already exist are skipped, which makes seeding repeatable.

Examples:
  enrollctl seed -f fixtures/campus.yaml
  enrollctl seed -f fixtures/campus.yaml --actor import-bot --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := fixtures.LoadFile(file)
			if err != nil {
				return WrapExitError(ExitUsage, "failed to read fixture", err)
			}
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				report, err := c.Seeder.Apply(ctx, doc)
				if err != nil {
					return err
				}
				return out.Success(report, func(w io.Writer) {
					fmt.Fprintf(w, "Students created:    %d\n", report.StudentsCreated)
					fmt.Fprintf(w, "Courses created:     %d\n", report.CoursesCreated)
					fmt.Fprintf(w, "Enrollments created: %d\n", report.EnrollmentsCreated)
					fmt.Fprintf(w, "Grades set:          %d\n", report.GradesSet)
					fmt.Fprintf(w, "Skipped:             %d\n", report.Skipped)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewEnrollCommand creates the enroll command.
func NewEnrollCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll STUDENT_ID COURSE_ID",
		Short: "Enroll a student in a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				enrollment, err := c.Ledger.Enroll(ctx, service.EnrollRequest{StudentID: args[0], CourseID: args[1]})
				if err != nil {
					return err
				}
				return out.Success(enrollment, func(w io.Writer) {
					fmt.Fprintf(w, "Enrolled %s in %s (%s)\n", enrollment.StudentID, enrollment.CourseID, enrollment.ID)
				})
			})
		},
	}
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw STUDENT_ID COURSE_ID",
		Short: "Withdraw a student from a course",
		Long:  "Withdraw a student from a course. Grade audit entries of the enrollment are kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				if err := c.Ledger.Withdraw(ctx, args[0], args[1]); err != nil {
					return err
				}
				return out.Success(map[string]string{"student_id": args[0], "course_id": args[1]}, func(w io.Writer) {
					fmt.Fprintf(w, "Withdrew %s from %s\n", args[0], args[1])
				})
			})
		},
	}
}

// NewGradeCommand creates the grade command group.
func NewGradeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Set or clear grades",
	}

	set := &cobra.Command{
		Use:   "set STUDENT_ID COURSE_ID GRADE",
		Short: "Set the grade of an enrollment",
		Example: `  enrollctl grade set S1 C1 88.5 --actor registrar@campus.test
  enrollctl grade set S1 C1 null`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			grade, err := service.ParseGrade(args[2])
			if err != nil {
				return err
			}
			return setGrade(opts, cmd, args[0], args[1], grade)
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear STUDENT_ID COURSE_ID",
		Short: "Clear the grade of an enrollment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setGrade(opts, cmd, args[0], args[1], decimal.NullDecimal{})
		},
	}

	cmd.AddCommand(set, clearCmd)
	return cmd
}

func setGrade(opts *RootOptions, cmd *cobra.Command, studentID, courseID string, grade decimal.NullDecimal) error {
	return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
		entry, err := c.Grades.SetGrade(ctx, studentID, courseID, grade)
		if err != nil {
			return err
		}
		return out.Success(entry, func(w io.Writer) {
			fmt.Fprintf(w, "Grade %s/%s: %s -> %s (audit #%d by %s)\n",
				studentID, courseID, gradeText(entry.OldGrade), gradeText(entry.NewGrade), entry.ID, entry.Actor)
		})
	})
}

// NewCoursesCommand creates the courses command.
func NewCoursesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "courses STUDENT_ID",
		Short: "List the courses a student is enrolled in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				courses, err := c.Queries.CoursesForStudent(ctx, args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(courses))
				for _, course := range courses {
					rows = append(rows, []string{course.CourseID, course.CourseName, course.Instructor, strconv.Itoa(course.Credits), gradeText(course.Grade)})
				}
				return out.Table(courses, []string{"COURSE", "NAME", "INSTRUCTOR", "CREDITS", "GRADE"}, rows)
			})
		},
	}
}

// NewRosterCommand creates the roster command.
func NewRosterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roster COURSE_ID",
		Short: "List the students enrolled in a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				students, err := c.Queries.StudentsForCourse(ctx, args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(students))
				for _, student := range students {
					rows = append(rows, []string{student.StudentID, student.FullName, student.Email, gradeText(student.Grade)})
				}
				return out.Table(students, []string{"STUDENT", "NAME", "EMAIL", "GRADE"}, rows)
			})
		},
	}
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count COURSE_ID",
		Short: "Count current enrollments of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				count, err := c.Queries.EnrollmentCount(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]interface{}{"course_id": args[0], "count": count}, func(w io.Writer) {
					fmt.Fprintln(w, count)
				})
			})
		},
	}
}

func gradeText(grade decimal.NullDecimal) string {
	if !grade.Valid {
		return "-"
	}
	return grade.Decimal.String()
}
