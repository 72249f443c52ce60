package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-ledger/internal/app"
	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/service"
)

// NewStudentCommand creates the student command group.
func NewStudentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage the student directory",
	}

	var req service.CreateStudentRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				student, err := c.Directory.CreateStudent(ctx, req)
				if err != nil {
					return err
				}
				return out.Success(student, func(w io.Writer) {
					fmt.Fprintf(w, "Created student %s (%s)\n", student.ID, student.FullName)
				})
			})
		},
	}
	add.Flags().StringVar(&req.ID, "id", "", "student ID (generated when empty)")
	add.Flags().StringVar(&req.FullName, "name", "", "full name (required)")
	add.Flags().StringVar(&req.Email, "email", "", "email address (required)")
	add.Flags().StringVar(&req.Gender, "gender", "", "gender")
	add.Flags().IntVar(&req.EnrollmentYear, "year", 0, "enrollment year (required)")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("year")

	var filter models.StudentFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				students, pagination, err := c.Directory.ListStudents(ctx, filter)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(students))
				for _, s := range students {
					rows = append(rows, []string{s.ID, s.FullName, s.Email, strconv.Itoa(s.EnrollmentYear)})
				}
				payload := map[string]interface{}{"students": students, "pagination": pagination}
				return out.Table(payload, []string{"ID", "NAME", "EMAIL", "YEAR"}, rows)
			})
		},
	}
	list.Flags().StringVar(&filter.Search, "search", "", "match name or email")
	list.Flags().IntVar(&filter.Page, "page", 1, "page")
	list.Flags().IntVar(&filter.PageSize, "limit", 20, "page size")
	list.Flags().StringVar(&filter.SortBy, "sort", "full_name", "sort column")
	list.Flags().StringVar(&filter.SortOrder, "order", "asc", "asc or desc")

	del := &cobra.Command{
		Use:   "delete STUDENT_ID",
		Short: "Delete a student and withdraw every enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				removed, err := c.Directory.DeleteStudent(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]interface{}{"id": args[0], "enrollments_removed": removed}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted student %s (%d enrollments removed)\n", args[0], removed)
				})
			})
		},
	}

	setEmail := &cobra.Command{
		Use:   "set-email STUDENT_ID EMAIL",
		Short: "Change a student's email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				student, err := c.Directory.UpdateStudentEmail(ctx, args[0], service.UpdateEmailRequest{Email: args[1]})
				if err != nil {
					return err
				}
				return out.Success(student, func(w io.Writer) {
					fmt.Fprintf(w, "Student %s email is now %s\n", student.ID, student.Email)
				})
			})
		},
	}

	cmd.AddCommand(add, list, del, setEmail)
	return cmd
}

// NewCourseCommand creates the course command group.
func NewCourseCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage the course directory",
	}

	var req service.CreateCourseRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				course, err := c.Directory.CreateCourse(ctx, req)
				if err != nil {
					return err
				}
				return out.Success(course, func(w io.Writer) {
					fmt.Fprintf(w, "Created course %s (%s)\n", course.ID, course.Name)
				})
			})
		},
	}
	add.Flags().StringVar(&req.ID, "id", "", "course ID (generated when empty)")
	add.Flags().StringVar(&req.Name, "name", "", "course name (required)")
	add.Flags().StringVar(&req.Instructor, "instructor", "", "instructor")
	add.Flags().IntVar(&req.Credits, "credits", 0, "credit hours")
	add.Flags().StringVar(&req.Department, "department", "", "department")
	_ = add.MarkFlagRequired("name")

	var filter models.CourseFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List courses with their enrollment counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				courses, pagination, err := c.Directory.ListCourses(ctx, filter)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(courses))
				for _, course := range courses {
					rows = append(rows, []string{course.ID, course.Name, course.Instructor, course.Department, strconv.Itoa(course.EnrollmentCount)})
				}
				payload := map[string]interface{}{"courses": courses, "pagination": pagination}
				return out.Table(payload, []string{"ID", "NAME", "INSTRUCTOR", "DEPARTMENT", "ENROLLED"}, rows)
			})
		},
	}
	list.Flags().StringVar(&filter.Search, "search", "", "match name or instructor")
	list.Flags().StringVar(&filter.Department, "department", "", "filter by department")
	list.Flags().IntVar(&filter.Page, "page", 1, "page")
	list.Flags().IntVar(&filter.PageSize, "limit", 20, "page size")
	list.Flags().StringVar(&filter.SortBy, "sort", "name", "sort column")
	list.Flags().StringVar(&filter.SortOrder, "order", "asc", "asc or desc")

	del := &cobra.Command{
		Use:   "delete COURSE_ID",
		Short: "Delete a course and withdraw every enrolled student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				removed, err := c.Directory.DeleteCourse(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(map[string]interface{}{"id": args[0], "enrollments_removed": removed}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted course %s (%d enrollments removed)\n", args[0], removed)
				})
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}
