package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-ledger/internal/models"
)

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses with their live enrollment counts.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(c.name) LIKE ? OR LOWER(c.instructor) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Department != "" {
		conditions = append(conditions, "c.department = ?")
		args = append(args, filter.Department)
	}
	base := "FROM courses c"
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":             "c.name",
		"department":       "c.department",
		"credits":          "c.credits",
		"enrollment_count": "enrollment_count",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.name, c.instructor, c.credits, c.department, c.created_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollment_count
        %s ORDER BY %s %s, c.id LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := r.db.Rebind(`SELECT id, name, instructor, credits, department, created_at FROM courses WHERE id = ?`)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Exists reports whether a course with the given ID is present.
func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind("SELECT 1 FROM courses WHERE id = ? LIMIT 1"), id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course: %w", err)
	}
	return true, nil
}

// DisplayName returns the course's current name; ok is false when absent.
func (r *CourseRepository) DisplayName(ctx context.Context, id string) (string, bool, error) {
	var name string
	if err := r.db.GetContext(ctx, &name, r.db.Rebind("SELECT name FROM courses WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load course name: %w", err)
	}
	return name, true, nil
}

// ExistsByName checks for a course with the same name, case-insensitively.
func (r *CourseRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind("SELECT 1 FROM courses WHERE LOWER(name) = LOWER(?) LIMIT 1"), name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course name: %w", err)
	}
	return true, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, name, instructor, credits, department, created_at)
        VALUES (:id, :name, :instructor, :credits, :department, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return wrapWrite("create course", err)
	}
	return nil
}

// Delete removes the course row within ext. Dependent enrollments must
// already be gone.
func (r *CourseRepository) Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error) {
	res, err := ext.ExecContext(ctx, ext.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return 0, wrapWrite("delete course", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete course rows: %w", err)
	}
	return affected, nil
}
