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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	var args []interface{}
	if filter.Search != "" {
		base += " WHERE (LOWER(s.full_name) LIKE ? OR LOWER(s.email) LIKE ?)"
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	allowedSorts := map[string]string{
		"full_name":       "s.full_name",
		"email":           "s.email",
		"enrollment_year": "s.enrollment_year",
		"created_at":      "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.full_name, s.gender, s.enrollment_year, s.email, s.created_at
        %s ORDER BY %s %s, s.id LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := r.db.Rebind(`SELECT id, full_name, gender, enrollment_year, email, created_at FROM students WHERE id = ?`)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Exists reports whether a student with the given ID is present.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind("SELECT 1 FROM students WHERE id = ? LIMIT 1"), id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// DisplayName returns the student's current name; ok is false when absent.
func (r *StudentRepository) DisplayName(ctx context.Context, id string) (string, bool, error) {
	var name string
	if err := r.db.GetContext(ctx, &name, r.db.Rebind("SELECT full_name FROM students WHERE id = ?"), id); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load student name: %w", err)
	}
	return name, true, nil
}

// ExistsByEmail checks if a student with given email exists optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE LOWER(email) = LOWER(?)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> ?"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(query+" LIMIT 1"), args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, full_name, gender, enrollment_year, email, created_at)
        VALUES (:id, :full_name, :gender, :enrollment_year, :email, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return wrapWrite("create student", err)
	}
	return nil
}

// UpdateEmail changes a student's email and returns the number of rows touched.
func (r *StudentRepository) UpdateEmail(ctx context.Context, id, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE students SET email = ? WHERE id = ?"), email, id)
	if err != nil {
		return 0, wrapWrite("update student email", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update student email rows: %w", err)
	}
	return affected, nil
}

// Delete removes the student row within ext. Dependent enrollments must
// already be gone.
func (r *StudentRepository) Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error) {
	res, err := ext.ExecContext(ctx, ext.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return 0, wrapWrite("delete student", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student rows: %w", err)
	}
	return affected, nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
