package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/service"
	"github.com/noah-isme/enrollment-ledger/pkg/response"
)

type studentDirectory interface {
	ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	CreateStudent(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error)
	UpdateStudentEmail(ctx context.Context, id string, req service.UpdateEmailRequest) (*models.Student, error)
	DeleteStudent(ctx context.Context, id string) (int64, error)
}

// StudentHandler exposes student directory endpoints.
type StudentHandler struct {
	students studentDirectory
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentDirectory) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "full_name, email, enrollment_year or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.StudentFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      page,
		PageSize:  size,
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	students, pagination, err := h.students.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	student, err := h.students.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// UpdateEmail godoc
// @Summary Change a student's email
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateEmailRequest true "Email payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/email [patch]
func (h *StudentHandler) UpdateEmail(c *gin.Context) {
	var req service.UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	student, err := h.students.UpdateStudentEmail(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete a student and withdraw every enrollment
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	removed, err := h.students.DeleteStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "enrollments_removed": removed}, nil)
}
