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

type courseDirectory interface {
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, req service.CreateCourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string) (int64, error)
}

// CourseHandler exposes course directory endpoints.
type CourseHandler struct {
	courses courseDirectory
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseDirectory) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses with live enrollment counts
// @Tags Courses
// @Produce json
// @Param search query string false "Search by name or instructor"
// @Param department query string false "Filter by department"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "name, department, credits or enrollment_count"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.CourseFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Department: strings.TrimSpace(c.Query("department")),
		Page:       page,
		PageSize:   size,
		SortBy:     c.Query("sort"),
		SortOrder:  c.Query("order"),
	}
	courses, pagination, err := h.courses.ListCourses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Delete godoc
// @Summary Delete a course and withdraw every enrolled student
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	removed, err := h.courses.DeleteCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "enrollments_removed": removed}, nil)
}
