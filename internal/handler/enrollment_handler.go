package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/service"
	"github.com/noah-isme/enrollment-ledger/pkg/response"
)

type enrollmentLedger interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.Enrollment, error)
	Withdraw(ctx context.Context, studentID, courseID string) error
}

type enrollmentQueries interface {
	CoursesForStudent(ctx context.Context, studentID string) ([]models.StudentCourse, error)
	StudentsForCourse(ctx context.Context, courseID string) ([]models.CourseStudent, error)
	EnrollmentCount(ctx context.Context, courseID string) (int, error)
}

// EnrollmentHandler exposes enrollment lifecycle and read endpoints.
type EnrollmentHandler struct {
	ledger  enrollmentLedger
	queries enrollmentQueries
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(ledger enrollmentLedger, queries enrollmentQueries) *EnrollmentHandler {
	return &EnrollmentHandler{ledger: ledger, queries: queries}
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first response for retries"
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	enrollment, err := h.ledger.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw a student from a course
// @Tags Enrollments
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/courses/{courseId} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	if err := h.ledger.Withdraw(c.Request.Context(), c.Param("id"), c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CoursesForStudent godoc
// @Summary List the courses a student is enrolled in
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/courses [get]
func (h *EnrollmentHandler) CoursesForStudent(c *gin.Context) {
	courses, err := h.queries.CoursesForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil, map[string]interface{}{"count": len(courses)})
}

// StudentsForCourse godoc
// @Summary List the roster of a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *EnrollmentHandler) StudentsForCourse(c *gin.Context) {
	students, err := h.queries.StudentsForCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil, map[string]interface{}{"count": len(students)})
}

// EnrollmentCount godoc
// @Summary Count current enrollments of a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment-count [get]
func (h *EnrollmentHandler) EnrollmentCount(c *gin.Context) {
	count, err := h.queries.EnrollmentCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course_id": c.Param("id"), "count": count}, nil)
}
