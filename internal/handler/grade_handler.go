package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/response"
)

type gradeRegister interface {
	SetGrade(ctx context.Context, studentID, courseID string, grade decimal.NullDecimal) (*models.GradeAuditEntry, error)
}

type gradeHistory interface {
	History(ctx context.Context, studentID, courseID string) ([]models.GradeAuditEntry, error)
}

// GradeHandler exposes grade mutation and per-enrollment history.
type GradeHandler struct {
	grades  gradeRegister
	history gradeHistory
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeRegister, history gradeHistory) *GradeHandler {
	return &GradeHandler{grades: grades, history: history}
}

// SetGrade godoc
// @Summary Set or clear the grade of an enrollment
// @Description Send {"grade": 88.5} to set and {"grade": null} to clear. Every call is audited.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Param payload body service.SetGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/courses/{courseId}/grade [put]
func (h *GradeHandler) SetGrade(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, bindError(err))
		return
	}
	raw, ok := body["grade"]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grade is required; send null to clear it"))
		return
	}
	var grade decimal.NullDecimal
	if err := grade.UnmarshalJSON(raw); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "grade must be a number or null"))
		return
	}

	entry, err := h.grades.SetGrade(c.Request.Context(), c.Param("id"), c.Param("courseId"), grade)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// History godoc
// @Summary List the grade audit entries of one enrollment pair
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/courses/{courseId}/grade-history [get]
func (h *GradeHandler) History(c *gin.Context) {
	entries, err := h.history.History(c.Request.Context(), c.Param("id"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
