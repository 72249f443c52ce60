package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/service"
	"github.com/noah-isme/enrollment-ledger/pkg/response"
)

type auditReader interface {
	Recent(ctx context.Context, limit int) ([]models.GradeAuditView, error)
	Export(ctx context.Context, format string, limit int) (*service.ExportResult, error)
}

// AuditHandler exposes the grade audit trail.
type AuditHandler struct {
	audit auditReader
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit auditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Recent godoc
// @Summary List the most recent grade changes
// @Tags Audit
// @Produce json
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Router /audit/grades [get]
func (h *AuditHandler) Recent(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	views, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil, map[string]interface{}{"count": len(views)})
}

// Export godoc
// @Summary Download the recent grade changes
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /audit/grades/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.audit.Export(c.Request.Context(), c.Query("format"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, result.Filename, result.ContentType, result.Body)
}
