package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

type exportAPI interface {
	CSV(ctx context.Context, sessionID, courseID string, sectionID *string) ([]byte, error)
	PDF(ctx context.Context, sessionID, courseID string, sectionID *string) ([]byte, error)
}

// ExportHandler serves the weekly grid as downloadable CSV or PDF.
type ExportHandler struct {
	exports exportAPI
}

func NewExportHandler(exports exportAPI) *ExportHandler {
	return &ExportHandler{exports: exports}
}

func (h *ExportHandler) Register(r *gin.RouterGroup) {
	r.GET("/timetable/export/csv", h.csv)
	r.GET("/timetable/export/pdf", h.pdf)
}

func (h *ExportHandler) csv(c *gin.Context) {
	sessionID, courseID, ok := h.scope(c)
	if !ok {
		return
	}
	payload, err := h.exports.CSV(c.Request.Context(), sessionID, courseID, optionalQuery(c, "section_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

func (h *ExportHandler) pdf(c *gin.Context) {
	sessionID, courseID, ok := h.scope(c)
	if !ok {
		return
	}
	payload, err := h.exports.PDF(c.Request.Context(), sessionID, courseID, optionalQuery(c, "section_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (h *ExportHandler) scope(c *gin.Context) (string, string, bool) {
	sessionID := c.Query("session_id")
	courseID := c.Query("course_id")
	if sessionID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id and course_id are required"))
		return "", "", false
	}
	return sessionID, courseID, true
}
