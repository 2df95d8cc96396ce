package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

// timetableAPI is the slice of the timetable service this handler needs.
type timetableAPI interface {
	CreateEntry(ctx context.Context, actorID *string, req dto.CreateEntryRequest) (*models.TimetableEntry, error)
	GetEntry(ctx context.Context, id string) (*models.TimetableEntry, error)
	UpdateEntry(ctx context.Context, actorID *string, id string, req dto.UpdateEntryRequest) (*models.TimetableEntry, error)
	DeleteEntry(ctx context.Context, actorID *string, id string) error
	Grid(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error)
	StaffGrid(ctx context.Context, sessionID, staffID string) ([]models.TimetableEntry, error)
	Coverage(ctx context.Context, sessionID string) ([]models.CoverageRow, error)
	EraseSchedule(ctx context.Context, actorID *string, sessionID string) (*dto.EraseSummary, error)
}

// TimetableHandler exposes manual placement and grid read endpoints.
type TimetableHandler struct {
	timetable timetableAPI
}

func NewTimetableHandler(timetable timetableAPI) *TimetableHandler {
	return &TimetableHandler{timetable: timetable}
}

func (h *TimetableHandler) Register(r *gin.RouterGroup) {
	r.POST("/timetable/entries", h.create)
	r.GET("/timetable/entries/:id", h.get)
	r.PATCH("/timetable/entries/:id", h.update)
	r.DELETE("/timetable/entries/:id", h.remove)
	r.GET("/timetable/grid", h.grid)
	r.GET("/timetable/staff/:staffID", h.staffGrid)
	r.GET("/timetable/coverage", h.coverage)
	r.DELETE("/timetable/sessions/:sessionID/entries", h.erase)
}

func (h *TimetableHandler) create(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	entry, err := h.timetable.CreateEntry(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

func (h *TimetableHandler) get(c *gin.Context) {
	entry, err := h.timetable.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func (h *TimetableHandler) update(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	entry, err := h.timetable.UpdateEntry(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func (h *TimetableHandler) remove(c *gin.Context) {
	if err := h.timetable.DeleteEntry(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *TimetableHandler) grid(c *gin.Context) {
	sessionID := c.Query("session_id")
	courseID := c.Query("course_id")
	if sessionID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id and course_id are required"))
		return
	}
	entries, err := h.timetable.Grid(c.Request.Context(), sessionID, courseID, optionalQuery(c, "section_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func (h *TimetableHandler) staffGrid(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	entries, err := h.timetable.StaffGrid(c.Request.Context(), sessionID, c.Param("staffID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func (h *TimetableHandler) coverage(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	rows, err := h.timetable.Coverage(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

func (h *TimetableHandler) erase(c *gin.Context) {
	summary, err := h.timetable.EraseSchedule(c.Request.Context(), actorID(c), c.Param("sessionID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
