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

type unavailabilityAPI interface {
	Record(ctx context.Context, actorID *string, req dto.RecordUnavailabilityRequest) (*dto.UnavailabilityResponse, error)
	ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.StaffUnavailability, error)
	Delete(ctx context.Context, id string) error
}

// UnavailabilityHandler records staff absence windows.
type UnavailabilityHandler struct {
	unavailability unavailabilityAPI
}

func NewUnavailabilityHandler(unavailability unavailabilityAPI) *UnavailabilityHandler {
	return &UnavailabilityHandler{unavailability: unavailability}
}

func (h *UnavailabilityHandler) Register(r *gin.RouterGroup) {
	r.POST("/unavailability", h.record)
	r.GET("/unavailability/staff/:staffID", h.listByStaff)
	r.DELETE("/unavailability/:id", h.remove)
}

func (h *UnavailabilityHandler) record(c *gin.Context) {
	var req dto.RecordUnavailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	result, err := h.unavailability.Record(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *UnavailabilityHandler) listByStaff(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	windows, err := h.unavailability.ListByStaff(c.Request.Context(), sessionID, c.Param("staffID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

func (h *UnavailabilityHandler) remove(c *gin.Context) {
	if err := h.unavailability.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
