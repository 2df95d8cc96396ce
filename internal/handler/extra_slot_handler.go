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

type extraSlotAPI interface {
	ListOpen(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error)
	Claim(ctx context.Context, actorID *string, slotID, staffID, subjectID string, roomID *string) (*models.TimetableEntry, error)
}

// ExtraSlotHandler lists and claims the published extra class slots.
type ExtraSlotHandler struct {
	slots extraSlotAPI
}

func NewExtraSlotHandler(slots extraSlotAPI) *ExtraSlotHandler {
	return &ExtraSlotHandler{slots: slots}
}

func (h *ExtraSlotHandler) Register(r *gin.RouterGroup) {
	r.GET("/extra-slots", h.list)
	r.POST("/extra-slots/:id/claim", h.claim)
}

func (h *ExtraSlotHandler) list(c *gin.Context) {
	sessionID := c.Query("session_id")
	courseID := c.Query("course_id")
	if sessionID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id and course_id are required"))
		return
	}
	open, err := h.slots.ListOpen(c.Request.Context(), sessionID, courseID, optionalQuery(c, "section_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, open, nil)
}

func (h *ExtraSlotHandler) claim(c *gin.Context) {
	var req dto.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	entry, err := h.slots.Claim(c.Request.Context(), actorID(c), c.Param("id"), req.StaffID, req.SubjectID, req.RoomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
