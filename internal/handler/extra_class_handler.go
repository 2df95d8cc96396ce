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

type extraClassAPI interface {
	CreateRequest(ctx context.Context, actorID *string, req dto.CreateExtraRequestRequest) (*models.ExtraClassRequest, error)
	ListRequests(ctx context.Context, sessionID, status string) ([]models.ExtraClassRequest, error)
	DecideRequest(ctx context.Context, actorID *string, id string, approve bool) (*models.ExtraClassRequest, error)
	CreateSchedule(ctx context.Context, actorID *string, req dto.CreateExtraScheduleRequest) (*models.ExtraClassSchedule, error)
	ListSchedulesByStaff(ctx context.Context, sessionID, staffID string) ([]models.ExtraClassSchedule, error)
	ApproveSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error)
	RejectSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error)
	CancelSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error)
}

// ExtraClassHandler drives the request/approve/schedule workflow for
// out-of-band extra classes.
type ExtraClassHandler struct {
	classes extraClassAPI
}

func NewExtraClassHandler(classes extraClassAPI) *ExtraClassHandler {
	return &ExtraClassHandler{classes: classes}
}

func (h *ExtraClassHandler) Register(r *gin.RouterGroup) {
	r.POST("/extra-classes/requests", h.createRequest)
	r.GET("/extra-classes/requests", h.listRequests)
	r.POST("/extra-classes/requests/:id/approve", h.approveRequest)
	r.POST("/extra-classes/requests/:id/reject", h.rejectRequest)
	r.POST("/extra-classes/schedules", h.createSchedule)
	r.GET("/extra-classes/schedules/staff/:staffID", h.listSchedules)
	r.POST("/extra-classes/schedules/:id/approve", h.approveSchedule)
	r.POST("/extra-classes/schedules/:id/reject", h.rejectSchedule)
	r.POST("/extra-classes/schedules/:id/cancel", h.cancelSchedule)
}

func (h *ExtraClassHandler) createRequest(c *gin.Context) {
	var req dto.CreateExtraRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	request, err := h.classes.CreateRequest(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

func (h *ExtraClassHandler) listRequests(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	requests, err := h.classes.ListRequests(c.Request.Context(), sessionID, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

func (h *ExtraClassHandler) approveRequest(c *gin.Context) {
	h.decideRequest(c, true)
}

func (h *ExtraClassHandler) rejectRequest(c *gin.Context) {
	h.decideRequest(c, false)
}

func (h *ExtraClassHandler) decideRequest(c *gin.Context, approve bool) {
	request, err := h.classes.DecideRequest(c.Request.Context(), actorID(c), c.Param("id"), approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

func (h *ExtraClassHandler) createSchedule(c *gin.Context) {
	var req dto.CreateExtraScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	schedule, err := h.classes.CreateSchedule(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

func (h *ExtraClassHandler) listSchedules(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	schedules, err := h.classes.ListSchedulesByStaff(c.Request.Context(), sessionID, c.Param("staffID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

func (h *ExtraClassHandler) approveSchedule(c *gin.Context) {
	schedule, err := h.classes.ApproveSchedule(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

func (h *ExtraClassHandler) rejectSchedule(c *gin.Context) {
	schedule, err := h.classes.RejectSchedule(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

func (h *ExtraClassHandler) cancelSchedule(c *gin.Context) {
	schedule, err := h.classes.CancelSchedule(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}
