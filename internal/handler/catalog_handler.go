package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/pkg/response"
)

type catalogAPI interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListSections(ctx context.Context, courseID string) ([]models.Section, error)
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
	ListSchedulableSubjects(ctx context.Context) ([]models.Subject, error)
	ListStaff(ctx context.Context) ([]models.Staff, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListAuditLogs(ctx context.Context, pagination *models.Pagination) ([]models.TimetableAuditLog, error)
	ListStaffNotifications(ctx context.Context, staffID string) ([]models.StaffNotification, error)
	ListStudentNotifications(ctx context.Context, studentID string) ([]models.StudentNotification, error)
}

// CatalogHandler serves the reference data, the audit trail and the
// notification feeds.
type CatalogHandler struct {
	catalog catalogAPI
}

func NewCatalogHandler(catalog catalogAPI) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) Register(r *gin.RouterGroup) {
	r.GET("/sessions", h.listSessions)
	r.GET("/sessions/:id", h.getSession)
	r.GET("/courses", h.listCourses)
	r.GET("/courses/:id/sections", h.listSections)
	r.GET("/subjects", h.listSubjects)
	r.GET("/subjects/:id", h.getSubject)
	r.GET("/staff", h.listStaff)
	r.GET("/rooms", h.listRooms)
	r.GET("/audit-logs", h.listAuditLogs)
	r.GET("/notifications/staff/:staffID", h.listStaffNotifications)
	r.GET("/notifications/students/:studentID", h.listStudentNotifications)
}

func (h *CatalogHandler) listSessions(c *gin.Context) {
	sessions, err := h.catalog.ListSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

func (h *CatalogHandler) getSession(c *gin.Context) {
	session, err := h.catalog.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

func (h *CatalogHandler) listCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

func (h *CatalogHandler) listSections(c *gin.Context) {
	sections, err := h.catalog.ListSections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

func (h *CatalogHandler) listSubjects(c *gin.Context) {
	subjects, err := h.catalog.ListSchedulableSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

func (h *CatalogHandler) getSubject(c *gin.Context) {
	subject, err := h.catalog.GetSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

func (h *CatalogHandler) listStaff(c *gin.Context) {
	staff, err := h.catalog.ListStaff(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

func (h *CatalogHandler) listRooms(c *gin.Context) {
	rooms, err := h.catalog.ListRooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

func (h *CatalogHandler) listAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := &models.Pagination{Page: page, PageSize: pageSize}

	logs, err := h.catalog.ListAuditLogs(c.Request.Context(), pagination)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

func (h *CatalogHandler) listStaffNotifications(c *gin.Context) {
	notifications, err := h.catalog.ListStaffNotifications(c.Request.Context(), c.Param("staffID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

func (h *CatalogHandler) listStudentNotifications(c *gin.Context) {
	notifications, err := h.catalog.ListStudentNotifications(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}
