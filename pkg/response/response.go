package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *ErrorBody             `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// ErrorBody is the wire shape of an error. Conflict rejections additionally
// carry the machine reason tag and alternative-slot suggestions.
type ErrorBody struct {
	Code        string                  `json:"code"`
	Message     string                  `json:"message"`
	Reason      models.ConflictReason   `json:"reason,omitempty"`
	Suggestions []models.SlotSuggestion `json:"suggestions,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Placement conflicts surface as HTTP 409 with their reason tag; everything
// else goes through the typed error mapping.
func Error(c *gin.Context, err error) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	var conflict *models.PlacementConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, Envelope{Error: &ErrorBody{
			Code:        appErrors.ErrConflict.Code,
			Message:     conflict.Message,
			Reason:      conflict.Reason,
			Suggestions: conflict.Suggestions,
		}})
		return
	}

	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Error: &ErrorBody{Code: appErr.Code, Message: appErr.Message}})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
