package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/dto"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/response"
)

type generatorAPI interface {
	Generate(ctx context.Context, actorID *string, sessionID string) (*dto.GenerationSummary, error)
}

// GeneratorHandler triggers automatic timetable generation.
type GeneratorHandler struct {
	generator generatorAPI
}

func NewGeneratorHandler(generator generatorAPI) *GeneratorHandler {
	return &GeneratorHandler{generator: generator}
}

func (h *GeneratorHandler) Register(r *gin.RouterGroup) {
	r.POST("/timetable/generate", h.generate)
}

func (h *GeneratorHandler) generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	summary, err := h.generator.Generate(c.Request.Context(), actorID(c), req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
