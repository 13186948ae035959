package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type runLauncher interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.RunAccepted, error)
	GenerateSync(ctx context.Context, req dto.GenerateTimetableRequest) (*engine.RunResult, error)
}

// GeneratorHandler exposes the timetable generation endpoint.
type GeneratorHandler struct {
	service runLauncher
}

// NewGeneratorHandler constructs the handler.
func NewGeneratorHandler(svc *service.RunService) *GeneratorHandler {
	return &GeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable from a snapshot
// @Description Queues an optimization run and returns 202 with polling and event URLs. Small snapshots may pass wait=true to run inline and receive the final result directly.
// @Tags Generator
// @Accept json
// @Produce json
// @Param wait query bool false "Run synchronously (small snapshots only)"
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *GeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		result, err := h.service.GenerateSync(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
		return
	}

	accepted, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, accepted, nil)
}
