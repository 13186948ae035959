package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/middleware"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/cache"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type runReader interface {
	Get(ctx context.Context, runID string) (*dto.RunStatusResponse, error)
	Result(ctx context.Context, runID string) (*engine.RunResult, error)
	Cancel(ctx context.Context, runID string) error
	Subscribe(runID string) (*service.RunSubscription, error)
}

type progressFetcher interface {
	Get(ctx context.Context, runID string, dest interface{}) error
}

// RunHandler exposes run status, results, cancellation and the live
// progress stream.
type RunHandler struct {
	service  runReader
	progress progressFetcher
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewRunHandler constructs the handler. The progress cache is optional;
// without it, status lookups answer from the in-memory registry only.
func NewRunHandler(svc *service.RunService, progress *cache.ProgressCache, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &RunHandler{
		service: svc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if progress != nil {
		h.progress = progress
	}
	return h
}

// Status godoc
// @Summary Get run status
// @Description Reports queue position, live progress and the terminal outcome of a run. Runs evicted from the registry are answered from the progress cache when available.
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Status(c *gin.Context) {
	runID := c.Param("id")
	status, err := h.service.Get(c.Request.Context(), runID)
	if err == nil {
		middleware.MarkServedBy(c, middleware.ServedByRegistry)
		response.JSON(c, http.StatusOK, status, nil, middleware.ExtractMeta(c))
		return
	}

	if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code && h.progress != nil {
		var last scheduler.Event
		if cacheErr := h.progress.Get(c.Request.Context(), runID, &last); cacheErr == nil {
			middleware.MarkServedBy(c, middleware.ServedByProgressCache)
			response.JSON(c, http.StatusOK, statusFromEvent(runID, last), nil, middleware.ExtractMeta(c))
			return
		}
	}
	response.Error(c, err)
}

// Result godoc
// @Summary Get the final result of a run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id}/result [get]
func (h *RunHandler) Result(c *gin.Context) {
	result, err := h.service.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a queued or running run
// @Tags Runs
// @Param id path string true "Run ID"
// @Success 202 {object} response.Envelope
// @Router /runs/{id}/cancel [post]
func (h *RunHandler) Cancel(c *gin.Context) {
	runID := c.Param("id")
	if err := h.service.Cancel(c.Request.Context(), runID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"runId": runID, "status": "cancelling"}, nil)
}

// Events godoc
// @Summary Stream run progress events over a websocket
// @Description Upgrades to a websocket and pushes the run's event stream as JSON frames. The current state is replayed first; the stream closes after the terminal event.
// @Tags Runs
// @Param id path string true "Run ID"
// @Success 101 {string} string "Switching Protocols"
// @Router /runs/{id}/events [get]
func (h *RunHandler) Events(c *gin.Context) {
	runID := c.Param("id")
	sub, err := h.service.Subscribe(runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Sugar().Debugw("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends data frames; reading surfaces close frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		e, ok := sub.Events.Next(ctx)
		if !ok {
			return
		}
		if err := conn.WriteJSON(e); err != nil {
			h.logger.Sugar().Debugw("websocket write failed", "run_id", runID, "error", err)
			return
		}
		if e.Type.Terminal() {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(e.Type)), deadline)
			return
		}
	}
}

// statusFromEvent reconstructs a degraded status view from the last cached
// progress event of a run no longer held in the registry.
func statusFromEvent(runID string, e scheduler.Event) *dto.RunStatusResponse {
	status := string(e.Type)
	switch e.Type {
	case scheduler.EventStarted, scheduler.EventProgress:
		status = service.RunStatusRunning
	case scheduler.EventCompleted:
		if e.Unscheduled > 0 {
			status = "partial"
		} else {
			status = "solved"
		}
	}
	return &dto.RunStatusResponse{
		RunID:        runID,
		Algorithm:    e.Algorithm,
		Status:       status,
		Percent:      e.Percent,
		BestFitness:  e.BestFitness,
		Iteration:    e.Iteration,
		SessionCount: e.SessionCount,
		Unscheduled:  e.Unscheduled,
		Error:        e.Reason,
	}
}
