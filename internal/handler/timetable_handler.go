package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type timetableManager interface {
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error)
	Get(ctx context.Context, id string) (*models.Timetable, error)
	Slots(ctx context.Context, id string) ([]models.TimetableSlot, error)
	Publish(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
}

type timetableExporter interface {
	TimetableCSV(ctx context.Context, timetableID string) (*service.ExportFile, error)
	TimetablePDF(ctx context.Context, timetableID string) (*service.ExportFile, error)
}

// TimetableHandler exposes stored timetable versions.
type TimetableHandler struct {
	service  timetableManager
	exporter timetableExporter
}

// NewTimetableHandler constructs the handler. The exporter is optional;
// callers leaving it nil must not register the export routes.
func NewTimetableHandler(svc *service.TimetableService, exporter *service.ExportService) *TimetableHandler {
	h := &TimetableHandler{service: svc}
	if exporter != nil {
		h.exporter = exporter
	}
	return h
}

// List godoc
// @Summary List stored timetable versions
// @Tags Timetables
// @Produce json
// @Param termId query string false "Term ID"
// @Param program query string false "Program"
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableQuery{
		TermID:  c.Query("termId"),
		Program: c.Query("program"),
		Status:  c.Query("status"),
	}
	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get one timetable version
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Slots godoc
// @Summary Get the placed sessions of a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	slots, err := h.service.Slots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Description Promotes the draft to the published version for its term and program; the previously published version is archived.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	record, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete a draft timetable version
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportCSV godoc
// @Summary Download a timetable as CSV
// @Tags Timetables
// @Produce text/csv
// @Param id path string true "Timetable ID"
// @Success 200 {file} binary
// @Router /timetables/{id}/export.csv [get]
func (h *TimetableHandler) ExportCSV(c *gin.Context) {
	h.export(c, h.exporter.TimetableCSV)
}

// ExportPDF godoc
// @Summary Download a timetable as weekly grid PDF
// @Tags Timetables
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Success 200 {file} binary
// @Router /timetables/{id}/export.pdf [get]
func (h *TimetableHandler) ExportPDF(c *gin.Context) {
	h.export(c, h.exporter.TimetablePDF)
}

func (h *TimetableHandler) export(c *gin.Context, render func(context.Context, string) (*service.ExportFile, error)) {
	file, err := render(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
