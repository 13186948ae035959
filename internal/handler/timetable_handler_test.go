package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type timetableManagerMock struct {
	list       []models.Timetable
	record     *models.Timetable
	slots      []models.TimetableSlot
	getErr     error
	publishErr error
	deleteErr  error
	deleted    []string
	published  []string
	query      dto.TimetableQuery
}

func (m *timetableManagerMock) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	m.query = query
	return m.list, nil
}

func (m *timetableManagerMock) Get(ctx context.Context, id string) (*models.Timetable, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.record, nil
}

func (m *timetableManagerMock) Slots(ctx context.Context, id string) ([]models.TimetableSlot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.slots, nil
}

func (m *timetableManagerMock) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	m.published = append(m.published, id)
	record := *m.record
	record.Status = models.TimetableStatusPublished
	return &record, nil
}

func (m *timetableManagerMock) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type timetableExporterMock struct {
	csv *service.ExportFile
	pdf *service.ExportFile
	err error
}

func (m *timetableExporterMock) TimetableCSV(ctx context.Context, timetableID string) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.csv, nil
}

func (m *timetableExporterMock) TimetablePDF(ctx context.Context, timetableID string) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pdf, nil
}

func storedTimetable() *models.Timetable {
	return &models.Timetable{
		ID:        "tt-1",
		TermID:    "term-2025-odd",
		Program:   "CS",
		Version:   1,
		Status:    models.TimetableStatusDraft,
		Algorithm: "hybrid",
		Fitness:   0.9,
	}
}

func TestTimetableHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{list: []models.Timetable{*storedTimetable()}}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodGet, "/timetables?termId=term-2025-odd&status=DRAFT", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term-2025-odd", mockSvc.query.TermID)
	assert.Equal(t, "DRAFT", mockSvc.query.Status)
	assert.Contains(t, w.Body.String(), `"tt-1"`)
}

func TestTimetableHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "timetable not found")}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodGet, "/timetables/tt-x", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-x"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{
		record: storedTimetable(),
		slots:  []models.TimetableSlot{{TimetableID: "tt-1", SessionKey: "cs101:main:theory:0", CourseCode: "CS101"}},
	}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodGet, "/timetables/tt-1/slots", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Slots(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CS101")
}

func TestTimetableHandlerPublish(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{record: storedTimetable()}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/timetables/tt-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Publish(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tt-1"}, mockSvc.published)

	var envelope struct {
		Data models.Timetable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.TimetableStatusPublished, envelope.Data.Status)
}

func TestTimetableHandlerDeletePublishedRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{deleteErr: appErrors.Clone(appErrors.ErrPublished, "only draft timetables can be deleted")}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodDelete, "/timetables/tt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Delete(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrPublished.Code)
}

func TestTimetableHandlerDeleteDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableManagerMock{}
	handler := &TimetableHandler{service: mockSvc}

	c, w := newGinContext(http.MethodDelete, "/timetables/tt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Delete(c)
	// Invoking the handler directly skips the engine's deferred header
	// flush, so flush it here as gin would after the handler chain.
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"tt-1"}, mockSvc.deleted)
}

func TestTimetableHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &timetableExporterMock{csv: &service.ExportFile{
		Name:        "timetable_term_v1.csv",
		ContentType: "text/csv",
		Payload:     []byte("Day,Start,End\n"),
	}}
	handler := &TimetableHandler{service: &timetableManagerMock{}, exporter: exporter}

	c, w := newGinContext(http.MethodGet, "/timetables/tt-1/export.csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.ExportCSV(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable_term_v1.csv")
	assert.Contains(t, w.Body.String(), "Day,Start,End")
}

func TestTimetableHandlerExportPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &timetableExporterMock{pdf: &service.ExportFile{
		Name:        "timetable_term_v1.pdf",
		ContentType: "application/pdf",
		Payload:     []byte("%PDF-1.4"),
	}}
	handler := &TimetableHandler{service: &timetableManagerMock{}, exporter: exporter}

	c, w := newGinContext(http.MethodGet, "/timetables/tt-1/export.pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.ExportPDF(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, len(w.Body.Bytes()) > 0)
}

func TestTimetableHandlerExportEmptyTimetable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &timetableExporterMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable has no slots to render")}
	handler := &TimetableHandler{service: &timetableManagerMock{}, exporter: exporter}

	c, w := newGinContext(http.MethodGet, "/timetables/tt-1/export.pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.ExportPDF(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}
