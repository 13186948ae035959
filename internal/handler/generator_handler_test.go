package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type runLauncherMock struct {
	submitted dto.GenerateTimetableRequest
	synced    dto.GenerateTimetableRequest
	submitErr error
	syncErr   error
}

func (m *runLauncherMock) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.RunAccepted, error) {
	m.submitted = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &dto.RunAccepted{
		RunID:     "run-1",
		Status:    "queued",
		StatusURL: "/api/v1/runs/run-1",
		EventsURL: "/api/v1/runs/run-1/events",
	}, nil
}

func (m *runLauncherMock) GenerateSync(ctx context.Context, req dto.GenerateTimetableRequest) (*engine.RunResult, error) {
	m.synced = req
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return &engine.RunResult{RunID: "run-1", Algorithm: "greedy", Status: solver.StatusSolved}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func generatorPayload() []byte {
	return []byte(`{
		"termId": "term-2025-odd",
		"program": "CS",
		"persist": true,
		"snapshot": {
			"teachers": [{"id":"t1","name":"A","type":"core","maxHoursPerWeek":20,"availability":{}}],
			"classrooms": [{"id":"r1","name":"R-101","capacity":60,"type":"lecture","availability":{}}],
			"courses": [{
				"id":"cs101","code":"CS101","program":"CS",
				"sessions":{"theory":{"duration":60,"sessionsPerWeek":2}},
				"assignedTeachers":[{"teacherId":"t1","sessionTypes":["theory"]}]
			}],
			"settings": {"algorithm":"greedy"}
		}
	}`)
}

func TestGeneratorHandlerSubmits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &runLauncherMock{}
	handler := &GeneratorHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/timetables/generate", generatorPayload())
	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "term-2025-odd", mockSvc.submitted.TermID)
	assert.True(t, mockSvc.submitted.Persist)

	var envelope struct {
		Data dto.RunAccepted `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data.RunID)
	assert.Contains(t, envelope.Data.EventsURL, "/events")
}

func TestGeneratorHandlerWaitRunsInline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &runLauncherMock{}
	handler := &GeneratorHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/timetables/generate?wait=true", generatorPayload())
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term-2025-odd", mockSvc.synced.TermID)
	assert.Empty(t, mockSvc.submitted.TermID)

	var envelope struct {
		Data engine.RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, solver.StatusSolved, envelope.Data.Status)
}

func TestGeneratorHandlerRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &GeneratorHandler{service: &runLauncherMock{}}

	c, w := newGinContext(http.MethodPost, "/timetables/generate", []byte(`{"termId":`))
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeneratorHandlerPropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &runLauncherMock{syncErr: appErrors.Clone(appErrors.ErrValidation, "synchronous generation is limited to 50 sessions")}
	handler := &GeneratorHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/timetables/generate?wait=true", generatorPayload())
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}
