package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type exportTimetablesStub struct {
	record *models.Timetable
	err    error
}

func (s exportTimetablesStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

type exportSlotsStub struct {
	slots []models.TimetableSlot
	err   error
}

func (s exportSlotsStub) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.slots, nil
}

func sampleTimetable() *models.Timetable {
	return &models.Timetable{
		ID:        "tt-1",
		TermID:    "term-2025-odd",
		Program:   "CS",
		Version:   3,
		Status:    models.TimetableStatusDraft,
		Algorithm: "hybrid",
		Fitness:   0.91,
		CreatedAt: time.Now().UTC(),
	}
}

func sampleSlots() []models.TimetableSlot {
	batchA := "b1"
	batchB := "b2"
	return []models.TimetableSlot{
		{
			TimetableID: "tt-1", SessionKey: "cs101:div-a:lec:1",
			CourseID: "cs101", CourseCode: "CS101", SessionType: "lecture",
			DivisionID: "div-a", TeacherID: "t1", TeacherName: "A. Rahmawati",
			ClassroomID: "R-101", DayOfWeek: "tuesday", StartTime: "08:20", EndTime: "09:10", SlotIndex: 1,
		},
		{
			TimetableID: "tt-1", SessionKey: "cs102:div-a:lab:0:b1",
			CourseID: "cs102", CourseCode: "CS102", SessionType: "lab",
			DivisionID: "div-a", BatchID: &batchA, TeacherID: "t2", TeacherName: "B. Santoso",
			ClassroomID: "LAB-1", DayOfWeek: "monday", StartTime: "07:30", EndTime: "09:10", SlotIndex: 0,
		},
		{
			TimetableID: "tt-1", SessionKey: "cs102:div-a:lab:0:b2",
			CourseID: "cs102", CourseCode: "CS102", SessionType: "lab",
			DivisionID: "div-a", BatchID: &batchB, TeacherID: "t3", TeacherName: "C. Wijaya",
			ClassroomID: "LAB-2", DayOfWeek: "monday", StartTime: "07:30", EndTime: "09:10", SlotIndex: 0,
		},
		{
			TimetableID: "tt-1", SessionKey: "ma201:div-b:lec:1",
			CourseID: "ma201", CourseCode: "MA201", SessionType: "lecture",
			DivisionID: "div-b", TeacherID: "t1", TeacherName: "A. Rahmawati",
			ClassroomID: "R-102", DayOfWeek: "monday", StartTime: "08:20", EndTime: "09:10", SlotIndex: 1,
		},
	}
}

func TestExportServiceTimetableCSV(t *testing.T) {
	svc := NewExportService(
		exportTimetablesStub{record: sampleTimetable()},
		exportSlotsStub{slots: sampleSlots()},
		nil, nil, zap.NewNop(),
	)

	file, err := svc.TimetableCSV(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Name, "timetable_term-2025-odd_v3_"))
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Day,Start,End,Course,Type,Division,Batch,Teacher,Room", strings.TrimSpace(lines[0]))
	// Monday lab batches sort before the Tuesday lecture.
	assert.Contains(t, lines[1], "Monday")
	assert.Contains(t, lines[1], "CS102")
	assert.Contains(t, lines[4], "Tuesday")
	assert.Contains(t, lines[4], "CS101")
}

func TestExportServiceTimetableCSVEmpty(t *testing.T) {
	svc := NewExportService(
		exportTimetablesStub{record: sampleTimetable()},
		exportSlotsStub{},
		nil, nil, zap.NewNop(),
	)

	file, err := svc.TimetableCSV(context.Background(), "tt-1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 1)
}

func TestExportServiceTimetablePDF(t *testing.T) {
	svc := NewExportService(
		exportTimetablesStub{record: sampleTimetable()},
		exportSlotsStub{slots: sampleSlots()},
		nil, nil, zap.NewNop(),
	)

	file, err := svc.TimetablePDF(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".pdf"))
	require.Greater(t, len(file.Payload), 0)
	assert.True(t, strings.HasPrefix(string(file.Payload), "%PDF"))
}

func TestExportServiceTimetablePDFEmpty(t *testing.T) {
	svc := NewExportService(
		exportTimetablesStub{record: sampleTimetable()},
		exportSlotsStub{},
		nil, nil, zap.NewNop(),
	)

	_, err := svc.TimetablePDF(context.Background(), "tt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestExportServiceTimetableNotFound(t *testing.T) {
	svc := NewExportService(
		exportTimetablesStub{err: sql.ErrNoRows},
		exportSlotsStub{},
		nil, nil, zap.NewNop(),
	)

	_, err := svc.TimetableCSV(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBuildWeeklyGrids(t *testing.T) {
	grids := buildWeeklyGrids(sampleSlots())
	require.Len(t, grids, 2)

	divA := grids[0]
	assert.Equal(t, "Division div-a", divA.Title)
	require.Equal(t, []string{"Monday", "Tuesday"}, divA.Days)
	require.Equal(t, []string{"07:30", "08:20"}, divA.Times)

	// Both lab batches land in the same Monday cell.
	cell := divA.Cells[0][0]
	assert.Contains(t, cell, "CS102 [b1]")
	assert.Contains(t, cell, "CS102 [b2]")
	assert.Contains(t, cell, "; ")

	// Lecture occupies Tuesday at the second slot.
	assert.Contains(t, divA.Cells[1][1], "CS101")
	assert.Empty(t, divA.Cells[0][1])

	divB := grids[1]
	assert.Contains(t, divB.Cells[1][0], "MA201")
}
