package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/export"
)

type exportTimetableReader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type exportSlotLister interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type gridRenderer interface {
	RenderWeekly(title string, grids []export.WeeklyGrid) ([]byte, error)
}

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	Name        string
	ContentType string
	Payload     []byte
}

// ExportService renders stored timetables as flat CSV datasets or as
// per-division weekly grid PDFs.
type ExportService struct {
	timetables exportTimetableReader
	slots      exportSlotLister
	csv        csvRenderer
	pdf        gridRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(timetables exportTimetableReader, slots exportSlotLister, csv csvRenderer, pdf gridRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		slots:      slots,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
	}
}

// TimetableCSV renders every slot of a timetable as one CSV row. An empty
// timetable yields a headers-only file.
func (s *ExportService) TimetableCSV(ctx context.Context, timetableID string) (*ExportFile, error) {
	record, slots, err := s.load(ctx, timetableID)
	if err != nil {
		return nil, err
	}

	sortSlots(slots)
	rows := make([][]string, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, []string{
			titleDay(slot.DayOfWeek),
			slot.StartTime,
			slot.EndTime,
			slot.CourseCode,
			slot.SessionType,
			slot.DivisionID,
			batchLabel(slot.BatchID),
			slot.TeacherName,
			slot.ClassroomID,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Day", "Start", "End", "Course", "Type", "Division", "Batch", "Teacher", "Room"},
		Rows:    rows,
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable csv")
	}
	s.logger.Info("timetable exported",
		zap.String("timetable_id", timetableID),
		zap.String("format", "csv"),
		zap.Int("rows", len(rows)),
	)
	return &ExportFile{
		Name:        exportFilename(record, "csv"),
		ContentType: "text/csv",
		Payload:     payload,
	}, nil
}

// TimetablePDF renders one weekly grid page per division. Slots that share
// a cell, parallel lab batches mostly, are joined inside it.
func (s *ExportService) TimetablePDF(ctx context.Context, timetableID string) (*ExportFile, error) {
	record, slots, err := s.load(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable has no slots to render")
	}

	grids := buildWeeklyGrids(slots)
	title := fmt.Sprintf("Timetable %s v%d", record.TermID, record.Version)
	payload, err := s.pdf.RenderWeekly(title, grids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable pdf")
	}
	s.logger.Info("timetable exported",
		zap.String("timetable_id", timetableID),
		zap.String("format", "pdf"),
		zap.Int("grids", len(grids)),
	)
	return &ExportFile{
		Name:        exportFilename(record, "pdf"),
		ContentType: "application/pdf",
		Payload:     payload,
	}, nil
}

func (s *ExportService) load(ctx context.Context, timetableID string) (*models.Timetable, []models.TimetableSlot, error) {
	if timetableID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	slots, err := s.slots.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	return record, slots, nil
}

// buildWeeklyGrids groups slots by division, with one page per grid. Day
// columns and time rows cover only what the timetable actually uses, in
// calendar order.
func buildWeeklyGrids(slots []models.TimetableSlot) []export.WeeklyGrid {
	days := make([]scheduler.Weekday, 0, 7)
	seenDay := make(map[scheduler.Weekday]bool, 7)
	type timeRow struct {
		index int
		start string
	}
	rowSet := make(map[int]timeRow)
	divisions := make([]string, 0, 8)
	byDivision := make(map[string][]models.TimetableSlot)

	for _, slot := range slots {
		if day, err := scheduler.ParseWeekday(slot.DayOfWeek); err == nil && !seenDay[day] {
			seenDay[day] = true
			days = append(days, day)
		}
		if _, ok := rowSet[slot.SlotIndex]; !ok {
			rowSet[slot.SlotIndex] = timeRow{index: slot.SlotIndex, start: slot.StartTime}
		}
		if _, ok := byDivision[slot.DivisionID]; !ok {
			divisions = append(divisions, slot.DivisionID)
		}
		byDivision[slot.DivisionID] = append(byDivision[slot.DivisionID], slot)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	rows := make([]timeRow, 0, len(rowSet))
	for _, row := range rowSet {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].index < rows[j].index })
	sort.Strings(divisions)

	dayColumn := make(map[scheduler.Weekday]int, len(days))
	dayLabels := make([]string, len(days))
	for i, day := range days {
		dayColumn[day] = i
		dayLabels[i] = titleDay(day.String())
	}
	rowIndex := make(map[int]int, len(rows))
	timeLabels := make([]string, len(rows))
	for i, row := range rows {
		rowIndex[row.index] = i
		timeLabels[i] = row.start
	}

	grids := make([]export.WeeklyGrid, 0, len(divisions))
	for _, division := range divisions {
		cells := make([][]string, len(rows))
		for i := range cells {
			cells[i] = make([]string, len(days))
		}
		for _, slot := range byDivision[division] {
			day, err := scheduler.ParseWeekday(slot.DayOfWeek)
			if err != nil {
				continue
			}
			ri, ok := rowIndex[slot.SlotIndex]
			if !ok {
				continue
			}
			ci := dayColumn[day]
			entry := cellEntry(slot)
			if cells[ri][ci] != "" {
				entry = cells[ri][ci] + "; " + entry
			}
			cells[ri][ci] = entry
		}
		grids = append(grids, export.WeeklyGrid{
			Title: fmt.Sprintf("Division %s", division),
			Days:  dayLabels,
			Times: timeLabels,
			Cells: cells,
		})
	}
	return grids
}

func cellEntry(slot models.TimetableSlot) string {
	parts := make([]string, 0, 3)
	code := slot.CourseCode
	if slot.BatchID != nil && *slot.BatchID != "" {
		code = fmt.Sprintf("%s [%s]", code, *slot.BatchID)
	}
	parts = append(parts, code)
	if slot.ClassroomID != "" {
		parts = append(parts, slot.ClassroomID)
	}
	if slot.TeacherName != "" {
		parts = append(parts, slot.TeacherName)
	}
	return strings.Join(parts, " / ")
}

func sortSlots(slots []models.TimetableSlot) {
	order := func(name string) int {
		day, err := scheduler.ParseWeekday(name)
		if err != nil {
			return 7
		}
		return int(day)
	}
	sort.Slice(slots, func(i, j int) bool {
		di, dj := order(slots[i].DayOfWeek), order(slots[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		if slots[i].SlotIndex != slots[j].SlotIndex {
			return slots[i].SlotIndex < slots[j].SlotIndex
		}
		if slots[i].DivisionID != slots[j].DivisionID {
			return slots[i].DivisionID < slots[j].DivisionID
		}
		return batchLabel(slots[i].BatchID) < batchLabel(slots[j].BatchID)
	})
}

func titleDay(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

func batchLabel(batch *string) string {
	if batch == nil {
		return ""
	}
	return *batch
}

func exportFilename(record *models.Timetable, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_v%d_%s.%s", sanitizeFilename(record.TermID), record.Version, timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
