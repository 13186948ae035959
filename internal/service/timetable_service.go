package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type timetableStore interface {
	List(ctx context.Context, termID, program, status string) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, termID, program string) error
}

type timetableSlotReader interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
}

// TimetableService manages stored timetable versions: listing, slot detail,
// publishing and draft removal.
type TimetableService struct {
	timetables timetableStore
	slots      timetableSlotReader
	tx         txProvider
	logger     *zap.Logger
}

// NewTimetableService wires the timetable lifecycle dependencies.
func NewTimetableService(timetables timetableStore, slots timetableSlotReader, tx txProvider, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		slots:      slots,
		tx:         tx,
		logger:     logger,
	}
}

// List returns stored timetable versions matching the query.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	if query.Status != "" {
		switch models.TimetableStatus(query.Status) {
		case models.TimetableStatusDraft, models.TimetableStatusPublished, models.TimetableStatusArchived:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be DRAFT, PUBLISHED or ARCHIVED")
		}
	}
	list, err := s.timetables.List(ctx, query.TermID, query.Program, query.Status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return list, nil
}

// Get loads one timetable version.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

// Slots returns the placed sessions of a stored timetable ordered by day
// and slot index.
func (s *TimetableService) Slots(ctx context.Context, id string) ([]models.TimetableSlot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	return slots, nil
}

// Publish promotes a draft to the published version for its term-program
// pair. The previously published version, if any, is archived in the same
// transaction so at most one published timetable exists per pair.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case models.TimetableStatusPublished:
		return record, nil
	case models.TimetableStatusArchived:
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.ArchivePublished(ctx, tx, record.TermID, record.Program); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive published timetable")
		return nil, err
	}

	// Publishing annotates the generation metadata, it never replaces it.
	metaMap := map[string]any{}
	if len(record.Meta) > 0 {
		_ = json.Unmarshal(record.Meta, &metaMap)
	}
	metaMap["publishedAt"] = time.Now().UTC()
	meta, marshalErr := json.Marshal(metaMap)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode publish metadata")
		return nil, err
	}
	if err = s.timetables.UpdateStatus(ctx, tx, id, models.TimetableStatusPublished, types.JSONText(meta)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	s.logger.Info("timetable published",
		zap.String("timetable_id", id),
		zap.String("term_id", record.TermID),
		zap.String("program", record.Program),
		zap.Int("version", record.Version),
	)

	record.Status = models.TimetableStatusPublished
	record.Meta = types.JSONText(meta)
	return record, nil
}

// Delete removes a draft timetable version. Published and archived
// versions are immutable history.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrPublished, "only draft timetables can be deleted")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.logger.Info("timetable deleted", zap.String("timetable_id", id))
	return nil
}
