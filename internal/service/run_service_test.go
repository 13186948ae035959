package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type engineStub struct {
	fn func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error)
}

func (s engineStub) Generate(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
	return s.fn(ctx, runID, snap, settings, sink)
}

type timetableWriterStub struct {
	mu      sync.Mutex
	created []*models.Timetable
	err     error
}

func (s *timetableWriterStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	timetable.ID = "tt-new"
	timetable.Version = 1
	s.created = append(s.created, timetable)
	return nil
}

type slotWriterStub struct {
	mu    sync.Mutex
	slots []models.TimetableSlot
}

func (s *slotWriterStub) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, slots...)
	return nil
}

type auditStub struct {
	mu       sync.Mutex
	created  []models.Run
	outcomes []models.Run
}

func (s *auditStub) Create(ctx context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *run)
	return nil
}

func (s *auditStub) UpdateOutcome(ctx context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, *run)
	return nil
}

func (s *auditStub) lastOutcome() (models.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return models.Run{}, false
	}
	return s.outcomes[len(s.outcomes)-1], true
}

type progressStoreStub struct {
	mu      sync.Mutex
	dropped []string
}

func (s *progressStoreStub) Put(ctx context.Context, runID string, value interface{}) error {
	return nil
}

func (s *progressStoreStub) Drop(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, runID)
	return nil
}

func syncSnapshot() scheduler.Snapshot {
	return scheduler.Snapshot{
		Teachers: []scheduler.Teacher{
			{ID: "t1", Name: "A. Rahmawati", Type: scheduler.TeacherCore, MaxHoursPerWeek: 20},
		},
		Classrooms: []scheduler.Classroom{
			{ID: "r1", Name: "R-101", Capacity: 60, Type: scheduler.RoomLecture},
		},
		Courses: []scheduler.Course{
			{
				ID:      "cs101",
				Code:    "CS101",
				Program: "CS",
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 2},
				},
				AssignedTeachers: []scheduler.TeacherRef{
					{TeacherID: "t1", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}, IsPrimary: true},
				},
			},
		},
		Settings: scheduler.Settings{Algorithm: scheduler.AlgoGreedy},
	}
}

func solvedResult(runID string) *engine.RunResult {
	return &engine.RunResult{
		RunID:     runID,
		Algorithm: scheduler.AlgoGreedy,
		Status:    solver.StatusSolved,
		Assignments: []engine.AssignmentView{
			{
				SessionKey: "cs101:main:theory:0", CourseID: "cs101", CourseCode: "CS101",
				SessionType: "theory", DivisionID: "main", TeacherID: "t1", TeacherName: "A. Rahmawati",
				ClassroomID: "r1", Day: "monday", StartTime: "09:00", EndTime: "10:00", SlotIndex: 0,
			},
		},
		Metrics: engine.RunMetrics{Fitness: 0.95, SessionCount: 2, ScheduledCount: 2},
	}
}

func newRunServiceForTest(t *testing.T, eng timetableGenerator) *RunService {
	t.Helper()
	return NewRunService(eng, RunServiceDeps{}, nil, zap.NewNop(), RunServiceConfig{
		MaxConcurrent:   1,
		DefaultDeadline: time.Second,
	})
}

func TestRunServiceGenerateSync(t *testing.T) {
	audit := &auditStub{}
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		sink.Publish(scheduler.Event{Type: scheduler.EventStarted, RunID: runID, Algorithm: scheduler.AlgoGreedy, SessionCount: 2})
		sink.Publish(scheduler.Event{Type: scheduler.EventCompleted, RunID: runID, Percent: 100, BestFitness: 0.95})
		return solvedResult(runID), nil
	}}
	svc := NewRunService(eng, RunServiceDeps{Audit: audit}, nil, zap.NewNop(), RunServiceConfig{})

	res, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{
		TermID:   "term-1",
		Snapshot: syncSnapshot(),
	})
	require.NoError(t, err)
	require.Equal(t, solver.StatusSolved, res.Status)

	status, err := svc.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(solver.StatusSolved), status.Status)
	assert.Equal(t, float64(100), status.Percent)
	assert.Equal(t, 2, status.SessionCount)
	require.NotNil(t, status.FinishedAt)

	outcome, ok := audit.lastOutcome()
	require.True(t, ok)
	assert.Equal(t, string(solver.StatusSolved), outcome.Status)
	assert.Equal(t, 2, outcome.ScheduledCount)
}

func TestRunServiceGenerateSyncSessionLimit(t *testing.T) {
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		t.Fatal("engine must not run when the snapshot exceeds the sync limit")
		return nil, nil
	}}
	svc := NewRunService(eng, RunServiceDeps{}, nil, zap.NewNop(), RunServiceConfig{SyncSessionLimit: 1})

	_, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{
		TermID:   "term-1",
		Snapshot: syncSnapshot(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunServiceRejectsInvalidSnapshot(t *testing.T) {
	svc := newRunServiceForTest(t, engineStub{fn: nil})

	snap := syncSnapshot()
	snap.Teachers = nil
	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: snap})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, appErrors.FromError(err).Code)

	snap = syncSnapshot()
	snap.Settings.Algorithm = "quantum"
	_, err = svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: snap})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, appErrors.FromError(err).Code)

	_, err = svc.Submit(context.Background(), dto.GenerateTimetableRequest{Snapshot: syncSnapshot()})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunServiceSubmitRunsAsync(t *testing.T) {
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		sink.Publish(scheduler.Event{Type: scheduler.EventStarted, RunID: runID, Algorithm: scheduler.AlgoGreedy, SessionCount: 2})
		sink.Publish(scheduler.Event{Type: scheduler.EventCompleted, RunID: runID, Percent: 100, BestFitness: 0.95})
		return solvedResult(runID), nil
	}}
	svc := newRunServiceForTest(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	accepted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{
		TermID:   "term-1",
		Snapshot: syncSnapshot(),
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, accepted.Status)
	assert.Contains(t, accepted.StatusURL, "/runs/"+accepted.RunID)
	assert.Contains(t, accepted.EventsURL, "/events")

	require.Eventually(t, func() bool {
		status, err := svc.Get(context.Background(), accepted.RunID)
		return err == nil && status.FinishedAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	res, err := svc.Result(context.Background(), accepted.RunID)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusSolved, res.Status)
	assert.Len(t, res.Assignments, 1)
}

func TestRunServiceResultWhileRunning(t *testing.T) {
	release := make(chan struct{})
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		<-release
		return solvedResult(runID), nil
	}}
	svc := newRunServiceForTest(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	accepted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := svc.Get(context.Background(), accepted.RunID)
		return err == nil && status.Status == RunStatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	_, err = svc.Result(context.Background(), accepted.RunID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	close(release)
	require.Eventually(t, func() bool {
		_, err := svc.Result(context.Background(), accepted.RunID)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunServiceCancelQueuedRun(t *testing.T) {
	release := make(chan struct{})
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return solvedResult(runID), nil
	}}
	svc := newRunServiceForTest(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()
	defer close(release)

	// Pin the single worker so the second submission stays queued.
	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	accepted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	sub, err := svc.Subscribe(accepted.RunID)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, svc.Cancel(context.Background(), accepted.RunID))

	status, err := svc.Get(context.Background(), accepted.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(solver.StatusCancelled), status.Status)
	require.NotNil(t, status.FinishedAt)

	subCtx, subCancel := context.WithTimeout(context.Background(), time.Second)
	defer subCancel()
	e, ok := sub.Events.Next(subCtx)
	require.True(t, ok)
	assert.Equal(t, scheduler.EventCancelled, e.Type)

	// Cancelling again is a no-op.
	require.NoError(t, svc.Cancel(context.Background(), accepted.RunID))
}

func TestRunServiceCancelRunningRun(t *testing.T) {
	started := make(chan struct{})
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		close(started)
		<-ctx.Done()
		return nil, appErrors.Clone(appErrors.ErrCancelled, "run cancelled")
	}}
	svc := newRunServiceForTest(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	accepted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}
	require.NoError(t, svc.Cancel(context.Background(), accepted.RunID))

	require.Eventually(t, func() bool {
		status, err := svc.Get(context.Background(), accepted.RunID)
		return err == nil && status.Status == string(solver.StatusCancelled)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunServiceSubscribeReplaysLastEvent(t *testing.T) {
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		sink.Publish(scheduler.Event{Type: scheduler.EventStarted, RunID: runID, Algorithm: scheduler.AlgoGreedy, SessionCount: 2})
		sink.Publish(scheduler.Event{Type: scheduler.EventCompleted, RunID: runID, Percent: 100, BestFitness: 0.95})
		return solvedResult(runID), nil
	}}
	svc := NewRunService(eng, RunServiceDeps{}, nil, zap.NewNop(), RunServiceConfig{})

	res, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	sub, err := svc.Subscribe(res.RunID)
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, ok := sub.Events.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, scheduler.EventCompleted, e.Type)
	assert.Equal(t, float64(100), e.Percent)
}

func TestRunServicePersistsDraftTimetable(t *testing.T) {
	writer := &timetableWriterStub{}
	slots := &slotWriterStub{}
	audit := &auditStub{}
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		return solvedResult(runID), nil
	}}
	svc := NewRunService(eng, RunServiceDeps{Timetables: writer, Slots: slots, Audit: audit}, nil, zap.NewNop(), RunServiceConfig{})

	res, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{
		TermID:   "term-1",
		Program:  "CS",
		Persist:  true,
		Snapshot: syncSnapshot(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	require.Len(t, writer.created, 1)
	created := writer.created[0]
	assert.Equal(t, "term-1", created.TermID)
	assert.Equal(t, "CS", created.Program)
	assert.Equal(t, models.TimetableStatusDraft, created.Status)
	assert.InDelta(t, 0.95, created.Fitness, 1e-9)

	require.Len(t, slots.slots, 1)
	assert.Equal(t, "tt-new", slots.slots[0].TimetableID)
	assert.Equal(t, "cs101:main:theory:0", slots.slots[0].SessionKey)

	status, err := svc.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "tt-new", status.TimetableID)

	outcome, ok := audit.lastOutcome()
	require.True(t, ok)
	require.NotNil(t, outcome.TimetableID)
	assert.Equal(t, "tt-new", *outcome.TimetableID)
}

func TestRunServicePersistFailureKeepsResult(t *testing.T) {
	writer := &timetableWriterStub{err: context.DeadlineExceeded}
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		return solvedResult(runID), nil
	}}
	svc := NewRunService(eng, RunServiceDeps{Timetables: writer, Slots: &slotWriterStub{}}, nil, zap.NewNop(), RunServiceConfig{})

	res, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{
		TermID:   "term-1",
		Persist:  true,
		Snapshot: syncSnapshot(),
	})
	require.NoError(t, err)
	require.Equal(t, solver.StatusSolved, res.Status)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "not persisted")
}

func TestRunServiceGetUnknownRun(t *testing.T) {
	svc := newRunServiceForTest(t, engineStub{fn: nil})

	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Subscribe("nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.Cancel(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRunServiceEvictsExpiredRuns(t *testing.T) {
	progress := &progressStoreStub{}
	eng := engineStub{fn: func(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error) {
		return solvedResult(runID), nil
	}}
	svc := NewRunService(eng, RunServiceDeps{Progress: progress}, nil, zap.NewNop(), RunServiceConfig{TTL: time.Minute})

	res, err := svc.GenerateSync(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1", Snapshot: syncSnapshot()})
	require.NoError(t, err)

	// A run that finished inside the TTL window stays queryable.
	svc.evictExpired(time.Now())
	_, err = svc.Get(context.Background(), res.RunID)
	require.NoError(t, err)

	svc.evictExpired(time.Now().Add(2 * time.Minute))
	_, err = svc.Get(context.Background(), res.RunID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	progress.mu.Lock()
	defer progress.mu.Unlock()
	assert.Equal(t, []string{res.RunID}, progress.dropped)
}

func TestEstimateSessionCount(t *testing.T) {
	snap := syncSnapshot()
	assert.Equal(t, 2, estimateSessionCount(&snap))

	snap.Courses[0].Divisions = []scheduler.Division{
		{ID: "a", StudentCount: 60, Batches: []scheduler.Batch{{ID: "a1", StudentCount: 30}, {ID: "a2", StudentCount: 30}}},
		{ID: "b", StudentCount: 60},
	}
	snap.Courses[0].Sessions[scheduler.SessionPractical] = scheduler.SessionSpec{Duration: 120, SessionsPerWeek: 1, RequiresLab: true}
	// theory: 2 divisions x 2, practical: batches a1+a2 plus whole division b.
	assert.Equal(t, 7, estimateSessionCount(&snap))
}
