package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/jobs"
)

// Registry states before a run reaches a terminal solver status.
const (
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
	RunStatusFailed  = "failed"
)

type timetableGenerator interface {
	Generate(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*engine.RunResult, error)
}

type timetableWriter interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
}

type timetableSlotWriter interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
}

type runAuditStore interface {
	Create(ctx context.Context, run *models.Run) error
	UpdateOutcome(ctx context.Context, run *models.Run) error
}

type progressStore interface {
	Put(ctx context.Context, runID string, value interface{}) error
	Drop(ctx context.Context, runID string) error
}

type runInstrumentation interface {
	RunStarted()
	RunEnded()
	RunFinished(algorithm, status string, fitness float64, scheduled int, duration time.Duration)
	ObserveProgressEvent()
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RunServiceConfig bounds the run registry and the worker pool.
type RunServiceConfig struct {
	MaxConcurrent    int
	QueueBuffer      int
	TTL              time.Duration
	EvictionInterval time.Duration
	DefaultDeadline  time.Duration
	ProgressBuffer   int
	SyncSessionLimit int
	APIPrefix        string
}

// RunService owns the lifecycle of generation runs: it accepts snapshots,
// dispatches them onto a bounded worker pool, tracks live progress in an
// in-memory registry and relays events to subscribers, the progress cache
// and the audit trail.
type RunService struct {
	engine     timetableGenerator
	timetables timetableWriter
	slots      timetableSlotWriter
	audit      runAuditStore
	progress   progressStore
	metrics    runInstrumentation
	tx         txProvider
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        RunServiceConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	entries map[string]*runEntry
}

// runEntry is the registry record of one run. The embedded request is the
// job payload; it is dropped once the run executes.
type runEntry struct {
	id        string
	termID    string
	program   string
	persist   bool
	createdAt time.Time

	mu          sync.Mutex
	req         *dto.GenerateTimetableRequest
	status      string
	algorithm   string
	percent     float64
	best        float64
	iteration   int
	sessions    int
	unscheduled int
	reason      string
	timetableID string
	result      *engine.RunResult
	finishedAt  *time.Time
	cancel      context.CancelFunc
	last        *scheduler.Event
	subs        map[int]*scheduler.EventBuffer
	nextSub     int
}

// RunSubscription is one consumer of a run's event stream. Close detaches
// it from the registry; the buffer keeps draining already queued events.
type RunSubscription struct {
	Events *scheduler.EventBuffer
	detach func()
}

// Close detaches the subscription.
func (s *RunSubscription) Close() {
	if s.detach != nil {
		s.detach()
	}
}

// RunServiceDeps carries the stores around the run orchestrator. Every
// field is optional; leave one unset and the service skips that concern.
type RunServiceDeps struct {
	Timetables timetableWriter
	Slots      timetableSlotWriter
	Audit      runAuditStore
	Progress   progressStore
	Metrics    runInstrumentation
	Tx         txProvider
}

// NewRunService constructs the run orchestrator. All stores are optional;
// the service degrades to in-memory operation when they are nil.
func NewRunService(
	eng timetableGenerator,
	deps RunServiceDeps,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RunServiceConfig,
) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = cfg.MaxConcurrent * 8
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = 5 * time.Minute
	}
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = 5 * time.Minute
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = 256
	}
	if cfg.SyncSessionLimit <= 0 {
		cfg.SyncSessionLimit = 50
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	s := &RunService{
		engine:     eng,
		timetables: deps.Timetables,
		slots:      deps.Slots,
		audit:      deps.Audit,
		progress:   deps.Progress,
		metrics:    deps.Metrics,
		tx:         deps.Tx,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		entries:    make(map[string]*runEntry),
	}
	s.queue = jobs.NewQueue("timetable-runs", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.MaxConcurrent,
		BufferSize: cfg.QueueBuffer,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start boots the worker pool and the registry eviction loop.
func (s *RunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.evictLoop(ctx)
}

// Stop drains the worker pool.
func (s *RunService) Stop() {
	s.queue.Stop()
}

// Submit validates the request and queues an asynchronous run.
func (s *RunService) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.RunAccepted, error) {
	entry, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(jobs.Job{ID: entry.id, Type: "generate"}); err != nil {
		s.failBeforeRun(entry, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation run")
	}

	return &dto.RunAccepted{
		RunID:     entry.id,
		Status:    RunStatusQueued,
		StatusURL: fmt.Sprintf("%s/runs/%s", s.cfg.APIPrefix, entry.id),
		EventsURL: fmt.Sprintf("%s/runs/%s/events", s.cfg.APIPrefix, entry.id),
	}, nil
}

// GenerateSync runs a small snapshot inline and returns the final result.
// Larger instances must go through Submit so they cannot pin HTTP workers.
func (s *RunService) GenerateSync(ctx context.Context, req dto.GenerateTimetableRequest) (*engine.RunResult, error) {
	if est := estimateSessionCount(&req.Snapshot); est > s.cfg.SyncSessionLimit {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("synchronous generation is limited to %d sessions (snapshot expands to about %d); submit without wait", s.cfg.SyncSessionLimit, est))
	}
	entry, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, entry)
}

// register validates the submission and creates the registry entry plus
// the optional audit row.
func (s *RunService) register(ctx context.Context, req dto.GenerateTimetableRequest) (*runEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	if _, err := req.Snapshot.Settings.Normalize(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, err.Error())
	}
	if err := req.Snapshot.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, err.Error())
	}

	payload := req
	entry := &runEntry{
		id:        uuid.NewString(),
		termID:    req.TermID,
		program:   req.Program,
		persist:   req.Persist,
		createdAt: time.Now().UTC(),
		req:       &payload,
		status:    RunStatusQueued,
		algorithm: payload.Snapshot.Settings.Algorithm,
		subs:      make(map[int]*scheduler.EventBuffer),
	}
	if entry.algorithm == "" {
		entry.algorithm = scheduler.AlgoAuto
	}

	s.mu.Lock()
	s.entries[entry.id] = entry
	s.mu.Unlock()

	if s.audit != nil {
		row := &models.Run{
			ID:        entry.id,
			TermID:    entry.termID,
			Algorithm: entry.algorithm,
			Status:    RunStatusQueued,
			CreatedAt: entry.createdAt,
		}
		if err := s.audit.Create(ctx, row); err != nil {
			s.logger.Sugar().Warnw("failed to record run", "run_id", entry.id, "error", err)
		}
	}
	return entry, nil
}

// handleJob executes a queued run. It always returns nil: generation is
// not idempotent enough to retry, and failures are terminal run states.
func (s *RunService) handleJob(ctx context.Context, job jobs.Job) error {
	entry, ok := s.lookup(job.ID)
	if !ok {
		s.logger.Sugar().Warnw("queued run no longer in registry", "run_id", job.ID)
		return nil
	}
	if _, err := s.run(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("generation run failed", "run_id", job.ID, "error", err)
	}
	return nil
}

// run executes the engine for the entry and settles its terminal state.
func (s *RunService) run(ctx context.Context, entry *runEntry) (*engine.RunResult, error) {
	entry.mu.Lock()
	if entry.finishedAt != nil {
		res, reason := entry.result, entry.reason
		entry.mu.Unlock()
		if res != nil {
			return res, nil
		}
		return nil, appErrors.Clone(appErrors.ErrCancelled, reason)
	}
	req := entry.req
	entry.req = nil
	runCtx, cancel := context.WithCancel(ctx)
	entry.cancel = cancel
	entry.status = RunStatusRunning
	entry.mu.Unlock()
	defer cancel()

	settings := req.Snapshot.Settings
	if settings.DeadlineMs <= 0 {
		settings.DeadlineMs = s.cfg.DefaultDeadline.Milliseconds()
	}

	if s.metrics != nil {
		s.metrics.RunStarted()
		defer s.metrics.RunEnded()
	}
	started := time.Now()

	res, err := s.engine.Generate(runCtx, entry.id, &req.Snapshot, settings, runRelay{svc: s, entry: entry})
	took := time.Since(started)

	if err != nil {
		entry.fail(err)
		s.settle(entry, took)
		return nil, err
	}

	if entry.persist && len(res.Assignments) > 0 {
		if id, persistErr := s.persistResult(context.Background(), entry, res); persistErr != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("timetable not persisted: %v", persistErr))
			s.logger.Sugar().Warnw("failed to persist timetable", "run_id", entry.id, "error", persistErr)
		} else {
			entry.mu.Lock()
			entry.timetableID = id
			entry.mu.Unlock()
		}
	}

	entry.finish(res)
	s.settle(entry, took)
	return res, nil
}

// settle emits metrics and the audit outcome once per run.
func (s *RunService) settle(entry *runEntry, took time.Duration) {
	entry.mu.Lock()
	status := entry.status
	algorithm := entry.algorithm
	best := entry.best
	reason := entry.reason
	timetableID := entry.timetableID
	sessions := entry.sessions
	scheduled := 0
	hard := 0
	if entry.result != nil {
		scheduled = entry.result.Metrics.ScheduledCount
		hard = entry.result.Metrics.HardViolations
	}
	finishedAt := entry.finishedAt
	entry.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RunFinished(algorithm, status, best, scheduled, took)
	}

	if s.audit != nil {
		row := &models.Run{
			ID:             entry.id,
			TermID:         entry.termID,
			Algorithm:      algorithm,
			Status:         status,
			SessionCount:   sessions,
			ScheduledCount: scheduled,
			Fitness:        best,
			HardViolations: hard,
			DurationMs:     took.Milliseconds(),
			FinishedAt:     finishedAt,
		}
		if reason != "" {
			row.Error = &reason
		}
		if timetableID != "" {
			row.TimetableID = &timetableID
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.UpdateOutcome(ctx, row); err != nil {
			s.logger.Sugar().Warnw("failed to record run outcome", "run_id", entry.id, "error", err)
		}
	}
}

// persistResult stores the run's schedule as a new draft timetable version.
func (s *RunService) persistResult(ctx context.Context, entry *runEntry, res *engine.RunResult) (string, error) {
	if s.timetables == nil || s.slots == nil {
		return "", fmt.Errorf("persistence is not configured")
	}

	meta, err := json.Marshal(map[string]any{
		"runId":       res.RunID,
		"fitness":     res.Metrics.Fitness,
		"unscheduled": len(res.Unscheduled),
		"warnings":    len(res.Warnings),
	})
	if err != nil {
		return "", fmt.Errorf("marshal timetable meta: %w", err)
	}

	timetable := &models.Timetable{
		TermID:    entry.termID,
		Program:   entry.program,
		Status:    models.TimetableStatusDraft,
		Algorithm: res.Algorithm,
		Fitness:   res.Metrics.Fitness,
		Meta:      meta,
	}

	var exec sqlx.ExtContext
	var tx *sqlx.Tx
	if s.tx != nil {
		tx, err = s.tx.BeginTxx(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("begin timetable transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		exec = tx
	}

	if err = s.timetables.CreateVersioned(ctx, exec, timetable); err != nil {
		return "", err
	}
	slots := slotsFromAssignments(timetable.ID, res.Assignments)
	if err = s.slots.UpsertBatch(ctx, exec, slots); err != nil {
		return "", err
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return "", fmt.Errorf("commit timetable transaction: %w", err)
		}
	}
	return timetable.ID, nil
}

// Get reports the live registry state of a run.
func (s *RunService) Get(ctx context.Context, runID string) (*dto.RunStatusResponse, error) {
	entry, ok := s.lookup(runID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return &dto.RunStatusResponse{
		RunID:        entry.id,
		TermID:       entry.termID,
		Algorithm:    entry.algorithm,
		Status:       entry.status,
		Percent:      entry.percent,
		BestFitness:  entry.best,
		Iteration:    entry.iteration,
		SessionCount: entry.sessions,
		Unscheduled:  entry.unscheduled,
		Error:        entry.reason,
		TimetableID:  entry.timetableID,
		CreatedAt:    entry.createdAt,
		FinishedAt:   entry.finishedAt,
	}, nil
}

// Result returns the final outcome of a finished run.
func (s *RunService) Result(ctx context.Context, runID string) (*engine.RunResult, error) {
	entry, ok := s.lookup(runID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.finishedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "run is still in progress")
	}
	if entry.result == nil {
		msg := entry.reason
		if msg == "" {
			msg = "run failed before producing a result"
		}
		return nil, appErrors.New(appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
	return entry.result, nil
}

// Cancel stops a queued or running run. Cancelling a finished or already
// cancelled run is a no-op.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	entry, ok := s.lookup(runID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}

	entry.mu.Lock()
	if entry.finishedAt != nil {
		entry.mu.Unlock()
		return nil
	}
	if entry.status == RunStatusQueued {
		entry.settleCancelledLocked()
		subs := entry.subscribersLocked()
		e := *entry.last
		entry.mu.Unlock()
		for _, b := range subs {
			b.Publish(e)
		}
		s.cacheEvent(e)
		s.settle(entry, 0)
		return nil
	}
	cancel := entry.cancel
	entry.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Subscribe attaches a new event stream consumer. The current state is
// replayed as the first event so late subscribers see where the run is.
func (s *RunService) Subscribe(runID string) (*RunSubscription, error) {
	entry, ok := s.lookup(runID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}

	buf := scheduler.NewEventBuffer(s.cfg.ProgressBuffer)

	entry.mu.Lock()
	id := entry.nextSub
	entry.nextSub++
	entry.subs[id] = buf
	replay := entry.last
	entry.mu.Unlock()

	if replay != nil {
		buf.Publish(*replay)
	}

	return &RunSubscription{
		Events: buf,
		detach: func() {
			entry.mu.Lock()
			delete(entry.subs, id)
			entry.mu.Unlock()
		},
	}, nil
}

func (s *RunService) lookup(runID string) (*runEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[runID]
	return entry, ok
}

// failBeforeRun settles an entry whose job never reached a worker.
func (s *RunService) failBeforeRun(entry *runEntry, cause error) {
	entry.fail(cause)
	entry.mu.Lock()
	subs := entry.subscribersLocked()
	var e scheduler.Event
	if entry.last != nil {
		e = *entry.last
	}
	entry.mu.Unlock()
	for _, b := range subs {
		b.Publish(e)
	}
	s.settle(entry, 0)
}

// evictLoop drops terminal entries that outlived the registry TTL.
func (s *RunService) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

func (s *RunService) evictExpired(now time.Time) {
	cutoff := now.Add(-s.cfg.TTL)
	var expired []string

	s.mu.Lock()
	for id, entry := range s.entries {
		entry.mu.Lock()
		done := entry.finishedAt != nil && entry.finishedAt.Before(cutoff)
		entry.mu.Unlock()
		if done {
			delete(s.entries, id)
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if s.progress != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.progress.Drop(ctx, id); err != nil {
				s.logger.Sugar().Debugw("failed to drop cached progress", "run_id", id, "error", err)
			}
			cancel()
		}
	}
	if len(expired) > 0 {
		s.logger.Sugar().Infow("evicted finished runs", "count", len(expired))
	}
}

// cacheEvent pushes the latest event to the progress cache off the solver
// goroutine; Publish must never block on Redis.
func (s *RunService) cacheEvent(e scheduler.Event) {
	if s.progress == nil || e.RunID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.progress.Put(ctx, e.RunID, e); err != nil {
			s.logger.Sugar().Debugw("progress cache write failed", "run_id", e.RunID, "error", err)
		}
	}()
}

// runRelay is the ProgressSink handed to the engine: it mirrors events
// into the registry entry, fans them out to subscribers and the cache.
type runRelay struct {
	svc   *RunService
	entry *runEntry
}

// Publish implements scheduler.ProgressSink.
func (r runRelay) Publish(e scheduler.Event) {
	if e.Type == scheduler.EventProgress && r.svc.metrics != nil {
		r.svc.metrics.ObserveProgressEvent()
	}

	r.entry.mu.Lock()
	switch e.Type {
	case scheduler.EventStarted:
		r.entry.status = RunStatusRunning
		if e.Algorithm != "" {
			r.entry.algorithm = e.Algorithm
		}
		r.entry.sessions = e.SessionCount
	case scheduler.EventProgress:
		r.entry.percent = e.Percent
		r.entry.best = e.BestFitness
		r.entry.iteration = e.Iteration
	default:
		r.entry.percent = e.Percent
		if e.BestFitness > r.entry.best {
			r.entry.best = e.BestFitness
		}
		r.entry.unscheduled = e.Unscheduled
	}
	ev := e
	r.entry.last = &ev
	subs := r.entry.subscribersLocked()
	r.entry.mu.Unlock()

	for _, b := range subs {
		b.Publish(e)
	}
	r.svc.cacheEvent(e)
}

// finish records a terminal engine result. The relay has already seen the
// terminal event; this fixes the authoritative status and counters.
func (e *runEntry) finish(res *engine.RunResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = res
	e.status = string(res.Status)
	e.algorithm = res.Algorithm
	e.best = res.Metrics.Fitness
	e.sessions = res.Metrics.SessionCount
	e.unscheduled = len(res.Unscheduled)
	if res.Status == solver.StatusSolved || res.Status == solver.StatusPartial {
		e.percent = 100
	}
	if res.Failure != nil {
		e.reason = res.Failure.Message
	}
	now := time.Now().UTC()
	e.finishedAt = &now
	e.cancel = nil
}

// fail records a run that returned no result.
func (e *runEntry) fail(cause error) {
	appErr := appErrors.FromError(cause)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finishedAt != nil {
		return
	}
	if appErr.Code == appErrors.ErrCancelled.Code {
		e.status = string(solver.StatusCancelled)
	} else {
		e.status = RunStatusFailed
	}
	e.reason = appErr.Message
	now := time.Now().UTC()
	e.finishedAt = &now
	e.cancel = nil
	if e.last == nil || !e.last.Type.Terminal() {
		e.last = &scheduler.Event{
			Type:   scheduler.EventFailed,
			RunID:  e.id,
			Reason: appErr.Code,
		}
	}
}

// settleCancelledLocked terminates a run that never reached a worker.
// Callers hold the entry lock.
func (e *runEntry) settleCancelledLocked() {
	e.status = string(solver.StatusCancelled)
	e.reason = appErrors.ErrCancelled.Message
	now := time.Now().UTC()
	e.finishedAt = &now
	e.req = nil
	e.last = &scheduler.Event{
		Type:      scheduler.EventCancelled,
		RunID:     e.id,
		Algorithm: e.algorithm,
		Reason:    appErrors.ErrCancelled.Message,
	}
}

func (e *runEntry) subscribersLocked() []*scheduler.EventBuffer {
	subs := make([]*scheduler.EventBuffer, 0, len(e.subs))
	for _, b := range e.subs {
		subs = append(subs, b)
	}
	return subs
}

// slotsFromAssignments converts engine output rows into storage rows.
func slotsFromAssignments(timetableID string, assignments []engine.AssignmentView) []models.TimetableSlot {
	slots := make([]models.TimetableSlot, 0, len(assignments))
	for _, a := range assignments {
		slot := models.TimetableSlot{
			TimetableID: timetableID,
			SessionKey:  a.SessionKey,
			CourseID:    a.CourseID,
			CourseCode:  a.CourseCode,
			SessionType: a.SessionType,
			DivisionID:  a.DivisionID,
			TeacherID:   a.TeacherID,
			TeacherName: a.TeacherName,
			ClassroomID: a.ClassroomID,
			DayOfWeek:   a.Day,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			SlotIndex:   a.SlotIndex,
		}
		if a.BatchID != "" {
			batch := a.BatchID
			slot.BatchID = &batch
		}
		slots = append(slots, slot)
	}
	return slots
}

// estimateSessionCount approximates how many weekly sessions the snapshot
// expands to, mirroring instance extraction without teacher eligibility.
func estimateSessionCount(snap *scheduler.Snapshot) int {
	total := 0
	for _, course := range snap.Courses {
		divisions := len(course.Divisions)
		if divisions == 0 {
			divisions = 1
		}
		for st, spec := range course.Sessions {
			if spec.SessionsPerWeek <= 0 {
				continue
			}
			units := divisions
			if st == scheduler.SessionPractical {
				units = 0
				for _, div := range course.Divisions {
					if len(div.Batches) > 0 {
						units += len(div.Batches)
					} else {
						units++
					}
				}
				if units == 0 {
					units = 1
				}
			}
			total += units * spec.SessionsPerWeek
		}
	}
	return total
}
