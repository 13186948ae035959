package engine

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Outbound Progress pacing: at most one event per minInterval, and a
// heartbeat republishes the latest Progress when the solver stays quiet
// longer than heartbeatEvery.
const (
	progressMinInterval = 100 * time.Millisecond
	heartbeatEvery      = time.Second
)

// runSink decorates solver events with the run identity, enforces the
// monotone best-so-far fitness, rate-caps Progress, and keeps the stream
// alive during long solver phases. Terminal events always pass and close
// the heartbeat.
type runSink struct {
	next         scheduler.ProgressSink
	runID        string
	algorithm    string
	sessionCount int

	mu       sync.Mutex
	last     scheduler.Event
	hasLast  bool
	best     float64
	lastSent time.Time
	closed   bool
	done     chan struct{}
}

func newRunSink(next scheduler.ProgressSink, runID, algorithm string, sessionCount int) *runSink {
	s := &runSink{
		next:         next,
		runID:        runID,
		algorithm:    algorithm,
		sessionCount: sessionCount,
		done:         make(chan struct{}),
	}
	go s.heartbeat()
	return s
}

// Publish implements scheduler.ProgressSink.
func (s *runSink) Publish(e scheduler.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e.RunID = s.runID
	e.Algorithm = s.algorithm

	switch e.Type {
	case scheduler.EventStarted:
		e.SessionCount = s.sessionCount
	case scheduler.EventProgress:
		if e.BestFitness > s.best {
			s.best = e.BestFitness
		}
		e.BestFitness = s.best
		s.last = e
		s.hasLast = true
		now := time.Now()
		if now.Sub(s.lastSent) < progressMinInterval {
			return
		}
		s.lastSent = now
	default:
		if e.BestFitness > s.best {
			s.best = e.BestFitness
		}
		s.closed = true
		close(s.done)
	}
	s.next.Publish(e)
}

func (s *runSink) heartbeat() {
	t := time.NewTicker(heartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.mu.Lock()
			if !s.closed && s.hasLast && time.Since(s.lastSent) >= heartbeatEvery {
				s.lastSent = time.Now()
				s.next.Publish(s.last)
			}
			s.mu.Unlock()
		}
	}
}
