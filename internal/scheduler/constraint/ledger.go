// Package constraint implements the uniform legality and quality rules
// of the optimization core: hard-violation checks, the soft quality
// score, the per-run teacher hour ledger, and the post-hoc conflict
// detector. The checker is stateless across runs; all mutable counters
// live on the ledger owned by the calling solver.
package constraint

import "github.com/noah-isme/sma-timetable-engine/internal/scheduler"

// Ledger tracks assigned teaching minutes per teacher for one solver
// run. It is solver-local and reset on every restart; the snapshot's
// teachers stay immutable.
type Ledger struct {
	minutes []int
}

// NewLedger returns a zeroed ledger for the given teacher count.
func NewLedger(teachers int) *Ledger {
	return &Ledger{minutes: make([]int, teachers)}
}

// LedgerFor rebuilds a ledger from the placed assignments of a schedule.
func LedgerFor(s *scheduler.Schedule) *Ledger {
	inst := s.Instance()
	l := NewLedger(len(inst.Teachers))
	for _, a := range s.Assignments() {
		l.Add(a.Teacher, inst.Sessions[a.Session].DurationMinutes)
	}
	return l
}

// Add charges minutes to a teacher.
func (l *Ledger) Add(teacher, minutes int) {
	l.minutes[teacher] += minutes
}

// Remove refunds minutes from a teacher.
func (l *Ledger) Remove(teacher, minutes int) {
	l.minutes[teacher] -= minutes
	if l.minutes[teacher] < 0 {
		l.minutes[teacher] = 0
	}
}

// Minutes returns the minutes currently charged to a teacher.
func (l *Ledger) Minutes(teacher int) int {
	return l.minutes[teacher]
}

// Reset zeroes every counter.
func (l *Ledger) Reset() {
	for i := range l.minutes {
		l.minutes[i] = 0
	}
}
