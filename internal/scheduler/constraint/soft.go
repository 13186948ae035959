package constraint

import (
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// weights is the normalized soft-score blend.
type weights struct {
	pref   float64
	util   float64
	bal    float64
	consec float64
	gaps   float64
}

func normalizeWeights(w scheduler.SoftWeights) weights {
	n := weights{
		pref:   nonNegative(w.PreferredTime),
		util:   nonNegative(w.Utilization),
		bal:    nonNegative(w.Balance),
		consec: nonNegative(w.Consecutive),
		gaps:   nonNegative(w.Gaps),
	}
	sum := n.pref + n.util + n.bal + n.consec + n.gaps
	if sum <= 0 {
		return normalizeWeights(scheduler.DefaultSoftWeights())
	}
	n.pref /= sum
	n.util /= sum
	n.bal /= sum
	n.consec /= sum
	n.gaps /= sum
	return n
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// SoftScore rates one assignment against the schedule in [0,1]: a
// weighted blend of preferred-time match, room utilization, workload
// balance, consecutive-hour load, and intra-day cohort gaps.
func (c *Checker) SoftScore(a scheduler.Assignment, s *scheduler.Schedule) float64 {
	day, start, end := c.span(a)
	teacher := &c.inst.Teachers[a.Teacher]

	prefScore := 1.0
	if hit, has := teacher.Prefers(day, start, end); has {
		prefScore = 0
		if hit {
			prefScore = 1
		}
	}

	utilScore := c.utilizationScore(a)
	balScore := 1.0
	if c.balance {
		balScore = c.balanceScore(a, s)
	}
	consecScore := c.consecutiveScore(a, s, day, start, end)
	gapScore := c.gapScore(a, s, day)

	w := c.weights
	return w.pref*prefScore + w.util*utilScore + w.bal*balScore + w.consec*consecScore + w.gaps*gapScore
}

// ScheduleSoftScore averages the per-assignment soft scores; zero for an
// empty schedule.
func (c *Checker) ScheduleSoftScore(s *scheduler.Schedule) float64 {
	assignments := s.Assignments()
	if len(assignments) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range assignments {
		total += c.SoftScore(a, s)
	}
	return total / float64(len(assignments))
}

// utilizationScore rewards rooms filled to between half and full
// capacity.
func (c *Checker) utilizationScore(a scheduler.Assignment) float64 {
	sess := &c.inst.Sessions[a.Session]
	room := &c.inst.Rooms[a.Room]
	if sess.StudentCount <= 0 || room.Capacity <= 0 {
		return 1
	}
	u := float64(sess.StudentCount) / float64(room.Capacity)
	if u >= 0.5 {
		return 1
	}
	return u / 0.5
}

// balanceScore compares the teacher's load against the mean load of
// teachers with any placement.
func (c *Checker) balanceScore(a scheduler.Assignment, s *scheduler.Schedule) float64 {
	total := 0
	active := 0
	mine := 0
	for t := range c.inst.Teachers {
		load := 0
		for _, si := range s.TeacherSessions(t) {
			load += c.inst.Sessions[si].DurationMinutes
		}
		if load > 0 {
			total += load
			active++
		}
		if t == a.Teacher {
			mine = load
		}
	}
	if active == 0 {
		return 1
	}
	mean := float64(total) / float64(active)
	dev := float64(mine) - mean
	if dev < 0 {
		dev = -dev
	}
	denom := mean + float64(c.inst.Calendar.SlotDuration)
	score := 1 - dev/denom
	if score < 0 {
		return 0
	}
	return score
}

// consecutiveScore penalizes teaching runs longer than the teacher's
// consecutive-slot threshold.
func (c *Checker) consecutiveScore(a scheduler.Assignment, s *scheduler.Schedule, day scheduler.Weekday, start, end int) float64 {
	teacher := &c.inst.Teachers[a.Teacher]
	spans := c.daySpans(s.TeacherSessions(a.Teacher), s, day, a.Session)
	spans = append(spans, [2]int{start, end})
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	runStart, runEnd := start, end
	for merged := true; merged; {
		merged = false
		for _, sp := range spans {
			if sp[0] <= runEnd && sp[1] >= runStart {
				if sp[0] < runStart {
					runStart = sp[0]
					merged = true
				}
				if sp[1] > runEnd {
					runEnd = sp[1]
					merged = true
				}
			}
		}
	}
	runSlots := (runEnd - runStart) / c.inst.Calendar.SlotDuration
	if runSlots <= teacher.MaxConsecutive {
		return 1
	}
	return float64(teacher.MaxConsecutive) / float64(runSlots)
}

// gapScore penalizes idle slots between a cohort's sessions on one day.
func (c *Checker) gapScore(a scheduler.Assignment, s *scheduler.Schedule, day scheduler.Weekday) float64 {
	sess := &c.inst.Sessions[a.Session]
	var spans [][2]int
	for _, si := range s.CohortSessions(sess.Cohort) {
		if !sess.StudentOverlap(&c.inst.Sessions[si]) {
			continue
		}
		b := s.At(si)
		bd, bs, be := c.span(b)
		if bd == day {
			spans = append(spans, [2]int{bs, be})
		}
	}
	if !s.Placed(a.Session) {
		_, as, ae := c.span(a)
		spans = append(spans, [2]int{as, ae})
	}
	if len(spans) <= 1 {
		return 1
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	gaps := 0
	cursor := spans[0][1]
	for _, sp := range spans[1:] {
		if sp[0] > cursor {
			gaps += (sp[0] - cursor) / c.inst.Calendar.SlotDuration
		}
		if sp[1] > cursor {
			cursor = sp[1]
		}
	}
	return 1 / float64(1+gaps)
}

// daySpans collects the minute intervals a session list occupies on one
// day, excluding one session.
func (c *Checker) daySpans(list []int, s *scheduler.Schedule, day scheduler.Weekday, exclude int) [][2]int {
	var spans [][2]int
	for _, si := range list {
		if si == exclude {
			continue
		}
		d, start, end := c.span(s.At(si))
		if d == day {
			spans = append(spans, [2]int{start, end})
		}
	}
	return spans
}
