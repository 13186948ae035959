package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TimeSlot is one fixed-length candidate interval on a working day.
// Start and End are minutes from midnight, end exclusive. Ordinal is the
// global position in the calendar; Index the position within the day.
type TimeSlot struct {
	Day     Weekday `json:"day"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Index   int     `json:"index"`
	Ordinal int     `json:"ordinal"`
}

// StartTime renders the slot start as HH:MM.
func (s TimeSlot) StartTime() string { return Clock(s.Start) }

// EndTime renders the slot end as HH:MM.
func (s TimeSlot) EndTime() string { return Clock(s.End) }

// Calendar is the ordered slot set of one run plus per-day lookup data.
type Calendar struct {
	Slots        []TimeSlot
	Days         []Weekday
	SlotDuration int

	dayStart map[Weekday]int // ordinal of first slot of the day
	dayCount map[Weekday]int // slots on the day
}

// BuildCalendar expands the working-day window into ordered slots,
// dropping every slot that intersects a break when breaks are enforced.
// Returns an error when the configuration yields zero slots.
func BuildCalendar(s Settings) (*Calendar, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return nil, fmt.Errorf("startTime: %w", err)
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return nil, fmt.Errorf("endTime: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("endTime %s must be after startTime %s", s.EndTime, s.StartTime)
	}

	days := make([]Weekday, 0, len(s.WorkingDays))
	seen := make(map[Weekday]bool, len(s.WorkingDays))
	for _, name := range s.WorkingDays {
		day, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	if len(days) == 0 {
		return nil, fmt.Errorf("workingDays is empty")
	}

	type window struct{ start, end int }
	var breaks []window
	if s.BreaksEnforced() {
		for _, b := range s.Breaks {
			bs, err := ParseClock(b.StartTime)
			if err != nil {
				return nil, fmt.Errorf("break startTime: %w", err)
			}
			be, err := ParseClock(b.EndTime)
			if err != nil {
				return nil, fmt.Errorf("break endTime: %w", err)
			}
			if be <= bs {
				return nil, fmt.Errorf("break %s-%s is empty", b.StartTime, b.EndTime)
			}
			breaks = append(breaks, window{bs, be})
		}
	}

	cal := &Calendar{
		Days:         days,
		SlotDuration: s.SlotDuration,
		dayStart:     make(map[Weekday]int, len(days)),
		dayCount:     make(map[Weekday]int, len(days)),
	}
	ordinal := 0
	for _, day := range days {
		cal.dayStart[day] = ordinal
		index := 0
		for at := start; at+s.SlotDuration <= end; at += s.SlotDuration {
			slotEnd := at + s.SlotDuration
			blocked := false
			for _, b := range breaks {
				if at < b.end && slotEnd > b.start {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			cal.Slots = append(cal.Slots, TimeSlot{
				Day:     day,
				Start:   at,
				End:     slotEnd,
				Index:   index,
				Ordinal: ordinal,
			})
			index++
			ordinal++
		}
		cal.dayCount[day] = index
	}
	if len(cal.Slots) == 0 {
		return nil, fmt.Errorf("calendar produced no slots")
	}
	return cal, nil
}

// DaySpan returns the ordinal range [first, first+count) of a day.
func (c *Calendar) DaySpan(day Weekday) (first, count int) {
	return c.dayStart[day], c.dayCount[day]
}

// FitsInDay reports whether length consecutive slots starting at ordinal
// stay inside one day with no index gap. Break removal leaves index gaps,
// so a multi-slot session never straddles a break.
func (c *Calendar) FitsInDay(ordinal, length int) bool {
	if ordinal < 0 || ordinal+length > len(c.Slots) {
		return false
	}
	first := c.Slots[ordinal]
	last := c.Slots[ordinal+length-1]
	if first.Day != last.Day {
		return false
	}
	return last.Index-first.Index == length-1 &&
		last.Start-first.Start == (length-1)*c.SlotDuration
}

// ParseClock converts an HH:MM string into minutes from midnight.
func ParseClock(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	return hours*60 + minutes, nil
}

// Clock renders minutes from midnight as HH:MM.
func Clock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
