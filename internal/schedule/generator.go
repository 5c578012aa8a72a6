// Package schedule holds the pure slot-generation and occurrence-expansion
// algorithms. Everything here is a function of its inputs; persistence and
// clocks live in the service layer.
package schedule

import (
	"sort"
	"time"

	"github.com/tutorbase/engine/internal/model"
)

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Merge collapses overlapping and touching intervals into a sorted,
// disjoint set.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes the blocked set from each free interval, returning the
// remaining free pieces in order.
func Subtract(free []Interval, blocked []Interval) []Interval {
	blocked = Merge(blocked)
	var out []Interval
	for _, f := range free {
		cur := f
		for _, b := range blocked {
			if !cur.Overlaps(b) {
				continue
			}
			if b.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: b.Start})
			}
			if b.End.Before(cur.End) {
				cur = Interval{Start: b.End, End: cur.End}
			} else {
				cur = Interval{}
				break
			}
		}
		if cur.End.After(cur.Start) {
			out = append(out, cur)
		}
	}
	return out
}

// DayStart truncates an instant to UTC midnight of its calendar day.
func DayStart(at time.Time) time.Time {
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildDaySlots derives the bookable start times for one calendar day.
//
// The template intervals for the day's weekday are laid out as free time,
// blackout windows and busy session windows are subtracted, and the
// remainder is quantized into consecutive base-interval slots. Slots
// starting before earliest (the lead-time floor) are excluded. A weekday
// with no template intervals yields an empty result, not an error.
func BuildDaySlots(day time.Time, template []model.TemplateInterval, blackouts, busy []Interval, base time.Duration, earliest time.Time) []time.Time {
	if base <= 0 {
		return nil
	}
	start := DayStart(day)
	weekday := int(start.Weekday())

	var free []Interval
	for _, iv := range template {
		if iv.Weekday != weekday {
			continue
		}
		free = append(free, Interval{
			Start: start.Add(time.Duration(iv.StartMinute) * time.Minute),
			End:   start.Add(time.Duration(iv.EndMinute) * time.Minute),
		})
	}
	if len(free) == 0 {
		return nil
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })

	blocked := make([]Interval, 0, len(blackouts)+len(busy))
	blocked = append(blocked, blackouts...)
	blocked = append(blocked, busy...)
	free = Subtract(free, blocked)

	var slots []time.Time
	for _, iv := range free {
		for t := iv.Start; !t.Add(base).After(iv.End); t = t.Add(base) {
			if t.Before(earliest) {
				continue
			}
			slots = append(slots, t)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// FilterContiguous keeps only starts s where s, s+base, ..., s+(k-1)*base are
// all present in the slot list, so a k-interval booking fits without a gap.
// This is how multi-interval requests reuse the single-interval slot list.
func FilterContiguous(slots []time.Time, k int, base time.Duration) []time.Time {
	if k <= 1 {
		return slots
	}
	present := make(map[int64]bool, len(slots))
	for _, s := range slots {
		present[s.UnixNano()] = true
	}
	var out []time.Time
	for _, s := range slots {
		ok := true
		for i := 1; i < k; i++ {
			if !present[s.Add(time.Duration(i)*base).UnixNano()] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

// ContainsStart reports whether the exact start instant is in the slot list.
func ContainsStart(slots []time.Time, start time.Time) bool {
	for _, s := range slots {
		if s.Equal(start) {
			return true
		}
	}
	return false
}

// ExpandOccurrences walks every calendar day in [startDate, endDate]
// inclusive and emits a start instant for each day whose weekday is in the
// set, at startMinute past midnight UTC. Order is ascending.
func ExpandOccurrences(startDate, endDate time.Time, weekdays []int, startMinute int) []time.Time {
	wanted := make(map[int]bool, len(weekdays))
	for _, wd := range weekdays {
		wanted[wd] = true
	}

	var out []time.Time
	for d := DayStart(startDate); !d.After(DayStart(endDate)); d = d.AddDate(0, 0, 1) {
		if wanted[int(d.Weekday())] {
			out = append(out, d.Add(time.Duration(startMinute)*time.Minute))
		}
	}
	return out
}
