package booking

import (
	"sort"
	"time"
)

// SlotPolicy describes which future datetimes are offered for booking.
type SlotPolicy struct {
	// StartOffsetDays is the first day offset from now that gets slots.
	StartOffsetDays int
	// LookaheadDays is how many consecutive days get slots.
	LookaheadDays int
	// AnchorHours are the local hours (0-23) of each day's slots.
	AnchorHours []int
}

// DefaultSlotPolicy offers 09:00 and 14:00 on each of the next five days.
var DefaultSlotPolicy = SlotPolicy{
	StartOffsetDays: 1,
	LookaheadDays:   5,
	AnchorHours:     []int{9, 14},
}

// MaxSlots is the number of slots the policy can produce at most.
func (p SlotPolicy) MaxSlots() int {
	if p.LookaheadDays <= 0 {
		return 0
	}
	return p.LookaheadDays * len(p.anchors())
}

// Generate returns the policy's slots relative to now, ascending, evaluated in
// now's location. Every slot is strictly after now; the result may be empty.
func (p SlotPolicy) Generate(now time.Time) []time.Time {
	hours := p.anchors()
	if p.LookaheadDays <= 0 || len(hours) == 0 {
		return nil
	}

	loc := now.Location()
	year, month, day := now.Date()
	slots := make([]time.Time, 0, p.LookaheadDays*len(hours))
	for i := p.StartOffsetDays; i < p.StartOffsetDays+p.LookaheadDays; i++ {
		for _, hour := range hours {
			// time.Date normalizes day overflow across month and year ends.
			candidate := time.Date(year, month, day+i, hour, 0, 0, 0, loc)
			if candidate.After(now) {
				slots = append(slots, candidate)
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

func (p SlotPolicy) anchors() []int {
	seen := make(map[int]struct{}, len(p.AnchorHours))
	hours := make([]int, 0, len(p.AnchorHours))
	for _, h := range p.AnchorHours {
		if h < 0 || h > 23 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// GenerateSlots applies DefaultSlotPolicy.
func GenerateSlots(now time.Time) []time.Time {
	return DefaultSlotPolicy.Generate(now)
}

func containsSlot(slots []time.Time, t time.Time) bool {
	for _, s := range slots {
		if s.Equal(t) {
			return true
		}
	}
	return false
}
