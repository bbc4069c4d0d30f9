package entities

import (
	"sort"
	"time"
)

// DefaultSlotSize is the fixed granularity of agenda slots
const DefaultSlotSize = 30 * time.Minute

// SlotAt normalizes an instant to its slot boundary in UTC
func SlotAt(t time.Time, slotSize time.Duration) time.Time {
	return t.UTC().Truncate(slotSize)
}

// SlotsInWindow enumerates every slot boundary the window
// [start, start+duration) touches. The bound comes from the untruncated end,
// so a mid-slot start still covers the slot its tail runs into.
func SlotsInWindow(start time.Time, duration, slotSize time.Duration) []time.Time {
	if duration <= 0 || slotSize <= 0 {
		return nil
	}
	end := start.UTC().Add(duration)
	var slots []time.Time
	for cur := SlotAt(start, slotSize); cur.Before(end); cur = cur.Add(slotSize) {
		slots = append(slots, cur)
	}
	return slots
}

// SlotState classifies a slot in the agenda status report
type SlotState string

const (
	SlotStateAvailable           SlotState = "available"
	SlotStateOccupied            SlotState = "occupied"
	SlotStatePast                SlotState = "past"
	SlotStateOutsideWorkingHours SlotState = "outside_working_hours"
)

// Agenda is the per-professional availability model. A slot is bookable iff it
// is in the available set and not in the blocked set; blocking overlays
// availability rather than removing it, so releasing restores the slot.
// Version backs the optimistic-concurrency check at the persistence layer.
type Agenda struct {
	Available map[time.Time]struct{}
	Blocked   map[time.Time]struct{}
	Version   int64
}

// NewAgenda creates an empty agenda
func NewAgenda() *Agenda {
	return &Agenda{
		Available: make(map[time.Time]struct{}),
		Blocked:   make(map[time.Time]struct{}),
	}
}

// IsAvailable reports whether every slot of the window [start, start+duration)
// is available and unblocked
func (a *Agenda) IsAvailable(start time.Time, duration, slotSize time.Duration) bool {
	slots := SlotsInWindow(start, duration, slotSize)
	if len(slots) == 0 {
		return false
	}
	for _, slot := range slots {
		if _, ok := a.Available[slot]; !ok {
			return false
		}
		if _, ok := a.Blocked[slot]; ok {
			return false
		}
	}
	return true
}

// Block marks every slot of the window as blocked. Idempotent.
func (a *Agenda) Block(start time.Time, duration, slotSize time.Duration) {
	for _, slot := range SlotsInWindow(start, duration, slotSize) {
		a.Blocked[slot] = struct{}{}
	}
}

// Release removes every slot of the window from the blocked set. Idempotent.
func (a *Agenda) Release(start time.Time, duration, slotSize time.Duration) {
	for _, slot := range SlotsInWindow(start, duration, slotSize) {
		delete(a.Blocked, slot)
	}
}

// MarkAvailable adds every slot of the window to the available set. Idempotent.
func (a *Agenda) MarkAvailable(start time.Time, duration, slotSize time.Duration) {
	for _, slot := range SlotsInWindow(start, duration, slotSize) {
		a.Available[slot] = struct{}{}
	}
}

// RemoveAvailable drops every slot of the window from the available set
func (a *Agenda) RemoveAvailable(start time.Time, duration, slotSize time.Duration) {
	for _, slot := range SlotsInWindow(start, duration, slotSize) {
		delete(a.Available, slot)
	}
}

// HasAvailable reports whether the exact slot is in the available set
func (a *Agenda) HasAvailable(slot time.Time) bool {
	_, ok := a.Available[slot]
	return ok
}

// IsBlocked reports whether the exact slot is in the blocked set
func (a *Agenda) IsBlocked(slot time.Time) bool {
	_, ok := a.Blocked[slot]
	return ok
}

// AvailableSlots returns the available set in chronological order
func (a *Agenda) AvailableSlots() []time.Time {
	return sortedSlots(a.Available)
}

// BlockedSlots returns the blocked set in chronological order
func (a *Agenda) BlockedSlots() []time.Time {
	return sortedSlots(a.Blocked)
}

// LatestAvailable returns the most distant available slot, or zero when empty
func (a *Agenda) LatestAvailable() time.Time {
	var latest time.Time
	for slot := range a.Available {
		if slot.After(latest) {
			latest = slot
		}
	}
	return latest
}

// SetSlots replaces both sets, used by persistence adapters on rehydration
func (a *Agenda) SetSlots(available, blocked []time.Time) {
	a.Available = make(map[time.Time]struct{}, len(available))
	for _, slot := range available {
		a.Available[slot.UTC()] = struct{}{}
	}
	a.Blocked = make(map[time.Time]struct{}, len(blocked))
	for _, slot := range blocked {
		a.Blocked[slot.UTC()] = struct{}{}
	}
}

func sortedSlots(set map[time.Time]struct{}) []time.Time {
	slots := make([]time.Time, 0, len(set))
	for slot := range set {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}
