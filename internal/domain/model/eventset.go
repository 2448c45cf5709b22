package model

import "sort"

// EventSet is a per-ticker map of events keyed by calendar date that
// remembers insertion order.
type EventSet struct {
	order  []string
	byDate map[string]*EarningsEvent
}

// NewEventSet returns an empty set.
func NewEventSet() *EventSet {
	return &EventSet{byDate: make(map[string]*EarningsEvent)}
}

// Put stores e under its date. An existing entry for the date is replaced
// in place and keeps its original position.
func (s *EventSet) Put(e EarningsEvent) {
	key := e.Key()
	if _, ok := s.byDate[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byDate[key] = &e
}

// Get returns the event stored for date key (YYYY-MM-DD).
func (s *EventSet) Get(key string) (*EarningsEvent, bool) {
	e, ok := s.byDate[key]
	return e, ok
}

// Remove deletes the event for key, if present.
func (s *EventSet) Remove(key string) {
	if _, ok := s.byDate[key]; !ok {
		return
	}
	delete(s.byDate, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of events.
func (s *EventSet) Len() int { return len(s.order) }

// Events returns copies of the events in insertion order.
func (s *EventSet) Events() []EarningsEvent {
	out := make([]EarningsEvent, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.byDate[k])
	}
	return out
}

// Sorted returns copies of the events in ascending date order.
func (s *EventSet) Sorted() []EarningsEvent {
	out := s.Events()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
