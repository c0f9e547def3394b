// Package corpus holds the live, immutable event snapshot served to readers.
package corpus

import (
	"sync/atomic"

	"dancefeed/internal/model"
)

type snapshot struct {
	events []model.Event
}

// Corpus is safe for concurrent use. Readers see whole snapshots only;
// Replace swaps the snapshot in one atomic store.
type Corpus struct {
	current atomic.Pointer[snapshot]
}

// New returns a corpus holding a copy of events, sorted by start.
func New(events []model.Event) *Corpus {
	c := &Corpus{}
	c.Replace(events)
	return c
}

// Replace installs events as the new snapshot. The slice is copied.
func (c *Corpus) Replace(events []model.Event) {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	model.SortByStart(cp)
	c.current.Store(&snapshot{events: cp})
}

func (c *Corpus) load() *snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return &snapshot{}
}

// Events returns a copy of the current snapshot, ordered by start.
func (c *Corpus) Events() []model.Event {
	s := c.load()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Matching returns the events of the current snapshot that satisfy f, in
// start order.
func (c *Corpus) Matching(f model.Filters) []model.Event {
	var out []model.Event
	for _, e := range c.load().events {
		if e.Matches(f) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Corpus) Len() int { return len(c.load().events) }
