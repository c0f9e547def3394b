// Package reconcile merges a freshly imported event set into the existing
// corpus.
package reconcile

import (
	"sort"

	appLog "dancefeed/internal/log"
	"dancefeed/internal/model"
)

// Coverage maps a source name to the window it was authoritative for in the
// current cycle. Sources that failed or were not run are absent.
type Coverage map[string]model.Window

// Reconcile returns the merged corpus:
//
//   - events present in both sets take the new version, except that a
//     cancellation is never undone;
//   - new events are added;
//   - old events missing from the new set are dropped only when their source
//     produced a batch this cycle and its window covers their start date.
//     Everything else, including hand-added events, is retained.
//
// The result is sorted by start date, then key. Reconcile(old, old, c)
// returns old in that order.
func Reconcile(old, updated []model.Event, coverage Coverage) []model.Event {
	oldByKey := index(old, "existing")
	newByKey := index(updated, "imported")

	merged := make([]model.Event, 0, len(newByKey)+len(oldByKey))
	for key, e := range newByKey {
		if prev, ok := oldByKey[key]; ok && prev.Cancelled {
			e.Cancelled = true
		}
		merged = append(merged, e)
	}
	for key, e := range oldByKey {
		if _, ok := newByKey[key]; ok {
			continue
		}
		if covered(e, coverage) {
			appLog.Debug("reconcile: dropping stale event", "name", e.Name, "link", e.PrimaryLink())
			continue
		}
		merged = append(merged, e)
	}

	sort.Slice(merged, func(i, j int) bool {
		di, dj := merged[i].StartDate(), merged[j].StartDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return merged[i].Key() < merged[j].Key()
	})
	return merged
}

// index keys events, keeping the later of two that collide.
func index(events []model.Event, set string) map[model.Key]model.Event {
	out := make(map[model.Key]model.Event, len(events))
	for _, e := range events {
		k := e.Key()
		if _, dup := out[k]; dup {
			appLog.Warn("reconcile: duplicate event key", "set", set, "name", e.Name, "link", e.PrimaryLink())
		}
		out[k] = e
	}
	return out
}

func covered(e model.Event, coverage Coverage) bool {
	if e.Source == nil {
		return false
	}
	w, ok := coverage[*e.Source]
	return ok && w.Contains(e.Time.Start())
}
