// Package adapters holds the registry of concrete source adapters. Each
// adapter package registers itself from init; import it for side effects.
package adapters

import (
	"fmt"
	"sort"
	"time"

	"dancefeed/internal/source"
)

// Options carries per-deployment settings into adapter constructors.
type Options struct {
	// Horizon overrides the adapter's default fetch horizon when positive.
	Horizon time.Duration
	// PlugToken is the plug.events embed token.
	PlugToken string
}

// Constructor is a function that creates a new Adapter instance.
type Constructor func(Options) (source.Adapter, error)

var registry = map[string]Constructor{}

// Register adds an adapter constructor under the given source name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the adapter constructor for the given source name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", name)
	}
	return ctor, nil
}

// Names returns the names of all registered sources, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HorizonOr picks opts.Horizon when set, otherwise def.
func (o Options) HorizonOr(def time.Duration) time.Duration {
	if o.Horizon > 0 {
		return o.Horizon
	}
	return def
}

// DefaultHorizon is how far ahead most feeds list events.
const DefaultHorizon = 365 * 24 * time.Hour
