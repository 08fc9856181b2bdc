package knownstore

import (
	"context"
	"hwnotifier/lib/telemetry"
	"sort"
)

var tracer = telemetry.Tracer("hwnotifier.lib.knownstore")

// Set is the set of homework keys that were already notified.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Store interface {
	// Load returns an empty set when nothing was saved yet.
	Load(ctx context.Context) (Set, error)
	// Save replaces everything that was stored with `set`, a failed save
	// leaves the previous contents intact.
	Save(ctx context.Context, set Set) error
}
