// Package debugstats implements a hierarchical timing/counter accumulator
// used only when a caller asks for debug output on a symbolication request.
// It is request-scoped and used by exactly one goroutine; there is no
// thread-safety built in, matching the teacher's request-scoped Config/
// telemetry-attribute objects which are never shared across requests.
package debugstats

import (
	"strings"
	"time"
)

// Stats is a tree of nested maps keyed by dotted strings or string slices.
// Leaves are numbers (int or float64).
type Stats struct {
	data map[string]any
}

// New returns an empty Stats tree.
func New() *Stats {
	return &Stats{data: make(map[string]any)}
}

func splitKey(key any) []string {
	switch k := key.(type) {
	case string:
		return strings.Split(k, ".")
	case []string:
		return k
	default:
		panic("debugstats: key must be a string or []string")
	}
}

// Set writes value at the dotted-path or array key, creating intermediate
// maps as needed.
func (s *Stats) Set(key any, value any) {
	parts := splitKey(key)
	ptr := s.data
	for _, part := range parts[:len(parts)-1] {
		next, ok := ptr[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			ptr[part] = next
		}
		ptr = next
	}
	ptr[parts[len(parts)-1]] = value
}

// Get reads the value at key, or def if the path doesn't fully exist.
func (s *Stats) Get(key any, def any) any {
	parts := splitKey(key)
	var cur any = s.data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		v, ok := m[part]
		if !ok {
			return def
		}
		cur = v
	}
	return cur
}

// Incr adds value to the numeric leaf at key, initializing it to 0 first if
// the path doesn't exist yet.
func (s *Stats) Incr(key any, value float64) {
	current := toFloat(s.Get(key, 0.0))
	s.Set(key, current+value)
}

func toFloat(v any) float64 {
	return ToFloat(v)
}

// ToFloat coerces a Stats leaf value (int or float64) to float64, returning
// 0 for anything else. Exported so callers summing *_per_module sub-trees
// (e.g. the v5 debug stanza) don't need to duplicate this coercion.
func ToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Timer starts a monotonic-clock measurement and returns a stop function
// that writes the elapsed seconds to key when called. The measurement
// completes unconditionally, including on an error path, since callers are
// expected to `defer stop()` immediately after starting it -- the idiomatic
// Go stand-in for a `with`-block contextmanager.
func (s *Stats) Timer(key any) func() {
	start := time.Now()
	return func() {
		s.Set(key, time.Since(start).Seconds())
	}
}

// Data returns the underlying tree for JSON serialization.
func (s *Stats) Data() map[string]any {
	return s.data
}
