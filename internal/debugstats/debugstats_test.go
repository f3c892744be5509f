package debugstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetDottedPath(t *testing.T) {
	s := New()
	s.Set("modules.count", 3)
	assert.Equal(t, 3, s.Get("modules.count", nil))
}

func TestSetGetArrayPath(t *testing.T) {
	s := New()
	s.Set([]string{"downloads", "size_per_module", "xul.pdb/ABC"}, 1024.0)
	assert.Equal(t, 1024.0, s.Get([]string{"downloads", "size_per_module", "xul.pdb/ABC"}, nil))
}

func TestGetMissingReturnsDefault(t *testing.T) {
	s := New()
	assert.Equal(t, "fallback", s.Get("nope.nested", "fallback"))
}

func TestIncrInitializesToZero(t *testing.T) {
	s := New()
	s.Incr("cache_lookups.count", 1)
	assert.Equal(t, 1.0, s.Get("cache_lookups.count", nil))
	s.Incr("cache_lookups.count", 1)
	assert.Equal(t, 2.0, s.Get("cache_lookups.count", nil))
}

func TestIncrZeroCreatesLeafWithoutChangingValue(t *testing.T) {
	s := New()
	s.Incr("downloads.count", 5)
	s.Incr("downloads.count", 0)
	assert.Equal(t, 5.0, s.Get("downloads.count", nil))
}

func TestTimerWritesElapsedSeconds(t *testing.T) {
	s := New()
	stop := s.Timer("time")
	stop()
	v, ok := s.Get("time", nil).(float64)
	if !ok {
		t.Fatalf("expected a float64 elapsed time, got %#v", s.Get("time", nil))
	}
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestDataReturnsUnderlyingTree(t *testing.T) {
	s := New()
	s.Set("a.b", 1)
	data := s.Data()
	inner, ok := data["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %#v", data["a"])
	}
	assert.Equal(t, 1, inner["b"])
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 2.0, ToFloat(2))
	assert.Equal(t, 2.5, ToFloat(2.5))
	assert.Equal(t, 0.0, ToFloat("not a number"))
}
