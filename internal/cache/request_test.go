package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testQuery struct {
	cameras []string
	limit   int
}

func (q testQuery) CacheKey() string {
	return fmt.Sprintf("%s|%d", strings.Join(q.cameras, ","), q.limit)
}

func TestRequestCache_StructuralKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRequestCache[string]("test").WithClock(func() time.Time { return now })

	c.Set(testQuery{cameras: []string{"a", "b"}, limit: 5}, "value", now.Add(time.Minute))

	got, ok := c.Get(testQuery{cameras: []string{"a", "b"}, limit: 5})
	require.True(t, ok)
	assert.Equal(t, "value", got)
	assert.True(t, c.Has(testQuery{cameras: []string{"a", "b"}, limit: 5}))

	_, ok = c.Get(testQuery{cameras: []string{"a"}, limit: 5})
	assert.False(t, ok)
}

func TestRequestCache_LazyExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRequestCache[int]("test").WithClock(func() time.Time { return now })
	q := testQuery{cameras: []string{"a"}}

	c.Set(q, 42, now.Add(time.Minute))
	assert.True(t, c.Has(q))

	now = now.Add(time.Minute)
	assert.False(t, c.Has(q))
	_, ok := c.Get(q)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry dropped on read")
}

func TestRequestCache_SweepOnSet(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRequestCache[int]("test").
		WithClock(func() time.Time { return now }).
		WithSweepThreshold(2)

	c.Set(testQuery{cameras: []string{"a"}}, 1, now.Add(time.Second))
	c.Set(testQuery{cameras: []string{"b"}}, 2, now.Add(time.Second))
	assert.Equal(t, 2, c.Len())

	now = now.Add(2 * time.Second)
	c.Set(testQuery{cameras: []string{"c"}}, 3, now.Add(time.Second))
	assert.Equal(t, 1, c.Len())
}

func TestRequestCache_Clear(t *testing.T) {
	c := NewRequestCache[int]("test")
	q := testQuery{cameras: []string{"a"}}
	c.Set(q, 1, time.Now().Add(time.Hour))

	c.Clear()
	assert.False(t, c.Has(q))
	assert.Equal(t, 0, c.Len())
}
