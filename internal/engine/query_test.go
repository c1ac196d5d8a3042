package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/argus/internal/domain"
)

var t0 = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

func TestQuery_CacheKeyIgnoresSetOrder(t *testing.T) {
	a := Query{
		Type:      QueryEvent,
		CameraIDs: []string{"b", "a", "a"},
		Start:     t0,
		End:       t0.Add(time.Hour),
		What:      []string{"person", "car"},
		HasClip:   Bool(true),
	}
	b := Query{
		Type:      QueryEvent,
		CameraIDs: []string{"a", "b"},
		Start:     t0,
		End:       t0.Add(time.Hour),
		What:      []string{"car", "person"},
		HasClip:   Bool(true),
	}

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.True(t, a.Equal(b))

	b.HasClip = Bool(false)
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())

	c := a
	c.HasClip = nil
	assert.NotEqual(t, a.CacheKey(), c.CacheKey(), "unset flag differs from false")
}

func TestQuery_EmptySetEqualsNil(t *testing.T) {
	a := Query{Type: QueryRecording, CameraIDs: []string{"a"}, Where: []string{}}
	b := Query{Type: QueryRecording, CameraIDs: []string{"a"}}
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestQuery_NormalizedDoesNotAlias(t *testing.T) {
	ids := []string{"b", "a"}
	q := Query{CameraIDs: ids}
	n := q.Normalized()

	assert.Equal(t, []string{"a", "b"}, n.CameraIDs)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestQuery_Validate(t *testing.T) {
	assert.ErrorIs(t, Query{}.Validate(), domain.ErrInvalidQuery)
	assert.ErrorIs(t, Query{CameraIDs: []string{"a"}, Start: t0.Add(time.Hour), End: t0}.Validate(), domain.ErrInvalidQuery)
	assert.NoError(t, Query{CameraIDs: []string{"a"}, Start: t0, End: t0}.Validate())
}

func TestSameSet(t *testing.T) {
	assert.True(t, SameSet(nil, []string{}))
	assert.True(t, SameSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, SameSet([]string{"a"}, []string{"b"}))
}

type fakeResults struct{ base ResultsBase }

func (r fakeResults) Base() ResultsBase { return r.base }

func TestResultsMap_Get(t *testing.T) {
	q1 := Query{Type: QueryEvent, CameraIDs: []string{"a", "b"}}
	q2 := Query{Type: QueryEvent, CameraIDs: []string{"c"}}
	m := ResultsMap{
		{Query: q1, Results: fakeResults{ResultsBase{Cached: true}}},
		{Query: q2, Results: fakeResults{ResultsBase{Cached: false}}},
	}

	r, ok := m.Get(Query{Type: QueryEvent, CameraIDs: []string{"b", "a"}})
	require.True(t, ok)
	assert.True(t, r.Base().Cached)
	assert.False(t, m.AllCached())
	assert.Len(t, m.Queries(), 2)
}

func TestGeneric_DegradesToNil(t *testing.T) {
	var e Engine = Generic{}
	ctx := context.Background()
	cfg := domain.CameraConfig{ID: "cam", CameraEntity: "camera.office"}

	assert.Equal(t, domain.EngineGeneric, e.EngineType())
	assert.Nil(t, e.GenerateDefaultEventQuery(Cameras{"cam": cfg}, []string{"cam"}, Query{}))

	results, err := e.GetEvents(ctx, nil, Cameras{"cam": cfg}, Query{}, Options{})
	assert.NoError(t, err)
	assert.Nil(t, results)

	_, ok, err := e.GetMediaSeekTime(ctx, nil, nil, domain.ViewMedia{}, t0, Options{})
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, &domain.CameraCapabilities{}, e.GetCameraCapabilities(cfg))
	assert.Equal(t, time.Duration(0), e.GetQueryResultMaxAge(Query{}))

	endpoints := e.GetCameraEndpoints(cfg, nil)
	require.NotNil(t, endpoints)
	assert.Equal(t, "camera.office", endpoints.WebRTCCard.Endpoint)
	assert.Nil(t, e.GetCameraEndpoints(domain.CameraConfig{ID: "bare"}, nil))

	assert.Equal(t, domain.CameraMetadata{Title: "camera.office", Icon: "mdi:video"}, e.GetCameraMetadata(cfg))
}
