package frigate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/argus/internal/cache"
	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass/hasstest"
	"github.com/mmcdole/argus/internal/timerange"
)

func TestGenerateDefaultEventQuery_Batching(t *testing.T) {
	e, _ := newTestEngine(t)

	front := frigateCamera("front", "front_door")
	front.Frigate.Zones = []string{"yard"}
	back := frigateCamera("back", "back_door")
	back.Frigate.Zones = []string{"yard"}
	cameras := engine.Cameras{"front": front, "back": back}

	queries := e.GenerateDefaultEventQuery(cameras, []string{"front", "back"}, engine.Query{})
	require.Len(t, queries, 1)
	assert.Equal(t, []string{"back", "front"}, queries[0].CameraIDs)
	assert.Equal(t, []string{"yard"}, queries[0].Where)
	assert.Equal(t, engine.QueryEvent, queries[0].Type)

	back.Frigate.Zones = []string{"porch"}
	cameras["back"] = back
	queries = e.GenerateDefaultEventQuery(cameras, []string{"front", "back"}, engine.Query{})
	require.Len(t, queries, 2)
	assert.Equal(t, []string{"porch"}, queries[0].Where)
	assert.Equal(t, []string{"yard"}, queries[1].Where)
}

func TestGenerateDefaultEventQuery_NilEqualsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	front := frigateCamera("front", "front_door")
	front.Frigate.Labels = []string{}
	cameras := engine.Cameras{"front": front, "back": frigateCamera("back", "back_door")}

	assert.Len(t, e.GenerateDefaultEventQuery(cameras, []string{"front", "back"}, engine.Query{}), 1)
}

func TestGenerateDefaultEventQuery_PartialOverrides(t *testing.T) {
	e, _ := newTestEngine(t)
	front := frigateCamera("front", "front_door")
	front.Frigate.Labels = []string{"person"}
	cameras := engine.Cameras{"front": front}

	queries := e.GenerateDefaultEventQuery(cameras, []string{"front", "unknown"}, engine.Query{What: []string{"car"}, Limit: 10})
	require.Len(t, queries, 1)
	assert.Equal(t, []string{"car"}, queries[0].What)
	assert.Equal(t, []string{"front"}, queries[0].CameraIDs)
	assert.Equal(t, 10, queries[0].Limit)
}

func TestGenerateDefaultRecordingSegmentsQuery_NeedsRange(t *testing.T) {
	e, _ := newTestEngine(t)
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}

	assert.Nil(t, e.GenerateDefaultRecordingSegmentsQuery(cameras, []string{"front"}, engine.Query{Start: t0}))
	assert.Len(t, e.GenerateDefaultRecordingSegmentsQuery(cameras, []string{"front"}, engine.Query{Start: t0, End: t0.Add(time.Hour)}), 1)
}

func TestGetEvents_NativeRequest(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().Respond(msgEventsGet, []map[string]any{
		{"id": "ev1", "camera": "front_door", "label": "person", "start_time": 1710072000.5, "has_clip": true},
	})
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}

	q := engine.Query{
		Type:      engine.QueryEvent,
		CameraIDs: []string{"front"},
		Start:     t0,
		End:       t0.Add(time.Hour),
		What:      []string{"person"},
		Tags:      []string{"bob", "alice"},
		HasClip:   engine.Bool(true),
	}
	results, err := e.GetEvents(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	calls := client.Calls(msgEventsGet)
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "frigate", req["instance_id"])
	assert.Equal(t, []any{"front_door"}, req["cameras"])
	assert.Equal(t, []any{"person"}, req["labels"])
	assert.Equal(t, "alice,bob", req["sub_labels"])
	assert.Equal(t, float64(t0.Unix()), req["after"])
	assert.Equal(t, float64(t0.Add(time.Hour).Unix()), req["before"])
	assert.Equal(t, float64(DefaultEventLimit), req["limit"])
	assert.Equal(t, true, req["has_clip"])
	assert.NotContains(t, req, "has_snapshot")
	assert.NotContains(t, req, "zones")

	r := results[0].Results.(*EventQueryResults)
	assert.False(t, r.Cached)
	require.Len(t, r.Events, 1)
	assert.Nil(t, r.Events[0].EndTime)
}

func TestGetEvents_FanOutByInstance(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().Handle(msgEventsGet, func(req map[string]any) (any, error) {
		return []map[string]any{{"id": req["instance_id"], "camera": "cam", "label": "car", "start_time": 1}}, nil
	})

	a := frigateCamera("a", "cam")
	b := frigateCamera("b", "cam")
	b.Frigate.ClientID = "garage"
	cameras := engine.Cameras{"a": a, "b": b}

	q := engine.Query{Type: engine.QueryEvent, CameraIDs: []string{"a", "b"}}
	results, err := e.GetEvents(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, client.Calls(msgEventsGet), 2)

	r, ok := results.Get(engine.Query{Type: engine.QueryEvent, CameraIDs: []string{"b"}})
	require.True(t, ok)
	assert.Equal(t, "garage", r.(*EventQueryResults).InstanceID)
	assert.Equal(t, "garage", r.(*EventQueryResults).Events[0].ID)
}

func TestGetEvents_FailFast(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().Handle(msgEventsGet, func(req map[string]any) (any, error) {
		if req["instance_id"] == "garage" {
			return nil, errors.New("instance offline")
		}
		return []map[string]any{}, nil
	})
	b := frigateCamera("b", "cam")
	b.Frigate.ClientID = "garage"
	cameras := engine.Cameras{"a": frigateCamera("a", "cam"), "b": b}

	results, err := e.GetEvents(context.Background(), client, cameras, engine.Query{Type: engine.QueryEvent, CameraIDs: []string{"a", "b"}}, engine.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance offline")
	assert.Nil(t, results)
}

func TestGetEvents_Cache(t *testing.T) {
	e, clock := newTestEngine(t)
	client := hasstest.NewClient().Respond(msgEventsGet, []map[string]any{})
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{Type: engine.QueryEvent, CameraIDs: []string{"front"}}
	ctx := context.Background()

	first, err := e.GetEvents(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.False(t, first.AllCached())

	second, err := e.GetEvents(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.True(t, second.AllCached())
	assert.Len(t, client.Calls(msgEventsGet), 1)
	assert.False(t, first[0].Results.Base().Cached, "cached copy must not alias the first result")

	_, err = e.GetEvents(ctx, client, cameras, q, engine.Options{BypassCache: true})
	require.NoError(t, err)
	assert.Len(t, client.Calls(msgEventsGet), 2)

	clock.Advance(61 * time.Second)
	third, err := e.GetEvents(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.False(t, third.AllCached())
	assert.Len(t, client.Calls(msgEventsGet), 3)
}

func recordingSummary(day string, hours ...int) []map[string]any {
	rows := make([]map[string]any, 0, len(hours))
	for _, h := range hours {
		rows = append(rows, map[string]any{"hour": fmt.Sprintf("%02d", h), "events": h, "duration": 3600})
	}
	return []map[string]any{{"day": day, "events": len(hours), "hours": rows}}
}

func TestGetRecordings_LimitKeepsNewest(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().Respond(msgRecordingsSummary, recordingSummary("2024-03-10", 8, 9, 10, 11, 12))
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}

	q := engine.Query{Type: engine.QueryRecording, CameraIDs: []string{"front"}, Limit: 2}
	results, err := e.GetRecordings(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	recs := results[0].Results.(*RecordingQueryResults).Recordings
	require.Len(t, recs, 2)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), recs[0].StartTime)
	assert.Equal(t, time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC), recs[1].StartTime)
	assert.Equal(t, time.Hour, recs[0].EndTime.Sub(recs[0].StartTime))
	assert.Equal(t, 12, recs[0].Events)

	req := client.Calls(msgRecordingsSummary)[0]
	assert.Equal(t, "front_door", req["camera"])
	assert.Equal(t, "UTC", req["timezone"])
}

func TestGetRecordings_FiltersToWindow(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().Respond(msgRecordingsSummary, recordingSummary("2024-03-10", 8, 9, 10, 11, 12))
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}

	q := engine.Query{
		Type:      engine.QueryRecording,
		CameraIDs: []string{"front"},
		Start:     time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC),
	}
	results, err := e.GetRecordings(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)

	recs := results[0].Results.(*RecordingQueryResults).Recordings
	require.Len(t, recs, 2)
	assert.Equal(t, 10, recs[0].StartTime.Hour())
	assert.Equal(t, 9, recs[1].StartTime.Hour())
}

func segment(id string, start, end time.Time) map[string]any {
	return map[string]any{
		"id":         id,
		"start_time": float64(start.Unix()),
		"end_time":   float64(end.Unix()),
	}
}

func TestGetRecordingSegments_ServedFromCache(t *testing.T) {
	e, clock := newTestEngine(t)
	clock.Advance(time.Hour)
	client := hasstest.NewClient().Respond(msgRecordingsGet, []map[string]any{
		segment("s1", t0, t0.Add(10*time.Second)),
		segment("s2", t0.Add(10*time.Second), t0.Add(20*time.Second)),
	})
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{
		Type:      engine.QueryRecordingSegments,
		CameraIDs: []string{"front"},
		Start:     t0,
		End:       t0.Add(time.Minute),
	}
	ctx := context.Background()

	first, err := e.GetRecordingSegments(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.False(t, first.AllCached())

	req := client.Calls(msgRecordingsGet)[0]
	assert.Equal(t, float64(t0.Unix()), req["after"])
	assert.Equal(t, float64(t0.Add(time.Minute).Unix()), req["before"])
	assert.Equal(t, "front_door", req["camera"])

	narrower := q
	narrower.End = t0.Add(15 * time.Second)
	second, err := e.GetRecordingSegments(ctx, client, cameras, narrower, engine.Options{})
	require.NoError(t, err)
	assert.True(t, second.AllCached())
	assert.Len(t, second[0].Results.(*RecordingSegmentsQueryResults).Segments, 2)
	assert.Len(t, client.Calls(msgRecordingsGet), 1)
}

func TestGetRecordingSegments_RefetchesWindowReachingPastNow(t *testing.T) {
	e, clock := newTestEngine(t)
	clock.Advance(10 * time.Second)

	recorded := 1
	client := hasstest.NewClient().Handle(msgRecordingsGet, func(map[string]any) (any, error) {
		segs := make([]map[string]any, 0, recorded)
		for i := 0; i < recorded; i++ {
			start := t0.Add(time.Duration(i) * 10 * time.Second)
			segs = append(segs, segment(fmt.Sprintf("s%d", i), start, start.Add(10*time.Second)))
		}
		return segs, nil
	})
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}, Start: t0, End: t0.Add(time.Hour)}
	ctx := context.Background()

	_, err := e.GetRecordingSegments(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	recorded = 30

	results, err := e.GetRecordingSegments(ctx, client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.False(t, results.AllCached())
	assert.Len(t, results[0].Results.(*RecordingSegmentsQueryResults).Segments, 30)
	assert.Len(t, client.Calls(msgRecordingsGet), 2)

	past := engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}, Start: t0, End: t0.Add(5 * time.Minute)}
	cached, err := e.GetRecordingSegments(ctx, client, cameras, past, engine.Options{})
	require.NoError(t, err)
	assert.True(t, cached.AllCached(), "the part of the window before now stays cached")
	assert.Len(t, client.Calls(msgRecordingsGet), 2)
}

func TestGetRecordingSegments_RequiresRange(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.GetRecordingSegments(context.Background(), hasstest.NewClient(), engine.Cameras{},
		engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}}, engine.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestGarbageCollectSegments_EvictsDeletedHours(t *testing.T) {
	e, _ := newTestEngine(t)
	h := func(hour int) time.Time { return time.Date(2024, 3, 10, hour, 15, 0, 0, time.UTC) }

	client := hasstest.NewClient().
		Respond(msgRecordingsGet, []map[string]any{
			segment("h1", h(1), h(1).Add(10*time.Second)),
			segment("h2", h(2), h(2).Add(10*time.Second)),
			segment("h3", h(3), h(3).Add(10*time.Second)),
		}).
		Respond(msgRecordingsSummary, recordingSummary("2024-03-10", 1, 3))
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}, Start: h(0), End: h(4)}

	_, err := e.GetRecordingSegments(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)
	require.Equal(t, 3, e.SegmentsCache().Size("front"))

	evicted, err := e.GarbageCollectSegments(context.Background(), client, cameras)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	segs, ok := e.SegmentsCache().Get("front", q.Range())
	require.True(t, ok)
	require.Len(t, segs, 2)
	assert.Equal(t, "h1", segs[0].ID)
	assert.Equal(t, "h3", segs[1].ID)
}

func TestGarbageCollectSegments_SummaryFailureAborts(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().
		Respond(msgRecordingsGet, []map[string]any{segment("s1", t0, t0.Add(time.Second))}).
		Handle(msgRecordingsSummary, func(map[string]any) (any, error) { return nil, errors.New("boom") })
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}, Start: t0, End: t0.Add(time.Minute)}

	_, err := e.GetRecordingSegments(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)

	_, err = e.GarbageCollectSegments(context.Background(), client, cameras)
	assert.Error(t, err)
	assert.Equal(t, 1, e.SegmentsCache().Size("front"))
}

func TestGarbageCollection_ScheduledAfterFetch(t *testing.T) {
	e, clock := newTestEngine(t)
	client := hasstest.NewClient().
		Respond(msgRecordingsGet, []map[string]any{segment("s1", t0, t0.Add(time.Second))}).
		Respond(msgRecordingsSummary, []map[string]any{})
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}
	q := engine.Query{Type: engine.QueryRecordingSegments, CameraIDs: []string{"front"}, Start: t0, End: t0.Add(time.Minute)}

	_, err := e.GetRecordingSegments(context.Background(), client, cameras, q, engine.Options{})
	require.NoError(t, err)
	assert.Empty(t, client.Calls(msgRecordingsSummary), "gc does not run on the leading edge")

	clock.Advance(DefaultGCInterval)
	assert.Len(t, client.Calls(msgRecordingsSummary), 1)
	assert.Zero(t, e.SegmentsCache().Size("front"))
}

func TestGarbageCollection_CoversRestoredCameras(t *testing.T) {
	restored := cache.NewRecordingSegmentsCache()
	restored.Add("garage", timerange.DateRange{Start: t0.Add(-2 * time.Hour), End: t0.Add(-time.Hour)},
		[]domain.RecordingSegment{{ID: "old", StartTime: float64(t0.Add(-90 * time.Minute).Unix()), EndTime: float64(t0.Add(-89 * time.Minute).Unix())}})

	e, clock := newTestEngine(t, WithSegmentsCache(restored))
	client := hasstest.NewClient().Respond(msgRecordingsSummary, []map[string]any{})

	_, err := e.InitializeCamera(context.Background(), client, nil, frigateCamera("garage", "garage"))
	require.NoError(t, err)
	require.Equal(t, 1, restored.Size("garage"))

	clock.Advance(DefaultGCInterval)
	assert.Len(t, client.Calls(msgRecordingsSummary), 1)
	assert.Zero(t, restored.Size("garage"), "segments restored from disk are collected without a fetch this run")
}

func TestGetMediaMetadata(t *testing.T) {
	e, _ := newTestEngine(t)
	client := hasstest.NewClient().
		Respond(msgEventsSummary, []map[string]any{
			{"camera": "front_door", "day": "2024-03-09", "label": "person", "sub_label": "bob", "zones": []string{"yard"}, "count": 2},
			{"camera": "front_door", "day": "2024-03-10", "label": "car", "sub_label": nil, "zones": []string{}, "count": 1},
			{"camera": "elsewhere", "day": "2024-01-01", "label": "dog", "zones": []string{"park"}, "count": 1},
		}).
		Respond(msgRecordingsSummary, recordingSummary("2024-03-08", 1))
	cameras := engine.Cameras{"front": frigateCamera("front", "front_door")}

	results, err := e.GetMediaMetadata(context.Background(), client, cameras,
		engine.Query{Type: engine.QueryMediaMetadata, CameraIDs: []string{"front"}}, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	md := results[0].Results.(*MediaMetadataQueryResults).Metadata
	assert.Equal(t, []string{"car", "person"}, md.What)
	assert.Equal(t, []string{"yard"}, md.Where)
	assert.Equal(t, []string{"bob"}, md.Tags)
	assert.Equal(t, []string{"2024-03-08", "2024-03-09", "2024-03-10"}, md.Days)
}
