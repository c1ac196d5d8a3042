package frigate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
	"github.com/mmcdole/argus/internal/timerange"
)

const (
	msgEventsGet         = "frigate/events/get"
	msgEventsSummary     = "frigate/events/summary"
	msgRecordingsSummary = "frigate/recordings/summary"
	msgRecordingsGet     = "frigate/recordings/get"
	msgEventRetain       = "frigate/event/retain"

	dayLayout = "2006-01-02"
)

// GetEvents fetches events with one request per Frigate instance.
func (e *Engine) GetEvents(ctx context.Context, client hass.Client, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	ctx, span, done := e.begin(ctx, "frigate.GetEvents", q)
	defer done()

	results, err := fanOut(ctx, splitByInstance(cameras, q), func(ctx context.Context, iq instanceQuery) (engine.QueryResult, error) {
		if r, ok := e.cachedResults(iq.query, opts); ok {
			return engine.QueryResult{Query: iq.query, Results: r}, nil
		}

		req := eventsRequest{
			Type:        msgEventsGet,
			InstanceID:  iq.instanceID,
			Cameras:     frigateCameraNames(cameras, iq.query.CameraIDs),
			Labels:      iq.query.What,
			Zones:       iq.query.Where,
			SubLabels:   strings.Join(iq.query.Tags, ","),
			After:       unixSeconds(iq.query.Start),
			Before:      unixSeconds(iq.query.End),
			Limit:       iq.query.Limit,
			HasClip:     iq.query.HasClip,
			HasSnapshot: iq.query.HasSnapshot,
			Favorites:   iq.query.Favorite,
		}
		if req.Limit == 0 {
			req.Limit = e.eventLimit
		}

		events, err := hass.Call[[]Event](ctx, client, req)
		if err != nil {
			return engine.QueryResult{}, fmt.Errorf("failed to fetch events from frigate instance %s: %w", iq.instanceID, err)
		}

		result := &EventQueryResults{
			ResultsBase: e.resultsBase(iq.query),
			InstanceID:  iq.instanceID,
			Events:      events,
		}
		e.storeResults(iq.query, result)
		return engine.QueryResult{Query: iq.query, Results: result}, nil
	})
	return results, endSpan(span, err)
}

// GetRecordings fetches the hourly recording summary of every camera.
// Frigate has no native limit, so results are sorted newest first and
// truncated here.
func (e *Engine) GetRecordings(ctx context.Context, client hass.Client, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	ctx, span, done := e.begin(ctx, "frigate.GetRecordings", q)
	defer done()

	results, err := fanOut(ctx, splitByCamera(cameras, q), func(ctx context.Context, cq cameraQuery) (engine.QueryResult, error) {
		if r, ok := e.cachedResults(cq.query, opts); ok {
			return engine.QueryResult{Query: cq.query, Results: r}, nil
		}

		cfg := cameras[cq.cameraID]
		summary, err := e.fetchRecordingSummary(ctx, client, cfg)
		if err != nil {
			return engine.QueryResult{}, err
		}

		var recordings []domain.Recording
		for _, rec := range e.recordingsFromSummary(cq.cameraID, summary) {
			if withinQuery(cq.query, rec.StartTime, rec.EndTime) {
				recordings = append(recordings, rec)
			}
		}
		sort.SliceStable(recordings, func(i, j int) bool {
			return recordings[i].StartTime.After(recordings[j].StartTime)
		})
		if cq.query.Limit > 0 && len(recordings) > cq.query.Limit {
			recordings = recordings[:cq.query.Limit]
		}

		result := &RecordingQueryResults{
			ResultsBase: e.resultsBase(cq.query),
			InstanceID:  cfg.FrigateClientID(),
			Recordings:  recordings,
		}
		e.storeResults(cq.query, result)
		return engine.QueryResult{Query: cq.query, Results: result}, nil
	})
	return results, endSpan(span, err)
}

// GetRecordingSegments returns segments per camera, from the segments cache
// when the window was fetched before. Every fetch schedules a throttled GC.
func (e *Engine) GetRecordingSegments(ctx context.Context, client hass.Client, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	if !q.HasRange() {
		return nil, fmt.Errorf("%w: recording segments need a start and end", domain.ErrInvalidQuery)
	}

	ctx, span, done := e.begin(ctx, "frigate.GetRecordingSegments", q)
	defer done()

	window := q.Range()
	results, err := fanOut(ctx, splitByCamera(cameras, q), func(ctx context.Context, cq cameraQuery) (engine.QueryResult, error) {
		cfg := cameras[cq.cameraID]
		base := engine.ResultsBase{Engine: domain.EngineFrigate, Type: engine.QueryRecordingSegments}

		if !opts.BypassCache {
			if segments, ok := e.segmentsCache.Get(cq.cameraID, window); ok {
				base.Cached = true
				return engine.QueryResult{Query: cq.query, Results: &RecordingSegmentsQueryResults{
					ResultsBase: base,
					InstanceID:  cfg.FrigateClientID(),
					Segments:    segments,
				}}, nil
			}
		}

		segments, err := hass.Call[[]domain.RecordingSegment](ctx, client, recordingsGetRequest{
			Type:       msgRecordingsGet,
			InstanceID: cfg.FrigateClientID(),
			Camera:     cfg.Frigate.CameraName,
			After:      int64(math.Floor(float64(window.Start.UnixMilli()) / 1000)),
			Before:     int64(math.Ceil(float64(window.End.UnixMilli()) / 1000)),
		})
		if err != nil {
			return engine.QueryResult{}, fmt.Errorf("failed to fetch recording segments for %s: %w", cq.cameraID, err)
		}

		// Footage after now is still being recorded, so only the past part
		// of the window counts as fetched.
		covered := window
		if now := e.now(); covered.End.After(now) {
			covered.End = now
		}
		e.segmentsCache.Add(cq.cameraID, covered, segments)
		e.scheduleGC(client, cq.cameraID, cfg)

		return engine.QueryResult{Query: cq.query, Results: &RecordingSegmentsQueryResults{
			ResultsBase: base,
			InstanceID:  cfg.FrigateClientID(),
			Segments:    segments,
		}}, nil
	})
	return results, endSpan(span, err)
}

// GetMediaMetadata collects the labels, zones, sub-labels and days with media
// for every instance.
func (e *Engine) GetMediaMetadata(ctx context.Context, client hass.Client, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	ctx, span, done := e.begin(ctx, "frigate.GetMediaMetadata", q)
	defer done()

	results, err := fanOut(ctx, splitByInstance(cameras, q), func(ctx context.Context, iq instanceQuery) (engine.QueryResult, error) {
		if r, ok := e.cachedResults(iq.query, opts); ok {
			return engine.QueryResult{Query: iq.query, Results: r}, nil
		}

		summary, err := hass.Call[[]EventSummary](ctx, client, eventsSummaryRequest{
			Type:       msgEventsSummary,
			InstanceID: iq.instanceID,
			Timezone:   e.location.String(),
		})
		if err != nil {
			return engine.QueryResult{}, fmt.Errorf("failed to fetch event summary from frigate instance %s: %w", iq.instanceID, err)
		}

		names := make(map[string]bool)
		for _, name := range frigateCameraNames(cameras, iq.query.CameraIDs) {
			names[name] = true
		}

		what, where, tags, days := newSet(), newSet(), newSet(), newSet()
		for _, row := range summary {
			if !names[row.Camera] {
				continue
			}
			what.add(row.Label)
			where.add(row.Zones...)
			tags.add(row.SubLabel...)
			days.add(row.Day)
		}

		for _, id := range iq.query.CameraIDs {
			recordingDays, err := e.fetchRecordingSummary(ctx, client, cameras[id])
			if err != nil {
				return engine.QueryResult{}, err
			}
			for _, day := range recordingDays {
				days.add(day.Day)
			}
		}

		result := &MediaMetadataQueryResults{
			ResultsBase: e.resultsBase(iq.query),
			InstanceID:  iq.instanceID,
			Metadata: domain.MediaMetadata{
				What:  what.sorted(),
				Where: where.sorted(),
				Tags:  tags.sorted(),
				Days:  days.sorted(),
			},
		}
		e.storeResults(iq.query, result)
		return engine.QueryResult{Query: iq.query, Results: result}, nil
	})
	return results, endSpan(span, err)
}

func (e *Engine) fetchRecordingSummary(ctx context.Context, client hass.Client, cfg domain.CameraConfig) ([]RecordingSummary, error) {
	summary, err := hass.Call[[]RecordingSummary](ctx, client, recordingsSummaryRequest{
		Type:       msgRecordingsSummary,
		InstanceID: cfg.FrigateClientID(),
		Camera:     cfg.Frigate.CameraName,
		Timezone:   e.location.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recording summary for %s: %w", cfg.Frigate.CameraName, err)
	}
	return summary, nil
}

// recordingsFromSummary turns day/hour buckets into hour-aligned recordings.
func (e *Engine) recordingsFromSummary(cameraID string, summary []RecordingSummary) []domain.Recording {
	var out []domain.Recording
	for _, day := range summary {
		date, err := time.ParseInLocation(dayLayout, day.Day, e.location)
		if err != nil {
			e.logger.Debug("skipping malformed recording day", "day", day.Day, "error", err)
			continue
		}
		for _, hour := range day.Hours {
			start := time.Date(date.Year(), date.Month(), date.Day(), int(hour.Hour), 0, 0, 0, e.location)
			out = append(out, domain.Recording{
				CameraID:  cameraID,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				Events:    hour.Events,
			})
		}
	}
	return out
}

// withinQuery reports whether [start, end] overlaps the (possibly open) query window.
func withinQuery(q engine.Query, start, end time.Time) bool {
	if q.HasRange() {
		return timerange.Overlaps(timerange.DateRange{Start: start, End: end}, q.Range())
	}
	if !q.Start.IsZero() && end.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && start.After(q.End) {
		return false
	}
	return true
}

func frigateCameraNames(cameras engine.Cameras, ids []string) []string {
	names := newSet()
	for _, id := range ids {
		if cfg, ok := cameras[id]; ok && cfg.Frigate.CameraName != "" {
			names.add(cfg.Frigate.CameraName)
		}
	}
	return names.sorted()
}

func (e *Engine) resultsBase(q engine.Query) engine.ResultsBase {
	return engine.ResultsBase{
		Engine: domain.EngineFrigate,
		Type:   q.Type,
		Expiry: e.now().Add(e.GetQueryResultMaxAge(q)),
	}
}

// cachedResults returns a copy of the cached results marked as cached.
func (e *Engine) cachedResults(q engine.Query, opts engine.Options) (engine.Results, bool) {
	if opts.BypassCache {
		return nil, false
	}
	r, ok := e.requestCache.Get(q)
	if !ok {
		return nil, false
	}
	return copyResults(r, true), true
}

// storeResults caches a copy of r so callers never hold the cached value.
func (e *Engine) storeResults(q engine.Query, r engine.Results) {
	if e.GetQueryResultMaxAge(q) <= 0 {
		return
	}
	e.requestCache.Set(q, copyResults(r, false), r.Base().Expiry)
}

func copyResults(r engine.Results, cached bool) engine.Results {
	switch v := r.(type) {
	case *EventQueryResults:
		out := *v
		out.Cached = cached
		return &out
	case *RecordingQueryResults:
		out := *v
		out.Cached = cached
		return &out
	case *RecordingSegmentsQueryResults:
		out := *v
		out.Cached = cached
		return &out
	case *MediaMetadataQueryResults:
		out := *v
		out.Cached = cached
		return &out
	}
	return r
}

// begin starts a span and marks foreground activity so GC stays out of the way.
func (e *Engine) begin(ctx context.Context, name string, q engine.Query) (context.Context, trace.Span, func()) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("query.type", string(q.Type)),
		attribute.StringSlice("query.camera_ids", q.CameraIDs),
	)
	activityDone := e.activity.Begin()
	return ctx, span, func() {
		activityDone()
		span.End()
	}
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type stringSet map[string]struct{}

func newSet() stringSet { return make(stringSet) }

func (s stringSet) add(values ...string) {
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s stringSet) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
