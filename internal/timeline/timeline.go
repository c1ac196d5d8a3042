// Package timeline keeps a per-camera dataset of events and recorded ranges
// fresh for a scrolling time window.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/metrics"
	"github.com/mmcdole/argus/internal/timerange"
)

const (
	// CoverageMaxAge is how long a fetched window is considered fresh
	CoverageMaxAge = 60 * time.Second

	// SegmentTolerance merges recording segments closer than this into one block
	SegmentTolerance = 60 * time.Second
)

// MediaSource is what the timeline needs from the camera manager.
type MediaSource interface {
	GenerateDefaultEventQueries(cameraIDs []string, partial engine.Query) []engine.Query
	GenerateDefaultRecordingSegmentsQueries(cameraIDs []string, partial engine.Query) []engine.Query
	ExecuteMediaQueries(ctx context.Context, queries []engine.Query, opts engine.Options) ([]domain.ViewMedia, error)
	GetRecordingSegments(ctx context.Context, q engine.Query, opts engine.Options) (engine.ResultsMap, error)
	GetCameraMetadata(cameraID string) (domain.CameraMetadata, bool)
}

// ItemKind distinguishes event items from recording background items
type ItemKind string

const (
	ItemEvent     ItemKind = "event"
	ItemRecording ItemKind = "recording"
)

// Item is one entry on the timeline
type Item struct {
	ID       string            `json:"id"`
	Kind     ItemKind          `json:"kind"`
	CameraID string            `json:"camera_id"`
	Start    time.Time         `json:"start"`
	End      time.Time         `json:"end"`
	Title    string            `json:"title,omitempty"`
	Media    *domain.ViewMedia `json:"media,omitempty"`
}

// Group is a timeline row
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MediaFilter restricts which event media are shown
type MediaFilter string

const (
	MediaAll       MediaFilter = "all"
	MediaClips     MediaFilter = "clips"
	MediaSnapshots MediaFilter = "snapshots"
)

// DataSource is the timeline dataset.
type DataSource struct {
	source    MediaSource
	cameraIDs []string
	filter    MediaFilter
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics

	coverage *timerange.ExpiringMemoryRangeSet

	mu    sync.RWMutex
	items map[string]Item
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(d *DataSource) { d.now = now }
}

// WithMediaFilter restricts events to clips or snapshots.
func WithMediaFilter(f MediaFilter) Option {
	return func(d *DataSource) { d.filter = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *DataSource) { d.logger = l }
}

// New creates a timeline for cameraIDs.
func New(source MediaSource, cameraIDs []string, opts ...Option) *DataSource {
	d := &DataSource{
		source:    source,
		cameraIDs: append([]string(nil), cameraIDs...),
		filter:    MediaAll,
		now:       time.Now,
		logger:    slog.Default(),
		metrics:   metrics.Get(),
		items:     make(map[string]Item),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.coverage = timerange.NewExpiringMemoryRangeSet().WithClock(d.now)
	return d
}

// SnapWindow widens w to whole hours so neighbouring refreshes share cache entries.
func SnapWindow(w timerange.DateRange) timerange.DateRange {
	start := w.Start.Truncate(time.Hour)
	end := w.End.Truncate(time.Hour)
	if end.Before(w.End) || end.Equal(start) {
		end = end.Add(time.Hour)
	}
	return timerange.DateRange{Start: start, End: end}
}

// Refresh makes sure window is loaded. A window covered by a fetch younger
// than CoverageMaxAge is not fetched again.
func (d *DataSource) Refresh(ctx context.Context, window timerange.DateRange) error {
	if !window.Valid() {
		return fmt.Errorf("%w: window start %s is after end %s", domain.ErrInvalidQuery, window.Start, window.End)
	}
	if d.coverage.HasCoverage(window) {
		d.metrics.TimelineRefreshes.WithLabelValues("covered").Inc()
		return nil
	}

	snapped := SnapWindow(window)
	partial := engine.Query{Start: snapped.Start, End: snapped.End}

	var (
		media    []domain.ViewMedia
		segments map[string][]domain.RecordingSegment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		media, err = d.fetchEvents(gctx, partial)
		return err
	})
	g.Go(func() error {
		var err error
		segments, err = d.fetchSegments(gctx, partial)
		return err
	})
	if err := g.Wait(); err != nil {
		d.metrics.TimelineRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to refresh timeline: %w", err)
	}

	d.mu.Lock()
	for _, m := range media {
		item := d.eventItem(m)
		d.items[item.ID] = item
	}
	for cameraID, segs := range segments {
		d.replaceRecordingsLocked(cameraID, snapped, segs)
	}
	d.mu.Unlock()

	d.coverage.Add(timerange.ExpiringRange{DateRange: snapped, Expires: d.now().Add(CoverageMaxAge)})
	d.metrics.TimelineRefreshes.WithLabelValues("fetched").Inc()
	d.logger.Debug("timeline refreshed", "start", snapped.Start, "end", snapped.End,
		"events", len(media), "cameras_with_recordings", len(segments))
	return nil
}

func (d *DataSource) fetchEvents(ctx context.Context, partial engine.Query) ([]domain.ViewMedia, error) {
	switch d.filter {
	case MediaClips:
		partial.HasClip = engine.Bool(true)
	case MediaSnapshots:
		partial.HasSnapshot = engine.Bool(true)
	}
	queries := d.source.GenerateDefaultEventQueries(d.cameraIDs, partial)
	if len(queries) == 0 {
		return nil, nil
	}
	return d.source.ExecuteMediaQueries(ctx, queries, engine.Options{})
}

func (d *DataSource) fetchSegments(ctx context.Context, partial engine.Query) (map[string][]domain.RecordingSegment, error) {
	out := make(map[string][]domain.RecordingSegment)
	for _, q := range d.source.GenerateDefaultRecordingSegmentsQueries(d.cameraIDs, partial) {
		results, err := d.source.GetRecordingSegments(ctx, q, engine.Options{})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			seg, ok := r.Results.(engine.SegmentsResults)
			if !ok || len(r.Query.CameraIDs) != 1 {
				continue
			}
			cameraID := r.Query.CameraIDs[0]
			out[cameraID] = append(out[cameraID], seg.RecordingSegments()...)
		}
	}
	return out, nil
}

func (d *DataSource) eventItem(m domain.ViewMedia) Item {
	end, ok := m.EndTime()
	if !ok {
		end = d.now()
	}
	media := m
	return Item{
		ID:       m.ID(),
		Kind:     ItemEvent,
		CameraID: m.CameraID(),
		Start:    m.StartTime(),
		End:      end,
		Title:    m.Title(),
		Media:    &media,
	}
}

// replaceRecordingsLocked swaps the recording blocks of cameraID inside window
// for blocks built from segs. Blocks crossing the window edge are merged with
// the new ranges so the same footage is never drawn twice.
func (d *DataSource) replaceRecordingsLocked(cameraID string, window timerange.DateRange, segs []domain.RecordingSegment) {
	ranges := make([]timerange.DateRange, 0, len(segs))
	for id, item := range d.items {
		if item.Kind != ItemRecording || item.CameraID != cameraID {
			continue
		}
		block := timerange.DateRange{Start: item.Start, End: item.End}
		if !timerange.Overlaps(window, block) {
			continue
		}
		delete(d.items, id)
		if !timerange.IsEntirelyContained(window, block) {
			ranges = append(ranges, block)
		}
	}

	for _, seg := range segs {
		ranges = append(ranges, seg.Range())
	}
	for _, r := range timerange.Compress(ranges, SegmentTolerance) {
		id := fmt.Sprintf("recording/%s/%d", cameraID, r.Start.Unix())
		d.items[id] = Item{
			ID:       id,
			Kind:     ItemRecording,
			CameraID: cameraID,
			Start:    r.Start,
			End:      r.End,
		}
	}
}

// RewriteEvent replaces the item of an already loaded event, e.g. after it
// was favorited. It reports whether the event was present.
func (d *DataSource) RewriteEvent(m domain.ViewMedia) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.items[m.ID()]; !ok {
		return false
	}
	item := d.eventItem(m)
	d.items[item.ID] = item
	return true
}

// Items returns the dataset ordered by start time.
func (d *DataSource) Items() []Item {
	d.mu.RLock()
	out := make([]Item, 0, len(d.items))
	for _, item := range d.items {
		out = append(out, item)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Groups returns one row per camera, titled from the camera metadata.
func (d *DataSource) Groups() []Group {
	groups := make([]Group, 0, len(d.cameraIDs))
	for _, id := range d.cameraIDs {
		title := id
		if md, ok := d.source.GetCameraMetadata(id); ok && md.Title != "" {
			title = md.Title
		}
		groups = append(groups, Group{ID: id, Title: title})
	}
	return groups
}

// Invalidate forgets coverage so the next Refresh fetches again.
func (d *DataSource) Invalidate() {
	d.coverage.Clear()
}
