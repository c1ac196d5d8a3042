package cameramanager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
)

type generateFunc func(e engine.Engine, cameras engine.Cameras, cameraIDs []string, partial engine.Query) []engine.Query

// GenerateDefaultEventQueries expands partial into engine-specific event
// queries for cameraIDs. It returns nil when no engine can answer.
func (m *Manager) GenerateDefaultEventQueries(cameraIDs []string, partial engine.Query) []engine.Query {
	return m.generate(cameraIDs, partial, engine.Engine.GenerateDefaultEventQuery)
}

// GenerateDefaultRecordingQueries is GenerateDefaultEventQueries for recordings.
func (m *Manager) GenerateDefaultRecordingQueries(cameraIDs []string, partial engine.Query) []engine.Query {
	return m.generate(cameraIDs, partial, engine.Engine.GenerateDefaultRecordingQuery)
}

// GenerateDefaultRecordingSegmentsQueries is GenerateDefaultEventQueries for
// recording segments. partial must carry a window.
func (m *Manager) GenerateDefaultRecordingSegmentsQueries(cameraIDs []string, partial engine.Query) []engine.Query {
	return m.generate(cameraIDs, partial, engine.Engine.GenerateDefaultRecordingSegmentsQuery)
}

func (m *Manager) generate(cameraIDs []string, partial engine.Query, fn generateFunc) []engine.Query {
	cameras := m.Cameras()
	var out []engine.Query
	for _, g := range m.groupByEngine(cameraIDs) {
		out = append(out, fn(g.engine, cameras, g.cameraIDs, partial)...)
	}
	return out
}

type fetchFunc func(e engine.Engine, ctx context.Context, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error)

// GetEvents runs an event query across every engine serving its cameras.
func (m *Manager) GetEvents(ctx context.Context, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	return m.fetch(ctx, q.WithType(engine.QueryEvent), opts, func(e engine.Engine, ctx context.Context, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
		return e.GetEvents(ctx, m.client, cameras, q, opts)
	})
}

// GetRecordings runs a recording query across engines.
func (m *Manager) GetRecordings(ctx context.Context, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	return m.fetch(ctx, q.WithType(engine.QueryRecording), opts, func(e engine.Engine, ctx context.Context, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
		return e.GetRecordings(ctx, m.client, cameras, q, opts)
	})
}

// GetRecordingSegments runs a segments query across engines.
func (m *Manager) GetRecordingSegments(ctx context.Context, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
	return m.fetch(ctx, q.WithType(engine.QueryRecordingSegments), opts, func(e engine.Engine, ctx context.Context, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
		return e.GetRecordingSegments(ctx, m.client, cameras, q, opts)
	})
}

// GetMediaMetadata merges the media metadata of every engine serving cameraIDs.
func (m *Manager) GetMediaMetadata(ctx context.Context, cameraIDs []string, opts engine.Options) (domain.MediaMetadata, error) {
	q := engine.Query{Type: engine.QueryMediaMetadata, CameraIDs: cameraIDs}
	results, err := m.fetch(ctx, q, opts, func(e engine.Engine, ctx context.Context, cameras engine.Cameras, q engine.Query, opts engine.Options) (engine.ResultsMap, error) {
		return e.GetMediaMetadata(ctx, m.client, cameras, q, opts)
	})
	if err != nil {
		return domain.MediaMetadata{}, err
	}

	what, where, tags, days := newSet(), newSet(), newSet(), newSet()
	for _, r := range results {
		md, ok := r.Results.(engine.MetadataResults)
		if !ok {
			continue
		}
		meta := md.MediaMetadata()
		what.add(meta.What...)
		where.add(meta.Where...)
		tags.add(meta.Tags...)
		days.add(meta.Days...)
	}
	return domain.MediaMetadata{
		What:  what.sorted(),
		Where: where.sorted(),
		Tags:  tags.sorted(),
		Days:  days.sorted(),
	}, nil
}

// fetch splits q by engine, runs the parts concurrently and merges the
// results. The first failure cancels the rest.
func (m *Manager) fetch(ctx context.Context, q engine.Query, opts engine.Options, fn fetchFunc) (engine.ResultsMap, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cameras := m.Cameras()
	groups := m.groupByEngine(q.CameraIDs)

	var (
		mu     sync.Mutex
		merged engine.ResultsMap
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, grp := range groups {
		g.Go(func() error {
			results, err := fn(grp.engine, gctx, cameras, q.WithCameraIDs(grp.cameraIDs...), opts)
			if err != nil {
				return fmt.Errorf("%s engine: %w", grp.kind, err)
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// ExecuteMediaQueries runs event and recording queries and materializes their
// results as media, newest first and without duplicates.
func (m *Manager) ExecuteMediaQueries(ctx context.Context, queries []engine.Query, opts engine.Options) ([]domain.ViewMedia, error) {
	cameras := m.Cameras()

	var (
		mu    sync.Mutex
		media []domain.ViewMedia
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		for _, grp := range m.groupByEngine(q.CameraIDs) {
			sub := q.WithCameraIDs(grp.cameraIDs...)
			g.Go(func() error {
				items, err := m.executeMediaQuery(gctx, grp.engine, cameras, sub, opts)
				if err != nil {
					return err
				}
				mu.Lock()
				media = append(media, items...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sortAndDedupe(media), nil
}

func (m *Manager) executeMediaQuery(ctx context.Context, eng engine.Engine, cameras engine.Cameras, q engine.Query, opts engine.Options) ([]domain.ViewMedia, error) {
	var (
		results  engine.ResultsMap
		err      error
		generate func(engine.Cameras, engine.Query, engine.Results) []domain.ViewMedia
	)
	switch q.Type {
	case engine.QueryEvent:
		results, err = eng.GetEvents(ctx, m.client, cameras, q, opts)
		generate = eng.GenerateMediaFromEvents
	case engine.QueryRecording:
		results, err = eng.GetRecordings(ctx, m.client, cameras, q, opts)
		generate = eng.GenerateMediaFromRecordings
	default:
		return nil, fmt.Errorf("%w: %s is not a media query", domain.ErrInvalidQuery, q.Type)
	}
	if err != nil {
		return nil, err
	}

	var out []domain.ViewMedia
	for _, r := range results {
		out = append(out, generate(cameras, r.Query, r.Results)...)
	}
	return out, nil
}

func sortAndDedupe(media []domain.ViewMedia) []domain.ViewMedia {
	sort.SliceStable(media, func(i, j int) bool {
		return media[i].StartTime().After(media[j].StartTime())
	})
	seen := make(map[string]bool, len(media))
	out := media[:0]
	for _, item := range media {
		key := string(item.Kind()) + "/" + item.ID()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
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
