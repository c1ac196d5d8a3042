package frigate

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/argus/internal/engine"
)

// GenerateDefaultEventQuery batches all cameras into one query when their
// zone and label filters are identical, and otherwise issues one query per
// camera so each keeps its own filters.
func (e *Engine) GenerateDefaultEventQuery(cameras engine.Cameras, cameraIDs []string, partial engine.Query) []engine.Query {
	ids := knownCameraIDs(cameras, cameraIDs)
	if len(ids) == 0 {
		return nil
	}

	first := cameras[ids[0]].Frigate
	uniform := true
	for _, id := range ids[1:] {
		cfg := cameras[id].Frigate
		if !engine.SameSet(cfg.Zones, first.Zones) || !engine.SameSet(cfg.Labels, first.Labels) {
			uniform = false
			break
		}
	}

	build := func(ids []string, labels, zones []string) engine.Query {
		q := partial.WithType(engine.QueryEvent).WithCameraIDs(ids...)
		if len(q.What) == 0 {
			q.What = labels
		}
		if len(q.Where) == 0 {
			q.Where = zones
		}
		return q.Normalized()
	}

	if uniform {
		return []engine.Query{build(ids, first.Labels, first.Zones)}
	}

	queries := make([]engine.Query, 0, len(ids))
	for _, id := range ids {
		cfg := cameras[id].Frigate
		queries = append(queries, build([]string{id}, cfg.Labels, cfg.Zones))
	}
	return queries
}

// GenerateDefaultRecordingQuery returns a single recording query for all cameras.
func (e *Engine) GenerateDefaultRecordingQuery(cameras engine.Cameras, cameraIDs []string, partial engine.Query) []engine.Query {
	ids := knownCameraIDs(cameras, cameraIDs)
	if len(ids) == 0 {
		return nil
	}
	return []engine.Query{partial.WithType(engine.QueryRecording).WithCameraIDs(ids...)}
}

// GenerateDefaultRecordingSegmentsQuery returns a single segments query; a
// window is required.
func (e *Engine) GenerateDefaultRecordingSegmentsQuery(cameras engine.Cameras, cameraIDs []string, partial engine.Query) []engine.Query {
	ids := knownCameraIDs(cameras, cameraIDs)
	if len(ids) == 0 || !partial.HasRange() {
		return nil
	}
	return []engine.Query{partial.WithType(engine.QueryRecordingSegments).WithCameraIDs(ids...)}
}

// knownCameraIDs returns the sorted, de-duplicated IDs that have a config.
func knownCameraIDs(cameras engine.Cameras, cameraIDs []string) []string {
	seen := make(map[string]bool, len(cameraIDs))
	var ids []string
	for _, id := range cameraIDs {
		if _, ok := cameras[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// instanceToCameraIDs partitions the cameras of q by Frigate instance.
func instanceToCameraIDs(cameras engine.Cameras, q engine.Query) map[string][]string {
	out := make(map[string][]string)
	for _, id := range knownCameraIDs(cameras, q.CameraIDs) {
		clientID := cameras[id].FrigateClientID()
		out[clientID] = append(out[clientID], id)
	}
	return out
}

// fanOut runs fn for every item concurrently and commits results only once
// all of them succeeded. The first error cancels the rest.
func fanOut[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (engine.QueryResult, error)) (engine.ResultsMap, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]engine.QueryResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return engine.ResultsMap(results), nil
}

// instanceQuery is the part of a query addressed to one Frigate instance
type instanceQuery struct {
	instanceID string
	query      engine.Query
}

func splitByInstance(cameras engine.Cameras, q engine.Query) []instanceQuery {
	partition := instanceToCameraIDs(cameras, q)
	instances := make([]string, 0, len(partition))
	for id := range partition {
		instances = append(instances, id)
	}
	sort.Strings(instances)

	out := make([]instanceQuery, 0, len(instances))
	for _, instanceID := range instances {
		out = append(out, instanceQuery{
			instanceID: instanceID,
			query:      q.WithCameraIDs(partition[instanceID]...),
		})
	}
	return out
}

// cameraQuery is the part of a query addressed to one camera
type cameraQuery struct {
	cameraID string
	query    engine.Query
}

func splitByCamera(cameras engine.Cameras, q engine.Query) []cameraQuery {
	ids := knownCameraIDs(cameras, q.CameraIDs)
	out := make([]cameraQuery, 0, len(ids))
	for _, id := range ids {
		out = append(out, cameraQuery{cameraID: id, query: q.WithCameraIDs(id)})
	}
	return out
}
