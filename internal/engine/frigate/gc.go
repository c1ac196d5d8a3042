package frigate

import (
	"context"
	"fmt"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
)

// scheduleGC remembers what a later GC pass needs and schedules one.
func (e *Engine) scheduleGC(client hass.Client, cameraID string, cfg domain.CameraConfig) {
	e.trackCamera(client, cameraID, cfg)
	e.gc.Trigger()
}

// trackCamera makes cameraID eligible for GC passes.
func (e *Engine) trackCamera(client hass.Client, cameraID string, cfg domain.CameraConfig) {
	e.gcMu.Lock()
	defer e.gcMu.Unlock()
	e.gcClient = client
	if e.gcCameras == nil {
		e.gcCameras = make(engine.Cameras)
	}
	e.gcCameras[cameraID] = cfg
}

func (e *Engine) runScheduledGC(ctx context.Context) {
	e.gcMu.Lock()
	client := e.gcClient
	cameras := make(engine.Cameras, len(e.gcCameras))
	for id, cfg := range e.gcCameras {
		cameras[id] = cfg
	}
	e.gcMu.Unlock()

	if client == nil {
		return
	}
	if _, err := e.GarbageCollectSegments(ctx, client, cameras); err != nil {
		e.logger.Debug("segment garbage collection aborted", "error", err)
	}
}

// GarbageCollectSegments evicts cached segments whose hour no longer appears in
// the camera's recording summary, i.e. footage Frigate has since deleted. A
// failed summary fetch aborts the pass without evicting anything further.
func (e *Engine) GarbageCollectSegments(ctx context.Context, client hass.Client, cameras engine.Cameras) (int, error) {
	ctx, span := tracer.Start(ctx, "frigate.GarbageCollectSegments")
	defer span.End()

	evicted := 0
	for _, cameraID := range e.segmentsCache.CameraIDs() {
		cfg, ok := cameras[cameraID]
		if !ok {
			continue
		}

		summary, err := e.fetchRecordingSummary(ctx, client, cfg)
		if err != nil {
			e.metrics.GCRunTotal.WithLabelValues("error").Inc()
			return evicted, endSpan(span, fmt.Errorf("gc %s: %w", cameraID, err))
		}

		goodHours := make(map[string]bool)
		for _, day := range summary {
			for _, hour := range day.Hours {
				goodHours[hourKey(day.Day, int(hour.Hour))] = true
			}
		}

		n := e.segmentsCache.ExpireMatches(cameraID, func(seg domain.RecordingSegment) bool {
			start := seg.Start().In(e.location)
			return !goodHours[hourKey(start.Format(dayLayout), start.Hour())]
		})
		if n > 0 {
			e.logger.Debug("evicted stale recording segments", "camera", cameraID, "count", n)
		}
		evicted += n
	}

	e.metrics.GCRunTotal.WithLabelValues("ok").Inc()
	e.metrics.GCEvictedTotal.Add(float64(evicted))
	return evicted, nil
}

func hourKey(day string, hour int) string {
	return fmt.Sprintf("%s/%02d", day, hour)
}
