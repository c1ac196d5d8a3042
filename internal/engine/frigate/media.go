package frigate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
)

// GenerateMediaFromEvents turns event results into clip or snapshot media.
// Events that have neither the requested nor any media are skipped.
func (e *Engine) GenerateMediaFromEvents(cameras engine.Cameras, q engine.Query, results engine.Results) []domain.ViewMedia {
	r, ok := results.(*EventQueryResults)
	if !ok || r == nil {
		return nil
	}

	var out []domain.ViewMedia
	for _, ev := range r.Events {
		cameraID, ok := eventCameraID(cameras, q, r.InstanceID, ev.Camera)
		if !ok {
			e.logger.Debug("no camera for event", "event", ev.ID, "frigate_camera", ev.Camera)
			continue
		}

		mediaType, ok := eventMediaType(q, ev)
		if !ok {
			continue
		}

		attrs := domain.MediaAttributes{
			Kind:          domain.MediaKindEvent,
			MediaType:     mediaType,
			Engine:        domain.EngineFrigate,
			ID:            ev.ID,
			CameraID:      cameraID,
			InstanceID:    r.InstanceID,
			BackendCamera: ev.Camera,
			StartTime:     fromUnix(ev.StartTime),
			InProgress:    ev.EndTime == nil,
			ContentID:     eventContentID(r.InstanceID, ev, mediaType),
			Thumbnail:     fmt.Sprintf("/api/frigate/%s/thumbnail/%s", r.InstanceID, ev.ID),
			Title:         eventTitle(ev),
			Favorite:      ev.RetainIndefinitely,
			What:          []string{ev.Label},
			Where:         ev.Zones,
			Tags:          ev.SubLabel,
		}
		if ev.EndTime != nil {
			attrs.EndTime = fromUnix(*ev.EndTime)
		}
		if ev.TopScore != nil {
			attrs.Score = *ev.TopScore
			attrs.HasScore = true
		}
		out = append(out, domain.NewViewMedia(attrs))
	}
	return out
}

// GenerateMediaFromRecordings maps recordings 1:1 to recording media.
func (e *Engine) GenerateMediaFromRecordings(cameras engine.Cameras, _ engine.Query, results engine.Results) []domain.ViewMedia {
	r, ok := results.(*RecordingQueryResults)
	if !ok || r == nil {
		return nil
	}

	out := make([]domain.ViewMedia, 0, len(r.Recordings))
	for _, rec := range r.Recordings {
		cfg, ok := cameras[rec.CameraID]
		if !ok {
			continue
		}
		camera := cfg.Frigate.CameraName
		client := cfg.FrigateClientID()
		start := rec.StartTime.In(e.location)

		out = append(out, domain.NewViewMedia(domain.MediaAttributes{
			Kind:          domain.MediaKindRecording,
			MediaType:     domain.ViewMediaRecording,
			Engine:        domain.EngineFrigate,
			ID:            fmt.Sprintf("%s/%s/%d/%d", client, camera, rec.StartTime.Unix(), rec.EndTime.Unix()),
			CameraID:      rec.CameraID,
			InstanceID:    client,
			BackendCamera: camera,
			StartTime:     rec.StartTime,
			EndTime:       rec.EndTime,
			ContentID: fmt.Sprintf("media-source://frigate/%s/recordings/%s/%s/%02d",
				client, camera, start.Format(dayLayout), start.Hour()),
			Title:      fmt.Sprintf("%s %s", e.GetCameraMetadata(cfg).Title, start.Format("2006-01-02 15:04")),
			EventCount: rec.Events,
		}))
	}
	return out
}

// GetMediaDownloadPath returns the path that downloads media. The path must be
// signed before use.
func (e *Engine) GetMediaDownloadPath(_ context.Context, _ hass.Client, cfg domain.CameraConfig, media domain.ViewMedia) (*domain.Endpoint, error) {
	client := cfg.FrigateClientID()

	switch {
	case media.IsEvent():
		file := "snapshot.jpg"
		if media.MediaType() == domain.ViewMediaClip {
			file = "clip.mp4"
		}
		return &domain.Endpoint{
			Endpoint: fmt.Sprintf("/api/frigate/%s/notifications/%s/%s?download=true", client, media.ID(), file),
			Sign:     true,
		}, nil

	case media.IsRecording():
		end, ok := media.EndTime()
		if !ok {
			return nil, nil
		}
		return &domain.Endpoint{
			Endpoint: fmt.Sprintf("/api/frigate/%s/recording/%s/start/%d/end/%d?download=true",
				client, cfg.Frigate.CameraName, media.StartTime().Unix(), end.Unix()),
			Sign: true,
		}, nil
	}
	return nil, nil
}

// FavoriteMedia retains or releases an event in Frigate and returns the updated
// media. Recordings cannot be favorited.
func (e *Engine) FavoriteMedia(ctx context.Context, client hass.Client, cfg domain.CameraConfig, media domain.ViewMedia, favorite bool) (domain.ViewMedia, error) {
	if !media.IsEvent() {
		return media, fmt.Errorf("favorite %s: %w", media.Kind(), domain.ErrUnsupported)
	}

	ctx, span := tracer.Start(ctx, "frigate.FavoriteMedia")
	defer span.End()

	err := client.Call(ctx, retainRequest{
		Type:       msgEventRetain,
		InstanceID: cfg.FrigateClientID(),
		EventID:    media.ID(),
		Retain:     favorite,
	}, nil)
	if err != nil {
		return media, endSpan(span, fmt.Errorf("failed to set favorite on event %s: %w", media.ID(), err))
	}

	e.logger.Info("updated event favorite", "event", media.ID(), "favorite", favorite)
	return media.WithFavorite(favorite), nil
}

// GetMediaSeekTime returns how much recorded video lies between the start of
// media and target, skipping gaps between segments.
func (e *Engine) GetMediaSeekTime(ctx context.Context, client hass.Client, cameras engine.Cameras, media domain.ViewMedia, target time.Time, opts engine.Options) (time.Duration, bool, error) {
	start := media.StartTime()
	end, ok := media.EndTime()
	if !ok || target.Before(start) || target.After(end) {
		return 0, false, nil
	}

	q := engine.Query{
		Type:      engine.QueryRecordingSegments,
		CameraIDs: []string{media.CameraID()},
		Start:     start,
		End:       end,
	}
	results, err := e.GetRecordingSegments(ctx, client, cameras, q, opts)
	if err != nil {
		return 0, false, err
	}

	var segments []domain.RecordingSegment
	for _, r := range results {
		if seg, ok := r.Results.(*RecordingSegmentsQueryResults); ok {
			segments = append(segments, seg.Segments...)
		}
	}
	if len(segments) == 0 {
		return 0, false, nil
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartTime < segments[j].StartTime
	})

	return SeekTimeInSegments(start, target, segments), true, nil
}

// SeekTimeInSegments sums the recorded time between windowStart and target.
// segments must be sorted ascending by start time.
func SeekTimeInSegments(windowStart, target time.Time, segments []domain.RecordingSegment) time.Duration {
	from := unixFloat(windowStart)
	to := unixFloat(target)

	var seconds float64
	for _, seg := range segments {
		if seg.StartTime > to {
			break
		}
		overlap := math.Min(seg.EndTime, to) - math.Max(seg.StartTime, from)
		if overlap > 0 {
			seconds += overlap
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

// eventCameraID maps an event back to the camera that queried it.
func eventCameraID(cameras engine.Cameras, q engine.Query, instanceID, frigateCamera string) (string, bool) {
	if len(q.CameraIDs) == 1 {
		return q.CameraIDs[0], true
	}
	for _, id := range q.CameraIDs {
		cfg, ok := cameras[id]
		if ok && cfg.FrigateClientID() == instanceID && cfg.Frigate.CameraName == frigateCamera {
			return id, true
		}
	}
	return "", false
}

// eventMediaType picks clip over snapshot. A query that requires neither
// (unset or explicitly false) accepts whichever the event has.
func eventMediaType(q engine.Query, ev Event) (domain.ViewMediaType, bool) {
	unfiltered := !isTrue(q.HasClip) && !isTrue(q.HasSnapshot)
	switch {
	case ev.HasClip && (unfiltered || isTrue(q.HasClip)):
		return domain.ViewMediaClip, true
	case ev.HasSnapshot && (unfiltered || isTrue(q.HasSnapshot)):
		return domain.ViewMediaSnapshot, true
	}
	return "", false
}

func eventContentID(instanceID string, ev Event, mediaType domain.ViewMediaType) string {
	kind := "snapshots"
	if mediaType == domain.ViewMediaClip {
		kind = "clips"
	}
	return fmt.Sprintf("media-source://frigate/%s/event/%s/%s/%s", instanceID, kind, ev.Camera, ev.ID)
}

func eventTitle(ev Event) string {
	title := prettify(ev.Label)
	if len(ev.SubLabel) > 0 {
		title += ": " + joinPretty(ev.SubLabel)
	}
	if ev.TopScore != nil {
		title += fmt.Sprintf(" %d%%", int(math.Round(*ev.TopScore*100)))
	}
	return title
}

func joinPretty(s []string) string {
	out := ""
	for i, v := range s {
		if i > 0 {
			out += ", "
		}
		out += prettify(v)
	}
	return out
}

func isTrue(b *bool) bool { return b != nil && *b }

func fromUnix(seconds float64) time.Time {
	return time.UnixMilli(int64(math.Round(seconds * 1000)))
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
