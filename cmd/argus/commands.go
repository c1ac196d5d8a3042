package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/player"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"events":     cmdEvents,
	"recordings": cmdRecordings,
	"segments":   cmdSegments,
	"metadata":   cmdMetadata,
	"seek":       cmdSeek,
	"endpoints":  cmdEndpoints,
	"favorite":   cmdFavorite,
	"download":   cmdDownload,
	"play":       cmdPlay,
	"watch":      cmdWatch,
}

// queryFlags are shared by every command that reads media
type queryFlags struct {
	cameras string
	since   time.Duration
	until   string
	limit   int
	json    bool
	refresh bool
}

func (f *queryFlags) register(fs *flag.FlagSet, since time.Duration) {
	fs.StringVar(&f.cameras, "cameras", "", "comma separated camera patterns (default all)")
	fs.DurationVar(&f.since, "since", since, "how far back to look")
	fs.StringVar(&f.until, "until", "", "end of the window, RFC3339 (default now)")
	fs.IntVar(&f.limit, "limit", 0, "maximum results per query")
	fs.BoolVar(&f.json, "json", false, "force JSON output")
	fs.BoolVar(&f.refresh, "refresh", false, "bypass the request cache")
}

// resolve selects the cameras and builds the partial query for the window.
func (f *queryFlags) resolve(a *app) ([]string, engine.Query, error) {
	ids, err := selectCameras(f.cameras, a.cameras)
	if err != nil {
		return nil, engine.Query{}, err
	}

	end := time.Now()
	if f.until != "" {
		end, err = time.Parse(time.RFC3339, f.until)
		if err != nil {
			return nil, engine.Query{}, fmt.Errorf("invalid -until: %w", err)
		}
	}
	if f.since <= 0 {
		return nil, engine.Query{}, errors.New("-since must be positive")
	}
	return ids, engine.Query{Start: end.Add(-f.since), End: end, Limit: f.limit}, nil
}

func (f *queryFlags) options() engine.Options {
	return engine.Options{BypassCache: f.refresh}
}

func (f *queryFlags) printer() *printer {
	return newPrinter(os.Stdout, f.json)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cmdEvents(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, 24*time.Hour)
	what := fs.String("what", "", "comma separated labels")
	where := fs.String("where", "", "comma separated zones")
	tags := fs.String("tags", "", "comma separated sub labels")
	favorites := fs.Bool("favorites", false, "only retained events")
	mediaType := fs.String("media", "all", "all, clips or snapshots")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, partial, err := qf.resolve(a)
	if err != nil {
		return err
	}
	partial.What = splitList(*what)
	partial.Where = splitList(*where)
	partial.Tags = splitList(*tags)
	if *favorites {
		partial.Favorite = engine.Bool(true)
	}
	switch *mediaType {
	case "all":
	case "clips":
		partial.HasClip = engine.Bool(true)
	case "snapshots":
		partial.HasSnapshot = engine.Bool(true)
	default:
		return fmt.Errorf("invalid -media %q", *mediaType)
	}

	queries := a.manager.GenerateDefaultEventQueries(ids, partial)
	if len(queries) == 0 {
		return fmt.Errorf("events: %w", domain.ErrUnsupported)
	}
	media, err := a.manager.ExecuteMediaQueries(ctx, queries, qf.options())
	if err != nil {
		return err
	}
	return qf.printer().printMedia(media)
}

func cmdRecordings(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("recordings", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, 24*time.Hour)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, partial, err := qf.resolve(a)
	if err != nil {
		return err
	}
	queries := a.manager.GenerateDefaultRecordingQueries(ids, partial)
	if len(queries) == 0 {
		return fmt.Errorf("recordings: %w", domain.ErrUnsupported)
	}
	media, err := a.manager.ExecuteMediaQueries(ctx, queries, qf.options())
	if err != nil {
		return err
	}
	return qf.printer().printMedia(media)
}

type segmentRow struct {
	CameraID string    `json:"camera_id"`
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Cached   bool      `json:"cached"`
}

func cmdSegments(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("segments", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, time.Hour)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, partial, err := qf.resolve(a)
	if err != nil {
		return err
	}

	segments := []segmentRow{}
	for _, q := range a.manager.GenerateDefaultRecordingSegmentsQueries(ids, partial) {
		results, err := a.manager.GetRecordingSegments(ctx, q, qf.options())
		if err != nil {
			return err
		}
		for _, r := range results {
			sr, ok := r.Results.(engine.SegmentsResults)
			if !ok || len(r.Query.CameraIDs) != 1 {
				continue
			}
			for _, seg := range sr.RecordingSegments() {
				segments = append(segments, segmentRow{
					CameraID: r.Query.CameraIDs[0],
					ID:       seg.ID,
					Start:    seg.Start(),
					End:      seg.End(),
					Cached:   sr.Base().Cached,
				})
			}
		}
	}

	rows := make([][]string, 0, len(segments))
	for _, s := range segments {
		rows = append(rows, []string{
			s.CameraID,
			s.ID,
			s.Start.Local().Format(timeLayout),
			formatDuration(s.End.Sub(s.Start)),
			fmt.Sprint(s.Cached),
		})
	}
	return qf.printer().print(segments, []string{"CAMERA", "ID", "START", "LENGTH", "CACHED"}, rows)
}

func cmdMetadata(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("metadata", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, 24*time.Hour)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := selectCameras(qf.cameras, a.cameras)
	if err != nil {
		return err
	}
	md, err := a.manager.GetMediaMetadata(ctx, ids, qf.options())
	if err != nil {
		return err
	}

	var rows [][]string
	add := func(kind string, values []string) {
		if len(values) > 0 {
			rows = append(rows, []string{kind, strings.Join(values, ", ")})
		}
	}
	add("what", md.What)
	add("where", md.Where)
	add("tags", md.Tags)
	add("days", md.Days)
	return qf.printer().print(md, []string{"KIND", "VALUES"}, rows)
}

type seekResult struct {
	MediaID string        `json:"media_id"`
	Target  time.Time     `json:"target"`
	Seek    time.Duration `json:"seek"`

	media domain.ViewMedia
}

// seekRecordings finds the recordings of the selected cameras that cover
// target and the seek offset into each.
func seekRecordings(ctx context.Context, a *app, qf *queryFlags, target time.Time) ([]seekResult, error) {
	ids, err := selectCameras(qf.cameras, a.cameras)
	if err != nil {
		return nil, err
	}

	hour := target.Truncate(time.Hour)
	partial := engine.Query{Start: hour, End: hour.Add(time.Hour)}
	queries := a.manager.GenerateDefaultRecordingQueries(ids, partial)
	if len(queries) == 0 {
		return nil, fmt.Errorf("seek: %w", domain.ErrUnsupported)
	}
	recordings, err := a.manager.ExecuteMediaQueries(ctx, queries, qf.options())
	if err != nil {
		return nil, err
	}

	var results []seekResult
	for _, rec := range recordings {
		seek, ok, err := a.manager.GetMediaSeekTime(ctx, rec, target, qf.options())
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, seekResult{MediaID: rec.ID(), Target: target, Seek: seek, media: rec})
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no recording covers %s", target.Format(time.RFC3339))
	}
	return results, nil
}

func cmdSeek(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("seek", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, time.Hour)
	at := fs.String("at", "", "moment to seek to, RFC3339 (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return fmt.Errorf("invalid -at: %w", err)
	}
	results, err := seekRecordings(ctx, a, &qf, target)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.MediaID, formatDuration(r.Seek)})
	}
	return qf.printer().print(results, []string{"RECORDING", "SEEK"}, rows)
}

func cmdPlay(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, time.Hour)
	at := fs.String("at", "", "moment to start playing, RFC3339 (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return fmt.Errorf("invalid -at: %w", err)
	}
	results, err := seekRecordings(ctx, a, &qf, target)
	if err != nil {
		return err
	}
	if len(results) > 1 {
		return fmt.Errorf("%d cameras recorded %s, narrow -cameras", len(results), target.Format(time.RFC3339))
	}

	path, err := a.manager.GetMediaDownloadPath(ctx, results[0].media)
	if err != nil {
		return err
	}
	url := strings.TrimRight(a.cfg.HASS.URL, "/") + path
	return player.NewLauncher(a.cfg.Player, a.logger).Launch(url, results[0].Seek)
}

type endpointRow struct {
	CameraID string `json:"camera_id"`
	Kind     string `json:"kind"`
	URL      string `json:"url"`
}

func cmdEndpoints(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("endpoints", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, time.Hour)
	sign := fs.Bool("sign", false, "sign endpoints that need authentication")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := selectCameras(qf.cameras, a.cameras)
	if err != nil {
		return err
	}

	endpoints := []endpointRow{}
	for _, id := range ids {
		eps := a.manager.GetCameraEndpoints(id, nil)
		if eps == nil {
			continue
		}
		for _, kv := range []struct {
			kind string
			ep   *domain.Endpoint
		}{
			{"ui", eps.UI},
			{"go2rtc", eps.Go2RTC},
			{"jsmpeg", eps.JSMpeg},
			{"webrtc_card", eps.WebRTCCard},
		} {
			if kv.ep == nil {
				continue
			}
			url := kv.ep.Endpoint
			if *sign {
				if url, err = a.manager.SignEndpoint(ctx, *kv.ep); err != nil {
					return err
				}
			}
			endpoints = append(endpoints, endpointRow{CameraID: id, Kind: kv.kind, URL: url})
		}
	}

	rows := make([][]string, 0, len(endpoints))
	for _, e := range endpoints {
		rows = append(rows, []string{e.CameraID, e.Kind, e.URL})
	}
	return qf.printer().print(endpoints, []string{"CAMERA", "KIND", "URL"}, rows)
}

// findEvent looks an event up by ID inside the query window.
func findEvent(ctx context.Context, a *app, qf *queryFlags, id string) (domain.ViewMedia, error) {
	ids, partial, err := qf.resolve(a)
	if err != nil {
		return domain.ViewMedia{}, err
	}
	queries := a.manager.GenerateDefaultEventQueries(ids, partial)
	media, err := a.manager.ExecuteMediaQueries(ctx, queries, qf.options())
	if err != nil {
		return domain.ViewMedia{}, err
	}
	for _, m := range media {
		if m.ID() == id {
			return m, nil
		}
	}
	return domain.ViewMedia{}, fmt.Errorf("no event %q in the last %s", id, qf.since)
}

func cmdFavorite(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("favorite", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, 7*24*time.Hour)
	unset := fs.Bool("unset", false, "release instead of retain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: argus favorite [flags] <event-id>")
	}

	media, err := findEvent(ctx, a, &qf, fs.Arg(0))
	if err != nil {
		return err
	}
	updated, err := a.manager.FavoriteMedia(ctx, media, !*unset)
	if err != nil {
		return err
	}
	return qf.printer().printMedia([]domain.ViewMedia{updated})
}

func cmdDownload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	var qf queryFlags
	qf.register(fs, 7*24*time.Hour)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: argus download [flags] <event-id>")
	}

	media, err := findEvent(ctx, a, &qf, fs.Arg(0))
	if err != nil {
		return err
	}
	path, err := a.manager.GetMediaDownloadPath(ctx, media)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(a.cfg.HASS.URL, "/") + path)
	return nil
}
