package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/argus/internal/metrics"
	"github.com/mmcdole/argus/internal/timeline"
	"github.com/mmcdole/argus/internal/timerange"
)

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	cameras := fs.String("cameras", "", "comma separated camera patterns (default all)")
	asJSON := fs.Bool("json", false, "force JSON output")
	once := fs.Bool("once", false, "refresh a single time and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := selectCameras(*cameras, a.cameras)
	if err != nil {
		return err
	}

	tl := timeline.New(a.manager, ids,
		timeline.WithMediaFilter(timeline.MediaFilter(a.cfg.Timeline.Media)),
		timeline.WithLogger(a.logger),
	)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		stop := serveMetrics(addr, a.logger)
		defer stop()
	}

	out := newPrinter(os.Stdout, *asJSON)
	ticker := time.NewTicker(a.cfg.Timeline.RefreshInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		window := timerange.DateRange{Start: now.Add(-a.cfg.Timeline.Window), End: now}
		if err := tl.Refresh(ctx, window); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn("timeline refresh failed", "error", err)
			if *once {
				return err
			}
		} else if err := printTimeline(out, tl, window); err != nil {
			return err
		}

		if *once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type groupSummary struct {
	timeline.Group
	Events    int           `json:"events"`
	Recorded  time.Duration `json:"recorded"`
	LastEvent *time.Time    `json:"last_event,omitempty"`
}

// summarize folds the items inside window into one row per group.
func summarize(groups []timeline.Group, items []timeline.Item, window timerange.DateRange) []groupSummary {
	byID := make(map[string]*groupSummary, len(groups))
	out := make([]groupSummary, len(groups))
	for i, g := range groups {
		out[i].Group = g
		byID[g.ID] = &out[i]
	}

	for _, item := range items {
		s, ok := byID[item.CameraID]
		if !ok || !timerange.Overlaps(window, timerange.DateRange{Start: item.Start, End: item.End}) {
			continue
		}
		switch item.Kind {
		case timeline.ItemEvent:
			s.Events++
			if s.LastEvent == nil || item.Start.After(*s.LastEvent) {
				start := item.Start
				s.LastEvent = &start
			}
		case timeline.ItemRecording:
			start, end := item.Start, item.End
			if start.Before(window.Start) {
				start = window.Start
			}
			if end.After(window.End) {
				end = window.End
			}
			s.Recorded += end.Sub(start)
		}
	}
	return out
}

func printTimeline(out *printer, tl *timeline.DataSource, window timerange.DateRange) error {
	summary := summarize(tl.Groups(), tl.Items(), window)

	rows := make([][]string, 0, len(summary))
	for _, s := range summary {
		last := "-"
		if s.LastEvent != nil {
			last = s.LastEvent.Local().Format(timeLayout)
		}
		rows = append(rows, []string{s.Title, fmt.Sprint(s.Events), formatDuration(s.Recorded), last})
	}
	return out.print(summary, []string{"CAMERA", "EVENTS", "RECORDED", "LAST EVENT"}, rows)
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", "error", err)
		}
	}
}
