package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmcdole/argus/internal/cache"
	"github.com/mmcdole/argus/internal/cameramanager"
	"github.com/mmcdole/argus/internal/config"
	"github.com/mmcdole/argus/internal/engine/factory"
	"github.com/mmcdole/argus/internal/engine/frigate"
	"github.com/mmcdole/argus/internal/hass"
	applog "github.com/mmcdole/argus/internal/log"
	"github.com/mmcdole/argus/internal/store"
	"github.com/mmcdole/argus/internal/telemetry"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: argus [-config file] <command> [flags]

commands:
  events      list events
  recordings  list hourly recordings
  segments    list recording segments
  metadata    list labels, zones and days with media
  seek        offset of a moment inside its recording
  endpoints   live view endpoints of each camera
  favorite    retain or release an event
  download    signed download path of an event
  play        open the recording of a moment in a video player
  watch       keep a timeline fresh and serve metrics
`

func main() {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/argus/config.yaml)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("argus %s\n", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, command string, args []string) error {
	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := applog.SetupLogger(cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, logCloser = applog.NullLogger(), io.NopCloser(nil)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting argus", "version", Version, "command", command)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd(ctx, a, args)
}

// app holds the wired components shared by every command
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *hass.WSClient
	store    *store.BoltStore
	segments *cache.RecordingSegmentsCache
	manager  *cameramanager.Manager
	cameras  *cameraIndex

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	if cfg.Tracing.Enabled {
		if err := a.startTracing(); err != nil {
			return fail(err)
		}
	}

	st, err := store.NewBoltStore(cfg.Store.Dir, cfg.HASS.URL)
	if err != nil {
		return fail(fmt.Errorf("failed to open store: %w", err))
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	})

	a.segments = cache.NewRecordingSegmentsCache()
	if snapshot, err := st.LoadSegments(); err != nil {
		logger.Warn("ignoring persisted segments", "error", err)
	} else {
		a.segments.Restore(snapshot)
	}

	client, err := hass.Dial(ctx, cfg.HASS.URL, cfg.HASS.Token, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to Home Assistant: %w", err))
	}
	a.client = client
	a.closers = append(a.closers, func() { client.Close() })
	logger.Info("connected to Home Assistant", "version", client.Version())

	frigateOpts, err := cfg.FrigateOptions()
	if err != nil {
		return fail(err)
	}
	frigateOpts = append(frigateOpts,
		frigate.WithLogger(logger),
		frigate.WithSegmentsCache(a.segments),
	)

	registry := hass.NewRegistry(st, logger)
	a.manager = cameramanager.New(client, registry, factory.New(registry, logger, frigateOpts...), logger)
	a.closers = append(a.closers, func() {
		a.manager.Close()
		if err := st.SaveSegments(a.segments.Snapshot()); err != nil {
			logger.Warn("failed to persist segments", "error", err)
		}
	})

	if err := a.manager.Initialize(ctx, cfg.Cameras); err != nil {
		reportInitErrors(a.manager.InitErrors())
		if len(a.manager.CameraIDs()) == 0 {
			return fail(fmt.Errorf("no camera could be initialized: %w", err))
		}
	}

	a.cameras = newCameraIndex(a.manager.CameraIDs(), func(id string) string {
		md, _ := a.manager.GetCameraMetadata(id)
		return md.Title
	})
	return a, nil
}

func (a *app) startTracing() error {
	var w io.Writer = os.Stderr
	if a.cfg.Tracing.File != "" {
		f, err := os.OpenFile(a.cfg.Tracing.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		a.closers = append(a.closers, func() { f.Close() })
		w = f
	}

	shutdown, err := telemetry.InitTracer(w, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { shutdown(context.Background()) })
	return nil
}

// close runs the registered closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func reportInitErrors(errs []error) {
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}
