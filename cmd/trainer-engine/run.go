package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/api"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/config"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/engine"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/logging"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/simulator"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/store"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// errInputDone ends the run group when the byte source is exhausted.
var errInputDone = errors.New("input exhausted")

type runOptions struct {
	input       string
	simulate    bool
	keepRunning bool
	autoStart   bool
	bindings    []string
}

func newRunCmd(configFile *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine over a byte stream",
		Long: "Run decodes sensor frames from stdin, a capture file or the built-in simulator,\n" +
			"drives the workout session and serves the control API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, cfg, opts, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "-", `byte source: "-" for stdin or a capture file path`)
	f.BoolVar(&opts.simulate, "simulate", false, "read from the built-in sensor simulator instead of --input")
	f.BoolVar(&opts.keepRunning, "keep-running", false, "keep serving after the input is exhausted")
	f.BoolVar(&opts.autoStart, "start", false, "start the session as soon as the workout is loaded")
	f.StringArrayVar(&opts.bindings, "bind", nil, "bind a device at startup: track=device_id:class (repeatable)")

	// flag names match configuration keys so viper picks them up
	f.Int("tracks", 10, "number of tracks")
	f.Duration("tick_interval", time.Second, "session tick interval")
	f.Duration("countdown", 5*time.Second, "countdown before the first segment")
	f.String("workout", "", "catalog workout name or YAML workout file")
	f.String("http.addr", ":8080", `control API address ("" disables it)`)
	f.String("store.driver", store.DriverNone, "control store: none, file, sqlite or redis")
	f.String("store.path", "", "file or sqlite store path")
	f.String("store.redis_addr", "localhost:6379", "redis store address")
	f.String("log.file", "", "rotate logs into this file instead of stderr")
	return cmd
}

func runEngine(ctx context.Context, cfg config.Config, opts runOptions, stdin io.Reader, stderr io.Writer) error {
	logger, closeLog := logging.New(cfg.Log, stderr)
	defer func() { _ = closeLog() }()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Printf("Run: closing store: %v", err)
		}
	}()

	e := engine.New(engine.OptionsFromConfig(cfg), logger)
	defer e.Shutdown()

	syncer := store.NewSyncer(st, logger)
	if err := syncer.Restore(ctx, e); err != nil {
		return err
	}
	if err := applyStartup(e, cfg, opts); err != nil {
		return err
	}

	// registered after restore so restored state is not written back
	defer e.ListenBindings(func(c engine.BindingChange) { syncer.BindingChanged(c.Track, c.Binding, c.Bound) })()
	defer e.ListenBaselines(func(c engine.BaselineChange) { syncer.BaselineChanged(c.Track, c.Baseline) })()
	defer e.ListenWorkout(syncer.WorkoutChanged)()
	defer e.ListenAlerts(func(a engine.Alert) {
		logger.Printf("Run: segment %d ends in %ds", a.Segment, a.Remaining)
	})()
	statuses := make(chan session.Status, 1)
	defer e.ListenSession(statuses)()

	src, closeSrc, err := openInput(opts.input, stdin)
	if err != nil {
		return err
	}
	defer func() { _ = closeSrc() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		syncer.Run(gctx, statuses)
		return nil
	})
	if cfg.HTTP.Addr != "" {
		server := api.NewServer(e, logger)
		g.Go(func() error { return server.ListenAndServe(gctx, cfg.HTTP.Addr) })
	}
	if opts.simulate {
		sim := simulator.New(simulator.Config{}, logger)
		pr, pw := io.Pipe()
		src = pr
		g.Go(func() error {
			err := sim.Run(gctx, pw, 0)
			_ = pw.CloseWithError(err)
			return err
		})
	}
	g.Go(func() error {
		if err := pumpInput(gctx, e, src); err != nil {
			return err
		}
		if gctx.Err() != nil {
			return nil
		}
		logger.Printf("Run: input exhausted")
		if opts.keepRunning {
			<-gctx.Done()
			return nil
		}
		return errInputDone
	})

	err = g.Wait()
	e.Shutdown()
	bytesIn, frames := e.Counters()
	logger.Printf("Run: decoded %s frames from %s", humanize.Comma(int64(frames)), humanize.Bytes(bytesIn))
	if errors.Is(err, errInputDone) {
		return nil
	}
	return err
}

// applyStartup loads the configured workout and command-line bindings.
func applyStartup(e *engine.Engine, cfg config.Config, opts runOptions) error {
	for _, arg := range opts.bindings {
		track, id, class, err := parseBinding(arg)
		if err != nil {
			return err
		}
		if err := e.Bind(track, id, class); err != nil {
			return fmt.Errorf("--bind %s: %w", arg, err)
		}
	}

	if cfg.Workout != "" {
		w, err := resolveWorkout(cfg.Workout)
		if err != nil {
			return err
		}
		if err := e.LoadWorkout(w); err != nil {
			return err
		}
	}
	if opts.autoStart {
		return e.Start()
	}
	return nil
}

// parseBinding parses "track=device_id:class".
func parseBinding(arg string) (int, uint32, tracks.DeviceClass, error) {
	trackText, device, ok := strings.Cut(arg, "=")
	if !ok {
		return 0, 0, 0, fmt.Errorf("binding %q: want track=device_id:class", arg)
	}
	idText, classText, ok := strings.Cut(device, ":")
	if !ok {
		return 0, 0, 0, fmt.Errorf("binding %q: want track=device_id:class", arg)
	}
	track, err := strconv.Atoi(trackText)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("binding %q: track: %w", arg, err)
	}
	id, err := strconv.ParseUint(idText, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("binding %q: device id: %w", arg, err)
	}
	class, err := tracks.ParseClass(classText)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("binding %q: %w", arg, err)
	}
	return track, uint32(id), class, nil
}

// resolveWorkout returns the catalog workout called name, or loads name as a file.
func resolveWorkout(name string) (workout.Workout, error) {
	if w, ok := workout.Lookup(name); ok {
		return w, nil
	}
	return workout.Load(name)
}

func openInput(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}

// pumpInput feeds r into the engine. A read blocked on a terminal does not
// hold up shutdown: the call returns as soon as ctx is done.
func pumpInput(ctx context.Context, e *engine.Engine, r io.Reader) error {
	done := make(chan error, 1)
	go func() { done <- e.Pump(ctx, r) }()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}
