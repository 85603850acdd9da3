// Package engine wires the telemetry pipeline together. Byte chunks flow
// through the frame decoder and message router into the channel registry on
// the ingest goroutine; a ticker drives the session machine, targets,
// liveness and statistics on the tick goroutine.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/config"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/events"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/filter"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// ErrClosed is returned by calls made after Shutdown.
var ErrClosed = errors.New("engine: closed")

const (
	chunkQueueSize   = 64
	commandQueueSize = 16
)

// Options configures an Engine. Zero values fall back to package defaults.
type Options struct {
	Tracks          int
	TickInterval    time.Duration
	LivenessTimeout time.Duration
	Countdown       time.Duration
	AlertThresholds []int
	DefaultBaseline float64
	Decoder         ant.DecoderConfig
	Filter          filter.Config
	Verbose         bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto engine options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Tracks:          cfg.Tracks,
		TickInterval:    cfg.TickInterval,
		LivenessTimeout: cfg.LivenessTimeout,
		Countdown:       cfg.Countdown,
		AlertThresholds: cfg.AlertThresholds,
		DefaultBaseline: cfg.DefaultBaseline,
		Decoder:         cfg.DecoderSettings(),
		Filter:          cfg.FilterSettings(),
		Verbose:         cfg.Verbose,
	}
}

func (o Options) withDefaults() Options {
	if o.Tracks <= 0 {
		o.Tracks = tracks.DefaultSize
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = tracks.DefaultLivenessTimeout
	}
	if o.DefaultBaseline <= 0 {
		o.DefaultBaseline = workout.DefaultBaseline
	}
	if o.Decoder.MaxPayload == 0 {
		o.Decoder = ant.DefaultDecoderConfig()
	}
	if o.Filter == (filter.Config{}) {
		o.Filter = filter.DefaultConfig()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Engine is the telemetry and session engine. All exported methods are safe
// for concurrent use.
type Engine struct {
	opts   Options
	logger *log.Logger

	// owned by the ingest goroutine
	decoder *ant.Decoder
	router  *ant.Router
	seen    map[deviceKey]time.Time

	registry *tracks.Registry
	liveness *tracks.Liveness

	// session state (protected by mu)
	mu        sync.Mutex
	machine   *session.Machine
	sessionID string
	baselines map[int]float64
	targets   map[int]workout.Target

	bytesIn  atomic.Uint64
	framesIn atomic.Uint64

	telemetryEvent *events.ChannelEvent[Telemetry]
	sessionEvent   *events.ChannelEvent[session.Status]
	alertEvent     *events.CallbackEvent[Alert]
	segmentEvent   *events.CallbackEvent[SegmentChange]
	deviceEvent    *events.CallbackEvent[DeviceSeen]
	bindingEvent   *events.CallbackEvent[BindingChange]
	baselineEvent  *events.CallbackEvent[BaselineChange]
	workoutEvent   *events.CallbackEvent[workout.Workout]

	// closeMu orders Feed against Shutdown: once closed is set no chunk can
	// enter the queue, so the final drain sees every accepted chunk.
	closeMu sync.RWMutex
	closed  bool

	chunks       chan []byte
	cmdChan      chan command
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// New creates an Engine and starts its ingest and tick goroutines.
func New(opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		panic("Engine: logger cannot be nil")
	}
	opts = opts.withDefaults()

	registry := tracks.NewRegistry(opts.Tracks, opts.Filter, logger)
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:     opts,
		logger:   logger,
		decoder:  ant.NewDecoder(opts.Decoder, logger),
		router:   ant.NewRouter(logger, opts.Verbose),
		seen:     make(map[deviceKey]time.Time),
		registry: registry,
		liveness: tracks.NewLiveness(registry, opts.LivenessTimeout, logger),
		machine: session.NewMachine(session.Config{
			Countdown:       opts.Countdown,
			AlertThresholds: opts.AlertThresholds,
		}),
		baselines:      make(map[int]float64),
		targets:        make(map[int]workout.Target),
		telemetryEvent: events.NewChannelEvent[Telemetry](false),
		sessionEvent:   events.NewChannelEvent[session.Status](true),
		alertEvent:     events.NewCallbackEvent[Alert](false),
		segmentEvent:   events.NewCallbackEvent[SegmentChange](false),
		deviceEvent:    events.NewCallbackEvent[DeviceSeen](false),
		bindingEvent:   events.NewCallbackEvent[BindingChange](false),
		baselineEvent:  events.NewCallbackEvent[BaselineChange](false),
		workoutEvent:   events.NewCallbackEvent[workout.Workout](false),
		chunks:         make(chan []byte, chunkQueueSize),
		cmdChan:        make(chan command, commandQueueSize),
		ctx:            ctx,
		cancel:         cancel,
	}

	e.wg.Add(2)
	go_func_utils.SafeGo(logger, "ingest loop", e.runIngestLoop)
	go_func_utils.SafeGo(logger, "tick loop", e.runTickLoop)

	logger.Printf("Engine: started with %d tracks, tick %v", opts.Tracks, opts.TickInterval)
	return e
}

// Shutdown stops both goroutines and waits for them to exit.
// Safe to call multiple times - only the first call has effect
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.logger.Printf("Engine: Shutting down")
		e.closeMu.Lock()
		e.closed = true
		e.closeMu.Unlock()
		e.cancel()
		e.wg.Wait()
		e.logger.Printf("Engine: Shutdown complete (%d bytes, %d frames)", e.bytesIn.Load(), e.framesIn.Load())
	})
}

// Counters returns the number of bytes fed and frames decoded so far.
func (e *Engine) Counters() (bytes, frames uint64) {
	return e.bytesIn.Load(), e.framesIn.Load()
}

func (e *Engine) runTickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Printf("Engine: tick loop exiting")
			return
		case <-ticker.C:
			e.tick(e.opts.Clock())
		}
	}
}

func (e *Engine) runIngestLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			e.drainChunks()
			e.logger.Printf("Engine: ingest loop exiting")
			return
		case chunk := <-e.chunks:
			e.ingest(chunk, e.opts.Clock())
		}
	}
}

// drainChunks decodes chunks that were accepted by Feed before shutdown.
func (e *Engine) drainChunks() {
	for {
		select {
		case chunk := <-e.chunks:
			e.ingest(chunk, e.opts.Clock())
		default:
			return
		}
	}
}
