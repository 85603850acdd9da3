package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
)

// ErrUnknownDevice is returned when a device id is not simulated.
var ErrUnknownDevice = errors.New("simulator: unknown device")

// Config holds simulator settings.
type Config struct {
	Devices []DeviceConfig `json:"devices" yaml:"devices"`
	// Interval between broadcast rounds. Defaults to 250ms, the usual sensor rate.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// Jitter perturbs power values by up to this many watts.
	Jitter int `json:"jitter" yaml:"jitter"`
	// Noise inserts a few garbage bytes before each round.
	Noise bool `json:"noise" yaml:"noise"`
	// Tunnel wraps every frame in a burst data frame.
	Tunnel bool   `json:"tunnel" yaml:"tunnel"`
	Seed   uint64 `json:"seed" yaml:"seed"`
}

// DefaultInterval is the broadcast round interval when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Simulator owns a set of devices and renders their broadcasts as one byte stream.
type Simulator struct {
	cfg     Config
	logger  *log.Logger
	devices []*Device

	mu     sync.Mutex
	rng    *rand.Rand
	rounds uint64
}

// New creates a Simulator. An empty device list falls back to DefaultDevices.
func New(cfg Config, logger *log.Logger) *Simulator {
	if logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = DefaultDevices()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	s := &Simulator{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)),
	}
	for _, dc := range cfg.Devices {
		s.devices = append(s.devices, newDevice(dc))
	}
	return s
}

// Devices returns the simulated devices in configuration order.
func (s *Simulator) Devices() []*Device {
	return slices.Clone(s.devices)
}

// Device returns the device with the given id.
func (s *Simulator) Device(id uint32) (*Device, error) {
	for _, d := range s.devices {
		if d.cfg.DeviceID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %d: %w", id, ErrUnknownDevice)
}

// Rounds returns the number of rounds rendered so far.
func (s *Simulator) Rounds() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

// Round renders one frame from every transmitting device.
func (s *Simulator) Round() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []byte
	if s.cfg.Noise {
		// junk never contains the sync byte so no frame is swallowed
		out = append(out, byte(s.rng.UintN(uint(ant.SyncByte))), 0x00, byte(s.rng.UintN(uint(ant.SyncByte))))
	}
	for _, d := range s.devices {
		frame := d.Frame(s.cfg.Jitter, s.rng)
		if frame == nil {
			continue
		}
		if s.cfg.Tunnel {
			frame = ant.EncodeTunnel(ant.MsgBurstData, d.cfg.Channel, frame)
		}
		out = append(out, frame...)
	}
	s.rounds++
	return out
}

// Run writes one round to w every interval until ctx is done. A count above
// zero stops after that many rounds.
func (s *Simulator) Run(ctx context.Context, w io.Writer, count int) error {
	s.logger.Printf("Simulator: broadcasting %d devices every %v", len(s.devices), s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	written := 0
	for {
		if ctx.Err() != nil {
			s.logger.Printf("Simulator: stopped after %d rounds", written)
			return nil
		}
		if _, err := w.Write(s.Round()); err != nil {
			return fmt.Errorf("simulator: write round: %w", err)
		}
		written++
		if count > 0 && written >= count {
			s.logger.Printf("Simulator: finished after %d rounds", written)
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Printf("Simulator: stopped after %d rounds", written)
			return nil
		case <-ticker.C:
		}
	}
}
