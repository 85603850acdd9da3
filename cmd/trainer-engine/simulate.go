package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/api"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/simulator"
)

type simulateOptions struct {
	output   string
	devices  string
	count    int
	httpAddr string
	cfg      simulator.Config
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write synthetic sensor frames",
		Long: "Simulate broadcasts from a power meter, a smart trainer and a heart rate strap\n" +
			"in the radio wire format, e.g. `trainer-engine simulate | trainer-engine run`.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulator(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "-", `destination: "-" for stdout or a file path`)
	f.StringVar(&opts.devices, "devices", "", "YAML file listing simulated devices")
	f.IntVarP(&opts.count, "count", "n", 0, "stop after this many rounds (0 runs until interrupted)")
	f.StringVar(&opts.httpAddr, "http", "", "serve the device control API on this address")
	f.DurationVar(&opts.cfg.Interval, "interval", simulator.DefaultInterval, "time between broadcast rounds")
	f.IntVar(&opts.cfg.Jitter, "jitter", 0, "random power jitter in watts")
	f.BoolVar(&opts.cfg.Noise, "noise", false, "insert garbage bytes between rounds")
	f.BoolVar(&opts.cfg.Tunnel, "tunnel", false, "wrap frames in burst tunnel frames")
	f.Uint64Var(&opts.cfg.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	return cmd
}

func runSimulator(ctx context.Context, opts simulateOptions, stdout, stderr io.Writer) error {
	logger := log.New(stderr, "", log.LstdFlags)

	if opts.devices != "" {
		devices, err := loadDevices(opts.devices)
		if err != nil {
			return err
		}
		opts.cfg.Devices = devices
	}

	out := stdout
	if opts.output != "" && opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	cw := &countingWriter{w: out}

	sim := simulator.New(opts.cfg, logger)
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		defer cancelRun()
		return sim.Run(runCtx, cw, opts.count)
	})
	if opts.httpAddr != "" {
		g.Go(func() error { return api.ServeHandler(runCtx, opts.httpAddr, sim.Handler(), logger) })
	}

	err := g.Wait()
	logger.Printf("Simulate: wrote %d rounds, %s", sim.Rounds(), humanize.Bytes(cw.n))
	return err
}

func loadDevices(path string) ([]simulator.DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devices: %w", err)
	}
	var devices []simulator.DeviceConfig
	if err := yaml.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decode devices %s: %w", path, err)
	}
	return devices, nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
