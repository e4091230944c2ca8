// Command go-fm-player receives wideband FM broadcasts from an RTL-SDR
// dongle (or a recorded IQ file) and plays or records the audio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"go-fm-player/internal/audio"
	"go-fm-player/internal/audio/speaker"
	"go-fm-player/internal/config"
	"go-fm-player/internal/console"
	"go-fm-player/internal/observe"
	"go-fm-player/internal/receiver"
	"go-fm-player/internal/tuner"
	"go-fm-player/internal/tuner/iqfile"
	"go-fm-player/internal/tuner/rtlsdr"
)

var version = "dev"

// Audio queued in the sound card player, in output chunks.
const playerQueueChunks = 8

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	freqs       []string
	device      string
	sampleRate  int
	resample    int
	gain        float64
	squelch     int
	delay       int
	ppm         int
	enable      []string
	stereo      bool
	mono        bool
	biasTee     bool
	verbose     bool
	iqFile      string
	noThrottle  bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "go-fm-player [flags] [output.wav|output.raw|-]",
		Short: "Wideband FM receiver with scanning, time shift and recording",
		Long: "go-fm-player tunes an RTL-SDR dongle to one or more FM broadcast\n" +
			"frequencies and plays the demodulated audio. With an output file the\n" +
			"audio is written there instead and only the exit key is active.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, &f, args)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fl.StringArrayVarP(&f.freqs, "freq", "f", nil, "frequency or start:stop[:step] range, repeatable (e.g. 96.4M)")
	fl.StringVarP(&f.device, "device", "d", "0", "device index, serial or name")
	fl.IntVarP(&f.sampleRate, "sample-rate", "s", 0, "demodulation rate in Hz")
	fl.IntVarP(&f.resample, "resample-rate", "r", 0, "audio output rate in Hz")
	fl.Float64VarP(&f.gain, "gain", "g", 0, "tuner gain in dB (default automatic)")
	fl.IntVarP(&f.squelch, "squelch", "l", 0, "squelch level, 0 disables")
	fl.IntVarP(&f.delay, "squelch-delay", "t", 0, "quiet chunks before hopping; negative exits instead")
	fl.IntVarP(&f.ppm, "ppm", "p", 0, "frequency correction in ppm")
	fl.StringArrayVarP(&f.enable, "enable", "E", nil, "enable option: edge, deemp, direct, offset")
	fl.BoolVarP(&f.stereo, "stereo", "X", false, "wideband FM stereo preset")
	fl.BoolVarP(&f.mono, "mono", "Y", false, "wideband FM mono preset")
	fl.BoolVarP(&f.biasTee, "bias-tee", "T", false, "enable the bias tee")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	fl.StringVar(&f.iqFile, "iq-file", "", "replay a raw u8 IQ or WAV capture instead of a device")
	fl.BoolVar(&f.noThrottle, "no-throttle", false, "replay the IQ file as fast as possible")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.MarkFlagsMutuallyExclusive("stereo", "mono")
	return cmd
}

// buildConfig layers the config file, presets and explicitly set flags on
// top of the defaults.
func buildConfig(cmd *cobra.Command, f *flags, args []string) (*config.Config, error) {
	cfg := config.New()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	switch {
	case f.stereo:
		cfg.ApplyPreset(config.PresetStereo)
	case f.mono:
		cfg.ApplyPreset(config.PresetMono)
	}
	if changed("freq") {
		cfg.FrequencySpecs = f.freqs
	}
	if changed("device") {
		cfg.Device = f.device
	}
	if changed("sample-rate") {
		cfg.DemodRate = f.sampleRate
	}
	if changed("resample-rate") {
		cfg.ResampleRate = f.resample
	}
	if changed("gain") {
		cfg.AutoGain = false
		cfg.Gain = f.gain
	}
	if changed("squelch") {
		cfg.SquelchLevel = f.squelch
	}
	if changed("squelch-delay") {
		cfg.SquelchDelay = f.delay
	}
	if changed("ppm") {
		cfg.PPM = f.ppm
	}
	for _, opt := range f.enable {
		switch opt {
		case "edge":
			cfg.EdgeTuning = true
		case "deemp":
			cfg.Deemphasis = config.DeemphasisEU
		case "direct":
			cfg.DirectSampling = true
		case "offset":
			cfg.OffsetTuning = true
		default:
			return nil, fmt.Errorf("unknown -E option %q; valid values: edge, deemp, direct, offset", opt)
		}
	}
	if f.biasTee {
		cfg.BiasTee = true
	}
	if f.verbose {
		cfg.LogLevel = config.LogDebug
	}
	if changed("iq-file") {
		cfg.IQFile = f.iqFile
	}
	if f.noThrottle {
		cfg.Throttle = false
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if len(args) == 1 {
		cfg.OutputFile = args[0]
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// In raw mode the terminal no longer turns "\n" into "\r\n", and the
	// status line shares stderr with the log.
	var stderr io.Writer = os.Stderr
	term, err := console.MakeRaw(os.Stdin)
	if err == nil {
		defer term.Restore()
		stderr = console.CRLF(os.Stderr)
	}
	logger := newLogger(cfg.LogLevel, stderr)
	if err != nil && !errors.Is(err, console.ErrNotTerminal) {
		logger.Warn("keyboard controls unavailable", "err", err)
	}

	err = receive(ctx, cfg, logger, stderr)
	if err != nil {
		logger.Error("fatal", "err", err)
	}
	return err
}

func receive(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	metrics := observe.Discard()
	if cfg.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("metrics shutdown", "err", err)
			}
		}()
		metrics, err = observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}

	dev, err := openDevice(cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	opts := receiver.Options{
		Config:  cfg,
		Device:  dev,
		Metrics: metrics,
		Logger:  logger,
	}
	output, player, err := receiver.OpenOutputs(cfg, audio.OpenFile, func(rate, channels int) (audio.Player, error) {
		p, err := speaker.New(rate, channels, cfg.OutputChunkSize, playerQueueChunks*cfg.OutputChunkSize)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, logger)
	if err != nil {
		return err
	}
	if output != nil {
		defer func() {
			if err := output.Close(); err != nil {
				logger.Error("closing output file", "file", cfg.OutputFile, "err", err)
			}
		}()
		opts.Output = output
	}
	if player != nil {
		defer player.Close()
		opts.Player = player
	}

	rcv, err := receiver.New(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := rcv.Run(gctx)
		if errors.Is(err, receiver.ErrSquelchExit) {
			logger.Info("signal lost, exiting")
			return nil
		}
		return err
	})
	g.Go(func() error {
		con := console.New(rcv, out, console.Options{
			OutputFile: cfg.OutputFile,
			TuneStep:   cfg.TuneStep,
			ShiftStep:  cfg.ShiftStep,
			Logger:     logger,
		})
		err := con.Run(gctx, os.Stdin)
		if errors.Is(err, console.ErrQuit) {
			cancel()
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := observe.Serve(gctx, cfg.MetricsAddr, logger); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func openDevice(cfg *config.Config, logger *slog.Logger) (tuner.Device, error) {
	if cfg.IQFile != "" {
		src, err := iqfile.Open(cfg.IQFile, iqfile.Options{
			Throttle: cfg.Throttle,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("replaying IQ file", "file", cfg.IQFile, "throttle", cfg.Throttle)
		return src, nil
	}
	dev, err := rtlsdr.Open(cfg.Device, logger)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
