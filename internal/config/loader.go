package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrSquelchRequired is returned when scanning without a squelch level.
	ErrSquelchRequired = errors.New("config: a squelch level is required for scanning multiple frequencies")
	// ErrUnsupportedOversample is returned for output oversampling above 1,
	// which the float pipeline does not implement.
	ErrUnsupportedOversample = errors.New("config: oversample > 1 is not supported")
)

// Load reads the YAML configuration file at path on top of the defaults.
// The result is not resolved or validated; flags may still override it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of New().
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := New()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// Resolve expands FrequencySpecs into Frequencies, falling back to
// DefaultFrequency, and validates the result.
func (c *Config) Resolve() error {
	c.Frequencies = c.Frequencies[:0]
	for _, spec := range c.FrequencySpecs {
		if len(c.Frequencies) >= MaxFrequencies {
			break
		}
		freqs, err := ParseFrequencies(spec, MaxFrequencies-len(c.Frequencies))
		if err != nil {
			return err
		}
		c.Frequencies = append(c.Frequencies, freqs...)
	}
	if len(c.Frequencies) == 0 {
		c.Frequencies = append(c.Frequencies, DefaultFrequency)
	}
	return Validate(c)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if !cfg.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("mode %q is invalid; valid values: passthrough, mono, stereo", cfg.Mode))
	}
	if !cfg.Deemphasis.IsValid() {
		errs = append(errs, fmt.Errorf("deemphasis %q is invalid; valid values: none, eu, us", cfg.Deemphasis))
	}

	if cfg.DemodRate <= 0 {
		errs = append(errs, fmt.Errorf("demod_rate %d must be positive", cfg.DemodRate))
	}
	if cfg.Decimation != 8 {
		errs = append(errs, fmt.Errorf("decimation %d is fixed at 8", cfg.Decimation))
	}
	if cfg.ResampleRate < 0 || cfg.ResampleRate > cfg.DemodRate {
		errs = append(errs, fmt.Errorf("resample_rate %d must be within [0, %d]", cfg.ResampleRate, cfg.DemodRate))
	}
	if cfg.Mode == ModeStereo && cfg.ResampleRate*2 > cfg.DemodRate {
		errs = append(errs, fmt.Errorf("resample_rate %d must be at most half of demod_rate in stereo mode", cfg.ResampleRate))
	}
	if cfg.ResampleRate == 0 && cfg.Mode != ModePassthrough {
		errs = append(errs, fmt.Errorf("mode %q requires a resample_rate", cfg.Mode))
	}
	if cfg.Oversample != 1 {
		errs = append(errs, fmt.Errorf("%w (got %d)", ErrUnsupportedOversample, cfg.Oversample))
	}
	if cfg.HistoryLength < 4 || cfg.HistoryLength%2 != 0 {
		errs = append(errs, fmt.Errorf("history_length %d must be even and at least 4", cfg.HistoryLength))
	}
	if cfg.Volume <= 0 {
		errs = append(errs, fmt.Errorf("volume %.2f must be positive", cfg.Volume))
	}

	// The decimator consumes 64 floats per 4 output samples.
	if cfg.InputChunkSize <= 0 || cfg.InputChunkSize%64 != 0 {
		errs = append(errs, fmt.Errorf("input_chunk_size %d must be a positive multiple of 64", cfg.InputChunkSize))
	} else if cfg.InputRingSize <= 0 || cfg.InputRingSize%cfg.InputChunkSize != 0 {
		errs = append(errs, fmt.Errorf("input_ring_size %d must be a multiple of input_chunk_size", cfg.InputRingSize))
	}
	if cfg.OutputChunkSize <= 0 || cfg.OutputChunkSize%4 != 0 {
		errs = append(errs, fmt.Errorf("output_chunk_size %d must be a positive multiple of 4", cfg.OutputChunkSize))
	} else if cfg.OutputRingSize <= 0 || cfg.OutputRingSize%cfg.OutputChunkSize != 0 {
		errs = append(errs, fmt.Errorf("output_ring_size %d must be a multiple of output_chunk_size", cfg.OutputRingSize))
	} else if cfg.TimeShiftSlots() < 2 {
		errs = append(errs, fmt.Errorf("timeshift_kib %d holds fewer than two output chunks", cfg.TimeShiftKiB))
	}

	if cfg.BandLow <= 0 || cfg.BandHigh <= cfg.BandLow {
		errs = append(errs, fmt.Errorf("band [%d, %d] is empty", cfg.BandLow, cfg.BandHigh))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval %s must be positive", cfg.PollInterval))
	}

	if len(cfg.Frequencies) > MaxFrequencies {
		errs = append(errs, fmt.Errorf("too many channels, maximum %d", MaxFrequencies))
	}
	if len(cfg.Frequencies) > 1 && cfg.SquelchLevel == 0 {
		errs = append(errs, ErrSquelchRequired)
	}

	return errors.Join(errs...)
}
