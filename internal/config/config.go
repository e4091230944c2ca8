// Package config holds the receiver configuration, its defaults and the
// wideband FM presets.
package config

import (
	"math"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects how the discriminator output is filtered and resampled.
type Mode string

const (
	// ModePassthrough only rate-matches the discriminator output.
	ModePassthrough Mode = "passthrough"
	// ModeMono low-pass filters and resamples to one channel.
	ModeMono Mode = "mono"
	// ModeStereo decodes the pilot-locked L-R subcarrier into two channels.
	ModeStereo Mode = "stereo"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModePassthrough, ModeMono, ModeStereo:
		return true
	}
	return false
}

// Channels returns the number of interleaved output channels for m.
func (m Mode) Channels() int {
	if m == ModeStereo {
		return 2
	}
	return 1
}

// Deemphasis names a de-emphasis time constant.
type Deemphasis string

const (
	DeemphasisNone Deemphasis = "none"
	DeemphasisEU   Deemphasis = "eu"
	DeemphasisUS   Deemphasis = "us"
)

// Tau returns the time constant in seconds, zero when disabled.
func (d Deemphasis) Tau() float64 {
	switch d {
	case DeemphasisEU:
		return 50e-6
	case DeemphasisUS:
		return 75e-6
	}
	return 0
}

// IsValid reports whether d is a recognised de-emphasis setting.
func (d Deemphasis) IsValid() bool {
	switch d {
	case DeemphasisNone, DeemphasisEU, DeemphasisUS:
		return true
	}
	return false
}

const (
	// MaxFrequencies bounds the scan list.
	MaxFrequencies = 1000
	// BufferDump is the number of bytes muted after a retune.
	BufferDump = 4096
	// DefaultFrequency is tuned when no frequency is given.
	DefaultFrequency = 88_000_000
)

// Config holds all the configuration parameters for the receiver.
type Config struct {
	// Frequency specs as given by the user, each a single value or a
	// start:stop[:step] range. Resolved into Frequencies by Resolve.
	FrequencySpecs []string `yaml:"frequencies"`
	Frequencies    []uint32 `yaml:"-"`

	Device string `yaml:"device"`
	IQFile string `yaml:"iq_file"`
	// Throttle paces IQ file replay at the capture rate.
	Throttle bool `yaml:"throttle"`

	// DemodRate is the sample rate after the decimating low-pass filter.
	DemodRate    int `yaml:"demod_rate"`
	Decimation   int `yaml:"decimation"`
	ResampleRate int `yaml:"resample_rate"`
	Oversample   int `yaml:"oversample"`

	Mode          Mode       `yaml:"mode"`
	HistoryLength int        `yaml:"history_length"`
	Deemphasis    Deemphasis `yaml:"deemphasis"`
	Volume        float64    `yaml:"volume"`

	AutoGain       bool    `yaml:"auto_gain"`
	Gain           float64 `yaml:"gain"`
	PPM            int     `yaml:"ppm"`
	BiasTee        bool    `yaml:"bias_tee"`
	DirectSampling bool    `yaml:"direct_sampling"`
	OffsetTuning   bool    `yaml:"offset_tuning"`
	EdgeTuning     bool    `yaml:"edge_tuning"`
	Wideband       bool    `yaml:"wideband"`
	WidebandOffset int     `yaml:"wideband_offset"`

	SquelchLevel int `yaml:"squelch_level"`
	// SquelchDelay is the number of consecutive quiet chunks tolerated.
	// A negative value terminates the receiver instead of hopping.
	SquelchDelay int `yaml:"squelch_delay"`

	InputChunkSize   int `yaml:"input_chunk_size"`
	OutputChunkSize  int `yaml:"output_chunk_size"`
	InputRingSize    int `yaml:"input_ring_size"`
	OutputRingSize   int `yaml:"output_ring_size"`
	TimeShiftKiB     int `yaml:"timeshift_kib"`
	ShiftStep        int `yaml:"shift_step"`
	BandLow          int `yaml:"band_low"`
	BandHigh         int `yaml:"band_high"`
	TuneStep         int `yaml:"tune_step"`

	PollInterval time.Duration `yaml:"poll_interval"`

	OutputFile  string   `yaml:"output_file"`
	LogLevel    LogLevel `yaml:"log_level"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

// New returns a new Config with default values.
func New() *Config {
	cfg := &Config{
		Device:         "0",
		Throttle:       true,
		Decimation:     8,
		Oversample:     1,
		Volume:         0.4,
		AutoGain:       true,
		WidebandOffset: 16_000,
		SquelchDelay:   10,

		InputChunkSize:  16 * 16384,
		OutputChunkSize: 16384,
		InputRingSize:   16 * 16 * 16384,
		OutputRingSize:  16 * 16 * 16384,
		TimeShiftKiB:    10240,
		ShiftStep:       10,
		BandLow:         87_500_000,
		BandHigh:        108_000_000,
		TuneStep:        100_000,

		PollInterval: 5 * time.Millisecond,
		LogLevel:     LogInfo,
	}
	cfg.ApplyPreset(PresetStereo)
	return cfg
}

// Preset is a named set of wideband FM settings.
type Preset int

const (
	PresetStereo Preset = iota
	PresetMono
)

// ApplyPreset overwrites the demodulation settings with a wideband preset.
func (c *Config) ApplyPreset(p Preset) {
	c.Wideband = true
	c.DemodRate = 192_000
	c.ResampleRate = 48_000
	c.Deemphasis = DeemphasisEU
	c.SquelchLevel = 0
	switch p {
	case PresetMono:
		c.Mode = ModeMono
		c.HistoryLength = 128
	default:
		c.Mode = ModeStereo
		// 128 is the better filter, 90 keeps small boards real-time.
		c.HistoryLength = 90
	}
}

// CaptureRate is the tuner sample rate feeding the decimating filter.
func (c *Config) CaptureRate() int {
	return c.Decimation * c.DemodRate
}

// CaptureFrequency returns the tuner center frequency that places freq at
// DC after conversion, rotation and the edge offset.
func (c *Config) CaptureFrequency(freq uint32) uint32 {
	capture := int(freq)
	if !c.OffsetTuning {
		capture += c.CaptureRate() / 4
	}
	if c.EdgeTuning {
		capture += c.DemodRate / 2
	}
	return uint32(capture)
}

// DeemphasisLambda returns the single-pole coefficient exp(-1/(rate*tau)),
// zero when de-emphasis is disabled.
func (c *Config) DeemphasisLambda() float64 {
	tau := c.Deemphasis.Tau()
	if tau == 0 {
		return 0
	}
	return math.Exp(-1.0 / (float64(c.AudioRate()) * tau))
}

// AudioRate is the sample rate of the PCM output.
func (c *Config) AudioRate() int {
	if c.ResampleRate == 0 {
		return c.DemodRate
	}
	return c.ResampleRate
}

// TerminateOnSquelch reports whether sustained squelch ends the receiver.
func (c *Config) TerminateOnSquelch() bool {
	return c.SquelchDelay < 0 && len(c.Frequencies) <= 1
}

// SquelchHits returns the tolerated number of consecutive quiet chunks.
func (c *Config) SquelchHits() int {
	if c.SquelchDelay < 0 {
		return -c.SquelchDelay
	}
	return c.SquelchDelay
}

// TimeShiftSlots is the number of output chunks kept for time shifting.
func (c *Config) TimeShiftSlots() int {
	return c.TimeShiftKiB * 1024 / c.OutputChunkSize
}
