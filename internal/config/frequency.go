package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hz.tools/rf"
)

// ParseFrequency parses a frequency such as "96.4M", "96400k", "96400KHz" or
// "96400000".
func ParseFrequency(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: empty frequency")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return toHz(rf.Hz(v), s)
	}

	// rtl_fm style suffixes without the unit.
	unit := rf.Hz(0)
	switch s[len(s)-1] {
	case 'k', 'K':
		unit = rf.KHz
	case 'm', 'M':
		unit = rf.MHz
	case 'g', 'G':
		unit = rf.GHz
	}
	if unit != 0 {
		v, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("config: parse frequency %q: %w", s, err)
		}
		return toHz(rf.Hz(v)*unit, s)
	}

	hz, err := rf.ParseHz(s)
	if err != nil {
		return 0, fmt.Errorf("config: parse frequency %q: %w", s, err)
	}
	return toHz(hz, s)
}

func toHz(hz rf.Hz, s string) (uint32, error) {
	if hz <= 0 || float64(hz) > float64(^uint32(0)) {
		return 0, fmt.Errorf("config: frequency %q out of range", s)
	}
	return uint32(math.Round(float64(hz))), nil
}

// ParseFrequencies expands a single value, a start:stop pair or a
// start:stop:step range. The result never exceeds limit entries.
func ParseFrequencies(spec string, limit int) ([]uint32, error) {
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1, 2:
		var out []uint32
		for _, p := range parts {
			f, err := ParseFrequency(p)
			if err != nil {
				return nil, err
			}
			if len(out) < limit {
				out = append(out, f)
			}
		}
		return out, nil
	case 3:
		start, err := ParseFrequency(parts[0])
		if err != nil {
			return nil, err
		}
		stop, err := ParseFrequency(parts[1])
		if err != nil {
			return nil, err
		}
		step, err := ParseFrequency(parts[2])
		if err != nil {
			return nil, err
		}
		var out []uint32
		for f := int64(start); f <= int64(stop) && len(out) < limit; f += int64(step) {
			out = append(out, uint32(f))
		}
		return out, nil
	}
	return nil, fmt.Errorf("config: invalid frequency range %q", spec)
}

// FormatMHz renders a frequency the way the status line shows it.
func FormatMHz(freq uint32) string {
	return fmt.Sprintf("%.2f MHz", float64(freq/10_000)/100.0)
}
