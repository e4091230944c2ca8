// Package tuner defines the radio front end the receiver drives, along
// with the device selection helpers shared by its implementations.
package tuner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoDevice is returned when no device matches the requested one.
var ErrNoDevice = errors.New("tuner: no supported device found")

// Device is a source of unsigned 8-bit interleaved IQ samples.
type Device interface {
	SetCenterFreq(hz uint32) error
	SetSampleRate(hz uint32) error
	// SetGain switches to manual gain and applies the supported gain
	// closest to tenthsDB, which is returned.
	SetGain(tenthsDB int) (int, error)
	SetAutoGain() error
	SetFreqCorrection(ppm int) error
	SetBiasTee(on bool) error
	SetDirectSampling(on bool) error
	SetOffsetTuning(on bool) error
	ResetBuffer() error

	// ReadAsync delivers sample buffers to cb until CancelAsync is called
	// or the source is exhausted, in which case it returns io.EOF. The
	// buffer passed to cb is reused after cb returns.
	ReadAsync(cb func([]byte)) error
	CancelAsync() error
	Close() error
}

// Info describes an enumerated device.
type Info struct {
	Index        int
	Name         string
	Manufacturer string
	Product      string
	Serial       string
}

func (i Info) String() string {
	return fmt.Sprintf("%d: %s, %s, SN: %s", i.Index, i.Manufacturer, i.Product, i.Serial)
}

// Search picks a device by index, exact serial, serial prefix, or a
// case-insensitive substring of its description, in that order.
func Search(devices []Info, query string) (int, error) {
	if len(devices) == 0 {
		return -1, ErrNoDevice
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = "0"
	}

	if n, err := strconv.Atoi(query); err == nil {
		for _, d := range devices {
			if d.Index == n {
				return d.Index, nil
			}
		}
	}
	for _, d := range devices {
		if d.Serial == query {
			return d.Index, nil
		}
	}
	for _, d := range devices {
		if d.Serial != "" && strings.HasPrefix(d.Serial, query) {
			return d.Index, nil
		}
	}
	q := strings.ToLower(query)
	for _, d := range devices {
		desc := strings.ToLower(d.Name + " " + d.Manufacturer + " " + d.Product + " " + d.Serial)
		if strings.Contains(desc, q) {
			return d.Index, nil
		}
	}
	return -1, fmt.Errorf("%w matching %q", ErrNoDevice, query)
}

// NearestGain returns the entry of gains closest to target, preferring the
// first on ties. Both are in tenths of a dB.
func NearestGain(gains []int, target int) (int, error) {
	if len(gains) == 0 {
		return 0, errors.New("tuner: no gains reported")
	}
	nearest := gains[0]
	for _, g := range gains[1:] {
		if abs(target-g) < abs(target-nearest) {
			nearest = g
		}
	}
	return nearest, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
