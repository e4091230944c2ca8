// Package rtlsdr drives RTL2832 based dongles through librtlsdr.
package rtlsdr

import (
	"fmt"
	"log/slog"

	rtl "github.com/jpoirier/gortlsdr"

	"go-fm-player/internal/tuner"
)

// Device is an opened RTL-SDR dongle.
type Device struct {
	dev    *rtl.Context
	logger *slog.Logger
}

var _ tuner.Device = (*Device)(nil)

// Devices enumerates the attached dongles.
func Devices() []tuner.Info {
	count := rtl.GetDeviceCount()
	infos := make([]tuner.Info, 0, count)
	for i := 0; i < count; i++ {
		info := tuner.Info{Index: i, Name: rtl.GetDeviceName(i)}
		// Devices claimed by another process cannot report their strings.
		if m, p, s, err := rtl.GetDeviceUsbStrings(i); err == nil {
			info.Manufacturer, info.Product, info.Serial = m, p, s
		}
		infos = append(infos, info)
	}
	return infos
}

// Open selects a device by index, serial or description and opens it.
func Open(query string, logger *slog.Logger) (*Device, error) {
	infos := Devices()
	for _, info := range infos {
		logger.Debug("found device", "device", info.String())
	}
	index, err := tuner.Search(infos, query)
	if err != nil {
		return nil, err
	}
	info := infos[index]
	logger.Info("using device", "index", index, "name", info.Name)

	dev, err := rtl.Open(index)
	if err != nil {
		return nil, fmt.Errorf("rtlsdr: open device #%d: %w", index, err)
	}
	return &Device{dev: dev, logger: logger}, nil
}

func (d *Device) SetCenterFreq(hz uint32) error {
	if err := d.dev.SetCenterFreq(int(hz)); err != nil {
		return fmt.Errorf("rtlsdr: set center frequency %d: %w", hz, err)
	}
	return nil
}

func (d *Device) SetSampleRate(hz uint32) error {
	if err := d.dev.SetSampleRate(int(hz)); err != nil {
		return fmt.Errorf("rtlsdr: set sample rate %d: %w", hz, err)
	}
	return nil
}

func (d *Device) SetGain(tenthsDB int) (int, error) {
	if err := d.dev.SetTunerGainMode(true); err != nil {
		return 0, fmt.Errorf("rtlsdr: enable manual gain: %w", err)
	}
	gains, err := d.dev.GetTunerGains()
	if err != nil {
		return 0, fmt.Errorf("rtlsdr: list gains: %w", err)
	}
	nearest, err := tuner.NearestGain(gains, tenthsDB)
	if err != nil {
		return 0, err
	}
	if err := d.dev.SetTunerGain(nearest); err != nil {
		return 0, fmt.Errorf("rtlsdr: set gain %d: %w", nearest, err)
	}
	d.logger.Debug("manual gain", "requested", tenthsDB, "applied", nearest, "supported", gains)
	return nearest, nil
}

func (d *Device) SetAutoGain() error {
	if err := d.dev.SetTunerGainMode(false); err != nil {
		return fmt.Errorf("rtlsdr: enable automatic gain: %w", err)
	}
	return nil
}

func (d *Device) SetFreqCorrection(ppm int) error {
	if err := d.dev.SetFreqCorrection(ppm); err != nil {
		return fmt.Errorf("rtlsdr: set ppm %d: %w", ppm, err)
	}
	return nil
}

func (d *Device) SetBiasTee(on bool) error {
	if err := d.dev.SetBiasTee(on); err != nil {
		return fmt.Errorf("rtlsdr: set bias tee: %w", err)
	}
	return nil
}

func (d *Device) SetDirectSampling(on bool) error {
	// 0 disables, 1 samples the I branch.
	var err error
	if on {
		err = d.dev.SetDirectSampling(1)
	} else {
		err = d.dev.SetDirectSampling(0)
	}
	if err != nil {
		return fmt.Errorf("rtlsdr: set direct sampling: %w", err)
	}
	return nil
}

func (d *Device) SetOffsetTuning(on bool) error {
	if err := d.dev.SetOffsetTuning(on); err != nil {
		return fmt.Errorf("rtlsdr: set offset tuning: %w", err)
	}
	return nil
}

func (d *Device) ResetBuffer() error {
	if err := d.dev.ResetBuffer(); err != nil {
		return fmt.Errorf("rtlsdr: reset buffer: %w", err)
	}
	return nil
}

// ReadAsync streams with the library's default buffer count and length.
func (d *Device) ReadAsync(cb func([]byte)) error {
	if err := d.dev.ReadAsync(cb, nil, 0, 0); err != nil {
		return fmt.Errorf("rtlsdr: async read: %w", err)
	}
	return nil
}

func (d *Device) CancelAsync() error {
	return d.dev.CancelAsync()
}

func (d *Device) Close() error {
	return d.dev.Close()
}
