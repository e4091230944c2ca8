package receiver

import (
	"errors"
	"log/slog"

	"go-fm-player/internal/audio"
	"go-fm-player/internal/config"
)

// PlayerFactory opens the sound card for live playback.
type PlayerFactory func(sampleRate, channels int) (audio.Player, error)

// OpenOutputs opens the fixed output file named by cfg.OutputFile, or the
// player when there is none. Exactly one of the results is non-nil on
// success and the caller closes it.
//
// An output file that cannot be created is logged and replaced by live
// playback; cfg.OutputFile is cleared so the keyboard controls come back.
// Unknown extensions are still an error.
func OpenOutputs(cfg *config.Config, create SinkFactory, newPlayer PlayerFactory, logger *slog.Logger) (audio.Sink, audio.Player, error) {
	rate, channels := cfg.AudioRate(), cfg.Mode.Channels()
	if cfg.OutputFile != "" {
		sink, err := create(cfg.OutputFile, rate, channels)
		if err == nil {
			return sink, nil, nil
		}
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			return nil, nil, err
		}
		logger.Warn("cannot open output file, playing on the sound card instead",
			"file", cfg.OutputFile, "err", err)
		cfg.OutputFile = ""
	}

	player, err := newPlayer(rate, channels)
	if err != nil {
		return nil, nil, err
	}
	return nil, player, nil
}
