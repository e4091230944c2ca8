package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink records PCM into a WAV container. The header lengths are patched
// when the sink is closed.
type WAVSink struct {
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

// CreateWAV creates path and writes 16-bit PCM with the given layout.
func CreateWAV(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create %q: %w", path, err)
	}
	s := &WAVSink{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
	// The encoder emits the header with the first frames. Writing an empty
	// buffer now keeps a recording closed before any audio a valid file.
	if err := s.enc.Write(s.buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: write wav header: %w", err)
	}
	return s, nil
}

// Write encodes little-endian int16 samples. A trailing odd byte is ignored.
func (s *WAVSink) Write(p []byte) (int, error) {
	n := len(p) / 2
	if cap(s.buf.Data) < n {
		s.buf.Data = make([]int, n)
	}
	s.buf.Data = s.buf.Data[:n]
	for i := range s.buf.Data {
		s.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(p[2*i:])))
	}
	if err := s.enc.Write(s.buf); err != nil {
		return 0, fmt.Errorf("audio: encode wav: %w", err)
	}
	return len(p), nil
}

// Close finalizes the header and closes the file.
func (s *WAVSink) Close() error {
	encErr := s.enc.Close()
	fileErr := s.file.Close()
	if encErr != nil {
		return fmt.Errorf("audio: finalize wav: %w", encErr)
	}
	return fileErr
}
