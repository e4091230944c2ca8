package dsp

import (
	"encoding/binary"
	"math"
	"testing"
)

const (
	testCaptureRate = DecimationFactor * testDemodRate
	testChunkBytes  = 16 * 16384
)

// captureFM synthesizes unsigned 8-bit IQ at the capture rate: a 1 kHz tone
// frequency modulated with the given deviation on a carrier offset from
// the tuner center by offset Hz.
func captureFM(numBytes int, offset, deviation float64) []byte {
	out := make([]byte, numBytes)
	var phase float64
	for n := 0; n < numBytes/2; n++ {
		t := float64(n) / testCaptureRate
		inst := offset + deviation*math.Sin(2*math.Pi*1000*t)
		phase += 2 * math.Pi * inst / testCaptureRate
		out[2*n] = byte(math.Round(127.5 + 127*math.Cos(phase)))
		out[2*n+1] = byte(math.Round(127.5 + 127*math.Sin(phase)))
	}
	return out
}

func decodePCM(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

func TestChain_MonoEndToEnd(t *testing.T) {
	for _, rotate := range []bool{false, true} {
		// Without offset tuning the tuner sits a quarter of the capture
		// rate above the station.
		offset := 0.0
		if rotate {
			offset = -testCaptureRate / 4
		}
		raw := captureFM(4*testChunkBytes, offset, 10000)

		c := NewChain(ChainConfig{
			ChunkBytes: testChunkBytes,
			Rotate:     rotate,
			Mode:       MuxMono,
			DemodRate:  testDemodRate,
			OutputRate: testAudioRate,
			HistoryLen: 128,
			Deemphasis: Lambda(testAudioRate, 50e-6),
			Volume:     1,
		})
		if c.Channels() != 1 {
			t.Fatalf("expected one channel, got %d", c.Channels())
		}

		var audio []float32
		for i := 0; i < len(raw); i += testChunkBytes {
			res := c.Process(raw[i : i+testChunkBytes])
			if len(res.PCM) != testChunkBytes/32 {
				t.Fatalf("rotate=%v: expected %d PCM bytes per chunk, got %d", rotate, testChunkBytes/32, len(res.PCM))
			}
			if res.Clipped != 0 {
				t.Errorf("rotate=%v: unexpected clipping: %d", rotate, res.Clipped)
			}
			if res.RMS < 10000 {
				t.Errorf("rotate=%v: expected strong signal RMS, got %d", rotate, res.RMS)
			}
			audio = append(audio, decodePCM(res.PCM)...)
		}

		// Skip the first chunk while the filters settle.
		audio = audio[4096:]
		fundamental := tone(audio, 1000, testAudioRate)
		if fundamental < 1000 {
			t.Fatalf("rotate=%v: 1 kHz tone missing (amplitude %f)", rotate, fundamental)
		}
		for _, f := range []float64{2000, 3000, 5000, 8000} {
			if other := tone(audio, f, testAudioRate); other > fundamental/10 {
				t.Errorf("rotate=%v: %g Hz component %f rivals 1 kHz %f", rotate, f, other, fundamental)
			}
		}
	}
}

func TestChain_SilenceHasNoRMS(t *testing.T) {
	c := NewChain(ChainConfig{
		ChunkBytes: testChunkBytes,
		Mode:       MuxStereo,
		DemodRate:  testDemodRate,
		OutputRate: testAudioRate,
		HistoryLen: 90,
		Volume:     0.4,
	})
	raw := make([]byte, testChunkBytes)
	for i := range raw {
		raw[i] = 127
	}
	// The first block still mixes in the zeroed filter history.
	c.Process(raw)
	res := c.Process(raw)
	if res.RMS != 0 {
		t.Errorf("expected zero RMS for a constant input, got %d", res.RMS)
	}
	// Stereo doubles the output.
	if len(res.PCM) != testChunkBytes/16 {
		t.Errorf("expected %d PCM bytes, got %d", testChunkBytes/16, len(res.PCM))
	}
}
