package dsp

import (
	"math"
	"math/rand/v2"
	"testing"
)

const atanTolerance = 0.002

func near(a, b float32, tol float64) bool {
	return math.Abs(float64(a-b)) <= tol
}

// generateTestSignal creates interleaved IQ with a constant phase rotation.
func generateTestSignal(numSamples int, phaseIncrement float64) []float32 {
	samples := make([]float32, 2*numSamples)
	for i := 0; i < numSamples; i++ {
		// e^(j*theta) = cos(theta) + j*sin(theta)
		phase := float64(i+1) * phaseIncrement
		samples[2*i] = float32(math.Cos(phase))
		samples[2*i+1] = float32(math.Sin(phase))
	}
	return samples
}

func TestAtan2Approx_ErrorBound(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var worst float64
	for i := 0; i < 10000; i++ {
		x := float32(rng.Float64()*2 - 1)
		y := float32(rng.Float64()*2 - 1)
		diff := math.Abs(float64(Atan2Approx(y, x)) - math.Atan2(float64(y), float64(x)))
		worst = max(worst, diff)
		if diff >= atanTolerance {
			t.Fatalf("atan2(%f, %f): error %f exceeds %f", y, x, diff, atanTolerance)
		}
	}
	t.Logf("worst error %.5f rad", worst)
}

func TestAtan2Approx_Axes(t *testing.T) {
	cases := []struct {
		y, x, want float32
	}{
		{0, 0, 0},
		{1, 0, math.Pi / 2},
		{-1, 0, -math.Pi / 2},
		{0, 1, 0},
		{0, -1, math.Pi},
	}
	for _, c := range cases {
		if got := Atan2Approx(c.y, c.x); got != c.want {
			t.Errorf("Atan2Approx(%v, %v) = %v, want %v", c.y, c.x, got, c.want)
		}
	}
}

func TestDiscriminator_ConstantFrequency(t *testing.T) {
	demod := NewDiscriminator()

	const numSamples = 128
	const phaseIncrement = math.Pi / 16 // Represents a constant frequency offset

	// Generate a signal with a constant phase rotation.
	samples := generateTestSignal(numSamples, phaseIncrement)
	output := demod.Process(make([]float32, numSamples), samples)

	if len(output) != numSamples {
		t.Fatalf("Expected output length of %d, but got %d", numSamples, len(output))
	}

	// The first sample is compared against the zero-state, so we skip it.
	// All subsequent samples should have a phase difference equal to our increment.
	for i := 1; i < len(output); i++ {
		if !near(output[i], phaseIncrement, atanTolerance) {
			t.Errorf("Sample %d: expected phase difference of %f, but got %f", i+1, phaseIncrement, output[i])
		}
	}
}

func TestDiscriminator_PhaseWrapAround(t *testing.T) {
	demod := NewDiscriminator()

	// A jump from +0.75π to -0.75π is a total change of -1.5π,
	// which must be reported as +0.5π.
	const phaseBeforeJump = 0.75 * math.Pi
	const phaseAfterJump = -0.75 * math.Pi
	const expectedWrappedPhase = 0.5 * math.Pi

	samples := []float32{
		1, 0, // Sample 0: Phase = 0
		float32(math.Cos(phaseBeforeJump)), float32(math.Sin(phaseBeforeJump)), // Sample 1: Phase = +0.75π
		float32(math.Cos(phaseAfterJump)), float32(math.Sin(phaseAfterJump)), // Sample 2: Phase = -0.75π
	}

	// Process in place.
	output := demod.Process(samples, samples)

	if len(output) != 3 {
		t.Fatalf("Expected 3 output samples, got %d", len(output))
	}
	if !near(output[1], phaseBeforeJump, atanTolerance) {
		t.Errorf("Expected phase diff at output[1] to be %f, but got %f", phaseBeforeJump, output[1])
	}
	if !near(output[2], expectedWrappedPhase, atanTolerance) {
		t.Errorf("Expected wrapped phase diff at output[2] to be %f, but got %f", expectedWrappedPhase, output[2])
	}
}

func TestDiscriminator_Statefulness(t *testing.T) {
	const numSamples = 256
	const phaseIncrement = -math.Pi / 8
	const chunkSize = 64

	fullSignal := generateTestSignal(numSamples, phaseIncrement)

	// --- Process the signal in one go ---
	referenceOutput := NewDiscriminator().Process(make([]float32, numSamples), fullSignal)

	// --- Process the signal in chunks and verify statefulness ---
	chunked := NewDiscriminator()
	chunkedOutput := make([]float32, 0, numSamples)
	buf := make([]float32, chunkSize)
	for i := 0; i < numSamples; i += chunkSize {
		out := chunked.Process(buf, fullSignal[2*i:2*(i+chunkSize)])
		chunkedOutput = append(chunkedOutput, out...)
	}

	if len(referenceOutput) != len(chunkedOutput) {
		t.Fatalf("Mismatched output lengths: reference=%d, chunked=%d", len(referenceOutput), len(chunkedOutput))
	}
	for i := range referenceOutput {
		if !almostEqual(referenceOutput[i], chunkedOutput[i]) {
			t.Fatalf("Mismatch at sample %d: reference=%f, chunked=%f", i, referenceOutput[i], chunkedOutput[i])
		}
	}
}
