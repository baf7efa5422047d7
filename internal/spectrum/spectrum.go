// Package spectrum estimates power spectra of sample buffers for
// diagnostics.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// DefaultSegments caps how many segments are averaged.
const DefaultSegments = 16

// ErrShortBuffer is returned when a buffer holds fewer samples than one segment.
var ErrShortBuffer = errors.New("buffer shorter than one segment")

// Spectrum is a one-sided averaged power spectrum.
type Spectrum struct {
	Freqs []float64 // Hz
	Power []float64 // linear, arbitrary units
}

// Estimate averages Hann-windowed periodograms of up to segments
// non-overlapping blocks of n samples.
func Estimate(buf []int8, fs float64, n, segments int) (Spectrum, error) {
	if n < 2 {
		return Spectrum{}, fmt.Errorf("segment length %d too small", n)
	}
	if len(buf) < n {
		return Spectrum{}, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(buf), n)
	}
	if segments < 1 {
		segments = DefaultSegments
	}
	segments = min(segments, len(buf)/n)

	fft := fourier.NewFFT(n)
	seq := make([]float64, n)
	coeff := make([]complex128, n/2+1)
	power := make([]float64, n/2+1)

	for s := 0; s < segments; s++ {
		block := buf[s*n : (s+1)*n]
		for i, v := range block {
			seq[i] = float64(v)
		}
		window.Hann(seq)
		coeff = fft.Coefficients(coeff, seq)
		for i, c := range coeff {
			a := cmplx.Abs(c)
			power[i] += a * a
		}
	}

	freqs := make([]float64, len(power))
	for i := range power {
		power[i] /= float64(segments)
		freqs[i] = fft.Freq(i) * fs
	}
	return Spectrum{Freqs: freqs, Power: power}, nil
}

// Peak returns the frequency and power of the strongest non-DC bin.
func (s Spectrum) Peak() (freq, power float64) {
	best := -1
	for i := 1; i < len(s.Power); i++ {
		if best < 0 || s.Power[i] > s.Power[best] {
			best = i
		}
	}
	if best < 0 {
		return math.NaN(), math.NaN()
	}
	return s.Freqs[best], s.Power[best]
}

// Resolution returns the bin spacing in Hz.
func (s Spectrum) Resolution() float64 {
	if len(s.Freqs) < 2 {
		return 0
	}
	return s.Freqs[1] - s.Freqs[0]
}
