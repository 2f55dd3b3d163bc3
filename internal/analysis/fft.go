package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrTooShort = errors.New("series too short")

// PowerSpectrum returns the magnitude of the first half of the transform
// of data with its mean removed.
func PowerSpectrum(data []float64) []float64 {
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	if len(data) > 0 {
		mean /= float64(len(data))
	}
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	f := fft.FFTReal(centered)
	ps := make([]float64, len(f)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(f[i])
	}
	return ps
}

// DominantFrequency returns the frequency of the strongest non-zero bin
// along with its magnitude.
func DominantFrequency(times, values []float64) (freq, power float64, err error) {
	if len(values) < 4 || len(times) != len(values) {
		return 0, 0, ErrTooShort
	}
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		return 0, 0, ErrTooShort
	}
	dt := span / float64(len(times)-1)

	ps := PowerSpectrum(values)
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return float64(best) / (float64(len(values)) * dt), ps[best], nil
}
