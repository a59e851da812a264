package filter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// Minimum FFT padding factor; zero-padding sharpens the bin resolution
	// enough to catch sidelobe peaks between bins.
	responsePaddingFactor = 2

	// Smallest magnitude reported to keep the dB conversion finite
	minMagnitude = 1e-12

	dbMultiplier = 20.0

	// Transition width estimate from Kaiser's length formula:
	// N ≈ (att − 8) / (2.285 · 2π · Δf)
	kaiserLengthOffset = 8.0
	kaiserLengthFactor = 2.285
)

// MagnitudeResponse computes the magnitude response of a prototype filter
// on a grid of len(result) frequencies from DC to the prototype Nyquist,
// using gonum's real FFT. Frequencies are normalized to the prototype
// (phase-oversampled) rate.
func MagnitudeResponse(proto []float64, minBins int) []float64 {
	fftSize := 1
	for fftSize < responsePaddingFactor*len(proto) || fftSize < responsePaddingFactor*minBins {
		fftSize <<= 1
	}

	padded := make([]float64, fftSize)
	copy(padded, proto)

	fft := fourier.NewFFT(fftSize)
	coeffs := fft.Coefficients(nil, padded)

	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	return mags
}

// MagnitudeDB converts a linear magnitude to decibels, clamped so that a
// zero magnitude stays finite.
func MagnitudeDB(magnitude float64) float64 {
	if magnitude < minMagnitude {
		magnitude = minMagnitude
	}
	return dbMultiplier * math.Log10(magnitude)
}

// MeasuredStopbandDB designs the kernel's prototype and measures the worst
// stopband magnitude relative to DC, in (positive) dB of attenuation.
// Used by tests and the analyze-kernel tool to verify tier ordering.
func MeasuredStopbandDB(k Kernel) float64 {
	proto := k.Prototype()
	mags := MagnitudeResponse(proto, k.TotalTaps)

	// Stopband begins past the cutoff plus the Kaiser transition width,
	// all in prototype-normalized frequency.
	protoCutoff := k.Cutoff / float64(k.Phases)
	transition := (k.Attenuation - kaiserLengthOffset) /
		(kaiserLengthFactor * 2.0 * math.Pi * float64(k.TotalTaps))
	stopbandStart := protoCutoff + transition

	// mags[i] is at normalized frequency i/fftSize with fftSize = 2*(len-1)
	fftSize := 2 * (len(mags) - 1)
	startBin := int(math.Ceil(stopbandStart * float64(fftSize)))
	if startBin < 1 {
		startBin = 1
	}

	dc := mags[0]
	worst := 0.0
	for i := startBin; i < len(mags); i++ {
		if mags[i] > worst {
			worst = mags[i]
		}
	}
	if worst <= 0 || dc <= 0 {
		return -MagnitudeDB(minMagnitude)
	}
	return MagnitudeDB(dc) - MagnitudeDB(worst)
}
