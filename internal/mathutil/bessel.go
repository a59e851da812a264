// Package mathutil provides the numeric primitives used by kernel design.
package mathutil

import (
	"math"
)

// BesselI0 computes the modified Bessel function of the first kind, order
// zero: I₀(x). It is the only special function the Kaiser window needs.
//
// Two Chebyshev polynomial approximations are used for numerical stability:
//   - |x| ≤ 3.75: direct series expansion
//   - |x| > 3.75: asymptotic expansion with exponential scaling
//
// Accuracy is ~15 digits, which is far beyond what coefficient tables
// quantized to float32 can resolve.
//
// Reference: Abramowitz & Stegun, "Handbook of Mathematical Functions".
func BesselI0(x float64) float64 {
	// I₀(x) = I₀(-x)
	ax := math.Abs(x)

	if ax < besselSmallArgThreshold {
		// I₀(x) ≈ 1 + (x/2)² · P(t) with t = (x/3.75)²
		t := x / besselSmallArgThreshold
		t *= t

		return 1.0 + t*(besselI0Coeff1+t*(besselI0Coeff2+t*(besselI0Coeff3+
			t*(besselI0Coeff4+t*(besselI0Coeff5+t*besselI0Coeff6)))))
	}

	// I₀(x) ≈ (eˣ / √x) · P(3.75/x) for large arguments
	t := besselSmallArgThreshold / ax

	result := besselI0AsympCoeff0 + t*(besselI0AsympCoeff1+t*(besselI0AsympCoeff2+
		t*(besselI0AsympCoeff3+t*(besselI0AsympCoeff4+t*(besselI0AsympCoeff5+
			t*(besselI0AsympCoeff6+t*(besselI0AsympCoeff7+t*besselI0AsympCoeff8)))))))

	return math.Exp(ax) * result / math.Sqrt(ax)
}

// KaiserBeta computes the Kaiser window β parameter from the desired
// stopband attenuation in decibels.
//
// Empirical formula from Kaiser & Schafer:
//   - att > 50 dB:        β = 0.1102·(att − 8.7)
//   - 21 dB ≤ att ≤ 50:   β = 0.5842·(att − 21)^0.4 + 0.07886·(att − 21)
//   - att < 21 dB:        β = 0 (rectangular window suffices)
func KaiserBeta(attenuation float64) float64 {
	switch {
	case attenuation > kaiserAttHigh:
		return kaiserBetaHighCoeff * (attenuation - kaiserBetaHighOffset)
	case attenuation >= kaiserAttMedium:
		delta := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(delta, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*delta
	default:
		return 0.0
	}
}

// KaiserAttenuation estimates the stopband attenuation achieved by a Kaiser
// window with the given β parameter. Approximate inverse of KaiserBeta,
// used to sanity-check kernel designs.
func KaiserAttenuation(beta float64) float64 {
	if beta < kaiserBetaMinThreshold {
		return 0.0
	}
	return kaiserBetaHighOffset + beta/kaiserBetaHighCoeff
}
