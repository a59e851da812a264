// Package filter designs the polyphase interpolation kernels used by the
// converter. A kernel is resolved once per converter from the quality tier
// and the conversion ratio, written into caller-planned storage, and is
// read-only from then on.
package filter

import (
	"math"

	"github.com/tphakala/go-audio-converter/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

// Tier selects one of the quality-tiered kernel families, ordered from
// cheapest to best stopband behavior.
type Tier int

const (
	// TierPoor is the short kernel for preview and CPU-starved paths.
	TierPoor Tier = iota
	// TierGood is the default kernel, adequate for 16-bit program material.
	TierGood
	// TierGreat is the long kernel for mastering-grade conversion.
	TierGreat
)

const (
	// Per-tier kernel geometry. Longer kernels pair with more phases so the
	// coefficient quantization stays below the design attenuation.
	poorTapsPerPhase  = 8
	poorPhases        = 32
	poorAttenuation   = 48.0 // dB
	goodTapsPerPhase  = 16
	goodPhases        = 128
	goodAttenuation   = 96.0 // dB
	greatTapsPerPhase = 32
	greatPhases       = 512
	greatAttenuation  = 144.0 // dB

	// Passband edge as a fraction of the narrower Nyquist. Leaves room for
	// the transition band without folding aliases into the passband.
	cutoffScale = 0.94

	// Nyquist in normalized frequency (1.0 = sample rate)
	nyquistFraction = 0.5

	// Below this |x| the sinc is evaluated by its limit to avoid 0/0
	sincZeroThreshold = 1e-10

	// Catmull-Rom sub-phase interpolation constants, matching the
	// polynomial f(x) = a + b·x + c·x² + d·x³ fitted through four
	// adjacent phase coefficients.
	interpCenterCoeff = 0.5
	interpDDivisor    = 6.0
	interpCMultiplier = 4.0
)

// Kernel is a polyphase kernel resolved for a conversion ratio and tier.
// All fields are derived deterministically, so Kernel doubles as the pure
// sizing input for the memory planner.
type Kernel struct {
	// TapsPerPhase is the length of each polyphase branch, and therefore
	// the history reach per output sample.
	TapsPerPhase int

	// Phases is the number of polyphase branches.
	Phases int

	// TotalTaps is the prototype filter length (TapsPerPhase · Phases).
	TotalTaps int

	// Attenuation is the design stopband attenuation in dB.
	Attenuation float64

	// Cutoff is the passband edge normalized to the source rate
	// (0.5 = source Nyquist).
	Cutoff float64
}

// Resolve returns the kernel geometry for a tier and conversion ratio
// (target rate / source rate). Pure and allocation-free; safe to call
// from the memory planner before any converter exists.
func Resolve(tier Tier, ratio float64) Kernel {
	var taps, phases int
	var att float64

	switch tier {
	case TierPoor:
		taps, phases, att = poorTapsPerPhase, poorPhases, poorAttenuation
	case TierGreat:
		taps, phases, att = greatTapsPerPhase, greatPhases, greatAttenuation
	default:
		taps, phases, att = goodTapsPerPhase, goodPhases, goodAttenuation
	}

	// Downsampling must cut at the target Nyquist to anti-alias;
	// upsampling cuts at the source Nyquist to suppress images.
	cutoff := nyquistFraction * cutoffScale
	if ratio < 1.0 {
		cutoff *= ratio
	}

	return Kernel{
		TapsPerPhase: taps,
		Phases:       phases,
		TotalTaps:    taps * phases,
		Attenuation:  att,
		Cutoff:       cutoff,
	}
}

// Identity returns the degenerate single-tap kernel used for the
// unity-ratio pass-through path. Its group delay is zero.
func Identity() Kernel {
	return Kernel{
		TapsPerPhase: 1,
		Phases:       1,
		TotalTaps:    1,
		Attenuation:  0,
		Cutoff:       nyquistFraction,
	}
}

// GroupDelayFrames is the kernel group delay in source frames.
func (k Kernel) GroupDelayFrames() float64 {
	return float64(k.TotalTaps-1) / 2.0 / float64(k.Phases)
}

// PlaneLen is the length of each coefficient plane (A, B, C, D).
func (k Kernel) PlaneLen() int {
	return k.Phases * k.TapsPerPhase
}

// Prototype designs the Kaiser-windowed sinc prototype at the
// phase-oversampled rate, normalized so the prototype DC gain equals the
// phase count (each branch then has DC gain ≈ 1).
//
// This allocates; it runs at construction time only.
func (k Kernel) Prototype() []float64 {
	if k.TotalTaps == 1 {
		return []float64{1.0}
	}

	beta := mathutil.KaiserBeta(k.Attenuation)
	i0Beta := mathutil.BesselI0(beta)

	proto := make([]float64, k.TotalTaps)
	center := float64(k.TotalTaps-1) / 2.0
	alpha := center
	phases := float64(k.Phases)

	for n := range k.TotalTaps {
		// Tap position in source-frame units
		x := (float64(n) - center) / phases

		var sinc float64
		if math.Abs(x) < sincZeroThreshold {
			sinc = 2.0 * k.Cutoff
		} else {
			arg := 2.0 * math.Pi * k.Cutoff * x
			sinc = math.Sin(arg) / (math.Pi * x)
		}

		// Kaiser window evaluated over the full prototype length
		w := (float64(n) - alpha) / alpha
		window := mathutil.BesselI0(beta*math.Sqrt(1.0-w*w)) / i0Beta

		proto[n] = sinc * window
	}

	// Normalize DC gain to the phase count so each branch sums to ~1
	sum := f64.Sum(proto)
	if math.Abs(sum) > sincZeroThreshold {
		f64.Scale(proto, proto, phases/sum)
	}

	return proto
}

// WritePlanes designs the kernel and writes the four sub-phase
// interpolation planes into the provided storage, each of length
// PlaneLen. Plane layout is row-per-phase with taps stored in reversed
// order, so the processing loop can dot a history window directly:
//
//	value(tap, x) = a + x·(b + x·(c + x·d)),  x ∈ [0, 1)
//
// The polynomial is fitted Catmull-Rom style through the coefficients of
// four adjacent phases, which keeps the effective response smooth between
// the quantized phase positions.
func (k Kernel) WritePlanes(a, b, c, d []float32) {
	proto := k.Prototype()
	taps := k.TapsPerPhase
	phases := k.Phases

	getCoeff := func(phase, tap int) float64 {
		wrapped := phase % phases
		if wrapped < 0 {
			wrapped += phases
		}
		idx := tap*phases + wrapped
		if idx < 0 || idx >= len(proto) {
			return 0.0
		}
		return proto[idx]
	}

	for phase := range phases {
		row := phase * taps
		for tap := range taps {
			f0 := getCoeff(phase, tap)
			f1 := getCoeff(phase+1, tap)
			fm1 := getCoeff(phase-1, tap)
			f2 := getCoeff(phase+2, tap)

			cc := interpCenterCoeff*(f1+fm1) - f0
			dd := (f2 - f1 + fm1 - f0 - interpCMultiplier*cc) / interpDDivisor
			bb := f1 - f0 - dd - cc

			// Reversed tap order for the convolution direction
			rev := row + taps - 1 - tap
			a[rev] = float32(f0)
			b[rev] = float32(bb)
			c[rev] = float32(cc)
			d[rev] = float32(dd)
		}
	}
}
