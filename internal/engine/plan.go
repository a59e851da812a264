// Package engine implements the polyphase resampling core. It operates
// entirely inside caller-provided memory: planning is pure arithmetic over
// the conversion parameters, and construction places every bulk buffer
// (coefficient planes and per-channel history) into a single byte region
// supplied by the caller. After construction the hot path performs no
// allocation and takes no locks.
package engine

import (
	"github.com/tphakala/go-audio-converter/internal/filter"
)

// MemoryAlignment is the byte alignment required for both converter memory
// and work memory. 64 bytes covers a full cache line and every vector width
// the dot-product kernels may use.
const MemoryAlignment = 64

const (
	floatBytes = 4

	// historySlack rounds each channel's history up so adjacent channels
	// start on independent 64-byte lines.
	historyRound = 16
)

// Direction selects which side of the converter drives dataflow.
type Direction int

const (
	// DirectionPull means Process fills caller buffers with converted
	// frames, invoking the callback to obtain source frames on demand.
	DirectionPull Direction = iota
	// DirectionPush means Process consumes caller buffers of source
	// frames, invoking the callback to hand off converted frames.
	DirectionPush
)

// Callback moves frames across the converter boundary. In pull mode it must
// write frames source frames into chans; in push mode it receives frames
// converted frames in chans. The slices are only valid for the duration of
// the call, and frames never exceeds the configured maximum frame count.
type Callback func(latency float64, chans [][]float32, frames int)

// Params carries the validated conversion parameters. Validation happens in
// the public package; the engine trusts what it is given.
type Params struct {
	SourceRate    int
	TargetRate    int
	Channels      int
	MaxFrameCount int
	Direction     Direction
	Tier          filter.Tier
}

// Layout describes a memory region the caller must provide: Size bytes
// aligned to Alignment.
type Layout struct {
	Alignment int
	Size      int
}

// resolveKernel picks the filter geometry for the rate pair. Equal rates
// collapse to the single-tap identity kernel so the same machinery produces
// an exact copy.
func resolveKernel(p Params) filter.Kernel {
	if p.SourceRate == p.TargetRate {
		return filter.Identity()
	}
	return filter.Resolve(p.Tier, float64(p.TargetRate)/float64(p.SourceRate))
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// stepCeil is the worst-case whole source frames consumed per output frame.
func stepCeil(p Params) int {
	g := gcd(p.SourceRate, p.TargetRate)
	num := p.SourceRate / g
	den := p.TargetRate / g
	return (num + den - 1) / den
}

// historyCapacity sizes one channel's history ring so that whenever the
// ring is full, at least one full output chunk can be rendered. The bound
// follows from the position accumulator: after a shift the pending skip is
// at most stepCeil frames, so MaxFrameCount outputs never need more than
// MaxFrameCount*stepCeil+taps resident frames.
func historyCapacity(p Params, k filter.Kernel) int {
	raw := p.MaxFrameCount*stepCeil(p) + k.TapsPerPhase + 1
	return (raw + historyRound - 1) / historyRound * historyRound
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// PlanConverter reports the memory region required to construct a converter
// with the given parameters. It is pure and may be called concurrently.
func PlanConverter(p Params) Layout {
	k := resolveKernel(p)
	coeffFloats := 4 * k.PlaneLen()
	histFloats := p.Channels * historyCapacity(p, k)
	return Layout{
		Alignment: MemoryAlignment,
		Size:      alignUp((coeffFloats+histFloats)*floatBytes, MemoryAlignment),
	}
}

// PlanWork reports the per-call scratch region used to stage callback
// frames. Every Process call may use a distinct region, which is what makes
// one converter safe to drive from changing goroutines.
func PlanWork(p Params) Layout {
	return Layout{
		Alignment: MemoryAlignment,
		Size:      alignUp(p.Channels*p.MaxFrameCount*floatBytes, MemoryAlignment),
	}
}
