package engine

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/tphakala/simd/f32"

	"github.com/tphakala/go-audio-converter/internal/filter"
)

// ErrBadMemory reports a converter memory region that does not satisfy the
// planned size or alignment.
var ErrBadMemory = errors.New("bad converter memory")

// Converter is the resampling state. The struct itself is a small handle on
// the Go heap; every bulk buffer it references lives inside the caller
// memory passed to Construct. Raw memory never holds Go pointers, so the
// garbage collector stays out of the picture.
type Converter struct {
	params  Params
	kernel  filter.Kernel
	latency float64

	// Rational position accumulator. The next output frame sits at source
	// position at/den relative to the start of the history window, and each
	// output advances the position by stepNum/den. Renormalizing at after
	// every shift keeps it bounded, so the phase is exact forever.
	stepNum int64
	den     int64
	at      int64

	taps   int
	phases int64

	// Cubic interpolation planes, one row of taps coefficients per phase,
	// taps stored in reverse so the dot product runs forward over history.
	coeffA []float32
	coeffB []float32
	coeffC []float32
	coeffD []float32

	// Per-channel history, oldest frame first. fill counts resident frames;
	// the first taps-1 of them start as zeros so the filter warms up on
	// silence.
	hist    [][]float32
	histCap int
	fill    int

	callback Callback

	// Preallocated slice headers so Process never allocates. stageFull
	// holds full-capacity views into the work region, stageView the
	// per-chunk truncations handed to the callback.
	stageFull [][]float32
	stageView [][]float32
}

// Construct builds a converter inside memory, which must satisfy the layout
// reported by PlanConverter for the same parameters. The memory is zeroed
// and carved up in place; the caller must keep it alive and untouched for
// the lifetime of the converter.
func Construct(memory []byte, p Params, cb Callback) (*Converter, error) {
	plan := PlanConverter(p)
	if len(memory) < plan.Size {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrBadMemory, len(memory), plan.Size)
	}
	if addr := uintptr(unsafe.Pointer(&memory[0])); addr%uintptr(plan.Alignment) != 0 {
		return nil, fmt.Errorf("%w: base address %#x not %d-byte aligned", ErrBadMemory, addr, plan.Alignment)
	}

	k := resolveKernel(p)
	floats := unsafe.Slice((*float32)(unsafe.Pointer(&memory[0])), plan.Size/floatBytes)
	for i := range floats {
		floats[i] = 0
	}

	planeLen := k.PlaneLen()
	c := &Converter{
		params:  p,
		kernel:  k,
		taps:    k.TapsPerPhase,
		phases:  int64(k.Phases),
		coeffA:  floats[0*planeLen : 1*planeLen],
		coeffB:  floats[1*planeLen : 2*planeLen],
		coeffC:  floats[2*planeLen : 3*planeLen],
		coeffD:  floats[3*planeLen : 4*planeLen],
		histCap: historyCapacity(p, k),
		hist:    make([][]float32, p.Channels),

		callback:  cb,
		stageFull: make([][]float32, p.Channels),
		stageView: make([][]float32, p.Channels),
	}
	k.WritePlanes(c.coeffA, c.coeffB, c.coeffC, c.coeffD)

	histBase := 4 * planeLen
	for ch := range p.Channels {
		start := histBase + ch*c.histCap
		c.hist[ch] = floats[start : start+c.histCap]
	}
	c.fill = c.taps - 1

	g := gcd(p.SourceRate, p.TargetRate)
	c.stepNum = int64(p.SourceRate / g)
	c.den = int64(p.TargetRate / g)
	c.latency = k.GroupDelayFrames() / float64(p.SourceRate)

	return c, nil
}

// Latency reports the filter group delay in seconds of source time. It is
// constant for the lifetime of the converter.
func (c *Converter) Latency() float64 { return c.latency }

// Params returns the parameters the converter was constructed with.
func (c *Converter) Params() Params { return c.params }

// Kernel exposes the resolved filter geometry.
func (c *Converter) Kernel() filter.Kernel { return c.kernel }

// Process converts frameCount frames through the configured direction. In
// pull mode buffers receive converted frames; in push mode buffers supply
// source frames. work must satisfy the layout reported by PlanWork and may
// differ between calls.
func (c *Converter) Process(work []byte, buffers [][]float32, frameCount int) {
	if frameCount <= 0 {
		return
	}
	floats := unsafe.Slice((*float32)(unsafe.Pointer(&work[0])), len(work)/floatBytes)
	maxFrames := c.params.MaxFrameCount
	for ch := range c.stageFull {
		c.stageFull[ch] = floats[ch*maxFrames : (ch+1)*maxFrames]
	}
	if c.params.Direction == DirectionPull {
		c.pull(buffers, frameCount)
	} else {
		c.push(buffers, frameCount)
	}
}

// inputNeeded reports how many more source frames must arrive before outN
// output frames can be rendered.
func (c *Converter) inputNeeded(outN int) int {
	last := c.at + int64(outN-1)*c.stepNum
	needFill := int(last/c.den) + c.taps
	if needFill <= c.fill {
		return 0
	}
	return needFill - c.fill
}

// outputsAvailable reports how many output frames the resident history can
// render right now.
func (c *Converter) outputsAvailable() int {
	limit := int64(c.fill - c.taps)
	if limit < 0 {
		return 0
	}
	maxPos := (limit+1)*c.den - 1
	if c.at > maxPos {
		return 0
	}
	return int((maxPos-c.at)/c.stepNum) + 1
}

// pull renders frames output frames into out, requesting source frames
// through the callback as the history drains. Each loop iteration issues at
// most one callback and renders at most one chunk, so a single pass handles
// both starved starts (callback yields input, zero outputs yet) and dense
// downsampling.
func (c *Converter) pull(out [][]float32, frames int) {
	maxFrames := c.params.MaxFrameCount
	done := 0
	for done < frames {
		desired := min(frames-done, maxFrames)
		if need := c.inputNeeded(desired); need > 0 {
			n := min(need, maxFrames, c.histCap-c.fill)
			c.gather(n)
		}
		if n := min(desired, c.outputsAvailable()); n > 0 {
			c.render(out, done, n)
			done += n
			c.shift()
		}
	}
}

// push feeds frames source frames from in into the history, emitting every
// output chunk that becomes renderable through the callback.
func (c *Converter) push(in [][]float32, frames int) {
	maxFrames := c.params.MaxFrameCount
	fed := 0
	for fed < frames {
		n := min(frames-fed, maxFrames, c.histCap-c.fill)
		if n > 0 {
			for ch, src := range in {
				copy(c.hist[ch][c.fill:c.fill+n], src[fed:fed+n])
			}
			c.fill += n
			fed += n
		}
		c.drain()
	}
}

// gather invokes the callback once for n source frames, staging them in the
// work region before appending to each channel's history.
func (c *Converter) gather(n int) {
	for ch := range c.stageView {
		c.stageView[ch] = c.stageFull[ch][:n]
	}
	c.callback(c.latency, c.stageView, n)
	for ch := range c.hist {
		copy(c.hist[ch][c.fill:c.fill+n], c.stageView[ch])
	}
	c.fill += n
}

// drain renders every currently available output chunk into the work region
// and hands each to the callback.
func (c *Converter) drain() {
	maxFrames := c.params.MaxFrameCount
	for {
		n := min(c.outputsAvailable(), maxFrames)
		if n == 0 {
			return
		}
		for ch := range c.stageView {
			c.stageView[ch] = c.stageFull[ch][:n]
		}
		c.render(c.stageView, 0, n)
		c.callback(c.latency, c.stageView, n)
		c.shift()
	}
}

// render produces n output frames into dst starting at offset, advancing
// the position accumulator. For each output the integer part of the
// position selects the history window, the fractional part splits into a
// coefficient phase and a sub-phase weight for the cubic dot product.
func (c *Converter) render(dst [][]float32, offset, n int) {
	taps := c.taps
	for i := range n {
		div := c.at / c.den
		t := (c.at % c.den) * c.phases
		phase := int(t / c.den)
		x := float32(t%c.den) / float32(c.den)

		row := phase * taps
		a := c.coeffA[row : row+taps]
		b := c.coeffB[row : row+taps]
		cc := c.coeffC[row : row+taps]
		d := c.coeffD[row : row+taps]
		for ch := range c.hist {
			dst[ch][offset+i] = f32.CubicInterpDot(c.hist[ch][div:div+int64(taps)], a, b, cc, d, x)
		}
		c.at += c.stepNum
	}
}

// shift discards history frames the accumulator has moved past and
// renormalizes the position so it stays bounded. Heavy downsampling can
// move the position past frames that have not arrived yet; the clamp leaves
// that remainder pending in at.
func (c *Converter) shift() {
	consumed := int(c.at / c.den)
	if consumed > c.fill {
		consumed = c.fill
	}
	if consumed <= 0 {
		return
	}
	keep := c.fill - consumed
	for ch := range c.hist {
		copy(c.hist[ch][:keep], c.hist[ch][consumed:c.fill])
	}
	c.fill = keep
	c.at -= int64(consumed) * c.den
}
