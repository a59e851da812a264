package engine

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-converter/internal/filter"
	"github.com/tphakala/go-audio-converter/internal/testutil"
)

const (
	testSourceRate = 44100
	testTargetRate = 48000
	testChannels   = 2
	testMaxFrames  = 256
)

func testParams(dir Direction) Params {
	return Params{
		SourceRate:    testSourceRate,
		TargetRate:    testTargetRate,
		Channels:      testChannels,
		MaxFrameCount: testMaxFrames,
		Direction:     dir,
		Tier:          filter.TierGood,
	}
}

// alignedBytes over-allocates and reslices so the base address satisfies
// the planned alignment regardless of where the allocator lands.
func alignedBytes(l Layout) []byte {
	buf := make([]byte, l.Size+l.Alignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(l.Alignment)); rem != 0 {
		off = l.Alignment - rem
	}
	return buf[off : off+l.Size]
}

// rampProducer yields the deterministic source stream frame+100*channel,
// tracking how many frames it has handed out.
type rampProducer struct {
	offset int
	calls  int
	maxReq int
}

func (p *rampProducer) callback(_ float64, chans [][]float32, frames int) {
	p.calls++
	if frames > p.maxReq {
		p.maxReq = frames
	}
	for ch, dst := range chans {
		for f := range frames {
			dst[f] = float32(p.offset+f) + 100*float32(ch)
		}
	}
	p.offset += frames
}

func newTestConverter(t *testing.T, p Params, cb Callback) (*Converter, []byte) {
	t.Helper()
	mem := alignedBytes(PlanConverter(p))
	c, err := Construct(mem, p, cb)
	require.NoError(t, err)
	return c, alignedBytes(PlanWork(p))
}

func pullFrames(c *Converter, work []byte, frames int) [][]float32 {
	out := make([][]float32, c.params.Channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	c.Process(work, out, frames)
	return out
}

func TestPlanConverterLayout(t *testing.T) {
	p := testParams(DirectionPull)
	l := PlanConverter(p)

	assert.Equal(t, MemoryAlignment, l.Alignment)
	assert.Zero(t, l.Size%MemoryAlignment)

	k := filter.Resolve(p.Tier, float64(p.TargetRate)/float64(p.SourceRate))
	minBytes := (4*k.PlaneLen() + p.Channels*(k.TapsPerPhase+p.MaxFrameCount)) * 4
	assert.GreaterOrEqual(t, l.Size, minBytes)
}

func TestPlanWorkLayout(t *testing.T) {
	l := PlanWork(testParams(DirectionPull))
	assert.Equal(t, MemoryAlignment, l.Alignment)
	assert.GreaterOrEqual(t, l.Size, testChannels*testMaxFrames*4)
	assert.Zero(t, l.Size%MemoryAlignment)
}

func TestConstructRejectsBadMemory(t *testing.T) {
	p := testParams(DirectionPull)
	cb := func(float64, [][]float32, int) {}

	short := alignedBytes(PlanConverter(p))
	_, err := Construct(short[:16], p, cb)
	assert.ErrorIs(t, err, ErrBadMemory)

	misaligned := alignedBytes(Layout{Alignment: MemoryAlignment, Size: PlanConverter(p).Size + 4})
	_, err = Construct(misaligned[4:], p, cb)
	assert.ErrorIs(t, err, ErrBadMemory)
}

// Converting one stream through arbitrarily sliced Process calls must yield
// the exact frames a single call produces.
func TestPullSliceInvariance(t *testing.T) {
	slices := []int{13, 17, 4, 7, 5, 4, 21, 29, 300}
	total := 0
	for _, n := range slices {
		total += n
	}

	p := testParams(DirectionPull)

	whole := &rampProducer{}
	cWhole, workWhole := newTestConverter(t, p, whole.callback)
	want := pullFrames(cWhole, workWhole, total)

	sliced := &rampProducer{}
	cSliced, workSliced := newTestConverter(t, p, sliced.callback)
	got := make([][]float32, testChannels)
	for ch := range got {
		got[ch] = make([]float32, total)
	}
	views := make([][]float32, testChannels)
	done := 0
	for _, n := range slices {
		for ch := range views {
			views[ch] = got[ch][done : done+n]
		}
		cSliced.Process(workSliced, views, n)
		done += n
	}

	for ch := range want {
		assert.Equal(t, want[ch], got[ch], "channel %d diverged", ch)
	}
	assert.LessOrEqual(t, whole.maxReq, testMaxFrames)
	assert.LessOrEqual(t, sliced.maxReq, testMaxFrames)
}

// Push and pull are the same filter driven from opposite ends, so the same
// source stream must come out identical.
func TestPushMatchesPull(t *testing.T) {
	const outFrames = 1000

	pullP := testParams(DirectionPull)
	producer := &rampProducer{}
	cPull, workPull := newTestConverter(t, pullP, producer.callback)
	want := pullFrames(cPull, workPull, outFrames)

	// Feed the push converter the exact frames the pull run consumed.
	srcFrames := producer.offset
	src := make([][]float32, testChannels)
	for ch := range src {
		src[ch] = make([]float32, srcFrames)
	}
	testutil.Ramp(src, 0)

	got := make([][]float32, testChannels)
	for ch := range got {
		got[ch] = make([]float32, 0, outFrames+testMaxFrames)
	}
	consume := func(_ float64, chans [][]float32, frames int) {
		for ch := range chans {
			got[ch] = append(got[ch], chans[ch][:frames]...)
		}
	}

	pushP := testParams(DirectionPush)
	cPush, workPush := newTestConverter(t, pushP, consume)
	cPush.Process(workPush, src, srcFrames)

	for ch := range want {
		require.GreaterOrEqual(t, len(got[ch]), outFrames)
		assert.Equal(t, want[ch], got[ch][:outFrames], "channel %d diverged", ch)
	}
}

// Equal rates collapse to the identity kernel and must copy bit for bit
// with zero latency.
func TestUnityRatioCopiesExactly(t *testing.T) {
	const frames = 777

	p := testParams(DirectionPull)
	p.TargetRate = p.SourceRate

	producer := &rampProducer{}
	c, work := newTestConverter(t, p, producer.callback)
	assert.Zero(t, c.Latency())

	out := pullFrames(c, work, frames)
	for ch := range out {
		for f := range frames {
			require.Equal(t, float32(f)+100*float32(ch), out[ch][f],
				"channel %d frame %d", ch, f)
		}
	}
	assert.Equal(t, frames, producer.offset)
}

// The position accumulator is renormalized after every shift; over a long
// run it must stay bounded or the exact-phase guarantee is gone.
func TestAccumulatorStaysBounded(t *testing.T) {
	cases := []struct {
		name     string
		src, dst int
	}{
		{"upsample", 44100, 48000},
		{"downsample", 48000, 44100},
		{"heavy downsample", 192000, 8000},
		{"heavy upsample", 8000, 192000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams(DirectionPull)
			p.SourceRate = tc.src
			p.TargetRate = tc.dst
			producer := &rampProducer{}
			c, work := newTestConverter(t, p, producer.callback)

			// The shift renormalizes at to its remainder mod den except
			// when decimation outruns the resident history, where up to
			// one step of pending skip may carry over.
			bound := c.den
			if stepCeil(p) > c.taps {
				bound = int64(stepCeil(p)+1) * c.den
			}
			for range 50 {
				pullFrames(c, work, 4096)
				require.Less(t, c.at, bound)
				require.GreaterOrEqual(t, c.at, int64(0))
			}
		})
	}
}

// Input consumption must track the rate ratio to within filter warmup.
func TestInputConsumptionMatchesRatio(t *testing.T) {
	const outFrames = 48000

	p := testParams(DirectionPull)
	producer := &rampProducer{}
	c, work := newTestConverter(t, p, producer.callback)
	pullFrames(c, work, outFrames)

	ideal := float64(outFrames) * float64(testSourceRate) / float64(testTargetRate)
	slack := float64(c.taps + stepCeil(p) + 1)
	assert.InDelta(t, ideal, float64(producer.offset), slack)
}

func TestLatencyMatchesGroupDelay(t *testing.T) {
	p := testParams(DirectionPull)
	c, _ := newTestConverter(t, p, (&rampProducer{}).callback)

	k := filter.Resolve(p.Tier, float64(p.TargetRate)/float64(p.SourceRate))
	want := k.GroupDelayFrames() / float64(p.SourceRate)
	assert.Equal(t, want, c.Latency())
	assert.Positive(t, c.Latency())
}

func BenchmarkPullGood(b *testing.B) {
	p := testParams(DirectionPull)
	producer := &rampProducer{}
	mem := alignedBytes(PlanConverter(p))
	c, err := Construct(mem, p, producer.callback)
	if err != nil {
		b.Fatal(err)
	}
	work := alignedBytes(PlanWork(p))
	out := make([][]float32, testChannels)
	for ch := range out {
		out[ch] = make([]float32, testMaxFrames)
	}

	b.ReportAllocs()
	for b.Loop() {
		c.Process(work, out, testMaxFrames)
	}
}
