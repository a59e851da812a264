package converter

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-audio-converter/internal/engine"
	"github.com/tphakala/go-audio-converter/internal/filter"
)

// SamplingRate identifies one of the supported sampling rates. The constant
// values are the rates in hertz, so arithmetic on them is meaningful, but
// only the enumerated values are accepted by configuration validation.
type SamplingRate int

const (
	Rate8000   SamplingRate = 8000
	Rate11025  SamplingRate = 11025
	Rate16000  SamplingRate = 16000
	Rate22050  SamplingRate = 22050
	Rate24000  SamplingRate = 24000
	Rate32000  SamplingRate = 32000
	Rate44100  SamplingRate = 44100
	Rate48000  SamplingRate = 48000
	Rate88200  SamplingRate = 88200
	Rate96000  SamplingRate = 96000
	Rate176400 SamplingRate = 176400
	Rate192000 SamplingRate = 192000
)

// Rates lists every supported sampling rate in ascending order.
var Rates = []SamplingRate{
	Rate8000, Rate11025, Rate16000, Rate22050, Rate24000, Rate32000,
	Rate44100, Rate48000, Rate88200, Rate96000, Rate176400, Rate192000,
}

// Valid reports whether r is one of the enumerated rates.
func (r SamplingRate) Valid() bool {
	for _, v := range Rates {
		if r == v {
			return true
		}
	}
	return false
}

// Hz returns the rate in hertz.
func (r SamplingRate) Hz() int { return int(r) }

func (r SamplingRate) String() string {
	return fmt.Sprintf("%d Hz", int(r))
}

// Quality trades conversion fidelity against CPU and memory. Higher
// qualities use longer filters: more stopband attenuation, more latency.
type Quality int

const (
	QualityPoor Quality = iota
	QualityGood
	QualityGreat
)

func (q Quality) String() string {
	switch q {
	case QualityPoor:
		return "poor"
	case QualityGood:
		return "good"
	case QualityGreat:
		return "great"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

func (q Quality) tier() filter.Tier {
	switch q {
	case QualityPoor:
		return filter.TierPoor
	case QualityGreat:
		return filter.TierGreat
	default:
		return filter.TierGood
	}
}

// ParseQuality maps the textual quality names to the enumeration.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "poor":
		return QualityPoor, nil
	case "good":
		return QualityGood, nil
	case "great":
		return QualityGreat, nil
	default:
		return 0, fmt.Errorf("%w: unknown quality %q", ErrInvalidConfig, s)
	}
}

// Direction selects which side of the converter drives dataflow.
type Direction int

const (
	// DirectionPull means Process fills the caller's buffers with
	// converted frames, and the callback supplies source frames.
	DirectionPull Direction = iota
	// DirectionPush means Process reads source frames from the caller's
	// buffers, and the callback receives converted frames.
	DirectionPush
)

func (d Direction) String() string {
	switch d {
	case DirectionPull:
		return "pull"
	case DirectionPush:
		return "push"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) engineDirection() engine.Direction {
	if d == DirectionPush {
		return engine.DirectionPush
	}
	return engine.DirectionPull
}

// Buffer holds one channel of non-interleaved samples.
type Buffer struct {
	Samples []float32
}

// DataFunc moves frames across the converter boundary during Process. In
// pull mode the callback must fill buffers with frameCount source frames;
// in push mode it receives frameCount converted frames. frameCount never
// exceeds the configured MaxFrameCount, and the buffers are only valid for
// the duration of the call. latency is the converter's constant group
// delay, passed on every invocation for convenience.
type DataFunc func(latency float64, buffers []Buffer, frameCount int)

// Config fixes a conversion for the lifetime of a converter.
type Config struct {
	SourceRate    SamplingRate
	TargetRate    SamplingRate
	Channels      int
	MaxFrameCount int
	Direction     Direction
	Quality       Quality
}

// Configuration errors. Construction and planning wrap these so callers can
// classify failures with errors.Is.
var (
	ErrInvalidConfig   = errors.New("invalid converter configuration")
	ErrUnsupportedRate = errors.New("unsupported sampling rate")
)

// ErrBadMemory reports a memory region that does not satisfy the planned
// size or alignment.
var ErrBadMemory = engine.ErrBadMemory

// Validate checks every field of the configuration.
func (cfg Config) Validate() error {
	if !cfg.SourceRate.Valid() {
		return fmt.Errorf("%w: source rate %d", ErrUnsupportedRate, cfg.SourceRate)
	}
	if !cfg.TargetRate.Valid() {
		return fmt.Errorf("%w: target rate %d", ErrUnsupportedRate, cfg.TargetRate)
	}
	if cfg.Channels < 1 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, cfg.Channels)
	}
	if cfg.MaxFrameCount < 1 {
		return fmt.Errorf("%w: max frame count %d", ErrInvalidConfig, cfg.MaxFrameCount)
	}
	if cfg.Direction != DirectionPull && cfg.Direction != DirectionPush {
		return fmt.Errorf("%w: direction %d", ErrInvalidConfig, cfg.Direction)
	}
	if cfg.Quality < QualityPoor || cfg.Quality > QualityGreat {
		return fmt.Errorf("%w: quality %d", ErrInvalidConfig, cfg.Quality)
	}
	return nil
}

func (cfg Config) params() engine.Params {
	return engine.Params{
		SourceRate:    cfg.SourceRate.Hz(),
		TargetRate:    cfg.TargetRate.Hz(),
		Channels:      cfg.Channels,
		MaxFrameCount: cfg.MaxFrameCount,
		Direction:     cfg.Direction.engineDirection(),
		Tier:          cfg.Quality.tier(),
	}
}

// PlanConverter reports the memory region a converter with this
// configuration requires. It allocates nothing and may be called from any
// goroutine, including real-time ones.
func PlanConverter(cfg Config) (Layout, error) {
	if err := cfg.Validate(); err != nil {
		return Layout{}, err
	}
	l := engine.PlanConverter(cfg.params())
	return Layout{Alignment: l.Alignment, Size: l.Size}, nil
}

// Converter converts a stream of audio frames between two sampling rates.
// All bulk state lives in the memory region passed to Construct; the
// Converter value itself is a small handle. A Converter is not safe for
// concurrent Process calls, but distinct converters never share state and
// a single converter may move between goroutines across calls.
type Converter struct {
	cfg Config
	eng *engine.Converter

	// Reused on every callback and Process call so the hot path never
	// touches the allocator.
	cbBuffers []Buffer
	views     [][]float32
}

// Construct builds a converter inside memory, which must satisfy the
// layout reported by PlanConverter for the same configuration. The callback
// is required in both directions: it produces source frames in pull mode
// and consumes converted frames in push mode. Construction performs the
// filter design work; it is not a real-time operation.
func Construct(memory []byte, cfg Config, callback DataFunc) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if callback == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrInvalidConfig)
	}

	c := &Converter{
		cfg:       cfg,
		cbBuffers: make([]Buffer, cfg.Channels),
		views:     make([][]float32, cfg.Channels),
	}
	adapter := func(latency float64, chans [][]float32, frames int) {
		for i := range chans {
			c.cbBuffers[i].Samples = chans[i]
		}
		callback(latency, c.cbBuffers, frames)
	}

	eng, err := engine.Construct(memory, cfg.params(), adapter)
	if err != nil {
		return nil, err
	}
	c.eng = eng
	return c, nil
}

// PlanWork reports the scratch region each Process call requires. Distinct
// concurrent Process calls on distinct converters may each bring their own
// region, or a single region can be reused across sequential calls.
func (c *Converter) PlanWork() Layout {
	l := engine.PlanWork(c.cfg.params())
	return Layout{Alignment: l.Alignment, Size: l.Size}
}

// Process converts frameCount frames. In pull mode it fills buffers with
// converted frames; in push mode it reads source frames from buffers.
// buffers must hold one Buffer per channel with at least frameCount
// samples each, and work must satisfy PlanWork. Process allocates nothing
// and takes no locks, whatever frameCount is: requests larger than
// MaxFrameCount are handled internally in chunks.
func (c *Converter) Process(work []byte, buffers []Buffer, frameCount int) {
	for i := range buffers {
		c.views[i] = buffers[i].Samples
	}
	c.eng.Process(work, c.views, frameCount)
}

// Latency reports the conversion group delay in seconds of source time. It
// is fixed at construction; unity-ratio converters report zero.
func (c *Converter) Latency() float64 { return c.eng.Latency() }

// Config returns the configuration the converter was constructed with.
func (c *Converter) Config() Config { return c.cfg }
