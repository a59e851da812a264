// Package converter converts multi-channel audio between a fixed set of
// sampling rates under hard real-time constraints.
//
// A conversion is planned, constructed, and driven in three steps. Planning
// is pure arithmetic: PlanConverter maps a configuration to the size and
// alignment of the memory the converter will live in. Construction places
// the converter into caller-provided memory and designs the polyphase
// filter. Processing then runs allocation-free and lock-free: every Process
// call works entirely inside the constructed memory plus a small per-call
// scratch region described by PlanWork.
//
// Frames flow through a callback in one of two directions. In pull mode the
// caller asks Process for converted frames and the callback supplies source
// frames on demand. In push mode the caller hands Process source frames and
// the callback receives converted frames. Either way the callback sees at
// most MaxFrameCount frames per invocation, and the converted stream is a
// pure function of the source stream: slicing the same stream into
// different Process call sizes yields bit-identical output.
//
// Basic pull-mode use:
//
//	cfg := converter.Config{
//		SourceRate:    converter.Rate44100,
//		TargetRate:    converter.Rate48000,
//		Channels:      2,
//		MaxFrameCount: 256,
//		Direction:     converter.DirectionPull,
//		Quality:       converter.QualityGood,
//	}
//	layout, err := converter.PlanConverter(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	conv, err := converter.Construct(converter.AlignedBytes(layout), cfg, produce)
//	if err != nil {
//		log.Fatal(err)
//	}
//	work := converter.AlignedBytes(conv.PlanWork())
//	conv.Process(work, buffers, frameCount)
package converter
