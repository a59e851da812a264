// Command convert-wav converts WAV audio files between the supported
// sampling rates.
//
// Usage:
//
//	convert-wav -rate 48000 input.wav output.wav
//	convert-wav -rate 16000 -quality great input.wav output.wav
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	converter "github.com/tphakala/go-audio-converter"
)

const (
	// Frames handed to the converter per Process call. Large chunks keep
	// decoder and filter overhead off the per-sample path.
	chunkFrames = 4096

	// Frames the converter may move per callback invocation.
	maxFrameCount = 1024

	defaultRate     = 48000
	minRequiredArgs = 2
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rate := flag.Int("rate", defaultRate, "Target sample rate in Hz (e.g. 16000, 44100, 48000, 96000)")
	quality := flag.String("quality", "good", "Quality preset: poor, good, great")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav output.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSupported rates:")
		for _, r := range converter.Rates {
			fmt.Fprintf(os.Stderr, " %d", r.Hz())
		}
		fmt.Fprintln(os.Stderr)
		return fmt.Errorf("insufficient arguments")
	}
	inputPath := args[0]
	outputPath := args[1]

	q, err := converter.ParseQuality(*quality)
	if err != nil {
		return err
	}
	targetRate := converter.SamplingRate(*rate)
	if !targetRate.Valid() {
		return fmt.Errorf("unsupported target rate %d Hz", *rate)
	}

	start := time.Now()
	stats, err := convertWAV(inputPath, outputPath, targetRate, q, *verbose)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("Converted %s -> %s\n", filepath.Base(inputPath), filepath.Base(outputPath))
	fmt.Printf("  %d Hz -> %d Hz (%d channels, %d-bit, quality %s)\n",
		stats.inputRate, stats.outputRate, stats.channels, stats.bitDepth, q)
	fmt.Printf("  %d frames -> %d frames, latency %.2f ms\n",
		stats.inputFrames, stats.outputFrames, stats.latency*1e3)
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(stats.inputFrames)/float64(stats.inputRate)/elapsed.Seconds())

	return nil
}

type convertStats struct {
	inputRate    int
	outputRate   int
	channels     int
	bitDepth     int
	inputFrames  int64
	outputFrames int64
	latency      float64
}

func convertWAV(inputPath, outputPath string, targetRate converter.SamplingRate, quality converter.Quality, verbose bool) (stats *convertStats, err error) {
	input, err := openWAVInput(inputPath, verbose)
	if err != nil {
		return nil, err
	}
	defer func() { _ = input.Close() }()

	sourceRate := converter.SamplingRate(input.rate)
	if !sourceRate.Valid() {
		return nil, fmt.Errorf("unsupported source rate %d Hz", input.rate)
	}

	output, err := createWAVOutput(outputPath, targetRate.Hz(), input.bitDepth, input.channels)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
	}()

	cfg := converter.Config{
		SourceRate:    sourceRate,
		TargetRate:    targetRate,
		Channels:      input.channels,
		MaxFrameCount: maxFrameCount,
		Direction:     converter.DirectionPush,
		Quality:       quality,
	}
	layout, err := converter.PlanConverter(cfg)
	if err != nil {
		return nil, err
	}
	if verbose {
		log.Printf("Converter memory: %d bytes (%d-byte aligned)", layout.Size, layout.Alignment)
	}

	stats = &convertStats{
		inputRate:  input.rate,
		outputRate: targetRate.Hz(),
		channels:   input.channels,
		bitDepth:   input.bitDepth,
	}

	// Converted frames arrive through the callback and go straight to the
	// encoder. Encoder errors are latched and reported after the loop.
	var writeErr error
	consume := func(_ float64, buffers []converter.Buffer, frameCount int) {
		if writeErr != nil {
			return
		}
		writeErr = output.WriteFrames(buffers, frameCount)
		stats.outputFrames += int64(frameCount)
	}

	conv, err := converter.Construct(converter.AlignedBytes(layout), cfg, consume)
	if err != nil {
		return nil, err
	}
	stats.latency = conv.Latency()
	work := converter.AlignedBytes(conv.PlanWork())

	bufs := newChunkBuffers(input.channels, chunkFrames)
	progress := newProgressTracker(input.totalFrames, verbose)
	for {
		frames, readErr := input.ReadFrames(bufs)
		if frames > 0 {
			conv.Process(work, bufs.planar, frames)
			if writeErr != nil {
				return nil, fmt.Errorf("failed to write output: %w", writeErr)
			}
			stats.inputFrames += int64(frames)
			progress.reportIfNeeded(stats.inputFrames)
		}
		if readErr != nil {
			break
		}
		if frames == 0 {
			break
		}
	}

	return stats, nil
}
