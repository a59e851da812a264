package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	converter "github.com/tphakala/go-audio-converter"
)

const (
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	wavAudioFormatPCM = 1

	progressInterval = 10 // percent between progress lines
	percentScale     = 100
)

func maxSampleValue(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// wavInputInfo holds the open decoder and validated format information.
type wavInputInfo struct {
	file        *os.File
	decoder     *wav.Decoder
	rate        int
	channels    int
	bitDepth    int
	totalFrames int64
	invMaxVal   float32
}

// openWAVInput opens and validates a WAV file.
func openWAVInput(path string, verbose bool) (*wavInputInfo, error) {
	inputFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	decoder := wav.NewDecoder(inputFile)
	if !decoder.IsValidFile() {
		_ = inputFile.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if verbose {
		log.Printf("Input format: %d Hz, %d channels, %d-bit",
			format.SampleRate, format.NumChannels, bitDepth)
	}

	duration, err := decoder.Duration()
	if err != nil {
		duration = 0
	}

	return &wavInputInfo{
		file:        inputFile,
		decoder:     decoder,
		rate:        format.SampleRate,
		channels:    format.NumChannels,
		bitDepth:    bitDepth,
		totalFrames: int64(duration.Seconds() * float64(format.SampleRate)),
		invMaxVal:   float32(1.0 / maxSampleValue(bitDepth)),
	}, nil
}

// ReadFrames decodes up to one chunk of interleaved PCM and deinterleaves
// it into the planar float32 buffers. Returns the number of whole frames.
func (w *wavInputInfo) ReadFrames(bufs *chunkBuffers) (int, error) {
	n, err := w.decoder.PCMBuffer(bufs.interleaved)
	frames := n / w.channels
	for ch := range w.channels {
		dst := bufs.planar[ch].Samples
		for f := range frames {
			dst[f] = float32(bufs.interleaved.Data[f*w.channels+ch]) * w.invMaxVal
		}
	}
	return frames, err
}

// Close closes the input file.
func (w *wavInputInfo) Close() error {
	return w.file.Close()
}

// chunkBuffers holds the interleaved decode buffer and the planar views
// handed to the converter, preallocated once per run.
type chunkBuffers struct {
	interleaved *audio.IntBuffer
	planar      []converter.Buffer
}

func newChunkBuffers(channels, frames int) *chunkBuffers {
	planar := make([]converter.Buffer, channels)
	for ch := range planar {
		planar[ch].Samples = make([]float32, frames)
	}
	return &chunkBuffers{
		interleaved: &audio.IntBuffer{
			Data:           make([]int, frames*channels),
			Format:         &audio.Format{NumChannels: channels},
			SourceBitDepth: 0,
		},
		planar: planar,
	}
}

// wavOutputWriter encodes planar float32 frames back to interleaved PCM.
type wavOutputWriter struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	maxVal  float64
	closed  bool
}

// createWAVOutput creates the output file and encoder.
func createWAVOutput(path string, sampleRate, bitDepth, channels int) (*wavOutputWriter, error) {
	outputFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	encoder := wav.NewEncoder(outputFile, sampleRate, bitDepth, channels, wavAudioFormatPCM)
	return &wavOutputWriter{
		file:    outputFile,
		encoder: encoder,
		buf: &audio.IntBuffer{
			Data: make([]int, 0),
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
		maxVal: maxSampleValue(bitDepth),
	}, nil
}

// WriteFrames interleaves, quantizes, and encodes frameCount frames.
func (w *wavOutputWriter) WriteFrames(buffers []converter.Buffer, frameCount int) error {
	channels := len(buffers)
	need := frameCount * channels
	if cap(w.buf.Data) < need {
		w.buf.Data = make([]int, need)
	}
	w.buf.Data = w.buf.Data[:need]

	for ch := range buffers {
		src := buffers[ch].Samples
		for f := range frameCount {
			s := float64(src[f]) * w.maxVal
			if s > w.maxVal {
				s = w.maxVal
			} else if s < -w.maxVal {
				s = -w.maxVal
			}
			w.buf.Data[f*channels+ch] = int(s)
		}
	}
	return w.encoder.Write(w.buf)
}

// Close finalizes the WAV header and closes the file.
func (w *wavOutputWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// progressTracker prints decode progress at fixed percentage intervals.
type progressTracker struct {
	totalFrames  int64
	lastProgress int
	verbose      bool
}

func newProgressTracker(totalFrames int64, verbose bool) *progressTracker {
	return &progressTracker{totalFrames: totalFrames, verbose: verbose}
}

func (p *progressTracker) reportIfNeeded(currentFrames int64) {
	if !p.verbose || p.totalFrames == 0 {
		return
	}
	progress := int(float64(currentFrames) / float64(p.totalFrames) * percentScale)
	if progress >= p.lastProgress+progressInterval {
		log.Printf("Progress: %d%%", progress)
		p.lastProgress = progress
	}
}
