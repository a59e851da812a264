package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	converter "github.com/tphakala/go-audio-converter"
)

func TestOpenWAVInput_FileNotFound(t *testing.T) {
	_, err := openWAVInput("/nonexistent/file.wav", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input file")
}

func TestOpenWAVInput_InvalidWAV(t *testing.T) {
	tmpDir := t.TempDir()
	invalidFile := filepath.Join(tmpDir, "invalid.wav")
	err := os.WriteFile(invalidFile, []byte("not a wav file"), 0o644)
	require.NoError(t, err)

	_, err = openWAVInput(invalidFile, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid WAV file")
}

func TestMaxSampleValue(t *testing.T) {
	assert.Equal(t, maxInt16, maxSampleValue(16))
	assert.Equal(t, maxInt24, maxSampleValue(24))
	assert.Equal(t, maxInt32, maxSampleValue(32))
	// Unusual depths fall back to 16-bit scaling.
	assert.Equal(t, maxInt16, maxSampleValue(8))
}

func TestWriteFramesRoundTrip(t *testing.T) {
	const (
		channels = 2
		frames   = 64
	)

	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "out.wav")
	out, err := createWAVOutput(outPath, 48000, 16, channels)
	require.NoError(t, err)

	buffers := make([]converter.Buffer, channels)
	for ch := range buffers {
		buffers[ch].Samples = make([]float32, frames)
		for f := range frames {
			buffers[ch].Samples[f] = float32(f) / float32(frames)
			if ch == 1 {
				buffers[ch].Samples[f] = -buffers[ch].Samples[f]
			}
		}
	}
	require.NoError(t, out.WriteFrames(buffers, frames))
	require.NoError(t, out.Close())

	in, err := openWAVInput(outPath, false)
	require.NoError(t, err)
	defer func() { _ = in.Close() }()

	assert.Equal(t, 48000, in.rate)
	assert.Equal(t, channels, in.channels)
	assert.Equal(t, 16, in.bitDepth)

	bufs := newChunkBuffers(channels, frames)
	got, _ := in.ReadFrames(bufs)
	require.Equal(t, frames, got)
	for ch := range channels {
		for f := range frames {
			want := buffers[ch].Samples[f]
			assert.InDelta(t, want, bufs.planar[ch].Samples[f], 1.0/maxInt16,
				"channel %d frame %d", ch, f)
		}
	}
}

func TestWriteFramesClampsOverrange(t *testing.T) {
	tmpDir := t.TempDir()
	out, err := createWAVOutput(filepath.Join(tmpDir, "clip.wav"), 48000, 16, 1)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()

	buffers := []converter.Buffer{{Samples: []float32{2.0, -2.0}}}
	require.NoError(t, out.WriteFrames(buffers, 2))
	assert.Equal(t, int(maxInt16), out.buf.Data[0])
	assert.Equal(t, -int(maxInt16), out.buf.Data[1])
}
