package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func TestExportAudioWAV_RoundTrip(t *testing.T) {
	const sampleRate = 44100
	const n = 512

	left := make([]float32, n)
	right := make([]float32, n)
	for i := range left {
		if (i/8)%2 == 0 {
			left[i], right[i] = 0.5, -0.5
		} else {
			left[i], right[i] = -0.5, 0.5
		}
	}

	path := filepath.Join(t.TempDir(), "export.wav")
	require.NoError(t, ExportAudioWAV(path, left, right, sampleRate))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	// Stereo, 16-bit: one int per channel per frame.
	require.Equal(t, n*2, len(buf.Data))

	maxAmp := 0
	for _, sample := range buf.Data {
		if sample > maxAmp {
			maxAmp = sample
		}
		if -sample > maxAmp {
			maxAmp = -sample
		}
	}
	require.InDelta(t, 32767*0.5, maxAmp, 100)
}

func TestExportAudioWAV_MismatchedChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.wav")
	err := ExportAudioWAV(path, make([]float32, 4), make([]float32, 3), 44100)
	require.Error(t, err)
}
