package debug

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ExportAudioWAV writes a stereo PCM sample stream (as produced by the APU's
// resampler, see audio.APU.Drain) to a 16-bit WAV file, interleaving left
// and right channels. Meant for offline inspection of channel mixing bugs,
// the audio equivalent of SaveFramePNGToDir for frame buffers.
func ExportAudioWAV(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right sample count mismatch: %d vs %d", len(left), len(right))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, sampleRate, 16, 2, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:   make([]int, len(left)*2),
	}
	for i := range left {
		buf.Data[i*2] = int(clampToInt16(left[i]))
		buf.Data[i*2+1] = int(clampToInt16(right[i]))
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}

	return enc.Close()
}

// clampToInt16 converts a [-1, +1] float sample to a 16-bit PCM value,
// clamping out-of-range input instead of wrapping.
func clampToInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int16(sample * 32767)
}
