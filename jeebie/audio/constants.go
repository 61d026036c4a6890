package audio

// Timing constants
// Reference: https://gbdev.io/pandocs/Audio_details.html
const (
	// cyclesPerStep is the number of CPU cycles per frame sequencer tick.
	// The frame sequencer runs at 512 Hz: 4194304 Hz / 512 Hz = 8192 t-cycles
	cyclesPerStep = 8192
)

// Channel constants
const (
	// waveRAMSize is the size of wave pattern RAM in bytes (16 bytes = 32 nibbles)
	waveRAMSize = 16
)

// DefaultBufferFrames is the number of stereo frames StepUntilNextAudioBuffer
// waits to accumulate before handing samples back to the host. Game Boy generates
// audio at 4194304/8192 = 512Hz steps, so at 44.1kHz this is ~23ms of audio, a
// reasonable tradeoff between latency and syscall/callback overhead for a host sink.
const DefaultBufferFrames = 1024
