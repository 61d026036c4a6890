package jeebie

import (
	"fmt"
	"io/ioutil"
	"log/slog"
	"sync"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/debug"
	"github.com/valerio/go-jeebie/jeebie/input/action"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/timing"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// DebuggerState represents the current debugger mode.
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// Emulator is the root facade described by the core design: a single owning
// container that wires CPU, MMU, GPU and APU together and drives them from
// one cooperative Step loop. There is no concurrency inside the core -
// every call into Step advances the whole machine by one CPU instruction
// (or one interrupt dispatch or idle halted step) before returning control.
type Emulator struct {
	bus *Bus

	renderCallback    func(*video.FrameBuffer)
	processorTestMode bool
	cgbMode           bool
	sampleRate        int
	muted             bool
	header            memory.CartridgeHeader

	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64
	limiter          timing.Limiter

	// Completion-detection harness for test-ROM suites (blargg and similar):
	// stop once maxFrames elapses or the CPU has spun on the same PC for
	// minLoopCount consecutive instructions, the idiom these test ROMs use
	// to signal "done" (a tight self-jump once results are latched).
	maxFrames    uint64
	minLoopCount int
	loopPC       uint16
	loopStreak   int
}

// New creates an emulator with no cartridge loaded. renderCallback, if
// non-nil, is invoked once per completed frame with a borrowed frame buffer
// the callback must copy before returning. processorTestMode is for
// harnesses (e.g. Blargg-style CPU test ROMs) that drive the CPU directly
// against a bare address space without going through LoadROM.
func New(renderCallback func(*video.FrameBuffer), processorTestMode bool) *Emulator {
	e := &Emulator{
		renderCallback:    renderCallback,
		processorTestMode: processorTestMode,
		sampleRate:        44100,
		limiter:           timing.NewNoOpLimiter(),
	}
	e.wire(memory.NewWithCartridge(memory.NewCartridge(), memory.NopEffects{}))
	return e
}

// NewWithFile creates a new emulator instance and loads the ROM at path into
// it, with no battery RAM / RTC persistence.
func NewWithFile(path string) (*Emulator, error) {
	return NewWithFileAndEffects(path, memory.NopEffects{})
}

// NewWithFileAndEffects is NewWithFile with an explicit CartridgeEffects,
// used by callers that want battery RAM / MBC3 RTC persisted across runs
// (see FileCartridgeEffects).
func NewWithFileAndEffects(path string, effects memory.CartridgeEffects) (*Emulator, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	e := &Emulator{sampleRate: 44100, limiter: timing.NewNoOpLimiter()}
	if _, err := e.LoadROM(data, effects); err != nil {
		return nil, err
	}
	return e, nil
}

// SetCGBMode toggles CGB hardware features. Must be called before LoadROM.
func (e *Emulator) SetCGBMode(enabled bool) {
	e.cgbMode = enabled
	if e.bus != nil {
		e.bus.MMU.SetCGBMode(enabled)
	}
}

// SetSampleRate changes the host audio output rate used by
// StepUntilNextAudioBuffer's resampler.
func (e *Emulator) SetSampleRate(hz int) {
	e.sampleRate = hz
	if e.bus != nil {
		e.bus.MMU.APU.SetSampleRate(hz)
	}
}

// SetMuted silences mixed audio output without disabling any individual
// APU channel, useful for headless/CI runs that don't want to emit audio.
func (e *Emulator) SetMuted(muted bool) {
	e.muted = muted
	if e.bus != nil {
		e.bus.MMU.APU.SetMuted(muted)
	}
}

// LoadROM parses the cartridge header from data, builds the matching
// mapper, and wires a fresh CPU/MMU/GPU/APU stack around it. effects
// supplies the persistence callbacks used by battery-backed mappers (MBC3's
// RTC, any mapper's battery RAM); pass memory.NopEffects{} for none.
//
// Returns an error for a buffer too short to hold a header (recoverable).
// An unsupported MBC type is a fatal condition per the core's error model
// and panics from within memory.NewWithCartridge instead of returning here.
func (e *Emulator) LoadROM(data []byte, effects memory.CartridgeEffects) (memory.CartridgeHeader, error) {
	cart, err := memory.NewCartridgeWithData(data)
	if err != nil {
		return memory.CartridgeHeader{}, err
	}
	if effects == nil {
		effects = memory.NopEffects{}
	}

	mmu := memory.NewWithCartridge(cart, effects)
	e.wire(mmu)
	e.header = cart.Header()

	return e.header, nil
}

// wire (re)builds the CPU/GPU/Bus stack around the given MMU, applying any
// configuration (CGB mode, sample rate, render callback) set so far.
func (e *Emulator) wire(mmu *memory.MMU) {
	mmu.SetCGBMode(e.cgbMode)
	if e.sampleRate > 0 {
		mmu.APU.SetSampleRate(e.sampleRate)
	}
	mmu.APU.SetMuted(e.muted)

	c := cpu.New(mmu)
	g := video.NewGpu(mmu)
	g.SetFrameCallback(func(fb *video.FrameBuffer) {
		e.frameCount++
		if e.renderCallback != nil {
			e.renderCallback(fb)
		}
	})

	bus := &Bus{CPU: c, MMU: mmu, GPU: g}
	// A general-purpose HDMA transfer blocks the CPU for a burst of T-cycles
	// outside the normal per-instruction tick path (spec 4.7); this hook
	// keeps the PPU/APU clock advancing through that stall so they don't
	// drift behind the CPU's bus-access-driven clock.
	mmu.SetDMAStallHook(func(cycles int) {
		videoCycles := cycles
		if mmu.DoubleSpeed() {
			videoCycles = cycles / 2
		}
		g.Tick(videoCycles)
		mmu.APU.Tick(videoCycles)
	})

	e.bus = bus
}

// Step executes exactly one CPU instruction (or one HALT tick, or one
// interrupt dispatch) and returns the number of T-states it took.
func (e *Emulator) Step() int {
	cycles := e.bus.TickInstruction()
	e.instructionCount++
	return cycles
}

// StepUntilNextAudioBuffer drives Step until the APU has accumulated a full
// host-rate audio buffer, then hands it back as two normalized [-1, 1]
// stereo channel buffers. The returned slices are only valid until the next
// call; callers that need to hold onto them must copy.
func (e *Emulator) StepUntilNextAudioBuffer() (left, right []float32) {
	for e.bus.MMU.APU.Buffered() < audio.DefaultBufferFrames {
		e.Step()
	}
	return e.bus.MMU.APU.Drain()
}

// HandleKeyPress presses a joypad button, raising the Joypad interrupt on
// the falling edge of the corresponding P1 bit.
func (e *Emulator) HandleKeyPress(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyPress(key)
}

// HandleKeyRelease releases a previously pressed joypad button.
func (e *Emulator) HandleKeyRelease(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyRelease(key)
}

// GetCPU exposes the CPU for tooling (debuggers, disassemblers) that need
// direct read access.
func (e *Emulator) GetCPU() *cpu.CPU {
	return e.bus.CPU
}

// GetMMU exposes the MMU for tooling that needs direct read access.
func (e *Emulator) GetMMU() *memory.MMU {
	return e.bus.MMU
}

// GetCurrentFrame returns the most recently completed frame buffer.
func (e *Emulator) GetCurrentFrame() *video.FrameBuffer {
	return e.bus.GPU.GetFrameBuffer()
}

// RunUntilFrame advances the emulator until one full frame (70224 T-cycles
// worth of PPU activity) has completed, honoring the debugger's pause/step
// controls. Frontends poll this once per host frame tick.
func (e *Emulator) RunUntilFrame() error {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	switch state {
	case DebuggerPaused:
		return nil

	case DebuggerStep:
		e.debuggerMutex.Lock()
		requested := e.stepRequested
		e.stepRequested = false
		e.debuggerMutex.Unlock()
		if requested {
			oldPC := e.bus.CPU.GetPC()
			e.Step()
			e.trackLoop()
			slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.bus.CPU.GetPC()))
			e.SetDebuggerState(DebuggerPaused)
		}
		return nil

	case DebuggerStepFrame:
		e.debuggerMutex.Lock()
		requested := e.frameRequested
		e.frameRequested = false
		e.debuggerMutex.Unlock()
		if requested {
			e.runOneFrame()
			e.SetDebuggerState(DebuggerPaused)
		}
		return nil

	default:
		e.runOneFrame()
		return nil
	}
}

func (e *Emulator) runOneFrame() {
	target := e.frameCount + 1
	for e.frameCount < target {
		e.Step()
		e.trackLoop()
	}
	if e.frameCount%60 == 0 {
		slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.bus.CPU.GetPC()))
	}
}

func (e *Emulator) trackLoop() {
	pc := e.bus.CPU.GetPC()
	if pc == e.loopPC {
		e.loopStreak++
	} else {
		e.loopPC = pc
		e.loopStreak = 1
	}
}

// ConfigureCompletionDetection arms the test-ROM completion harness used by
// RunUntilComplete: run for at most maxFrames frames, stopping early once
// the CPU has spun on one PC for minLoopCount consecutive instructions.
func (e *Emulator) ConfigureCompletionDetection(maxFrames uint64, minLoopCount int) {
	e.maxFrames = maxFrames
	e.minLoopCount = minLoopCount
}

// RunUntilComplete runs until ConfigureCompletionDetection's limits are hit.
func (e *Emulator) RunUntilComplete() {
	minLoop := e.minLoopCount
	if minLoop <= 0 {
		minLoop = 1
	}
	for e.frameCount < e.maxFrames {
		e.Step()
		e.trackLoop()
		if e.loopStreak >= minLoop {
			return
		}
	}
}

// HandleAction routes a frontend input action to the joypad, ignoring
// actions outside the Game Boy hardware input category (debug/emulator
// controls are the frontend's own responsibility).
func (e *Emulator) HandleAction(act action.Action, pressed bool) {
	key, ok := gbButtonToJoypadKey(act)
	if !ok {
		return
	}
	if pressed {
		e.HandleKeyPress(key)
	} else {
		e.HandleKeyRelease(key)
	}
}

func gbButtonToJoypadKey(act action.Action) (memory.JoypadKey, bool) {
	switch act {
	case action.GBButtonA:
		return memory.JoypadA, true
	case action.GBButtonB:
		return memory.JoypadB, true
	case action.GBButtonStart:
		return memory.JoypadStart, true
	case action.GBButtonSelect:
		return memory.JoypadSelect, true
	case action.GBDPadUp:
		return memory.JoypadUp, true
	case action.GBDPadDown:
		return memory.JoypadDown, true
	case action.GBDPadLeft:
		return memory.JoypadLeft, true
	case action.GBDPadRight:
		return memory.JoypadRight, true
	default:
		return 0, false
	}
}

// ExtractDebugData snapshots CPU, memory, OAM and VRAM state for debug
// frontends. Returns nil if no cartridge/bus has been wired yet.
func (e *Emulator) ExtractDebugData() *debug.CompleteDebugData {
	if e.bus == nil {
		return nil
	}

	mem := e.bus.MMU
	st := e.bus.CPU.State()

	start := int(st.PC) - 16
	if start < 0 {
		start = 0
	}
	snapshotStart := uint16(start)
	size := 64
	if uint32(snapshotStart)+uint32(size) > 0x10000 {
		size = int(0x10000 - uint32(snapshotStart))
	}
	snapshotBytes := make([]byte, size)
	for i := range snapshotBytes {
		snapshotBytes[i] = mem.Read(snapshotStart + uint16(i))
	}

	spriteHeight := 8
	if mem.ReadBit(2, addr.LCDC) {
		spriteHeight = 16
	}

	return &debug.CompleteDebugData{
		OAM:  debug.ExtractOAMData(mem, int(mem.Read(addr.LY)), spriteHeight),
		VRAM: debug.ExtractVRAMData(mem),
		CPU: &debug.CPUState{
			A: st.A, F: st.F, B: st.B, C: st.C, D: st.D, E: st.E, H: st.H, L: st.L,
			SP: st.SP, PC: st.PC, IME: st.IME, Cycles: st.Cycles,
		},
		Memory:          &debug.MemorySnapshot{StartAddr: snapshotStart, Bytes: snapshotBytes},
		DebuggerState:   debug.DebuggerState(e.GetDebuggerState()),
		InterruptEnable: mem.Read(addr.IE),
		InterruptFlags:  mem.Read(addr.IF),
		SpriteVis:       debug.ExtractSpriteData(mem, mem.Read(addr.LY)),
		PaletteVis:      debug.ExtractPaletteData(mem),
		Audio:           debug.ExtractAudioData(mem, mem.APU),
		// BackgroundVis and LayerBuffers are left nil: the GPU does not
		// expose a standalone per-layer framebuffer, only the composited
		// FrameBuffer, so the SDL2 debug window's tilemap panel stays
		// hidden behind its own nil check instead.
	}
}

// SetFrameLimiter installs the frame-pacing strategy frontends use to cap
// how fast RunUntilFrame is called; the core itself has no notion of wall
// clock time.
func (e *Emulator) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		limiter = timing.NewNoOpLimiter()
	}
	e.limiter = limiter
}

// ResetFrameTiming resets the installed frame limiter's internal clock,
// used after a debugger pause so the next frame isn't throttled to catch up.
func (e *Emulator) ResetFrameTiming() {
	e.limiter.Reset()
}

// Debugger control methods.

func (e *Emulator) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *Emulator) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *Emulator) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *Emulator) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	slog.Info("Emulator resumed")
}

func (e *Emulator) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *Emulator) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *Emulator) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}
