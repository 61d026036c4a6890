package memory

// RTCState is the stable wire format used to persist an MBC3 real-time
// clock across sessions: the five live registers, a latched copy of each
// (as written by a 0->1 transition on HDMA-style latch writes to 0x6000),
// and the host wall-clock timestamp the live registers were computed from.
type RTCState struct {
	Seconds, Minutes, Hours, DayLow, DayHigh               uint8
	LatchedSeconds, LatchedMinutes, LatchedHours            uint8
	LatchedDayLow, LatchedDayHigh                           uint8
	BaseEpochMillis                                         float64
}

// CartridgeEffects is the set of synchronous, host-provided callbacks a
// cartridge mapper uses to persist battery-backed RAM and, for MBC3, the
// RTC. The core never touches the filesystem directly; everything flows
// through this interface so the frontend can store saves wherever it likes.
type CartridgeEffects interface {
	// CurrentTimeMillis returns the host wall-clock time, used to advance
	// the MBC3 RTC between sessions.
	CurrentTimeMillis() float64

	// LoadRAM returns previously saved battery RAM for the given key, or
	// (nil, false) if nothing was saved.
	LoadRAM(key string) ([]byte, bool)
	// SaveRAM persists battery RAM under the given key.
	SaveRAM(key string, data []byte)

	// LoadRTCState returns a previously saved RTC state for the given key,
	// or (zero, false) if nothing was saved.
	LoadRTCState(key string) (RTCState, bool)
	// SaveRTCState persists RTC state under the given key.
	SaveRTCState(key string, state RTCState)
}

// NopEffects is a CartridgeEffects that persists nothing; used when no
// battery RAM / RTC persistence is needed (test ROMs, throwaway runs).
type NopEffects struct {
	NowMillis float64
}

func (e NopEffects) CurrentTimeMillis() float64                   { return e.NowMillis }
func (e NopEffects) LoadRAM(key string) ([]byte, bool)             { return nil, false }
func (e NopEffects) SaveRAM(key string, data []byte)               {}
func (e NopEffects) LoadRTCState(key string) (RTCState, bool)      { return RTCState{}, false }
func (e NopEffects) SaveRTCState(key string, state RTCState)       {}

var _ CartridgeEffects = NopEffects{}
