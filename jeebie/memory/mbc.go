package memory

import "math"

// MBC is the capability set every supported memory bank controller
// implements. The mapper set is closed (spec explicitly scopes out MBC2,
// MBC5 and friends), so a small shared interface is preferred here over a
// pluggable registry: adding a new mapper is a deliberate, rare change that
// touches this file and the cartridge-type table in cartridge.go together.
type MBC interface {
	ReadROM(address uint16) uint8
	WriteROM(address uint16, value uint8)
	ReadRAM(address uint16) uint8
	WriteRAM(address uint16, value uint8)

	// SetRAM installs previously persisted battery RAM (e.g. on load).
	SetRAM(data []byte)
	// GetRAM returns a copy of the current battery RAM contents for persistence.
	GetRAM() []byte
}

// RTCCarrier is implemented by mappers that expose a real-time clock.
// Only MBC3 does in this core.
type RTCCarrier interface {
	GetRTCState() RTCState
	SetRTCState(state RTCState)
}

// NoMBC is a direct, unbanked mapping used by ROM-only cartridges (<=32KB,
// optionally with battery-backed RAM wired straight behind 0xA000-0xBFFF).
type NoMBC struct {
	rom []uint8
	ram []uint8
}

func NewNoMBC(romData []uint8, ramBankCount uint8) *NoMBC {
	return &NoMBC{
		rom: romData,
		ram: make([]uint8, int(ramBankCount)*0x2000),
	}
}

func (m *NoMBC) ReadROM(address uint16) uint8 {
	if int(address) >= len(m.rom) {
		return 0xFF
	}
	return m.rom[address]
}

func (m *NoMBC) WriteROM(address uint16, value uint8) {}

func (m *NoMBC) ReadRAM(address uint16) uint8 {
	offset := address - 0xA000
	if int(offset) >= len(m.ram) {
		return 0xFF
	}
	return m.ram[offset]
}

func (m *NoMBC) WriteRAM(address uint16, value uint8) {
	offset := address - 0xA000
	if int(offset) < len(m.ram) {
		m.ram[offset] = value
	}
}

func (m *NoMBC) SetRAM(data []byte) { copy(m.ram, data) }
func (m *NoMBC) GetRAM() []byte     { return append([]byte(nil), m.ram...) }

// MBC1 banks up to 2MB of ROM (125 usable 16KB banks) and 32KB of RAM (4
// banks), selected by four write-only "registers" mapped over the ROM
// address space. See spec.md 4.3 for the exact bit layout.
type MBC1 struct {
	rom []uint8
	ram []uint8

	romBankLow5 uint8 // 0x2000-0x3FFF write, bank 0 aliases to 1
	bankHigh2   uint8 // 0x4000-0x5FFF write, meaning depends on bankingMode
	bankingMode uint8 // 0=ROM banking mode, 1=RAM banking mode
	ramEnabled  bool

	hasBattery bool
}

func NewMBC1(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	return &MBC1{
		rom:         romData,
		ram:         make([]uint8, int(ramBankCount)*0x2000),
		romBankLow5: 1,
		hasBattery:  hasBattery,
	}
}

// romBank computes the effective 16KB bank mapped at 0x4000-0x7FFF,
// applying the classic bank-0 aliasing quirk: whenever the low 5 bits of
// the selected bank are zero, hardware reads the NEXT bank instead, so
// 0x00/0x20/0x40/0x60 can never appear at 0x4000-0x7FFF (invariant 6).
func (m *MBC1) romBank() int {
	bank := m.romBankLow5 & 0x1F
	if m.bankingMode == 0 {
		bank |= m.bankHigh2 << 5
	}
	if bank&0x1F == 0 {
		bank |= 1
	}
	return int(bank)
}

func (m *MBC1) ramBank() int {
	if m.bankingMode == 1 {
		return int(m.bankHigh2 & 0x03)
	}
	return 0
}

func (m *MBC1) ReadROM(address uint16) uint8 {
	if address <= 0x3FFF {
		return m.readROMByte(0, address)
	}
	return m.readROMByte(m.romBank(), address-0x4000)
}

func (m *MBC1) readROMByte(bank int, offset uint16) uint8 {
	idx := bank*0x4000 + int(offset)
	if len(m.rom) == 0 {
		return 0xFF
	}
	idx %= len(m.rom)
	return m.rom[idx]
}

func (m *MBC1) WriteROM(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		m.romBankLow5 = value & 0x1F
	case address <= 0x5FFF:
		m.bankHigh2 = value & 0x03
	case address <= 0x7FFF:
		m.bankingMode = value & 0x01
	}
}

func (m *MBC1) ReadRAM(address uint16) uint8 {
	if !m.ramEnabled || len(m.ram) == 0 {
		return 0xFF
	}
	offset := m.ramBank()*0x2000 + int(address-0xA000)
	offset %= len(m.ram)
	return m.ram[offset]
}

func (m *MBC1) WriteRAM(address uint16, value uint8) {
	if !m.ramEnabled || len(m.ram) == 0 {
		return
	}
	offset := m.ramBank()*0x2000 + int(address-0xA000)
	offset %= len(m.ram)
	m.ram[offset] = value
}

func (m *MBC1) SetRAM(data []byte) { copy(m.ram, data) }
func (m *MBC1) GetRAM() []byte     { return append([]byte(nil), m.ram...) }

// MBC3 adds a battery-backed real-time clock on top of MBC1-style banking,
// with a full 7-bit ROM bank register (no aliasing quirk) and RAM-bank
// register values 0x08-0x0C redirected to the RTC registers instead of RAM.
type MBC3 struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramRTCSel  uint8 // 0-3 selects a RAM bank, 0x08-0x0C selects an RTC register
	ramEnabled bool

	hasBattery bool
	hasRTC     bool

	rtc       rtcRegisters
	latched   rtcRegisters
	latchPrev uint8 // last byte written to 0x6000-0x7FFF, to detect the 0->1 latch edge
	baseEpoch float64
	now       func() float64
}

type rtcRegisters struct {
	seconds, minutes, hours, dayLow, dayHigh uint8
}

func NewMBC3(romData []uint8, ramBankCount uint8, hasRTC bool, hasBattery bool, nowFn func() float64) *MBC3 {
	if nowFn == nil {
		nowFn = func() float64 { return 0 }
	}
	m := &MBC3{
		rom:        romData,
		ram:        make([]uint8, int(ramBankCount)*0x2000),
		romBank:    1,
		hasRTC:     hasRTC,
		hasBattery: hasBattery,
		now:        nowFn,
	}
	m.baseEpoch = nowFn()
	return m
}

func (m *MBC3) ReadROM(address uint16) uint8 {
	if address <= 0x3FFF {
		if len(m.rom) == 0 {
			return 0xFF
		}
		return m.rom[address]
	}
	idx := int(m.romBank)*0x4000 + int(address-0x4000)
	if len(m.rom) == 0 {
		return 0xFF
	}
	idx %= len(m.rom)
	return m.rom[idx]
}

func (m *MBC3) WriteROM(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address <= 0x5FFF:
		m.ramRTCSel = value
	case address <= 0x7FFF:
		// Latch: a 0->1 transition copies the live RTC registers into the
		// latched copy that reads of 0xA000-0xBFFF (when 0x08-0x0C is
		// selected) actually observe.
		if m.latchPrev == 0 && value == 1 {
			m.tickRTC()
			m.latched = m.rtc
		}
		m.latchPrev = value
	}
}

func (m *MBC3) ReadRAM(address uint16) uint8 {
	if !m.ramEnabled {
		return 0xFF
	}
	if m.ramRTCSel <= 0x03 {
		offset := int(m.ramRTCSel)*0x2000 + int(address-0xA000)
		if len(m.ram) == 0 {
			return 0xFF
		}
		offset %= len(m.ram)
		return m.ram[offset]
	}
	if !m.hasRTC {
		return 0xFF
	}
	switch m.ramRTCSel {
	case 0x08:
		return m.latched.seconds
	case 0x09:
		return m.latched.minutes
	case 0x0A:
		return m.latched.hours
	case 0x0B:
		return m.latched.dayLow
	case 0x0C:
		return m.latched.dayHigh
	}
	return 0xFF
}

func (m *MBC3) WriteRAM(address uint16, value uint8) {
	if !m.ramEnabled {
		return
	}
	if m.ramRTCSel <= 0x03 {
		offset := int(m.ramRTCSel)*0x2000 + int(address-0xA000)
		if len(m.ram) == 0 {
			return
		}
		offset %= len(m.ram)
		m.ram[offset] = value
		return
	}
	if !m.hasRTC {
		return
	}
	m.tickRTC()
	switch m.ramRTCSel {
	case 0x08:
		m.rtc.seconds = value % 60
	case 0x09:
		m.rtc.minutes = value % 60
	case 0x0A:
		m.rtc.hours = value % 24
	case 0x0B:
		m.rtc.dayLow = value
	case 0x0C:
		// Bit 6 halts the clock, bit 7 is the day-counter carry (sticky
		// until cleared explicitly by the game).
		m.rtc.dayHigh = value & 0xC1
	}
	m.baseEpoch = m.now()
}

func (m *MBC3) SetRAM(data []byte) { copy(m.ram, data) }
func (m *MBC3) GetRAM() []byte     { return append([]byte(nil), m.ram...) }

// tickRTC advances the live registers to account for wall-clock time
// elapsed since baseEpoch, unless the clock is halted (DH bit 6).
func (m *MBC3) tickRTC() {
	if !m.hasRTC || m.rtc.dayHigh&0x40 != 0 {
		return
	}
	nowMs := m.now()
	elapsedSeconds := int64((nowMs - m.baseEpoch) / 1000.0)
	if elapsedSeconds <= 0 {
		return
	}
	m.baseEpoch = nowMs

	total := int64(m.rtc.seconds) + int64(m.rtc.minutes)*60 + int64(m.rtc.hours)*3600 +
		int64(m.rtc.dayLow)*86400 + int64(m.rtc.dayHigh&0x01)*512*86400 + elapsedSeconds

	days := total / 86400
	rem := total % 86400
	m.rtc.seconds = uint8(rem % 60)
	rem /= 60
	m.rtc.minutes = uint8(rem % 60)
	rem /= 60
	m.rtc.hours = uint8(rem % 24)

	dayHighBit := m.rtc.dayHigh & 0x40 // preserve halt flag
	if days > 511 {
		dayHighBit |= 0x80 // day counter overflow, sticky carry bit
		days = int64(math.Mod(float64(days), 512))
	}
	m.rtc.dayLow = uint8(days & 0xFF)
	dayHighBit |= uint8((days >> 8) & 0x01)
	m.rtc.dayHigh = dayHighBit
}

func (m *MBC3) GetRTCState() RTCState {
	m.tickRTC()
	return RTCState{
		Seconds: m.rtc.seconds, Minutes: m.rtc.minutes, Hours: m.rtc.hours,
		DayLow: m.rtc.dayLow, DayHigh: m.rtc.dayHigh,
		LatchedSeconds: m.latched.seconds, LatchedMinutes: m.latched.minutes, LatchedHours: m.latched.hours,
		LatchedDayLow: m.latched.dayLow, LatchedDayHigh: m.latched.dayHigh,
		BaseEpochMillis: m.baseEpoch,
	}
}

func (m *MBC3) SetRTCState(state RTCState) {
	m.rtc = rtcRegisters{state.Seconds, state.Minutes, state.Hours, state.DayLow, state.DayHigh}
	m.latched = rtcRegisters{state.LatchedSeconds, state.LatchedMinutes, state.LatchedHours, state.LatchedDayLow, state.LatchedDayHigh}
	m.baseEpoch = state.BaseEpochMillis
}

var (
	_ MBC        = (*NoMBC)(nil)
	_ MBC        = (*MBC1)(nil)
	_ MBC        = (*MBC3)(nil)
	_ RTCCarrier = (*MBC3)(nil)
)
