package cpu

import (
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/bit"
)

// Bus is the minimal interface the CPU needs from whatever owns the
// address space. Keeping it local to the package (rather than importing
// the root emulator package) avoids an import cycle, since the root
// package needs to import cpu to build the Bus in the first place.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	Tick(cycles int)
}

// Flag is one of the 4 possible flags used in the flag register (low nibble of F is always 0).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// CPU is the main struct holding Sharp SM83 state.
type CPU struct {
	bus Bus

	a, b, c, d, e, h, l, f uint8
	sp, pc                 uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool

	currentOpcode uint16
	cycles        uint64
}

// New creates a CPU wired to the given bus, with registers set to the
// state the hardware has immediately after the boot ROM hands off control.
// Callers that run the real boot ROM should override pc to 0 (SetPC) and
// let the boot ROM bring up the rest of the state itself.
func New(bus Bus) *CPU {
	return &CPU{
		bus: bus,
		a:   0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x0100,
	}
}

// GetPC returns the current program counter, mainly useful for debugging/tracing.
func (c *CPU) GetPC() uint16 {
	return c.pc
}

// GetCycles returns the total number of T-states the CPU has consumed so far.
func (c *CPU) GetCycles() uint64 {
	return c.cycles
}

// Register accessors, used by debug/terminal frontends that want individual
// values rather than a full State snapshot.
func (c *CPU) GetA() uint8   { return c.a }
func (c *CPU) GetF() uint8   { return c.f }
func (c *CPU) GetB() uint8   { return c.b }
func (c *CPU) GetC() uint8   { return c.c }
func (c *CPU) GetD() uint8   { return c.d }
func (c *CPU) GetE() uint8   { return c.e }
func (c *CPU) GetH() uint8   { return c.h }
func (c *CPU) GetL() uint8   { return c.l }
func (c *CPU) GetSP() uint16 { return c.sp }

// GetFlagString renders the Z/N/H/C flags as a 4-character string, using a
// dash where the flag is clear - e.g. "Z-HC".
func (c *CPU) GetFlagString() string {
	flags := [4]byte{'-', '-', '-', '-'}
	if c.isSetFlag(zeroFlag) {
		flags[0] = 'Z'
	}
	if c.isSetFlag(subFlag) {
		flags[1] = 'N'
	}
	if c.isSetFlag(halfCarryFlag) {
		flags[2] = 'H'
	}
	if c.isSetFlag(carryFlag) {
		flags[3] = 'C'
	}
	return string(flags[:])
}

// State is an immutable snapshot of the CPU's architectural registers,
// used by debuggers and tests that need a read-only view without reaching
// into package-private fields.
type State struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool
	Halted                 bool
	Cycles                 uint64
}

// State returns a snapshot of the current register file.
func (c *CPU) State() State {
	return State{
		A: c.a, F: c.f, B: c.b, C: c.c, D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc, IME: c.interruptsEnabled, Halted: c.halted, Cycles: c.cycles,
	}
}

// SetPC forces the program counter, used when entering/leaving a boot ROM mapping.
func (c *CPU) SetPC(value uint16) {
	c.pc = value
}

// tick advances the bus by n T-states and keeps the CPU's own running total in sync.
func (c *CPU) tick(n int) {
	c.cycles += uint64(n)
	c.bus.Tick(n)
}

// Step executes at most one instruction (or one idle cycle while halted,
// or one interrupt dispatch) and returns the number of T-states it took.
func (c *CPU) Step() int {
	if c.stopped {
		// Real hardware wakes from STOP when a joypad line goes low,
		// signalled here the same way HALT is woken: a pending joypad
		// interrupt, regardless of IME or whether it is individually enabled.
		if c.bus.Read(addr.IF)&byte(addr.JoypadInterrupt) != 0 {
			c.stopped = false
		} else {
			c.tick(4)
			return 4
		}
	}

	if c.halted {
		imeWasOn := c.interruptsEnabled
		pending := c.handleInterrupts()
		if !pending {
			c.tick(4)
			return 4
		}

		c.halted = false
		if imeWasOn {
			return 20
		}

		// IME was off: the interrupt is not serviced, but HALT still wakes
		// and the next opcode fetch is corrupted by the halt bug.
		c.haltBug = true
	} else {
		imeWasOn := c.interruptsEnabled
		if c.handleInterrupts() && imeWasOn {
			return 20
		}
	}

	applyEI := c.eiPending

	op := Decode(c)
	if c.currentOpcode&0xFF00 == 0xCB00 {
		c.pc += 2
	} else {
		c.pc++
	}

	if c.haltBug {
		c.haltBug = false
		c.pc--
	}

	cycles := op(c)
	c.cycles += uint64(cycles)

	if applyEI {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	return cycles
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f&0xF0)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// readImmediate reads the byte at pc and advances pc past it.
func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate reads the byte at pc (as a two's complement offset) and advances pc past it.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord reads the little-endian word at pc and advances pc past it.
func (c *CPU) readImmediateWord() uint16 {
	lo := c.readImmediate()
	hi := c.readImmediate()
	return bit.Combine(hi, lo)
}
