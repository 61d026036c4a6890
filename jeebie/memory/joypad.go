package memory

import "github.com/valerio/go-jeebie/jeebie/bit"

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad models the P1 (0xFF00) register: a row selector (bits 4-5) over
// two 4-bit active-low button groups. Bits 6-7 always read as 1.
type Joypad struct {
	buttons  uint8 // A/B/Select/Start, bit cleared = pressed
	dpad     uint8 // Right/Left/Up/Down, bit cleared = pressed
	selector uint8 // raw bits 4-5 as last written
}

// NewJoypad creates a new Joypad instance with no keys pressed.
func NewJoypad() *Joypad {
	return &Joypad{
		buttons:  0x0F,
		dpad:     0x0F,
		selector: 0x30,
	}
}

func (j *Joypad) selectDpad() bool {
	return !bit.IsSet(4, j.selector)
}

func (j *Joypad) selectButtons() bool {
	return !bit.IsSet(5, j.selector)
}

// Read returns the full P1 register value as the CPU sees it.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | (j.selector & 0x30)

	switch {
	case j.selectButtons() && j.selectDpad():
		result |= j.buttons & j.dpad & 0x0F
	case j.selectButtons():
		result |= j.buttons & 0x0F
	case j.selectDpad():
		result |= j.dpad & 0x0F
	default:
		result |= 0x0F
	}

	return result
}

// Write updates the row-selector bits (4-5); the low nibble is read-only.
func (j *Joypad) Write(value uint8) {
	j.selector = value & 0x30
}

func keyGroup(key JoypadKey) (isDpad bool, bitIndex uint8) {
	switch key {
	case JoypadRight:
		return true, 0
	case JoypadLeft:
		return true, 1
	case JoypadUp:
		return true, 2
	case JoypadDown:
		return true, 3
	case JoypadA:
		return false, 0
	case JoypadB:
		return false, 1
	case JoypadSelect:
		return false, 2
	case JoypadStart:
		return false, 3
	}
	return false, 0
}

// Press marks a key as held and reports whether this transition is a
// falling edge (i.e. the key was not already pressed), which is what
// raises the joypad interrupt on real hardware.
func (j *Joypad) Press(key JoypadKey) bool {
	isDpad, idx := keyGroup(key)
	if isDpad {
		wasSet := bit.IsSet(idx, j.dpad)
		j.dpad = bit.Reset(idx, j.dpad)
		return wasSet
	}
	wasSet := bit.IsSet(idx, j.buttons)
	j.buttons = bit.Reset(idx, j.buttons)
	return wasSet
}

// Release marks a key as no longer held.
func (j *Joypad) Release(key JoypadKey) {
	isDpad, idx := keyGroup(key)
	if isDpad {
		j.dpad = bit.Set(idx, j.dpad)
	} else {
		j.buttons = bit.Set(idx, j.buttons)
	}
}
