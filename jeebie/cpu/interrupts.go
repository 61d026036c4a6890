package cpu

import (
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/bit"
)

// handleInterrupts checks IF & IE for a pending interrupt and, if the
// master enable flag allows it, dispatches the highest priority one.
// It always reports whether an interrupt is pending, independent of the
// master enable flag, since that is what wakes the CPU from HALT even
// with interrupts globally disabled.
func (c *CPU) handleInterrupts() bool {
	pending := c.bus.Read(addr.IF) & c.bus.Read(addr.IE) & 0x1F
	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	c.interruptsEnabled = false
	c.eiPending = false
	c.tick(8)

	c.sp--
	c.bus.Write(c.sp, bit.High(c.pc))
	c.tick(4)
	c.sp--
	c.bus.Write(c.sp, bit.Low(c.pc))
	c.tick(4)

	// Re-read IF/IE after the push: if a handler cleared IE (or the game
	// otherwise raced the dispatch) such that nothing is pending anymore,
	// real hardware jumps to 0x0000 instead of a vector.
	ifNow := c.bus.Read(addr.IF)
	ieNow := c.bus.Read(addr.IE)
	stillPending := ifNow & ieNow & 0x1F
	if stillPending == 0 {
		c.pc = 0x0000
	} else {
		idx := lowestSetBit(stillPending)
		c.bus.Write(addr.IF, ifNow&^(1<<idx))
		c.pc = interruptVectors[idx]
	}
	c.tick(4)

	return true
}

func lowestSetBit(value uint8) uint8 {
	for i := uint8(0); i < 8; i++ {
		if value&(1<<i) != 0 {
			return i
		}
	}
	return 0
}
