package memory

import (
	"testing"

	"github.com/valerio/go-jeebie/jeebie/addr"
)

// TestHDMACrossesWRAMBankBoundaryThroughCurrentMapping exercises the rule
// from original_source/src/dma.rs: an HDMA source read goes through the same
// banked-read path as any other CPU access, so bytes copied after the
// transfer's source address crosses a WRAM bank boundary reflect whichever
// WRAM bank is currently selected by SVBK at the time of that read, not
// whatever was selected when the transfer started.
func TestHDMACrossesWRAMBankBoundaryThroughCurrentMapping(t *testing.T) {
	m := New()
	m.SetCGBMode(true)

	// Fill switchable WRAM bank 2 (0xD000-0xDFFF) with a recognizable byte,
	// distinct from whatever fixed bank 0 holds just below the boundary.
	m.Write(addr.SVBK, 2)
	for a := uint16(0xD000); a < 0xD010; a++ {
		m.Write(a, 0xAA)
	}

	// Source range starts 16 bytes before the 0xD000 boundary (fixed WRAM,
	// unaffected by SVBK) and the transfer runs long enough to cross it.
	m.Write(0xCFF0, 0x11)

	m.Write(addr.HDMA1, 0xCF) // source high byte
	m.Write(addr.HDMA2, 0xF0) // source low byte, already 16-aligned
	m.Write(addr.HDMA3, 0x00) // dest high -> VRAM offset 0x0000
	m.Write(addr.HDMA4, 0x00) // dest low

	// SVBK is already 2 from filling the bank above: this is the mapping in
	// effect when the transfer actually performs its source reads.
	m.Write(addr.HDMA5, 0x01) // GDMA, length field 1 -> 2 blocks (32 bytes)

	// Destination offset 0 came from source 0xCFF0 (below the boundary,
	// fixed WRAM): must be the byte written there regardless of SVBK.
	if got := m.ReadVRAMBank(0, 0x8000); got != 0x11 {
		t.Fatalf("byte copied before the WRAM boundary = 0x%02X; want 0x11", got)
	}

	// Destination offset 16 came from source 0xD000 (at/after the
	// boundary): must reflect the currently-mapped bank 2, not whatever was
	// mapped when HDMA1-4 were latched.
	if got := m.ReadVRAMBank(0, 0x8010); got != 0xAA {
		t.Fatalf("byte copied crossing the WRAM boundary = 0x%02X; want 0xAA (currently-mapped bank)", got)
	}
}
