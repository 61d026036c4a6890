package memory

import (
	"testing"
)

func readROM(mbc MBC, addr uint16) uint8   { return mbc.ReadROM(addr) }
func writeROM(mbc MBC, addr uint16, v uint8) { mbc.WriteROM(addr, v) }

func TestMBC1(t *testing.T) {
	t.Run("ROM Bank 0 (Fixed)", func(t *testing.T) {
		rom := make([]uint8, 0x8000) // 32KB
		for i := range rom {
			rom[i] = uint8(i & 0xFF)
		}

		mbc := NewMBC1(rom, false, 0)

		for addr := uint16(0x0000); addr < 0x4000; addr++ {
			got := readROM(mbc, addr)
			want := uint8(addr & 0xFF)
			if got != want {
				t.Errorf("ReadROM(0x%04X) = 0x%02X; want 0x%02X", addr, got, want)
			}
		}
	})

	t.Run("ROM Bank Switching", func(t *testing.T) {
		rom := make([]uint8, 0x10000) // 4 banks
		for i := range rom {
			bankNum := uint8(i / 0x4000)
			rom[i] = bankNum
		}

		mbc := NewMBC1(rom, false, 0)

		tests := []struct {
			name     string
			bankNum  uint8
			wantByte uint8
		}{
			{"Default Bank (1)", 1, 1},
			{"Switch to Bank 2", 2, 2},
			{"Switch to Bank 3", 3, 3},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.bankNum > 1 {
					writeROM(mbc, 0x2000, tt.bankNum)
				}
				got := readROM(mbc, 0x4000)
				if got != tt.wantByte {
					t.Errorf("Bank %d: ReadROM(0x4000) = 0x%02X; want 0x%02X",
						tt.bankNum, got, tt.wantByte)
				}
			})
		}
	})

	t.Run("RAM Banking", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 4) // 4 RAM banks

		t.Run("RAM Disabled by Default", func(t *testing.T) {
			got := mbc.ReadRAM(0xA000)
			if got != 0xFF {
				t.Errorf("Read from disabled RAM = 0x%02X; want 0xFF", got)
			}
		})

		t.Run("RAM Enable/Disable", func(t *testing.T) {
			mbc.WriteROM(0x0000, 0x0A)
			mbc.WriteRAM(0xA000, 0x42)
			got := mbc.ReadRAM(0xA000)
			if got != 0x42 {
				t.Errorf("Read after RAM enable = 0x%02X; want 0x42", got)
			}

			mbc.WriteROM(0x0000, 0x00)
			got = mbc.ReadRAM(0xA000)
			if got != 0xFF {
				t.Errorf("Read after RAM disable = 0x%02X; want 0xFF", got)
			}
		})

		t.Run("Multiple RAM Banks", func(t *testing.T) {
			mbc.WriteROM(0x0000, 0x0A) // enable
			mbc.WriteROM(0x6000, 1)    // RAM banking mode

			tests := []struct {
				bankNum uint8
				value   uint8
			}{
				{0, 0x42},
				{1, 0x43},
				{2, 0x44},
				{3, 0x45},
			}

			for _, tt := range tests {
				mbc.WriteROM(0x4000, tt.bankNum)
				mbc.WriteRAM(0xA000, tt.value)
			}

			for _, tt := range tests {
				mbc.WriteROM(0x4000, tt.bankNum)
				got := mbc.ReadRAM(0xA000)
				if got != tt.value {
					t.Errorf("Bank %d: got 0x%02X; want 0x%02X",
						tt.bankNum, got, tt.value)
				}
			}
		})
	})

	t.Run("Banking Modes", func(t *testing.T) {
		rom := make([]uint8, 8*0x4000) // 8 banks * 16KB
		for i := range rom {
			bankNum := uint8(i / 0x4000)
			rom[i] = bankNum
		}

		mbc := NewMBC1(rom, false, 4)

		t.Run("ROM Banking Mode (0)", func(t *testing.T) {
			mbc.WriteROM(0x6000, 0) // ROM banking mode
			mbc.WriteROM(0x2000, 5) // lower 5 bits of ROM bank
			mbc.WriteROM(0x4000, 0) // upper 2 bits

			got := readROM(mbc, 0x4000)
			want := uint8(5)
			if got != want {
				t.Errorf("ReadROM in ROM mode = 0x%02X; want 0x%02X", got, want)
			}

			// Bank 37 (binary 100101) wraps against an 8-bank ROM to bank 5.
			mbc.WriteROM(0x2000, 5)
			mbc.WriteROM(0x4000, 1)

			got = readROM(mbc, 0x4000)
			want = uint8(5)
			if got != want {
				t.Errorf("ReadROM with bank wrapping = 0x%02X; want 0x%02X", got, want)
			}
		})

		t.Run("RAM Banking Mode (1)", func(t *testing.T) {
			mbc.WriteROM(0x6000, 1) // RAM banking mode
			mbc.WriteROM(0x2000, 5) // ROM bank low bits unaffected by mode
			mbc.WriteROM(0x4000, 2) // RAM bank

			if mbc.romBank() != 5 {
				t.Errorf("ROM bank in RAM mode = %d; want 5", mbc.romBank())
			}
			if mbc.ramBank() != 2 {
				t.Errorf("RAM bank = %d; want 2", mbc.ramBank())
			}

			got := readROM(mbc, 0x4000)
			want := uint8(5)
			if got != want {
				t.Errorf("ReadROM in RAM mode = 0x%02X; want 0x%02X", got, want)
			}
		})
	})

	t.Run("Invalid Bank Handling", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 0)

		t.Run("Bank 0 Translation", func(t *testing.T) {
			mbc.WriteROM(0x2000, 0)
			if mbc.romBank() != 1 {
				t.Errorf("ROM bank 0 not translated to 1, got bank %d", mbc.romBank())
			}
		})

		t.Run("Bank 0x20/0x40/0x60 Translation", func(t *testing.T) {
			// 0x20 in the low-5-bits register (which only holds 5 bits) is
			// actually seen as 0, so this exercises the same aliasing path
			// via the high-bits register instead: bankHigh2=1, low5=0 -> 0x20.
			mbc.WriteROM(0x6000, 0) // ROM banking mode
			mbc.WriteROM(0x2000, 0)
			mbc.WriteROM(0x4000, 1)
			if bank := mbc.romBank(); bank == 0x20 {
				t.Errorf("bank 0x20 must never be selectable at 0x4000-0x7FFF, got %#x", bank)
			}
		})

	})
}

func TestMBC3RTCLatchAndRoundTrip(t *testing.T) {
	now := 0.0
	clock := func() float64 { return now }

	rom := make([]uint8, 0x8000)
	mbc := NewMBC3(rom, 4, true, true, clock)

	// Enable RAM+RTC access, select the seconds register.
	mbc.WriteROM(0x0000, 0x0A)
	mbc.WriteROM(0x4000, 0x08)
	mbc.WriteRAM(0xA000, 59) // seconds = 59

	// Latch (0->1 transition) before any time has passed: latched seconds
	// should read back 59, minutes untouched.
	mbc.WriteROM(0x6000, 0)
	mbc.WriteROM(0x6000, 1)
	if got := mbc.ReadRAM(0xA000); got != 59 {
		t.Fatalf("latched seconds = %d; want 59", got)
	}

	// Advance host time by 2 real seconds, then latch again: seconds should
	// wrap past 60 and minutes should have incremented exactly once.
	now += 2000
	mbc.WriteROM(0x6000, 0)
	mbc.WriteROM(0x6000, 1)

	if got := mbc.ReadRAM(0xA000); got != 1 {
		t.Errorf("latched seconds after 2s = %d; want 1", got)
	}
	mbc.WriteROM(0x4000, 0x09) // select minutes
	if got := mbc.ReadRAM(0xA000); got != 1 {
		t.Errorf("latched minutes after wraparound = %d; want 1", got)
	}

	// Round trip through the persistence wire format: exporting and
	// re-importing RTC state must reproduce the same latched values.
	state := mbc.GetRTCState()
	mbc2 := NewMBC3(rom, 4, true, true, clock)
	mbc2.SetRTCState(state)

	mbc2.WriteROM(0x0000, 0x0A)
	mbc2.WriteROM(0x4000, 0x09)
	if got := mbc2.ReadRAM(0xA000); got != 1 {
		t.Errorf("round-tripped latched minutes = %d; want 1", got)
	}
}

func TestMBC3RAMDisabledReturnsFF(t *testing.T) {
	mbc := NewMBC3(make([]uint8, 0x8000), 4, true, true, nil)
	if got := mbc.ReadRAM(0xA000); got != 0xFF {
		t.Errorf("Read from disabled RAM = 0x%02X; want 0xFF", got)
	}
}

func TestMBC3ROMBankZeroMapsToOne(t *testing.T) {
	rom := make([]uint8, 4*0x4000)
	for i := range rom {
		rom[i] = uint8(i / 0x4000)
	}
	mbc := NewMBC3(rom, 0, false, false, nil)

	mbc.WriteROM(0x2000, 0)
	if got := mbc.ReadROM(0x4000); got != 1 {
		t.Errorf("ROM bank 0 not translated to 1, got bank byte %d", got)
	}
}
