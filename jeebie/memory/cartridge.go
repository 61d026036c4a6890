package memory

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	entryPointAddress     = 0x0100
	titleAddress          = 0x0134
	titleLength           = 16
	cgbFlagAddress        = 0x0143
	sgbFlagAddress        = 0x0146
	cartridgeTypeAddress  = 0x0147
	romSizeAddress        = 0x0148
	ramSizeAddress        = 0x0149
	headerChecksumAddress = 0x014D

	// minHeaderSize is the smallest buffer that still contains a full header;
	// anything shorter can't possibly be a real cartridge.
	minHeaderSize = 0x0150
)

// MBCType identifies which memory bank controller a cartridge header asks for.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC3Type
	MBCUnknownType
)

func (t MBCType) String() string {
	switch t {
	case NoMBCType:
		return "ROM ONLY"
	case MBC1Type:
		return "MBC1"
	case MBC1MultiType:
		return "MBC1 (multicart)"
	case MBC3Type:
		return "MBC3"
	default:
		return "unknown"
	}
}

// CartridgeHeader is the caller-facing summary of what load_rom parsed out of
// the ROM header, returned to the frontend on a successful load.
type CartridgeHeader struct {
	Title      string
	CGBFlag    uint8
	SGBFlag    uint8
	MBCType    MBCType
	HasBattery bool
	HasRTC     bool
	ROMBanks   int
	RAMBanks   int
}

// IsCGB reports whether the header declares CGB-enhanced or CGB-only support.
func (h CartridgeHeader) IsCGB() bool {
	return h.CGBFlag == 0x80 || h.CGBFlag == 0xC0
}

// Cartridge holds the raw ROM image and the header fields decoded from it.
type Cartridge struct {
	data []byte

	title          string
	cgbFlag        uint8
	sgbFlag        uint8
	cartTypeByte   uint8
	mbcType        MBCType
	hasBattery     bool
	hasRTC         bool
	romBankCount   int
	ramBankCount   uint8
	headerChecksum uint8
}

// NewCartridge creates an empty cartridge, useful only for powering on
// without a ROM inserted.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, minHeaderSize),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData parses a ROM image's header and returns a Cartridge.
// A buffer shorter than the header (0x150 bytes) is reported as an error
// rather than panicking, since it is a recoverable, pre-execution load
// failure rather than a runtime CPU fault.
func NewCartridgeWithData(data []byte) (*Cartridge, error) {
	if len(data) < minHeaderSize {
		return nil, fmt.Errorf("rom too small: %d bytes, need at least %d", len(data), minHeaderSize)
	}

	cart := &Cartridge{
		data:           make([]byte, len(data)),
		title:          cleanGameboyTitle(data[titleAddress : titleAddress+titleLength]),
		cgbFlag:        data[cgbFlagAddress],
		sgbFlag:        data[sgbFlagAddress],
		cartTypeByte:   data[cartridgeTypeAddress],
		headerChecksum: data[headerChecksumAddress],
	}
	copy(cart.data, data)

	cart.mbcType, cart.hasBattery, cart.hasRTC = decodeCartridgeType(cart.cartTypeByte)
	cart.romBankCount = decodeROMBanks(data[romSizeAddress])
	cart.ramBankCount = decodeRAMBanks(data[ramSizeAddress])

	return cart, nil
}

// Header returns the caller-facing summary of this cartridge's header.
func (c *Cartridge) Header() CartridgeHeader {
	return CartridgeHeader{
		Title:      c.title,
		CGBFlag:    c.cgbFlag,
		SGBFlag:    c.sgbFlag,
		MBCType:    c.mbcType,
		HasBattery: c.hasBattery,
		HasRTC:     c.hasRTC,
		ROMBanks:   c.romBankCount,
		RAMBanks:   int(c.ramBankCount),
	}
}

// Title returns the cartridge's title, used to derive the persistence key.
func (c *Cartridge) Title() string {
	if c.title == "" {
		return "(untitled)"
	}
	return c.title
}

// decodeCartridgeType maps the 0x147 header byte to an MBC type plus the
// battery/RTC flags real hardware wires from the same byte.
// Reference: https://gbdev.io/pandocs/The_Cartridge_Header.html#0147--cartridge-type
func decodeCartridgeType(value uint8) (mbc MBCType, hasBattery bool, hasRTC bool) {
	switch value {
	case 0x00:
		return NoMBCType, false, false
	case 0x08, 0x09:
		return NoMBCType, value == 0x09, false
	case 0x01, 0x02:
		return MBC1Type, false, false
	case 0x03:
		return MBC1Type, true, false
	case 0x0F:
		return MBC3Type, true, true
	case 0x10:
		return MBC3Type, true, true
	case 0x11, 0x12:
		return MBC3Type, false, false
	case 0x13:
		return MBC3Type, true, false
	default:
		// MBC2, MBC5, MBC6, MBC7, MMM01, HuC1/3, and anything else: explicitly
		// out of scope (spec Non-goals). Reported as unknown so load_rom can
		// fail fast instead of emulating a mapper incorrectly.
		return MBCUnknownType, false, false
	}
}

func decodeROMBanks(value uint8) int {
	if value > 0x08 {
		return 2
	}
	return 2 << value
}

func decodeRAMBanks(value uint8) uint8 {
	switch value {
	case 0x00:
		return 0
	case 0x01:
		return 1 // 2KB, treated as a single partial bank
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// cleanGameboyTitle processes a raw Game Boy ROM title by replacing NUL
// bytes with spaces, dropping non-printable bytes, and trimming the result.
func cleanGameboyTitle(titleBytes []byte) string {
	runes := make([]rune, 0, len(titleBytes))
	for _, b := range titleBytes {
		r := rune(b)
		switch {
		case r == 0:
			continue
		case !unicode.IsPrint(r):
			continue
		default:
			runes = append(runes, r)
		}
	}
	return strings.TrimSpace(string(runes))
}
