package memory

import (
	"fmt"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/bit"
	"github.com/valerio/go-jeebie/jeebie/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU decodes the 16-bit Game Boy address space and dispatches to whichever
// region/peripheral owns it: cartridge mapper, VRAM/WRAM/OAM/HRAM, the boot
// ROM overlay, or one of the memory-mapped I/O blocks (APU, timer, serial,
// joypad, PPU registers, CGB banking/DMA registers).
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	joypad *Joypad

	serial SerialPort
	timer  Timer

	bios        []byte
	biosEnabled bool
	cgbMode     bool

	vram     [2][0x2000]byte // CGB VRAM banks 0-1, bank 0 used in DMG mode
	vbk      uint8
	wram     [8][0x1000]byte // CGB WRAM banks 0-7 (bank 0 fixed, 1-7 switchable)
	svbk     uint8
	keySwitchPending bool
	doubleSpeed      bool

	dma  oamDMA
	hdma hdma

	bgPalette  cgbPaletteRAM
	objPalette cgbPaletteRAM

	// onDMAStallCycles lets the owning facade keep the PPU/APU clock in
	// sync with the extra CPU-blocking cycles a general-purpose HDMA
	// transfer consumes outside the normal per-instruction tick path.
	onDMAStallCycles func(cycles int)
}

// New creates a new memory unit with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory: make([]byte, 0x10000),
		cart:   NewCartridge(),
		mbc:    NewNoMBC(nil, 0),
		APU:    audio.New(),
		joypad: NewJoypad(),
	}
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	return mmu
}

// SetCGBMode toggles CGB-specific banking/registers. Must be called before
// any cartridge is loaded so the boot sequence can act on it.
func (m *MMU) SetCGBMode(enabled bool) {
	m.cgbMode = enabled
}

// IsCGBMode reports whether CGB hardware features are active.
func (m *MMU) IsCGBMode() bool {
	return m.cgbMode
}

// LoadBootROM installs a boot ROM image (256 bytes DMG, 2304 bytes CGB) and
// enables the overlay. The core never embeds or fetches boot ROM images
// itself; the frontend supplies the bytes.
func (m *MMU) LoadBootROM(data []byte) {
	m.bios = data
	m.biosEnabled = len(data) > 0
}

// DoubleSpeed reports whether the CGB speed switch is currently engaged.
func (m *MMU) DoubleSpeed() bool {
	return m.doubleSpeed
}

// SetDMAStallHook registers the callback used to keep PPU/APU ticking
// during a blocking general-purpose HDMA transfer.
func (m *MMU) SetDMAStallHook(fn func(cycles int)) {
	m.onDMAStallCycles = fn
}

// Tick advances any i/o that needs it every machine cycle: the divider/timer
// block, the serial port, and the OAM DMA engine (one byte per call when
// active). Called once per CPU bus access.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
	// Advance OAM DMA one byte per machine cycle (4 T-cycles).
	for n := cycles; n >= 4; n -= 4 {
		m.stepOAMDMA()
	}
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
// Panics if the cartridge requests an MBC this core does not support (spec
// §7: unsupported mapper during load is a fatal condition, not a recoverable one).
func NewWithCartridge(cart *Cartridge, effects CartridgeEffects) *MMU {
	mmu := New()
	mmu.cart = cart

	if effects == nil {
		effects = NopEffects{}
	}

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data, cart.ramBankCount)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC3Type:
		mbc3 := NewMBC3(cart.data, cart.ramBankCount, cart.hasRTC, cart.hasBattery, effects.CurrentTimeMillis)
		if cart.hasBattery {
			if saved, ok := effects.LoadRAM(cart.Title()); ok {
				mbc3.SetRAM(saved)
			}
			if cart.hasRTC {
				if rtc, ok := effects.LoadRTCState(cart.Title()); ok {
					mbc3.SetRTCState(rtc)
				}
			}
		}
		mmu.mbc = mbc3
	default:
		panic(fmt.Sprintf("unsupported MBC type: %s", cart.mbcType))
	}

	if cart.hasBattery {
		if mbc1, ok := mmu.mbc.(*MBC1); ok {
			if saved, ok := effects.LoadRAM(cart.Title()); ok {
				mbc1.SetRAM(saved)
			}
		}
	}

	return mmu
}

// PersistRAM exports the current battery RAM contents through effects, if
// the loaded mapper carries a battery. No-op for mappers without one.
func (m *MMU) PersistRAM(effects CartridgeEffects) {
	if effects == nil || m.mbc == nil {
		return
	}
	if !m.cart.hasBattery {
		return
	}
	effects.SaveRAM(m.cart.Title(), m.mbc.GetRAM())
	if rtc, ok := m.mbc.(RTCCarrier); ok && m.cart.hasRTC {
		effects.SaveRTCState(m.cart.Title(), rtc.GetRTCState())
	}
}

func initRegionMap(m *MMU) {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	newFlags := bit.Set(interruptBit(interrupt), m.Read(addr.IF))
	m.Write(addr.IF, newFlags)
}

func interruptBit(interrupt addr.Interrupt) uint8 {
	switch interrupt {
	case addr.VBlankInterrupt:
		return 0
	case addr.LCDSTATInterrupt:
		return 1
	case addr.TimerInterrupt:
		return 2
	case addr.SerialInterrupt:
		return 3
	case addr.JoypadInterrupt:
		return 4
	default:
		panic(fmt.Sprintf("unknown interrupt: 0x%02X", uint8(interrupt)))
	}
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// NotifyHBlank is called by the PPU each time it enters mode 0, driving the
// HBlank-paced HDMA engine forward by one 16-byte block.
func (m *MMU) NotifyHBlank() {
	if m.hdma.active && m.hdma.hblankMode {
		m.hdmaCopyBlock()
	}
}

// ReadVRAMBank reads a VRAM byte from an explicit bank (0 or 1), regardless
// of the current VBK selection. The PPU uses this in CGB mode to fetch tile
// attributes from bank 1 while tile indices come from bank 0 at the same
// tile-map address.
func (m *MMU) ReadVRAMBank(bank int, address uint16) byte {
	return m.vram[bank&1][address-0x8000]
}

// Read serves a CPU (or debugger) read. During an active OAM DMA transfer,
// every address outside HRAM reads back 0xFF (invariant 2).
func (m *MMU) Read(address uint16) byte {
	if m.dma.active && address < 0xFF80 {
		return 0xFF
	}
	return m.readBypassDMA(address)
}

// readBypassDMA is the real memory-region dispatch, used both for normal
// reads and internally by the DMA engine itself (which must read through
// regardless of its own in-progress state).
func (m *MMU) readBypassDMA(address uint16) byte {
	if m.biosEnabled && m.inBootROM(address) {
		return m.bios[address]
	}

	switch m.regionMap[address>>8] {
	case regionROM:
		return m.mbc.ReadROM(address)
	case regionExtRAM:
		return m.mbc.ReadRAM(address)
	case regionVRAM:
		return m.vram[m.vramBank()][address-0x8000]
	case regionWRAM:
		return m.readWRAM(address)
	case regionEcho:
		return m.readWRAM(address - 0x2000)
	case regionOAM:
		if address > addr.OAMEnd {
			return 0xFF // prohibited region, 0xFEA0-0xFEFF
		}
		return m.memory[address]
	case regionIO:
		return m.readIO(address)
	default:
		panic(fmt.Sprintf("attempted read at unmapped address: 0x%X", address))
	}
}

func (m *MMU) inBootROM(address uint16) bool {
	if address < 0x100 {
		return true
	}
	return m.cgbMode && address >= 0x200 && address <= 0x8FF && len(m.bios) > 0x200
}

func (m *MMU) vramBank() int {
	if m.cgbMode {
		return int(m.vbk & 0x01)
	}
	return 0
}

func (m *MMU) wramBank() int {
	if !m.cgbMode {
		return 1
	}
	bank := m.svbk & 0x07
	if bank == 0 {
		bank = 1
	}
	return int(bank)
}

func (m *MMU) readWRAM(address uint16) byte {
	if address <= 0xCFFF {
		return m.wram[0][address-0xC000]
	}
	return m.wram[m.wramBank()][address-0xD000]
}

func (m *MMU) writeWRAM(address uint16, value byte) {
	if address <= 0xCFFF {
		m.wram[0][address-0xC000] = value
		return
	}
	m.wram[m.wramBank()][address-0xD000] = value
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return m.timer.Read(address)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.APU.ReadRegister(address)
	case address == addr.IF:
		// Upper 3 bits are unused and always read as 1.
		return m.memory[address] | 0xE0
	case address == addr.HDMA5:
		return m.hdma.remainingBlocks()
	case address == addr.KEY1:
		return m.readKEY1()
	case address == addr.VBK:
		return m.vbk | 0xFE
	case address == addr.SVBK:
		return m.svbk | 0xF8
	case address == addr.BCPS:
		return m.bgPalette.readSpec()
	case address == addr.BCPD:
		return m.bgPalette.readData()
	case address == addr.OCPS:
		return m.objPalette.readSpec()
	case address == addr.OCPD:
		return m.objPalette.readData()
	case address >= 0xFF80:
		return m.memory[address]
	default:
		return m.memory[address]
	}
}

func (m *MMU) Write(address uint16, value byte) {
	if m.dma.active && address < 0xFF80 {
		return
	}

	if m.biosEnabled && m.inBootROM(address) {
		// Boot ROM is read-only; writes inside it are dropped.
		return
	}

	switch m.regionMap[address>>8] {
	case regionROM:
		m.mbc.WriteROM(address, value)
	case regionExtRAM:
		m.mbc.WriteRAM(address, value)
	case regionVRAM:
		m.vram[m.vramBank()][address-0x8000] = value
	case regionWRAM:
		m.writeWRAM(address, value)
	case regionEcho:
		m.writeWRAM(address-0x2000, value)
	case regionOAM:
		if address <= addr.OAMEnd {
			m.memory[address] = value
		}
		// writes to the prohibited region 0xFEA0-0xFEFF are dropped
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("attempted write at unmapped address: 0x%X", address))
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		m.timer.Write(address, value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.APU.WriteRegister(address, value)
	case address == addr.IF:
		m.memory[address] = value | 0xE0
	case address == addr.DMA:
		m.dma.start(value)
		m.memory[address] = value
	case address == addr.BootROMDisable:
		if value&0x01 != 0 {
			m.biosEnabled = false
		}
	case address == addr.KEY1:
		m.writeKEY1(value)
	case address == addr.VBK:
		if m.cgbMode {
			m.vbk = value & 0x01
		}
	case address == addr.SVBK:
		if m.cgbMode {
			m.svbk = value & 0x07
		}
	case address == addr.HDMA1:
		m.hdma.src = (m.hdma.src & 0x00FF) | uint16(value)<<8
	case address == addr.HDMA2:
		m.hdma.src = (m.hdma.src & 0xFF00) | uint16(value&0xF0)
	case address == addr.HDMA3:
		m.hdma.dst = (m.hdma.dst & 0x00FF) | uint16(value&0x1F)<<8
	case address == addr.HDMA4:
		m.hdma.dst = (m.hdma.dst & 0xFF00) | uint16(value&0xF0)
	case address == addr.HDMA5:
		m.writeHDMA5(value)
	case address == addr.BCPS:
		m.bgPalette.writeSpec(value)
	case address == addr.BCPD:
		m.bgPalette.writeData(value)
	case address == addr.OCPS:
		m.objPalette.writeSpec(value)
	case address == addr.OCPD:
		m.objPalette.writeData(value)
	case address >= 0xFF80:
		m.memory[address] = value
	default:
		m.memory[address] = value
	}
}

func (m *MMU) readKEY1() byte {
	var result byte
	if m.doubleSpeed {
		result |= 0x80
	}
	if m.keySwitchPending {
		result |= 0x01
	}
	return result | 0x7E
}

func (m *MMU) writeKEY1(value byte) {
	if !m.cgbMode {
		return
	}
	m.keySwitchPending = value&0x01 != 0
}

// HandleStop services STOP's side effect on the speed switch: if a switch
// was armed via KEY1 bit 0, flip speed and clear the armed bit.
func (m *MMU) HandleStop() {
	if m.keySwitchPending {
		m.doubleSpeed = !m.doubleSpeed
		m.keySwitchPending = false
	}
}

func (m *MMU) writeHDMA5(value byte) {
	mode := value & 0x80
	length := (uint16(value&0x7F) + 1) * 16

	if m.hdma.active && m.hdma.hblankMode && mode == 0 {
		// Writing bit7=0 while an HBlank transfer is active cancels it.
		m.hdma.active = false
		return
	}

	m.hdma.lengthLeft = length
	m.hdma.active = true
	m.hdma.hblankMode = mode != 0

	if !m.hdma.hblankMode {
		total := int(length)
		cost := (total / 16) * 8
		for m.hdma.lengthLeft > 0 {
			m.hdmaCopyBlock()
		}
		if m.onDMAStallCycles != nil {
			m.onDMAStallCycles(cost)
		}
	}
}

func (m *MMU) hdmaCopyBlock() {
	for i := 0; i < 16 && m.hdma.lengthLeft > 0; i++ {
		value := m.readBypassDMA(m.hdma.src)
		m.vram[m.vramBank()][(m.hdma.dst&0x1FFF)] = value
		m.hdma.src++
		m.hdma.dst++
		m.hdma.lengthLeft--
	}
	if m.hdma.lengthLeft == 0 {
		m.hdma.active = false
	}
}

func (m *MMU) HandleKeyPress(key JoypadKey) {
	if m.joypad.Press(key) {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}
}

func (m *MMU) HandleKeyRelease(key JoypadKey) {
	m.joypad.Release(key)
}

// BGPaletteColor returns the little-endian RGB555 color CGB background
// palette `palette` has stored for `colorIndex` (0-3).
func (m *MMU) BGPaletteColor(palette, colorIndex uint8) uint16 {
	return m.bgPalette.Color555(palette, colorIndex)
}

// ObjPaletteColor returns the little-endian RGB555 color CGB object
// palette `palette` has stored for `colorIndex` (0-3).
func (m *MMU) ObjPaletteColor(palette, colorIndex uint8) uint16 {
	return m.objPalette.Color555(palette, colorIndex)
}
