package protocol

// RISC-V Debug Module register addresses (7-bit space).
const (
	DMData0        = 0x04
	DMData1        = 0x05
	DMControl      = 0x10
	DMStatus       = 0x11
	DMHartInfo     = 0x12
	DMAbstractCS   = 0x16
	DMCommand      = 0x17
	DMAbstractAuto = 0x18
	DMProgBuf0     = 0x20
	DMProgBuf1     = 0x21
	DMProgBuf2     = 0x22
	DMProgBuf3     = 0x23
	DMProgBuf4     = 0x24
	DMProgBuf5     = 0x25
	DMProgBuf6     = 0x26
	DMProgBuf7     = 0x27
	DMCPBR         = 0x7C
	DMCfgR         = 0x7D
	DMShdwCfgR     = 0x7E
)

// Flash peripheral registers in target address space.
const (
	FlashKEYR        = 0x40022004
	FlashOBKEYR      = 0x40022008
	FlashSTATR       = 0x4002200C
	FlashCTLR        = 0x40022010
	FlashADDR        = 0x40022014
	FlashModeKEYR    = 0x40022024
	FlashBootModeKEY = 0x40022028
)

// Flash unlock key pair, written twice to each key register.
const (
	FlashKey1 = 0x45670123
	FlashKey2 = 0xCDEF89AB
)

// FlashCTLR bits.
const (
	CtlMER     = 1 << 2  // whole-chip erase request
	CtlSTRT    = 1 << 6  // start the requested operation
	CtlLock    = 0x8080  // LOCK and FLOCK bits
	CtlFTPG    = 1 << 16 // fast page program
	CtlFTER    = 1 << 17 // fast page erase
	CtlBufLoad = 1 << 18 // latch the staged word into the page buffer
	CtlBufRst  = 1 << 19 // reset the page buffer
)

// FlashSTATR bits.
const (
	StatBusy      = 1 << 0
	StatWRProtect = 1 << 4
)

// Target memory map.
const (
	CodeBase = 0x08000000
	RAMBase  = 0x20000000
	BootBase = 0x1FFFF000
)

// IsFlashAddr reports whether a write to addr lands in code flash or the
// boot sector, both of which need the flash-kick program-buffer variant.
func IsFlashAddr(addr uint32) bool {
	return addr&0xFF000000 == CodeBase || addr&0x1FFFF800 == BootBase
}

// AutoIncrement reports whether sequential reads from addr may use the
// auto-incrementing program buffer. The flash control and status registers
// are polled in place and must never advance.
func AutoIncrement(addr uint32) bool {
	return addr != FlashCTLR && addr != FlashSTATR
}
