// Package debugtest provides a register-level WCH-Link/debug-module
// simulator. It answers the framed probe commands and models just enough
// program-buffer and flash-peripheral behavior for the access layers to be
// exercised without hardware: staged words land in a byte-addressed memory,
// autoexec re-runs the armed snippet, and the flash status register can be
// made to stay busy or trip write protection.
package debugtest

import (
	"encoding/binary"

	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Program-buffer snippet words the simulator recognizes. These mirror the
// snippets the session installs.
const (
	snipWrite0    = 0xC0804184
	snipRead0     = 0x40044180
	snipReadInc   = 0xC1040411
	snipStoreByte = 0x00848023
	snipLoadByte  = 0x00048403
	snipStoreHalf = 0x00849023
	snipLoadHalf  = 0x00049403
)

// Simulator implements the session transport and the raw transport of the
// loader path against an in-memory target.
type Simulator struct {
	// Target identity presented on attach.
	ChipID  uint16
	Mark    byte
	FlashKB uint16

	// Behavior switches.
	Protected      bool // probe-side read protection reported active
	BusyForever    bool // flash busy flag never clears
	WriteProtected bool // write-protect error flag raised
	UnlockRefused  bool // key sequence does not clear the lock bits
	RawStatus      []byte

	// Counters, reset with ResetCounters.
	CommandCount int
	RegWrites    map[uint8]int
	RegReads     map[uint8]int
	Loads        map[uint32]int

	// Raw endpoint capture.
	RawChunks [][]byte

	// Flash operation tallies: page/chip erase starts and page program
	// starts observed on the control register.
	Erases        int
	ProgramStarts int

	mem  map[uint32]byte
	regs map[uint8]uint32

	x8, x9   uint32
	autoexec bool
	locked   bool
	keyArmed bool
}

// New creates a simulator presenting a CH32V003F4P6 with 16 KB of flash.
func New() *Simulator {
	s := &Simulator{
		ChipID:    0x0030,
		Mark:      0x00,
		FlashKB:   16,
		RawStatus: protocol.RawStatusOK,
		mem:       make(map[uint32]byte),
		regs:      make(map[uint8]uint32),
		locked:    true,
	}
	s.ResetCounters()
	return s
}

// ResetCounters clears the traffic counters without touching target state.
func (s *Simulator) ResetCounters() {
	s.CommandCount = 0
	s.RegWrites = make(map[uint8]int)
	s.RegReads = make(map[uint8]int)
	s.Loads = make(map[uint32]int)
}

// Locked reports whether the flash lock bits are still set.
func (s *Simulator) Locked() bool { return s.locked }

// ReadMem returns n bytes of target memory starting at addr.
func (s *Simulator) ReadMem(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = s.mem[addr+uint32(i)]
	}
	return out
}

// WriteMem seeds or mutates target memory directly.
func (s *Simulator) WriteMem(addr uint32, data []byte) {
	for i, b := range data {
		s.mem[addr+uint32(i)] = b
	}
}

// Command answers one framed probe command.
func (s *Simulator) Command(req []byte) ([]byte, error) {
	s.CommandCount++

	if len(req) >= 9 && req[0] == protocol.CmdHeader && req[1] == protocol.CmdRegister {
		return s.registerOp(req), nil
	}
	if len(req) < 2 || req[0] != protocol.CmdHeader {
		return []byte{0x82, 0x55, 0x01, 0x01}, nil
	}

	switch req[1] {
	case protocol.CmdControl:
		if len(req) >= 4 && req[3] == 0x01 { // link info
			return []byte{0x82, 0x0D, 0x04, 2, 11, protocol.LinkDeviceE}, nil
		}
		if len(req) >= 4 && req[3] == 0x02 { // attach
			return []byte{0x82, 0x0D, 0x04, s.Mark, byte(s.ChipID >> 8), byte(s.ChipID), 0x00, 0x00}, nil
		}
		return []byte{0x82, 0x0D, 0x01, 0x00}, nil
	case protocol.CmdChipData:
		return []byte{0x82, 0x11, byte(s.FlashKB >> 8), byte(s.FlashKB), 0x00, 0x00}, nil
	case protocol.CmdOptionBits:
		if len(req) == 4 && req[3] == 0x01 { // protection query
			st := byte(0x00)
			if s.Protected {
				st = 0x01
			}
			return []byte{0x82, 0x06, 0x01, st}, nil
		}
		s.Protected = false
		return []byte{0x82, 0x06, 0x01, 0x00}, nil
	default:
		return []byte{0x82, req[1], 0x01, 0x00}, nil
	}
}

// RawWrite captures a loader or page chunk pushed on the raw endpoint.
func (s *Simulator) RawWrite(p []byte) error {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	s.RawChunks = append(s.RawChunks, chunk)
	return nil
}

// RawRead returns the configured end-of-transfer status.
func (s *Simulator) RawRead() ([]byte, error) {
	return s.RawStatus, nil
}

func (s *Simulator) registerOp(req []byte) []byte {
	reg := req[3] & 0x7F
	if req[8] == 0x02 { // write
		value := binary.BigEndian.Uint32(req[4:8])
		s.RegWrites[reg]++
		s.writeReg(reg, value)
		return regReply(reg, value)
	}
	s.RegReads[reg]++
	return regReply(reg, s.readReg(reg))
}

func regReply(reg uint8, value uint32) []byte {
	reply := make([]byte, 9)
	reply[0] = 0x82
	reply[1] = protocol.CmdRegister
	reply[2] = 0x06
	reply[3] = reg
	binary.BigEndian.PutUint32(reply[4:8], value)
	return reply
}

func (s *Simulator) writeReg(reg uint8, value uint32) {
	switch reg {
	case protocol.DMAbstractAuto:
		s.autoexec = value != 0
		s.regs[reg] = value
	case protocol.DMAbstractCS:
		s.regs[reg] = 0
	case protocol.DMData0:
		s.regs[reg] = value
		if s.autoexec && s.regs[protocol.DMProgBuf0] == snipWrite0 {
			s.execWrite()
		}
	case protocol.DMCommand:
		s.regs[reg] = value
		s.abstractCommand(value)
	default:
		s.regs[reg] = value
	}
}

func (s *Simulator) readReg(reg uint8) uint32 {
	switch reg {
	case protocol.DMAbstractCS:
		return 0 // never busy, no command error
	case protocol.DMHartInfo:
		return 0x00000404
	case protocol.DMData0:
		value := s.regs[reg]
		if s.autoexec && s.regs[protocol.DMProgBuf0] == snipRead0 {
			s.execRead()
		}
		return value
	default:
		return s.regs[reg]
	}
}

func (s *Simulator) abstractCommand(cmd uint32) {
	switch cmd {
	case 0x00231009: // x9 = data0
		s.x9 = s.regs[protocol.DMData0]
	case 0x00271008: // x8 = data0, execute
		s.x8 = s.regs[protocol.DMData0]
		s.exec()
	case 0x00241000: // execute
		s.exec()
	case 0x00221008: // data0 = x8
		s.regs[protocol.DMData0] = s.x8
	}
}

func (s *Simulator) exec() {
	switch s.regs[protocol.DMProgBuf0] {
	case snipWrite0:
		s.execWrite()
	case snipRead0:
		s.execRead()
	case snipStoreByte:
		s.storeBytes(s.x9, 1, s.x8)
	case snipStoreHalf:
		s.storeBytes(s.x9, 2, s.x8)
	case snipLoadByte:
		s.x8 = s.loadBytes(s.x9, 1)
	case snipLoadHalf:
		s.x8 = s.loadBytes(s.x9, 2)
	}
}

// execWrite models the armed write snippet: store the staged word at the
// staged address, then advance the address in place.
func (s *Simulator) execWrite() {
	addr := s.regs[protocol.DMData1]
	s.storeBytes(addr, 4, s.regs[protocol.DMData0])
	s.regs[protocol.DMData1] = addr + 4
}

// execRead models the armed read snippet: fetch the word at the staged
// address into data0; the incrementing variant advances the address.
func (s *Simulator) execRead() {
	addr := s.regs[protocol.DMData1]
	s.regs[protocol.DMData0] = s.loadBytes(addr, 4)
	if s.regs[protocol.DMProgBuf1] == snipReadInc {
		s.regs[protocol.DMData1] = addr + 4
	}
}

func (s *Simulator) storeBytes(addr uint32, n int, value uint32) {
	if addr == protocol.FlashKEYR {
		s.trackKeys(value)
	}
	if addr == protocol.FlashCTLR && value&protocol.CtlSTRT != 0 {
		if value&(protocol.CtlFTER|protocol.CtlMER) != 0 {
			s.Erases++
		}
		if value&protocol.CtlFTPG != 0 {
			s.ProgramStarts++
		}
	}
	for i := 0; i < n; i++ {
		s.mem[addr+uint32(i)] = byte(value >> (8 * i))
	}
}

func (s *Simulator) loadBytes(addr uint32, n int) uint32 {
	s.Loads[addr]++
	switch addr {
	case protocol.FlashSTATR:
		if s.BusyForever {
			return protocol.StatBusy
		}
		if s.WriteProtected {
			return protocol.StatWRProtect
		}
		return 0
	case protocol.FlashCTLR:
		value := s.rawLoad(addr, n)
		if s.locked {
			value |= protocol.CtlLock
		}
		return value
	}
	return s.rawLoad(addr, n)
}

func (s *Simulator) rawLoad(addr uint32, n int) uint32 {
	var value uint32
	for i := 0; i < n; i++ {
		value |= uint32(s.mem[addr+uint32(i)]) << (8 * i)
	}
	return value
}

// trackKeys clears the lock bits once the two-word key sequence lands in
// the flash key register.
func (s *Simulator) trackKeys(value uint32) {
	switch {
	case value == protocol.FlashKey1:
		s.keyArmed = true
	case s.keyArmed && value == protocol.FlashKey2 && !s.UnlockRefused:
		s.locked = false
		s.keyArmed = false
	default:
		s.keyArmed = false
	}
}
