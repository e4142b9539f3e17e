package debug

import (
	"encoding/binary"

	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Program-buffer snippets. The write sequence stages address and value in
// the data registers; the flash variant ends with the bus kick that pushes
// the word at the flash controller, the RAM variant with a plain nop.
const (
	pbWrite0     = 0xC0804184
	pbWrite1     = 0xC1840491
	pbWriteFlash = 0x9002C214
	pbWriteRAM   = 0x00019002

	pbRead0      = 0x40044180
	pbRead1Inc   = 0xC1040411
	pbRead1NoInc = 0xC1040001
	pbRead2      = 0x9002C180

	pbStoreByte = 0x00848023 // sb x8, 0(x9)
	pbLoadByte  = 0x00048403 // lb x8, 0(x9)
	pbStoreHalf = 0x00849023 // sh x8, 0(x9)
	pbLoadHalf  = 0x00049403 // lh x8, 0(x9)
	pbEbreak    = 0x00100073
)

// Abstract commands used by the one-shot access snippets.
const (
	cmdSetAddr  = 0x00231009 // x9 = data0
	cmdSetData  = 0x00271008 // x8 = data0, then execute program buffer
	cmdExec     = 0x00241000 // execute program buffer
	cmdReadBack = 0x00221008 // data0 = x8
)

// WriteWord writes a 32-bit word to target memory. Consecutive writes of
// the same class (flash vs RAM) to contiguous addresses reuse the armed
// program buffer and only touch the data registers.
func (s *Session) WriteWord(addr, value uint32) error {
	isFlash := protocol.IsFlashAddr(addr)

	if s.state != seqWrite || isFlash != s.flashClass {
		rearmed := false
		if s.state != seqWrite {
			if err := s.regWrite(protocol.DMAbstractAuto, 0); err != nil {
				return err
			}
			rearmed = true
			if err := s.regWrite(protocol.DMProgBuf0, pbWrite0); err != nil {
				return err
			}
			if err := s.regWrite(protocol.DMProgBuf1, pbWrite1); err != nil {
				return err
			}
			if s.state != seqRead {
				if err := s.armDataRegs(); err != nil {
					return err
				}
			}
		}
		kick := uint32(pbWriteRAM)
		if isFlash {
			kick = pbWriteFlash
		}
		if err := s.regWrite(protocol.DMProgBuf2, kick); err != nil {
			return err
		}
		if err := s.regWrite(protocol.DMData1, addr); err != nil {
			return err
		}
		if err := s.regWrite(protocol.DMData0, value); err != nil {
			return err
		}
		if rearmed {
			if err := s.regWrite(protocol.DMCommand, cmdSetData); err != nil {
				return err
			}
			if err := s.regWrite(protocol.DMAbstractAuto, 1); err != nil {
				return err
			}
		}
		s.state = seqWrite
		s.flashClass = isFlash
		s.cursor = addr
		if isFlash {
			if err := s.waitAbstract("write word"); err != nil {
				return err
			}
		}
	} else {
		if addr != s.cursor {
			if err := s.regWrite(protocol.DMAbstractAuto, 0); err != nil {
				return err
			}
			if err := s.regWrite(protocol.DMData1, addr); err != nil {
				return err
			}
			if err := s.regWrite(protocol.DMAbstractAuto, 1); err != nil {
				return err
			}
			s.cursor = addr
		}
		if err := s.regWrite(protocol.DMData0, value); err != nil {
			return err
		}
		if err := s.waitAbstract("write word"); err != nil {
			return err
		}
	}

	s.cursor += 4
	return nil
}

// ReadWord reads a 32-bit word from target memory. The flash control and
// status registers are always read with the non-incrementing snippet so
// they can be polled in place.
func (s *Session) ReadWord(addr uint32) (uint32, error) {
	autoinc := protocol.AutoIncrement(addr)

	if s.state != seqRead || addr != s.cursor || autoinc != s.autoinc {
		if s.state != seqRead || autoinc != s.autoinc {
			if err := s.regWrite(protocol.DMAbstractAuto, 0); err != nil {
				return 0, err
			}
			if err := s.regWrite(protocol.DMProgBuf0, pbRead0); err != nil {
				return 0, err
			}
			step := uint32(pbRead1NoInc)
			if autoinc {
				step = pbRead1Inc
			}
			if err := s.regWrite(protocol.DMProgBuf1, step); err != nil {
				return 0, err
			}
			if err := s.regWrite(protocol.DMProgBuf2, pbRead2); err != nil {
				return 0, err
			}
			if s.state != seqWrite {
				if err := s.armDataRegs(); err != nil {
					return 0, err
				}
			}
			if err := s.regWrite(protocol.DMAbstractAuto, 1); err != nil {
				return 0, err
			}
			s.autoinc = autoinc
		}
		if err := s.regWrite(protocol.DMData1, addr); err != nil {
			return 0, err
		}
		if err := s.regWrite(protocol.DMCommand, cmdExec); err != nil {
			return 0, err
		}
		s.state = seqRead
		s.cursor = addr
		if err := s.waitAbstract("read word"); err != nil {
			return 0, err
		}
	}

	if s.autoinc {
		s.cursor += 4
	}
	value, err := s.regRead(protocol.DMData0)
	if err != nil {
		return 0, err
	}
	// The prefetch triggered by reading data0 may run past the top of the
	// CH32V003's 2KB RAM; settle it before it can leave a sticky error.
	if s.cursor == protocol.RAMBase+2048 {
		if err := s.waitAbstract("read word"); err != nil {
			return 0, err
		}
	}
	return value, nil
}

// oneShot installs a single-use program buffer for a sub-word access and
// leaves the cache invalidated, since these snippets share nothing with
// the word sequences.
func (s *Session) oneShot(snippet uint32) error {
	s.Invalidate()
	if err := s.regWrite(protocol.DMAbstractAuto, 0); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMProgBuf0, snippet); err != nil {
		return err
	}
	return s.regWrite(protocol.DMProgBuf1, pbEbreak)
}

// WriteByte writes one byte to target memory.
func (s *Session) WriteByte(addr uint32, value byte) error {
	return s.subWordWrite(pbStoreByte, addr, uint32(value))
}

// WriteHalf writes a 16-bit halfword to target memory.
func (s *Session) WriteHalf(addr uint32, value uint16) error {
	return s.subWordWrite(pbStoreHalf, addr, uint32(value))
}

func (s *Session) subWordWrite(snippet, addr, value uint32) error {
	if err := s.oneShot(snippet); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMData0, addr); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMCommand, cmdSetAddr); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMData0, value); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMCommand, cmdSetData); err != nil {
		return err
	}
	return s.waitAbstract("sub-word write")
}

// ReadByte reads one byte from target memory.
func (s *Session) ReadByte(addr uint32) (byte, error) {
	v, err := s.subWordRead(pbLoadByte, addr)
	return byte(v), err
}

// ReadHalf reads a 16-bit halfword from target memory.
func (s *Session) ReadHalf(addr uint32) (uint16, error) {
	v, err := s.subWordRead(pbLoadHalf, addr)
	return uint16(v), err
}

func (s *Session) subWordRead(snippet, addr uint32) (uint32, error) {
	if err := s.oneShot(snippet); err != nil {
		return 0, err
	}
	if err := s.regWrite(protocol.DMData0, addr); err != nil {
		return 0, err
	}
	if err := s.regWrite(protocol.DMCommand, cmdSetAddr); err != nil {
		return 0, err
	}
	if err := s.regWrite(protocol.DMCommand, cmdExec); err != nil {
		return 0, err
	}
	if err := s.regWrite(protocol.DMCommand, cmdReadBack); err != nil {
		return 0, err
	}
	if err := s.waitAbstract("sub-word read"); err != nil {
		return 0, err
	}
	return s.regRead(protocol.DMData0)
}

// ReadBlob reads count bytes starting at addr, greedily picking the widest
// access the current address and remaining count allow: words first, a
// byte when the address is odd or a single byte remains, halfwords
// otherwise.
func (s *Session) ReadBlob(addr uint32, count int) ([]byte, error) {
	blob := make([]byte, 0, count)
	for count > 0 {
		switch {
		case addr&3 == 0 && count >= 4:
			v, err := s.ReadWord(addr)
			if err != nil {
				return nil, err
			}
			blob = binary.LittleEndian.AppendUint32(blob, v)
			addr += 4
			count -= 4
		case addr&1 != 0 || count == 1:
			v, err := s.ReadByte(addr)
			if err != nil {
				return nil, err
			}
			blob = append(blob, v)
			addr++
			count--
		default:
			v, err := s.ReadHalf(addr)
			if err != nil {
				return nil, err
			}
			blob = binary.LittleEndian.AppendUint16(blob, v)
			addr += 2
			count -= 2
		}
	}
	return blob, nil
}
