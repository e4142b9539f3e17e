package debug

import (
	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// HaltMode selects one of the fixed debug configurations the core must be
// placed in before flash or pin operations.
type HaltMode int

const (
	HaltModeUnset HaltMode = iota
	HaltModeRun            // resume the core
	HaltModeErase          // reset and halt, required before erase/program
	HaltModeAlt            // halt without the reset pulse
	HaltModeFlashKeyed     // reset-halt with the flash and boot keys presented
)

func (m HaltMode) String() string {
	switch m {
	case HaltModeUnset:
		return "unset"
	case HaltModeRun:
		return "run"
	case HaltModeErase:
		return "erase"
	case HaltModeAlt:
		return "alt"
	case HaltModeFlashKeyed:
		return "flash-keyed"
	}
	return "invalid"
}

// haltStep is one write in a halt sequence: either a DM register write or
// a word store into target memory.
type haltStep struct {
	mem   bool
	reg   uint8
	addr  uint32
	value uint32
}

func regStep(reg uint8, value uint32) haltStep { return haltStep{reg: reg, value: value} }
func memStep(addr, value uint32) haltStep {
	return haltStep{mem: true, addr: addr, value: value}
}

// The clock-config unlock word armed into the shadow and live config
// registers before touching DMCONTROL.
const cfgUnlock = 0x5AA50000 | (1 << 10)

// Each mode is a literal sequence of writes; the sequences are data so
// they can be inspected and tested in isolation.
var haltSequences = map[HaltMode][]haltStep{
	HaltModeErase: {
		regStep(protocol.DMShdwCfgR, cfgUnlock),
		regStep(protocol.DMCfgR, cfgUnlock),
		regStep(protocol.DMCfgR, cfgUnlock),
		regStep(protocol.DMControl, 0x80000001),
		regStep(protocol.DMControl, 0x80000003),
		regStep(protocol.DMControl, 0x80000001),
	},
	HaltModeRun: {
		regStep(protocol.DMControl, 0x80000001),
		regStep(protocol.DMControl, 0x80000001),
		regStep(protocol.DMControl, 0x80000003),
		regStep(protocol.DMControl, 0x40000001),
	},
	HaltModeAlt: {
		regStep(protocol.DMShdwCfgR, cfgUnlock),
		regStep(protocol.DMCfgR, cfgUnlock),
		regStep(protocol.DMCfgR, cfgUnlock),
		regStep(protocol.DMControl, 0x40000001),
	},
	HaltModeFlashKeyed: {
		regStep(protocol.DMControl, 0x80000001),
		regStep(protocol.DMControl, 0x80000001),
		memStep(protocol.FlashKEYR, protocol.FlashKey1),
		memStep(protocol.FlashKEYR, protocol.FlashKey2),
		memStep(protocol.FlashBootModeKEY, protocol.FlashKey1),
		memStep(protocol.FlashBootModeKEY, protocol.FlashKey2),
		memStep(protocol.FlashSTATR, 1<<14),
		memStep(protocol.FlashCTLR, 1<<7),
		regStep(protocol.DMControl, 0x80000003),
		regStep(protocol.DMControl, 0x40000001),
	},
}

// EnterHaltMode runs the mode's write sequence. Register writes go through
// WriteReg and so invalidate the sequence cache; asking for a mode with no
// sequence is a programming error.
func (s *Session) EnterHaltMode(mode HaltMode) error {
	steps, ok := haltSequences[mode]
	if !ok {
		return &InvalidHaltModeError{Mode: mode}
	}

	log.Debugf("entering halt mode %s", mode)
	for _, st := range steps {
		var err error
		if st.mem {
			err = s.WriteWord(st.addr, st.value)
		} else {
			err = s.WriteReg(st.reg, st.value)
		}
		if err != nil {
			return err
		}
	}
	s.Invalidate()
	s.haltMode = mode
	return nil
}
