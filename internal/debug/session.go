// Package debug drives the on-die RISC-V debug module of a WCH CH32
// target through a WCH-Link probe. A Session owns the register-level
// access path and the sequence cache that avoids re-arming the program
// buffer between consecutive same-kind memory accesses.
package debug

import (
	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/device"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Transport is the blocking request/reply channel to the probe. The USB
// link implements it; tests substitute a simulator.
type Transport interface {
	Command(req []byte) ([]byte, error)
}

// seqState tags what the program buffer currently holds. Any access that
// cannot prove the buffer still matches must go through a full re-arm.
type seqState int

const (
	seqFresh   seqState = iota // nothing is known about the program buffer
	seqWrite                   // write snippet armed, cursor at next address
	seqRead                    // read snippet armed, cursor at next address
	seqInvalid                 // a register access outside the cache clobbered it
)

// Abstract command completion is polled until the busy bit clears. The
// budget only guards against a wedged DM; a healthy part answers within a
// handful of polls.
const abstractPollBudget = 4096

// Session is the exclusive handle on one connected target. It is not safe
// for concurrent use; all state below assumes strict temporal ordering of
// operations on a single control goroutine.
type Session struct {
	t Transport

	state      seqState
	cursor     uint32 // next address the armed sequence will touch
	flashClass bool   // armed write snippet carries the flash kick
	autoinc    bool   // armed read snippet advances the address

	data0Offset uint32 // progbuf data register location, from DMHARTINFO
	data0Known  bool

	haltMode HaltMode

	// FlashUnlocked makes the flash controller's unlock sequence
	// idempotent across calls.
	FlashUnlocked bool

	profile   *device.Profile
	flashSize uint32
}

// NewSession wraps a transport. Connect must succeed before any memory or
// flash operation is attempted.
func NewSession(t Transport) *Session {
	return &Session{t: t, state: seqFresh}
}

// Profile returns the attached chip's profile, or nil before Connect.
func (s *Session) Profile() *device.Profile { return s.profile }

// FlashSize returns the usable flash capacity in bytes.
func (s *Session) FlashSize() uint32 { return s.flashSize }

// HaltMode returns the last mode entered, HaltModeUnset before any.
func (s *Session) HaltMode() HaltMode { return s.haltMode }

// Invalidate forces a full program-buffer re-arm on the next memory
// access. Called whenever registers are touched outside the cache.
func (s *Session) Invalidate() { s.state = seqInvalid }

// Invalidated reports whether the cache holds no assumption. Used by the
// flash controller after a poll budget runs out.
func (s *Session) Invalidated() bool { return s.state == seqInvalid }

// regWrite is the raw register write primitive; it does not disturb the
// sequence cache and is reserved for the cache's own traffic.
func (s *Session) regWrite(reg uint8, value uint32) error {
	reply, err := s.t.Command(protocol.RegisterWrite(reg, value))
	if err != nil {
		return err
	}
	_, err = protocol.ParseRegisterReply(reg, reply)
	return err
}

// regRead is the raw register read primitive.
func (s *Session) regRead(reg uint8) (uint32, error) {
	reply, err := s.t.Command(protocol.RegisterRead(reg))
	if err != nil {
		return 0, err
	}
	return protocol.ParseRegisterReply(reg, reply)
}

// WriteReg writes a DM register from outside the memory-access path and
// therefore invalidates the sequence cache.
func (s *Session) WriteReg(reg uint8, value uint32) error {
	s.Invalidate()
	return s.regWrite(reg, value)
}

// ReadReg reads a DM register from outside the memory-access path.
func (s *Session) ReadReg(reg uint8) (uint32, error) {
	s.Invalidate()
	return s.regRead(reg)
}

// waitAbstract blocks until the pending abstract command retires. A
// reported command error is cleared and surfaced.
func (s *Session) waitAbstract(op string) error {
	for i := 0; i < abstractPollBudget; i++ {
		cs, err := s.regRead(protocol.DMAbstractCS)
		if err != nil {
			return err
		}
		if cs&(1<<12) != 0 {
			continue
		}
		if cmderr := (cs >> 8) & 7; cmderr != 0 {
			if err := s.regWrite(protocol.DMAbstractCS, 0x00000700); err != nil {
				return err
			}
			return &ProtocolError{Op: op, CmdErr: cmderr}
		}
		return nil
	}
	return &ProtocolError{Op: op, Timeout: true}
}

// armDataRegs points the program-buffer snippets at the DM data registers
// and the flash control word. The data register offset comes from hart
// info once per session and is cached thereafter.
func (s *Session) armDataRegs() error {
	if !s.data0Known {
		info, err := s.regRead(protocol.DMHartInfo)
		if err != nil {
			return err
		}
		s.data0Offset = 0xE0000000 | (info & 0x7FF)
		s.data0Known = true
		log.Debugf("progbuf data registers at 0x%08x", s.data0Offset)
	}
	steps := []struct {
		value uint32
		cmd   uint32
	}{
		{s.data0Offset, 0x0023100A},
		{s.data0Offset + 4, 0x0023100B},
		{protocol.FlashCTLR, 0x0023100C},
		{0x00050000, 0x0023100D},
	}
	for _, st := range steps {
		if err := s.regWrite(protocol.DMData0, st.value); err != nil {
			return err
		}
		if err := s.regWrite(protocol.DMCommand, st.cmd); err != nil {
			return err
		}
	}
	return nil
}
