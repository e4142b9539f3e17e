// Package flash programs the code flash of a connected CH32 target, either
// word by word through the debug module or via the probe-assisted loader
// stub on the raw endpoints.
package flash

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/debug"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Busy-flag polls allowed per flash operation before giving up.
const defaultPollBudget = 100

// ProgressFunc reports page programming progress.
type ProgressFunc func(page, total int)

// Controller sequences unlock, erase, program and verify against one
// debug session. Like the session it belongs to a single control
// goroutine.
type Controller struct {
	s          *debug.Session
	pollBudget int
	progress   ProgressFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollBudget overrides the busy-flag poll budget.
func WithPollBudget(n int) Option {
	return func(c *Controller) { c.pollBudget = n }
}

// WithProgress sets a page progress callback.
func WithProgress(cb ProgressFunc) Option {
	return func(c *Controller) { c.progress = cb }
}

// New creates a Controller over a connected session.
func New(s *debug.Session, opts ...Option) *Controller {
	c := &Controller{s: s, pollBudget: defaultPollBudget}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) reportProgress(page, total int) {
	if c.progress != nil {
		c.progress(page, total)
	}
}

// waitReady polls the flash status register until the busy bit clears.
// Exhausting the budget leaves the sequence cache invalidated, since the
// device state can no longer be trusted.
func (c *Controller) waitReady() error {
	for i := 0; i < c.pollBudget; i++ {
		stat, err := c.s.ReadWord(protocol.FlashSTATR)
		if err != nil {
			return err
		}
		if stat&protocol.StatBusy == 0 {
			if stat&protocol.StatWRProtect != 0 {
				return ErrProtected
			}
			return nil
		}
	}
	c.s.Invalidate()
	return ErrTimeout
}

// Unlock presents the flash key pairs if the lock bits are set. Idempotent
// per session: once unlocked, repeat calls issue no traffic.
func (c *Controller) Unlock() error {
	if c.s.FlashUnlocked {
		return nil
	}
	ctl, err := c.s.ReadWord(protocol.FlashCTLR)
	if err != nil {
		return err
	}
	if ctl&protocol.CtlLock != 0 {
		keyRegs := []uint32{protocol.FlashKEYR, protocol.FlashOBKEYR, protocol.FlashModeKEYR}
		for _, reg := range keyRegs {
			if err := c.s.WriteWord(reg, protocol.FlashKey1); err != nil {
				return err
			}
			if err := c.s.WriteWord(reg, protocol.FlashKey2); err != nil {
				return err
			}
		}
		ctl, err = c.s.ReadWord(protocol.FlashCTLR)
		if err != nil {
			return err
		}
		if ctl&protocol.CtlLock != 0 {
			return ErrUnlockFailed
		}
	}
	c.s.FlashUnlocked = true
	return nil
}

// UnlockBoot opens the boot sector for writing.
func (c *Controller) UnlockBoot() error {
	if err := c.s.WriteWord(protocol.FlashBootModeKEY, protocol.FlashKey1); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashBootModeKEY, protocol.FlashKey2); err != nil {
		return err
	}
	obt, err := c.s.ReadWord(protocol.FlashOBKEYR)
	if err != nil {
		return err
	}
	if obt&(1<<15) != 0 {
		return ErrUnlockFailed
	}
	return c.s.WriteWord(protocol.FlashOBKEYR, obt|(1<<14))
}

// EraseChip erases the whole code flash through the debug module.
func (c *Controller) EraseChip() error {
	if err := c.Unlock(); err != nil {
		return err
	}
	c.s.Invalidate()
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlMER); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlMER|protocol.CtlSTRT); err != nil {
		return err
	}
	if err := c.waitReady(); err != nil {
		return err
	}
	return c.s.WriteWord(protocol.FlashCTLR, 0)
}

// ErasePage fast-erases one page.
func (c *Controller) ErasePage(base uint32) error {
	if err := c.Unlock(); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTER); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashADDR, base); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTER|protocol.CtlSTRT); err != nil {
		return err
	}
	if err := c.waitReady(); err != nil {
		return err
	}
	return c.s.WriteWord(protocol.FlashCTLR, 0)
}

// ProgramPage erases and fast-programs one page. The page must already be
// padded to the device block size.
func (c *Controller) ProgramPage(base uint32, page []byte) error {
	if err := c.ErasePage(base); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTPG); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTPG|protocol.CtlBufRst); err != nil {
		return err
	}
	if err := c.waitReady(); err != nil {
		return err
	}

	addr := base
	for i := 0; i < len(page); i += 4 {
		word := binary.LittleEndian.Uint32(page[i : i+4])
		if err := c.s.WriteWord(addr, word); err != nil {
			return err
		}
		if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTPG|protocol.CtlBufLoad); err != nil {
			return err
		}
		if err := c.waitReady(); err != nil {
			return err
		}
		addr += 4
	}

	if err := c.s.WriteWord(protocol.FlashADDR, base); err != nil {
		return err
	}
	if err := c.s.WriteWord(protocol.FlashCTLR, protocol.CtlFTPG|protocol.CtlSTRT); err != nil {
		return err
	}
	if err := c.waitReady(); err != nil {
		return err
	}
	return c.s.WriteWord(protocol.FlashCTLR, 0)
}

// FlashBlob programs data at addr page by page. Capacity and alignment are
// validated before any bus traffic; the payload is padded to whole pages
// with 0xFF.
func (c *Controller) FlashBlob(addr uint32, data []byte) error {
	if len(data) > int(c.s.FlashSize()) {
		return &CapacityError{Size: len(data), Capacity: c.s.FlashSize()}
	}
	blockSize := c.s.Profile().BlockSize
	if addr%blockSize != 0 {
		return &AlignmentError{Addr: addr, BlockSize: blockSize}
	}

	pages := PageData(PadData(data, blockSize), blockSize)
	log.Debugf("programming %d pages of %d bytes at 0x%08X", len(pages), blockSize, addr)
	for i, page := range pages {
		if err := c.ProgramPage(addr, page); err != nil {
			return err
		}
		addr += blockSize
		c.reportProgress(i+1, len(pages))
	}
	return nil
}

// Flash programs data at the code base.
func (c *Controller) Flash(data []byte) error {
	return c.FlashBlob(protocol.CodeBase, data)
}

// VerifyBlob reads len(data) bytes back and reports the first difference.
func (c *Controller) VerifyBlob(addr uint32, data []byte) error {
	dump, err := c.s.ReadBlob(addr, len(data))
	if err != nil {
		return err
	}
	for i := range data {
		if dump[i] != data[i] {
			return &VerifyError{Offset: i, Want: data[i], Got: dump[i]}
		}
	}
	return nil
}

// Verify checks data against the code base.
func (c *Controller) Verify(data []byte) error {
	return c.VerifyBlob(protocol.CodeBase, data)
}

// PadData pads data with 0xFF up to a whole number of pages.
func PadData(data []byte, pageSize uint32) []byte {
	rem := len(data) % int(pageSize)
	if rem == 0 {
		return data
	}
	padded := make([]byte, len(data), len(data)+int(pageSize)-rem)
	copy(padded, data)
	for i := rem; i < int(pageSize); i++ {
		padded = append(padded, 0xFF)
	}
	return padded
}

// PageData splits padded data into page slices.
func PageData(data []byte, pageSize uint32) [][]byte {
	var pages [][]byte
	for len(data) > 0 {
		n := int(pageSize)
		if n > len(data) {
			n = len(data)
		}
		pages = append(pages, data[:n])
		data = data[n:]
	}
	return pages
}
