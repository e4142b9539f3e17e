package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Transfer deadline for every command and raw exchange.
const transferTimeout = 5000 * time.Millisecond

// Short deadline used only to drain stale replies at session start.
const drainTimeout = 20 * time.Millisecond

var (
	// ErrLinkUnavailable means no WCH-Link in RISC-V mode could be opened.
	ErrLinkUnavailable = errors.New("WCH-Link not found (is the probe in RISC-V mode?)")

	// ErrLinkTimeout means the probe did not reply within the transfer
	// deadline. The session is unusable and must be torn down.
	ErrLinkTimeout = errors.New("timeout waiting for probe reply")
)

// Device is an exclusive handle on a WCH-LinkE probe. It owns the USB
// interface claim and the two bulk endpoint pairs: the command pair for
// framed request/reply exchanges and the raw pair for loader and page
// uploads.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	cmdOut *gousb.OutEndpoint
	cmdIn  *gousb.InEndpoint
	rawOut *gousb.OutEndpoint
	rawIn  *gousb.InEndpoint

	// Version is the probe firmware version, filled by Identify.
	Version string

	closed bool
}

// Open claims the first WCH-Link enumerating in RISC-V mode and drains any
// stale buffered replies left over from a previous session.
func Open() (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(protocol.VendorID, protocol.ProductRV)
	if err != nil || dev == nil {
		ctx.Close()
		if err != nil {
			log.Debugf("usb open: %v", err)
		}
		return nil, ErrLinkUnavailable
	}

	d := &Device{ctx: ctx, dev: dev}
	if err := d.claim(); err != nil {
		d.release()
		return nil, fmt.Errorf("%w: %v", ErrLinkUnavailable, err)
	}

	d.Drain()
	return d, nil
}

func (d *Device) claim() error {
	var err error
	if err = d.dev.SetAutoDetach(true); err != nil {
		return err
	}
	if d.cfg, err = d.dev.Config(1); err != nil {
		return fmt.Errorf("request configuration #1: %w", err)
	}
	if d.intf, err = d.cfg.Interface(0, 0); err != nil {
		return fmt.Errorf("claim interface 0,0: %w", err)
	}
	if d.cmdOut, err = d.intf.OutEndpoint(protocol.EndpointCmdOut); err != nil {
		return err
	}
	if d.cmdIn, err = d.intf.InEndpoint(protocol.EndpointCmdIn & 0x0F); err != nil {
		return err
	}
	if d.rawOut, err = d.intf.OutEndpoint(protocol.EndpointRawOut); err != nil {
		return err
	}
	if d.rawIn, err = d.intf.InEndpoint(protocol.EndpointRawIn & 0x0F); err != nil {
		return err
	}
	return nil
}

// Command sends one framed command and blocks for its reply.
func (d *Device) Command(req []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	log.Tracef("link tx % x", req)
	if _, err := d.cmdOut.WriteContext(ctx, req); err != nil {
		return nil, wrapTransfer(err)
	}

	buf := make([]byte, protocol.PacketSize)
	n, err := d.cmdIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, wrapTransfer(err)
	}
	log.Tracef("link rx % x", buf[:n])
	return buf[:n], nil
}

// RawWrite pushes one page chunk on the raw endpoint. No reply is expected
// until the transfer's final status read.
func (d *Device) RawWrite(p []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	if _, err := d.rawOut.WriteContext(ctx, p); err != nil {
		return wrapTransfer(err)
	}
	return nil
}

// RawRead blocks for the raw endpoint status reply.
func (d *Device) RawRead() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	buf := make([]byte, protocol.PacketSize)
	n, err := d.rawIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, wrapTransfer(err)
	}
	return buf[:n], nil
}

// Drain discards any stale reply sitting in either IN endpoint. Absence of
// data is the normal case and is ignored.
func (d *Device) Drain() {
	for _, ep := range []*gousb.InEndpoint{d.cmdIn, d.rawIn} {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		buf := make([]byte, protocol.PacketSize)
		if n, err := ep.ReadContext(ctx, buf); err == nil && n > 0 {
			log.Debugf("drained %d stale bytes from endpoint", n)
		}
		cancel()
	}
}

// Identify verifies the probe is a WCH-LinkE and records its firmware
// version.
func (d *Device) Identify() error {
	reply, err := d.Command(protocol.LinkInfo())
	if err != nil {
		return err
	}
	if len(reply) < 6 || reply[5] != protocol.LinkDeviceE {
		return errors.New("probe is not a WCH-LinkE")
	}
	d.Version = fmt.Sprintf("%d.%d", reply[3], reply[4])
	return nil
}

// Close releases the target and the USB claim. Both disconnect commands are
// sent unconditionally so the probe never keeps the target held after an
// aborted session. Safe to call more than once.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true

	if d.cmdOut != nil {
		if _, err := d.Command(protocol.Detach()); err != nil {
			log.Debugf("detach: %v", err)
		}
		if _, err := d.Command(protocol.Shutdown()); err != nil {
			log.Debugf("shutdown: %v", err)
		}
	}
	d.release()
}

func (d *Device) release() {
	if d.intf != nil {
		d.intf.Close()
	}
	if d.cfg != nil {
		d.cfg.Close()
	}
	if d.dev != nil {
		d.dev.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
}

func wrapTransfer(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLinkTimeout
	}
	return fmt.Errorf("usb transfer: %w", err)
}

// SwitchToRV finds a probe enumerating in ARM mode and flips it to RISC-V
// mode. The probe re-enumerates a couple of seconds later.
func SwitchToRV() error {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(protocol.VendorID, protocol.ProductARM)
	if err != nil || dev == nil {
		return errors.New("no WCH-Link in ARM mode found")
	}
	defer dev.Close()

	cfg, err := dev.Config(1)
	if err != nil {
		return err
	}
	defer cfg.Close()

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		return err
	}
	defer intf.Close()

	out, err := intf.OutEndpoint(protocol.EndpointCmdOut)
	if err != nil {
		return err
	}
	_, err = out.Write(protocol.ModeSwitchRV())
	return err
}

// SwitchToARM flips an open RISC-V mode probe back to ARM mode. The command
// is fire-and-forget; the probe drops off the bus to re-enumerate.
func (d *Device) SwitchToARM() error {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	_, err := d.cmdOut.WriteContext(ctx, protocol.ModeSwitchARM())
	return err
}
