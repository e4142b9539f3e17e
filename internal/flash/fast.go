package flash

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/device"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

// Loader stubs are always pushed in 128-byte chunks regardless of the
// device block size.
const loaderChunkSize = 128

// RawTransport is the probe channel the loader path needs: framed commands
// plus the raw endpoint pair for bulk page uploads.
type RawTransport interface {
	Command(req []byte) ([]byte, error)
	RawWrite(p []byte) error
	RawRead() ([]byte, error)
}

// FastProgram uploads the device's loader stub into target RAM and streams
// the payload through it on the raw endpoints. The probe programs and
// verifies each page itself and reports a single status at the end.
func FastProgram(t RawTransport, profile *device.Profile, addr uint32, data []byte, progress ProgressFunc) error {
	if len(data) > int(profile.FlashSize) {
		return &CapacityError{Size: len(data), Capacity: profile.FlashSize}
	}
	if addr%profile.BlockSize != 0 {
		return &AlignmentError{Addr: addr, BlockSize: profile.BlockSize}
	}

	if err := clearProtection(t, profile.Series()); err != nil {
		return err
	}

	padded := PadData(data, profile.BlockSize)
	if _, err := t.Command(protocol.RangeHeader(addr, uint32(len(padded)))); err != nil {
		return err
	}

	if _, err := t.Command(protocol.FlowMarker(protocol.FlowLoaderPush)); err != nil {
		return err
	}
	loader := profile.Loader()
	log.Debugf("uploading %d-byte loader stub", len(loader))
	for _, chunk := range PageData(PadData(loader, loaderChunkSize), loaderChunkSize) {
		if err := t.RawWrite(chunk); err != nil {
			return err
		}
	}
	if _, err := t.Command(protocol.FlowMarker(protocol.FlowLoaderDone)); err != nil {
		return err
	}

	if _, err := t.Command(protocol.FlowMarker(protocol.FlowDataFollow)); err != nil {
		return err
	}
	pages := PageData(padded, profile.BlockSize)
	for i, page := range pages {
		if err := t.RawWrite(page); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(pages))
		}
	}

	status, err := t.RawRead()
	if err != nil {
		return err
	}
	if !bytes.Equal(status, protocol.RawStatusOK) {
		return fmt.Errorf("loader reported failure writing/verifying data (status % x)", status)
	}
	return nil
}

// clearProtection removes read protection through the probe when it is
// active; removal implies a chip erase, which the caller is about to do
// anyway.
func clearProtection(t RawTransport, series byte) error {
	reply, err := t.Command(protocol.QueryProtection())
	if err != nil {
		return err
	}
	if len(reply) > 3 && reply[3] == 0x01 {
		log.Debug("read protection active, clearing")
		if _, err := t.Command(protocol.OptionBits(false, series)); err != nil {
			return err
		}
	}
	return nil
}
