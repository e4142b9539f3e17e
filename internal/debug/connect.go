package debug

import (
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bigbag/rvlink-flasher/internal/device"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

const (
	connectAttempts = 3
	connectRetryGap = 200 * time.Millisecond
)

// Connect attaches the probe to the target, identifies the chip and
// initializes the debug module. The identify exchange is the one place a
// bounded retry is designed in: a locked-up target often answers after an
// unbrick pulse.
func (s *Session) Connect() (*device.Profile, error) {
	var lastErr error

	for attempt := 0; attempt < connectAttempts; attempt++ {
		if attempt > 0 {
			log.Debug("attach failed, pulsing unbrick before retry")
			if _, err := s.t.Command(protocol.Unbrick()); err != nil {
				lastErr = err
			}
			time.Sleep(connectRetryGap)
		}

		reply, err := s.t.Command(protocol.Attach())
		if err != nil {
			lastErr = err
			continue
		}
		if len(reply) < 8 || noTargetReply(reply) {
			lastErr = fmt.Errorf("no target answered the attach probe")
			time.Sleep(connectRetryGap)
			continue
		}

		mark := reply[3]
		chipID := uint16(reply[4])<<8 | uint16(reply[5])
		profile, err := device.Lookup(chipID)
		if err != nil {
			lastErr = err
			continue
		}

		if err := s.initDM(); err != nil {
			lastErr = err
			continue
		}

		s.profile = profile
		s.flashSize = profile.FlashSize
		if size, ok := s.probeFlashSize(mark); ok {
			s.flashSize = size
		}

		s.state = seqFresh
		s.haltMode = HaltModeUnset
		s.FlashUnlocked = false
		log.Debugf("attached to %s (ID 0x%04X, %d KB flash)", profile.Name, chipID, s.flashSize/1024)
		return profile, nil
	}

	return nil, fmt.Errorf("failed to connect to target after %d attempts: %w", connectAttempts, lastErr)
}

// noTargetReply matches the probe's canned nothing-attached answer.
func noTargetReply(reply []byte) bool {
	return reply[0] == 0x81 && reply[1] == 0x55 && reply[2] == 0x01 && reply[3] == 0x01
}

// initDM brings the debug module into a known state: hart active, abstract
// status cleared, autoexec off.
func (s *Session) initDM() error {
	for i := 0; i < 3; i++ {
		if err := s.regWrite(protocol.DMControl, 0x80000001); err != nil {
			return err
		}
	}
	if err := s.regWrite(protocol.DMAbstractCS, 0x00000700); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMAbstractAuto, 0); err != nil {
		return err
	}
	if err := s.regWrite(protocol.DMCommand, 0x00221000); err != nil {
		return err
	}
	return s.waitAbstract("init")
}

// probeFlashSize asks the probe for the chip's flash capacity; the reply
// carries kilobytes big-endian at bytes 2..3. A zero or malformed answer
// keeps the profile default.
func (s *Session) probeFlashSize(mark byte) (uint32, bool) {
	reply, err := s.t.Command(protocol.ChipData(mark))
	if err != nil || len(reply) < 4 {
		return 0, false
	}
	kb := binary.BigEndian.Uint16(reply[2:4])
	if kb == 0 {
		return 0, false
	}
	return uint32(kb) * 1024, true
}
