package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrUnlockFailed means the lock bits survived the key sequence.
	ErrUnlockFailed = errors.New("failed to unlock flash")

	// ErrProtected means write protection tripped during an operation.
	ErrProtected = errors.New("flash is write protected")

	// ErrTimeout means the busy flag never cleared within the poll budget.
	ErrTimeout = errors.New("timeout waiting for flash")
)

// AlignmentError rejects an operation whose base address is not block
// aligned for the attached device. Raised before any bus traffic.
type AlignmentError struct {
	Addr      uint32
	BlockSize uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("address 0x%08X is not %d-byte aligned", e.Addr, e.BlockSize)
}

// CapacityError rejects a payload larger than the device's flash. Raised
// before any bus traffic.
type CapacityError struct {
	Size     int
	Capacity uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds %d bytes of flash", e.Size, e.Capacity)
}

// VerifyError reports the first byte that read back differently from what
// was programmed.
type VerifyError struct {
	Offset int
	Want   byte
	Got    byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed at offset %d: wrote 0x%02X, read 0x%02X", e.Offset, e.Want, e.Got)
}
