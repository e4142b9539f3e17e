package protocol

import (
	"encoding/binary"
	"fmt"
)

// Register access frames are fixed-size: a 9-byte request and a 9-byte
// reply that echoes the register address at offset 3.
const RegReplyLen = 9

// EchoMismatchError means a register reply did not echo the address that
// was sent, or was not the expected length. The in-flight operation cannot
// be trusted and is not retried.
type EchoMismatchError struct {
	Reg   uint8
	Reply []byte
}

func (e *EchoMismatchError) Error() string {
	if len(e.Reply) != RegReplyLen {
		return fmt.Sprintf("register 0x%02X: short reply (%d bytes)", e.Reg, len(e.Reply))
	}
	return fmt.Sprintf("register 0x%02X: reply echoed 0x%02X", e.Reg, e.Reply[3])
}

// RegisterWrite frames a DM register write: header, family, length, 7-bit
// address, big-endian value, write trailer.
func RegisterWrite(reg uint8, value uint32) []byte {
	frame := make([]byte, 9)
	frame[0] = CmdHeader
	frame[1] = CmdRegister
	frame[2] = 0x06
	frame[3] = reg & 0x7F
	binary.BigEndian.PutUint32(frame[4:8], value)
	frame[8] = 0x02
	return frame
}

// RegisterRead frames a DM register read; same layout with a zero value
// and the read trailer.
func RegisterRead(reg uint8) []byte {
	frame := make([]byte, 9)
	frame[0] = CmdHeader
	frame[1] = CmdRegister
	frame[2] = 0x06
	frame[3] = reg & 0x7F
	frame[8] = 0x01
	return frame
}

// ParseRegisterReply validates the echo and extracts the big-endian value
// field. Write replies carry the value that was written; read replies carry
// the register contents.
func ParseRegisterReply(reg uint8, reply []byte) (uint32, error) {
	if len(reply) != RegReplyLen || reply[3] != reg&0x7F {
		return 0, &EchoMismatchError{Reg: reg & 0x7F, Reply: reply}
	}
	return binary.BigEndian.Uint32(reply[4:8]), nil
}

// RangeHeader frames the address/length announcement that precedes a raw
// endpoint transfer. Length must already be padded to whole blocks.
func RangeHeader(addr, length uint32) []byte {
	frame := make([]byte, 11)
	frame[0] = CmdHeader
	frame[1] = CmdSetRange
	frame[2] = 0x08
	binary.BigEndian.PutUint32(frame[3:7], addr)
	binary.BigEndian.PutUint32(frame[7:11], length)
	return frame
}

// RawStatusOK is the raw-endpoint reply that closes a successful
// loader-assisted programming run.
var RawStatusOK = []byte{0x41, 0x01, 0x01, 0x04}
