package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestRegisterWrite_Layout(t *testing.T) {
	tests := []struct {
		reg      uint8
		value    uint32
		expected []byte
	}{
		{DMControl, 0x80000001, []byte{0x81, 0x08, 0x06, 0x10, 0x80, 0x00, 0x00, 0x01, 0x02}},
		{DMData0, 0xDEADBEEF, []byte{0x81, 0x08, 0x06, 0x04, 0xDE, 0xAD, 0xBE, 0xEF, 0x02}},
		{DMProgBuf7, 0, []byte{0x81, 0x08, 0x06, 0x27, 0x00, 0x00, 0x00, 0x00, 0x02}},
	}

	for _, tc := range tests {
		frame := RegisterWrite(tc.reg, tc.value)
		if !bytes.Equal(frame, tc.expected) {
			t.Errorf("RegisterWrite(0x%02X, 0x%08X) = % X, want % X", tc.reg, tc.value, frame, tc.expected)
		}
	}
}

func TestRegisterWrite_MasksAddress(t *testing.T) {
	frame := RegisterWrite(0xFC, 0)
	if frame[3] != 0x7C {
		t.Errorf("address byte = 0x%02X, want 0x7C", frame[3])
	}
}

func TestRegisterRead_Layout(t *testing.T) {
	expected := []byte{0x81, 0x08, 0x06, 0x16, 0x00, 0x00, 0x00, 0x00, 0x01}
	frame := RegisterRead(DMAbstractCS)
	if !bytes.Equal(frame, expected) {
		t.Errorf("RegisterRead(0x%02X) = % X, want % X", DMAbstractCS, frame, expected)
	}
}

func TestParseRegisterReply_Value(t *testing.T) {
	reply := []byte{0x81, 0x08, 0x06, 0x04, 0x12, 0x34, 0x56, 0x78, 0x02}
	value, err := ParseRegisterReply(DMData0, reply)
	if err != nil {
		t.Fatalf("ParseRegisterReply: %v", err)
	}
	if value != 0x12345678 {
		t.Errorf("value = 0x%08X, want 0x12345678", value)
	}
}

func TestParseRegisterReply_EchoMismatch(t *testing.T) {
	reply := []byte{0x81, 0x08, 0x06, 0x05, 0x00, 0x00, 0x00, 0x00, 0x02}
	_, err := ParseRegisterReply(DMData0, reply)
	if err == nil {
		t.Fatal("expected error for wrong echo byte")
	}
	var em *EchoMismatchError
	if !errors.As(err, &em) {
		t.Fatalf("error type = %T, want *EchoMismatchError", err)
	}
	if em.Reg != DMData0 {
		t.Errorf("Reg = 0x%02X, want 0x%02X", em.Reg, DMData0)
	}
}

func TestParseRegisterReply_ShortReply(t *testing.T) {
	for _, reply := range [][]byte{nil, {0x81}, {0x81, 0x08, 0x06, 0x04}} {
		if _, err := ParseRegisterReply(DMData0, reply); err == nil {
			t.Errorf("ParseRegisterReply(%d bytes) = nil error, want EchoMismatchError", len(reply))
		}
	}
}

func TestRangeHeader_Layout(t *testing.T) {
	expected := []byte{0x81, 0x01, 0x08, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00}
	frame := RangeHeader(CodeBase, 0x1000)
	if !bytes.Equal(frame, expected) {
		t.Errorf("RangeHeader = % X, want % X", frame, expected)
	}
}

func TestIsFlashAddr(t *testing.T) {
	tests := []struct {
		addr     uint32
		expected bool
	}{
		{CodeBase, true},
		{CodeBase + 0x3FFF, true},
		{BootBase, true},
		{BootBase + 0x7FF, true},
		{RAMBase, false},
		{0x00000000, false},
		{FlashSTATR, false},
	}

	for _, tc := range tests {
		if got := IsFlashAddr(tc.addr); got != tc.expected {
			t.Errorf("IsFlashAddr(0x%08X) = %v, want %v", tc.addr, got, tc.expected)
		}
	}
}

func TestAutoIncrement(t *testing.T) {
	tests := []struct {
		addr     uint32
		expected bool
	}{
		{CodeBase, true},
		{RAMBase, true},
		{FlashCTLR, false},
		{FlashSTATR, false},
		{FlashADDR, true},
	}

	for _, tc := range tests {
		if got := AutoIncrement(tc.addr); got != tc.expected {
			t.Errorf("AutoIncrement(0x%08X) = %v, want %v", tc.addr, got, tc.expected)
		}
	}
}
