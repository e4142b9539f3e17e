package protocol

import (
	"bytes"
	"testing"
)

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected []byte
	}{
		{"LinkInfo", LinkInfo(), []byte{0x81, 0x0D, 0x01, 0x01}},
		{"Attach", Attach(), []byte{0x81, 0x0D, 0x01, 0x02}},
		{"Unbrick", Unbrick(), []byte{0x81, 0x0D, 0x01, 0x0F, 0x09}},
		{"Detach", Detach(), []byte{0x81, 0x0B, 0x01, 0x01}},
		{"Shutdown", Shutdown(), []byte{0x81, 0x0D, 0x01, 0xFF}},
		{"ChipData", ChipData(0x05), []byte{0x81, 0x11, 0x01, 0x05}},
		{"QueryProtection", QueryProtection(), []byte{0x81, 0x06, 0x01, 0x01}},
		{"EraseChip", EraseChip(), []byte{0x81, 0x02, 0x01, 0x01}},
		{"ModeSwitchARM", ModeSwitchARM(), []byte{0x81, 0xFF, 0x01, 0x41}},
		{"ModeSwitchRV", ModeSwitchRV(), []byte{0x81, 0xFF, 0x01, 0x52}},
		{"Power3v3On", Power3v3(true), []byte{0x81, 0x0D, 0x01, 0x09}},
		{"Power3v3Off", Power3v3(false), []byte{0x81, 0x0D, 0x01, 0x0A}},
		{"Power5vOn", Power5v(true), []byte{0x81, 0x0D, 0x01, 0x0B}},
		{"Power5vOff", Power5v(false), []byte{0x81, 0x0D, 0x01, 0x0C}},
	}

	for _, tc := range tests {
		if !bytes.Equal(tc.frame, tc.expected) {
			t.Errorf("%s = % X, want % X", tc.name, tc.frame, tc.expected)
		}
	}
}

func TestFlowMarker(t *testing.T) {
	for _, sub := range []byte{FlowLoaderPush, FlowLoaderDone, FlowDataFollow} {
		frame := FlowMarker(sub)
		expected := []byte{0x81, 0x02, 0x01, sub}
		if !bytes.Equal(frame, expected) {
			t.Errorf("FlowMarker(0x%02X) = % X, want % X", sub, frame, expected)
		}
	}
}

func TestOptionBits_SeriesMasks(t *testing.T) {
	tests := []struct {
		series byte
		mask   byte
	}{
		{0x00, 0xF7},
		{0x10, 0xFF},
		{0x20, 0x3F},
		{0x30, 0x3F},
	}

	for _, tc := range tests {
		frame := OptionBits(false, tc.series)
		if frame[3] != 0x02 {
			t.Errorf("series 0x%02X: op byte = 0x%02X, want 0x02", tc.series, frame[3])
		}
		if frame[4] != tc.mask {
			t.Errorf("series 0x%02X: mask byte = 0x%02X, want 0x%02X", tc.series, frame[4], tc.mask)
		}
	}
}

func TestOptionBits_Protect(t *testing.T) {
	frame := OptionBits(true, 0x10)
	if frame[3] != 0x03 {
		t.Errorf("op byte = 0x%02X, want 0x03", frame[3])
	}
	if len(frame) != 11 {
		t.Errorf("frame length = %d, want 11", len(frame))
	}
}

func TestNrstAsGPIO(t *testing.T) {
	if frame := NrstAsGPIO(true); frame[4] != 0xFF {
		t.Errorf("gpio mask byte = 0x%02X, want 0xFF", frame[4])
	}
	if frame := NrstAsGPIO(false); frame[4] != 0xF7 {
		t.Errorf("reset mask byte = 0x%02X, want 0xF7", frame[4])
	}
}
