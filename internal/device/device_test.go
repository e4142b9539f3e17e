package device

import "testing"

func TestLookup_KnownChips(t *testing.T) {
	tests := []struct {
		id        uint16
		name      string
		blockSize uint32
	}{
		{0x0030, "CH32V003F4P6", 64},
		{0x2500, "CH32V103", 128},
		{0x2030, "CH32V203C8U6", 256},
		{0x3050, "CH32V305RBT6", 256},
		{0x0351, "CH32X035C8T6", 256},
	}

	for _, tc := range tests {
		p, err := Lookup(tc.id)
		if err != nil {
			t.Errorf("Lookup(0x%04X): %v", tc.id, err)
			continue
		}
		if p.Name != tc.name {
			t.Errorf("Lookup(0x%04X).Name = %q, want %q", tc.id, p.Name, tc.name)
		}
		if p.BlockSize != tc.blockSize {
			t.Errorf("Lookup(0x%04X).BlockSize = %d, want %d", tc.id, p.BlockSize, tc.blockSize)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup(0xBEEF); err == nil {
		t.Error("Lookup(0xBEEF) = nil error, want unknown chip error")
	}
}

func TestProfile_Series(t *testing.T) {
	tests := []struct {
		id     uint16
		series byte
	}{
		{0x0030, 0x00},
		{0x2500, 0x25},
		{0x2030, 0x20},
		{0x0351, 0x03},
	}

	for _, tc := range tests {
		p, err := Lookup(tc.id)
		if err != nil {
			t.Fatalf("Lookup(0x%04X): %v", tc.id, err)
		}
		if got := p.Series(); got != tc.series {
			t.Errorf("Series(0x%04X) = 0x%02X, want 0x%02X", tc.id, got, tc.series)
		}
	}
}

func TestAll_LoadersPresent(t *testing.T) {
	for _, p := range All() {
		if p.Loader == nil {
			t.Errorf("%s: no loader", p.Name)
			continue
		}
		blob := p.Loader()
		if len(blob) == 0 {
			t.Errorf("%s: empty loader blob", p.Name)
		}
	}
}
