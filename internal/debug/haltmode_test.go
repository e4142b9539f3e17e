package debug

import (
	"errors"
	"testing"

	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

func TestEnterHaltMode_Erase(t *testing.T) {
	s, sim := newConnected(t)

	if err := s.EnterHaltMode(HaltModeErase); err != nil {
		t.Fatalf("EnterHaltMode: %v", err)
	}

	if n := sim.RegWrites[protocol.DMShdwCfgR]; n != 1 {
		t.Errorf("shadow config written %d times, want 1", n)
	}
	if n := sim.RegWrites[protocol.DMCfgR]; n != 2 {
		t.Errorf("config written %d times, want 2", n)
	}
	if n := sim.RegWrites[protocol.DMControl]; n != 3 {
		t.Errorf("control written %d times, want 3", n)
	}
	if got := s.HaltMode(); got != HaltModeErase {
		t.Errorf("HaltMode() = %v, want %v", got, HaltModeErase)
	}
	if !s.Invalidated() {
		t.Error("sequence cache still valid after a halt sequence")
	}
}

func TestEnterHaltMode_Run(t *testing.T) {
	s, sim := newConnected(t)

	if err := s.EnterHaltMode(HaltModeRun); err != nil {
		t.Fatalf("EnterHaltMode: %v", err)
	}
	if n := sim.RegWrites[protocol.DMControl]; n != 4 {
		t.Errorf("control written %d times, want 4", n)
	}
	if got := s.HaltMode(); got != HaltModeRun {
		t.Errorf("HaltMode() = %v, want %v", got, HaltModeRun)
	}
}

func TestEnterHaltMode_FlashKeyedPresentsKeys(t *testing.T) {
	s, sim := newConnected(t)

	if !sim.Locked() {
		t.Fatal("simulator should start locked")
	}
	if err := s.EnterHaltMode(HaltModeFlashKeyed); err != nil {
		t.Fatalf("EnterHaltMode: %v", err)
	}
	if sim.Locked() {
		t.Error("flash still locked after the keyed sequence")
	}
}

func TestEnterHaltMode_Unknown(t *testing.T) {
	s, _ := newConnected(t)

	err := s.EnterHaltMode(HaltMode(99))
	if err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
	var ihm *InvalidHaltModeError
	if !errors.As(err, &ihm) {
		t.Fatalf("error type = %T, want *InvalidHaltModeError", err)
	}
	if ihm.Mode != HaltMode(99) {
		t.Errorf("Mode = %d, want 99", int(ihm.Mode))
	}
	if got := s.HaltMode(); got != HaltModeUnset {
		t.Errorf("HaltMode() = %v after failed entry, want %v", got, HaltModeUnset)
	}
}

func TestHaltMode_String(t *testing.T) {
	tests := []struct {
		mode     HaltMode
		expected string
	}{
		{HaltModeUnset, "unset"},
		{HaltModeRun, "run"},
		{HaltModeErase, "erase"},
		{HaltModeAlt, "alt"},
		{HaltModeFlashKeyed, "flash-keyed"},
		{HaltMode(99), "invalid"},
	}

	for _, tc := range tests {
		if got := tc.mode.String(); got != tc.expected {
			t.Errorf("HaltMode(%d).String() = %q, want %q", int(tc.mode), got, tc.expected)
		}
	}
}
