package flash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bigbag/rvlink-flasher/internal/debug"
	"github.com/bigbag/rvlink-flasher/internal/debug/debugtest"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

func newController(t *testing.T, opts ...Option) (*Controller, *debug.Session, *debugtest.Simulator) {
	t.Helper()
	sim := debugtest.New()
	s := debug.NewSession(sim)
	if _, err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sim.ResetCounters()
	return New(s, opts...), s, sim
}

func TestPadData(t *testing.T) {
	tests := []struct {
		size     int
		pageSize uint32
		expected int
	}{
		{0, 64, 0},
		{1, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{100, 64, 128},
		{256, 256, 256},
	}

	for _, tc := range tests {
		padded := PadData(make([]byte, tc.size), tc.pageSize)
		if len(padded) != tc.expected {
			t.Errorf("PadData(%d bytes, %d) = %d bytes, want %d", tc.size, tc.pageSize, len(padded), tc.expected)
		}
	}
}

func TestPadData_PadsWithFF(t *testing.T) {
	padded := PadData([]byte{1, 2, 3}, 8)
	expected := []byte{1, 2, 3, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(padded, expected) {
		t.Errorf("PadData = % X, want % X", padded, expected)
	}
}

func TestPageData(t *testing.T) {
	pages := PageData(make([]byte, 192), 64)
	if len(pages) != 3 {
		t.Fatalf("PageData(192, 64) = %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if len(p) != 64 {
			t.Errorf("page %d is %d bytes, want 64", i, len(p))
		}
	}
}

func TestFlashBlob_CapacityCheckedBeforeTraffic(t *testing.T) {
	c, s, sim := newController(t)

	err := c.FlashBlob(protocol.CodeBase, make([]byte, int(s.FlashSize())+1))
	if err == nil {
		t.Fatal("expected a capacity error")
	}
	var ce *CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *CapacityError", err)
	}
	if sim.CommandCount != 0 {
		t.Errorf("capacity rejection issued %d commands, want 0", sim.CommandCount)
	}
}

func TestFlashBlob_AlignmentCheckedBeforeTraffic(t *testing.T) {
	c, _, sim := newController(t)

	err := c.FlashBlob(protocol.CodeBase+1, make([]byte, 64))
	if err == nil {
		t.Fatal("expected an alignment error")
	}
	var ae *AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("error type = %T, want *AlignmentError", err)
	}
	if ae.BlockSize != 64 {
		t.Errorf("BlockSize = %d, want 64", ae.BlockSize)
	}
	if sim.CommandCount != 0 {
		t.Errorf("alignment rejection issued %d commands, want 0", sim.CommandCount)
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	c, _, sim := newController(t)

	if err := c.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if sim.Locked() {
		t.Fatal("simulator still locked after Unlock")
	}

	sim.ResetCounters()
	if err := c.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
	if sim.CommandCount != 0 {
		t.Errorf("second Unlock issued %d commands, want 0", sim.CommandCount)
	}
}

func TestUnlock_Refused(t *testing.T) {
	c, _, sim := newController(t)
	sim.UnlockRefused = true

	if err := c.Unlock(); !errors.Is(err, ErrUnlockFailed) {
		t.Errorf("Unlock = %v, want ErrUnlockFailed", err)
	}
}

func TestErasePage_TimeoutExhaustsBudgetAndInvalidates(t *testing.T) {
	c, s, sim := newController(t)
	if err := c.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	sim.BusyForever = true
	sim.ResetCounters()

	if err := c.ErasePage(protocol.CodeBase); !errors.Is(err, ErrTimeout) {
		t.Fatalf("ErasePage = %v, want ErrTimeout", err)
	}
	// One status read per poll: the budget bounds the traffic exactly.
	if n := sim.RegReads[protocol.DMData0]; n != defaultPollBudget {
		t.Errorf("status polled %d times, want %d", n, defaultPollBudget)
	}
	if !s.Invalidated() {
		t.Error("sequence cache still valid after a poll timeout")
	}
}

func TestEraseChip_WriteProtected(t *testing.T) {
	c, _, sim := newController(t)
	if err := c.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	sim.WriteProtected = true

	if err := c.EraseChip(); !errors.Is(err, ErrProtected) {
		t.Errorf("EraseChip = %v, want ErrProtected", err)
	}
}

func TestEraseChip_StartsMassErase(t *testing.T) {
	c, _, sim := newController(t)

	if err := c.EraseChip(); err != nil {
		t.Fatalf("EraseChip: %v", err)
	}
	if sim.Erases != 1 {
		t.Errorf("erase starts = %d, want 1", sim.Erases)
	}
}

func TestFlashBlob_EndToEnd(t *testing.T) {
	c, _, sim := newController(t)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i + 1)
	}
	var lastPage, lastTotal int
	c.progress = func(page, total int) { lastPage, lastTotal = page, total }

	if err := c.Flash(data); err != nil {
		t.Fatalf("Flash: %v", err)
	}

	// 100 bytes on a 64-byte-block device is two pages.
	if sim.Erases != 2 {
		t.Errorf("page erases = %d, want 2", sim.Erases)
	}
	if sim.ProgramStarts != 2 {
		t.Errorf("page program starts = %d, want 2", sim.ProgramStarts)
	}
	if lastPage != 2 || lastTotal != 2 {
		t.Errorf("final progress = %d/%d, want 2/2", lastPage, lastTotal)
	}

	if got := sim.ReadMem(protocol.CodeBase, len(data)); !bytes.Equal(got, data) {
		t.Error("programmed image differs from payload")
	}
	// The tail of the second page is padded with 0xFF.
	pad := sim.ReadMem(protocol.CodeBase+100, 28)
	if !bytes.Equal(pad, bytes.Repeat([]byte{0xFF}, 28)) {
		t.Errorf("pad bytes = % X, want all 0xFF", pad)
	}

	if err := c.Verify(data); err != nil {
		t.Errorf("Verify after Flash: %v", err)
	}
}

func TestVerify_ReportsFirstMismatch(t *testing.T) {
	c, _, sim := newController(t)

	data := bytes.Repeat([]byte{0x5A}, 64)
	if err := c.Flash(data); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	sim.WriteMem(protocol.CodeBase+17, []byte{0x00})

	err := c.Verify(data)
	if err == nil {
		t.Fatal("expected a verify error")
	}
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *VerifyError", err)
	}
	if ve.Offset != 17 {
		t.Errorf("Offset = %d, want 17", ve.Offset)
	}
	if ve.Want != 0x5A || ve.Got != 0x00 {
		t.Errorf("Want/Got = 0x%02X/0x%02X, want 0x5A/0x00", ve.Want, ve.Got)
	}
}

func TestWithPollBudget(t *testing.T) {
	c, _, sim := newController(t, WithPollBudget(7))
	if err := c.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	sim.BusyForever = true
	sim.ResetCounters()

	if err := c.ErasePage(protocol.CodeBase); !errors.Is(err, ErrTimeout) {
		t.Fatalf("ErasePage = %v, want ErrTimeout", err)
	}
	if n := sim.RegReads[protocol.DMData0]; n != 7 {
		t.Errorf("status polled %d times, want 7", n)
	}
}
