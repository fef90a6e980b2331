package repeater

import (
	"testing"

	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/errcode"
)

func TestParseOverrideSeq(t *testing.T) {
	seq, err := ParseOverrideSeq([]uint8{0x51, 0x04, 0x77, 0x05})
	if err != nil {
		t.Fatalf("ParseOverrideSeq: %v", err)
	}
	want := []OverrideEntry{{Reg: 0x04, Val: 0x51}, {Reg: 0x05, Val: 0x77}}
	if len(seq) != len(want) {
		t.Fatalf("seq %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("entry %d = %v, want %v", i, seq[i], want[i])
		}
	}
}

func TestParseOverrideSeqEmpty(t *testing.T) {
	seq, err := ParseOverrideSeq(nil)
	if err != nil {
		t.Fatalf("ParseOverrideSeq: %v", err)
	}
	if seq != nil {
		t.Fatalf("seq %v, want nil", seq)
	}
}

func TestParseOverrideSeqOddCount(t *testing.T) {
	_, err := ParseOverrideSeq([]uint8{0x51})
	if errcode.Of(err) != errcode.InvalidSequence {
		t.Fatalf("error %v, want %v", err, errcode.InvalidSequence)
	}
}

// The same address may appear more than once; later entries win on the chip.
func TestApplyOverridesRepeatedAddress(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorTI, eusb2.RoleClient, Params{
		OverrideSeq: []uint8{0x11, 0x40, 0x22, 0x40},
	})
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if io.regs[0x40] != 0x22 {
		t.Fatalf("reg 0x40 = 0x%02x, want 0x22", io.regs[0x40])
	}
	if len(io.writeLog) != 2 {
		t.Fatalf("writes %v, want both entries applied", io.writeLog)
	}
}
