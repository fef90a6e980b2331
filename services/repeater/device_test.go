package repeater

import (
	"fmt"
	"testing"

	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
)

// fakeRegIO is a scriptable register file shared by the tests in this
// package. failWrites/failReads fail the next N calls; every write attempt
// is logged.
type fakeRegIO struct {
	regs map[uint8]uint8

	failWrites int
	failReads  int
	writeLog   [][2]uint8
}

func newFakeRegIO() *fakeRegIO {
	return &fakeRegIO{regs: map[uint8]uint8{}}
}

func (f *fakeRegIO) ReadRegister(reg uint8) (uint8, error) {
	if f.failReads > 0 {
		f.failReads--
		return 0, fmt.Errorf("read 0x%02x: nak", reg)
	}
	return f.regs[reg], nil
}

func (f *fakeRegIO) WriteRegister(reg, val uint8) error {
	f.writeLog = append(f.writeLog, [2]uint8{reg, val})
	if f.failWrites > 0 {
		f.failWrites--
		return fmt.Errorf("write 0x%02x: nak", reg)
	}
	f.regs[reg] = val
	return nil
}

// okRail never fails; used where power behaviour is not under test.
type okRail struct{}

func (okRail) SetLoad(int) error        { return nil }
func (okRail) SetVoltage(int, int) error { return nil }
func (okRail) Enable() error            { return nil }
func (okRail) Disable() error           { return nil }

// fakeResetLine records configuration and level changes.
type fakeResetLine struct {
	configured bool
	level      bool
	confErr    error
}

func (f *fakeResetLine) ConfigureOutput(level bool) error {
	if f.confErr != nil {
		return f.confErr
	}
	f.configured = true
	f.level = level
	return nil
}

func (f *fakeResetLine) Set(level bool) { f.level = level }
func (f *fakeResetLine) Get() bool      { return f.level }

func newTestChip(t *testing.T, vendor eusb2.Vendor, role eusb2.Role) (*eusb2.Device, *fakeRegIO) {
	t.Helper()
	io := newFakeRegIO()
	return eusb2.New(io, eusb2.Config{Vendor: vendor, Role: role}), io
}

func newTestDevice(t *testing.T, vendor eusb2.Vendor, role eusb2.Role, p Params) (*Device, *fakeRegIO) {
	t.Helper()
	chip, io := newTestChip(t, vendor, role)
	p.ID = "rpt0"
	p.Chip = chip
	if p.Vdd18 == nil {
		p.Vdd18 = okRail{}
	}
	if p.Vdd3 == nil {
		p.Vdd3 = okRail{}
	}
	if p.Reset == nil {
		p.Reset = &fakeResetLine{}
	}
	dev, err := New(p, rlog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev, io
}

func TestNewClaimsResetLow(t *testing.T) {
	line := &fakeResetLine{level: true}
	dev, _ := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleClient, Params{Reset: line})

	if !line.configured {
		t.Fatal("reset line not configured")
	}
	if line.Get() {
		t.Fatal("reset line not claimed low")
	}
	if dev.ID() != "rpt0" {
		t.Fatalf("ID = %q", dev.ID())
	}
}

func TestNewRejectsOddOverrideSeq(t *testing.T) {
	chip, _ := newTestChip(t, eusb2.VendorNXP, eusb2.RoleClient)
	_, err := New(Params{
		ID:          "rpt0",
		Chip:        chip,
		Vdd18:       okRail{},
		Vdd3:        okRail{},
		Reset:       &fakeResetLine{},
		OverrideSeq: []uint8{0x51, 0x04, 0x17},
	}, rlog.Nop())
	if errcode.Of(err) != errcode.InvalidSequence {
		t.Fatalf("error %v, want %v", err, errcode.InvalidSequence)
	}
}

func TestInitAppliesOverrideSeq(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleClient, Params{
		OverrideSeq: []uint8{0x51, 0x04, 0x77, 0x05},
	})
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	want := [][2]uint8{{0x04, 0x51}, {0x05, 0x77}}
	if len(io.writeLog) != len(want) {
		t.Fatalf("writes %v, want %v", io.writeLog, want)
	}
	for i := range want {
		if io.writeLog[i] != want[i] {
			t.Fatalf("write %d = %v, want %v", i, io.writeLog[i], want[i])
		}
	}
}

func TestInitHostSeqReplacesDefault(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleHost, Params{
		OverrideSeq:     []uint8{0x51, 0x04},
		HostOverrideSeq: []uint8{0x22, 0x06},
	})
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(io.writeLog) != 1 || io.writeLog[0] != [2]uint8{0x06, 0x22} {
		t.Fatalf("writes %v, want only host entry", io.writeLog)
	}
}

func TestInitHostWithoutHostSeqUsesDefault(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleHost, Params{
		OverrideSeq: []uint8{0x51, 0x04},
	})
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(io.writeLog) != 1 || io.writeLog[0] != [2]uint8{0x04, 0x51} {
		t.Fatalf("writes %v, want default entry", io.writeLog)
	}
}

func TestInitContinuesPastFailedOverride(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleClient, Params{
		OverrideSeq: []uint8{0x51, 0x04, 0x77, 0x05},
	})
	io.failWrites = 3 // first entry exhausts its attempts
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := io.regs[0x04]; got != 0 {
		t.Fatalf("reg 0x04 = 0x%02x, want unwritten", got)
	}
	if got := io.regs[0x05]; got != 0x77 {
		t.Fatalf("reg 0x05 = 0x%02x, want 0x77", got)
	}
}

func TestInitReplaysTuneCache(t *testing.T) {
	dev, io := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleClient, Params{})
	if err := dev.Tune().Upsert(0x04, 0x51); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	io.writeLog = nil
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	found := false
	for _, w := range io.writeLog {
		if w == [2]uint8{0x04, 0x51} {
			found = true
		}
	}
	if !found {
		t.Fatalf("tune entry not replayed, writes %v", io.writeLog)
	}
}

func TestResetDrivesLine(t *testing.T) {
	line := &fakeResetLine{}
	dev, _ := newTestDevice(t, eusb2.VendorTI, eusb2.RoleClient, Params{Reset: line})

	if err := dev.Reset(true); err != nil {
		t.Fatalf("Reset(true): %v", err)
	}
	if !line.Get() {
		t.Fatal("line not driven high")
	}
	if err := dev.Reset(false); err != nil {
		t.Fatalf("Reset(false): %v", err)
	}
	if line.Get() {
		t.Fatal("line not driven low")
	}
}

func TestPowerUpDownAndClose(t *testing.T) {
	dev, _ := newTestDevice(t, eusb2.VendorTI, eusb2.RoleClient, Params{})

	if dev.Powered() {
		t.Fatal("powered before PowerUp")
	}
	if err := dev.PowerUp(); err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	if !dev.Powered() {
		t.Fatal("not powered after PowerUp")
	}
	if err := dev.PowerDown(); err != nil {
		t.Fatalf("PowerDown: %v", err)
	}
	if dev.Powered() {
		t.Fatal("still powered after PowerDown")
	}

	if err := dev.PowerUp(); err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dev.Powered() {
		t.Fatal("still powered after Close")
	}
}

func TestInfo(t *testing.T) {
	dev, _ := newTestDevice(t, eusb2.VendorNXP, eusb2.RoleHost, Params{})
	info := dev.Info()
	if info.Vendor != "nxp" || info.Role != "host" {
		t.Fatalf("info %+v", info)
	}
}
