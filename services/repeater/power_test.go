package repeater

import (
	"errors"
	"fmt"
	"testing"

	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
)

// fakeRail records every call on a shared ordered log and can be scripted to
// fail individual operations. Calls are recorded even when they fail.
type fakeRail struct {
	name string
	log  *[]string

	failSetLoad    bool
	failSetVoltage bool
	failEnable     bool
	failDisable    bool
}

var errRail = errors.New("rail fault")

func (r *fakeRail) record(s string) { *r.log = append(*r.log, r.name+"."+s) }

func (r *fakeRail) SetLoad(ua int) error {
	r.record(fmt.Sprintf("set_load(%d)", ua))
	if r.failSetLoad {
		return errRail
	}
	return nil
}

func (r *fakeRail) SetVoltage(minUV, maxUV int) error {
	r.record(fmt.Sprintf("set_voltage(%d,%d)", minUV, maxUV))
	if r.failSetVoltage {
		return errRail
	}
	return nil
}

func (r *fakeRail) Enable() error {
	r.record("enable")
	if r.failEnable {
		return errRail
	}
	return nil
}

func (r *fakeRail) Disable() error {
	r.record("disable")
	if r.failDisable {
		return errRail
	}
	return nil
}

func newFakeRails() (*fakeRail, *fakeRail, *[]string) {
	log := &[]string{}
	return &fakeRail{name: "vdd18", log: log}, &fakeRail{name: "vdd3", log: log}, log
}

var bringUpOps = []string{
	"vdd18.set_load(32000)",
	"vdd18.set_voltage(1800000,1800000)",
	"vdd18.enable",
	"vdd3.set_load(3500)",
	"vdd3.set_voltage(3075000,3300000)",
	"vdd3.enable",
}

var tearDownOps = []string{
	"vdd3.disable",
	"vdd3.set_voltage(0,3300000)",
	"vdd3.set_load(0)",
	"vdd18.disable",
	"vdd18.set_voltage(0,1800000)",
	"vdd18.set_load(0)",
}

func assertOps(t *testing.T, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("op log %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %q, want %q (log %v)", i, got[i], want[i], got)
		}
	}
}

func TestPowerOnOrder(t *testing.T) {
	v18, v3, log := newFakeRails()
	p := newPowerSequencer(v18, v3, rlog.Nop())

	if err := p.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	if !p.Enabled() {
		t.Fatal("sequencer not enabled after PowerOn")
	}
	assertOps(t, *log, bringUpOps)
}

func TestPowerOnIdempotent(t *testing.T) {
	v18, v3, log := newFakeRails()
	p := newPowerSequencer(v18, v3, rlog.Nop())

	if err := p.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	if err := p.PowerOn(); err != nil {
		t.Fatalf("second PowerOn: %v", err)
	}
	assertOps(t, *log, bringUpOps)
}

func TestPowerOffOrder(t *testing.T) {
	v18, v3, log := newFakeRails()
	p := newPowerSequencer(v18, v3, rlog.Nop())

	if err := p.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	*log = (*log)[:0]
	if err := p.PowerOff(); err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	if p.Enabled() {
		t.Fatal("sequencer still enabled after PowerOff")
	}
	assertOps(t, *log, tearDownOps)
}

func TestPowerOffWhenOff(t *testing.T) {
	v18, v3, log := newFakeRails()
	p := newPowerSequencer(v18, v3, rlog.Nop())

	if err := p.PowerOff(); err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	if len(*log) != 0 {
		t.Fatalf("rail ops while already off: %v", *log)
	}
}

// A failure at step k must attempt steps 1..k, then revert exactly the
// completed steps k-1..1 in reverse.
func TestPowerOnFailureUnwind(t *testing.T) {
	cases := []struct {
		name string
		k    int // 1-based failing step
		trip func(v18, v3 *fakeRail)
	}{
		{"vdd18_load", 1, func(v18, _ *fakeRail) { v18.failSetLoad = true }},
		{"vdd18_voltage", 2, func(v18, _ *fakeRail) { v18.failSetVoltage = true }},
		{"vdd18_enable", 3, func(v18, _ *fakeRail) { v18.failEnable = true }},
		{"vdd3_load", 4, func(_, v3 *fakeRail) { v3.failSetLoad = true }},
		{"vdd3_voltage", 5, func(_, v3 *fakeRail) { v3.failSetVoltage = true }},
		{"vdd3_enable", 6, func(_, v3 *fakeRail) { v3.failEnable = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v18, v3, log := newFakeRails()
			tc.trip(v18, v3)
			p := newPowerSequencer(v18, v3, rlog.Nop())

			err := p.PowerOn()
			if err == nil {
				t.Fatal("PowerOn succeeded with a failing rail")
			}
			if errcode.Of(err) != errcode.PowerFailed {
				t.Fatalf("error code %v, want %v", errcode.Of(err), errcode.PowerFailed)
			}
			if !errors.Is(err, errRail) {
				t.Fatalf("cause not preserved: %v", err)
			}
			if p.Enabled() {
				t.Fatal("sequencer enabled after failed PowerOn")
			}

			want := append([]string{}, bringUpOps[:tc.k]...)
			want = append(want, tearDownOps[len(tearDownOps)-(tc.k-1):]...)
			assertOps(t, *log, want)
		})
	}
}

// Teardown continues past a failing revert step.
func TestPowerOffContinuesOnFailure(t *testing.T) {
	v18, v3, log := newFakeRails()
	p := newPowerSequencer(v18, v3, rlog.Nop())

	if err := p.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	v3.failDisable = true
	*log = (*log)[:0]

	if err := p.PowerOff(); err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	assertOps(t, *log, tearDownOps)
	if p.Enabled() {
		t.Fatal("sequencer still enabled")
	}
}

// vdd3 must never be enabled unless vdd18 was enabled first and is still up.
func TestRailOrderInvariant(t *testing.T) {
	for k := 1; k <= 6; k++ {
		v18, v3, log := newFakeRails()
		switch k {
		case 1:
			v18.failSetLoad = true
		case 2:
			v18.failSetVoltage = true
		case 3:
			v18.failEnable = true
		case 4:
			v3.failSetLoad = true
		case 5:
			v3.failSetVoltage = true
		case 6:
			v3.failEnable = true
		}
		p := newPowerSequencer(v18, v3, rlog.Nop())
		_ = p.PowerOn()

		v18Up := false
		for _, op := range *log {
			switch op {
			case "vdd18.enable":
				v18Up = k != 3
			case "vdd18.disable":
				v18Up = false
			case "vdd3.enable":
				if !v18Up {
					t.Fatalf("step %d: vdd3 enabled without vdd18 up (log %v)", k, *log)
				}
			}
		}
	}
}
