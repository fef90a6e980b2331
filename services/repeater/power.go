// services/repeater/power.go
package repeater

import (
	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
)

// Regulator abstracts one regulated supply rail. Implementations talk to the
// platform's regulator framework; the sequencer only orders the calls.
type Regulator interface {
	SetLoad(microamps int) error
	SetVoltage(minUV, maxUV int) error
	Enable() error
	Disable() error
}

// Rail parameters for the repeater supplies.
const (
	vdd18VolMinUV = 1_800_000
	vdd18VolMaxUV = 1_800_000
	vdd18HPMLoad  = 32_000 // uA

	vdd3VolMinUV = 3_075_000
	vdd3VolMaxUV = 3_300_000
	vdd3HPMLoad  = 3_500 // uA
)

// powerStep enumerates the bring-up states in order. Each value marks the
// last completed step; unwinding from a state reverts exactly the steps at
// or below it, in reverse.
type powerStep uint8

const (
	powerOff powerStep = iota
	vdd18Loaded
	vdd18Voltaged
	vdd18Enabled
	vdd3Loaded
	vdd3Voltaged
	powerOn
)

func (s powerStep) String() string {
	switch s {
	case vdd18Loaded:
		return "vdd18_load"
	case vdd18Voltaged:
		return "vdd18_voltage"
	case vdd18Enabled:
		return "vdd18_enable"
	case vdd3Loaded:
		return "vdd3_load"
	case vdd3Voltaged:
		return "vdd3_voltage"
	case powerOn:
		return "vdd3_enable"
	default:
		return "off"
	}
}

// powerSequencer owns the two rails as a unit. Not safe for concurrent use;
// the Device serialises lifecycle calls.
type powerSequencer struct {
	vdd18 Regulator
	vdd3  Regulator

	enabled bool
	log     *rlog.Logger
}

func newPowerSequencer(vdd18, vdd3 Regulator, log *rlog.Logger) *powerSequencer {
	return &powerSequencer{vdd18: vdd18, vdd3: vdd3, log: log}
}

func (p *powerSequencer) Enabled() bool { return p.enabled }

// PowerOn brings both rails up in strict order: load, voltage window, enable
// on vdd18, then the same on vdd3. Any failure unwinds the completed steps in
// exact reverse order and surfaces the original cause.
func (p *powerSequencer) PowerOn() error {
	if p.enabled {
		p.log.Debug("regulators already on")
		return nil
	}
	st := powerOff
	for st < powerOn {
		next := st + 1
		if err := p.apply(next); err != nil {
			p.log.Error("power-on step failed", "step", next.String(), "err", err)
			p.unwind(st)
			return errcode.Wrap(errcode.PowerFailed, next.String(), err)
		}
		st = next
	}
	p.enabled = true
	p.log.Debug("regulators on")
	return nil
}

// PowerOff tears both rails down in exact reverse order. Per-step failures
// are logged and the remaining steps still run; the call itself never fails,
// keeping the state machine usable.
func (p *powerSequencer) PowerOff() error {
	if !p.enabled {
		p.log.Debug("regulators already off")
		return nil
	}
	p.unwind(powerOn)
	p.enabled = false
	p.log.Debug("regulators off")
	return nil
}

func (p *powerSequencer) apply(st powerStep) error {
	switch st {
	case vdd18Loaded:
		return p.vdd18.SetLoad(vdd18HPMLoad)
	case vdd18Voltaged:
		return p.vdd18.SetVoltage(vdd18VolMinUV, vdd18VolMaxUV)
	case vdd18Enabled:
		return p.vdd18.Enable()
	case vdd3Loaded:
		return p.vdd3.SetLoad(vdd3HPMLoad)
	case vdd3Voltaged:
		return p.vdd3.SetVoltage(vdd3VolMinUV, vdd3VolMaxUV)
	case powerOn:
		return p.vdd3.Enable()
	}
	return nil
}

// revert undoes a single completed step. A disabled rail is first returned to
// a zeroed voltage window, then zero load, so no rail is ever left half-up.
func (p *powerSequencer) revert(st powerStep) error {
	switch st {
	case powerOn:
		return p.vdd3.Disable()
	case vdd3Voltaged:
		return p.vdd3.SetVoltage(0, vdd3VolMaxUV)
	case vdd3Loaded:
		return p.vdd3.SetLoad(0)
	case vdd18Enabled:
		return p.vdd18.Disable()
	case vdd18Voltaged:
		return p.vdd18.SetVoltage(0, vdd18VolMaxUV)
	case vdd18Loaded:
		return p.vdd18.SetLoad(0)
	}
	return nil
}

// unwind reverts every step from st down to off. Each step is attempted even
// when an earlier revert fails.
func (p *powerSequencer) unwind(st powerStep) {
	for s := st; s > powerOff; s-- {
		if err := p.revert(s); err != nil {
			p.log.Warn("rollback step failed", "step", s.String(), "err", err)
		}
	}
}
