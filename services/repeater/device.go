// services/repeater/device.go

// Package repeater controls an eUSB2 repeater chip over I2C: supply rail
// sequencing, reset line handling, init-time override sequences and a
// bounded tuning cache with replay.
package repeater

import (
	"strings"
	"sync"

	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/internal/rlog"
	"repeatercode-go/services/repeater/internal/gpioirq"
	"repeatercode-go/types"
)

// Params carries everything needed to build a Device.
type Params struct {
	ID    string
	Chip  *eusb2.Device
	Vdd18 Regulator
	Vdd3  Regulator
	Reset ResetLine

	// Flat (value, address) pair lists. HostOverrideSeq, when present,
	// replaces OverrideSeq entirely in the host role.
	OverrideSeq     []uint8
	HostOverrideSeq []uint8
}

// Device is one repeater instance. Lifecycle calls are serialised by an
// internal mutex; the tuning cache carries its own lock so the diagnostic
// surface stays usable during lifecycle transitions.
type Device struct {
	id   string
	chip *eusb2.Device
	log  *rlog.Logger

	mu    sync.Mutex
	power *powerSequencer
	reset *resetControl
	tune  *TuneTable

	seq     []OverrideEntry
	hostSeq []OverrideEntry
}

// New validates the override sequences, claims the reset line low and builds
// the device. A malformed sequence is fatal here, never at init time.
func New(p Params, log *rlog.Logger) (*Device, error) {
	log = log.WithDevice(p.ID)

	seq, err := ParseOverrideSeq(p.OverrideSeq)
	if err != nil {
		return nil, err
	}
	hostSeq, err := ParseOverrideSeq(p.HostOverrideSeq)
	if err != nil {
		return nil, err
	}
	rst, err := newResetControl(p.Reset, log)
	if err != nil {
		return nil, err
	}

	d := &Device{
		id:      p.ID,
		chip:    p.Chip,
		log:     log,
		power:   newPowerSequencer(p.Vdd18, p.Vdd3, log),
		reset:   rst,
		tune:    newTuneTable(p.Chip, log),
		seq:     seq,
		hostSeq: hostSeq,
	}
	return d, nil
}

func (d *Device) ID() string { return d.id }

// Tune exposes the tuning cache.
func (d *Device) Tune() *TuneTable { return d.tune }

// ResetEdgeLine reports the reset line as an interrupt source, when the
// platform pin supports one. Used to acknowledge the chip's rising edge.
func (d *Device) ResetEdgeLine() (gpioirq.Line, bool) {
	l, ok := d.reset.line.(gpioirq.Line)
	return l, ok
}

// Info describes the device for the retained info topic.
func (d *Device) Info() types.RepeaterInfo {
	return types.RepeaterInfo{
		Vendor: strings.ToLower(d.chip.Vendor().String()),
		Role:   strings.ToLower(d.chip.Role().String()),
	}
}

// Init replays the role-appropriate override sequence, then the tuning
// cache. In the host role a non-empty host sequence replaces the default
// one. Init expects the rails up; it is the chip programming step, not the
// power step.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seq := d.seq
	if d.chip.IsHost() && len(d.hostSeq) > 0 {
		seq = d.hostSeq
	}
	applyOverrides(d.chip, seq, d.log)

	if d.tune.Len() > 0 {
		d.tune.ReplayAll()
	}

	d.log.Info("repeater init",
		"vendor", d.chip.Vendor().String(), "role", d.chip.Role().String())
	return nil
}

// Reset drives the reset line: true brings the chip out of reset.
func (d *Device) Reset(bringOutOfReset bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset.Apply(bringOutOfReset)
	return nil
}

// PowerUp brings both supply rails up in sequence.
func (d *Device) PowerUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power.PowerOn()
}

// PowerDown tears both rails down. Never fails.
func (d *Device) PowerDown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power.PowerOff()
}

// Powered reports whether the rails are up.
func (d *Device) Powered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power.Enabled()
}

// Close powers the device down best-effort.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.power.PowerOff(); err != nil {
		d.log.Warn("power-down on close failed", "err", err)
	}
	d.log.Debug("repeater closed")
	return nil
}
