package eusb2

import (
	"repeatercode-go/errcode"
)

// ---------------- Identity ----------------

type Vendor uint8

const (
	VendorTI Vendor = iota
	VendorNXP
)

func (v Vendor) String() string {
	if v == VendorNXP {
		return "NXP"
	}
	return "TI"
}

// ParseVendor maps a config string ("nxp"/"ti", or the devicetree-style
// compatible strings) to a Vendor.
func ParseVendor(s string) (Vendor, error) {
	switch s {
	case "nxp", "nxp,eusb2-repeater":
		return VendorNXP, nil
	case "ti", "ti,eusb2-repeater":
		return VendorTI, nil
	default:
		return 0, &errcode.E{C: errcode.UnknownVendor, Msg: s}
	}
}

type Role uint8

const (
	RoleClient Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "HOST"
	}
	return "CLIENT"
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "client", "device":
		return RoleClient, nil
	case "host":
		return RoleHost, nil
	default:
		return 0, &errcode.E{C: errcode.UnknownRole, Msg: s}
	}
}

// ---------------- Device ----------------

type Config struct {
	Vendor Vendor
	Role   Role
}

// Device is a register-level handle on one repeater chip. Identity is fixed
// at construction.
type Device struct {
	io     RegisterIO
	vendor Vendor
	role   Role
}

func New(io RegisterIO, cfg Config) *Device {
	return &Device{io: io, vendor: cfg.Vendor, role: cfg.Role}
}

func (d *Device) Vendor() Vendor { return d.vendor }
func (d *Device) Role() Role     { return d.role }
func (d *Device) IsHost() bool   { return d.role == RoleHost }

func (d *Device) ReadRegister(reg uint8) (uint8, error) {
	return d.io.ReadRegister(reg)
}

func (d *Device) WriteRegister(reg, val uint8) error {
	return d.io.WriteRegister(reg, val)
}

// WriteRetry writes a register with the bounded retry policy.
func (d *Device) WriteRetry(reg, val uint8) error {
	return WriteRetry(d.io, reg, val)
}

// UpdateRegister performs a read-modify-write: bits covered by mask keep
// their current value, the rest take val.
func (d *Device) UpdateRegister(reg, mask, val uint8) error {
	cur, err := d.io.ReadRegister(reg)
	if err != nil {
		return err
	}
	return d.io.WriteRegister(reg, val|(cur&mask))
}

// KnownMap returns a copy of the vendor's well-known register address map
// (17 entries for NXP, 12 for TI).
func (d *Device) KnownMap() []uint8 {
	src := profiles[d.vendor].tuneMap
	out := make([]uint8, len(src))
	copy(out, src)
	return out
}

// SkipTuneWrite reports whether a cached tuning write to reg must be
// suppressed: parts with a host test-mode control register must never see it
// written while operating in client mode.
func (d *Device) SkipTuneWrite(reg uint8) bool {
	p := profiles[d.vendor]
	return p.hasHostTestMode && d.role == RoleClient && reg == p.hostTestModeReg
}

// RegValue is one (address, value) pair of a snapshot.
type RegValue struct {
	Reg uint8
	Val uint8
}

// ReadKnownMap reads every register of the vendor map. All-or-nothing: any
// single read failure fails the whole snapshot.
func (d *Device) ReadKnownMap() ([]RegValue, error) {
	m := profiles[d.vendor].tuneMap
	out := make([]RegValue, 0, len(m))
	for _, reg := range m {
		val, err := d.io.ReadRegister(reg)
		if err != nil {
			return nil, errcode.Wrap(errcode.TransportError, "read_known_map", err)
		}
		out = append(out, RegValue{Reg: reg, Val: val})
	}
	return out, nil
}
