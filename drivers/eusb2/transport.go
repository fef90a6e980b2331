package eusb2

import (
	"tinygo.org/x/drivers"
)

// RegisterIO is the byte-oriented register transport the repeater sits on.
// Implementations must be safe to call repeatedly (the controller retries
// writes) and must not coalesce writes.
type RegisterIO interface {
	ReadRegister(reg uint8) (uint8, error)
	WriteRegister(reg, val uint8) error
}

// writeAttempts bounds every retried register write.
const writeAttempts = 3

// WriteRetry writes a register, retrying up to writeAttempts times.
// Returns nil on the first success, else the last write error.
func WriteRetry(io RegisterIO, reg, val uint8) error {
	var err error
	for i := 0; i < writeAttempts; i++ {
		if err = io.WriteRegister(reg, val); err == nil {
			return nil
		}
	}
	return err
}

// I2CMap adapts a drivers.I2C bus to RegisterIO: one byte of sub-address,
// one byte of data. Fixed buffers, so not safe for concurrent callers; the
// controller serialises all access.
type I2CMap struct {
	i2c  drivers.I2C
	addr uint16

	w [2]byte
	r [1]byte
}

func NewI2CMap(i2c drivers.I2C, addr uint16) *I2CMap {
	return &I2CMap{i2c: i2c, addr: addr}
}

func (m *I2CMap) ReadRegister(reg uint8) (uint8, error) {
	m.w[0] = reg
	if err := m.i2c.Tx(m.addr, m.w[:1], m.r[:1]); err != nil {
		return 0, err
	}
	return m.r[0], nil
}

func (m *I2CMap) WriteRegister(reg, val uint8) error {
	m.w[0] = reg
	m.w[1] = val
	return m.i2c.Tx(m.addr, m.w[:2], nil)
}
