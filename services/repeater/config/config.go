// Package config loads the repeater controller configuration from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/errcode"
)

type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

type Device struct {
	ID    string `yaml:"id"`
	Vendor string `yaml:"vendor"` // nxp|ti or a compatible string
	Role   string `yaml:"role"`   // host|client
	Bus    string `yaml:"bus"`
	Addr   uint16 `yaml:"addr"`

	ResetPin int `yaml:"reset_pin"`

	// Flat (value, address) pair lists, replayed at init.
	OverrideSeq     []uint8 `yaml:"override_seq"`
	HostOverrideSeq []uint8 `yaml:"host_override_seq"`
}

type Config struct {
	Logging Logging  `yaml:"logging"`
	Devices []Device `yaml:"devices"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "config_load", Err: err}
	}
	return Parse(b)
}

// Parse decodes and validates raw YAML.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "config_parse", Err: err}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the controller cannot start from. A
// malformed override sequence is fatal here so it never reaches a device.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return &errcode.E{C: errcode.InvalidPayload, Op: "config", Msg: "no devices"}
	}
	seen := map[string]bool{}
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.ID == "" {
			return &errcode.E{C: errcode.InvalidPayload, Op: "config", Msg: "device without id"}
		}
		if seen[d.ID] {
			return &errcode.E{C: errcode.InvalidPayload, Op: "config",
				Msg: "duplicate device id " + d.ID}
		}
		seen[d.ID] = true

		if _, err := eusb2.ParseVendor(d.Vendor); err != nil {
			return err
		}
		if _, err := eusb2.ParseRole(d.Role); err != nil {
			return err
		}
		if d.Addr == 0 {
			return &errcode.E{C: errcode.InvalidPayload, Op: "config",
				Msg: d.ID + ": missing i2c address"}
		}
		if len(d.OverrideSeq)%2 != 0 {
			return &errcode.E{C: errcode.InvalidSequence, Op: "config",
				Msg: d.ID + ": override_seq has odd element count"}
		}
		if len(d.HostOverrideSeq)%2 != 0 {
			return &errcode.E{C: errcode.InvalidSequence, Op: "config",
				Msg: d.ID + ": host_override_seq has odd element count"}
		}
	}
	return nil
}
