// Command repeater-sim runs the repeater service against an in-memory chip
// and rails, driving the whole control surface over the bus. Useful for
// exercising the stack without hardware.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"repeatercode-go/bus"
	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/internal/rlog"
	"repeatercode-go/services/heartbeat"
	"repeatercode-go/services/repeater"
	"repeatercode-go/services/repeater/config"
	"repeatercode-go/types"
)

const simConfig = `
logging:
  level: debug
  format: text
devices:
  - id: rpt0
    vendor: nxp
    role: client
    bus: sim-i2c
    addr: 0x4f
    reset_pin: 7
    override_seq: [0x51, 0x04, 0x71, 0x05, 0x77, 0x08]
`

// memRegs is a register file standing in for the chip.
type memRegs struct {
	regs map[uint8]uint8
}

func (m *memRegs) ReadRegister(reg uint8) (uint8, error) {
	return m.regs[reg], nil
}

func (m *memRegs) WriteRegister(reg, val uint8) error {
	m.regs[reg] = val
	return nil
}

// simRail logs every regulator call and always succeeds.
type simRail struct {
	name string
	log  *rlog.Logger
}

func (r *simRail) SetLoad(ua int) error {
	r.log.Debug("rail set_load", "rail", r.name, "ua", ua)
	return nil
}

func (r *simRail) SetVoltage(minUV, maxUV int) error {
	r.log.Debug("rail set_voltage", "rail", r.name, "min_uv", minUV, "max_uv", maxUV)
	return nil
}

func (r *simRail) Enable() error {
	r.log.Debug("rail enable", "rail", r.name)
	return nil
}

func (r *simRail) Disable() error {
	r.log.Debug("rail disable", "rail", r.name)
	return nil
}

type simResetLine struct {
	level bool
}

func (l *simResetLine) ConfigureOutput(level bool) error {
	l.level = level
	return nil
}

func (l *simResetLine) Set(level bool) { l.level = level }
func (l *simResetLine) Get() bool      { return l.level }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "repeater-sim:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse([]byte(simConfig))
	if err != nil {
		return err
	}
	log := rlog.New(cfg.Logging.Level, cfg.Logging.Format, nil)

	dcfg := cfg.Devices[0]
	vendor, err := eusb2.ParseVendor(dcfg.Vendor)
	if err != nil {
		return err
	}
	role, err := eusb2.ParseRole(dcfg.Role)
	if err != nil {
		return err
	}
	chip := eusb2.New(&memRegs{regs: map[uint8]uint8{}}, eusb2.Config{
		Vendor: vendor,
		Role:   role,
	})

	dev, err := repeater.New(repeater.Params{
		ID:              dcfg.ID,
		Chip:            chip,
		Vdd18:           &simRail{name: "vdd18", log: log},
		Vdd3:            &simRail{name: "vdd3", log: log},
		Reset:           &simResetLine{},
		OverrideSeq:     dcfg.OverrideSeq,
		HostOverrideSeq: dcfg.HostOverrideSeq,
	}, log)
	if err != nil {
		return err
	}

	info := dev.Info()
	info.Bus = dcfg.Bus
	info.Addr = dcfg.Addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(16)
	svc := repeater.NewService(b.NewConnection("repeater-svc"), dev, info, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	heartbeat.New(b.NewConnection("heartbeat"), dev, log).Start(ctx)

	client := b.NewConnection("sim-driver")
	defer client.Disconnect()

	// The control subscription is live once the retained state appears.
	stateSub := client.Subscribe(bus.T("repeater", dcfg.ID, "state"))
	select {
	case <-stateSub.Channel():
	case <-time.After(2 * time.Second):
		return fmt.Errorf("service did not come up")
	}
	stateSub.Unsubscribe()

	// The usual bring-up order: rails, out of reset, chip programming.
	steps := []struct {
		verb    string
		payload any
	}{
		{"power_up", nil},
		{"reset", types.ResetSet{BringOutOfReset: true}},
		{"init", nil},
		{"tune_store", types.TuneStore{Line: "0x08 0x27"}},
	}
	for _, s := range steps {
		if err := call(client, dcfg.ID, s.verb, s.payload); err != nil {
			return err
		}
	}

	dump, err := show(client, dcfg.ID)
	if err != nil {
		return err
	}
	fmt.Print(dump)

	if err := call(client, dcfg.ID, "power_down", nil); err != nil {
		return err
	}
	cancel()
	<-done
	return nil
}

var replySeq int

func request(client *bus.Connection, id, verb string, payload any) (any, error) {
	replySeq++
	replyTopic := bus.T("sim-driver", "reply", fmt.Sprintf("%d", replySeq))
	sub := client.Subscribe(replyTopic)
	defer sub.Unsubscribe()

	msg := client.NewMessage(bus.T("repeater", id, "control", verb), payload, false)
	msg.ReplyTo = replyTopic
	client.Publish(msg)

	select {
	case rep := <-sub.Channel():
		return rep.Payload, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("%s: no reply", verb)
	}
}

func call(client *bus.Connection, id, verb string, payload any) error {
	rep, err := request(client, id, verb, payload)
	if err != nil {
		return err
	}
	er, ok := rep.(types.ErrorReply)
	if !ok {
		return fmt.Errorf("%s: unexpected reply %T", verb, rep)
	}
	if !er.OK {
		return fmt.Errorf("%s: %s", verb, er.Error)
	}
	return nil
}

func show(client *bus.Connection, id string) (string, error) {
	rep, err := request(client, id, "tune_show", nil)
	if err != nil {
		return "", err
	}
	dump, ok := rep.(types.TuneDump)
	if !ok {
		return "", fmt.Errorf("tune_show: unexpected reply %T", rep)
	}
	return dump.Text, nil
}
