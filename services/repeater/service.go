// services/repeater/service.go
package repeater

import (
	"context"

	"repeatercode-go/bus"
	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
	"repeatercode-go/services/repeater/internal/gpioirq"
	"repeatercode-go/types"
	"repeatercode-go/x/timex"
)

// Control verbs accepted under repeater/<id>/control/<verb>.
const (
	verbInit      = "init"
	verbReset     = "reset"
	verbPowerUp   = "power_up"
	verbPowerDown = "power_down"
	verbTuneStore = "tune_store"
	verbTuneShow  = "tune_show"
)

// Service exposes one Device on the message bus: retained info/power/state
// topics, a control surface and reset interrupt acknowledgement events.
type Service struct {
	conn *bus.Connection
	dev  *Device
	info types.RepeaterInfo
	log  *rlog.Logger
}

func NewService(conn *bus.Connection, dev *Device, info types.RepeaterInfo, log *rlog.Logger) *Service {
	return &Service{conn: conn, dev: dev, info: info, log: log.WithDevice(dev.ID())}
}

func (s *Service) topic(tokens ...string) bus.Topic {
	return bus.T("repeater", s.dev.ID()).Append(tokens...)
}

// Run serves control messages until ctx is cancelled, then powers the device
// down and disconnects.
func (s *Service) Run(ctx context.Context) error {
	sub := s.conn.Subscribe(s.topic("control", "+"))

	s.publishRetained(s.topic("info"), types.Info{
		SchemaVersion: 1,
		Driver:        "eusb2",
		Detail:        s.info,
	})
	s.publishPower()
	s.publishState("idle", "")

	irqW := gpioirq.New(16, 16)
	irqW.Start(ctx)
	if line, ok := s.dev.ResetEdgeLine(); ok {
		cancel, err := irqW.RegisterLine(s.dev.ID(), line, gpioirq.EdgeRising)
		if err != nil {
			s.log.Warn("reset irq unavailable", "err", err)
		} else {
			defer cancel()
		}
	}

	s.log.Info("repeater service up")
	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "")
			_ = s.dev.Close()
			s.conn.Disconnect()
			return ctx.Err()
		case ev := <-irqW.Events():
			// The chip raises the line once it is out of reset; nothing to
			// service beyond acknowledging it.
			s.log.Debug("reset gpio interrupt handled", "level", ev.Level)
			s.conn.Publish(s.conn.NewMessage(s.topic("event", "reset_ack"), nil, false))
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			s.handle(msg)
		}
	}
}

func (s *Service) handle(msg *bus.Message) {
	verb := msg.Topic.At(3)
	s.log.Debug("control", "verb", verb)

	switch verb {
	case verbInit:
		s.reply(msg, s.dev.Init())
		s.publishState("ready", "")
	case verbReset:
		set, ok := msg.Payload.(types.ResetSet)
		if !ok {
			s.reply(msg, &errcode.E{C: errcode.InvalidPayload, Op: verbReset})
			return
		}
		s.reply(msg, s.dev.Reset(set.BringOutOfReset))
	case verbPowerUp:
		err := s.dev.PowerUp()
		s.reply(msg, err)
		s.publishPower()
		if err != nil {
			s.publishState("error", err.Error())
		}
	case verbPowerDown:
		s.reply(msg, s.dev.PowerDown())
		s.publishPower()
		s.publishState("idle", "")
	case verbTuneStore:
		st, ok := msg.Payload.(types.TuneStore)
		if !ok {
			s.reply(msg, &errcode.E{C: errcode.InvalidPayload, Op: verbTuneStore})
			return
		}
		s.reply(msg, s.dev.Diag().Store(st.Line))
	case verbTuneShow:
		text, err := s.dev.Diag().Show()
		if err != nil {
			s.reply(msg, err)
			return
		}
		if msg.CanReply() {
			s.conn.Reply(msg, types.TuneDump{Text: text}, false)
		}
	default:
		s.reply(msg, &errcode.E{C: errcode.Unsupported, Op: verb})
	}
}

func (s *Service) reply(msg *bus.Message, err error) {
	if err != nil {
		s.log.Warn("control failed", "verb", msg.Topic.At(3), "err", err)
	}
	if !msg.CanReply() {
		return
	}
	if err != nil {
		s.conn.Reply(msg, types.ErrorReply{OK: false, Error: err.Error()}, false)
		return
	}
	s.conn.Reply(msg, types.ErrorReply{OK: true}, false)
}

func (s *Service) publishRetained(topic bus.Topic, payload any) {
	s.conn.Publish(s.conn.NewMessage(topic, payload, true))
}

func (s *Service) publishPower() {
	s.publishRetained(s.topic("power"), types.PowerValue{
		Enabled: s.dev.Powered(),
		TSms:    timex.NowMs(),
	})
}

func (s *Service) publishState(level, status string) {
	s.publishRetained(s.topic("state"), types.ServiceState{
		Level:  level,
		Status: status,
		TSms:   timex.NowMs(),
	})
}
