// Package heartbeat publishes a periodic liveness beat for a repeater device
// so off-board consumers can tell a quiet bus from a dead controller.
package heartbeat

import (
	"context"
	"time"

	"repeatercode-go/bus"
	"repeatercode-go/internal/rlog"
	"repeatercode-go/services/repeater"
	"repeatercode-go/types"
	"repeatercode-go/x/timex"
)

var topicConfig = bus.T("config", "heartbeat")

const defaultInterval = 5 * time.Second

type Service struct {
	conn *bus.Connection
	dev  *repeater.Device
	log  *rlog.Logger
}

func New(conn *bus.Connection, dev *repeater.Device, log *rlog.Logger) *Service {
	return &Service{conn: conn, dev: dev, log: log.WithDevice(dev.ID())}
}

// Start runs the beat loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	beatTopic := bus.T("repeater", s.dev.ID(), "heartbeat")
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("heartbeat stopping")
			s.conn.Disconnect()
			return
		case <-tick.C:
			s.conn.Publish(s.conn.NewMessage(beatTopic, types.Heartbeat{
				Powered: s.dev.Powered(),
				Tuned:   s.dev.Tune().Len(),
				TSms:    timex.NowMs(),
			}, false))
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			cfg, ok := msg.Payload.(types.HeartbeatConfig)
			if !ok || cfg.IntervalMS <= 0 {
				s.log.Warn("ignoring bad heartbeat config", "payload", msg.Payload)
				continue
			}
			tick.Reset(time.Duration(cfg.IntervalMS) * time.Millisecond)
			s.log.Info("heartbeat interval set", "interval_ms", cfg.IntervalMS)
		}
	}
}
