// Package heartbeat logs a periodic liveness line and republishes it on the
// bus so remote consumers can tell the process is alive.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"robotdemo-go/bus"
	"robotdemo-go/x/jsonx"
)

const DefaultInterval = time.Second

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicBeat            = bus.T("heartbeat")
)

// Beat is published on TopicBeat, not retained.
type Beat struct {
	Seq      uint64 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
}

type config struct {
	Interval float64 `json:"interval"` // seconds
}

type Service struct {
	Log *slog.Logger
}

func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{Log: log.With("service", "heartbeat")}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
	var seq uint64
	tick := time.NewTicker(DefaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("heartbeat stopping")
			return
		case t := <-tick.C:
			seq++
			b := Beat{Seq: seq, UptimeMs: t.Sub(start).Milliseconds()}
			s.Log.Debug("heartbeat", "seq", b.Seq, "uptime_ms", b.UptimeMs)
			conn.Publish(conn.NewMessage(TopicBeat, b, false))
		case msg := <-cfgSub.Channel():
			var c config
			if err := jsonx.Decode(msg.Payload, &c); err != nil || c.Interval <= 0 {
				s.Log.Warn("heartbeat config ignored", "payload", msg.Payload)
				continue
			}
			d := time.Duration(c.Interval * float64(time.Second))
			tick.Reset(d)
			s.Log.Info("heartbeat interval set", "interval", d)
		}
	}
}

// Start runs the heartbeat until ctx is done.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}
