package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"robotdemo-go/bus"
	"robotdemo-go/types"
	"robotdemo-go/x/jsonx"
)

const defaultMonitorInterval = 500 * time.Millisecond

type monitorConfig struct {
	IntervalMs uint32 `json:"interval_ms"`
}

// runMonitor logs the latest motor and sonar telemetry at a fixed rate and
// every status change as it happens.
func runMonitor(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	defer conn.Disconnect()
	cfgSub := conn.Subscribe(bus.T("config", "monitor"))
	valSub := conn.Subscribe(bus.T("drive", "+", "value"))
	stSub := conn.Subscribe(bus.T("drive", "+", "status"))

	tick := time.NewTicker(defaultMonitorInterval)
	defer tick.Stop()

	var (
		mv   types.MotorValue
		sv   types.SonarValue
		seen bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cfgSub.Channel():
			var c monitorConfig
			if err := jsonx.Decode(msg.Payload, &c); err != nil || c.IntervalMs == 0 {
				continue
			}
			tick.Reset(time.Duration(c.IntervalMs) * time.Millisecond)
		case msg := <-valSub.Channel():
			switch v := msg.Payload.(type) {
			case types.MotorValue:
				mv = v
			case types.SonarValue:
				sv = v
			}
			seen = true
		case msg := <-stSub.Channel():
			if st, ok := msg.Payload.(types.CapabilityStatus); ok {
				log.Info("status", "topic", msg.Topic.String(), "link", st.Link, "error", st.Error)
			}
		case <-tick.C:
			if !seen {
				continue
			}
			distance := "--"
			if sv.EchoOK {
				distance = strconv.Itoa(int(sv.DistanceCm)) + "cm"
			}
			log.Info("telemetry",
				"speed", mv.Speed,
				"target", mv.Target,
				"ramping", mv.Ramping,
				"enabled", mv.Enabled,
				"distance", distance,
				"sonar_mode", sv.Mode)
		}
	}
}
