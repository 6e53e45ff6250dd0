// Package drive owns the motor and the sonar, polls both from a single loop
// and exposes them on the bus.
//
// Topics:
//
//	config/drive                       retained types.DriveConfig
//	drive/<kind>/control/<method>      control requests, replies on ReplyTo
//	drive/<kind>/info                  retained, published once at start
//	drive/<kind>/status                retained types.CapabilityStatus
//	drive/<kind>/value                 retained telemetry, only on change
package drive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tinygo.org/x/drivers"

	"robotdemo-go/bus"
	"robotdemo-go/drivers/motor"
	"robotdemo-go/drivers/sonar"
	"robotdemo-go/errcode"
	"robotdemo-go/types"
	"robotdemo-go/x/jsonx"
	"robotdemo-go/x/timex"
)

const (
	DefaultLoop = 10 * time.Millisecond
	minLoop     = time.Millisecond
	maxLoop     = time.Second
)

var (
	topicConfig  = bus.T("config", "drive")
	topicControl = bus.T("drive", "+", "control", "+")
)

func kindTopic(k types.Kind, rest ...any) bus.Topic {
	return bus.T("drive", string(k)).Append(rest...)
}

type Options struct {
	// Loop is the polling period. Zero means DefaultLoop.
	Loop time.Duration
	Log  *slog.Logger
}

type Service struct {
	m    *motor.Motor
	s    *sonar.Sonar
	conn *bus.Connection
	log  *slog.Logger

	loop   time.Duration
	ticker *time.Ticker

	lastMotor    types.MotorValue
	lastSonar    types.SonarValue
	motorPublish bool
	sonarPublish bool

	links map[types.Kind]linkState
}

// linkState is the last status published per kind, without its timestamp.
type linkState struct {
	link types.Link
	code errcode.Code
}

func New(m *motor.Motor, s *sonar.Sonar, opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	loop := opts.Loop
	if loop == 0 {
		loop = DefaultLoop
	}
	return &Service{
		m:     m,
		s:     s,
		log:   log.With("service", "drive"),
		loop:  clampLoop(loop),
		links: map[types.Kind]linkState{},
	}
}

func clampLoop(d time.Duration) time.Duration {
	return min(max(d, minLoop), maxLoop)
}

// Run initialises both drivers and polls them until ctx is done. On exit
// the motor is stopped and both drivers are closed.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) error {
	s.conn = conn
	cfgSub := conn.Subscribe(topicConfig)
	ctrlSub := conn.Subscribe(topicControl)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(ctrlSub)

	if err := s.start(); err != nil {
		return err
	}

	s.ticker = time.NewTicker(s.loop)
	defer s.ticker.Stop()

	s.log.Info("drive running", "loop", s.loop)
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case msg := <-cfgSub.Channel():
			s.applyConfig(msg)
		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)
		case <-s.ticker.C:
			s.step()
		}
	}
}

func (s *Service) start() error {
	if err := s.m.Init(); err != nil {
		s.publishStatus(types.KindMotor, types.LinkDown, err)
		return err
	}
	if err := s.s.Init(); err != nil {
		s.publishStatus(types.KindSonar, types.LinkDown, err)
		return err
	}
	s.publishInfo()
	s.publishStatus(types.KindMotor, types.LinkUp, nil)
	s.publishStatus(types.KindSonar, types.LinkUp, nil)
	s.publishTelemetry()
	return nil
}

func (s *Service) shutdown() error {
	err := errors.Join(s.m.Close(), s.s.Close())
	s.publishTelemetry()
	s.publishStatus(types.KindMotor, types.LinkDown, nil)
	s.publishStatus(types.KindSonar, types.LinkDown, nil)
	if err != nil {
		s.log.Error("drive close failed", "err", err)
	} else {
		s.log.Info("drive stopped")
	}
	return err
}

// step is one iteration of the host loop.
func (s *Service) step() {
	s.m.Update()
	s.s.Update()
	s.publishTelemetry()
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *Service) applyConfig(msg *bus.Message) {
	if msg.Payload == nil {
		return
	}
	var cfg types.DriveConfig
	if err := jsonx.Decode(msg.Payload, &cfg); err != nil {
		s.log.Warn("drive config rejected", "err", err)
		return
	}
	if cfg.Acceleration != nil {
		s.m.SetAcceleration(*cfg.Acceleration)
	}
	if cfg.SonarMode != "" {
		if mode, ok := sonar.ParseMode(cfg.SonarMode); ok {
			s.s.SetMode(mode)
		} else {
			s.log.Warn("unknown sonar mode in config", "mode", cfg.SonarMode)
		}
	}
	if cfg.LoopMs > 0 {
		s.loop = clampLoop(time.Duration(cfg.LoopMs) * time.Millisecond)
		if s.ticker != nil {
			s.ticker.Reset(s.loop)
		}
	}
	s.log.Info("drive configured",
		"acceleration", s.m.Acceleration(),
		"sonar_mode", s.s.Mode().String(),
		"loop", s.loop)
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *Service) handleControl(msg *bus.Message) {
	// drive/<kind>/control/<method>
	if len(msg.Topic) != 4 {
		return
	}
	kind, _ := msg.Topic[1].(string)
	method, _ := msg.Topic[3].(string)

	var (
		res map[string]any
		err error
	)
	switch types.Kind(kind) {
	case types.KindMotor:
		res, err = s.motorControl(method, msg.Payload)
	case types.KindSonar:
		res, err = s.sonarControl(method, msg.Payload)
	default:
		s.log.Warn("control for unknown kind", "topic", msg.Topic.String())
		s.replyErr(msg, errcode.Unsupported)
		return
	}

	if err != nil {
		s.log.Warn("control failed", "kind", kind, "method", method, "err", err)
		s.publishStatus(types.Kind(kind), types.LinkDegraded, err)
		s.replyErr(msg, err)
		return
	}
	s.publishStatus(types.Kind(kind), types.LinkUp, nil)
	s.replyOK(msg, res)
	// Reflect the change without waiting for the next tick.
	s.publishTelemetry()
}

func (s *Service) motorControl(method string, payload any) (map[string]any, error) {
	const op = "drive.motor"
	switch method {
	case "set":
		var p types.MotorSet
		if err := jsonx.Decode(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, op, err)
		}
		if !s.m.Enabled() {
			return nil, errcode.Disabled
		}
		s.m.SetTarget(p.Speed)
	case "acceleration":
		var p types.MotorAcceleration
		if err := jsonx.Decode(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, op, err)
		}
		s.m.SetAcceleration(p.Acceleration)
		return map[string]any{"interval_us": s.m.Interval().Microseconds()}, nil
	case "run_for":
		var p types.MotorRunFor
		if err := jsonx.Decode(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, op, err)
		}
		if !s.m.Enabled() {
			return nil, errcode.Disabled
		}
		s.m.RunFor(p.Speed, time.Duration(p.DurationMs)*time.Millisecond)
	case "stop":
		s.m.Stop()
	case "start":
		if err := s.m.Init(); err != nil {
			return nil, err
		}
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: op, Msg: method}
	}
	return nil, nil
}

func (s *Service) sonarControl(method string, payload any) (map[string]any, error) {
	const op = "drive.sonar"
	switch method {
	case "mode":
		var p types.SonarModeSet
		if err := jsonx.Decode(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, op, err)
		}
		mode, ok := sonar.ParseMode(p.Mode)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "unknown mode " + p.Mode}
		}
		s.s.SetMode(mode)
	case "measure":
		s.s.StartMeasurement()
	case "read_now":
		if err := s.s.Sensor().Update(drivers.Distance); err != nil {
			return nil, err
		}
		return map[string]any{"distance_cm": s.s.Distance()}, nil
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: op, Msg: method}
	}
	return nil, nil
}

// -----------------------------------------------------------------------------
// Publishing
// -----------------------------------------------------------------------------

func (s *Service) motorValue() types.MotorValue {
	fwd, bwd := s.m.Duty()
	return types.MotorValue{
		Speed:        s.m.Speed(),
		Target:       s.m.Target(),
		Acceleration: s.m.Acceleration(),
		Ramping:      s.m.Ramping(),
		Enabled:      s.m.Enabled(),
		DutyFwd:      fwd,
		DutyBwd:      bwd,
	}
}

func (s *Service) sonarValue() types.SonarValue {
	return types.SonarValue{
		DistanceCm: s.s.Distance(),
		EchoOK:     s.s.EchoOK(),
		Mode:       s.s.Mode().String(),
		Measuring:  s.s.Measuring(),
	}
}

// publishTelemetry publishes each value only when it differs from the last
// one sent.
func (s *Service) publishTelemetry() {
	if v := s.motorValue(); !s.motorPublish || v != s.lastMotor {
		s.pubRet(kindTopic(types.KindMotor, "value"), v)
		s.lastMotor, s.motorPublish = v, true
	}
	if v := s.sonarValue(); !s.sonarPublish || v != s.lastSonar {
		s.pubRet(kindTopic(types.KindSonar, "value"), v)
		s.lastSonar, s.sonarPublish = v, true
	}
}

func (s *Service) publishInfo() {
	mc := s.m.Config()
	s.pubRet(kindTopic(types.KindMotor, "info"), types.Info{
		SchemaVersion: 1,
		Driver:        "hbridge",
		Detail: types.MotorInfo{
			FreqHz:        mc.FrequencyHz,
			MinIntervalUs: timex.Micros(mc.MinInterval),
			MaxIntervalUs: timex.Micros(mc.MaxInterval),
			Inverted:      mc.Inverted,
		},
	})
	sc := s.s.Config()
	s.pubRet(kindTopic(types.KindSonar, "info"), types.Info{
		SchemaVersion: 1,
		Driver:        "hcsr04",
		Detail: types.SonarInfo{
			MaxCm:         sonar.MaxDistanceCm,
			EchoTimeoutUs: timex.Micros(sc.EchoTimeout),
		},
	})
}

// publishStatus publishes the retained status for k when the link or the
// error code differs from the last one sent.
func (s *Service) publishStatus(k types.Kind, link types.Link, err error) {
	ls := linkState{link: link}
	if err != nil {
		ls.code = errcode.Of(err)
	}
	if last, ok := s.links[k]; ok && last == ls {
		return
	}
	s.links[k] = ls
	s.pubRet(kindTopic(k, "status"), types.CapabilityStatus{
		Link:  link,
		TS:    timex.NowMs(),
		Error: string(ls.code),
	})
}

func (s *Service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func (s *Service) replyOK(req *bus.Message, extra map[string]any) {
	if len(extra) == 0 {
		s.conn.Reply(req, types.OKReply{OK: true}, false)
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *Service) replyErr(req *bus.Message, err error) {
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(errcode.Of(err))}, false)
}
