package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andreyvit/tinyjson"

	"robotdemo-go/bus"
	"robotdemo-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key holding the device ID.
const CtxDeviceKey ctxKey = "device"

// WithDevice returns a context carrying the device ID.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, CtxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Devices lists the device IDs with an embedded config.
func Devices() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	return out
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	Log  *slog.Logger
}

func NewConfigService(log *slog.Logger) *ConfigService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ConfigService{Name: serviceName, Log: log.With("service", serviceName)}
}

// publishConfig publishes each top-level key of the device config as a
// retained message on config/<key>.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.publish", Msg: "missing device ID in context"}
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.NotReady, Op: "config.publish", Msg: "no embedded config for device " + device}
	}

	val, err := parseJSON(raw)
	if err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "config.publish", err)
	}
	m, ok := val.(map[string]any)
	if !ok {
		return errcode.Wrap(errcode.InvalidPayload, "config.publish", errors.New("embedded config is not a JSON object"))
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	s.Log.Info("config published", "device", device, "keys", len(m))
	return nil
}

// parseJSON reads one JSON value and requires nothing after it. tinyjson
// reports malformed input by panicking.
func parseJSON(raw []byte) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid JSON: %v", r)
		}
	}()
	r := tinyjson.Raw(raw)
	val = r.Value()
	r.EnsureEOF()
	return val, nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			s.Log.Error("config publish failed", "err", err)
		}
	}()
}
