package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgRPi = `{
  "drive": {
    "acceleration": 50,
    "sonar_mode": "automatic",
    "loop_ms": 10
  },
  "monitor": {
    "interval_ms": 500
  },
  "heartbeat": {
    "interval": 2
  }
}`

const cfgBench = `{
  "drive": {
    "acceleration": 100,
    "sonar_mode": "manual",
    "loop_ms": 20
  },
  "monitor": {
    "interval_ms": 1000
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"rpi":   []byte(cfgRPi),
	"bench": []byte(cfgBench),
}
