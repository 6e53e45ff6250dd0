package types

// ------------------------
// Motor (H-bridge, two PWM channels)
// ------------------------

type MotorInfo struct {
	FreqHz        uint32 `json:"freq_hz"`
	MinIntervalUs uint32 `json:"min_interval_us"`
	MaxIntervalUs uint32 `json:"max_interval_us"`
	Inverted      bool   `json:"inverted"`
}

// MotorValue is published retained on drive/motor/value.
type MotorValue struct {
	Speed        int8  `json:"speed"`  // -100..100
	Target       int8  `json:"target"` // -100..100
	Acceleration uint8 `json:"acceleration"`
	Ramping      bool  `json:"ramping"`
	Enabled      bool  `json:"enabled"`
	DutyFwd      uint8 `json:"duty_fwd"`
	DutyBwd      uint8 `json:"duty_bwd"`
}

// Controls

type MotorSet struct {
	Speed int `json:"speed"` // clamped to -100..100
}

type MotorAcceleration struct {
	Acceleration int `json:"acceleration"` // clamped to 0..100
}

type MotorRunFor struct {
	Speed      int    `json:"speed"`
	DurationMs uint32 `json:"duration_ms"`
}
