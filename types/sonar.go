package types

// ------------------------
// Sonar (ultrasonic range)
// ------------------------

type SonarInfo struct {
	MaxCm         uint16 `json:"max_cm"`
	EchoTimeoutUs uint32 `json:"echo_timeout_us"`
}

// SonarValue is published retained on drive/sonar/value.
type SonarValue struct {
	DistanceCm uint16 `json:"distance_cm"` // 0..400
	EchoOK     bool   `json:"echo_ok"`     // false: no echo before timeout
	Mode       string `json:"mode"`        // "manual" | "automatic"
	Measuring  bool   `json:"measuring"`
}

// Controls

type SonarModeSet struct {
	Mode string `json:"mode"`
}
