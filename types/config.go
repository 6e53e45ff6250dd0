package types

// DriveConfig is supplied retained on topic "config/drive". Zero fields
// leave the current setting untouched.
type DriveConfig struct {
	Acceleration *int   `json:"acceleration,omitempty"`
	SonarMode    string `json:"sonar_mode,omitempty"`
	LoopMs       uint32 `json:"loop_ms,omitempty"`
}
