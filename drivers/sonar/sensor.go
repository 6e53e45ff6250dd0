package sonar

import (
	"tinygo.org/x/drivers"

	"robotdemo-go/errcode"
)

// Sensor exposes the sonar through the TinyGo drivers.Sensor interface.
// Update measures immediately when which includes drivers.Distance, whatever
// the mode, and reports a missing echo as errcode.NoEcho.
func (s *Sonar) Sensor() drivers.Sensor { return sensor{s} }

type sensor struct{ s *Sonar }

func (a sensor) Update(which drivers.Measurement) error {
	if which&drivers.Distance == 0 {
		return nil
	}
	a.s.measure()
	if !a.s.echoOK {
		return errcode.NoEcho
	}
	return nil
}
