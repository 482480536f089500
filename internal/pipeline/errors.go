package pipeline

import "errors"

var (
	// ErrFrameAcquisition marks a dropped frame. The stream monitor recovers from it.
	ErrFrameAcquisition = errors.New("frame acquisition failed")
	// ErrMalformedConfig marks an invalid configuration value. Fatal at startup.
	ErrMalformedConfig = errors.New("malformed configuration")
	// ErrDimensionMismatch marks consecutive frames of different size. Fatal.
	ErrDimensionMismatch = errors.New("frame dimension mismatch")
	// ErrActuatorCall marks a failed actuator delivery. Logged only.
	ErrActuatorCall = errors.New("actuator call failed")
)
