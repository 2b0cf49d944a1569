package camera

import (
	"errors"
	"fmt"
)

// Reason classifies why a device could not be acquired.
type Reason string

const (
	// ReasonAbsent means no device exists at the configured address.
	ReasonAbsent Reason = "NotFoundError"

	// ReasonPermission means the process may not open the device.
	ReasonPermission Reason = "NotAllowedError"

	// ReasonUnavailable means the device exists but could not be opened or read.
	ReasonUnavailable Reason = "NotReadableError"

	// ReasonInvalidConfig means the adapter was configured with bad values.
	ReasonInvalidConfig Reason = "ConfigError"
)

// ErrNotAcquired is returned by operations that need an acquired device.
var ErrNotAcquired = errors.New("camera: device not acquired")

// DeviceError is a terminal acquisition failure.
type DeviceError struct {
	Device string
	Reason Reason
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("Error accessing camera: %s - %s. Please ensure permissions are granted and the device is connected.",
		e.Reason, e.Detail)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) && de.Reason == ReasonPermission
}

// IsAbsent reports whether err means the device does not exist.
func IsAbsent(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) && de.Reason == ReasonAbsent
}
